package summarizer

import "fmt"

const maxKeywords = 5

const systemPrompt = `You summarize web articles for a personal knowledge base.
Respond with a JSON object only, no prose around it.`

const userPromptTemplate = `Analyze the following web content and respond with JSON:

{
  "summary": "3-5 markdown bullet points capturing the core content",
  "keywords": ["up to 5 key terms"],
  "category": "one of: Technology, Business, Science, Health, Education, Entertainment, Politics, Sports, Other"
}

Content:
%s`

func buildUserPrompt(content string) string {
	return fmt.Sprintf(userPromptTemplate, content)
}
