package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/llm"
	"github.com/karimfahmy/clipvault/internal/vectordb"
)

// NoKnowledgeAnswer is returned when retrieval finds nothing. Distinct
// from a backend error: the caller can tell "I don't know" apart from
// "something broke", and the LLM is never invoked with empty context.
const NoKnowledgeAnswer = "No relevant knowledge found in the vault for this question."

const snippetLen = 200

// Source is one citation backing an answer.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float32 `json:"score"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Text        string   `json:"answer"`
	Sources     []Source `json:"sources"`
	NoKnowledge bool     `json:"no_knowledge,omitempty"`
}

// Engine answers questions over the vault: embed the question, fetch the
// top-k passages, build a bounded context window and ask the LLM for a
// cited answer. The question is embedded by the same embedder that built
// the index; the index manager enforces that pin.
type Engine struct {
	index         *index.Manager
	provider      llm.Provider
	model         string
	defaultTopK   int
	contextBudget int
	timeout       time.Duration
}

// NewEngine creates a query engine.
func NewEngine(indexManager *index.Manager, provider llm.Provider, model string, defaultTopK, contextBudgetChars int, timeout time.Duration) *Engine {
	if defaultTopK < 1 {
		defaultTopK = 5
	}
	if contextBudgetChars <= 0 {
		contextBudgetChars = 12000
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Engine{
		index:         indexManager,
		provider:      provider,
		model:         model,
		defaultTopK:   defaultTopK,
		contextBudget: contextBudgetChars,
		timeout:       timeout,
	}
}

// Query answers a natural-language question. topK <= 0 uses the default.
func (e *Engine) Query(ctx context.Context, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if topK <= 0 {
		topK = e.defaultTopK
	}

	results, err := e.index.Search(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Text: NoKnowledgeAnswer, NoKnowledge: true}, nil
	}

	included := e.fitContext(results)
	prompt := buildPrompt(question, included)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Complete(callCtx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	answer := &Answer{Text: strings.TrimSpace(resp.Content)}
	for _, r := range included {
		answer.Sources = append(answer.Sources, Source{
			Title:   r.Passage.Metadata.Title,
			URL:     r.Passage.Metadata.URL,
			Snippet: snippet(r.Passage.Text),
			Score:   r.Similarity,
		})
	}

	log.Printf("query: answered with %d/%d passages", len(included), len(results))
	return answer, nil
}

// fitContext keeps top-ranked passages until the character budget is
// spent; the lowest-ranked are dropped first. At least one passage is
// always included, truncated to the budget if it alone exceeds it.
func (e *Engine) fitContext(results []vectordb.SearchResult) []vectordb.SearchResult {
	var included []vectordb.SearchResult
	used := 0
	for _, r := range results {
		cost := len(r.Passage.Text)
		if used+cost > e.contextBudget {
			if len(included) == 0 {
				cut := e.contextBudget
				for cut > 0 && !utf8.RuneStart(r.Passage.Text[cut]) {
					cut--
				}
				r.Passage.Text = r.Passage.Text[:cut]
				included = append(included, r)
			}
			break
		}
		included = append(included, r)
		used += cost
	}
	return included
}

const answerSystemPrompt = `You answer questions from a personal knowledge base.
Use only the supplied context passages. If the context does not contain the
answer, say so. Cite passages by their [n] marker.`

func buildPrompt(question string, results []vectordb.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Context passages:\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, r.Passage.Metadata.Title, r.Passage.Metadata.URL, r.Passage.Text)
	}
	sb.WriteString("Question: " + question + "\n")
	return sb.String()
}

func snippet(text string) string {
	plain := strings.Join(strings.Fields(fingerprint.StripMarkdown(text)), " ")
	if len(plain) <= snippetLen {
		return plain
	}
	cut := plain[:snippetLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
