package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// directStrategy fetches the page itself and extracts readable content
// from the HTML: title, headings, paragraphs and list items, rendered as
// markdown. It is the fallback when no reader service is configured or
// the reader call fails.
type directStrategy struct {
	userAgent string
	client    *http.Client
}

func newDirectStrategy(userAgent string) *directStrategy {
	return &directStrategy{
		userAgent: userAgent,
		client:    &http.Client{},
	}
}

func (s *directStrategy) Name() string { return "direct" }

func (s *directStrategy) Attempt(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := findTitle(doc)
	content := findMainContent(doc)
	if content == nil {
		content = doc
	}

	var sb strings.Builder
	renderMarkdown(&sb, content)
	markdown := strings.TrimSpace(collapseBlankRuns(sb.String()))

	// Last resort: all visible text, when the structural pass found nothing.
	if markdown == "" {
		markdown = strings.TrimSpace(visibleText(content))
	}

	return &Result{Title: title, Markdown: markdown}, nil
}

// contentSelectors are tried in order to locate the main content element,
// mirroring common article layouts.
var contentIDs = []string{"content", "main"}
var contentClasses = []string{"content", "post-content", "entry-content"}

func findMainContent(doc *html.Node) *html.Node {
	if n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "main" || n.Data == "article" || attr(n, "role") == "main"
	}); n != nil {
		return n
	}
	for _, id := range contentIDs {
		if n := findElement(doc, func(n *html.Node) bool { return attr(n, "id") == id }); n != nil {
			return n
		}
	}
	for _, class := range contentClasses {
		if n := findElement(doc, func(n *html.Node) bool { return hasClass(n, class) }); n != nil {
			return n
		}
	}
	return findElement(doc, func(n *html.Node) bool { return n.Data == "body" })
}

func findTitle(doc *html.Node) string {
	n := findElement(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil {
		return ""
	}
	return strings.TrimSpace(nodeText(n))
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// skippedTags hold no readable content.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"iframe": true, "svg": true, "form": true,
}

func renderMarkdown(sb *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if skippedTags[n.Data] {
			return
		}
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			text := strings.TrimSpace(nodeText(n))
			if text != "" {
				sb.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
			}
			return
		case "p":
			text := strings.TrimSpace(nodeText(n))
			if text != "" {
				sb.WriteString(text + "\n\n")
			}
			return
		case "li":
			text := strings.TrimSpace(nodeText(n))
			if text != "" {
				sb.WriteString("- " + text + "\n")
			}
			return
		case "pre":
			text := strings.Trim(rawText(n), "\n")
			if text != "" {
				sb.WriteString("```\n" + text + "\n```\n\n")
			}
			return
		case "ul", "ol":
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				renderMarkdown(sb, c)
			}
			sb.WriteString("\n")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(sb, c)
	}
}

// nodeText returns the whitespace-collapsed text under n.
func nodeText(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t + "\n")
			}
			return
		}
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseBlankRuns(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
