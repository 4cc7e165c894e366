package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// readerStrategy fetches content through a markdown reader service
// (Jina-reader style): GET <base>/<url> returns the page as markdown.
type readerStrategy struct {
	baseURL string
	client  *http.Client
}

func newReaderStrategy(baseURL string) *readerStrategy {
	return &readerStrategy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (s *readerStrategy) Name() string { return "reader" }

func (s *readerStrategy) Attempt(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create reader request: %w", err)
	}
	req.Header.Set("Accept", "text/markdown")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reader request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reader returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read reader response: %w", err)
	}

	title, markdown := parseReaderOutput(string(body))
	return &Result{Title: title, Markdown: markdown}, nil
}

// parseReaderOutput pulls the title out of the reader service's response.
// Reader services prepend metadata lines ("Title: ...", "URL Source: ...")
// before the markdown body; absent those, the first heading is used.
func parseReaderOutput(body string) (title, markdown string) {
	lines := strings.Split(body, "\n")

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "Title:"):
			title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "URL Source:"), strings.HasPrefix(line, "Markdown Content:"):
			// metadata lines, skip
		case line == "":
			// blank lines between metadata
		default:
			markdown = strings.TrimSpace(strings.Join(lines[i:], "\n"))
			if title == "" {
				title = firstHeading(markdown)
			}
			return title, markdown
		}
	}
	return title, ""
}

func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}
