package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karimfahmy/clipvault/internal/llm"
)

// ErrorKind classifies summarization failures.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "TIMEOUT"
	KindModelUnavailable ErrorKind = "MODEL_UNAVAILABLE"
	KindContentTooLarge  ErrorKind = "CONTENT_TOO_LARGE"
)

// maxSummarizableChars is a hard input ceiling; content beyond it is
// refused rather than truncated, since a 1 MB page is almost certainly
// not an article.
const maxSummarizableChars = 1 << 20

// Error is a classified summarization failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("summarize failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator's retry policy applies.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindModelUnavailable
}

// Result is a structured summary.
type Result struct {
	Summary    string
	Keywords   []string
	Category   string
	TokensUsed int
	Truncated  bool
	Model      string
}

// Client turns raw page content into a structured summary through a single
// JSON-mode completion. It never retries internally; the call carries the
// configured timeout and fails fast.
type Client struct {
	provider    llm.Provider
	model       string
	budgetChars int
	tailChars   int
	timeout     time.Duration
}

// NewClient creates a summarization client. budgetChars/tailChars define
// the deterministic head+tail truncation applied to oversized content.
func NewClient(provider llm.Provider, model string, budgetChars, tailChars int, timeout time.Duration) *Client {
	if budgetChars <= 0 {
		budgetChars = 24000
	}
	if tailChars < 0 || tailChars >= budgetChars {
		tailChars = 0
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		provider:    provider,
		model:       model,
		budgetChars: budgetChars,
		tailChars:   tailChars,
		timeout:     timeout,
	}
}

// Summarize produces a structured summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (*Result, error) {
	if len(text) > maxSummarizableChars {
		return nil, &Error{
			Kind: KindContentTooLarge,
			Err:  fmt.Errorf("content is %d bytes, limit is %d", len(text), maxSummarizableChars),
		}
	}

	input, truncated := c.truncate(text)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(callCtx, llm.CompletionRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildUserPrompt(input)},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
		JSONMode:    true,
	})
	if err != nil {
		return nil, classify(err)
	}

	parsed, err := parseResponse(resp.Content)
	if err != nil {
		return nil, &Error{Kind: KindModelUnavailable, Err: fmt.Errorf("unparsable model output: %w", err)}
	}

	parsed.TokensUsed = resp.InputTokens + resp.OutputTokens
	parsed.Truncated = truncated
	parsed.Model = resp.Model
	return parsed, nil
}

// truncate applies the head+tail policy: keep the first budget-tail and
// the last tail characters, joined by an elision marker. Deterministic for
// a given input and configuration.
func (c *Client) truncate(text string) (string, bool) {
	if len(text) <= c.budgetChars {
		return text, false
	}
	head := c.budgetChars - c.tailChars
	if c.tailChars == 0 {
		return text[:head], true
	}
	return text[:head] + "\n\n[... content elided ...]\n\n" + text[len(text)-c.tailChars:], true
}

func classify(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindModelUnavailable, Err: err}
}

type summaryJSON struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

func parseResponse(content string) (*Result, error) {
	content = stripCodeFence(content)

	var parsed summaryJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return nil, fmt.Errorf("empty summary field")
	}

	if len(parsed.Keywords) > maxKeywords {
		parsed.Keywords = parsed.Keywords[:maxKeywords]
	}
	for i, kw := range parsed.Keywords {
		parsed.Keywords[i] = strings.TrimSpace(kw)
	}

	category := strings.TrimSpace(parsed.Category)
	if category == "" {
		category = "Other"
	}

	return &Result{
		Summary:  strings.TrimSpace(parsed.Summary),
		Keywords: parsed.Keywords,
		Category: category,
	}, nil
}

// stripCodeFence removes a ```json ... ``` wrapper that some models emit
// even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
