package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/karimfahmy/clipvault/internal/llm"
)

// stubProvider returns a fixed response or error.
type stubProvider struct {
	calls    []llm.CompletionRequest
	response string
	err      error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{
		Content:      s.response,
		InputTokens:  100,
		OutputTokens: 50,
		Model:        "stub-model",
		FinishReason: "stop",
	}, nil
}

const goodResponse = `{"summary": "- First point\n- Second point\n- Third point", "keywords": ["go", "testing", "llm"], "category": "Technology"}`

func TestSummarize(t *testing.T) {
	stub := &stubProvider{response: goodResponse}
	c := NewClient(stub, "stub-model", 24000, 4000, time.Minute)

	res, err := c.Summarize(context.Background(), "Some article content.")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if !strings.Contains(res.Summary, "First point") {
		t.Errorf("summary = %q", res.Summary)
	}
	if len(res.Keywords) != 3 || res.Keywords[0] != "go" {
		t.Errorf("keywords = %v", res.Keywords)
	}
	if res.Category != "Technology" {
		t.Errorf("category = %q", res.Category)
	}
	if res.TokensUsed != 150 {
		t.Errorf("tokens = %d", res.TokensUsed)
	}
	if res.Truncated {
		t.Error("short content should not be truncated")
	}

	req := stub.calls[0]
	if !req.JSONMode {
		t.Error("summarization must request JSON mode")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Errorf("unexpected prompt shape: %+v", req.Messages)
	}
}

func TestSummarize_CodeFencedResponse(t *testing.T) {
	stub := &stubProvider{response: "```json\n" + goodResponse + "\n```"}
	c := NewClient(stub, "m", 0, 0, 0)

	res, err := c.Summarize(context.Background(), "content")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Category != "Technology" {
		t.Errorf("category = %q", res.Category)
	}
}

func TestSummarize_KeywordCapAndCategoryDefault(t *testing.T) {
	stub := &stubProvider{response: `{"summary": "- ok", "keywords": ["a","b","c","d","e","f","g"], "category": ""}`}
	c := NewClient(stub, "m", 0, 0, 0)

	res, err := c.Summarize(context.Background(), "content")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(res.Keywords) != 5 {
		t.Errorf("keywords not capped: %v", res.Keywords)
	}
	if res.Category != "Other" {
		t.Errorf("empty category should default to Other, got %q", res.Category)
	}
}

func TestSummarize_UnparsableOutput(t *testing.T) {
	stub := &stubProvider{response: "I cannot produce JSON today."}
	c := NewClient(stub, "m", 0, 0, 0)

	_, err := c.Summarize(context.Background(), "content")
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindModelUnavailable {
		t.Fatalf("expected MODEL_UNAVAILABLE, got %v", err)
	}
}

func TestSummarize_EmptySummaryField(t *testing.T) {
	stub := &stubProvider{response: `{"summary": "  ", "keywords": [], "category": "Other"}`}
	c := NewClient(stub, "m", 0, 0, 0)

	if _, err := c.Summarize(context.Background(), "content"); err == nil {
		t.Fatal("expected error for empty summary field")
	}
}

func TestSummarize_ContentTooLarge(t *testing.T) {
	stub := &stubProvider{response: goodResponse}
	c := NewClient(stub, "m", 0, 0, 0)

	huge := strings.Repeat("x", maxSummarizableChars+1)
	_, err := c.Summarize(context.Background(), huge)
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindContentTooLarge {
		t.Fatalf("expected CONTENT_TOO_LARGE, got %v", err)
	}
	if se.Retryable() {
		t.Error("oversized content must not be retryable")
	}
	if len(stub.calls) != 0 {
		t.Error("oversized content must not reach the model")
	}
}

func TestSummarize_TimeoutClassification(t *testing.T) {
	stub := &stubProvider{err: fmt.Errorf("call: %w", context.DeadlineExceeded)}
	c := NewClient(stub, "m", 0, 0, 0)

	_, err := c.Summarize(context.Background(), "content")
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if !se.Retryable() {
		t.Error("timeouts should be retryable")
	}
}

// The head+tail truncation must be deterministic: same input, same output.
func TestTruncateHeadTail(t *testing.T) {
	c := NewClient(&stubProvider{}, "m", 1000, 200, 0)

	short, truncated := c.truncate(strings.Repeat("a", 1000))
	if truncated || len(short) != 1000 {
		t.Errorf("content at budget should pass through, truncated=%v len=%d", truncated, len(short))
	}

	long := strings.Repeat("h", 5000) + strings.Repeat("t", 200)
	got1, truncated := c.truncate(long)
	if !truncated {
		t.Fatal("expected truncation")
	}
	got2, _ := c.truncate(long)
	if got1 != got2 {
		t.Error("truncation is not deterministic")
	}
	if !strings.HasPrefix(got1, "hhhh") {
		t.Error("head missing")
	}
	if !strings.HasSuffix(got1, strings.Repeat("t", 200)) {
		t.Error("tail missing")
	}
	if !strings.Contains(got1, "[... content elided ...]") {
		t.Error("elision marker missing")
	}
}

func TestTruncatePassedToModel(t *testing.T) {
	stub := &stubProvider{response: goodResponse}
	c := NewClient(stub, "m", 1000, 100, time.Minute)

	res, err := c.Summarize(context.Background(), strings.Repeat("z", 3000))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !res.Truncated {
		t.Error("result should report truncation")
	}
	prompt := stub.calls[0].Messages[1].Content
	if len(prompt) > 2000 {
		t.Errorf("prompt did not shrink: %d bytes", len(prompt))
	}
}
