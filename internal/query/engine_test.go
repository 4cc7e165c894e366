package query

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/karimfahmy/clipvault/internal/db"
	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/llm"
	"github.com/karimfahmy/clipvault/internal/vault"
	"github.com/karimfahmy/clipvault/internal/vectordb"
)

type stubLLM struct {
	response string
	calls    atomic.Int32
	lastReq  llm.CompletionRequest
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls.Add(1)
	s.lastReq = req
	return &llm.CompletionResponse{Content: s.response, Model: "stub"}, nil
}

type mockEmbedder struct{}

func (mockEmbedder) Name() string    { return "mock" }
func (mockEmbedder) Dimensions() int { return 64 }

func (mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 64)
		for j, ch := range text {
			vec[(int(ch)+j)%64] += 1.0
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		results[i] = vec
	}
	return results, nil
}

func newTestManager(t *testing.T) *index.Manager {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store, err := vectordb.NewChromemStore(mockEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	manager, err := index.NewManager(store, fingerprint.NewStore(database), database, mockEmbedder{}, 500, 100, t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

func indexDoc(t *testing.T, m *index.Manager, id, title, text string) {
	t.Helper()
	_, err := m.Upsert(context.Background(), &vault.Document{
		ID:         id,
		URL:        "https://example.com/" + id,
		Title:      title,
		CapturedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		RawText:    text,
	})
	if err != nil {
		t.Fatalf("Upsert %s: %v", id, err)
	}
}

func TestQuery_NoKnowledge(t *testing.T) {
	provider := &stubLLM{response: "should never be used"}
	engine := NewEngine(newTestManager(t), provider, "stub", 5, 12000, time.Minute)

	answer, err := engine.Query(context.Background(), "what is in my vault?", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !answer.NoKnowledge {
		t.Error("expected NoKnowledge on empty index")
	}
	if answer.Text != NoKnowledgeAnswer {
		t.Errorf("answer = %q", answer.Text)
	}
	if provider.calls.Load() != 0 {
		t.Error("LLM must not be called with no retrieved context")
	}
}

func TestQuery_EmptyQuestion(t *testing.T) {
	engine := NewEngine(newTestManager(t), &stubLLM{}, "stub", 5, 12000, time.Minute)
	if _, err := engine.Query(context.Background(), "   ", 0); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestQuery_AnswersWithSources(t *testing.T) {
	manager := newTestManager(t)
	indexDoc(t, manager, "k8s.md", "Kubernetes Notes", "kubernetes ingress controllers route external traffic to services")
	indexDoc(t, manager, "bread.md", "Baking", "sourdough starter needs regular feeding with flour")

	provider := &stubLLM{response: "Ingress controllers route external traffic [1]."}
	engine := NewEngine(manager, provider, "stub", 5, 12000, time.Minute)

	answer, err := engine.Query(context.Background(), "kubernetes ingress controllers route external traffic to services", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.NoKnowledge {
		t.Fatal("unexpected NoKnowledge")
	}
	if !strings.Contains(answer.Text, "Ingress controllers") {
		t.Errorf("answer = %q", answer.Text)
	}
	if len(answer.Sources) == 0 {
		t.Fatal("expected sources")
	}
	top := answer.Sources[0]
	if top.Title != "Kubernetes Notes" {
		t.Errorf("top source = %q", top.Title)
	}
	if top.URL != "https://example.com/k8s.md" {
		t.Errorf("source url = %q", top.URL)
	}
	if top.Snippet == "" || top.Score <= 0 {
		t.Errorf("source missing snippet/score: %+v", top)
	}

	prompt := provider.lastReq.Messages[1].Content
	if !strings.Contains(prompt, "[1]") || !strings.Contains(prompt, "ingress controllers") {
		t.Errorf("prompt missing context markers:\n%s", prompt)
	}
	if !strings.Contains(prompt, "kubernetes ingress controllers route external traffic to services") {
		t.Errorf("prompt missing question:\n%s", prompt)
	}
}

func TestFitContext_DropsLowestRankedFirst(t *testing.T) {
	engine := NewEngine(nil, nil, "m", 5, 100, time.Minute)

	results := []vectordb.SearchResult{
		{Passage: vectordb.Passage{ID: "1", Text: strings.Repeat("a", 60)}, Similarity: 0.9},
		{Passage: vectordb.Passage{ID: "2", Text: strings.Repeat("b", 30)}, Similarity: 0.8},
		{Passage: vectordb.Passage{ID: "3", Text: strings.Repeat("c", 30)}, Similarity: 0.7},
	}

	included := engine.fitContext(results)
	if len(included) != 2 {
		t.Fatalf("included %d passages, want 2", len(included))
	}
	if included[0].Passage.ID != "1" || included[1].Passage.ID != "2" {
		t.Errorf("wrong passages kept: %s, %s", included[0].Passage.ID, included[1].Passage.ID)
	}
}

func TestFitContext_TruncatesSingleOversizedPassage(t *testing.T) {
	engine := NewEngine(nil, nil, "m", 5, 50, time.Minute)

	results := []vectordb.SearchResult{
		{Passage: vectordb.Passage{ID: "1", Text: strings.Repeat("x", 200)}, Similarity: 0.9},
	}
	included := engine.fitContext(results)
	if len(included) != 1 {
		t.Fatalf("included %d passages, want 1", len(included))
	}
	if len(included[0].Passage.Text) != 50 {
		t.Errorf("oversized passage not truncated to budget: %d", len(included[0].Passage.Text))
	}
}

func TestFitContext_TruncationRespectsRuneBoundaries(t *testing.T) {
	engine := NewEngine(nil, nil, "m", 5, 50, time.Minute)

	results := []vectordb.SearchResult{
		{Passage: vectordb.Passage{ID: "1", Text: strings.Repeat("世", 40)}, Similarity: 0.9},
	}
	included := engine.fitContext(results)
	if len(included) != 1 {
		t.Fatalf("included %d passages, want 1", len(included))
	}
	text := included[0].Passage.Text
	if !utf8.ValidString(text) {
		t.Errorf("truncated passage is not valid UTF-8: %q", text)
	}
	if len(text) != 48 {
		t.Errorf("truncated length = %d, want 48 (16 three-byte runes)", len(text))
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := snippet("# Heading\n\n" + long)
	if strings.Contains(s, "#") {
		t.Errorf("markdown leaked into snippet: %q", s)
	}
	if len(s) > snippetLen+3 {
		t.Errorf("snippet too long: %d", len(s))
	}
	if !strings.HasSuffix(s, "...") {
		t.Errorf("long snippet should be elided: %q", s)
	}
}
