package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/karimfahmy/clipvault/internal/capture"
	"github.com/karimfahmy/clipvault/internal/db"
	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/llm"
	"github.com/karimfahmy/clipvault/internal/query"
	"github.com/karimfahmy/clipvault/internal/scraper"
	"github.com/karimfahmy/clipvault/internal/summarizer"
	"github.com/karimfahmy/clipvault/internal/vault"
	"github.com/karimfahmy/clipvault/internal/vectordb"
)

const pageHTML = `<html><head><title>Served Page</title></head><body><article><h1>Served Page</h1><p>Some content to capture.</p></article></body></html>`

const summaryJSON = `{"summary": "- A point", "keywords": ["k"], "category": "Technology"}`

type stubLLM struct{ response string }

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
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

func newTestServer(t *testing.T, apiToken string) *Server {
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
	fingerprints := fingerprint.NewStore(database)
	manager, err := index.NewManager(store, fingerprints, database, mockEmbedder{}, 500, 100, t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	vaultRoot := t.TempDir()
	writer, err := vault.NewWriter(vaultRoot)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	provider := &stubLLM{response: summaryJSON}
	orchestrator := capture.NewOrchestrator(
		scraper.New("", "clipvault-test", 5*time.Second),
		summarizer.NewClient(provider, "stub", 24000, 4000, time.Minute),
		writer, manager, fingerprints, vaultRoot,
		capture.RetryPolicy{MaxAttempts: 1},
	)
	engine := query.NewEngine(manager, provider, "stub", 5, 12000, time.Minute)

	return New(Config{
		Port:      0,
		VaultPath: vaultRoot,
		APIToken:  apiToken,
	}, orchestrator, engine, manager)
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, "GET", "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Vault != "ok" || body.Index != "ok" {
		t.Errorf("health = %+v", body)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, "secret-token")

	// Protected route without a token.
	if w := doJSON(t, srv, "GET", "/api/stats", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("stats without token: %d, want 401", w.Code)
	}
	// Wrong token.
	if w := doJSON(t, srv, "GET", "/api/stats", "wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("stats with wrong token: %d, want 401", w.Code)
	}
	// Correct token.
	if w := doJSON(t, srv, "GET", "/api/stats", "secret-token", nil); w.Code != http.StatusOK {
		t.Errorf("stats with token: %d, want 200", w.Code)
	}
	// Query stays open.
	if w := doJSON(t, srv, "POST", "/api/query", "", map[string]string{"question": "anything"}); w.Code != http.StatusOK {
		t.Errorf("query without token: %d, want 200", w.Code)
	}
	// Health stays open.
	if w := doJSON(t, srv, "GET", "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("health without token: %d, want 200", w.Code)
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	srv := newTestServer(t, "")
	if w := doJSON(t, srv, "GET", "/api/stats", "", nil); w.Code != http.StatusOK {
		t.Errorf("stats with auth disabled: %d, want 200", w.Code)
	}
}

func TestCaptureEndpoint(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML)
	}))
	defer page.Close()

	srv := newTestServer(t, "")
	w := doJSON(t, srv, "POST", "/api/capture", "", map[string]string{"url": page.URL})
	if w.Code != http.StatusOK {
		t.Fatalf("capture: %d body=%s", w.Code, w.Body.String())
	}

	var result capture.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Stage != capture.StageIndexed || !result.Indexed {
		t.Errorf("result = %+v", result)
	}
	if result.Title != "Served Page" {
		t.Errorf("title = %q", result.Title)
	}
}

func TestCaptureEndpoint_BadRequests(t *testing.T) {
	srv := newTestServer(t, "")

	if w := doJSON(t, srv, "POST", "/api/capture", "", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing url: %d, want 400", w.Code)
	}
	if w := doJSON(t, srv, "POST", "/api/capture", "", map[string]string{"url": "ftp://nope"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid url: %d, want 400", w.Code)
	}
}

func TestQueryEndpoint_NoKnowledge(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/query", "", map[string]string{"question": "what do I know?"})
	if w.Code != http.StatusOK {
		t.Fatalf("query: %d", w.Code)
	}
	var answer query.Answer
	if err := json.Unmarshal(w.Body.Bytes(), &answer); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !answer.NoKnowledge {
		t.Errorf("expected no-knowledge answer, got %+v", answer)
	}
}

func TestQueryEndpoint_MissingQuestion(t *testing.T) {
	srv := newTestServer(t, "")
	if w := doJSON(t, srv, "POST", "/api/query", "", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("blank question: %d, want 400", w.Code)
	}
}

func TestReindexEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	// Put one captured note into the vault directly.
	writer, err := vault.NewWriter(srv.cfg.VaultPath)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	doc := &vault.Document{
		URL:         "https://example.com/a",
		Title:       "Note A",
		ContentHash: fingerprint.Fingerprint("note a content"),
		CapturedAt:  time.Now().UTC().Truncate(time.Second),
		SummarySt:   vault.SummaryOK,
		RawText:     "note a content",
	}
	if _, err := writer.Write(doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	w := doJSON(t, srv, "POST", "/api/reindex", "", reindexRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("reindex: %d body=%s", w.Code, w.Body.String())
	}
	var resp reindexResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Added != 1 {
		t.Errorf("added = %d, want 1", resp.Added)
	}

	// Second pass: nothing changed.
	w = doJSON(t, srv, "POST", "/api/reindex", "", reindexRequest{})
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Added != 0 || resp.Updated != 0 || resp.Removed != 0 {
		t.Errorf("idempotent reindex reported changes: %+v", resp.ReconcileResult)
	}
}

func TestStatsEndpoint(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML)
	}))
	defer page.Close()

	srv := newTestServer(t, "")
	if w := doJSON(t, srv, "POST", "/api/capture", "", map[string]string{"url": page.URL}); w.Code != http.StatusOK {
		t.Fatalf("capture: %d", w.Code)
	}

	w := doJSON(t, srv, "GET", "/api/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	var stats statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Documents != 1 || stats.Passages == 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Embedder != "mock" {
		t.Errorf("embedder = %q", stats.Embedder)
	}
	if !strings.Contains(stats.VaultPath, "/") {
		t.Errorf("vault path = %q", stats.VaultPath)
	}
}
