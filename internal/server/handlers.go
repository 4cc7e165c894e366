package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/karimfahmy/clipvault/internal/capture"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/scraper"
	"github.com/karimfahmy/clipvault/internal/vault"
)

type captureRequest struct {
	URL string `json:"url"`
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type reindexRequest struct {
	Force bool `json:"force,omitempty"`
}

type reindexResponse struct {
	index.ReconcileResult
	SummariesRetried int `json:"summaries_retried"`
	ParseErrors      int `json:"parse_errors,omitempty"`
}

type statsResponse struct {
	Documents int    `json:"documents"`
	Passages  int    `json:"passages"`
	Embedder  string `json:"embedder"`
	VaultPath string `json:"vault_path"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
	Path  string `json:"path,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Vault     string `json:"vault"`
	Index     string `json:"index"`
	Documents int    `json:"documents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Vault: "ok", Index: "ok"}

	if _, err := os.Stat(s.cfg.VaultPath); err != nil {
		resp.Status = "degraded"
		resp.Vault = "missing"
	}
	if stats, err := s.indexManager.Stats(); err != nil {
		resp.Status = "degraded"
		resp.Index = "unreachable"
	} else {
		resp.Documents = stats.Documents
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a non-empty url field"})
		return
	}

	result, err := s.orchestrator.Capture(r.Context(), req.URL)
	if err != nil {
		status, resp := captureErrorResponse(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a non-empty question field"})
		return
	}

	answer, err := s.engine.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, index.ErrIndexCorrupt) {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if r.Body != nil {
		// Body is optional; a bare POST means an incremental pass.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	docs, parseErrs := vault.Scan(s.cfg.VaultPath, s.cfg.Excludes)
	for _, perr := range parseErrs {
		log.Printf("server: reindex scan: %v", perr)
	}

	var resp reindexResponse
	resp.ParseErrors = len(parseErrs)

	if req.Force {
		if err := s.indexManager.RebuildAll(r.Context(), docs, nil); err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		resp.Added = len(docs)
	} else {
		result, err := s.indexManager.Reconcile(r.Context(), docs)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		resp.ReconcileResult = result
		resp.SummariesRetried = s.orchestrator.RetryPendingSummaries(r.Context(), docs)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexManager.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Documents: stats.Documents,
		Passages:  stats.Passages,
		Embedder:  stats.Embedder,
		VaultPath: s.cfg.VaultPath,
	})
}

// captureErrorResponse maps pipeline failures to HTTP statuses: caller
// mistakes are 4xx, upstream trouble is 502/504, and a note that was
// written but not indexed reports its path so nothing silently vanishes.
func captureErrorResponse(err error) (int, errorResponse) {
	var ce *capture.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}

	resp := errorResponse{
		Error: ce.Error(),
		Kind:  ce.Kind,
		Stage: string(ce.Stage),
		Path:  ce.PartialPath,
	}

	switch ce.Kind {
	case string(scraper.KindInvalidURL):
		return http.StatusBadRequest, resp
	case string(scraper.KindTimeout):
		return http.StatusGatewayTimeout, resp
	case string(scraper.KindEmptyContent):
		return http.StatusUnprocessableEntity, resp
	default:
		return http.StatusBadGateway, resp
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}
