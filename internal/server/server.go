package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/karimfahmy/clipvault/internal/capture"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/query"
)

// Config holds server configuration.
type Config struct {
	Port      int
	VaultPath string
	Excludes  []string
	APIToken  string // empty disables auth on protected routes
	AllowAll  bool   // allow all CORS origins (dev mode)
}

// Server exposes the capture pipeline and query engine over HTTP.
type Server struct {
	cfg          Config
	orchestrator *capture.Orchestrator
	engine       *query.Engine
	indexManager *index.Manager
	router       chi.Router
	httpServer   *http.Server
}

// New creates a server with all dependencies.
func New(cfg Config, orchestrator *capture.Orchestrator, engine *query.Engine, indexManager *index.Manager) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		engine:       engine,
		indexManager: indexManager,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)

	// Query stays open: reading the vault is the low-stakes operation,
	// and browser extensions hit it without credential plumbing. Writes
	// require the token when one is configured.
	r.Post("/api/query", s.handleQuery)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/api/capture", s.handleCapture)
		r.Post("/api/reindex", s.handleReindex)
		r.Get("/api/stats", s.handleStats)
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("clipvault server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
