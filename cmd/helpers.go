package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/karimfahmy/clipvault/internal/capture"
	"github.com/karimfahmy/clipvault/internal/config"
	"github.com/karimfahmy/clipvault/internal/db"
	"github.com/karimfahmy/clipvault/internal/embeddings"
	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/llm"
	"github.com/karimfahmy/clipvault/internal/query"
	"github.com/karimfahmy/clipvault/internal/scraper"
	"github.com/karimfahmy/clipvault/internal/summarizer"
	"github.com/karimfahmy/clipvault/internal/vault"
	"github.com/karimfahmy/clipvault/internal/vectordb"
)

const ollamaEmbeddingDims = 768

// app holds the wired dependency graph shared by the capture, query,
// reindex, stats and serve commands.
type app struct {
	cfg          *config.Config
	database     *db.DB
	fingerprints *fingerprint.Store
	indexManager *index.Manager
	orchestrator *capture.Orchestrator
	engine       *query.Engine
}

// openApp builds the full pipeline from config. The caller must Close.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "clipvault.db"))
	if err != nil {
		return nil, err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	fingerprints := fingerprint.NewStore(database)
	indexManager, err := index.NewManager(store, fingerprints, database, embedder,
		cfg.Chunk.MaxChars, cfg.Chunk.OverlapChars, cfg.DataDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	summarizeClient := summarizer.NewClient(provider, cfg.Model,
		cfg.Summary.BudgetChars, cfg.Summary.TailChars,
		time.Duration(cfg.Summary.TimeoutSeconds)*time.Second)

	scrapeAdapter := scraper.New(cfg.Scraper.ReaderBaseURL, cfg.Scraper.UserAgent,
		time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second)

	writer, err := vault.NewWriter(cfg.VaultPath)
	if err != nil {
		database.Close()
		return nil, err
	}

	retry := capture.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffBase: time.Duration(cfg.Retry.BackoffBaseSeconds * float64(time.Second)),
	}

	orchestrator := capture.NewOrchestrator(scrapeAdapter, summarizeClient, writer,
		indexManager, fingerprints, cfg.VaultPath, retry)

	engine := query.NewEngine(indexManager, provider, cfg.Model,
		cfg.Query.TopK, cfg.Query.ContextBudgetChars,
		time.Duration(cfg.Query.TimeoutSeconds)*time.Second)

	return &app{
		cfg:          cfg,
		database:     database,
		fingerprints: fingerprints,
		indexManager: indexManager,
		orchestrator: orchestrator,
		engine:       engine,
	}, nil
}

// Close persists the index and releases the database.
func (a *app) Close(ctx context.Context) {
	if err := a.indexManager.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: persisting index: %v\n", err)
	}
	a.database.Close()
}

// scanVault reads every captured note, reporting parse failures on
// stderr without aborting.
func (a *app) scanVault() []*vault.Document {
	docs, errs := vault.Scan(a.cfg.VaultPath, a.cfg.Exclude)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return docs
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, ollamaEmbeddingDims, os.Getenv("OLLAMA_HOST")), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `clipvault init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}
