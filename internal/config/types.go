package config

// ProviderType identifies an LLM or embedding backend.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level clipvault configuration, corresponding to .clipvault.yml.
type Config struct {
	VaultPath string `yaml:"vault_path" koanf:"vault_path"`
	// DataDir holds the sqlite database and the persisted vector store.
	// Defaults to <vault_path>/.clipvault when empty.
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`

	Scraper ScraperConfig `yaml:"scraper" koanf:"scraper"`
	Chunk   ChunkConfig   `yaml:"chunk" koanf:"chunk"`
	Summary SummaryConfig `yaml:"summary" koanf:"summary"`
	Retry   RetryConfig   `yaml:"retry" koanf:"retry"`
	Query   QueryConfig   `yaml:"query" koanf:"query"`
	Server  ServerConfig  `yaml:"server" koanf:"server"`

	// Exclude lists doublestar glob patterns, relative to the vault root,
	// that the reindex scan skips (the data dir is always skipped).
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}

// ScraperConfig controls the two scraping strategies.
type ScraperConfig struct {
	// ReaderBaseURL is the base URL of a markdown reader service
	// (e.g. https://r.jina.ai). Empty disables the remote strategy.
	ReaderBaseURL  string `yaml:"reader_base_url" koanf:"reader_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent" koanf:"user_agent"`
}

// ChunkConfig controls passage sizing for the vector index.
type ChunkConfig struct {
	MaxChars     int `yaml:"max_chars" koanf:"max_chars"`
	OverlapChars int `yaml:"overlap_chars" koanf:"overlap_chars"`
}

// SummaryConfig controls the summarization call.
type SummaryConfig struct {
	// BudgetChars is the maximum content length sent to the model. Longer
	// content is truncated head+tail: the first BudgetChars-TailChars and
	// the last TailChars characters are kept.
	BudgetChars    int `yaml:"budget_chars" koanf:"budget_chars"`
	TailChars      int `yaml:"tail_chars" koanf:"tail_chars"`
	TimeoutSeconds int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// RetryConfig is the shared retry policy applied by the capture orchestrator
// to transient upstream failures.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" koanf:"max_attempts"`
	BackoffBaseSeconds float64 `yaml:"backoff_base_seconds" koanf:"backoff_base_seconds"`
}

// QueryConfig controls the retrieval side.
type QueryConfig struct {
	TopK int `yaml:"top_k" koanf:"top_k"`
	// ContextBudgetChars caps the combined passage text handed to the LLM;
	// lowest-ranked passages are dropped first.
	ContextBudgetChars int `yaml:"context_budget_chars" koanf:"context_budget_chars"`
	TimeoutSeconds     int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port" koanf:"port"`
	// APIToken, when set, is required as a bearer token on capture,
	// reindex and stats. Query stays open.
	APIToken string `yaml:"api_token" koanf:"api_token"`
	AllowAll bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
