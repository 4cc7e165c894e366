package config

// DefaultExcludes are vault glob patterns skipped during reindex scans.
var DefaultExcludes = []string{
	".clipvault/**",
	".obsidian/**",
	".trash/**",
	"templates/**",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOllama,
		Model:             "llama3",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
		Scraper: ScraperConfig{
			TimeoutSeconds: 30,
			UserAgent:      "Mozilla/5.0 (compatible; clipvault/1.0)",
		},
		Chunk: ChunkConfig{
			MaxChars:     1200,
			OverlapChars: 200,
		},
		Summary: SummaryConfig{
			BudgetChars:    24000,
			TailChars:      4000,
			TimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:        3,
			BackoffBaseSeconds: 2,
		},
		Query: QueryConfig{
			TopK:               5,
			ContextBudgetChars: 12000,
			TimeoutSeconds:     120,
		},
		Server: ServerConfig{
			Port: 7860,
		},
		Exclude: DefaultExcludes,
	}
}
