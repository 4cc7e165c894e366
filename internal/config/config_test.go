package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("default provider = %q", cfg.Provider)
	}
	if cfg.Chunk.MaxChars != 1200 || cfg.Chunk.OverlapChars != 200 {
		t.Errorf("unexpected chunk defaults: %+v", cfg.Chunk)
	}
	if cfg.Server.Port != 7860 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if len(cfg.Exclude) == 0 {
		t.Error("default excludes missing")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".clipvault.yml")

	orig := DefaultConfig()
	orig.VaultPath = filepath.Join(dir, "vault")
	orig.Provider = ProviderOpenAI
	orig.Model = "gpt-4o-mini"
	orig.Query.TopK = 8
	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.VaultPath != orig.VaultPath {
		t.Errorf("vault_path = %q, want %q", loaded.VaultPath, orig.VaultPath)
	}
	if loaded.Provider != ProviderOpenAI || loaded.Model != "gpt-4o-mini" {
		t.Errorf("provider/model did not round-trip: %q/%q", loaded.Provider, loaded.Model)
	}
	if loaded.Query.TopK != 8 {
		t.Errorf("query.top_k = %d, want 8", loaded.Query.TopK)
	}
}

func TestLoadDataDirDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".clipvault.yml")
	if err := os.WriteFile(path, []byte("vault_path: /notes/vault\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join("/notes/vault", ".clipvault")
	if cfg.DataDir != want {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, want)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLIPVAULT_MODEL", "mistral")
	t.Setenv("CLIPVAULT_SERVER__PORT", "9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "mistral" {
		t.Errorf("model = %q, want env override mistral", cfg.Model)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want env override 9999", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.VaultPath = "/tmp/vault"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing vault", func(c *Config) { c.VaultPath = "" }, "vault_path"},
		{"bad provider", func(c *Config) { c.Provider = "banana" }, "invalid provider"},
		{"missing model", func(c *Config) { c.Model = "" }, "model"},
		{"bad embedding provider", func(c *Config) { c.EmbeddingProvider = "banana" }, "embedding_provider"},
		{"zero chunk size", func(c *Config) { c.Chunk.MaxChars = 0 }, "max_chars"},
		{"overlap too big", func(c *Config) { c.Chunk.OverlapChars = c.Chunk.MaxChars }, "overlap"},
		{"tail exceeds budget", func(c *Config) { c.Summary.TailChars = c.Summary.BudgetChars }, "tail_chars"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"zero top-k", func(c *Config) { c.Query.TopK = 0 }, "top_k"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("openai env var = %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("ollama should need no key, got %q", got)
	}
}
