package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result
// to path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to clipvault! Let's set up your vault.")
	fmt.Println()

	cfg := DefaultConfig()

	vaultPrompt := promptui.Prompt{
		Label:   "Vault directory (markdown notes will be written here)",
		Default: defaultVaultGuess(),
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("vault path is required")
			}
			return nil
		},
	}
	vaultPath, err := vaultPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vault path: %w", err)
	}
	cfg.VaultPath = vaultPath
	cfg.DataDir = filepath.Join(vaultPath, ".clipvault")

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"ollama", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider

	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.Model = "gpt-4o-mini"
		cfg.EmbeddingModel = "text-embedding-3-small"
		if os.Getenv("OPENAI_API_KEY") == "" {
			fmt.Println("\nNote: set OPENAI_API_KEY before running capture or query.")
		}
	case ProviderOllama:
		cfg.Model = "llama3"
		cfg.EmbeddingModel = "nomic-embed-text"
	}

	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: cfg.Model,
	}
	if model, err := modelPrompt.Run(); err == nil && model != "" {
		cfg.Model = model
	}

	portPrompt := promptui.Prompt{
		Label:   "API server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			_, err := strconv.Atoi(s)
			return err
		},
	}
	if portStr, err := portPrompt.Run(); err == nil {
		cfg.Server.Port, _ = strconv.Atoi(portStr)
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// defaultVaultGuess looks for a sibling Obsidian vault before falling back
// to ./vault.
func defaultVaultGuess() string {
	home, err := os.UserHomeDir()
	if err == nil {
		for _, candidate := range []string{"Obsidian", "vault", "Notes"} {
			p := filepath.Join(home, candidate)
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				return p
			}
		}
	}
	return "./vault"
}
