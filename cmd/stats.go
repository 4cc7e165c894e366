package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault and index statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output stats as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer a.Close(ctx)

	stats, err := a.indexManager.Stats()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"documents":  stats.Documents,
			"passages":   stats.Passages,
			"embedder":   stats.Embedder,
			"vault_path": a.cfg.VaultPath,
		})
	}

	fmt.Printf("Vault:     %s\n", a.cfg.VaultPath)
	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Passages:  %d\n", stats.Passages)
	fmt.Printf("Embedder:  %s\n", stats.Embedder)
	return nil
}
