package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karimfahmy/clipvault/internal/capture"
)

var captureCmd = &cobra.Command{
	Use:   "capture [url]",
	Short: "Capture a web page into the vault",
	Long: `Scrapes the page, summarizes it, writes a markdown note into the vault
and indexes it for semantic search. Re-capturing unchanged content only
refreshes the note's captured_at timestamp.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().Bool("json", false, "output the result as JSON")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer a.Close(ctx)

	result, err := a.orchestrator.Capture(ctx, args[0])
	if err != nil {
		var ce *capture.Error
		if errors.As(err, &ce) && ce.PartialPath != "" {
			fmt.Fprintf(os.Stderr, "Note was written to %s but indexing failed; run `clipvault reindex` later.\n", ce.PartialPath)
		}
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Deduplicated {
		fmt.Printf("Already captured as %s (timestamp refreshed)\n", result.DocumentID)
		return nil
	}
	fmt.Printf("Captured %q -> %s\n", result.Title, result.Path)
	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", result.Warning)
	}
	return nil
}
