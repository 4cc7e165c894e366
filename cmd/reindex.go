package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karimfahmy/clipvault/internal/progress"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Reconcile the vector index with the vault",
	Long: `Scans the vault for captured notes, indexes new and changed ones, purges
entries for deleted notes and retries summaries that failed at capture
time. With --force the index is rebuilt from scratch, which is the way
out after switching embedding models.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().Bool("force", false, "discard the index and rebuild every note")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	a, err := openApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer a.Close(ctx)

	return a.reindex(ctx, force)
}

// reindex rebuilds or reconciles the index from the current vault state.
// An empty vault still runs the index operation: reindexing against zero
// notes is what purges stale entries after the last note is deleted.
func (a *app) reindex(ctx context.Context, force bool) error {
	docs := a.scanVault()

	if force {
		reporter := progress.NewReporter()
		reporter.Start(len(docs))
		err := a.indexManager.RebuildAll(ctx, docs, func(done, total int) {
			reporter.Update(done, fmt.Sprintf("%d/%d", done, total))
		})
		reporter.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt index over %d notes.\n", len(docs))
		return nil
	}

	result, err := a.indexManager.Reconcile(ctx, docs)
	if err != nil {
		return err
	}
	retried := a.orchestrator.RetryPendingSummaries(ctx, docs)

	fmt.Printf("Reindex done: %d added, %d updated, %d removed", result.Added, result.Updated, result.Removed)
	if retried > 0 {
		fmt.Printf(", %d summaries recovered", retried)
	}
	fmt.Println(".")
	return nil
}
