package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question across everything in the vault",
	Long: `Embeds the question, retrieves the most relevant note passages and asks
the configured LLM for an answer grounded in, and cited against, your
captured content.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("top-k", 0, "number of passages to retrieve (0 = config default)")
	queryCmd.Flags().Bool("json", false, "output the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer a.Close(ctx)

	answer, err := a.engine.Query(ctx, args[0], topK)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range answer.Sources {
			fmt.Printf("  [%d] %s (%s) score=%.3f\n", i+1, src.Title, src.URL, src.Score)
		}
	}
	return nil
}
