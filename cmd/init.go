package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karimfahmy/clipvault/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a clipvault config file interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			return fmt.Errorf("%s already exists; edit it directly or remove it first", cfgFile)
		}

		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}

		fmt.Println("Capture your first page with `clipvault capture <url>`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
