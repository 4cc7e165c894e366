package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karimfahmy/clipvault/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP capture and query server",
	Long: `Starts an HTTP server exposing capture, query, reindex and stats
endpoints, for browser extensions and other local tooling. Set
server.api_token in the config to require a bearer token on writes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (0 = config default)")
	serveCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	allowAll, _ := cmd.Flags().GetBool("allow-all-origins")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv := server.New(server.Config{
		Port:      port,
		VaultPath: a.cfg.VaultPath,
		Excludes:  a.cfg.Exclude,
		APIToken:  a.cfg.Server.APIToken,
		AllowAll:  allowAll || a.cfg.Server.AllowAll,
	}, a.orchestrator, a.engine, a.indexManager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
