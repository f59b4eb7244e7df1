package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ShopStalk/internal/config"
)

var port int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the REST API:

  POST /api/scrape/{category}   scrape and return the dataset
  POST /api/ingest              load the dataset into the vector store
  POST /api/chat                {"query": "..."} -> {"response": "..."}
  GET  /api/health
  GET  /api/jobs[/{id}]`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if port > 0 {
			c.API.Port = port
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("serve failed: %w", err)
	}
	defer cleanup()

	return app.Server().ListenAndServe(ctx)
}
