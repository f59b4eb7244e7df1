package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ShopStalk/internal/config"
)

var datasetPath string

// ingestCmd creates the "ingest" subcommand.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the scraped dataset into the vector store",
		Long: `Read the CSV dataset, turn every product into a document (reviews as content,
the other columns as metadata), embed it and insert it into PostgreSQL/pgvector.

Requires OPENAI_API_KEY and DATABASE_URL (or the matching config keys).`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}
	cmd.Flags().StringVarP(&datasetPath, "input", "i", "", "dataset CSV path (default from config)")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if datasetPath != "" {
			c.Storage.OutputPath = datasetPath
		}
	})
	if err != nil {
		return err
	}
	if err := config.RequireIngest(cfg); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	logger := setupLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	defer cleanup()

	res, err := app.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Printf("Successfully inserted %d documents into %s\n", len(res.IDs), cfg.Ingest.Table)
	return nil
}
