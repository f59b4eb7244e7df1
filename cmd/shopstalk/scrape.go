package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

var (
	outputPath  string
	concurrency int
	strategy    string
	skipFailed  bool
	dedupLinks  bool
	fetcherType string
	printJSON   bool
	delay       time.Duration
)

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <category>",
		Short: "Scrape products for a search category",
		Long: `Search the marketplace for the category, scrape every product page found,
drop products without a title, clean review text and write the dataset as CSV.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScrape,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "CSV output path (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "product pages fetched in parallel (default from config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "extraction strategy: css, xpath")
	cmd.Flags().BoolVar(&skipFailed, "skip-failed", false, "skip products that fail instead of aborting")
	cmd.Flags().BoolVar(&dedupLinks, "dedup", false, "drop duplicate product links")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "fetcher: http, browser")
	cmd.Flags().DurationVar(&delay, "delay", 0, "minimum gap between requests to the same site")
	cmd.Flags().BoolVar(&printJSON, "json", false, "print the dataset as JSON on stdout")

	return cmd
}

// applyScrapeOverrides applies command-line flag values to the config.
func applyScrapeOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if concurrency > 0 {
		cfg.Scraper.Concurrency = concurrency
	}
	if strategy != "" {
		cfg.Scraper.Strategy = strings.ToLower(strategy)
	}
	if skipFailed {
		cfg.Scraper.FailurePolicy = "skip"
	}
	if dedupLinks {
		cfg.Scraper.DedupLinks = true
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if delay > 0 {
		cfg.Scraper.PoliteDelay = delay
	}
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	category := strings.Join(args, " ")

	cfg, err := loadConfig(applyScrapeOverrides)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	defer cleanup()

	logger.Info("starting scrape",
		"category", category,
		"concurrency", cfg.Scraper.Concurrency,
		"strategy", cfg.Scraper.Strategy,
		"output", cfg.Storage.OutputPath,
	)

	start := time.Now()
	ds, err := app.Scrape(ctx, category)
	var se *types.StorageError
	switch {
	case err != nil && ds != nil && errors.As(err, &se):
		logger.Error("dataset not saved", "error", err)
	case err != nil:
		return fmt.Errorf("scrape failed: %w", err)
	}

	if printJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ds.Records); err != nil {
			return err
		}
	} else {
		fmt.Printf("\n✅ Scrape complete in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Category:  %s\n", category)
		fmt.Printf("   Products:  %d kept, %d dropped\n", ds.Len(), ds.Dropped)
		fmt.Printf("   Output:    %s\n", ds.Path)
		if ds.Len() == 0 {
			fmt.Println("\n💡 No products were found. The search page may have blocked the request;")
			fmt.Println("   try again later or use --fetcher browser.")
		}
	}

	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	return nil
}
