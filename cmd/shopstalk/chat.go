package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ShopStalk/internal/config"
)

var sessionID string

// chatCmd creates the "chat" subcommand.
func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question about the ingested products",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChat,
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id for multi-turn history (needs REDIS_URL)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.RequireChat(cfg); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	logger := setupLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	defer cleanup()

	svc, err := app.Chat(ctx)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	answer, err := svc.Answer(ctx, sessionID, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	fmt.Println(answer)
	return nil
}
