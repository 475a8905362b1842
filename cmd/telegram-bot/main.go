package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ai-nutritionist/internal/app"
	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/logger"
	"ai-nutritionist/internal/telegram"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Configuration
	cfg, err := config.Load(os.Getenv("NUTRITIONIST_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Storage and services
	a, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Build(ctx); err != nil {
		return err
	}

	// 3. Telegram Bot
	bot, err := telegram.NewBot(cfg.Telegram, telegram.Deps{
		Plans:    a.Plans,
		Ratings:  a.Ratings,
		Shopping: a.Shopping,
		Sessions: telegram.NewSessionRepository(a.Store),
		Usage:    a.Usage,
		DataPath: a.DataPath(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram Bot: %w", err)
	}

	// 4. Serve the webhook until interrupted
	if err := bot.ListenAndServe(ctx, cfg.Server.Address(), cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	log.Info("Server exiting", zap.String("address", cfg.Server.Address()))
	return nil
}
