package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nashra-hq/nashra-dispatch/internal/app"
	"github.com/nashra-hq/nashra-dispatch/internal/config"
	"github.com/nashra-hq/nashra-dispatch/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dispatch start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log := logger.Default()

	logger.InfoObj("dispatch starting", "app_meta", map[string]any{
		"app_name": cfg.AppName,
		"env":      cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, err := app.NewDispatcher(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize dispatcher", "error", err.Error())
		return err
	}

	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher run: %w", err)
	}

	return nil
}
