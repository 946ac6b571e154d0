package main

import (
	"context"
	"os"

	_ "github.com/kirinyoku/amparena/docs"
	"github.com/kirinyoku/amparena/internal/app"
	"github.com/kirinyoku/amparena/internal/config"
	"github.com/kirinyoku/amparena/internal/observability"
)

// @title Amp Arena API
// @version 1.0
// @description Ticket sales, signups and competitor registration for Amp Arena.
// @host localhost:3000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.New()
	if err != nil {
		observability.NewLogger(os.Stderr, "info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
