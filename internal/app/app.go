package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/amparena/internal/auth"
	"github.com/kirinyoku/amparena/internal/config"
	"github.com/kirinyoku/amparena/internal/observability"
	"github.com/kirinyoku/amparena/internal/service/signups"
	httpgin "github.com/kirinyoku/amparena/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const serviceName = "amparena"

type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	core          *Core
	httpServer    *http.Server
	scheduler     *signups.Scheduler
	shutdownTrace func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	shutdownTrace, err := observability.SetupOTel(ctx, cfg.Telemetry.OTLPEndpoint, serviceName)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to initialize tracing: %w", op, err)
	}

	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTrace(ctx)
		return nil, err
	}

	if cfg.Auth.TicketsPasscode == "" || cfg.Auth.CompetitorsPasscode == "" {
		logger.Warn("admin passcode not set; the matching admin area rejects every login")
	}

	authManager := auth.NewManager(auth.Config{
		Secret:              cfg.Auth.SessionSecret,
		TTL:                 cfg.Auth.SessionTTL,
		TicketsPasscode:     cfg.Auth.TicketsPasscode,
		CompetitorsPasscode: cfg.Auth.CompetitorsPasscode,
	})

	opts := httpgin.Options{
		Auth:           authManager,
		Idempotency:    core.Idempotency,
		Activity:       core.Activity,
		PublishableKey: cfg.Stripe.PublishableKey,
	}
	if core.LocalFiles != nil {
		opts.UploadsDir = cfg.Uploads.Dir
		opts.UploadsPath = cfg.Uploads.PublicBaseURL
	}

	router := httpgin.NewRouter(core.Services, opts, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		core:   core,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		scheduler:     signups.NewScheduler(core.Services.Signups, cfg.Notifier.Interval, logger),
		shutdownTrace: shutdownTrace,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Signup notifier
	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	runErr := g.Wait()

	ctx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()

	return errors.Join(runErr, a.core.Close(), a.shutdownTrace(ctx))
}
