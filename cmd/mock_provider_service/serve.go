package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	grpcadapter "github.com/aradsms/mock_provider/internal/mock_provider_service/adapters/grpc"
	natsadapter "github.com/aradsms/mock_provider/internal/mock_provider_service/adapters/nats"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/app"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/repository/memory"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/repository/postgres"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/repository/sqlite"
	httptransport "github.com/aradsms/mock_provider/internal/mock_provider_service/transport/http"
	"github.com/aradsms/mock_provider/internal/platform/config"
	"github.com/aradsms/mock_provider/internal/platform/database"
	"github.com/aradsms/mock_provider/internal/platform/logger"
	"github.com/aradsms/mock_provider/internal/platform/messagebroker"
)

const natsClientName = "mock-provider-service"

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mock provider HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			appLogger := logger.New(cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(appLogger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, appLogger)
		},
	}
}

// openRepository connects the configured storage backend.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (domain.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.NewDBPool(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRepository(pool, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	case "sqlite":
		db, err := database.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		repo, err := sqlite.NewRepository(db, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// components is the wired application graph behind the HTTP surface.
type components struct {
	repo      domain.Repository
	scheduler *app.Scheduler
	handler   http.Handler
}

func buildComponents(cfg *config.Config, repo domain.Repository, publisher app.EventPublisher, log *slog.Logger) *components {
	tw := cfg.Twilio

	webhooks := app.NewWebhookClient(repo, log)
	retrier := app.NewRetrier(webhooks, app.RetryPolicy{
		MaxAttempts: tw.Callbacks.RetryAttempts,
		Delay:       tw.Callbacks.RetryDelay(),
	}, app.SleepContext, log)

	driverOpts := []app.DriverOption{}
	if publisher != nil {
		driverOpts = append(driverOpts, app.WithEventPublisher(publisher))
	}
	driver := app.NewProgressionDriver(repo, retrier, app.ProgressionSettings{
		AccountSID:        tw.AccountSID,
		CallbacksEnabled:  tw.Callbacks.Enabled,
		StatusDelay:       tw.Callbacks.Delay(),
		FailureNumbers:    app.NewNumberSet(tw.FailureNumbers...),
		RegisteredNumbers: app.NewNumberSet(tw.RegisteredNumbers...),
	}, log, driverOpts...)
	scheduler := app.NewScheduler(driver, log)

	validator := app.NewRequestValidator(app.ValidationSettings{
		RequireParameters:   tw.Validation.RequireParameters,
		ValidatePhoneFormat: tw.Validation.ValidatePhoneFormat,
		CheckFromNumbers:    tw.Validation.CheckFromNumbers,
		AllowedFromNumbers:  app.NewNumberSet(tw.AllowedFromNumbers...),
	})
	service := app.NewProviderService(repo, scheduler, validator, tw.AccountSID, log)

	twilioHandler := httptransport.NewTwilioHandler(service, httptransport.AuthSettings{
		Required:   tw.Validation.RequireAuth,
		AccountSID: tw.AccountSID,
		AuthToken:  tw.AuthToken,
	}, log)
	adminHandler := httptransport.NewAdminHandler(repo, scheduler, cfg.Provider, cfg.Server.Location(), log)

	return &components{
		repo:      repo,
		scheduler: scheduler,
		handler:   httptransport.NewRouter(twilioHandler, adminHandler),
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("Mock provider service starting...",
		"provider", cfg.Provider,
		"database", cfg.Database.Driver,
		"log_level", cfg.Log.Level,
	)
	log.Warn("twilio.default_behavior has no effect; destinations on neither number list are never progressed",
		"default_behavior", cfg.Twilio.DefaultBehavior)
	if len(cfg.Twilio.RegisteredNumbers) == 0 && len(cfg.Twilio.FailureNumbers) == 0 {
		log.Warn("No registered or failure numbers configured; accepted resources will stay queued")
	}

	repo, err := openRepository(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close repository", "error", err)
		}
	}()
	log.Info("Repository ready", "driver", cfg.Database.Driver)

	var publisher app.EventPublisher
	if cfg.NATS.URL != "" {
		natsClient, err := messagebroker.NewNatsClient(cfg.NATS.URL, natsClientName, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()
		publisher = natsadapter.NewEventPublisher(natsClient, cfg.NATS.SubjectPrefix)
		log.Info("Publishing delivery events to NATS", "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	c := buildComponents(cfg, repo, publisher, log)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           c.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var health *grpcadapter.HealthServer
	var grpcListener net.Listener
	if cfg.Server.GRPCPort > 0 {
		grpcListener, err = net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		health = grpcadapter.NewHealthServer(log)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if health != nil {
		g.Go(func() error { return health.Serve(grpcListener) })
		health.SetServing(true)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down mock provider service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancel()

		if health != nil {
			health.SetServing(false)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
		if err := c.scheduler.Shutdown(shutdownCtx); err != nil {
			log.Warn("Progression runs cancelled before completion", "error", err, "in_flight", c.scheduler.InFlight())
		}
		if health != nil {
			health.Stop(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Mock provider service shut down successfully.")
	return nil
}
