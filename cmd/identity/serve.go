// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/astralx/identity/internal/config"
	"github.com/astralx/identity/internal/httpapi"
	"github.com/astralx/identity/internal/identity"
	"github.com/astralx/identity/internal/identity/postgres"
	"github.com/astralx/identity/internal/logging"
	"github.com/astralx/identity/internal/mail"
	"github.com/astralx/identity/internal/observability"
	"github.com/astralx/identity/internal/store"
)

var autoMigrate bool

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity HTTP API",
		Long: `Start the identity service: connects to PostgreSQL, then serves the
authentication API and the metrics/health endpoints until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run pending migrations before serving")
	cmd.Flags().String("server.addr", "", "API listen address")
	cmd.Flags().String("observability.addr", "", "metrics/health listen address (empty = config default)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (json or text)")

	return cmd
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields fall back to the production implementations.
type ServeDeps struct {
	// BuildAuth assembles the auth service and token issuer. The returned
	// cleanup function releases the database pool.
	BuildAuth func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (httpapi.AuthService, *identity.TokenIssuer, func(), error)

	// MigrateUp applies all pending migrations.
	MigrateUp func(databaseURL string) error

	// APIServerFactory creates the HTTP API server.
	APIServerFactory func(auth httpapi.AuthService, issuer *identity.TokenIssuer, opts httpapi.Options, logger *slog.Logger) (APIServer, error)

	// ObservabilityServerFactory creates the metrics/health server.
	ObservabilityServerFactory func(addr string) ObservabilityServer
}

// APIServer wraps the methods used from httpapi.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func defaultBuildAuth(ctx context.Context, cfg *config.Config, logger *slog.Logger) (httpapi.AuthService, *identity.TokenIssuer, func(), error) {
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}

	issuer, err := identity.NewTokenIssuer(
		[]byte(cfg.Auth.AccessSecret), []byte(cfg.Auth.RefreshSecret),
		cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL,
	)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	var notifier identity.Notifier
	if cfg.Mail.SMTPAddr == "" {
		logger.Warn("no SMTP address configured, mail is logged instead of sent")
		notifier = mail.NewLogNotifier(logger)
	} else {
		notifier, err = mail.NewSMTPNotifier(cfg.Mail.SMTPAddr, cfg.Mail.From, cfg.Mail.BaseURL, logger)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
	}

	service, err := identity.NewService(
		postgres.NewAccountRepository(pool),
		postgres.NewRefreshSessionRepository(pool),
		postgres.NewPasswordResetRepository(pool),
		identity.NewBcryptHasher(),
		issuer,
		notifier,
		logger,
	)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return service, issuer, pool.Close, nil
}

func defaultMigrateUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	return migrator.Up()
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, the production implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BuildAuth == nil {
		deps.BuildAuth = defaultBuildAuth
	}
	if deps.MigrateUp == nil {
		deps.MigrateUp = defaultMigrateUp
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(auth httpapi.AuthService, issuer *identity.TokenIssuer, opts httpapi.Options, logger *slog.Logger) (APIServer, error) {
			return httpapi.NewServer(auth, issuer, opts, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string) ObservabilityServer {
			return observability.NewServer(addr, func() bool { return true })
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("identity", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	if autoMigrate {
		logger.Info("running migrations")
		if err := deps.MigrateUp(cfg.Database.URL); err != nil {
			return oops.Code("MIGRATION_FAILED").
				With("operation", "auto-migrate").
				Wrap(err)
		}
	}

	auth, issuer, cleanup, err := deps.BuildAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Observability.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Observability.Addr)
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVER_START_FAILED").
				With("operation", "start observability server").
				Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiServer, err := deps.APIServerFactory(auth, issuer, httpapi.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Metrics:      metrics,
	}, logger)
	if err != nil {
		return err
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").
			With("operation", "start api server").
			Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Identity service started")
	logger.Info("identity service ready", "api_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a server reports an error,
// so one failing listener brings the whole process down gracefully. It
// exits when an error arrives, the channel closes, or the context ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
