// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/astralx/identity/internal/config"
	"github.com/astralx/identity/internal/identity/postgres"
	"github.com/astralx/identity/internal/store"
)

// purger removes expired rows and reports how many were deleted.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// buildPurgers is swappable in tests.
var buildPurgers = func(ctx context.Context, databaseURL string) (sessions, resets purger, cleanup func(), err error) {
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewRefreshSessionRepository(pool),
		postgres.NewPasswordResetRepository(pool),
		pool.Close, nil
}

// NewPurgeCmd creates the purge subcommand. Intended to run from cron:
// revoked sessions are kept until expiry for auditing, everything past
// expiry is garbage.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired refresh sessions and password reset grants",
		RunE:  runPurge,
	}
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()
	sessions, resets, cleanup, err := buildPurgers(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer cleanup()

	purgedSessions, err := sessions.PurgeExpired(ctx)
	if err != nil {
		return oops.Code("PURGE_FAILED").
			With("operation", "purge refresh sessions").
			Wrap(err)
	}

	purgedResets, err := resets.PurgeExpired(ctx)
	if err != nil {
		return oops.Code("PURGE_FAILED").
			With("operation", "purge reset grants").
			Wrap(err)
	}

	cmd.Printf("Purged %d expired sessions and %d expired reset grants\n", purgedSessions, purgedResets)
	return nil
}
