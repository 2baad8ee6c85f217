// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/astralx/identity/internal/config"
	"github.com/astralx/identity/internal/store"
)

// migratorIface wraps the store.Migrator methods the CLI uses.
type migratorIface interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// newMigrator is swappable in tests.
var newMigrator = func(databaseURL string) (migratorIface, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m migratorIface) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m migratorIface) error {
				cmd.Println("Rolling back all migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m migratorIface) error {
				return printMigrationStatus(cmd, m)
			})
		},
	})

	return cmd
}

// withMigrator loads configuration, opens a migrator, and runs fn with it.
func withMigrator(fn func(migratorIface) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	migrator, err := newMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is not actionable here

	return fn(migrator)
}

func printMigrationStatus(cmd *cobra.Command, m migratorIface) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("Current version: none")
	} else {
		cmd.Printf("Current version: %d\n", version)
	}
	if dirty {
		cmd.Println("WARNING: database is in a dirty state; manual intervention required")
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	for _, v := range applied {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil {
			name = "unknown"
		}
		cmd.Printf("  applied: %s\n", name)
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	for _, v := range pending {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil {
			name = "unknown"
		}
		cmd.Printf("  pending: %s\n", name)
	}
	if len(pending) == 0 {
		cmd.Println("Database is up to date")
	}

	return nil
}
