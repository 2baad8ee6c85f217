// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralx/identity/pkg/errutil"
)

// fakeMigrator records calls and returns canned results.
type fakeMigrator struct {
	upCalled   bool
	downCalled bool
	upErr      error
	version    uint
	dirty      bool
	applied    []uint
	pending    []uint
	closed     bool
}

func (f *fakeMigrator) Up() error {
	f.upCalled = true
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.downCalled = true
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) AppliedMigrations() ([]uint, error) { return f.applied, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

// swapMigrator installs a fake migrator factory for the test's duration.
func swapMigrator(t *testing.T, fake *fakeMigrator) {
	t.Helper()
	orig := newMigrator
	newMigrator = func(string) (migratorIface, error) { return fake, nil }
	t.Cleanup(func() { newMigrator = orig })
}

func runMigrateCommand(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	configFile = ""
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestMigrateUp(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	fake := &fakeMigrator{}
	swapMigrator(t, fake)

	buf, err := runMigrateCommand(t, "migrate", "up")
	require.NoError(t, err)

	assert.True(t, fake.upCalled)
	assert.True(t, fake.closed)
	assert.Contains(t, buf.String(), "Migrations completed successfully")
}

func TestMigrateUp_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := runMigrateCommand(t, "migrate", "up")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrateDown(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	fake := &fakeMigrator{}
	swapMigrator(t, fake)

	buf, err := runMigrateCommand(t, "migrate", "down")
	require.NoError(t, err)

	assert.True(t, fake.downCalled)
	assert.Contains(t, buf.String(), "Rollback completed")
}

func TestMigrateStatus(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")

	t.Run("partially migrated", func(t *testing.T) {
		fake := &fakeMigrator{version: 2, applied: []uint{1, 2}, pending: []uint{3}}
		swapMigrator(t, fake)

		buf, err := runMigrateCommand(t, "migrate", "status")
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "Current version: 2")
		assert.Contains(t, output, "applied: 000001_accounts")
		assert.Contains(t, output, "applied: 000002_refresh_sessions")
		assert.Contains(t, output, "pending: 000003_password_reset_grants")
	})

	t.Run("up to date", func(t *testing.T) {
		fake := &fakeMigrator{version: 3, applied: []uint{1, 2, 3}}
		swapMigrator(t, fake)

		buf, err := runMigrateCommand(t, "migrate", "status")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Database is up to date")
	})

	t.Run("fresh database", func(t *testing.T) {
		fake := &fakeMigrator{pending: []uint{1, 2, 3}}
		swapMigrator(t, fake)

		buf, err := runMigrateCommand(t, "migrate", "status")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Current version: none")
	})

	t.Run("dirty state warning", func(t *testing.T) {
		fake := &fakeMigrator{version: 2, dirty: true, applied: []uint{1, 2}, pending: []uint{3}}
		swapMigrator(t, fake)

		buf, err := runMigrateCommand(t, "migrate", "status")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "dirty state")
	})
}
