// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/astralx/identity/internal/config"
	"github.com/astralx/identity/internal/httpapi"
	"github.com/astralx/identity/internal/identity"
	"github.com/astralx/identity/internal/observability"
	"github.com/astralx/identity/pkg/errutil"
)

// stubAuth satisfies httpapi.AuthService for wiring tests; no method is
// ever invoked.
type stubAuth struct {
	httpapi.AuthService
}

// fakeServer implements APIServer and ObservabilityServer.
type fakeServer struct {
	errCh     chan error
	started   bool
	stopped   bool
	startErr  error
	metricsCh *observability.Metrics
}

func newFakeServer() *fakeServer {
	return &fakeServer{errCh: make(chan error, 1)}
}

func (f *fakeServer) Start() (<-chan error, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = true
	return f.errCh, nil
}

func (f *fakeServer) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeServer) Addr() string { return "127.0.0.1:0" }

func (f *fakeServer) Metrics() *observability.Metrics { return f.metricsCh }

func setServeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	t.Setenv("IDENTITY_ACCESS_SECRET", "access-secret")
	t.Setenv("IDENTITY_REFRESH_SECRET", "refresh-secret")
}

func testServeDeps(t *testing.T, api, obs *fakeServer) *ServeDeps {
	t.Helper()
	issuer, err := identity.NewTokenIssuer([]byte("a"), []byte("r"), 0, 0)
	require.NoError(t, err)

	return &ServeDeps{
		BuildAuth: func(context.Context, *config.Config, *slog.Logger) (httpapi.AuthService, *identity.TokenIssuer, func(), error) {
			return &stubAuth{}, issuer, func() {}, nil
		},
		MigrateUp: func(string) error { return nil },
		APIServerFactory: func(httpapi.AuthService, *identity.TokenIssuer, httpapi.Options, *slog.Logger) (APIServer, error) {
			return api, nil
		},
		ObservabilityServerFactory: func(string) ObservabilityServer { return obs },
	}
}

func newServeTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "serve"}
	cmd.SetOut(new(bytes.Buffer))
	return cmd
}

func TestRunServe_MissingSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	t.Setenv("IDENTITY_ACCESS_SECRET", "")
	t.Setenv("IDENTITY_REFRESH_SECRET", "")
	configFile = ""

	err := runServeWithDeps(context.Background(), newServeTestCmd(), testServeDeps(t, newFakeServer(), newFakeServer()))
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestRunServe_StartsAndStopsOnCancel(t *testing.T) {
	// os/signal keeps a process-wide watcher goroutine alive after the
	// first Notify.
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreTopFunction("os/signal.loop"),
	)

	setServeEnv(t)
	configFile = ""
	api := newFakeServer()
	obs := newFakeServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, newServeTestCmd(), testServeDeps(t, api, obs))
	}()

	// Let startup complete, then trigger shutdown.
	require.Eventually(t, func() bool { return api.started && obs.started }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}

	assert.True(t, api.stopped)
	assert.True(t, obs.stopped)
}

func TestRunServe_APIServerFailureTriggersShutdown(t *testing.T) {
	setServeEnv(t)
	configFile = ""
	api := newFakeServer()
	obs := newFakeServer()

	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(context.Background(), newServeTestCmd(), testServeDeps(t, api, obs))
	}()

	require.Eventually(t, func() bool { return api.started }, 2*time.Second, 10*time.Millisecond)
	api.errCh <- oops.Errorf("listener gone")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down after server error")
	}
}

func TestRunServe_StartFailure(t *testing.T) {
	setServeEnv(t)
	configFile = ""
	api := newFakeServer()
	api.startErr = oops.Errorf("address in use")

	err := runServeWithDeps(context.Background(), newServeTestCmd(), testServeDeps(t, api, newFakeServer()))
	errutil.AssertErrorCode(t, err, "SERVER_START_FAILED")
}

func TestRunServe_AutoMigrate(t *testing.T) {
	setServeEnv(t)
	configFile = ""
	autoMigrate = true
	t.Cleanup(func() { autoMigrate = false })

	t.Run("failure aborts startup", func(t *testing.T) {
		deps := testServeDeps(t, newFakeServer(), newFakeServer())
		deps.MigrateUp = func(string) error { return oops.Errorf("schema locked") }

		err := runServeWithDeps(context.Background(), newServeTestCmd(), deps)
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	})

	t.Run("runs before serving", func(t *testing.T) {
		api := newFakeServer()
		obs := newFakeServer()
		deps := testServeDeps(t, api, obs)
		migrated := false
		deps.MigrateUp = func(url string) error {
			migrated = true
			assert.Equal(t, "postgres://localhost/identity", url)
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- runServeWithDeps(ctx, newServeTestCmd(), deps)
		}()

		require.Eventually(t, func() bool { return api.started }, 2*time.Second, 10*time.Millisecond)
		cancel()
		require.NoError(t, <-done)
		assert.True(t, migrated)
	})
}
