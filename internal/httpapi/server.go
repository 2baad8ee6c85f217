// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

// Package httpapi exposes the authentication flows over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/astralx/identity/internal/identity"
	"github.com/astralx/identity/internal/observability"
)

// AuthService is the slice of the identity service the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Account, error)
	VerifyEmail(ctx context.Context, token string) (*identity.Account, error)
	Login(ctx context.Context, email, password string) (*identity.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ValidateAccount(ctx context.Context, id ulid.ULID) (*identity.Account, error)
}

// Options configure the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Metrics is optional; with nil, no metrics are recorded.
	Metrics *observability.Metrics
}

// Server serves the authentication API.
type Server struct {
	auth       AuthService
	issuer     *identity.TokenIssuer
	metrics    *observability.Metrics
	logger     *slog.Logger
	opts       Options
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the API server, validating its dependencies.
func NewServer(auth AuthService, issuer *identity.TokenIssuer, opts Options, logger *slog.Logger) (*Server, error) {
	if auth == nil {
		return nil, oops.Code("SERVER_MISCONFIGURED").Errorf("auth service is required")
	}
	if issuer == nil {
		return nil, oops.Code("SERVER_MISCONFIGURED").Errorf("token issuer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:    auth,
		issuer:  issuer,
		metrics: opts.Metrics,
		logger:  logger,
		opts:    opts,
	}, nil
}

// Router builds the chi router for the authentication API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/verify-email", s.handleVerifyEmail)
		r.Get("/verify-email", s.handleVerifyEmail)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		r.With(s.requireAccessToken).Get("/me", s.handleMe)
	})

	return r
}

// Start begins serving the API. The returned channel reports serve
// errors after startup and is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.opts.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or empty if not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
