// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/astralx/identity/internal/identity"
	"github.com/astralx/identity/internal/observability"
	"github.com/astralx/identity/pkg/errutil"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role := identity.Role(req.Role)
	if req.Role == "" {
		role = identity.RoleClient
	}

	_, err := s.auth.Register(r.Context(), identity.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		s.record(func(m *observability.Metrics) { m.RegistrationsTotal.WithLabelValues("failure").Inc() })
		errutil.LogError(s.logger, "registration failed", err)
		writeError(w, err)
		return
	}

	s.record(func(m *observability.Metrics) { m.RegistrationsTotal.WithLabelValues("success").Inc() })
	writeJSON(w, http.StatusCreated, messageResponse{Message: msgRegistered})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	// The link in the email arrives as GET ?token=..., API clients POST
	// a JSON body.
	token := r.URL.Query().Get("token")
	if token == "" && r.Method == http.MethodPost {
		var req verifyEmailRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		token = req.Token
	}

	if _, err := s.auth.VerifyEmail(r.Context(), token); err != nil {
		errutil.LogError(s.logger, "email verification failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgVerified})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.record(func(m *observability.Metrics) { m.LoginsTotal.WithLabelValues("failure").Inc() })
		errutil.LogError(s.logger, "login failed", err)
		writeError(w, err)
		return
	}

	s.record(func(m *observability.Metrics) {
		m.LoginsTotal.WithLabelValues("success").Inc()
		m.TokensIssuedTotal.WithLabelValues("password").Inc()
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAccountResponse(pair.Account),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.auth.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		errutil.LogError(s.logger, "token refresh failed", err)
		writeError(w, err)
		return
	}

	s.record(func(m *observability.Metrics) { m.TokensIssuedTotal.WithLabelValues("refresh").Inc() })
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAccountResponse(pair.Account),
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Unknown emails do not error; only infrastructure failures reach here.
	if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		errutil.LogError(s.logger, "password reset request failed", err)
		writeError(w, err)
		return
	}

	s.record(func(m *observability.Metrics) { m.PasswordResetsTotal.WithLabelValues("requested").Inc() })
	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetRequest})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		errutil.LogError(s.logger, "password reset failed", err)
		writeError(w, err)
		return
	}

	s.record(func(m *observability.Metrics) { m.PasswordResetsTotal.WithLabelValues("completed").Inc() })
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordReset})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}
