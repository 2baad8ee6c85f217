// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/samber/oops"

	"github.com/astralx/identity/internal/identity"
)

// User-facing messages. Flows that could leak whether an email is
// registered return the same message either way.
const (
	msgRegistered    = "Registration successful. Please check your email to verify your account."
	msgVerified      = "Email verified successfully. You can now log in."
	msgResetRequest  = "If your email is registered, you will receive a password reset link."
	msgPasswordReset = "Password reset successfully. You can now log in with your new password."
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type accountResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	EmailVerified bool   `json:"emailVerified"`
}

type tokenResponse struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         accountResponse `json:"user"`
}

func toAccountResponse(a *identity.Account) accountResponse {
	return accountResponse{
		ID:            a.ID.String(),
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Role:          string(a.Role),
		Status:        string(a.Status),
		EmailVerified: a.EmailVerified,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may disconnect
	}
}

// statusByCode maps domain error codes to HTTP statuses. Codes not
// listed here are internal failures and must not leak details.
var statusByCode = map[string]int{
	"ACCOUNT_INVALID_EMAIL":     http.StatusBadRequest,
	"ACCOUNT_INVALID_PASSWORD":  http.StatusBadRequest,
	"ACCOUNT_INVALID_ROLE":      http.StatusBadRequest,
	"AUTH_EMPTY_PASSWORD":       http.StatusBadRequest,
	"VERIFY_TOKEN_INVALID":      http.StatusBadRequest,
	"RESET_TOKEN_INVALID":       http.StatusBadRequest,
	"REGISTER_EMAIL_TAKEN":      http.StatusConflict,
	"LOGIN_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"REFRESH_TOKEN_INVALID":     http.StatusUnauthorized,
	"TOKEN_INVALID":             http.StatusUnauthorized,
	"LOGIN_EMAIL_UNVERIFIED":    http.StatusUnauthorized,
	"LOGIN_ACCOUNT_INACTIVE":    http.StatusUnauthorized,
	"ACCOUNT_NOT_FOUND":         http.StatusNotFound,
}

// messageByCode overrides the error message for codes whose wrapped
// chain is not fit for clients.
var messageByCode = map[string]string{
	"REGISTER_EMAIL_TAKEN": "email is already registered",
	"ACCOUNT_NOT_FOUND":    "account not found",
	"TOKEN_INVALID":        "invalid or expired access token",
}

// writeError translates a service error into an HTTP response. Known
// codes keep their message; anything else becomes a generic 500.
func writeError(w http.ResponseWriter, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		if status, known := statusByCode[oopsErr.Code()]; known {
			msg := oopsErr.Error()
			if override, ok := messageByCode[oopsErr.Code()]; ok {
				msg = override
			}
			writeJSON(w, status, errorResponse{Error: msg, Code: oopsErr.Code()})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
