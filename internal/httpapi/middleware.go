// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/astralx/identity/internal/identity"
	"github.com/astralx/identity/internal/observability"
)

type contextKey int

const accountContextKey contextKey = iota

// withAccount attaches the authenticated account to the request context.
func withAccount(ctx context.Context, account *identity.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// accountFrom returns the account placed in the context by requireAccessToken.
func accountFrom(ctx context.Context) (*identity.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*identity.Account)
	return account, ok
}

// requireAccessToken authenticates requests carrying a bearer access token.
// The token subject is resolved to a live account on every request, so a
// deactivated account loses access before its token expires.
func (s *Server) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "authentication required",
				Code:  "TOKEN_MISSING",
			})
			return
		}

		claims, err := s.issuer.ParseAccessToken(raw)
		if err != nil {
			writeError(w, err)
			return
		}

		accountID, err := identity.ParseID(claims.Subject)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "invalid or expired access token",
				Code:  "TOKEN_INVALID",
			})
			return
		}

		account, err := s.auth.ValidateAccount(r.Context(), accountID)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) record(fn func(m *observability.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
