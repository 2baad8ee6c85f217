// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token lifetimes.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// Claims are the assertions carried by both token kinds. The subject is the
// account ID; email and role are the only custom claims.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints signed access and refresh assertions. The two kinds use
// independent signing secrets so a refresh secret can never pass validation
// as an access token, or vice versa. Issuance is a pure function of the
// configured secrets, the payload, and the wall clock.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. Zero TTLs fall back to the package
// defaults.
func NewTokenIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(accessSecret) == 0 {
		return nil, oops.Code("TOKEN_ISSUER_MISCONFIGURED").Errorf("access signing secret is required")
	}
	if len(refreshSecret) == 0 {
		return nil, oops.Code("TOKEN_ISSUER_MISCONFIGURED").Errorf("refresh signing secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = AccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = RefreshTokenExpiry
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs a short-lived access token for the account.
func (t *TokenIssuer) IssueAccessToken(accountID ulid.ULID, email string, role Role, now time.Time) (string, error) {
	return t.sign(t.accessSecret, accountID, email, role, now, t.accessTTL)
}

// IssueRefreshSecret signs the long-lived refresh assertion. The returned
// string is the opaque value handed to clients; the session ledger persists
// its hash alongside the revocation state.
func (t *TokenIssuer) IssueRefreshSecret(accountID ulid.ULID, email string, role Role, now time.Time) (string, error) {
	return t.sign(t.refreshSecret, accountID, email, role, now, t.refreshTTL)
}

// ParseAccessToken verifies an access token and returns its claims.
func (t *TokenIssuer) ParseAccessToken(token string) (*Claims, error) {
	return parse(token, t.accessSecret)
}

// ParseRefreshSecret verifies a refresh assertion and returns its claims.
func (t *TokenIssuer) ParseRefreshSecret(token string) (*Claims, error) {
	return parse(token, t.refreshSecret)
}

func (t *TokenIssuer) sign(secret []byte, accountID ulid.ULID, email string, role Role, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

func parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token is not valid")
	}
	return claims, nil
}
