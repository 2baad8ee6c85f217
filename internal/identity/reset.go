// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Opaque token configuration for verification and reset grants.
const (
	// OpaqueTokenBytes is the entropy of a single-use token.
	// 32 bytes = 64 hex chars.
	OpaqueTokenBytes = 32

	// ResetTokenExpiry is how long a password reset grant is valid.
	ResetTokenExpiry = time.Hour
)

// PasswordResetGrant represents one password reset request. A grant is
// usable iff UsedAt is unset and the expiry has not passed.
type PasswordResetGrant struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// NewPasswordResetGrant creates a validated PasswordResetGrant.
func NewPasswordResetGrant(accountID ulid.ULID, tokenHash string, expiresAt time.Time) (*PasswordResetGrant, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &PasswordResetGrant{
		ID:        NewID(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// Usable returns true if the grant can still be redeemed at the given time.
func (g *PasswordResetGrant) Usable(now time.Time) bool {
	return g.UsedAt == nil && now.Before(g.ExpiresAt)
}

// GenerateOpaqueToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext goes out by
// mail; only the hash is stored.
func GenerateOpaqueToken() (token, hash string, err error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// PasswordResetRepository manages password reset grants.
type PasswordResetRepository interface {
	// Create stores a new reset grant. Outstanding grants for the same
	// account stay valid until redeemed, expired, or cleaned up after a
	// successful reset.
	Create(ctx context.Context, grant *PasswordResetGrant) error

	// Redeem atomically marks the grant holding the given token hash as
	// used and returns it. It fails with ErrNotFound (wrapped) if no
	// usable grant matches: unknown hash, already used, or expired.
	Redeem(ctx context.Context, tokenHash string) (*PasswordResetGrant, error)

	// DeleteByAccount removes all reset grants for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error

	// PurgeExpired removes grants whose expiry has passed and returns the
	// number of rows removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
