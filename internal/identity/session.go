// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshSession is the durable record of one issued refresh token.
// Sessions are never deleted on revocation; RevokedAt is the audit trail
// of the rotation.
type RefreshSession struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// NewRefreshSession creates a validated RefreshSession.
func NewRefreshSession(accountID ulid.ULID, tokenHash string, expiresAt time.Time) (*RefreshSession, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &RefreshSession{
		ID:        NewID(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// Usable returns true if the session can still be redeemed at the given
// time: not yet revoked and not past its expiry.
func (s *RefreshSession) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// HashToken computes the SHA-256 hash of a bearer token. Only the hash is
// persisted; lookup is by exact hash match.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshSessionRepository manages the session ledger.
type RefreshSessionRepository interface {
	// Create stores a new refresh session.
	Create(ctx context.Context, session *RefreshSession) error

	// GetByID retrieves a session by its ID.
	GetByID(ctx context.Context, id ulid.ULID) (*RefreshSession, error)

	// Redeem atomically marks the session holding the given token hash as
	// revoked and returns it. It fails with ErrNotFound (wrapped) if no
	// usable session matches: unknown hash, already revoked, or expired.
	// The revocation write is the linearization point; concurrent redeems
	// of the same token see exactly one success.
	Redeem(ctx context.Context, tokenHash string) (*RefreshSession, error)

	// PurgeExpired removes sessions whose expiry has passed and returns
	// the number of rows removed. Revoked-but-unexpired sessions are kept
	// for auditing.
	PurgeExpired(ctx context.Context) (int64, error)
}
