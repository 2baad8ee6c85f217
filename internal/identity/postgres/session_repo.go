// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/astralx/identity/internal/identity"
)

// RefreshSessionRepository implements identity.RefreshSessionRepository
// using PostgreSQL.
type RefreshSessionRepository struct {
	pool pool
}

// NewRefreshSessionRepository creates a new RefreshSessionRepository.
func NewRefreshSessionRepository(pool pool) *RefreshSessionRepository {
	return &RefreshSessionRepository{pool: pool}
}

// Create stores a new refresh session.
func (r *RefreshSessionRepository) Create(ctx context.Context, session *identity.RefreshSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, account_id, token_hash, expires_at, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
		session.RevokedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert refresh session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a refresh session by ID.
func (r *RefreshSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.RefreshSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_sessions WHERE id = $1
	`, id.String())

	session, err := scanRefreshSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get refresh session by id").
			With("id", id.String()).
			Wrap(err)
	}
	return session, nil
}

// Redeem revokes the live session holding tokenHash and returns it.
// The conditional UPDATE is the linearization point: exactly one caller
// can redeem a given token, concurrent attempts observe ErrNotFound.
func (r *RefreshSessionRepository) Redeem(ctx context.Context, tokenHash string) (*identity.RefreshSession, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING id, account_id, token_hash, expires_at, created_at, revoked_at
	`, tokenHash)

	session, err := scanRefreshSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_REDEEM_FAILED").
			With("operation", "redeem refresh session").
			Wrap(err)
	}
	return session, nil
}

// PurgeExpired deletes sessions past their expiry, returning the count
// removed.
func (r *RefreshSessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM refresh_sessions WHERE expires_at <= now()
	`)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").
			With("operation", "purge expired refresh sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanRefreshSession(row pgx.Row) (*identity.RefreshSession, error) {
	var (
		session      identity.RefreshSession
		idStr        string
		accountIDStr string
	)
	err := row.Scan(
		&idStr,
		&accountIDStr,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.RevokedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	session.ID, err = identity.ParseID(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse session id").With("id", idStr).Wrap(err)
	}
	session.AccountID, err = identity.ParseID(accountIDStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("id", accountIDStr).Wrap(err)
	}
	return &session, nil
}
