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

// PasswordResetRepository implements identity.PasswordResetRepository
// using PostgreSQL.
type PasswordResetRepository struct {
	pool pool
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Create stores a new password reset grant.
func (r *PasswordResetRepository) Create(ctx context.Context, grant *identity.PasswordResetGrant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_grants (id, account_id, token_hash, expires_at, created_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		grant.ID.String(),
		grant.AccountID.String(),
		grant.TokenHash,
		grant.ExpiresAt,
		grant.CreatedAt,
		grant.UsedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password reset grant").
			With("account_id", grant.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// Redeem marks the live grant holding tokenHash as used and returns it.
// Exactly one caller can redeem a given token.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash string) (*identity.PasswordResetGrant, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE password_reset_grants
		SET used_at = now()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
		RETURNING id, account_id, token_hash, expires_at, created_at, used_at
	`, tokenHash)

	grant, err := scanResetGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_REDEEM_FAILED").
			With("operation", "redeem password reset grant").
			Wrap(err)
	}
	return grant, nil
}

// DeleteByAccount removes every grant belonging to an account. A
// successful reset invalidates any other outstanding reset links.
func (r *PasswordResetRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM password_reset_grants WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password reset grants").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// PurgeExpired deletes grants past their expiry, returning the count
// removed.
func (r *PasswordResetRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_reset_grants WHERE expires_at <= now()
	`)
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").
			With("operation", "purge expired password reset grants").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanResetGrant(row pgx.Row) (*identity.PasswordResetGrant, error) {
	var (
		grant        identity.PasswordResetGrant
		idStr        string
		accountIDStr string
	)
	err := row.Scan(
		&idStr,
		&accountIDStr,
		&grant.TokenHash,
		&grant.ExpiresAt,
		&grant.CreatedAt,
		&grant.UsedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	grant.ID, err = identity.ParseID(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse grant id").With("id", idStr).Wrap(err)
	}
	grant.AccountID, err = identity.ParseID(accountIDStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("id", accountIDStr).Wrap(err)
	}
	return &grant, nil
}
