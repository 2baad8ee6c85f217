// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/astralx/identity/internal/identity"
)

const accountColumns = `id, email, password_hash, first_name, last_name, role, status,
	email_verified, verification_token_hash, verification_expires, created_at, updated_at`

// AccountRepository implements identity.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account. A duplicate email surfaces as
// identity.ErrConflict via the unique index on email.
func (r *AccountRepository) Create(ctx context.Context, account *identity.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, first_name, last_name, role, status,
			email_verified, verification_token_hash, verification_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		string(account.Role),
		string(account.Status),
		account.EmailVerified,
		account.VerificationTokenHash,
		account.VerificationExpires,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(identity.ErrConflict)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (exact match).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE email = $1
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// GetByVerificationTokenHash retrieves the account holding the given
// verification token hash.
func (r *AccountRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*identity.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE verification_token_hash = $1
	`, tokenHash)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by verification token").
			Wrap(err)
	}
	return account, nil
}

// Update modifies an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *identity.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
			role = $6, status = $7, email_verified = $8,
			verification_token_hash = $9, verification_expires = $10, updated_at = $11
		WHERE id = $1
	`,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		string(account.Role),
		string(account.Status),
		account.EmailVerified,
		account.VerificationTokenHash,
		account.VerificationExpires,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanAccount scans an account row.
func scanAccount(row pgx.Row) (*identity.Account, error) {
	var (
		account identity.Account
		idStr   string
		role    string
		status  string
	)
	err := row.Scan(
		&idStr,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&role,
		&status,
		&account.EmailVerified,
		&account.VerificationTokenHash,
		&account.VerificationExpires,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	account.ID, err = identity.ParseID(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("id", idStr).Wrap(err)
	}
	account.Role = identity.Role(role)
	account.Status = identity.Status(status)
	return &account, nil
}
