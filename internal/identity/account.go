// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the account's role on the platform.
type Role string

// Roles an account can hold.
const (
	RoleClient   Role = "client"
	RoleWorkshop Role = "workshop"
	RoleAdmin    Role = "admin"
)

// Valid returns true if the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleWorkshop, RoleAdmin:
		return true
	}
	return false
}

// Status is the account's lifecycle state.
type Status string

// Account lifecycle states. The only transition this package produces is
// pending_verification -> active, on successful email verification.
// Suspension is an external administrative action checked at login.
const (
	StatusPendingVerification Status = "pending_verification"
	StatusActive              Status = "active"
	StatusSuspended           Status = "suspended"
)

// Password validation constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

// VerificationTokenExpiry is how long an email verification token is valid.
const VerificationTokenExpiry = 24 * time.Hour

// emailRegex is a permissive sanity check, not full RFC 5322 validation.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Account represents a registered account.
type Account struct {
	ID            ulid.ULID
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	Status        Status
	EmailVerified bool

	// Embedded email verification grant. Both fields are set at
	// registration and cleared together when the grant is consumed.
	// Re-registering overwrites them; no history is kept.
	VerificationTokenHash *string
	VerificationExpires   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates a validated Account in the pending_verification state.
// The caller supplies an already-hashed password; names are optional.
func NewAccount(email, passwordHash string, firstName, lastName string, role Role) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").
			With("role", string(role)).
			Errorf("unknown role %q", role)
	}

	now := time.Now()
	return &Account{
		ID:            NewID(),
		Email:         email,
		PasswordHash:  passwordHash,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          role,
		Status:        StatusPendingVerification,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// SetVerificationGrant attaches a fresh verification grant, replacing any
// outstanding one.
func (a *Account) SetVerificationGrant(tokenHash string, expiresAt time.Time) {
	a.VerificationTokenHash = &tokenHash
	a.VerificationExpires = &expiresAt
	a.UpdatedAt = time.Now()
}

// ConsumeVerificationGrant clears the grant and activates the account.
// A grant is consumable at most once.
func (a *Account) ConsumeVerificationGrant() {
	a.VerificationTokenHash = nil
	a.VerificationExpires = nil
	a.EmailVerified = true
	a.Status = StatusActive
	a.UpdatedAt = time.Now()
}

// VerificationGrantExpired returns true if the grant is missing or past its
// expiry at the given time.
func (a *Account) VerificationGrantExpired(now time.Time) bool {
	return a.VerificationExpires == nil || now.After(*a.VerificationExpires)
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > 255 {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email must be at most 255 characters")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email address is not valid")
	}
	return nil
}

// ValidatePassword validates a plaintext password against length rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns ErrConflict (wrapped) if the
	// email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (exact match).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByVerificationTokenHash retrieves the account holding the given
	// verification token hash.
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword updates only the password hash for an account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
