// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/astralx/identity/pkg/errutil"
)

// dummyPasswordHash is used when a login targets an unknown email so that
// password verification still runs and response time stays uniform.
// This is NOT a real credential - it is a fake hash that will never match
// any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenPair is the result of a successful login or refresh: one access
// token and one freshly opened refresh session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Account      *Account
}

// RegisterInput is the plain input of the register operation.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// Service is the auth orchestrator. It coordinates the account store, the
// session ledger, the reset grant registry, the token issuer, and the mail
// notifier. It is the only component that talks to more than one
// collaborator.
type Service struct {
	accounts AccountRepository
	sessions RefreshSessionRepository
	resets   PasswordResetRepository
	hasher   PasswordHasher
	issuer   *TokenIssuer
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a Service, validating its dependencies.
func NewService(
	accounts AccountRepository,
	sessions RefreshSessionRepository,
	resets PasswordResetRepository,
	hasher PasswordHasher,
	issuer *TokenIssuer,
	notifier Notifier,
	logger *slog.Logger,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("account repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("session repository is required")
	}
	if resets == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("reset repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Code("SERVICE_MISCONFIGURED").Errorf("mail notifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		resets:   resets,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Register creates a pending-verification account, issues its verification
// grant, and sends the verification mail. Mail failure does not fail the
// registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(in.Email, hash, in.FirstName, in.LastName, in.Role)
	if err != nil {
		return nil, err
	}

	token, tokenHash, err := GenerateOpaqueToken()
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}
	account.SetVerificationGrant(tokenHash, time.Now().Add(VerificationTokenExpiry))

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code("REGISTER_EMAIL_TAKEN").
				Wrap(err)
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	// Fire-and-forget: a delivery failure must not roll back the account.
	if err := s.notifier.SendVerificationEmail(ctx, account.Email, token); err != nil {
		errutil.LogError(s.logger, "verification mail delivery failed", err)
	}

	s.logger.Info("account registered", "account_id", account.ID.String(), "role", string(account.Role))
	return account, nil
}

// VerifyEmail consumes a verification grant and activates the account.
// The grant is single-use: consuming it clears both embedded fields.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("invalid or expired verification token")
	}

	account, err := s.accounts.GetByVerificationTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("invalid or expired verification token")
		}
		return nil, oops.Code("VERIFY_FAILED").
			With("operation", "get account by verification token").
			Wrap(err)
	}
	if account.VerificationGrantExpired(time.Now()) {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Errorf("invalid or expired verification token")
	}

	account.ConsumeVerificationGrant()
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, oops.Code("VERIFY_FAILED").
			With("operation", "update account").
			Wrap(err)
	}

	s.logger.Info("email verified", "account_id", account.ID.String())
	return account, nil
}

// Login authenticates an account and issues an access/refresh pair.
// Unknown email and wrong password are indistinguishable to the caller;
// unverified and non-active accounts get their own messages. No tokens are
// issued on any failure path.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	accountExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("LOGIN_FAILED").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	// Always verify against a hash so timing stays uniform.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !accountExists {
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !accountExists || !valid {
		return nil, errInvalidCredentials()
	}

	if !account.EmailVerified {
		return nil, oops.Code("LOGIN_EMAIL_UNVERIFIED").Errorf("please verify your email before logging in")
	}
	if account.Status != StatusActive {
		return nil, oops.Code("LOGIN_ACCOUNT_INACTIVE").
			With("status", string(account.Status)).
			Errorf("account is not active")
	}

	// Transparent cost upgrade. Login succeeds even if the write fails.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if err := s.accounts.UpdatePassword(ctx, account.ID, newHash); err != nil {
				errutil.LogError(s.logger, "password rehash failed", err)
			} else {
				account.PasswordHash = newHash
			}
		}
	}

	pair, err := s.issuePair(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "account_id", account.ID.String())
	return pair, nil
}

// RefreshAccessToken redeems a refresh token for a new access/refresh pair.
// Redemption revokes the matched session; the old token is permanently
// unusable afterwards even if not yet expired.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errRefreshInvalid()
	}

	session, err := s.sessions.Redeem(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errRefreshInvalid()
		}
		return nil, oops.Code("REFRESH_FAILED").
			With("operation", "redeem session").
			Wrap(err)
	}

	// Explicit two-step fetch: the ledger stores only the account ID.
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errRefreshInvalid()
		}
		return nil, oops.Code("REFRESH_FAILED").
			With("operation", "get account").
			Wrap(err)
	}

	pair, err := s.issuePair(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tokens refreshed", "account_id", account.ID.String(), "session_id", session.ID.String())
	return pair, nil
}

// ForgotPassword issues a password reset grant and mails the token. The
// outcome is observably identical whether or not the email is registered,
// to avoid account enumeration; only the registered case creates a grant.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	token, tokenHash, err := GenerateOpaqueToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	grant, err := NewPasswordResetGrant(account.ID, tokenHash, time.Now().Add(ResetTokenExpiry))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new reset grant").
			Wrap(err)
	}
	if err := s.resets.Create(ctx, grant); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset grant").
			Wrap(err)
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, account.Email, token); err != nil {
		errutil.LogError(s.logger, "reset mail delivery failed", err)
	}

	s.logger.Info("password reset requested", "account_id", account.ID.String())
	return nil
}

// ResetPassword redeems a reset grant and rehashes the account's password.
// The grant's use-mark is the linearization point: of two concurrent resets
// with the same token, exactly one succeeds.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	grant, err := s.resets.Redeem(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "redeem grant").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, grant.AccountID, newHash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Cleanup of other outstanding grants. The password is already
	// changed; a failure here is logged and swallowed.
	if err := s.resets.DeleteByAccount(ctx, grant.AccountID); err != nil {
		errutil.LogError(s.logger, "reset grant cleanup failed", err)
	}

	s.logger.Info("password reset", "account_id", grant.AccountID.String())
	return nil
}

// ValidateAccount fetches an account for downstream request authorization.
// The account must be active.
func (s *Service) ValidateAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errAccountNotFound(id)
		}
		return nil, oops.Code("ACCOUNT_VALIDATE_FAILED").
			With("operation", "get account").
			Wrap(err)
	}
	if account.Status != StatusActive {
		return nil, errAccountNotFound(id)
	}
	return account, nil
}

// issuePair signs an access token and a refresh secret, then opens a ledger
// session for the refresh secret's hash. Nothing is returned unless the
// session row was persisted.
func (s *Service) issuePair(ctx context.Context, account *Account) (*TokenPair, error) {
	now := time.Now()

	access, err := s.issuer.IssueAccessToken(account.ID, account.Email, account.Role, now)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign access token").
			Wrap(err)
	}
	refresh, err := s.issuer.IssueRefreshSecret(account.ID, account.Email, account.Role, now)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign refresh secret").
			Wrap(err)
	}

	session, err := NewRefreshSession(account.ID, HashToken(refresh), now.Add(s.issuer.RefreshTTL()))
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "new refresh session").
			Wrap(err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist refresh session").
			Wrap(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, Account: account}, nil
}

func errInvalidCredentials() error {
	return oops.Code("LOGIN_INVALID_CREDENTIALS").Errorf("invalid credentials")
}

func errRefreshInvalid() error {
	return oops.Code("REFRESH_TOKEN_INVALID").Errorf("invalid or expired refresh token")
}

func errAccountNotFound(id ulid.ULID) error {
	return oops.Code("ACCOUNT_NOT_FOUND").
		With("account_id", id.String()).
		Errorf("account not found or inactive")
}
