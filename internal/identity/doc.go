// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

// Package identity provides account authentication and session lifecycle
// management for Astralx.
//
// # Domain Types
//
// Domain types (Account, RefreshSession, PasswordResetGrant) should be
// created using their respective constructors:
//   - NewAccount - creates an Account with a validated email and role
//   - NewRefreshSession - creates a RefreshSession bound to an account
//   - NewPasswordResetGrant - creates a PasswordResetGrant with expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service coordinates the repositories, the password hasher, the token
// issuer, and the mail notifier to implement registration, email
// verification, login, token refresh, and the password reset flow.
package identity
