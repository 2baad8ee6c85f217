// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import "context"

// Notifier delivers account lifecycle mail. Delivery failure is never fatal
// to the triggering operation: the service logs and swallows it.
type Notifier interface {
	// SendVerificationEmail sends the email verification link carrying
	// the plaintext token.
	SendVerificationEmail(ctx context.Context, email, token string) error

	// SendPasswordResetEmail sends the password reset link carrying the
	// plaintext token.
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}
