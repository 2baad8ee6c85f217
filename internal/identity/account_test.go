// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralx/identity/pkg/errutil"
)

func TestNewAccount(t *testing.T) {
	t.Run("valid account starts pending verification", func(t *testing.T) {
		account, err := NewAccount("kira@astralx.example", "hash", "Kira", "Vance", RoleClient)
		require.NoError(t, err)

		assert.NotZero(t, account.ID)
		assert.Equal(t, "kira@astralx.example", account.Email)
		assert.Equal(t, StatusPendingVerification, account.Status)
		assert.False(t, account.EmailVerified)
		assert.Nil(t, account.VerificationTokenHash)
		assert.False(t, account.CreatedAt.IsZero())
	})

	t.Run("empty names are allowed", func(t *testing.T) {
		account, err := NewAccount("kira@astralx.example", "hash", "", "", RoleWorkshop)
		require.NoError(t, err)
		assert.Empty(t, account.FirstName)
		assert.Equal(t, RoleWorkshop, account.Role)
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		_, err := NewAccount("not-an-email", "hash", "", "", RoleClient)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_EMAIL")
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := NewAccount("kira@astralx.example", "", "", "", RoleClient)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_HASH")
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := NewAccount("kira@astralx.example", "hash", "", "", Role("superuser"))
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_ROLE")
	})
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleClient.Valid())
	assert.True(t, RoleWorkshop.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("CLIENT").Valid())
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"simple", "a@b.co", false},
		{"plus tag", "kira+test@astralx.example", false},
		{"empty", "", true},
		{"no domain", "kira@", true},
		{"no at sign", "kira.astralx.example", true},
		{"spaces", "kira @astralx.example", true},
		{"no tld", "kira@localhost", true},
		{"too long", strings.Repeat("a", 250) + "@b.co", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_EMAIL")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("12345678"))
	require.NoError(t, ValidatePassword(strings.Repeat("x", MaxPasswordLength)))

	errutil.AssertErrorCode(t, ValidatePassword("1234567"), "ACCOUNT_INVALID_PASSWORD")
	errutil.AssertErrorCode(t, ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)), "ACCOUNT_INVALID_PASSWORD")
}

func TestVerificationGrantLifecycle(t *testing.T) {
	account, err := NewAccount("kira@astralx.example", "hash", "", "", RoleClient)
	require.NoError(t, err)

	expires := time.Now().Add(VerificationTokenExpiry)
	account.SetVerificationGrant("tokenhash", expires)

	require.NotNil(t, account.VerificationTokenHash)
	assert.Equal(t, "tokenhash", *account.VerificationTokenHash)
	assert.False(t, account.VerificationGrantExpired(time.Now()))
	assert.True(t, account.VerificationGrantExpired(expires.Add(time.Second)))

	account.ConsumeVerificationGrant()

	assert.Nil(t, account.VerificationTokenHash)
	assert.Nil(t, account.VerificationExpires)
	assert.True(t, account.EmailVerified)
	assert.Equal(t, StatusActive, account.Status)

	// A consumed grant counts as expired.
	assert.True(t, account.VerificationGrantExpired(time.Now()))
}

func TestSetVerificationGrant_ReplacesOutstanding(t *testing.T) {
	account, err := NewAccount("kira@astralx.example", "hash", "", "", RoleClient)
	require.NoError(t, err)

	account.SetVerificationGrant("first", time.Now().Add(time.Hour))
	account.SetVerificationGrant("second", time.Now().Add(2*time.Hour))

	require.NotNil(t, account.VerificationTokenHash)
	assert.Equal(t, "second", *account.VerificationTokenHash)
}
