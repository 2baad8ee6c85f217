// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralx/identity/pkg/errutil"
)

func TestNewPasswordResetGrant(t *testing.T) {
	accountID := NewID()
	expires := time.Now().Add(ResetTokenExpiry)

	grant, err := NewPasswordResetGrant(accountID, "hash", expires)
	require.NoError(t, err)
	assert.NotZero(t, grant.ID)
	assert.Equal(t, accountID, grant.AccountID)
	assert.Nil(t, grant.UsedAt)

	_, err = NewPasswordResetGrant(ulid.ULID{}, "hash", expires)
	errutil.AssertErrorCode(t, err, "RESET_INVALID_ACCOUNT")

	_, err = NewPasswordResetGrant(accountID, "", expires)
	errutil.AssertErrorCode(t, err, "RESET_INVALID_HASH")

	_, err = NewPasswordResetGrant(accountID, "hash", time.Time{})
	errutil.AssertErrorCode(t, err, "RESET_INVALID_EXPIRY")
}

func TestPasswordResetGrantUsable(t *testing.T) {
	now := time.Now()
	grant, err := NewPasswordResetGrant(NewID(), "hash", now.Add(ResetTokenExpiry))
	require.NoError(t, err)

	assert.True(t, grant.Usable(now))
	assert.False(t, grant.Usable(now.Add(2*time.Hour)), "expired")

	used := now
	grant.UsedAt = &used
	assert.False(t, grant.Usable(now), "used")
}

func TestGenerateOpaqueToken(t *testing.T) {
	token, hash, err := GenerateOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, token, OpaqueTokenBytes*2, "hex-encoded")
	assert.Equal(t, HashToken(token), hash)

	other, _, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
