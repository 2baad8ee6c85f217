// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/astralx/identity/pkg/errutil"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher := NewBcryptHasher()

	hash, err := hasher.Hash("correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery", hash)

	valid, err := hasher.Verify("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	hasher := NewBcryptHasher()
	_, err := hasher.Hash("")
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	hasher := NewBcryptHasher()
	_, err := hasher.Verify("password", "not-a-bcrypt-hash")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
}

func TestBcryptHasher_NeedsUpgrade(t *testing.T) {
	hasher := NewBcryptHasher()

	weak, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, hasher.NeedsUpgrade(string(weak)))

	current, err := hasher.Hash("password")
	require.NoError(t, err)
	assert.False(t, hasher.NeedsUpgrade(current))

	assert.True(t, hasher.NeedsUpgrade("garbage"))
}

func TestBcryptHasher_DistinctSalts(t *testing.T) {
	hasher := NewBcryptHasher()

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
