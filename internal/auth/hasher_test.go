package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPBKDF2Hasher_HashAndVerify(t *testing.T) {
	hasher := NewPBKDF2Hasher()

	salt, err := hasher.GenerateSalt()
	require.NoError(t, err)
	require.NotEmpty(t, salt)

	hash, err := hasher.Hash("MatKhau123!", salt)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	ok, err := hasher.Verify("MatKhau123!", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("MatKhau123?", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPBKDF2Hasher_SameInputSameSaltIsDeterministic(t *testing.T) {
	hasher := NewPBKDF2Hasher()

	first, err := hasher.Hash("MatKhau123!", "fixed-salt")
	require.NoError(t, err)
	second, err := hasher.Hash("MatKhau123!", "fixed-salt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPBKDF2Hasher_DifferentSaltDifferentHash(t *testing.T) {
	hasher := NewPBKDF2Hasher()

	saltA, err := hasher.GenerateSalt()
	require.NoError(t, err)
	saltB, err := hasher.GenerateSalt()
	require.NoError(t, err)
	require.NotEqual(t, saltA, saltB)

	hashA, err := hasher.Hash("MatKhau123!", saltA)
	require.NoError(t, err)
	hashB, err := hasher.Hash("MatKhau123!", saltB)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestPBKDF2Hasher_OutputFitsColumnBounds(t *testing.T) {
	hasher := NewPBKDF2Hasher()

	salt, err := hasher.GenerateSalt()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(salt), MaxSaltLen)

	hash, err := hasher.Hash("MatKhau123!", salt)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hash), MaxHashLen)
}

func TestPBKDF2Hasher_EmptyInputs(t *testing.T) {
	hasher := NewPBKDF2Hasher()

	_, err := hasher.Hash("", "salt")
	assert.Error(t, err)

	_, err = hasher.Hash("MatKhau123!", "")
	assert.Error(t, err)

	ok, err := hasher.Verify("MatKhau123!", "", "hash")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = hasher.Verify("MatKhau123!", "salt", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
