package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	t.Run("Should produce a salted credential that verifies", func(t *testing.T) {
		first, err := HashPassword("secret1", MinBcryptCost)
		require.NoError(t, err)
		second, err := HashPassword("secret1", MinBcryptCost)
		require.NoError(t, err)

		assert.NotEqual(t, "secret1", first)
		assert.NotEqual(t, first, second)
		assert.True(t, VerifyPassword("secret1", first))
		assert.True(t, VerifyPassword("secret1", second))
	})

	t.Run("Should floor the work factor", func(t *testing.T) {
		hashed, err := HashPassword("secret1", 4)
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(hashed))
		require.NoError(t, err)
		assert.Equal(t, MinBcryptCost, cost)
	})

	t.Run("Should not hash an existing credential twice", func(t *testing.T) {
		hashed, err := HashPassword("secret1", MinBcryptCost)
		require.NoError(t, err)
		again, err := HashPassword(hashed, MinBcryptCost)
		require.NoError(t, err)
		assert.Equal(t, hashed, again)
		assert.True(t, IsHashed(again))
	})

	t.Run("Should reject empty input", func(t *testing.T) {
		_, err := HashPassword("", MinBcryptCost)
		assert.ErrorIs(t, err, ErrHashing)
	})
}

func TestVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("secret1", MinBcryptCost)
	require.NoError(t, err)

	assert.False(t, VerifyPassword("wrong", hashed))
	assert.False(t, VerifyPassword("", hashed))
	assert.False(t, VerifyPassword("secret1", ""))
	assert.False(t, VerifyPassword("secret1", "not-a-hash"))
	assert.False(t, IsHashed("secret1"))
}

func TestHashPlaintext(t *testing.T) {
	hashed, err := HashPassword("secret1", MinBcryptCost)
	require.NoError(t, err)

	rehashed, err := HashPlaintext(hashed, MinBcryptCost)
	require.NoError(t, err)
	assert.NotEqual(t, hashed, rehashed)
	assert.True(t, VerifyPassword(hashed, rehashed))

	_, err = HashPlaintext("", MinBcryptCost)
	assert.ErrorIs(t, err, ErrHashing)
}
