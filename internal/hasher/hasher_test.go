package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_RoundTrip(t *testing.T) {
	h := NewWithCost(bcrypt.MinCost)

	for _, password := range []string{"secret1", "pässwörd", strings.Repeat("x", 64), " spaced "} {
		hash, err := h.Hash(password)
		require.NoError(t, err)

		assert.NotEqual(t, password, hash)
		assert.True(t, h.Compare(hash, password), "password %q", password)
		assert.False(t, h.Compare(hash, password+"x"), "password %q", password)
	}
}

func TestBcrypt_OtherPassword(t *testing.T) {
	h := NewWithCost(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.False(t, h.Compare(hash, "secret2"))
	assert.False(t, h.Compare(hash, ""))
}

func TestBcrypt_Salted(t *testing.T) {
	h := NewWithCost(bcrypt.MinCost)

	first, err := h.Hash("secret1")
	require.NoError(t, err)
	second, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcrypt_EmptyPassword(t *testing.T) {
	_, err := New().Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestBcrypt_DefaultCost(t *testing.T) {
	hash, err := New().Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)
}

func TestBcrypt_CompareInvalidHash(t *testing.T) {
	assert.False(t, New().Compare("not-a-hash", "secret1"))
}

func TestBcrypt_TooLongPassword(t *testing.T) {
	_, err := NewWithCost(bcrypt.MinCost).Hash(strings.Repeat("x", 73))
	assert.Error(t, err)
}
