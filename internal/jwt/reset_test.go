package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, token, ResetTokenBytes*2)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, token, hash)
	assert.Equal(t, hash, HashResetToken(token))
}

func TestGenerateResetToken_Unique(t *testing.T) {
	first, firstHash, err := GenerateResetToken()
	require.NoError(t, err)
	second, secondHash, err := GenerateResetToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, firstHash, secondHash)
}

func TestHashResetToken_DiffersForTamperedToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)

	tampered := "0" + token[1:]
	if tampered == token {
		tampered = "1" + token[1:]
	}
	assert.NotEqual(t, hash, HashResetToken(tampered))
}
