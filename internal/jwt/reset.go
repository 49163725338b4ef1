package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// ResetTokenBytes is the amount of randomness in a password reset token.
const ResetTokenBytes = 20

// GenerateResetToken returns a random hex token and its sha256 hash.
// The raw token goes to the user, only the hash is persisted.
func GenerateResetToken() (token, hash string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	token = hex.EncodeToString(buf)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the stored form of a raw reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
