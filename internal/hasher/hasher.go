package hasher

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the fixed bcrypt work factor used for stored passwords.
const DefaultCost = 10

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Bcrypt hashes and verifies passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// New creates a bcrypt hasher with DefaultCost.
func New() *Bcrypt {
	return &Bcrypt{cost: DefaultCost}
}

// NewWithCost creates a bcrypt hasher with a custom cost, used by tests to keep them fast.
func NewWithCost(cost int) *Bcrypt {
	return &Bcrypt{cost: cost}
}

// Hash returns a salted bcrypt hash of the password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether password matches hash.
// bcrypt compares the derived keys in constant time.
func (b *Bcrypt) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
