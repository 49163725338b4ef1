package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
)

// UserMemoryRepository is an in-memory credential store.
// It implements both the read and the write side and applies command batches atomically.
type UserMemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.UserDB
	now   func() time.Time
}

// NewUserMemoryRepository creates an empty store.
func NewUserMemoryRepository() *UserMemoryRepository {
	return &UserMemoryRepository{
		users: make(map[uuid.UUID]*models.UserDB),
		now:   time.Now,
	}
}

func (r *UserMemoryRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool { return u.UserID == userID }), nil
}

func (r *UserMemoryRepository) GetByUsername(ctx context.Context, username string) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool { return u.Username == username }), nil
}

func (r *UserMemoryRepository) GetByEmail(ctx context.Context, email string) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool { return u.Email == email }), nil
}

func (r *UserMemoryRepository) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool {
		return (username != nil && u.Username == *username) || (email != nil && u.Email == *email)
	}), nil
}

func (r *UserMemoryRepository) GetByRefreshToken(ctx context.Context, token string) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool {
		return u.RefreshToken != nil && *u.RefreshToken == token
	}), nil
}

func (r *UserMemoryRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.UserDB, error) {
	return r.findOne(func(u *models.UserDB) bool {
		return u.ResetPasswordTokenHash != nil && *u.ResetPasswordTokenHash == tokenHash &&
			u.ResetPasswordExpiresAt != nil && u.ResetPasswordExpiresAt.After(now)
	}), nil
}

func (r *UserMemoryRepository) List(ctx context.Context) ([]*models.UserDB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.UserDB, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Apply runs all commands against a working copy and publishes it only if every command succeeds.
func (r *UserMemoryRepository) Apply(ctx context.Context, cmds ...models.UserCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := make(map[uuid.UUID]*models.UserDB, len(r.users))
	for id, u := range r.users {
		work[id] = cloneUser(u)
	}

	now := r.now()
	for _, cmd := range cmds {
		if err := applyToMap(work, cmd, now); err != nil {
			return err
		}
	}

	r.users = work
	return nil
}

func applyToMap(users map[uuid.UUID]*models.UserDB, cmd models.UserCommand, now time.Time) error {
	switch c := cmd.(type) {
	case models.CreateUser:
		if _, ok := users[c.User.UserID]; ok {
			return &models.DuplicateError{Field: "user_id"}
		}
		for _, u := range users {
			if u.Username == c.User.Username {
				return &models.DuplicateError{Field: "username"}
			}
			if u.Email == c.User.Email {
				return &models.DuplicateError{Field: "email"}
			}
		}
		u := cloneUser(&c.User)
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		users[u.UserID] = u

	case models.SetRefreshToken:
		if u, ok := users[c.UserID]; ok {
			token := c.Token
			u.RefreshToken = &token
			u.UpdatedAt = now
		}

	case models.RevokeRefreshToken:
		for _, u := range users {
			if u.RefreshToken != nil && *u.RefreshToken == c.Token {
				u.RefreshToken = nil
				u.UpdatedAt = now
			}
		}

	case models.SetResetToken:
		if u, ok := users[c.UserID]; ok {
			hash, exp := c.TokenHash, c.ExpiresAt
			u.ResetPasswordTokenHash = &hash
			u.ResetPasswordExpiresAt = &exp
			u.UpdatedAt = now
		}

	case models.ClearResetToken:
		if u, ok := users[c.UserID]; ok {
			u.ResetPasswordTokenHash = nil
			u.ResetPasswordExpiresAt = nil
			u.UpdatedAt = now
		}

	case models.SetPassword:
		if u, ok := users[c.UserID]; ok {
			u.PasswordHash = c.PasswordHash
			u.ResetPasswordTokenHash = nil
			u.ResetPasswordExpiresAt = nil
			u.UpdatedAt = now
		}

	case models.UpdateProfile:
		for id, u := range users {
			if id != c.UserID && u.Email == c.Email {
				return &models.DuplicateError{Field: "email"}
			}
		}
		if u, ok := users[c.UserID]; ok {
			u.Name = c.Name
			u.Email = c.Email
			u.UpdatedAt = now
		}

	case models.UpdateRole:
		if u, ok := users[c.UserID]; ok {
			u.Role = c.Role
			u.UpdatedAt = now
		}

	case models.DeleteUser:
		delete(users, c.UserID)

	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
	return nil
}

func (r *UserMemoryRepository) findOne(match func(u *models.UserDB) bool) *models.UserDB {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

func cloneUser(u *models.UserDB) *models.UserDB {
	c := *u
	if u.RefreshToken != nil {
		v := *u.RefreshToken
		c.RefreshToken = &v
	}
	if u.ResetPasswordTokenHash != nil {
		v := *u.ResetPasswordTokenHash
		c.ResetPasswordTokenHash = &v
	}
	if u.ResetPasswordExpiresAt != nil {
		v := *u.ResetPasswordExpiresAt
		c.ResetPasswordExpiresAt = &v
	}
	return &c
}

// ProductMemoryRepository counts products per owner for the in-memory backend.
type ProductMemoryRepository struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]int
}

// NewProductMemoryRepository creates an empty product ownership index.
func NewProductMemoryRepository() *ProductMemoryRepository {
	return &ProductMemoryRepository{owners: make(map[uuid.UUID]int)}
}

// Add records that userID owns n more products.
func (r *ProductMemoryRepository) Add(userID uuid.UUID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[userID] += n
}

func (r *ProductMemoryRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[userID], nil
}
