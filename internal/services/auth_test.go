package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/jwt"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authMocks struct {
	reader   *services.MockUserReader
	writer   *services.MockUserWriter
	access   *services.MockTokenIssuer
	refresh  *services.MockTokenIssuer
	hasher   *services.MockPasswordHasher
	notifier *services.MockResetNotifier
}

func newAuthService(t *testing.T, opts ...services.AuthOpt) (*services.AuthService, authMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := authMocks{
		reader:   services.NewMockUserReader(ctrl),
		writer:   services.NewMockUserWriter(ctrl),
		access:   services.NewMockTokenIssuer(ctrl),
		refresh:  services.NewMockTokenIssuer(ctrl),
		hasher:   services.NewMockPasswordHasher(ctrl),
		notifier: services.NewMockResetNotifier(ctrl),
	}
	svc := services.NewAuthService(m.reader, m.writer, m.access, m.refresh, m.hasher, m.notifier, nil, opts...)
	return svc, m
}

func strPtr(s string) *string { return &s }

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, m := newAuthService(t)

		m.reader.EXPECT().GetByUsernameOrEmail(ctx, strPtr("alice"), strPtr("alice@example.com")).Return(nil, nil)
		m.hasher.EXPECT().Hash("secret1").Return("hashed", nil)
		m.access.EXPECT().Generate(ctx, gomock.Any()).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, gomock.Any()).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, cmds ...models.UserCommand) error {
			require.Len(t, cmds, 1)
			create, ok := cmds[0].(models.CreateUser)
			require.True(t, ok)
			assert.Equal(t, "alice", create.User.Username)
			assert.Equal(t, "alice@example.com", create.User.Email)
			assert.Equal(t, "hashed", create.User.PasswordHash)
			assert.Equal(t, models.RoleUser, create.User.Role)
			require.NotNil(t, create.User.RefreshToken)
			assert.Equal(t, "refresh", *create.User.RefreshToken)
			return nil
		})

		res, err := svc.Register(ctx, " alice ", "Alice", "Alice@Example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "access", res.AccessToken)
		assert.Equal(t, "refresh", res.RefreshToken)
		assert.Equal(t, "alice", res.User.Username)
		assert.Equal(t, models.RoleUser, res.User.Role)
	})

	validation := []struct {
		name                             string
		username, uname, email, password string
		want                             error
	}{
		{"missing username", "", "Alice", "a@example.com", "secret1", services.ErrMissingFields},
		{"missing password", "alice", "Alice", "a@example.com", "", services.ErrMissingFields},
		{"short username", "al", "Alice", "a@example.com", "secret1", services.ErrInvalidUsername},
		{"long name", "alice", "Alice Alice Alice Alice Alice Alice", "a@example.com", "secret1", services.ErrInvalidName},
		{"bad email", "alice", "Alice", "not-an-email", "secret1", services.ErrInvalidEmail},
		{"email without domain dot", "alice", "Alice", "a@localhost", "secret1", services.ErrInvalidEmail},
		{"short password", "alice", "Alice", "a@example.com", "12345", services.ErrPasswordTooShort},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAuthService(t)
			res, err := svc.Register(ctx, tt.username, tt.uname, tt.email, tt.password)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, services.KindValidation, services.KindOf(err))
		})
	}

	t.Run("username taken", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsernameOrEmail(ctx, gomock.Any(), gomock.Any()).
			Return(&models.UserDB{Username: "alice", Email: "other@example.com"}, nil)

		_, err := svc.Register(ctx, "alice", "Alice", "alice@example.com", "secret1")
		assert.ErrorIs(t, err, services.ErrUsernameTaken)
	})

	t.Run("email taken", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsernameOrEmail(ctx, gomock.Any(), gomock.Any()).
			Return(&models.UserDB{Username: "bob", Email: "alice@example.com"}, nil)

		_, err := svc.Register(ctx, "alice", "Alice", "alice@example.com", "secret1")
		assert.ErrorIs(t, err, services.ErrEmailTaken)
	})

	t.Run("store reports duplicate", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsernameOrEmail(ctx, gomock.Any(), gomock.Any()).Return(nil, nil)
		m.hasher.EXPECT().Hash(gomock.Any()).Return("hashed", nil)
		m.access.EXPECT().Generate(ctx, gomock.Any()).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, gomock.Any()).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx, gomock.Any()).Return(&models.DuplicateError{Field: "email"})

		_, err := svc.Register(ctx, "alice", "Alice", "alice@example.com", "secret1")
		assert.ErrorIs(t, err, services.ErrEmailTaken)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsernameOrEmail(ctx, gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := svc.Register(ctx, "alice", "Alice", "alice@example.com", "secret1")
		assert.Error(t, err)
		assert.Equal(t, services.KindInternal, services.KindOf(err))
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	user := &models.UserDB{UserID: uuid.New(), Username: "alice", PasswordHash: "hashed", Role: models.RoleUser}

	t.Run("success replaces refresh token", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsername(ctx, "alice").Return(user, nil)
		m.hasher.EXPECT().Compare("hashed", "secret1").Return(true)
		m.access.EXPECT().Generate(ctx, user.UserID).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, user.UserID).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx, models.SetRefreshToken{UserID: user.UserID, Token: "refresh"}).Return(nil)

		res, err := svc.Login(ctx, "alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "access", res.AccessToken)
		assert.Equal(t, "refresh", res.RefreshToken)
		assert.Equal(t, user.UserID, res.User.ID)
	})

	t.Run("looks up trimmed username", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsername(ctx, "alice").Return(user, nil)
		m.hasher.EXPECT().Compare("hashed", "secret1").Return(true)
		m.access.EXPECT().Generate(ctx, user.UserID).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, user.UserID).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx, models.SetRefreshToken{UserID: user.UserID, Token: "refresh"}).Return(nil)

		_, err := svc.Login(ctx, "  alice ", "secret1")
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsername(ctx, "alice").Return(user, nil)
		m.hasher.EXPECT().Compare("hashed", "wrong").Return(false)

		_, err := svc.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("unknown user still compares", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)
		m.hasher.EXPECT().Hash(gomock.Any()).Return("dummy", nil)
		m.hasher.EXPECT().Compare("dummy", "secret1").Return(false)

		_, err := svc.Login(ctx, "ghost", "secret1")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.Login(ctx, "alice", "")
		assert.ErrorIs(t, err, services.ErrMissingFields)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	user := &models.UserDB{UserID: uuid.New()}

	t.Run("revokes", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "refresh").Return(user, nil)
		m.writer.EXPECT().Apply(ctx, models.RevokeRefreshToken{Token: "refresh"}).Return(nil)
		assert.NoError(t, svc.Logout(ctx, "refresh"))
	})

	t.Run("unknown token is accepted", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "stale").Return(nil, nil)
		assert.NoError(t, svc.Logout(ctx, "stale"))
	})

	t.Run("no token", func(t *testing.T) {
		svc, _ := newAuthService(t)
		assert.ErrorIs(t, svc.Logout(ctx, ""), services.ErrAlreadyLoggedOut)
	})
}

func TestAuthService_RefreshAccessToken(t *testing.T) {
	ctx := context.Background()
	user := &models.UserDB{UserID: uuid.New(), Username: "alice"}

	t.Run("success", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "refresh").Return(user, nil)
		m.refresh.EXPECT().GetUserID(ctx, "refresh").Return(user.UserID, nil)
		m.access.EXPECT().Generate(ctx, user.UserID).Return("access2", nil)

		res, err := svc.RefreshAccessToken(ctx, "refresh")
		require.NoError(t, err)
		assert.Equal(t, "access2", res.AccessToken)
		assert.Empty(t, res.RefreshToken)
		assert.Equal(t, "alice", res.User.Username)
	})

	t.Run("not stored", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "revoked").Return(nil, nil)

		_, err := svc.RefreshAccessToken(ctx, "revoked")
		assert.ErrorIs(t, err, services.ErrAccessExpired)
	})

	t.Run("expired signature", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "old").Return(user, nil)
		m.refresh.EXPECT().GetUserID(ctx, "old").Return(uuid.Nil, jwt.ErrExpired)

		_, err := svc.RefreshAccessToken(ctx, "old")
		assert.ErrorIs(t, err, services.ErrAccessExpired)
	})

	t.Run("subject mismatch", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByRefreshToken(ctx, "refresh").Return(user, nil)
		m.refresh.EXPECT().GetUserID(ctx, "refresh").Return(uuid.New(), nil)

		_, err := svc.RefreshAccessToken(ctx, "refresh")
		assert.ErrorIs(t, err, services.ErrAccessExpired)
	})

	t.Run("no token", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.RefreshAccessToken(ctx, "")
		assert.Equal(t, services.KindAuth, services.KindOf(err))
	})
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := services.WithClock(func() time.Time { return now })
	user := &models.UserDB{UserID: uuid.New(), Email: "alice@example.com"}

	t.Run("success", func(t *testing.T) {
		svc, m := newAuthService(t, clock, services.WithResetTokenTTL(10*time.Minute))

		var stored models.SetResetToken
		m.reader.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
		m.writer.EXPECT().Apply(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, cmds ...models.UserCommand) error {
			require.Len(t, cmds, 1)
			stored = cmds[0].(models.SetResetToken)
			return nil
		})
		m.notifier.EXPECT().SendPasswordReset(ctx, "alice@example.com", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, url string) error {
				require.Contains(t, url, "http://shop.local/reset/")
				token := url[len("http://shop.local/reset/"):]
				assert.Len(t, token, 2*jwt.ResetTokenBytes)
				assert.Equal(t, jwt.HashResetToken(token), stored.TokenHash)
				return nil
			})

		require.NoError(t, svc.RequestPasswordReset(ctx, " Alice@Example.com ", "http://shop.local/reset/"))
		assert.Equal(t, user.UserID, stored.UserID)
		assert.Equal(t, now.Add(10*time.Minute), stored.ExpiresAt)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByEmail(ctx, "ghost@example.com").Return(nil, nil)

		err := svc.RequestPasswordReset(ctx, "ghost@example.com", "http://shop.local/reset")
		assert.Equal(t, services.KindNotFound, services.KindOf(err))
		assert.EqualError(t, err, "User with email (ghost@example.com) not found")
	})

	t.Run("missing email", func(t *testing.T) {
		svc, _ := newAuthService(t)
		assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "  ", "http://shop.local/reset"), services.ErrEmailRequired)
	})

	t.Run("dispatch failure clears token", func(t *testing.T) {
		svc, m := newAuthService(t, clock)
		gomock.InOrder(
			m.reader.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil),
			m.writer.EXPECT().Apply(ctx, gomock.AssignableToTypeOf(models.SetResetToken{})).Return(nil),
			m.notifier.EXPECT().SendPasswordReset(ctx, "alice@example.com", gomock.Any()).Return(errors.New("smtp down")),
			m.writer.EXPECT().Apply(ctx, models.ClearResetToken{UserID: user.UserID}).Return(nil),
		)

		err := svc.RequestPasswordReset(ctx, "alice@example.com", "http://shop.local/reset")
		assert.Equal(t, services.KindDispatch, services.KindOf(err))
		assert.Contains(t, err.Error(), "Cannot send email to (alice@example.com)")
	})
}

func TestAuthService_CompletePasswordReset(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := services.WithClock(func() time.Time { return now })
	user := &models.UserDB{UserID: uuid.New(), Username: "alice"}

	t.Run("success", func(t *testing.T) {
		svc, m := newAuthService(t, clock)
		m.reader.EXPECT().GetByResetTokenHash(ctx, jwt.HashResetToken("raw"), now).Return(user, nil)
		m.hasher.EXPECT().Hash("newsecret").Return("newhash", nil)
		m.access.EXPECT().Generate(ctx, user.UserID).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, user.UserID).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx,
			models.SetPassword{UserID: user.UserID, PasswordHash: "newhash"},
			models.SetRefreshToken{UserID: user.UserID, Token: "refresh"},
		).Return(nil)

		res, err := svc.CompletePasswordReset(ctx, "raw", "newsecret")
		require.NoError(t, err)
		assert.Equal(t, "access", res.AccessToken)
		assert.Equal(t, "refresh", res.RefreshToken)
	})

	t.Run("expired or unknown", func(t *testing.T) {
		svc, m := newAuthService(t, clock)
		m.reader.EXPECT().GetByResetTokenHash(ctx, gomock.Any(), now).Return(nil, nil)

		_, err := svc.CompletePasswordReset(ctx, "raw", "newsecret")
		assert.ErrorIs(t, err, services.ErrResetTokenExpired)
		assert.Equal(t, services.KindForbidden, services.KindOf(err))
	})

	t.Run("validation", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.CompletePasswordReset(ctx, "", "newsecret")
		assert.ErrorIs(t, err, services.ErrResetTokenRequired)
		_, err = svc.CompletePasswordReset(ctx, "raw", "")
		assert.ErrorIs(t, err, services.ErrPasswordRequired)
		_, err = svc.CompletePasswordReset(ctx, "raw", "123")
		assert.ErrorIs(t, err, services.ErrPasswordTooShort)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	user := &models.UserDB{UserID: uuid.New(), PasswordHash: "oldhash"}

	t.Run("success", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByID(ctx, user.UserID).Return(user, nil)
		m.hasher.EXPECT().Compare("oldhash", "oldsecret").Return(true)
		m.hasher.EXPECT().Hash("newsecret").Return("newhash", nil)
		m.access.EXPECT().Generate(ctx, user.UserID).Return("access", nil)
		m.refresh.EXPECT().Generate(ctx, user.UserID).Return("refresh", nil)
		m.writer.EXPECT().Apply(ctx,
			models.SetPassword{UserID: user.UserID, PasswordHash: "newhash"},
			models.SetRefreshToken{UserID: user.UserID, Token: "refresh"},
		).Return(nil)

		res, err := svc.ChangePassword(ctx, user.UserID, "oldsecret", "newsecret")
		require.NoError(t, err)
		assert.Equal(t, "refresh", res.RefreshToken)
	})

	t.Run("incorrect old password", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByID(ctx, user.UserID).Return(user, nil)
		m.hasher.EXPECT().Compare("oldhash", "guess12").Return(false)

		_, err := svc.ChangePassword(ctx, user.UserID, "guess12", "newsecret")
		assert.ErrorIs(t, err, services.ErrIncorrectPassword)
	})

	t.Run("user gone", func(t *testing.T) {
		svc, m := newAuthService(t)
		m.reader.EXPECT().GetByID(ctx, user.UserID).Return(nil, nil)

		_, err := svc.ChangePassword(ctx, user.UserID, "oldsecret", "newsecret")
		assert.ErrorIs(t, err, services.ErrNotAllowed)
	})

	validation := []struct {
		name     string
		old, new string
		want     error
	}{
		{"missing old", "", "newsecret", services.ErrMissingFields},
		{"missing new", "oldsecret", "", services.ErrMissingFields},
		{"same", "oldsecret", "oldsecret", services.ErrSamePassword},
		{"short", "oldsecret", "123", services.ErrPasswordTooShort},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAuthService(t)
			_, err := svc.ChangePassword(ctx, user.UserID, tt.old, tt.new)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
