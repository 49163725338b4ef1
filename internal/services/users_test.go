package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userMocks struct {
	reader   *services.MockUserReader
	writer   *services.MockUserWriter
	products *services.MockProductCounter
}

func newUserService(t *testing.T) (*services.UserService, userMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := userMocks{
		reader:   services.NewMockUserReader(ctrl),
		writer:   services.NewMockUserWriter(ctrl),
		products: services.NewMockProductCounter(ctrl),
	}
	return services.NewUserService(m.reader, m.writer, m.products, nil), m
}

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	svc, m := newUserService(t)
	m.reader.EXPECT().GetByID(ctx, id).Return(&models.UserDB{UserID: id, Username: "alice", PasswordHash: "x"}, nil)
	user, err := svc.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	m.reader.EXPECT().GetByID(ctx, id).Return(nil, nil)
	_, err = svc.GetUser(ctx, id)
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
}

func TestUserService_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc, m := newUserService(t)

	m.reader.EXPECT().List(ctx).Return([]*models.UserDB{{Username: "alice"}, {Username: "bob"}}, nil)
	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	m.reader.EXPECT().List(ctx).Return(nil, nil)
	_, err = svc.ListUsers(ctx)
	assert.ErrorIs(t, err, services.ErrNoUsers)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	user := &models.UserDB{UserID: id, Username: "alice", Email: "alice@example.com", Role: models.RoleUser}

	t.Run("success", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "new@example.com").Return(nil, nil)
		m.writer.EXPECT().Apply(ctx, models.UpdateProfile{UserID: id, Name: "Alice B", Email: "new@example.com"}).Return(nil)

		assert.NoError(t, svc.UpdateProfile(ctx, id, " Alice B ", "New@Example.com"))
	})

	t.Run("keeping own email", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
		m.writer.EXPECT().Apply(ctx, gomock.Any()).Return(nil)

		assert.NoError(t, svc.UpdateProfile(ctx, id, "Alice", "alice@example.com"))
	})

	t.Run("email registered", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "bob@example.com").Return(&models.UserDB{UserID: uuid.New()}, nil)

		assert.ErrorIs(t, svc.UpdateProfile(ctx, id, "Alice", "bob@example.com"), services.ErrEmailRegistered)
	})

	t.Run("race on email", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "bob@example.com").Return(nil, nil)
		m.writer.EXPECT().Apply(ctx, gomock.Any()).Return(&models.DuplicateError{Field: "email"})

		assert.ErrorIs(t, svc.UpdateProfile(ctx, id, "Alice", "bob@example.com"), services.ErrEmailRegistered)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _ := newUserService(t)
		assert.ErrorIs(t, svc.UpdateProfile(ctx, id, "", "a@example.com"), services.ErrMissingFields)
		assert.ErrorIs(t, svc.UpdateProfile(ctx, id, "Al", "a@example.com"), services.ErrInvalidName)
		assert.ErrorIs(t, svc.UpdateProfile(ctx, id, "Alice", "nope"), services.ErrInvalidEmail)
	})

	t.Run("user not found", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(nil, nil)

		err := svc.UpdateProfile(ctx, id, "Alice", "alice@example.com")
		assert.Equal(t, services.KindNotFound, services.KindOf(err))
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	user := &models.UserDB{UserID: id, Username: "alice", Email: "alice@example.com", Role: models.RoleUser}

	t.Run("promote", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
		m.writer.EXPECT().Apply(ctx,
			models.UpdateProfile{UserID: id, Name: "Alice", Email: "alice@example.com"},
			models.UpdateRole{UserID: id, Role: models.RoleAdmin},
		).Return(nil)

		username, err := svc.UpdateUser(ctx, id, "Alice", "alice@example.com", "admin")
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
	})

	t.Run("same role skips role command", func(t *testing.T) {
		svc, m := newUserService(t)
		m.reader.EXPECT().GetByID(ctx, id).Return(user, nil)
		m.reader.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
		m.writer.EXPECT().Apply(ctx, models.UpdateProfile{UserID: id, Name: "Alice", Email: "alice@example.com"}).Return(nil)

		_, err := svc.UpdateUser(ctx, id, "Alice", "alice@example.com", "user")
		assert.NoError(t, err)
	})

	t.Run("invalid role", func(t *testing.T) {
		svc, _ := newUserService(t)
		_, err := svc.UpdateUser(ctx, id, "Alice", "alice@example.com", "root")
		assert.ErrorIs(t, err, services.ErrInvalidRole)
		_, err = svc.UpdateUser(ctx, id, "Alice", "alice@example.com", "")
		assert.ErrorIs(t, err, services.ErrMissingFields)
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc, m := newUserService(t)
		m.products.EXPECT().CountByUserID(ctx, id).Return(0, nil)
		m.reader.EXPECT().GetByID(ctx, id).Return(&models.UserDB{UserID: id, Username: "alice"}, nil)
		m.writer.EXPECT().Apply(ctx, models.DeleteUser{UserID: id}).Return(nil)

		deleted, err := svc.DeleteUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice", deleted.Username)
	})

	t.Run("owns products", func(t *testing.T) {
		svc, m := newUserService(t)
		m.products.EXPECT().CountByUserID(ctx, id).Return(2, nil)

		_, err := svc.DeleteUser(ctx, id)
		assert.Equal(t, services.KindConflict, services.KindOf(err))
		assert.EqualError(t, err, "User has assigned 2 products")
	})

	t.Run("not found", func(t *testing.T) {
		svc, m := newUserService(t)
		m.products.EXPECT().CountByUserID(ctx, id).Return(0, nil)
		m.reader.EXPECT().GetByID(ctx, id).Return(nil, nil)

		_, err := svc.DeleteUser(ctx, id)
		assert.Equal(t, services.KindNotFound, services.KindOf(err))
	})

	t.Run("count failure", func(t *testing.T) {
		svc, m := newUserService(t)
		m.products.EXPECT().CountByUserID(ctx, id).Return(0, errors.New("db down"))

		_, err := svc.DeleteUser(ctx, id)
		assert.Equal(t, services.KindInternal, services.KindOf(err))
	})
}
