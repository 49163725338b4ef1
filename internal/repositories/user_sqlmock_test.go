package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"user_id", "username", "name", "email", "password_hash", "role",
	"refresh_token", "reset_password_token_hash", "reset_password_expires_at",
	"created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "pgx"), mock
}

func TestUserReadRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserReadRepository(db, nil)
	id := uuid.New()
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users WHERE user_id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "alice", "Alice", "alice@example.com", "hash", "user", nil, nil, nil, now, now))

		user, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.Nil(t, user.RefreshToken)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users WHERE user_id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		user, err := repo.GetByID(context.Background(), id)
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users WHERE user_id = \$1`).
			WithArgs(id).
			WillReturnError(errors.New("db down"))

		user, err := repo.GetByID(context.Background(), id)
		assert.Error(t, err)
		assert.Nil(t, user)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserReadRepository_UsesRequestTransaction(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	tx, err := db.Beginx()
	require.NoError(t, err)

	repo := NewUserReadRepository(db, func(ctx context.Context) *sqlx.Tx { return tx })

	mock.ExpectQuery(`SELECT .+ FROM users WHERE refresh_token = \$1`).
		WithArgs("token").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err := repo.GetByRefreshToken(context.Background(), "token")
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserWriteRepository_Apply(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		cmds    []models.UserCommand
		setup   func(mock sqlmock.Sqlmock)
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "single command commits",
			cmds: []models.UserCommand{models.SetRefreshToken{UserID: id, Token: "t"}},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
					WithArgs(id, "t").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "batch commits once",
			cmds: []models.UserCommand{
				models.SetPassword{UserID: id, PasswordHash: "h"},
				models.SetRefreshToken{UserID: id, Token: "t"},
			},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
					WithArgs(id, "h").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
					WithArgs(id, "t").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "unique violation maps to duplicate error",
			cmds: []models.UserCommand{models.CreateUser{User: models.UserDB{UserID: id, Username: "alice"}}},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(id, "alice", "", "", "", "", sqlmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"})
				mock.ExpectRollback()
			},
			wantErr: func(t *testing.T, err error) {
				var dup *models.DuplicateError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "username", dup.Field)
			},
		},
		{
			name: "failing command rolls back the batch",
			cmds: []models.UserCommand{
				models.SetRefreshToken{UserID: id, Token: "t"},
				models.DeleteUser{UserID: id},
			},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`DELETE FROM users WHERE user_id = \$1`).
					WithArgs(id).
					WillReturnError(errors.New("boom"))
				mock.ExpectRollback()
			},
			wantErr: func(t *testing.T, err error) {
				assert.EqualError(t, err, "boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			err := NewUserWriteRepository(db, nil).Apply(context.Background(), tt.cmds...)
			if tt.wantErr != nil {
				tt.wantErr(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProductReadRepository_CountByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE user_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := NewProductReadRepository(db).CountByUserID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
