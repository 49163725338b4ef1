package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
)

const userColumns = `user_id, username, name, email, password_hash, role,
	refresh_token, reset_password_token_hash, reset_password_expires_at,
	created_at, updated_at`

// UserReadRepository reads users from PostgreSQL.
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewUserReadRepository creates a read repository. txGetter may be nil.
func NewUserReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

func (r *UserReadRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
}

func (r *UserReadRepository) GetByUsername(ctx context.Context, username string) (*models.UserDB, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserReadRepository) GetByEmail(ctx context.Context, email string) (*models.UserDB, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserReadRepository) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.UserDB, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::VARCHAR IS NOT NULL AND username = $1)
		   OR ($2::VARCHAR IS NOT NULL AND email = $2)
		LIMIT 1
	`
	return r.getOne(ctx, query, username, email)
}

func (r *UserReadRepository) GetByRefreshToken(ctx context.Context, token string) (*models.UserDB, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token)
}

func (r *UserReadRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.UserDB, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_password_token_hash = $1
		  AND reset_password_expires_at > $2
	`
	return r.getOne(ctx, query, tokenHash, now)
}

func (r *UserReadRepository) List(ctx context.Context) ([]*models.UserDB, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	var users []*models.UserDB
	err := sqlx.SelectContext(ctx, r.executor(ctx), &users, query)

	logger.Log.Infow(
		"query", singleLine(query),
		"result", len(users),
		"error", err,
	)

	return users, err
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, args ...any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, r.executor(ctx), &user, query, args...)

	// Credentials stay out of the log: only the lookup outcome is recorded.
	logger.Log.Infow(
		"query", singleLine(query),
		"found", err == nil,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserReadRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return tx
		}
	}
	return r.db
}

// UserWriteRepository applies user commands to PostgreSQL.
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewUserWriteRepository creates a write repository. txGetter may be nil.
func NewUserWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Apply executes all commands in one transaction. When the context already
// carries a request transaction the commands join it instead.
func (r *UserWriteRepository) Apply(ctx context.Context, cmds ...models.UserCommand) error {
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			return applyCommands(ctx, tx, cmds)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyCommands(ctx, tx, cmds); err != nil {
		return err
	}
	return tx.Commit()
}

func applyCommands(ctx context.Context, tx *sqlx.Tx, cmds []models.UserCommand) error {
	for _, cmd := range cmds {
		query, args, err := commandSQL(cmd)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		var rowsAffected int64
		if res != nil {
			rowsAffected, _ = res.RowsAffected()
		}

		logger.Log.Infow(
			"query", singleLine(query),
			"command", fmt.Sprintf("%T", cmd),
			"result", rowsAffected,
			"error", err,
		)

		if err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func commandSQL(cmd models.UserCommand) (string, []any, error) {
	switch c := cmd.(type) {
	case models.CreateUser:
		u := c.User
		return `
			INSERT INTO users (user_id, username, name, email, password_hash, role, refresh_token, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		`, []any{u.UserID, u.Username, u.Name, u.Email, u.PasswordHash, u.Role, u.RefreshToken}, nil

	case models.SetRefreshToken:
		return `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE user_id = $1`,
			[]any{c.UserID, c.Token}, nil

	case models.RevokeRefreshToken:
		return `UPDATE users SET refresh_token = NULL, updated_at = NOW() WHERE refresh_token = $1`,
			[]any{c.Token}, nil

	case models.SetResetToken:
		return `
			UPDATE users
			SET reset_password_token_hash = $2, reset_password_expires_at = $3, updated_at = NOW()
			WHERE user_id = $1
		`, []any{c.UserID, c.TokenHash, c.ExpiresAt}, nil

	case models.ClearResetToken:
		return `
			UPDATE users
			SET reset_password_token_hash = NULL, reset_password_expires_at = NULL, updated_at = NOW()
			WHERE user_id = $1
		`, []any{c.UserID}, nil

	case models.SetPassword:
		return `
			UPDATE users
			SET password_hash = $2, reset_password_token_hash = NULL, reset_password_expires_at = NULL, updated_at = NOW()
			WHERE user_id = $1
		`, []any{c.UserID, c.PasswordHash}, nil

	case models.UpdateProfile:
		return `UPDATE users SET name = $2, email = $3, updated_at = NOW() WHERE user_id = $1`,
			[]any{c.UserID, c.Name, c.Email}, nil

	case models.UpdateRole:
		return `UPDATE users SET role = $2, updated_at = NOW() WHERE user_id = $1`,
			[]any{c.UserID, c.Role}, nil

	case models.DeleteUser:
		return `DELETE FROM users WHERE user_id = $1`, []any{c.UserID}, nil
	}
	return "", nil, fmt.Errorf("unsupported command %T", cmd)
}

// mapPgError turns unique violations into models.DuplicateError.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		field := strings.TrimSuffix(strings.TrimPrefix(pgErr.ConstraintName, "users_"), "_key")
		return &models.DuplicateError{Field: field}
	}
	return err
}

func singleLine(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
