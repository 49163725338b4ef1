package services

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/jwt"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/metrics"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
)

// DefaultResetTokenTTL is how long a password reset link stays valid.
const DefaultResetTokenTTL = 30 * time.Minute

// UserReader defines read-only operations for users.
// Lookups return (nil, nil) when no record matches.
type UserReader interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error)
	GetByUsername(ctx context.Context, username string) (*models.UserDB, error)
	GetByEmail(ctx context.Context, email string) (*models.UserDB, error)
	GetByUsernameOrEmail(ctx context.Context, username *string, email *string) (*models.UserDB, error)
	GetByRefreshToken(ctx context.Context, token string) (*models.UserDB, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.UserDB, error)
	List(ctx context.Context) ([]*models.UserDB, error)
}

// UserWriter applies write commands atomically.
type UserWriter interface {
	Apply(ctx context.Context, cmds ...models.UserCommand) error
}

// TokenIssuer signs and verifies one kind of token.
type TokenIssuer interface {
	Generate(ctx context.Context, userID uuid.UUID) (string, error)
	GetUserID(ctx context.Context, tokenString string) (uuid.UUID, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// ResetNotifier delivers password reset links.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// AuthResult is returned by every operation that establishes a session.
// RefreshToken is empty when the operation does not issue one.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// AuthService handles registration, login and the session lifecycle.
type AuthService struct {
	reader   UserReader
	writer   UserWriter
	access   TokenIssuer
	refresh  TokenIssuer
	hasher   PasswordHasher
	notifier ResetNotifier
	events   *EventPublisher

	resetTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// AuthOpt configures optional AuthService settings.
type AuthOpt func(*AuthService)

// WithResetTokenTTL overrides DefaultResetTokenTTL.
func WithResetTokenTTL(ttl time.Duration) AuthOpt {
	return func(s *AuthService) {
		s.resetTTL = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AuthOpt {
	return func(s *AuthService) {
		s.now = now
	}
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(
	reader UserReader,
	writer UserWriter,
	access TokenIssuer,
	refresh TokenIssuer,
	hasher PasswordHasher,
	notifier ResetNotifier,
	events *EventPublisher,
	opts ...AuthOpt,
) *AuthService {
	svc := &AuthService{
		reader:   reader,
		writer:   writer,
		access:   access,
		refresh:  refresh,
		hasher:   hasher,
		notifier: notifier,
		events:   events,
		resetTTL: DefaultResetTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates a user and logs them in.
func (svc *AuthService) Register(ctx context.Context, username, name, email, password string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveOperation("register", err) }()

	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if username == "" || name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := svc.reader.GetByUsernameOrEmail(ctx, &username, &email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return nil, err
	}
	if existing != nil {
		logger.Log.Infow("user already exists", "username", username)
		if existing.Username == username {
			return nil, ErrUsernameTaken
		}
		return nil, ErrEmailTaken
	}

	passwordHash, err := svc.hasher.Hash(password)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return nil, err
	}

	now := svc.now()
	user := models.UserDB{
		UserID:       uuid.New(),
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	accessToken, refreshToken, err := svc.generatePair(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = &refreshToken

	if err := svc.writer.Apply(ctx, models.CreateUser{User: user}); err != nil {
		logger.Log.Errorw("failed to save user", "err", err)
		return nil, conflictFromStore(err)
	}

	svc.events.Publish(ctx, models.EventUserRegistered, user.UserID)
	logger.Log.Infow("user registered", "user_id", user.UserID)

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Filter(),
	}, nil
}

// Login authenticates a user and starts a new session, replacing any previous one.
func (svc *AuthService) Login(ctx context.Context, username, password string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveOperation("login", err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}

	user, err := svc.reader.GetByUsername(ctx, username)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return nil, err
	}
	if user == nil {
		// Spend the same effort as a real comparison so unknown usernames are not observable.
		svc.hasher.Compare(svc.getDummyHash(), password)
		logger.Log.Infow("login failed", "reason", "unknown username")
		return nil, ErrInvalidCredentials
	}

	if !svc.hasher.Compare(user.PasswordHash, password) {
		logger.Log.Infow("login failed", "reason", "password mismatch", "user_id", user.UserID)
		return nil, ErrInvalidCredentials
	}

	res, err = svc.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	svc.events.Publish(ctx, models.EventUserLoggedIn, user.UserID)
	return res, nil
}

// Logout revokes the refresh token held by the client.
// A token that matches no record is accepted silently.
func (svc *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { metrics.ObserveOperation("logout", err) }()

	if refreshToken == "" {
		return ErrAlreadyLoggedOut
	}

	user, err := svc.reader.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		logger.Log.Errorw("failed to get user by refresh token", "err", err)
		return err
	}
	if user == nil {
		return nil
	}

	if err := svc.writer.Apply(ctx, models.RevokeRefreshToken{Token: refreshToken}); err != nil {
		logger.Log.Errorw("failed to revoke refresh token", "err", err)
		return err
	}

	svc.events.Publish(ctx, models.EventUserLoggedOut, user.UserID)
	return nil
}

// RefreshAccessToken issues a new access token for a live refresh token.
// The stored token is looked up first, so a revoked or replaced token fails even
// while its signature is still valid. The refresh token itself is not rotated.
func (svc *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveOperation("refresh", err) }()

	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	user, err := svc.reader.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		logger.Log.Errorw("failed to get user by refresh token", "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrAccessExpired
	}

	userID, err := svc.refresh.GetUserID(ctx, refreshToken)
	if err != nil {
		logger.Log.Infow("refresh token rejected", "user_id", user.UserID, "err", err)
		return nil, ErrAccessExpired
	}
	if userID != user.UserID {
		logger.Log.Warnw("refresh token subject mismatch", "user_id", user.UserID)
		return nil, ErrAccessExpired
	}

	accessToken, err := svc.access.Generate(ctx, user.UserID)
	if err != nil {
		logger.Log.Errorw("failed to generate access token", "err", err)
		return nil, err
	}

	svc.events.Publish(ctx, models.EventAccessRefreshed, user.UserID)
	return &AuthResult{AccessToken: accessToken, User: user.Filter()}, nil
}

// RequestPasswordReset stores a new reset token for the user owning email and
// sends the reset link. resetURLBase is the link prefix the raw token is appended to.
// If the link cannot be sent the reset fields are cleared again.
func (svc *AuthService) RequestPasswordReset(ctx context.Context, email, resetURLBase string) (err error) {
	defer func() { metrics.ObserveOperation("reset_request", err) }()

	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	user, err := svc.reader.GetByEmail(ctx, email)
	if err != nil {
		logger.Log.Errorw("failed to get user by email", "err", err)
		return err
	}
	if user == nil {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("User with email (%s) not found", email)}
	}

	token, tokenHash, err := jwt.GenerateResetToken()
	if err != nil {
		logger.Log.Errorw("failed to generate reset token", "err", err)
		return err
	}

	if err := svc.writer.Apply(ctx, models.SetResetToken{
		UserID:    user.UserID,
		TokenHash: tokenHash,
		ExpiresAt: svc.now().Add(svc.resetTTL),
	}); err != nil {
		logger.Log.Errorw("failed to store reset token", "err", err)
		return err
	}

	resetURL := strings.TrimRight(resetURLBase, "/") + "/" + token
	if err := svc.notifier.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		logger.Log.Errorw("failed to send reset email", "user_id", user.UserID, "err", err)
		if clearErr := svc.writer.Apply(ctx, models.ClearResetToken{UserID: user.UserID}); clearErr != nil {
			logger.Log.Errorw("failed to roll back reset token", "user_id", user.UserID, "err", clearErr)
		}
		return &Error{Kind: KindDispatch, Message: fmt.Sprintf("Cannot send email to (%s)", email), Err: err}
	}

	svc.events.Publish(ctx, models.EventResetRequested, user.UserID)
	return nil
}

// CompletePasswordReset sets a new password for the holder of a live reset token
// and logs them in.
func (svc *AuthService) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveOperation("reset_complete", err) }()

	if rawToken == "" {
		return nil, ErrResetTokenRequired
	}
	if newPassword == "" {
		return nil, ErrPasswordRequired
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	user, err := svc.reader.GetByResetTokenHash(ctx, jwt.HashResetToken(rawToken), svc.now())
	if err != nil {
		logger.Log.Errorw("failed to get user by reset token", "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrResetTokenExpired
	}

	passwordHash, err := svc.hasher.Hash(newPassword)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return nil, err
	}

	res, err = svc.startSession(ctx, user, models.SetPassword{UserID: user.UserID, PasswordHash: passwordHash})
	if err != nil {
		return nil, err
	}

	svc.events.Publish(ctx, models.EventPasswordReset, user.UserID)
	return res, nil
}

// ChangePassword replaces the password of an authenticated user and starts a new session.
func (svc *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveOperation("change_password", err) }()

	if oldPassword == "" || newPassword == "" {
		return nil, ErrMissingFields
	}
	if oldPassword == newPassword {
		return nil, ErrSamePassword
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAllowed
	}

	if !svc.hasher.Compare(user.PasswordHash, oldPassword) {
		return nil, ErrIncorrectPassword
	}

	passwordHash, err := svc.hasher.Hash(newPassword)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return nil, err
	}

	res, err = svc.startSession(ctx, user, models.SetPassword{UserID: user.UserID, PasswordHash: passwordHash})
	if err != nil {
		return nil, err
	}

	svc.events.Publish(ctx, models.EventPasswordChanged, user.UserID)
	return res, nil
}

// startSession issues a token pair and persists the refresh token together with cmds.
func (svc *AuthService) startSession(ctx context.Context, user *models.UserDB, cmds ...models.UserCommand) (*AuthResult, error) {
	accessToken, refreshToken, err := svc.generatePair(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	cmds = append(cmds, models.SetRefreshToken{UserID: user.UserID, Token: refreshToken})
	if err := svc.writer.Apply(ctx, cmds...); err != nil {
		logger.Log.Errorw("failed to persist session", "user_id", user.UserID, "err", err)
		return nil, err
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Filter(),
	}, nil
}

func (svc *AuthService) generatePair(ctx context.Context, userID uuid.UUID) (accessToken, refreshToken string, err error) {
	accessToken, err = svc.access.Generate(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to generate access token", "err", err)
		return "", "", err
	}

	refreshToken, err = svc.refresh.Generate(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to generate refresh token", "err", err)
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (svc *AuthService) getDummyHash() string {
	svc.dummyOnce.Do(func() {
		hash, err := svc.hasher.Hash(uuid.NewString())
		if err != nil {
			logger.Log.Warnw("failed to prepare dummy hash", "err", err)
			return
		}
		svc.dummyHash = hash
	})
	return svc.dummyHash
}

// conflictFromStore maps a store duplicate error to the matching conflict error.
func conflictFromStore(err error) error {
	var dup *models.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	switch dup.Field {
	case "username":
		return ErrUsernameTaken
	case "email":
		return ErrEmailTaken
	default:
		return &Error{Kind: KindConflict, Message: fmt.Sprintf("Duplicated %s entered", dup.Field), Err: err}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 30 {
		return ErrInvalidUsername
	}
	return nil
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
		return ErrInvalidName
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return ErrPasswordTooShort
	}
	return nil
}
