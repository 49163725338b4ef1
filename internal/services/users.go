package services

//go:generate mockgen -source=users.go -destination=users_mock.go -package=services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/metrics"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
)

// ProductCounter reports how many catalog products a user owns.
type ProductCounter interface {
	CountByUserID(ctx context.Context, userID uuid.UUID) (int, error)
}

// UserService handles profile and admin user management.
type UserService struct {
	reader   UserReader
	writer   UserWriter
	products ProductCounter
	events   *EventPublisher
}

// NewUserService creates a new UserService.
func NewUserService(reader UserReader, writer UserWriter, products ProductCounter, events *EventPublisher) *UserService {
	return &UserService{
		reader:   reader,
		writer:   writer,
		products: products,
		events:   events,
	}
}

// GetUser returns the filtered view of a user.
func (svc *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "user_id", userID, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, userNotFound(userID)
	}
	return user.Filter(), nil
}

// ListUsers returns all users.
func (svc *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := svc.reader.List(ctx)
	if err != nil {
		logger.Log.Errorw("failed to list users", "err", err)
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}

	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Filter())
	}
	return out, nil
}

// UpdateProfile changes name and email of the calling user.
func (svc *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string) (err error) {
	defer func() { metrics.ObserveOperation("update_profile", err) }()

	user, err := svc.prepareUpdate(ctx, userID, &name, &email)
	if err != nil {
		return err
	}

	if err := svc.writer.Apply(ctx, models.UpdateProfile{UserID: user.UserID, Name: name, Email: email}); err != nil {
		logger.Log.Errorw("failed to update profile", "user_id", userID, "err", err)
		return emailConflictFromStore(err)
	}

	svc.events.Publish(ctx, models.EventUserUpdated, user.UserID)
	return nil
}

// UpdateUser changes name, email and role of any user. It returns the username of the updated user.
// A role change applies to access checks made after the update.
func (svc *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, name, email, role string) (username string, err error) {
	defer func() { metrics.ObserveOperation("update_user", err) }()

	role = strings.TrimSpace(role)
	if role == "" {
		return "", ErrMissingFields
	}
	if !models.ValidRole(role) {
		return "", ErrInvalidRole
	}

	user, err := svc.prepareUpdate(ctx, userID, &name, &email)
	if err != nil {
		return "", err
	}

	cmds := []models.UserCommand{models.UpdateProfile{UserID: user.UserID, Name: name, Email: email}}
	if role != user.Role {
		cmds = append(cmds, models.UpdateRole{UserID: user.UserID, Role: role})
	}
	if err := svc.writer.Apply(ctx, cmds...); err != nil {
		logger.Log.Errorw("failed to update user", "user_id", userID, "err", err)
		return "", emailConflictFromStore(err)
	}

	svc.events.Publish(ctx, models.EventUserUpdated, user.UserID)
	if role != user.Role {
		logger.Log.Infow("user role changed", "user_id", user.UserID, "from", user.Role, "to", role)
		svc.events.Publish(ctx, models.EventUserRoleChanged, user.UserID)
	}
	return user.Username, nil
}

// DeleteUser removes a user that owns no catalog products.
func (svc *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) (deleted *models.User, err error) {
	defer func() { metrics.ObserveOperation("delete_user", err) }()

	count, err := svc.products.CountByUserID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to count user products", "user_id", userID, "err", err)
		return nil, err
	}
	if count > 0 {
		return nil, &Error{Kind: KindConflict, Message: fmt.Sprintf("User has assigned %d products", count)}
	}

	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "user_id", userID, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, userNotFound(userID)
	}

	if err := svc.writer.Apply(ctx, models.DeleteUser{UserID: user.UserID}); err != nil {
		logger.Log.Errorw("failed to delete user", "user_id", userID, "err", err)
		return nil, err
	}

	svc.events.Publish(ctx, models.EventUserDeleted, user.UserID)
	return user.Filter(), nil
}

// prepareUpdate validates name and email in place and loads the target user.
func (svc *UserService) prepareUpdate(ctx context.Context, userID uuid.UUID, name, email *string) (*models.UserDB, error) {
	*name = strings.TrimSpace(*name)
	*email = normalizeEmail(*email)
	if *name == "" || *email == "" {
		return nil, ErrMissingFields
	}
	if err := validateName(*name); err != nil {
		return nil, err
	}
	if err := validateEmail(*email); err != nil {
		return nil, err
	}

	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "user_id", userID, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, &Error{Kind: KindNotFound, Message: "User not found"}
	}

	dup, err := svc.reader.GetByEmail(ctx, *email)
	if err != nil {
		logger.Log.Errorw("failed to get user by email", "err", err)
		return nil, err
	}
	if dup != nil && dup.UserID != user.UserID {
		return nil, ErrEmailRegistered
	}
	return user, nil
}

func userNotFound(userID uuid.UUID) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("User (%s) not found", userID)}
}

func emailConflictFromStore(err error) error {
	if mapped := conflictFromStore(err); mapped != err {
		return ErrEmailRegistered
	}
	return err
}
