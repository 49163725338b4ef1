package handlers

//go:generate mockgen -source=users.go -destination=users_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// ProfileUpdater updates the caller's own profile.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string) error
}

// UserManager is the admin view over all users.
type UserManager interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, name, email, role string) (string, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// UserResponse wraps a single user.
// swagger:model UserResponse
type UserResponse struct {
	// default: true
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// UsersResponse wraps a list of users.
// swagger:model UsersResponse
type UsersResponse struct {
	// default: true
	Success bool `json:"success"`
	// Number of users returned
	Found int            `json:"found"`
	Users []*models.User `json:"users"`
}

// UpdateProfileRequest represents the JSON body for a profile update
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	// required: true
	// default: John Doe
	Name string `json:"name"`

	// required: true
	// default: john@example.com
	Email string `json:"email"`
}

// UpdateUserRequest represents the JSON body for an admin user update
// swagger:model UpdateUserRequest
type UpdateUserRequest struct {
	// required: true
	// default: John Doe
	Name string `json:"name"`

	// required: true
	// default: john@example.com
	Email string `json:"email"`

	// user or admin
	// required: true
	// default: user
	Role string `json:"role"`
}

// NewGetMeHandler returns an HTTP handler returning the authenticated user.
// @Summary Get logged user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.UserResponse "Logged user"
// @Failure 401 {object} handlers.ErrorResponse "Not authenticated"
// @Router /users/me [get]
func NewGetMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			WriteError(w, services.ErrNotAllowed)
			return
		}
		WriteJSON(w, http.StatusOK, UserResponse{Success: true, User: user.Filter()})
	}
}

// NewUpdateMeHandler returns an HTTP handler updating the authenticated user's profile.
// @Summary Update logged user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param updateProfileRequest body handlers.UpdateProfileRequest true "Update Profile Request"
// @Success 200 {object} handlers.MessageResponse "Profile has been updated"
// @Failure 400 {object} handlers.ErrorResponse "Invalid input"
// @Failure 401 {object} handlers.ErrorResponse "Not authenticated"
// @Failure 409 {object} handlers.ErrorResponse "This email is already registered"
// @Router /users/me [put]
func NewUpdateMeHandler(svc ProfileUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			WriteError(w, services.ErrNotAllowed)
			return
		}

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		if err := svc.UpdateProfile(r.Context(), user.UserID, req.Name, req.Email); err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Profile has been updated"})
	}
}

// NewListUsersHandler returns an HTTP handler listing all users.
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.UsersResponse "Users"
// @Failure 403 {object} handlers.ErrorResponse "Not an admin"
// @Failure 404 {object} handlers.ErrorResponse "No user was found"
// @Router /admin/users [get]
func NewListUsersHandler(svc UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.ListUsers(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, UsersResponse{Success: true, Found: len(users), Users: users})
	}
}

// NewGetUserHandler returns an HTTP handler returning one user.
// @Summary Get user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} handlers.UserResponse "User"
// @Failure 403 {object} handlers.ErrorResponse "Not an admin"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Router /admin/users/{id} [get]
func NewGetUserHandler(svc UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}

		user, err := svc.GetUser(r.Context(), userID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
	}
}

// NewUpdateUserHandler returns an HTTP handler updating any user.
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param updateUserRequest body handlers.UpdateUserRequest true "Update User Request"
// @Success 200 {object} handlers.MessageResponse "User has been updated"
// @Failure 400 {object} handlers.ErrorResponse "Invalid input"
// @Failure 403 {object} handlers.ErrorResponse "Not an admin"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 409 {object} handlers.ErrorResponse "This email is already registered"
// @Router /admin/users/{id} [put]
func NewUpdateUserHandler(svc UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		username, err := svc.UpdateUser(r.Context(), userID, req.Name, req.Email, req.Role)
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{
			Success: true,
			Message: fmt.Sprintf("User (%s) has been updated", username),
		})
	}
}

// NewDeleteUserHandler returns an HTTP handler deleting a user without products.
// @Summary Delete user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} handlers.MessageResponse "User was deleted"
// @Failure 403 {object} handlers.ErrorResponse "Not an admin"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 409 {object} handlers.ErrorResponse "User has assigned products"
// @Router /admin/users/{id} [delete]
func NewDeleteUserHandler(svc UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}

		deleted, err := svc.DeleteUser(r.Context(), userID)
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{
			Success: true,
			Message: fmt.Sprintf("User (%s/%s) was deleted", deleted.Name, deleted.Email),
		})
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	userID, err := uuid.Parse(raw)
	if err != nil {
		WriteError(w, &services.Error{Kind: services.KindNotFound, Message: fmt.Sprintf("User (%s) not found", raw)})
		return uuid.Nil, false
	}
	return userID, true
}
