package handlers

//go:generate mockgen -source=password.go -destination=password_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// ResetPath is the route prefix of password reset links.
const ResetPath = "/api/v1/auth/password/reset"

// PasswordRecoverer starts a password reset.
type PasswordRecoverer interface {
	RequestPasswordReset(ctx context.Context, email, resetURLBase string) error
}

// PasswordResetter completes a password reset.
type PasswordResetter interface {
	CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*services.AuthResult, error)
}

// PasswordChanger changes the password of an authenticated user.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) (*services.AuthResult, error)
}

// RecoverPasswordRequest represents the JSON body for password recovery
// swagger:model RecoverPasswordRequest
type RecoverPasswordRequest struct {
	// required: true
	// default: john@example.com
	Email string `json:"email"`
}

// ResetPasswordRequest represents the JSON body for completing a password reset
// swagger:model ResetPasswordRequest
type ResetPasswordRequest struct {
	// required: true
	// default: newsecret123
	Password string `json:"password"`
}

// ChangePasswordRequest represents the JSON body for a password change
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	// required: true
	// default: secret123
	OldPassword string `json:"oldPassword"`

	// required: true
	// default: newsecret123
	NewPassword string `json:"newPassword"`
}

// NewRecoverPasswordHandler returns an HTTP handler that emails a reset link.
// publicURL is the externally visible base URL; when empty the request's scheme and host are used.
// @Summary Recover password
// @Description Send a password reset link to the email of an existing user
// @Tags auth
// @Accept json
// @Produce json
// @Param recoverPasswordRequest body handlers.RecoverPasswordRequest true "Recover Password Request"
// @Success 200 {object} handlers.MessageResponse "Recovery link sent"
// @Failure 400 {object} handlers.ErrorResponse "Email is required"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 409 {object} handlers.ErrorResponse "Already logged in"
// @Failure 429 {object} handlers.ErrorResponse "Too many requests"
// @Failure 500 {object} handlers.ErrorResponse "Cannot send email"
// @Router /auth/password/recover [post]
func NewRecoverPasswordHandler(svc PasswordRecoverer, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecoverPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		if err := svc.RequestPasswordReset(r.Context(), req.Email, resetURLBase(r, publicURL)); err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{
			Success: true,
			Message: fmt.Sprintf("Recovery link sent to: %s", strings.ToLower(strings.TrimSpace(req.Email))),
		})
	}
}

// NewResetPasswordHandler returns an HTTP handler completing a password reset.
// @Summary Reset password
// @Description Set a new password using the token from the reset link and log the user in
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param resetPasswordRequest body handlers.ResetPasswordRequest true "Reset Password Request"
// @Success 200 {object} handlers.AuthResponse "Password reset and logged in"
// @Failure 400 {object} handlers.ErrorResponse "Invalid input"
// @Failure 403 {object} handlers.ErrorResponse "Reset token has been expired"
// @Failure 409 {object} handlers.ErrorResponse "Already logged in"
// @Router /auth/password/reset/{token} [put]
func NewResetPasswordHandler(svc PasswordResetter, cookie RefreshCookieWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		res, err := svc.CompletePasswordReset(r.Context(), chi.URLParam(r, "token"), req.Password)
		if err != nil {
			WriteError(w, err)
			return
		}

		writeAuth(w, http.StatusOK, cookie, res)
	}
}

// NewChangePasswordHandler returns an HTTP handler changing the caller's password.
// @Summary Change password
// @Description Change the password of the authenticated user and start a new session
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param changePasswordRequest body handlers.ChangePasswordRequest true "Change Password Request"
// @Success 200 {object} handlers.AuthResponse "Password changed"
// @Failure 400 {object} handlers.ErrorResponse "Invalid input"
// @Failure 401 {object} handlers.ErrorResponse "Incorrect password or not authenticated"
// @Failure 403 {object} handlers.ErrorResponse "Expired access token"
// @Router /auth/password [put]
func NewChangePasswordHandler(svc PasswordChanger, cookie RefreshCookieWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			WriteError(w, services.ErrNotAllowed)
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		res, err := svc.ChangePassword(r.Context(), user.UserID, req.OldPassword, req.NewPassword)
		if err != nil {
			WriteError(w, err)
			return
		}

		writeAuth(w, http.StatusOK, cookie, res)
	}
}

func resetURLBase(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/") + ResetPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + ResetPath
}
