package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// AuthResponse is returned by every operation that establishes a session.
// swagger:model AuthResponse
type AuthResponse struct {
	// default: true
	Success bool `json:"success"`
	// Short lived access token for the Authorization header
	// default: ACCESS_TOKEN
	AccessToken string       `json:"accessToken"`
	User        *models.User `json:"user"`
}

// MessageResponse is a success response carrying a human readable message.
// swagger:model MessageResponse
type MessageResponse struct {
	// default: true
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope of every failed request.
// swagger:model ErrorResponse
type ErrorResponse struct {
	// default: false
	Success bool `json:"success"`
	// default: Incorrect credentials
	Message string `json:"message"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "err", err)
	}
}

// WriteError maps err to its status code and writes the error envelope.
// Unclassified errors are logged and reported as a generic internal error.
func WriteError(w http.ResponseWriter, err error) {
	kind := services.KindOf(err)
	message := "Internal server error"
	if kind == services.KindInternal {
		logger.Log.Errorw("internal server error", "err", err)
	} else {
		message = services.MessageOf(err)
	}
	WriteJSON(w, kind.Status(), ErrorResponse{Success: false, Message: message})
}

func writeBadRequest(w http.ResponseWriter) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: "Invalid request body"})
}

func writeAuth(w http.ResponseWriter, status int, cookie RefreshCookieWriter, res *services.AuthResult) {
	if res.RefreshToken != "" {
		cookie.Set(w, res.RefreshToken)
	}
	WriteJSON(w, status, AuthResponse{
		Success:     true,
		AccessToken: res.AccessToken,
		User:        res.User,
	})
}

// RefreshCookieWriter sets and clears the refresh token cookie.
type RefreshCookieWriter interface {
	Set(w http.ResponseWriter, token string)
	Clear(w http.ResponseWriter)
}

type identityKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user *models.UserDB) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// UserFromContext returns the authenticated user, or nil outside an authenticated route.
func UserFromContext(ctx context.Context) *models.UserDB {
	user, _ := ctx.Value(identityKey{}).(*models.UserDB)
	return user
}
