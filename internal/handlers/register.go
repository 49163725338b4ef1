package handlers

//go:generate mockgen -source=register.go -destination=register_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// Registerer defines the interface that the register service must implement.
type Registerer interface {
	Register(ctx context.Context, username, name, email, password string) (*services.AuthResult, error)
}

// RegisterRequest represents the JSON body for user registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	// Username, 3 to 30 characters
	// required: true
	// default: john_doe
	Username string `json:"username"`

	// Display name, 3 to 30 characters
	// required: true
	// default: John Doe
	Name string `json:"name"`

	// Email address
	// required: true
	// default: john@example.com
	Email string `json:"email"`

	// Password, at least 6 characters
	// required: true
	// default: secret123
	Password string `json:"password"`
}

// NewRegisterHandler returns an HTTP handler for user registration.
// @Summary Register a new user
// @Description Create a user, start a session and set the refresh token cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param registerRequest body handlers.RegisterRequest true "Register Request"
// @Success 201 {object} handlers.AuthResponse "User created and logged in"
// @Failure 400 {object} handlers.ErrorResponse "Invalid input"
// @Failure 409 {object} handlers.ErrorResponse "Username or email already taken, or already logged in"
// @Failure 429 {object} handlers.ErrorResponse "Too many requests"
// @Router /auth/register [post]
func NewRegisterHandler(svc Registerer, cookie RefreshCookieWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w)
			return
		}

		res, err := svc.Register(r.Context(), req.Username, req.Name, req.Email, req.Password)
		if err != nil {
			WriteError(w, err)
			return
		}

		writeAuth(w, http.StatusCreated, cookie, res)
	}
}
