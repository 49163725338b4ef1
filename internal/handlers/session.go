package handlers

//go:generate mockgen -source=session.go -destination=session_mock.go -package=handlers

import (
	"context"
	"net/http"

	"github.com/sbilibin2017/gw-shop-auth/internal/jwt"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// Logouter revokes a refresh token.
type Logouter interface {
	Logout(ctx context.Context, refreshToken string) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.AuthResult, error)
}

// NewLogoutHandler returns an HTTP handler that ends the session held in the refresh cookie.
// @Summary Logout
// @Description Revoke the refresh token from the cookie and clear the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.MessageResponse "Logged out"
// @Failure 401 {object} handlers.ErrorResponse "Already logged out"
// @Router /auth/logout [get]
// @Router /auth/logout [post]
func NewLogoutHandler(svc Logouter, cookie RefreshCookieWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), jwt.GetRefreshTokenFromCookie(r)); err != nil {
			WriteError(w, err)
			return
		}

		cookie.Clear(w)
		WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "You have been logged out"})
	}
}

// NewRefreshHandler returns an HTTP handler issuing a new access token.
// @Summary Refresh access token
// @Description Issue a new access token for the refresh token held in the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.AuthResponse "New access token"
// @Failure 401 {object} handlers.ErrorResponse "Access expired"
// @Router /auth/refresh [get]
func NewRefreshHandler(svc Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.RefreshAccessToken(r.Context(), jwt.GetRefreshTokenFromCookie(r))
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, AuthResponse{
			Success:     true,
			AccessToken: res.AccessToken,
			User:        res.User,
		})
	}
}
