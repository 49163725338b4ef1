package middlewares

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=middlewares

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/handlers"
	"github.com/sbilibin2017/gw-shop-auth/internal/jwt"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/metrics"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// Tokener extracts and verifies access tokens.
type Tokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetUserID(ctx context.Context, tokenString string) (uuid.UUID, error)
}

// IdentityReader resolves the user behind a verified access token.
type IdentityReader interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error)
}

// RequireAnonymous rejects requests that already carry a refresh token cookie.
func RequireAnonymous() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if jwt.GetRefreshTokenFromCookie(r) != "" {
				deny(w, "logged_in", services.ErrAlreadyLoggedIn)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated admits requests holding a refresh token cookie and a valid
// bearer access token. The user is loaded from storage on every request so role
// changes apply without reissuing tokens.
func RequireAuthenticated(tokener Tokener, users IdentityReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if jwt.GetRefreshTokenFromCookie(r) == "" {
				deny(w, "missing_cookie", services.ErrNotAllowed)
				return
			}

			tokenString, err := tokener.GetTokenFromRequest(ctx, r)
			if err != nil {
				logger.Log.Infow("authorization failed", "reason", "missing bearer", "err", err)
				deny(w, "missing_bearer", services.ErrUnauthorized)
				return
			}

			userID, err := tokener.GetUserID(ctx, tokenString)
			if err != nil {
				logger.Log.Infow("authorization failed", "reason", "invalid access token", "err", err)
				deny(w, "invalid_token", services.ErrAccessTokenExpired)
				return
			}

			user, err := users.GetByID(ctx, userID)
			if err != nil {
				logger.Log.Errorw("failed to resolve identity", "user_id", userID, "err", err)
				handlers.WriteError(w, err)
				return
			}
			if user == nil {
				deny(w, "unknown_user", services.ErrNotAllowed)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUser(ctx, user)))
		})
	}
}

// RequireRole admits only users whose role is one of roles.
// It must run after RequireAuthenticated.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := handlers.UserFromContext(r.Context())
			if user == nil {
				deny(w, "unknown_user", services.ErrNotAllowed)
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				logger.Log.Infow("authorization failed", "reason", "role", "user_id", user.UserID, "role", user.Role)
				deny(w, "role", &services.Error{Kind: services.KindForbidden, Message: "Not allowed"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, reason string, err error) {
	metrics.ObserveDenial(reason)
	handlers.WriteError(w, err)
}
