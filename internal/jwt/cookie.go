package jwt

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "jwt"

// GetRefreshTokenFromCookie returns the refresh token cookie value, or "" when absent.
func GetRefreshTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// RefreshCookie writes and clears the refresh token cookie.
// MaxAge should equal the refresh token TTL so the cookie and the token expire together.
type RefreshCookie struct {
	Secure bool
	MaxAge time.Duration
}

// Set stores token in the client's cookie jar.
func (c RefreshCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// Clear instructs the client to drop the cookie.
func (c RefreshCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}
