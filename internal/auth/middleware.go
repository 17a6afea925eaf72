package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
)

const cookieName = "token"

// Middleware identifies the caller from an "Authorization: Bearer" header or
// the token cookie. Requests without a valid token continue anonymously;
// handlers decide whether a caller is required.
func Middleware(tokens *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid token", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(access.WithCaller(r.Context(), caller)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CookiePolicy controls the attributes of the access token cookie.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// CookiePolicyFor relaxes SameSite locally and requires HTTPS in production.
func CookiePolicyFor(env string, maxAge time.Duration) CookiePolicy {
	sameSite := http.SameSiteStrictMode
	if env == "development" || env == "local" {
		sameSite = http.SameSiteLaxMode
	}
	return CookiePolicy{
		Secure:   env == "production" || env == "prod",
		SameSite: sameSite,
		MaxAge:   maxAge,
	}
}

// SetAuthCookie stores the access token in an HttpOnly cookie.
func SetAuthCookie(w http.ResponseWriter, token string, p CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
		Path:     "/",
		MaxAge:   int(p.MaxAge.Seconds()),
	})
}

func ClearAuthCookie(w http.ResponseWriter, p CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
		Path:     "/",
		MaxAge:   -1,
	})
}
