package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"placement/internal/auth"
	"placement/internal/gate"
	"placement/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration", duration.String())
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the verified session claims for the request.
// Returns nil when the request carries no valid session.
func SessionFromContext(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(sessionContextKey).(*session.Claims)
	return claims
}

// newSessionMiddleware verifies the session cookie on every request. Valid claims are
// placed in the context, invalid cookies are cleared and tokens past half their lifetime
// are re-issued.
func newSessionMiddleware(g *gate.Gate, cookies sessionCookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := g.CurrentSession(cookie.Value)
			if claims == nil {
				cookies.clear(w)
				next.ServeHTTP(w, r)
				return
			}

			if g.Issuer().ShouldRefresh(*claims) {
				token, refreshed, err := g.Refresh(*claims)
				switch {
				case errors.Is(err, auth.ErrAccessDenied):
					cookies.clear(w)
					next.ServeHTTP(w, r)
					return
				case err != nil:
					logger.Warn("session refresh failed", "email", claims.Email, "error", err)
				default:
					cookies.set(w, token, refreshed.ExpiresAt)
					claims = &refreshed
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requirePage guards a page. Without a session, or with a role outside roles, the
// request is redirected to the login page. An empty roles list admits any signed-in user.
func requirePage(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessionAllowed(r.Context(), roles) {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAPI makes the same decision as requirePage but answers 401 JSON.
func requireAPI(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessionAllowed(r.Context(), roles) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionAllowed(ctx context.Context, roles []auth.Role) bool {
	claims := SessionFromContext(ctx)
	if claims == nil {
		return false
	}
	return len(roles) == 0 || slices.Contains(roles, claims.Role)
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
