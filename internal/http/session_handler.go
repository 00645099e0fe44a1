package http

import (
	"net/http"
	"strings"
	"time"

	"placement/internal/auth"
)

const sessionCookieName = "placement_session"

// sessionCookies builds the HttpOnly cookie that carries the session token.
type sessionCookies struct {
	secure bool
}

func newSessionCookies(env string) sessionCookies {
	return sessionCookies{secure: !strings.EqualFold(env, "development")}
}

func (c sessionCookies) set(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  expiresAt,
	})
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// SessionHandler exposes the current session to the browser.
type SessionHandler struct {
	cookies sessionCookies
}

// NewSessionHandler returns a session handler.
func NewSessionHandler(cookies sessionCookies) *SessionHandler {
	return &SessionHandler{cookies: cookies}
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	Role          auth.Role  `json:"role,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Status handles GET /api/session. It always answers 200 so pages can branch on the body.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := SessionFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}

	expiresAt := claims.ExpiresAt
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Email:         claims.Email,
		Role:          claims.Role,
		ExpiresAt:     &expiresAt,
	})
}

// Logout removes the session cookie, if present.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}
