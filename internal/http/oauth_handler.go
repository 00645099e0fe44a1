package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"placement/internal/auth"
	"placement/internal/directory"
	"placement/internal/gate"
)

// oauthStatePayload holds the CSRF state and optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

// isValidRedirectPath validates that a path is a safe relative redirect.
// It prevents open redirect attacks by ensuring the path:
// - Starts with a single "/" (not "//")
// - Has no scheme or host component
// - Cannot be bypassed via URL encoding
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	// Decode to catch encoded bypass attempts like /%2f%2f
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.Contains(decoded, `\`) {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	// Reject if it has a scheme or host (would be absolute URL)
	if parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	return true
}

const (
	oauthStateCookieName = "placement_oauth_state"
	oauthStateCookiePath = "/auth/google"
	oauthStateCookieTTL  = 10 * time.Minute

	errorCodeAccessDenied = "AccessDenied"
	accessDeniedMessage   = "Restricted access. Use college email."
)

// IdentityProvider runs the OAuth code flow and reports who signed in.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Identity, error)
}

// OAuthHandler handles the Google sign-in round trip and hands the result to the gate.
type OAuthHandler struct {
	google  IdentityProvider
	gate    *gate.Gate
	cookies sessionCookies
	logger  *slog.Logger
	baseURL string
}

// NewOAuthHandler creates a new OAuthHandler. google may be nil when sign-in is not configured.
func NewOAuthHandler(google IdentityProvider, g *gate.Gate, cookies sessionCookies, baseURL string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:  google,
		gate:    g,
		cookies: cookies,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// InitiateGoogle handles GET /auth/google
// Redirects the user to Google's OAuth consent screen.
func (h *OAuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Store state in cookie for CSRF protection
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     oauthStateCookiePath,
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	payload := oauthStatePayload{State: state}
	if redirectTo := r.URL.Query().Get("redirectTo"); isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	// Encode state as base64 JSON to avoid delimiter issues
	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	http.Redirect(w, r, h.google.AuthURL(fullState), http.StatusTemporaryRedirect)
}

// CallbackGoogle handles GET /auth/google/callback
// Exchanges the authorization code, signs the user in through the gate and issues the session cookie.
func (h *OAuthHandler) CallbackGoogle(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.redirectWithError(w, r, "Configuration", "Sign-in is not available.")
		return
	}

	// Verify state (CSRF protection)
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie")
		h.redirectWithError(w, r, "invalid_request", "Session expired. Please try again.")
		return
	}

	stateBytes, err := base64.RawURLEncoding.DecodeString(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	if statePayload.State == "" || subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     oauthStateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.secure,
	})

	// Check for OAuth error from Google
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "error", errParam)
		if errParam == "access_denied" {
			h.redirectWithError(w, r, errorCodeAccessDenied, accessDeniedMessage)
			return
		}
		h.redirectWithError(w, r, "OAuthCallback", "Sign-in was cancelled. Please try again.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "invalid_request", "Missing authorization code.")
		return
	}

	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", "error", err)
		h.redirectWithError(w, r, "OAuthCallback", "Failed to complete authentication.")
		return
	}

	result, err := h.gate.SignIn(r.Context(), identity)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccessDenied), errors.Is(err, directory.ErrUnavailable):
			// Store outages are indistinguishable from denials for the client.
			h.redirectWithError(w, r, errorCodeAccessDenied, accessDeniedMessage)
		default:
			h.logger.Error("oauth callback: sign-in failed", "error", err)
			h.redirectWithError(w, r, "Configuration", "Failed to complete sign-in.")
		}
		return
	}

	h.cookies.set(w, result.Token, result.Claims.ExpiresAt)

	redirectTo := homePath(result.Claims.Role)
	if isValidRedirectPath(statePayload.RedirectTo) {
		redirectTo = statePayload.RedirectTo
	}
	http.Redirect(w, r, h.baseURL+redirectTo, http.StatusSeeOther)
}

// redirectWithError redirects to the login page with error details.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := h.baseURL + loginPath + "?error=" + url.QueryEscape(code)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
