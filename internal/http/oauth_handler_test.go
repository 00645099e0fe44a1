package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"placement/internal/auth"
	"placement/internal/directory"
	"placement/internal/gate"
)

// encodeOAuthState creates a base64-encoded JSON state payload for testing
func encodeOAuthState(state, redirectTo string) string {
	payload := oauthStatePayload{State: state, RedirectTo: redirectTo}
	data, _ := json.Marshal(payload)
	return base64.RawURLEncoding.EncodeToString(data)
}

func newTestOAuthHandler(t *testing.T, google IdentityProvider, g *gate.Gate) *OAuthHandler {
	t.Helper()
	if g == nil {
		g = newTestGate(t, directory.NewService(directory.NewInMemoryRepository(nil)))
	}
	return NewOAuthHandler(google, g, newSessionCookies("development"), "", discardLogger())
}

func callbackRequest(state, redirectTo, extra string) *http.Request {
	target := "/auth/google/callback?state=" + url.QueryEscape(encodeOAuthState(state, redirectTo)) + extra
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: state})
	return req
}

func assertLoginError(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login?error="+code) {
		t.Fatalf("expected redirect to /login?error=%s, got %q", code, location)
	}
	if c := findCookie(rec, sessionCookieName); c != nil && c.Value != "" {
		t.Fatalf("expected no session cookie on failure")
	}
}

func TestOAuthInitiateGoogleSetsStateCookieAndRedirects(t *testing.T) {
	google := &fakeIdentityProvider{}
	handler := newTestOAuthHandler(t, google, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?redirectTo=/profile/edit", nil)
	rec := httptest.NewRecorder()

	handler.InitiateGoogle(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", rec.Code)
	}
	stateCookie := findCookie(rec, oauthStateCookieName)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected state cookie to be set")
	}
	if !stateCookie.HttpOnly || stateCookie.Path != oauthStateCookiePath {
		t.Fatalf("unexpected state cookie attributes: %+v", stateCookie)
	}

	// Decode the base64 JSON state to verify it contains the cookie value and redirectTo
	stateBytes, err := base64.RawURLEncoding.DecodeString(google.lastState)
	if err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		t.Fatalf("failed to parse state JSON: %v", err)
	}
	if statePayload.State != stateCookie.Value {
		t.Fatalf("expected state to match cookie value %q, got %q", stateCookie.Value, statePayload.State)
	}
	if statePayload.RedirectTo != "/profile/edit" {
		t.Fatalf("expected redirectTo to be /profile/edit, got %q", statePayload.RedirectTo)
	}

	location := rec.Header().Get("Location")
	if location != google.authURLBase+google.lastState {
		t.Fatalf("expected redirect to %q, got %q", google.authURLBase+google.lastState, location)
	}
}

func TestOAuthInitiateGoogleDropsUnsafeRedirect(t *testing.T) {
	google := &fakeIdentityProvider{}
	handler := newTestOAuthHandler(t, google, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?redirectTo="+url.QueryEscape("https://evil.com"), nil)
	rec := httptest.NewRecorder()

	handler.InitiateGoogle(rec, req)

	stateBytes, _ := base64.RawURLEncoding.DecodeString(google.lastState)
	var statePayload oauthStatePayload
	_ = json.Unmarshal(stateBytes, &statePayload)
	if statePayload.RedirectTo != "" {
		t.Fatalf("expected unsafe redirect to be dropped, got %q", statePayload.RedirectTo)
	}
}

func TestOAuthInitiateGoogleDisabled(t *testing.T) {
	handler := newTestOAuthHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	handler.InitiateGoogle(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestOAuthCallbackRejectsMissingStateCookie(t *testing.T) {
	handler := newTestOAuthHandler(t, &fakeIdentityProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=abc", nil)
	rec := httptest.NewRecorder()

	handler.CallbackGoogle(rec, req)

	assertLoginError(t, rec, "invalid_request")
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	handler := newTestOAuthHandler(t, &fakeIdentityProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=123&state="+url.QueryEscape(encodeOAuthState("expected", "")), nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: "different"})
	rec := httptest.NewRecorder()

	handler.CallbackGoogle(rec, req)

	assertLoginError(t, rec, "invalid_request")
}

func TestOAuthCallbackProviderErrors(t *testing.T) {
	handler := newTestOAuthHandler(t, &fakeIdentityProvider{}, nil)

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&error=access_denied"))
	assertLoginError(t, rec, errorCodeAccessDenied)

	rec = httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&error=server_error"))
	assertLoginError(t, rec, "OAuthCallback")
}

func TestOAuthCallbackRequiresCode(t *testing.T) {
	handler := newTestOAuthHandler(t, &fakeIdentityProvider{}, nil)

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", ""))

	assertLoginError(t, rec, "invalid_request")
}

func TestOAuthCallbackHandlesExchangeError(t *testing.T) {
	google := &fakeIdentityProvider{exchangeErr: errors.New("exchange failed")}
	handler := newTestOAuthHandler(t, google, nil)

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&code=123"))

	assertLoginError(t, rec, "OAuthCallback")
}

func TestOAuthCallbackDeniesOutsideEmail(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "random@gmail.com", EmailVerified: true}}
	repo := directory.NewInMemoryRepository(nil)
	handler := newTestOAuthHandler(t, google, newTestGate(t, directory.NewService(repo)))

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&code=123"))

	assertLoginError(t, rec, errorCodeAccessDenied)
	location, _ := url.Parse(rec.Header().Get("Location"))
	if got := location.Query().Get("message"); got != accessDeniedMessage {
		t.Fatalf("expected message %q, got %q", accessDeniedMessage, got)
	}
	if _, err := repo.Get(context.Background(), "random@gmail.com"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected no record for denied email, got %v", err)
	}
}

func TestOAuthCallbackDeniesUnverifiedEmail(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "tpo@institution.edu", EmailVerified: false}}
	repo := directory.NewInMemoryRepository(nil)
	handler := newTestOAuthHandler(t, google, newTestGate(t, directory.NewService(repo)))

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&code=123"))

	assertLoginError(t, rec, errorCodeAccessDenied)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			t.Fatal("expected no session cookie for unverified email")
		}
	}
	if _, err := repo.Get(context.Background(), "tpo@institution.edu"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected no record for unverified email, got %v", err)
	}
}

func TestOAuthCallbackFailsClosedWhenDirectoryUnavailable(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "student1@institution.edu", EmailVerified: true}}
	failing := provisionerFunc(func(context.Context, auth.Identity, auth.Role) (directory.User, error) {
		return directory.User{}, errors.Join(directory.ErrUnavailable, errors.New("db down"))
	})
	handler := newTestOAuthHandler(t, google, newTestGate(t, failing))

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&code=123"))

	assertLoginError(t, rec, errorCodeAccessDenied)
}

func TestOAuthCallbackHandlesUnexpectedSignInError(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "student1@institution.edu", EmailVerified: true}}
	failing := provisionerFunc(func(context.Context, auth.Identity, auth.Role) (directory.User, error) {
		return directory.User{}, errors.New("boom")
	})
	handler := newTestOAuthHandler(t, google, newTestGate(t, failing))

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("abc", "", "&code=123"))

	assertLoginError(t, rec, "Configuration")
}

func TestOAuthCallbackSuccessRedirectsToRoleHome(t *testing.T) {
	tests := []struct {
		email    string
		role     auth.Role
		location string
	}{
		{"student1@institution.edu", auth.RoleStudent, "/dashboard"},
		{"tpo@institution.edu", auth.RoleAdmin, "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			google := &fakeIdentityProvider{identity: auth.Identity{Email: tt.email, DisplayName: "User", EmailVerified: true}}
			g := newTestGate(t, directory.NewService(directory.NewInMemoryRepository(nil)))
			handler := newTestOAuthHandler(t, google, g)

			rec := httptest.NewRecorder()
			handler.CallbackGoogle(rec, callbackRequest("state123", "", "&code=123"))

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected status 303, got %d", rec.Code)
			}
			if location := rec.Header().Get("Location"); location != tt.location {
				t.Fatalf("expected redirect to %q, got %q", tt.location, location)
			}

			sessionCookie := findCookie(rec, sessionCookieName)
			if sessionCookie == nil || sessionCookie.Value == "" {
				t.Fatal("expected session cookie to be set")
			}
			if !sessionCookie.HttpOnly || sessionCookie.SameSite != http.SameSiteLaxMode {
				t.Fatalf("unexpected session cookie attributes: %+v", sessionCookie)
			}

			claims := g.CurrentSession(sessionCookie.Value)
			if claims == nil || claims.Role != tt.role {
				t.Fatalf("expected %s session, got %+v", tt.role, claims)
			}

			stateCookie := findCookie(rec, oauthStateCookieName)
			if stateCookie == nil || stateCookie.MaxAge >= 0 {
				t.Fatalf("expected state cookie to be cleared")
			}
		})
	}
}

func TestOAuthCallbackHonoursRedirectTo(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "student1@institution.edu", EmailVerified: true}}
	handler := newTestOAuthHandler(t, google, nil)

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("state123", "/profile/edit", "&code=123"))

	if location := rec.Header().Get("Location"); location != "/profile/edit" {
		t.Fatalf("expected redirect to /profile/edit, got %q", location)
	}
}

func TestOAuthCallbackSanitizesRedirectTo(t *testing.T) {
	google := &fakeIdentityProvider{identity: auth.Identity{Email: "student1@institution.edu", EmailVerified: true}}
	handler := newTestOAuthHandler(t, google, nil)

	rec := httptest.NewRecorder()
	handler.CallbackGoogle(rec, callbackRequest("state123", "//evil.com", "&code=123"))

	if location := rec.Header().Get("Location"); location != "/dashboard" {
		t.Fatalf("expected redirect to fall back to /dashboard, got %q", location)
	}
}

func TestIsValidRedirectPath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		// Valid paths
		{"root", "/", true},
		{"simple path", "/dashboard", true},
		{"nested path", "/profile/edit", true},
		{"path with query", "/admin?tab=students", true},
		{"path with fragment", "/dashboard#profile", true},

		// Invalid - empty
		{"empty string", "", false},

		// Invalid - absolute URLs / open redirect attempts
		{"http URL", "http://evil.com", false},
		{"https URL", "https://evil.com", false},
		{"protocol-relative", "//evil.com", false},
		{"protocol-relative with path", "//evil.com/path", false},

		// Invalid - encoded bypass attempts
		{"encoded double slash", "/%2f%2fevil.com", false},
		{"encoded slash", "/%2fevil.com", false},
		// Note: double-encoded is safe - after one decode it's /%2f%2fevil.com (literal path)
		{"double encoded is safe", "/%252f%252fevil.com", true},

		// Invalid - no leading slash
		{"no leading slash", "dashboard", false},
		{"relative path", "profile/edit", false},

		// Invalid - other schemes
		{"javascript protocol", "javascript:alert(1)", false},
		{"data protocol", "data:text/html,<script>", false},

		// Browsers treat a backslash like a slash
		{"backslash", "\\\\evil.com", false},
		{"mixed slashes", "/\\evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isValidRedirectPath(tt.path)
			if got != tt.valid {
				t.Errorf("isValidRedirectPath(%q) = %v, want %v", tt.path, got, tt.valid)
			}
		})
	}
}
