package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"placement/internal/auth"
	"placement/internal/config"
	"placement/internal/directory"
	"placement/internal/gate"
	"placement/internal/session"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "placement-portal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIdentityProvider struct {
	authURLBase string
	lastState   string
	identity    auth.Identity
	exchangeErr error
}

func (f *fakeIdentityProvider) AuthURL(state string) string {
	f.lastState = state
	if f.authURLBase == "" {
		f.authURLBase = "https://accounts.google.com/auth?state="
	}
	return f.authURLBase + state
}

func (f *fakeIdentityProvider) Exchange(context.Context, string) (auth.Identity, error) {
	if f.exchangeErr != nil {
		return auth.Identity{}, f.exchangeErr
	}
	return f.identity, nil
}

type provisionerFunc func(ctx context.Context, identity auth.Identity, role auth.Role) (directory.User, error)

func (f provisionerFunc) ProvisionOrTouch(ctx context.Context, identity auth.Identity, role auth.Role) (directory.User, error) {
	return f(ctx, identity, role)
}

func testPolicy() *auth.Policy {
	return auth.NewPolicy("institution.edu", []string{"tpo@institution.edu"})
}

func newTestIssuer(t *testing.T) *session.Issuer {
	t.Helper()

	issuer, err := session.NewIssuer(testSecret, testIssuer, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	return issuer
}

func newTestGate(t *testing.T, dir gate.Provisioner) *gate.Gate {
	t.Helper()
	return gate.New(testPolicy(), dir, newTestIssuer(t), discardLogger())
}

// testApp is a fully wired router over an in-memory directory.
type testApp struct {
	repo      *directory.InMemoryRepository
	directory *directory.Service
	gate      *gate.Gate
	google    *fakeIdentityProvider
	router    http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	repo := directory.NewInMemoryRepository(nil)
	dir := directory.NewService(repo)
	g := newTestGate(t, dir)
	google := &fakeIdentityProvider{}

	cfg := config.Config{
		Environment:    config.EnvDevelopment,
		AllowedOrigins: []string{"http://localhost:4200"},
	}
	router := NewRouter(cfg, Dependencies{Gate: g, Directory: dir, Google: google}, discardLogger())

	return &testApp{repo: repo, directory: dir, gate: g, google: google, router: router}
}

// signIn runs the gate for email and returns the resulting session cookie.
func (a *testApp) signIn(t *testing.T, email string) *http.Cookie {
	t.Helper()

	result, err := a.gate.SignIn(context.Background(), auth.Identity{Email: email, DisplayName: "Test User", EmailVerified: true})
	if err != nil {
		t.Fatalf("SignIn(%s) returned error: %v", email, err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: result.Token}
}

func (a *testApp) do(t *testing.T, method, target string, body io.Reader, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signToken builds a session token directly so tests can control its timestamps.
func signToken(t *testing.T, email string, role auth.Role, issuedAt, expiresAt time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  string(role),
		"sub":   email,
		"iss":   testIssuer,
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
