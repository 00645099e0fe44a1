package http

import (
	"errors"
	"log/slog"
	"net/http"

	"placement/internal/auth"
	"placement/internal/directory"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
	adminPath     = "/admin"
)

// homePath is where a role lands after sign-in.
func homePath(role auth.Role) string {
	if role == auth.RoleAdmin {
		return adminPath
	}
	return dashboardPath
}

var loginErrorMessages = map[string]string{
	errorCodeAccessDenied: accessDeniedMessage,
}

const genericLoginError = "Sign-in failed. Please try again."

// PageHandler serves the JSON views behind the portal's pages. The guard in front of
// each route has already admitted the request.
type PageHandler struct {
	directory *directory.Service
	logger    *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(dir *directory.Service, logger *slog.Logger) *PageHandler {
	return &PageHandler{directory: dir, logger: logger}
}

// Root handles GET /. Signed-in users go to their home page, everyone else to login.
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	if claims := SessionFromContext(r.Context()); claims != nil {
		http.Redirect(w, r, homePath(claims.Role), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

type loginView struct {
	SignInURL string `json:"signInUrl"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Login handles GET /login. Only known error codes get a specific message; the message
// query parameter is never echoed back.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	view := loginView{SignInURL: "/auth/google"}
	if code := r.URL.Query().Get("error"); code != "" {
		view.Error = code
		view.Message = genericLoginError
		if message, ok := loginErrorMessages[code]; ok {
			view.Message = message
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type dashboardView struct {
	User          directory.User `json:"user"`
	MissingFields []string       `json:"missingFields"`
}

// Dashboard handles GET /dashboard for students.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboardView{User: user, MissingFields: missingFields(user.Profile)})
}

type profileFormView struct {
	Email    string            `json:"email"`
	Profile  directory.Profile `json:"profile"`
	Branches []string          `json:"branches"`
}

// EditProfile handles GET /profile/edit with the form pre-filled from the record.
func (h *PageHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profileFormView{
		Email:    user.Email,
		Profile:  user.Profile,
		Branches: directory.Branches,
	})
}

type adminView struct {
	Email   string            `json:"email"`
	Summary directory.Summary `json:"summary"`
}

// Admin handles GET /admin.
func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	claims := SessionFromContext(r.Context())
	summary, err := h.directory.Summary(r.Context())
	if err != nil {
		h.logger.Error("admin summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	writeJSON(w, http.StatusOK, adminView{Email: claims.Email, Summary: summary})
}

// currentUser loads the signed-in user's record. A session without a record is sent
// back to login.
func (h *PageHandler) currentUser(w http.ResponseWriter, r *http.Request) (directory.User, bool) {
	claims := SessionFromContext(r.Context())
	user, err := h.directory.Get(r.Context(), claims.Email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return directory.User{}, false
		}
		h.logger.Error("load user", "email", claims.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return directory.User{}, false
	}
	return user, true
}

func missingFields(p directory.Profile) []string {
	missing := []string{}
	if p.Phone == "" {
		missing = append(missing, "phone")
	}
	if p.Branch == "" {
		missing = append(missing, "branch")
	}
	if p.CGPA <= 0 {
		missing = append(missing, "cgpa")
	}
	if p.ResumeURL == "" {
		missing = append(missing, "resumeUrl")
	}
	return missing
}
