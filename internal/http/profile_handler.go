package http

import (
	"errors"
	"log/slog"
	"net/http"

	"placement/internal/directory"
)

// ProfileHandler exposes the signed-in user's own record.
type ProfileHandler struct {
	directory *directory.Service
	logger    *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(dir *directory.Service, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{directory: dir, logger: logger}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := SessionFromContext(r.Context())
	user, err := h.directory.Get(r.Context(), claims.Email)
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update handles PUT /api/profile. The target is always the session email.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := SessionFromContext(r.Context())

	var payload directory.ProfileUpdate
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	user, err := h.directory.UpdateProfile(r.Context(), claims.Email, claims.Email, payload)
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func handleDirectoryError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var validationErr *directory.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, directory.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		logger.Error("directory error", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
	}
}
