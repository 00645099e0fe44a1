package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"placement/internal/directory"
	"placement/internal/exporter"
	"placement/internal/importer"
)

const maxCSVUploadBytes int64 = 5 << 20

// AdminHandler exposes placement office endpoints.
type AdminHandler struct {
	directory *directory.Service
	exporter  *exporter.CSVExporter
	importer  *importer.CSVImporter
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(dir *directory.Service, csvExporter *exporter.CSVExporter, csvImporter *importer.CSVImporter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{directory: dir, exporter: csvExporter, importer: csvImporter, logger: logger}
}

// Summary handles GET /api/admin/summary.
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.directory.Summary(r.Context())
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Students handles GET /api/admin/students.
func (h *AdminHandler) Students(w http.ResponseWriter, r *http.Request) {
	students, err := h.directory.ListStudents(r.Context())
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

// Export handles GET /api/admin/students/export.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	students, err := h.directory.ListStudents(r.Context())
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(&buf, students); err != nil {
		h.logger.Error("export students", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export students")
		return
	}

	filename := fmt.Sprintf("students-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// SetPlacement handles PUT /api/admin/students/{email}/placement.
func (h *AdminHandler) SetPlacement(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	var payload struct {
		Placed *bool `json:"placed"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}
	if payload.Placed == nil {
		writeError(w, http.StatusBadRequest, "placed is required")
		return
	}

	user, err := h.directory.SetPlacement(r.Context(), email, *payload.Placed)
	if err != nil {
		handleDirectoryError(w, err, h.logger)
		return
	}

	claims := SessionFromContext(r.Context())
	h.logger.Info("placement updated", "email", user.Email, "placed", user.IsPlaced, "by", claims.Email)
	writeJSON(w, http.StatusOK, user)
}

// ImportPlacements handles POST /api/admin/students/placements/import.
func (h *AdminHandler) ImportPlacements(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusNotImplemented, "CSV import is not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("CSV upload is too large (max %d bytes)", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid CSV upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "CSV file is required")
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := h.importer.Import(r.Context(), file)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidCSV) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("placement import failed", "error", err, "updated", summary.Updated)
		writeError(w, http.StatusInternalServerError, "placement import failed")
		return
	}

	claims := SessionFromContext(r.Context())
	h.logger.Info("placements imported", "rows", summary.TotalRows, "updated", summary.Updated, "failed", len(summary.Failed), "by", claims.Email)
	writeJSON(w, http.StatusOK, summary)
}
