package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"placement/internal/directory"
)

// SchemaVersion identifies the CSV export format version.
// Increment it when columns are added or reordered.
const SchemaVersion = "1"

var csvColumns = []string{
	"schemaVersion",
	"email",
	"name",
	"phone",
	"branch",
	"cgpa",
	"resumeUrl",
	"githubUrl",
	"linkedinUrl",
	"isProfileComplete",
	"isPlaced",
	"createdAt",
	"updatedAt",
	"lastLoginAt",
}

// CSVExporter writes student records as CSV for the placement office.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes students to w in CSV format, header first.
func (e *CSVExporter) Export(w io.Writer, students []directory.User) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, student := range students {
		if err := writer.Write(e.userToRow(student)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *CSVExporter) userToRow(user directory.User) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = user.Email
	row[2] = sanitizeCell(user.Name)
	row[3] = sanitizeCell(user.Phone)
	row[4] = user.Branch
	row[5] = formatCGPA(user.CGPA)
	row[6] = sanitizeCell(user.ResumeURL)
	row[7] = sanitizeCell(user.GitHubURL)
	row[8] = sanitizeCell(user.LinkedInURL)
	row[9] = strconv.FormatBool(user.IsProfileComplete)
	row[10] = strconv.FormatBool(user.IsPlaced)
	row[11] = formatTime(user.CreatedAt)
	row[12] = formatTime(user.UpdatedAt)
	row[13] = formatTime(user.LastLoginAt)

	return row
}

// sanitizeCell prefixes values that spreadsheets would evaluate as formulas.
// Phone numbers start with "+" and are quoted the same way.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	if strings.ContainsRune("=+-@\t\r", rune(value[0])) {
		return "'" + value
	}
	return value
}

// formatCGPA leaves unset grades empty rather than printing 0.00.
func formatCGPA(value float64) string {
	if value <= 0 {
		return ""
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// formatTime formats a time to RFC3339 string.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
