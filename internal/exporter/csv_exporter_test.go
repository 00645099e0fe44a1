package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"

	"placement/internal/auth"
	"placement/internal/directory"
)

func TestCSVExporter_ExportEmpty(t *testing.T) {
	exporter := NewCSVExporter()
	var buf bytes.Buffer

	if err := exporter.Export(&buf, []directory.User{}); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}

	// Should have only header row
	if len(records) != 1 {
		t.Fatalf("expected 1 row (header), got %d", len(records))
	}
	if len(records[0]) != len(csvColumns) {
		t.Fatalf("expected %d columns, got %d", len(csvColumns), len(records[0]))
	}
}

func TestCSVExporter_ExportStudent(t *testing.T) {
	exporter := NewCSVExporter()
	var buf bytes.Buffer

	createdAt := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	students := []directory.User{
		{
			ID:    uuid.New(),
			Email: "student1@institution.edu",
			Name:  "Student One",
			Role:  auth.RoleStudent,
			Profile: directory.Profile{
				Phone:     "+911234567890",
				Branch:    "CSE",
				CGPA:      8.5,
				ResumeURL: "https://drive.example.com/resume.pdf",
			},
			IsProfileComplete: true,
			IsPlaced:          true,
			CreatedAt:         createdAt,
			UpdatedAt:         createdAt.Add(time.Hour),
			LastLoginAt:       createdAt.Add(2 * time.Hour),
		},
		{
			ID:    uuid.New(),
			Email: "student2@institution.edu",
			Role:  auth.RoleStudent,
		},
	}

	if err := exporter.Export(&buf, students); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}

	row := records[1]
	expected := map[string]string{
		"schemaVersion":     SchemaVersion,
		"email":             "student1@institution.edu",
		"name":              "Student One",
		"phone":             "'+911234567890",
		"branch":            "CSE",
		"cgpa":              "8.50",
		"resumeUrl":         "https://drive.example.com/resume.pdf",
		"githubUrl":         "",
		"isProfileComplete": "true",
		"isPlaced":          "true",
		"createdAt":         "2024-07-01T09:00:00Z",
		"lastLoginAt":       "2024-07-01T11:00:00Z",
	}
	for column, want := range expected {
		if got := row[header[column]]; got != want {
			t.Errorf("column %s: expected %q, got %q", column, want, got)
		}
	}

	empty := records[2]
	if empty[header["cgpa"]] != "" || empty[header["createdAt"]] != "" || empty[header["isPlaced"]] != "false" {
		t.Fatalf("unexpected defaults for empty profile: %v", empty)
	}
}

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"plain", "plain"},
		{"=HYPERLINK(\"x\")", "'=HYPERLINK(\"x\")"},
		{"@SUM(A1)", "'@SUM(A1)"},
		{"-1", "'-1"},
		{"https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		if got := sanitizeCell(tt.input); got != tt.want {
			t.Errorf("sanitizeCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
