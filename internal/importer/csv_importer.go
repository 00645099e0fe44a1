package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"placement/internal/auth"
	"placement/internal/directory"
)

// PlacementStore applies a placement decision to one student.
type PlacementStore interface {
	SetPlacement(ctx context.Context, email string, placed bool) (directory.User, error)
}

type Summary struct {
	TotalRows         int             `json:"totalRows"`
	Updated           int             `json:"updated"`
	SkippedDuplicates []SkippedRecord `json:"skippedDuplicates"`
	Failed            []FailedRecord  `json:"failed"`
	TruncatedRecords  bool            `json:"truncatedRecords,omitempty"`
}

type SkippedRecord struct {
	Row    int    `json:"row"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

type FailedRecord struct {
	Row   int    `json:"row"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

var ErrInvalidCSV = errors.New("invalid csv upload")

// MaxImportRows limits the number of data rows processed per CSV import.
const MaxImportRows = 5000

// MaxFailedRecords caps the number of failed/skipped records stored in the
// summary to avoid unbounded memory growth from malformed uploads.
const MaxFailedRecords = 100

// requiredColumns match the headers written by the student export, lower-cased.
var requiredColumns = []string{
	"email",
	"isplaced",
}

// CSVImporter applies placement results in bulk. It accepts the student export format,
// so an edited export can be uploaded as is; other columns are ignored.
type CSVImporter struct {
	store PlacementStore
}

func NewCSVImporter(store PlacementStore) *CSVImporter {
	return &CSVImporter{store: store}
}

func (i *CSVImporter) Import(ctx context.Context, reader io.Reader) (Summary, error) {
	if i.store == nil {
		return Summary{}, fmt.Errorf("%w: placement store is not configured", ErrInvalidCSV)
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Summary{}, fmt.Errorf("%w: file is empty", ErrInvalidCSV)
		}
		return Summary{}, fmt.Errorf("%w: failed to read header", ErrInvalidCSV)
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return Summary{}, err
	}

	type parsedRow struct {
		number int
		values map[string]string
	}

	var rows []parsedRow
	rowNumber := 1
	totalRows := 0

	for {
		record, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Summary{}, fmt.Errorf("%w: failed to read row %d", ErrInvalidCSV, rowNumber+1)
		}
		rowNumber++
		values := mapRecord(columns, record)
		if isRowEmpty(values) {
			continue
		}

		totalRows++
		if totalRows > MaxImportRows {
			return Summary{}, fmt.Errorf("%w: CSV exceeds maximum of %d rows", ErrInvalidCSV, MaxImportRows)
		}

		rows = append(rows, parsedRow{number: rowNumber, values: values})
	}

	summary := Summary{TotalRows: totalRows}
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		email := auth.NormalizeEmail(row.values["email"])
		placed, rowErr := parseRow(email, row.values["isplaced"])
		if rowErr != nil {
			summary.fail(row.number, email, rowErr)
			continue
		}

		if first, ok := seen[email]; ok {
			summary.skip(row.number, email, fmt.Sprintf("duplicate of row %d", first))
			continue
		}
		seen[email] = row.number

		if _, err := i.store.SetPlacement(ctx, email, placed); err != nil {
			if errors.Is(err, directory.ErrNotFound) || errors.Is(err, directory.ErrValidation) {
				summary.fail(row.number, email, err)
				continue
			}
			return summary, fmt.Errorf("row %d: %w", row.number, err)
		}
		summary.Updated++
	}

	return summary, nil
}

func (s *Summary) fail(row int, email string, err error) {
	if len(s.Failed) >= MaxFailedRecords {
		s.TruncatedRecords = true
		return
	}
	s.Failed = append(s.Failed, FailedRecord{Row: row, Email: email, Error: err.Error()})
}

func (s *Summary) skip(row int, email, reason string) {
	if len(s.SkippedDuplicates) >= MaxFailedRecords {
		s.TruncatedRecords = true
		return
	}
	s.SkippedDuplicates = append(s.SkippedDuplicates, SkippedRecord{Row: row, Email: email, Reason: reason})
}

func parseRow(email, placed string) (bool, error) {
	if email == "" {
		return false, errors.New("email is required")
	}
	if local, _, ok := strings.Cut(email, "@"); !ok || local == "" {
		return false, fmt.Errorf("invalid email %q", email)
	}
	return parseBool(placed)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "placed":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("isPlaced must be true or false, got %q", value)
	}
	return parsed, nil
}

func normalizeHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	seen := map[string]bool{}
	for idx, raw := range header {
		cleaned := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if cleaned == "" {
			continue
		}
		columns[idx] = cleaned
		seen[cleaned] = true
	}

	missing := make([]string, 0)
	for _, column := range requiredColumns {
		if !seen[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}
	return columns, nil
}

func mapRecord(columns map[int]string, record []string) map[string]string {
	values := make(map[string]string, len(columns))
	for idx, column := range columns {
		if idx >= len(record) {
			values[column] = ""
			continue
		}
		values[column] = strings.TrimSpace(record[idx])
	}
	return values
}

func isRowEmpty(values map[string]string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
