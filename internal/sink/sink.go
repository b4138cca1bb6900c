package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"jobscout/internal/models"
)

// placeholder fills columns the extraction did not populate
const placeholder = "N/A"

// header is the stable CSV schema; column order never changes
var header = []string{
	"role", "company", "salary", "experience", "location",
	"match_reason", "apply_link", "email_date", "source_subject",
}

// CSVSink appends job records to a CSV ledger. The header row is written
// once, when the file is first created; every record is flushed before
// Append returns so a crash never loses an acknowledged row.
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink backed by the given file path
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Append writes a single job record to the ledger
func (s *CSVSink) Append(record models.JobRecord) error {
	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	row := []string{
		orPlaceholder(record.Role),
		orPlaceholder(record.Company),
		orPlaceholder(record.Salary),
		orPlaceholder(record.Experience),
		orPlaceholder(record.Location),
		orPlaceholder(record.MatchReason),
		orPlaceholder(record.ApplyLink),
		orPlaceholder(record.EmailDate),
		orPlaceholder(record.SourceSubject),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync results file: %w", err)
	}

	return nil
}

func orPlaceholder(v string) string {
	if v == "" {
		return placeholder
	}
	return v
}
