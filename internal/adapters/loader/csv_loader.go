package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// LoadCSV reads a batch of email records from a CSV file. The header must
// contain id, from, subject, body and timestamp columns; extra columns are
// carried as metadata.
func LoadCSV(path string) ([]*core.EmailRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV decodes and validates a batch of email records.
func ReadCSV(r io.Reader) ([]*core.EmailRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "from", "subject", "body", "timestamp"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	var records []*core.EmailRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}
		line++

		field := func(name string) string {
			idx := cols[name]
			if idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		ts, err := parseTimestamp(field("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", line, field("id"), err)
		}

		var metadata map[string]string
		for name, idx := range cols {
			switch name {
			case "id", "from", "subject", "body", "timestamp":
				continue
			}
			if idx < len(row) && row[idx] != "" {
				if metadata == nil {
					metadata = make(map[string]string)
				}
				metadata[name] = row[idx]
			}
		}

		records = append(records, &core.EmailRecord{
			ID:         field("id"),
			From:       field("from"),
			Subject:    field("subject"),
			Body:       field("body"),
			ReceivedAt: ts,
			Metadata:   metadata,
		})
	}

	if err := ValidateBatch(records); err != nil {
		return nil, err
	}
	return records, nil
}
