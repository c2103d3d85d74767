package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// emailJSON is the on-disk record shape.
type emailJSON struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LoadJSON reads a batch of email records from a JSON array file.
func LoadJSON(path string) ([]*core.EmailRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadJSON(f)
}

// ReadJSON decodes and validates a batch of email records.
func ReadJSON(r io.Reader) ([]*core.EmailRecord, error) {
	var raw []emailJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode email batch: %w", err)
	}

	records := make([]*core.EmailRecord, 0, len(raw))
	for i, item := range raw {
		ts, err := parseTimestamp(item.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, item.ID, err)
		}
		records = append(records, &core.EmailRecord{
			ID:         item.ID,
			From:       item.From,
			Subject:    item.Subject,
			Body:       item.Body,
			ReceivedAt: ts,
			Metadata:   item.Metadata,
		})
	}

	if err := ValidateBatch(records); err != nil {
		return nil, err
	}
	return records, nil
}
