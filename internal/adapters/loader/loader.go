package loader

import (
	"fmt"
	"time"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// ValidateBatch enforces the input invariants before records reach the
// pipeline: required fields present, identifiers unique within the batch,
// parseable timestamps. Invalid input is rejected here, never triaged.
func ValidateBatch(records []*core.EmailRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i, record := range records {
		if record.ID == "" {
			return fmt.Errorf("record %d: missing id", i)
		}
		if record.From == "" {
			return fmt.Errorf("record %d (%s): missing sender", i, record.ID)
		}
		if record.ReceivedAt.IsZero() {
			return fmt.Errorf("record %d (%s): missing timestamp", i, record.ID)
		}
		if _, dup := seen[record.ID]; dup {
			return fmt.Errorf("record %d: duplicate id %q", i, record.ID)
		}
		seen[record.ID] = struct{}{}
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return ts, nil
}
