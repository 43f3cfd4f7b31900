// Package journal keeps a history of apply attempts in a JSONL file.
package journal

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/cru/internal/model"
)

// Record is one journal entry.
type Record struct {
	ID           string            `json:"id" yaml:"id"`
	Timestamp    int64             `json:"timestamp" yaml:"timestamp"`
	Backend      string            `json:"backend" yaml:"backend"`
	Display      string            `json:"display,omitempty" yaml:"display,omitempty"`
	ModeName     string            `json:"mode_name,omitempty" yaml:"mode_name,omitempty"`
	Modeline     string            `json:"modeline,omitempty" yaml:"modeline,omitempty"`
	Algorithm    model.Algorithm   `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Destinations []string          `json:"destinations,omitempty" yaml:"destinations,omitempty"`
	Outcome      model.OutcomeKind `json:"outcome" yaml:"outcome"`
	Message      string            `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewRecord creates a record stamped with a fresh ULID and the current time.
func NewRecord(outcome model.OutcomeKind, message string) (Record, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Record{}, fmt.Errorf("failed to generate record id: %w", err)
	}
	return Record{
		ID:        id.String(),
		Timestamp: now.Unix(),
		Outcome:   outcome,
		Message:   message,
	}, nil
}

// Time returns the record timestamp.
func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}
