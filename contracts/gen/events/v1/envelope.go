package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Envelope is the versioned wrapper every socializing event travels in, on
// the outbox and on the bus. Consumers dedupe on EventID and route on
// PartitionKey, which carries the cohort id.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

var (
	ErrMissingEventID   = errors.New("envelope event_id is required")
	ErrMissingEventType = errors.New("envelope event_type is required")
	ErrInvalidData      = errors.New("envelope data must be a JSON object")
)

// Validate checks the fields the relay and consumers rely on.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrMissingEventID
	}
	if strings.TrimSpace(e.EventType) == "" {
		return ErrMissingEventType
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return ErrInvalidData
	}
	return nil
}
