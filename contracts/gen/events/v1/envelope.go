package v1

import (
	"encoding/json"
	"time"
)

// Envelope wraps every distribution event published by holderdrop.
// PartitionKey carries the window id so consumers can order per window.
// Fields are append-only; bump SchemaVersion when Data changes shape.
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
