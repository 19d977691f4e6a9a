// Package eventstream defines the transport-neutral events emitted by the
// pipeline's fire-and-forget cascades, and the Publisher interface backends
// implement.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryDispatched is emitted after a memory is persisted and
	// its cascades have been scheduled.
	EventTypeMemoryDispatched = "psyche.memory.dispatched"

	// EventTypeRegressionDetected is emitted when the snapshot engine
	// detects an unexplained drop in a core consciousness dimension. It is
	// the mitigation hook for downstream reflection processes.
	EventTypeRegressionDetected = "psyche.snapshot.regression"
)

// CascadeEvent is a transport-neutral payload for a pipeline cascade.
type CascadeEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// OwnerID scopes the event to a single owner.
	OwnerID string `json:"owner_id"`

	// MemoryID is set on dispatch events.
	MemoryID string `json:"memory_id,omitempty"`

	// Cascades names the side effects scheduled for a dispatched memory.
	Cascades []string `json:"cascades,omitempty"`

	// SnapshotID and RegressedDimensions are set on regression events.
	SnapshotID          string   `json:"snapshot_id,omitempty"`
	RegressedDimensions []string `json:"regressed_dimensions,omitempty"`
}
