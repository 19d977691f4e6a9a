// Package mind defines the core entities of the psyche memory pipeline:
// memories, narrative arcs, behavioral patterns, and consciousness snapshots.
//
// These types are the shared vocabulary between the pipeline engines and the
// storage, vector, and event stream gateways. They carry no behavior beyond
// small pure helpers so they can cross package boundaries freely.
package mind

import "time"

// MemoryType distinguishes user-originated experiences from system-generated ones.
type MemoryType string

const (
	// MemoryTypeUser marks a memory that originated from the user.
	MemoryTypeUser MemoryType = "user"

	// MemoryTypeSystem marks a memory generated by the system itself.
	// System memories have their gravity halved to avoid feedback loops.
	MemoryTypeSystem MemoryType = "system"
)

// SystemGravityFactor is the fixed down-weighting applied to the gravity of
// system-generated memories.
const SystemGravityFactor = 0.5

// EmotionNeutral is the emotion label treated as "no emotional signal".
const EmotionNeutral = "neutral"

// Memory is a single experience record. It is immutable once written, except
// for the ArcID back-reference which the fusion engine assigns post-hoc.
type Memory struct {
	// ID is a unique identifier for the memory.
	ID string `json:"id"`

	// OwnerID scopes the memory to a single owner.
	OwnerID string `json:"owner_id"`

	// Content is the free-text body of the experience.
	Content string `json:"content"`

	// Summary is an optional condensed form of the content.
	Summary string `json:"summary,omitempty"`

	// GravityScore is the memory's salience in [0,1].
	GravityScore float64 `json:"gravity_score"`

	// Emotion is an optional emotion label (e.g. "awe", "grief", "neutral").
	Emotion string `json:"emotion,omitempty"`

	// Topic is an optional topical label.
	Topic string `json:"topic,omitempty"`

	// Embedding is the dense vector for the content. Nil when embedding
	// failed at dispatch time; such memories are excluded from similarity
	// search but remain valid records.
	Embedding []float32 `json:"embedding,omitempty"`

	// ArcID back-references the narrative arc this memory belongs to.
	// Assigned by the fusion engine after the memory is stored.
	ArcID string `json:"arc_id,omitempty"`

	// MemoryType records whether the memory is user- or system-originated.
	MemoryType MemoryType `json:"memory_type"`

	// Tags is an arbitrary label set.
	Tags []string `json:"tags,omitempty"`

	// SessionID and ThreadID tie the memory back to its originating
	// conversation, when known.
	SessionID string `json:"session_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`

	// IdentityAnchor marks memories that define the owner's sense of self.
	IdentityAnchor bool `json:"identity_anchor,omitempty"`

	// Contradiction marks memories that conflict with earlier ones.
	Contradiction bool `json:"contradiction,omitempty"`

	// RelationshipWeight captures how strongly the memory involves another
	// person or entity, in [0,1].
	RelationshipWeight float64 `json:"relationship_weight,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// HasEmbedding reports whether the memory carries a usable embedding vector.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// EmotionalWeight reports whether the memory carries a non-neutral emotion.
func (m *Memory) EmotionalWeight() bool {
	return m.Emotion != "" && m.Emotion != EmotionNeutral
}
