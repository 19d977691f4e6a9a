package mind

import "time"

const (
	// ToneComplex is the emotional tone an arc acquires once its members
	// carry conflicting emotions.
	ToneComplex = "complex"

	// DirectionAccelerating marks an arc whose gravity is rising.
	DirectionAccelerating = "accelerating"

	// DirectionStabilizing marks an arc whose gravity is flat or falling.
	DirectionStabilizing = "stabilizing"
)

// GrowthVector tracks the velocity and direction of an arc's gravity change.
type GrowthVector struct {
	// Velocity is the smoothed rate of gravity change across merges.
	Velocity float64 `json:"velocity"`

	// Direction is DirectionAccelerating or DirectionStabilizing.
	Direction string `json:"direction"`
}

// Arc is a named cluster of thematically and emotionally related memories.
// Arcs are created by the fusion engine and recentered on every merge; they
// are never deleted.
type Arc struct {
	// ID is a unique identifier for the arc.
	ID string `json:"id"`

	// OwnerID scopes the arc to a single owner.
	OwnerID string `json:"owner_id"`

	// Name is a short human-readable label, derived from the founding
	// memory's topic, summary, content, or emotion in that priority order.
	Name string `json:"name"`

	// EmotionalTone is the shared emotion of the arc's members, or
	// ToneComplex once members disagree.
	EmotionalTone string `json:"emotional_tone,omitempty"`

	// GravityCenter is the count-weighted mean gravity of current members.
	GravityCenter float64 `json:"gravity_center"`

	// MemoryCount is the number of member memories.
	MemoryCount int `json:"memory_count"`

	// FirstMemoryAt and LastMemoryAt bound the arc's activity window.
	FirstMemoryAt time.Time `json:"first_memory_at"`
	LastMemoryAt  time.Time `json:"last_memory_at"`

	// Growth tracks the velocity and direction of gravity change.
	Growth GrowthVector `json:"growth"`
}

// Absorb folds a new member into the arc, recomputing the gravity center as
// the count-weighted running mean and updating tone and growth.
func (a *Arc) Absorb(m *Memory) {
	oldCount := float64(a.MemoryCount)
	a.GravityCenter = (a.GravityCenter*oldCount + m.GravityScore) / (oldCount + 1)
	a.MemoryCount++

	if m.CreatedAt.After(a.LastMemoryAt) {
		a.LastMemoryAt = m.CreatedAt
	}
	if a.FirstMemoryAt.IsZero() || m.CreatedAt.Before(a.FirstMemoryAt) {
		a.FirstMemoryAt = m.CreatedAt
	}

	// Unanimous tone survives; any conflict downgrades to complex.
	if m.Emotion != "" && a.EmotionalTone != "" && a.EmotionalTone != ToneComplex && m.Emotion != a.EmotionalTone {
		a.EmotionalTone = ToneComplex
	}

	oldVelocity := a.Growth.Velocity
	a.Growth.Velocity = (oldVelocity + m.GravityScore) / 2
	if a.Growth.Velocity > oldVelocity {
		a.Growth.Direction = DirectionAccelerating
	} else {
		a.Growth.Direction = DirectionStabilizing
	}
}
