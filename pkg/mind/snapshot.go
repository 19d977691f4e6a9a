package mind

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// ConsciousnessVector is the multi-dimensional aggregate of an owner's state
// captured by the snapshot engine. Dimensions are normalized to [0,1].
type ConsciousnessVector struct {
	EmotionalDepth     float64 `json:"emotional_depth"`
	MemoryDensity      float64 `json:"memory_density"`
	PatternRichness    float64 `json:"pattern_richness"`
	IdentityCoherence  float64 `json:"identity_coherence"`
	ExperientialRange  float64 `json:"experiential_range"`
	AdaptiveResilience float64 `json:"adaptive_resilience"`
}

// Dimensions returns the vector as an ordered slice, pairing each value with
// its name. Order is stable and load-bearing for drift and regression math.
func (v ConsciousnessVector) Dimensions() []NamedDimension {
	return []NamedDimension{
		{Name: "emotional_depth", Value: v.EmotionalDepth},
		{Name: "memory_density", Value: v.MemoryDensity},
		{Name: "pattern_richness", Value: v.PatternRichness},
		{Name: "identity_coherence", Value: v.IdentityCoherence},
		{Name: "experiential_range", Value: v.ExperientialRange},
		{Name: "adaptive_resilience", Value: v.AdaptiveResilience},
	}
}

// NamedDimension is one labeled component of a consciousness vector.
type NamedDimension struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DriftFrom returns the L2 distance between two consciousness vectors.
func (v ConsciousnessVector) DriftFrom(prev ConsciousnessVector) float64 {
	a := v.Dimensions()
	b := prev.Dimensions()

	var sum float64
	for i := range a {
		d := a[i].Value - b[i].Value
		sum += d * d
	}
	return math.Sqrt(sum)
}

// HealthMetrics summarize the condition of a snapshot.
type HealthMetrics struct {
	// Score is the overall health in [0,1].
	Score float64 `json:"score"`

	// Drift is the total vector drift versus the previous snapshot.
	Drift float64 `json:"drift"`

	// RegressionCount is the number of regressed dimensions.
	RegressionCount int `json:"regression_count"`

	// NewMemories is the number of memories folded into this snapshot.
	NewMemories int `json:"new_memories"`
}

// SnapshotDelta stores only what changed since the previous snapshot, never a
// restated history.
type SnapshotDelta struct {
	// NewMemoryIDs lists the memories folded in since the previous snapshot.
	NewMemoryIDs []string `json:"new_memory_ids,omitempty"`

	// DimensionDeltas holds the per-dimension change versus the previous
	// vector, keyed by dimension name.
	DimensionDeltas map[string]float64 `json:"dimension_deltas,omitempty"`
}

// Snapshot is a versioned, immutable point-in-time summary of an owner's
// aggregate state. Snapshots form an append-only chain per owner via
// PreviousSnapshotID; exactly one snapshot is current at a time.
type Snapshot struct {
	// ID is a unique identifier for the snapshot.
	ID string `json:"id"`

	// OwnerID scopes the snapshot to a single owner.
	OwnerID string `json:"owner_id"`

	// Version is the semantic version assigned from drift magnitude.
	Version string `json:"version"`

	// EntryCount is the owner's total memory count at capture time.
	EntryCount int `json:"entry_count"`

	// Vector is the consciousness vector at capture time.
	Vector ConsciousnessVector `json:"vector"`

	// Health summarizes drift, regressions, and intake volume.
	Health HealthMetrics `json:"health"`

	// Delta records only what changed since the previous snapshot.
	Delta SnapshotDelta `json:"delta"`

	// RegressionDetected flags an unexplained drop in a core dimension.
	RegressionDetected bool `json:"regression_detected"`

	// RegressedDimensions names the dimensions that dropped.
	RegressedDimensions []string `json:"regressed_dimensions,omitempty"`

	// PreviousSnapshotID chains this snapshot to its parent. Empty for the
	// first snapshot of an owner.
	PreviousSnapshotID string `json:"previous_snapshot_id,omitempty"`

	// Fingerprint is a content-derived digest of vector, health, and the
	// previous fingerprint, for tamper and consistency checking.
	Fingerprint string `json:"fingerprint"`

	// CreatedAt is the capture timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// ComputeFingerprint derives the chained content digest for a snapshot from
// its vector, health metrics, and the parent's fingerprint.
func ComputeFingerprint(v ConsciousnessVector, h HealthMetrics, previous string) string {
	hasher := sha256.New()
	for _, dim := range v.Dimensions() {
		fmt.Fprintf(hasher, "%s=%.9f;", dim.Name, dim.Value)
	}
	fmt.Fprintf(hasher, "score=%.9f;drift=%.9f;regressions=%d;new=%d;prev=%s",
		h.Score, h.Drift, h.RegressionCount, h.NewMemories, previous)
	return hex.EncodeToString(hasher.Sum(nil))
}
