package mind

import (
	"math"
	"time"
)

// FeatureDimensions is the size of the behavioral feature space.
const FeatureDimensions = 8

// Named indices into a FeatureVector.
const (
	FeatureValence = iota
	FeatureCognitiveLoad
	FeatureTemporalUrgency
	FeatureIdentityRelevance
	FeatureContradiction
	FeatureReinforcement
	FeatureRelationshipImpact
	FeatureActionPotential
)

// FeatureVector positions a memory in the 8-dimensional behavioral feature
// space used by the pattern engine.
type FeatureVector [FeatureDimensions]float64

// Distance returns the Euclidean distance between two feature vectors.
func (f FeatureVector) Distance(other FeatureVector) float64 {
	var sum float64
	for i := range f {
		d := f[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity returns a [0,1] similarity derived from Euclidean distance over
// the unit hypercube. 1 means identical vectors.
func (f FeatureVector) Similarity(other FeatureVector) float64 {
	// Maximum possible distance in the unit hypercube is sqrt(dims).
	return 1 - f.Distance(other)/math.Sqrt(FeatureDimensions)
}

// Correlation returns the Pearson correlation between two feature vectors.
// Returns 0 when either vector has no variance.
func (f FeatureVector) Correlation(other FeatureVector) float64 {
	var meanA, meanB float64
	for i := range f {
		meanA += f[i]
		meanB += other[i]
	}
	meanA /= FeatureDimensions
	meanB /= FeatureDimensions

	var cov, varA, varB float64
	for i := range f {
		da := f[i] - meanA
		db := other[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// PatternStatus is the lifecycle state of a pattern.
type PatternStatus string

const (
	// PatternActive marks a pattern whose strength is above the dormancy
	// threshold.
	PatternActive PatternStatus = "active"

	// PatternDormant marks a pattern that decayed below the dormancy
	// threshold. Dormant patterns are retained for possible revival.
	PatternDormant PatternStatus = "dormant"
)

// StrengthHistoryLen is the number of per-run strength samples retained on a
// pattern for velocity and acceleration estimation.
const StrengthHistoryLen = 8

// Pattern is a recurring cluster of memories in behavioral feature space.
type Pattern struct {
	// ID is a unique identifier for the pattern.
	ID string `json:"id"`

	// OwnerID scopes the pattern to a single owner.
	OwnerID string `json:"owner_id"`

	// Label is a short human-readable description of the dominant features.
	Label string `json:"label,omitempty"`

	// Centroid is the mean feature vector of supporting memories.
	Centroid FeatureVector `json:"centroid"`

	// Strength is the reinforced/decayed intensity in [0,1].
	Strength float64 `json:"strength"`

	// Frequency is the number of supporting memories observed.
	Frequency int `json:"frequency"`

	// Velocity and Acceleration are the first and second differences of the
	// strength history across engine runs.
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`

	// Status is PatternActive or PatternDormant.
	Status PatternStatus `json:"status"`

	// MemoryIDs lists the supporting memories.
	MemoryIDs []string `json:"memory_ids,omitempty"`

	// StrengthHistory holds the most recent strength samples, newest last.
	StrengthHistory []float64 `json:"strength_history,omitempty"`

	// LastReinforced is the time of the last reinforcement event.
	LastReinforced time.Time `json:"last_reinforced,omitzero"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// RecordStrength appends a strength sample and recomputes velocity and
// acceleration from the trailing history.
func (p *Pattern) RecordStrength(s float64) {
	p.StrengthHistory = append(p.StrengthHistory, s)
	if len(p.StrengthHistory) > StrengthHistoryLen {
		p.StrengthHistory = p.StrengthHistory[len(p.StrengthHistory)-StrengthHistoryLen:]
	}

	n := len(p.StrengthHistory)
	if n >= 2 {
		p.Velocity = p.StrengthHistory[n-1] - p.StrengthHistory[n-2]
	}
	if n >= 3 {
		prev := p.StrengthHistory[n-2] - p.StrengthHistory[n-3]
		p.Acceleration = p.Velocity - prev
	}
}

// Rank orders active patterns for reporting: strength scaled by how often the
// pattern recurs and whether it is still gaining.
func (p *Pattern) Rank() float64 {
	return p.Strength * float64(p.Frequency) * (1 + p.Velocity)
}

// PatternCache is the per-owner cached pattern engine result. It doubles as
// the trigger-gate row: LastProcessedCount is compared-and-swapped so that
// concurrent runs across processes stay consistent.
type PatternCache struct {
	OwnerID string `json:"owner_id"`

	// LastProcessedCount is the owner's total memory count at the end of
	// the last completed run.
	LastProcessedCount int `json:"last_processed_count"`

	// Report is the serialized engine output served between triggers.
	Report []byte `json:"report,omitempty"`

	// UpdatedAt is the time of the last completed run.
	UpdatedAt time.Time `json:"updated_at"`
}
