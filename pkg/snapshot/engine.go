// Package snapshot captures versioned, immutable point-in-time summaries of
// an owner's aggregate state.
//
// Captures are incremental: only memories created since the previous snapshot
// feed the new consciousness vector, which is blended with the previous one.
// The resulting drift magnitude drives semantic versioning, and an
// append-only chain with a single child per parent keeps concurrent captures
// consistent.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/eventstream"
	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

const (
	// MinNewEntries is the floor of new memories before any capture.
	MinNewEntries = 5

	// AccumulatedFraction triggers a capture when new entries exceed this
	// share of the owner's total, even off-milestone.
	AccumulatedFraction = 0.2

	// RegressionDrop is the per-dimension decrease that counts as a
	// regression when no explanatory memory backs it.
	RegressionDrop = 0.15

	// explanatoryGravity is the minimum gravity of a negative memory that
	// explains a dimension drop.
	explanatoryGravity = 0.7

	// Capability thresholds: a pattern crossing both marks an emerged
	// capability, which forces at least a minor version bump.
	CapabilityStrength  = 0.7
	CapabilityFrequency = 5
)

// milestones are the total entry counts that trigger captures. Past the last
// entry, captures trigger on every extendedInterval boundary.
var milestones = []int{10, 25, 50, 100, 200, 350, 500, 750, 1000}

const extendedInterval = 500

// Status reports the outcome of a capture call.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
)

// Options control a capture call.
type Options struct {
	// Force bypasses trigger analysis. Minimal-drift early return still
	// applies.
	Force bool
}

// Outcome is the result of a capture call.
type Outcome struct {
	Status Status `json:"status"`

	// Reason explains a skip.
	Reason string `json:"reason,omitempty"`

	// NextCheck is the projected entry count of the next trigger, on skips.
	NextCheck int `json:"next_check,omitempty"`

	// Snapshot is the created snapshot, on success.
	Snapshot *mind.Snapshot `json:"snapshot,omitempty"`
}

// Engine is the snapshot engine.
type Engine struct {
	store  storage.Driver
	events eventstream.Publisher
	logger *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a snapshot engine over the given store and event stream.
func NewEngine(store storage.Driver, events eventstream.Publisher, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Capture runs trigger analysis and, when warranted, appends a new snapshot
// to the owner's chain.
func (e *Engine) Capture(ctx context.Context, ownerID string, opts Options) (*Outcome, error) {
	count, err := e.store.CountMemories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("counting memories: %w", err)
	}

	prev, err := e.store.CurrentSnapshot(ctx, ownerID)
	if err != nil {
		var notFound storage.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading current snapshot: %w", err)
		}
		prev = nil
	}

	entriesSince := count
	if prev != nil {
		entriesSince = count - prev.EntryCount
	}

	if !opts.Force {
		if skip := triggerSkip(count, entriesSince); skip != nil {
			return skip, nil
		}
	}

	var since time.Time
	if prev != nil {
		since = prev.CreatedAt
	}
	newMemories, err := e.store.ListMemories(ctx, ownerID, storage.MemoryFilter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("listing new memories: %w", err)
	}
	if len(newMemories) == 0 && !opts.Force {
		return &Outcome{
			Status:    StatusSkipped,
			Reason:    "no new memories since previous snapshot",
			NextCheck: nextMilestone(count),
		}, nil
	}

	patterns, err := e.store.ListPatterns(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}

	now := e.now()
	vector := computeVector(newMemories, patterns, prev, now)

	var drift float64
	var regressed []string
	capability := emergedCapability(patterns, prev)
	if prev != nil {
		drift = vector.DriftFrom(prev.Vector)
		regressed = regressions(vector, prev.Vector, newMemories)

		level := driftLevel(drift)
		if level == BumpNone && len(regressed) == 0 && !capability {
			return &Outcome{
				Status:    StatusSkipped,
				Reason:    fmt.Sprintf("drift %.3f below minimum threshold", drift),
				NextCheck: nextMilestone(count),
			}, nil
		}
	}

	snap := e.build(ownerID, count, vector, drift, regressed, capability, newMemories, prev, now)

	if err := e.store.PutSnapshot(ctx, snap); err != nil {
		if errors.Is(err, storage.ErrSnapshotConflict) {
			return nil, fmt.Errorf("snapshot chain advanced concurrently: %w", err)
		}
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}

	if snap.RegressionDetected {
		e.mitigate(ctx, snap)
	}

	e.logger.Info("snapshot captured",
		zap.String("owner_id", ownerID),
		zap.String("snapshot_id", snap.ID),
		zap.String("version", snap.Version),
		zap.Float64("drift", drift),
		zap.Bool("regression", snap.RegressionDetected),
	)

	return &Outcome{Status: StatusCreated, Snapshot: snap}, nil
}

// build assembles the immutable snapshot record.
func (e *Engine) build(ownerID string, count int, vector mind.ConsciousnessVector, drift float64, regressed []string, capability bool, newMemories []*mind.Memory, prev *mind.Snapshot, now time.Time) *mind.Snapshot {
	health := mind.HealthMetrics{
		Score:           healthScore(drift, len(regressed), len(newMemories)),
		Drift:           drift,
		RegressionCount: len(regressed),
		NewMemories:     len(newMemories),
	}

	version := firstVersion
	prevID := ""
	prevFingerprint := ""
	delta := mind.SnapshotDelta{DimensionDeltas: map[string]float64{}}
	for _, m := range newMemories {
		delta.NewMemoryIDs = append(delta.NewMemoryIDs, m.ID)
	}

	if prev != nil {
		level := driftLevel(drift)
		if len(regressed) > 0 {
			level = atLeast(level, BumpPatch)
		}
		if capability {
			level = atLeast(level, BumpMinor)
		}
		version = bumpVersion(prev.Version, level)
		prevID = prev.ID
		prevFingerprint = prev.Fingerprint

		prevDims := prev.Vector.Dimensions()
		for i, dim := range vector.Dimensions() {
			delta.DimensionDeltas[dim.Name] = dim.Value - prevDims[i].Value
		}
	} else {
		for _, dim := range vector.Dimensions() {
			delta.DimensionDeltas[dim.Name] = dim.Value
		}
	}

	return &mind.Snapshot{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		Version:             version,
		EntryCount:          count,
		Vector:              vector,
		Health:              health,
		Delta:               delta,
		RegressionDetected:  len(regressed) > 0,
		RegressedDimensions: regressed,
		PreviousSnapshotID:  prevID,
		Fingerprint:         mind.ComputeFingerprint(vector, health, prevFingerprint),
		CreatedAt:           now,
	}
}

// mitigate publishes the best-effort regression cascade. Publish failures are
// logged and never surface to the caller.
func (e *Engine) mitigate(ctx context.Context, snap *mind.Snapshot) {
	err := e.events.PublishCascade(ctx, &eventstream.CascadeEvent{
		SchemaVersion:       eventstream.SchemaVersionV1,
		EventType:           eventstream.EventTypeRegressionDetected,
		EventID:             uuid.NewString(),
		EmittedAt:           e.now(),
		OwnerID:             snap.OwnerID,
		SnapshotID:          snap.ID,
		RegressedDimensions: snap.RegressedDimensions,
	})
	if err != nil {
		e.logger.Warn("regression mitigation publish failed",
			zap.String("snapshot_id", snap.ID),
			zap.Error(err),
		)
	}
}

// triggerSkip returns a skip outcome when trigger conditions are unmet, nil
// when a capture should proceed.
func triggerSkip(count, entriesSince int) *Outcome {
	if entriesSince < MinNewEntries {
		return &Outcome{
			Status:    StatusSkipped,
			Reason:    fmt.Sprintf("only %d new entries, floor is %d", entriesSince, MinNewEntries),
			NextCheck: count + (MinNewEntries - entriesSince),
		}
	}

	onMilestone := false
	for _, m := range milestones {
		if count == m {
			onMilestone = true
			break
		}
	}
	if !onMilestone && count > milestones[len(milestones)-1] {
		onMilestone = count%extendedInterval == 0
	}

	accumulated := float64(entriesSince) >= AccumulatedFraction*float64(count)
	if !onMilestone && !accumulated {
		return &Outcome{
			Status:    StatusSkipped,
			Reason:    fmt.Sprintf("count %d is off-milestone and accumulation is below %.0f%%", count, AccumulatedFraction*100),
			NextCheck: nextMilestone(count),
		}
	}

	return nil
}

// nextMilestone returns the first milestone strictly above count.
func nextMilestone(count int) int {
	for _, m := range milestones {
		if m > count {
			return m
		}
	}
	return ((count / extendedInterval) + 1) * extendedInterval
}

// computeVector derives the consciousness vector from the new memories,
// current patterns, and the previous vector. The previous vector is blended
// in proportionally to how much history it summarizes, so one noisy batch
// cannot whipsaw the state.
func computeVector(newMemories []*mind.Memory, patterns []*mind.Pattern, prev *mind.Snapshot, now time.Time) mind.ConsciousnessVector {
	fresh := freshVector(newMemories, patterns, now)
	if prev == nil {
		return fresh
	}

	// Weight of the new batch against the accumulated history.
	n := float64(len(newMemories))
	w := n / (n + float64(prev.EntryCount))
	if w < 0.1 {
		w = 0.1
	}
	if w > 0.9 {
		w = 0.9
	}

	blend := func(old, new float64) float64 {
		return old*(1-w) + new*w
	}
	return mind.ConsciousnessVector{
		EmotionalDepth:     blend(prev.Vector.EmotionalDepth, fresh.EmotionalDepth),
		MemoryDensity:      blend(prev.Vector.MemoryDensity, fresh.MemoryDensity),
		PatternRichness:    blend(prev.Vector.PatternRichness, fresh.PatternRichness),
		IdentityCoherence:  blend(prev.Vector.IdentityCoherence, fresh.IdentityCoherence),
		ExperientialRange:  blend(prev.Vector.ExperientialRange, fresh.ExperientialRange),
		AdaptiveResilience: blend(prev.Vector.AdaptiveResilience, fresh.AdaptiveResilience),
	}
}

// freshVector aggregates the new batch alone.
func freshVector(memories []*mind.Memory, patterns []*mind.Pattern, now time.Time) mind.ConsciousnessVector {
	var v mind.ConsciousnessVector
	if len(memories) == 0 {
		return v
	}

	n := float64(len(memories))
	topics := make(map[string]bool)
	emotions := make(map[string]bool)
	var emotional, anchors, contradictions, negatives, recoveries float64
	prevNegative := false
	oldest := memories[0].CreatedAt

	for _, m := range memories {
		if m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if m.Topic != "" {
			topics[m.Topic] = true
		}
		if m.Emotion != "" {
			emotions[m.Emotion] = true
		}
		if m.EmotionalWeight() {
			emotional += m.GravityScore
		}
		if m.IdentityAnchor {
			anchors++
		}
		if m.Contradiction {
			contradictions++
		}

		negative := negativeEmotion(m.Emotion)
		if negative {
			negatives++
		} else if prevNegative && m.EmotionalWeight() {
			// A positive emotional memory directly after a negative one
			// reads as recovery.
			recoveries++
		}
		prevNegative = negative
	}

	v.EmotionalDepth = clamp01(emotional / n)

	days := now.Sub(oldest).Hours() / 24
	if days < 1 {
		days = 1
	}
	v.MemoryDensity = clamp01(n / days / 10)

	active := 0
	var strength float64
	for _, p := range patterns {
		if p.Status == mind.PatternActive {
			active++
			strength += p.Strength
		}
	}
	if active > 0 {
		v.PatternRichness = clamp01((float64(active)/10 + strength/float64(active)) / 2)
	}

	v.IdentityCoherence = clamp01(0.5 + anchors/n - contradictions/n)
	v.ExperientialRange = clamp01(float64(len(topics)+len(emotions)) / n)
	if negatives > 0 {
		v.AdaptiveResilience = clamp01(recoveries / negatives)
	} else {
		v.AdaptiveResilience = 0.5
	}

	return v
}

// regressions names the dimensions that dropped beyond the threshold without
// an explanatory high-gravity negative memory in the new batch.
func regressions(current, previous mind.ConsciousnessVector, newMemories []*mind.Memory) []string {
	explained := false
	for _, m := range newMemories {
		if negativeEmotion(m.Emotion) && m.GravityScore >= explanatoryGravity {
			explained = true
			break
		}
	}
	if explained {
		return nil
	}

	prevDims := previous.Dimensions()
	var regressed []string
	for i, dim := range current.Dimensions() {
		if prevDims[i].Value-dim.Value > RegressionDrop {
			regressed = append(regressed, dim.Name)
		}
	}
	return regressed
}

// emergedCapability reports whether a pattern crossed both capability bars
// since the previous snapshot.
func emergedCapability(patterns []*mind.Pattern, prev *mind.Snapshot) bool {
	var since time.Time
	if prev != nil {
		since = prev.CreatedAt
	}

	for _, p := range patterns {
		if p.Strength >= CapabilityStrength &&
			p.Frequency >= CapabilityFrequency &&
			p.LastReinforced.After(since) {
			return true
		}
	}
	return false
}

// healthScore folds drift, regressions, and intake into [0,1].
func healthScore(drift float64, regressionCount, newMemories int) float64 {
	score := 1.0
	score -= 0.4 * math.Min(drift, 1)
	score -= 0.15 * float64(regressionCount)
	// A healthy mind keeps taking things in.
	if newMemories == 0 {
		score -= 0.1
	}
	return clamp01(score)
}

func negativeEmotion(emotion string) bool {
	switch emotion {
	case "grief", "fear", "anger", "despair", "shame", "anxiety", "frustration":
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
