// Package fusion decides whether a newly dispatched memory founds a new
// narrative arc, merges into an existing one, or stays unclustered.
//
// Three rules apply: resonance (the weighted fusion score against recently
// active arcs) is tried first so strong memories join their arc instead of
// founding rivals, then singularity (very high gravity with a clear emotion
// founds an arc), then thematic density (enough loosely related high-gravity
// memories seed an arc together).
package fusion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

const (
	// SingularityGravity is the gravity above which an emotional memory
	// founds an arc on its own.
	SingularityGravity = 0.9

	// MergeThreshold is the minimum fusion score for merging into an arc.
	MergeThreshold = 0.65

	// resonanceWindow bounds which arcs are considered "active".
	resonanceWindow = 7 * 24 * time.Hour

	// densityWindow bounds the thematic density search.
	densityWindow = 30 * 24 * time.Hour

	// densityMinGravity is the gravity floor for density candidates.
	densityMinGravity = 0.7

	// densityMinMembers is the minimum number of candidates sharing a
	// topic or emotion before a density arc is considered.
	densityMinMembers = 3

	// densityPairSimilarity is the pairwise similarity two candidates must
	// exceed for the density rule to fire.
	densityPairSimilarity = 0.6

	// memberSample caps how many arc members feed the semantic factor.
	memberSample = 5

	// nameTokens is how many leading tokens of summary or content make an
	// arc name.
	nameTokens = 4
)

// DecisionKind enumerates fusion outcomes.
type DecisionKind string

const (
	DecisionCreate   DecisionKind = "create_new_arc"
	DecisionMerge    DecisionKind = "merge_into_arc"
	DecisionNoFusion DecisionKind = "no_fusion"
)

// Decision is the outcome of fusing one memory.
type Decision struct {
	// Kind is the decision taken.
	Kind DecisionKind `json:"kind"`

	// ArcID is the created or merged arc, when Kind is not no_fusion.
	ArcID string `json:"arc_id,omitempty"`

	// Score is the winning fusion score for merges.
	Score float64 `json:"score,omitempty"`

	// Rule names the rule that fired: singularity, resonance, density.
	Rule string `json:"rule,omitempty"`
}

// Engine is the arc fusion engine.
type Engine struct {
	store  storage.Driver
	logger *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a fusion engine over the given store.
func NewEngine(store storage.Driver, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Fuse decides and applies the arc placement for a newly stored memory.
func (e *Engine) Fuse(ctx context.Context, m *mind.Memory) (*Decision, error) {
	now := e.now()

	// Rule 2 outranks rule 1 when a resonant arc already exists: a
	// high-gravity memory that clearly belongs to an active arc joins it
	// instead of founding a competing one.
	arcs, err := e.store.ListArcs(ctx, m.OwnerID, now.Add(-resonanceWindow))
	if err != nil {
		return nil, fmt.Errorf("listing active arcs: %w", err)
	}

	var best *mind.Arc
	var bestScore float64
	for _, arc := range arcs {
		members, err := e.store.ListMemories(ctx, m.OwnerID, storage.MemoryFilter{
			ArcID: arc.ID,
			Limit: memberSample,
		})
		if err != nil {
			return nil, fmt.Errorf("listing arc members: %w", err)
		}

		score := Score(m, arc, members, now).Total
		if score > bestScore {
			best = arc
			bestScore = score
		}
	}

	if best != nil && bestScore > MergeThreshold {
		if err := e.merge(ctx, m, best); err != nil {
			return nil, err
		}

		e.logger.Info("memory merged into arc",
			zap.String("arc_id", best.ID),
			zap.String("memory_id", m.ID),
			zap.Float64("score", bestScore),
		)

		return &Decision{Kind: DecisionMerge, ArcID: best.ID, Score: bestScore, Rule: "resonance"}, nil
	}

	// Rule 1: singularity. Gravity above the threshold with a clear
	// emotion founds a new arc on its own.
	if m.GravityScore > SingularityGravity && m.EmotionalWeight() {
		arc, err := e.createArc(ctx, m, []*mind.Memory{m})
		if err != nil {
			return nil, err
		}

		e.logger.Info("singularity created arc",
			zap.String("arc_id", arc.ID),
			zap.String("memory_id", m.ID),
		)

		return &Decision{Kind: DecisionCreate, ArcID: arc.ID, Rule: "singularity"}, nil
	}

	// Rule 3: thematic density over the trailing window.
	seeds, err := e.densitySeeds(ctx, m, now)
	if err != nil {
		return nil, err
	}
	if seeds != nil {
		arc, err := e.createArc(ctx, m, seeds)
		if err != nil {
			return nil, err
		}

		e.logger.Info("density created arc",
			zap.String("arc_id", arc.ID),
			zap.Int("seed_count", len(seeds)),
		)

		return &Decision{Kind: DecisionCreate, ArcID: arc.ID, Rule: "density"}, nil
	}

	return &Decision{Kind: DecisionNoFusion}, nil
}

// merge folds the memory into the arc and persists both sides.
func (e *Engine) merge(ctx context.Context, m *mind.Memory, arc *mind.Arc) error {
	arc.Absorb(m)

	if err := e.store.UpdateArc(ctx, arc); err != nil {
		return fmt.Errorf("updating arc: %w", err)
	}
	if err := e.store.SetMemoryArc(ctx, m.ID, arc.ID); err != nil {
		return fmt.Errorf("back-referencing arc: %w", err)
	}

	m.ArcID = arc.ID
	return nil
}

// densitySeeds looks for enough thematically aligned high-gravity memories
// to seed a new arc around m. Returns nil when the rule does not fire.
func (e *Engine) densitySeeds(ctx context.Context, m *mind.Memory, now time.Time) ([]*mind.Memory, error) {
	if m.Topic == "" && !m.EmotionalWeight() {
		return nil, nil
	}

	recent, err := e.store.ListMemories(ctx, m.OwnerID, storage.MemoryFilter{
		Since:      now.Add(-densityWindow),
		MinGravity: densityMinGravity,
		WithoutArc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing density candidates: %w", err)
	}

	var candidates []*mind.Memory
	for _, c := range recent {
		if c.ID == m.ID {
			continue
		}
		shared := (m.Topic != "" && c.Topic == m.Topic) ||
			(m.EmotionalWeight() && c.Emotion == m.Emotion)
		if shared {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) < densityMinMembers {
		return nil, nil
	}

	// Require at least two candidates that are mutually similar above the
	// pair threshold.
	similar := 0
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			if MemorySimilarity(candidates[i], candidates[j]) > densityPairSimilarity {
				similar += 2
				break
			}
		}
		if similar >= 2 {
			break
		}
	}
	if similar < 2 {
		return nil, nil
	}

	return append(candidates, m), nil
}

// createArc founds a new arc from the given members and persists it along
// with each member's back-reference.
func (e *Engine) createArc(ctx context.Context, founder *mind.Memory, members []*mind.Memory) (*mind.Arc, error) {
	arc := &mind.Arc{
		ID:            uuid.NewString(),
		OwnerID:       founder.OwnerID,
		Name:          arcName(founder),
		EmotionalTone: founder.Emotion,
	}

	first := members[0]
	arc.FirstMemoryAt = first.CreatedAt
	arc.LastMemoryAt = first.CreatedAt
	arc.GravityCenter = first.GravityScore
	arc.MemoryCount = 1
	arc.Growth = mind.GrowthVector{
		Velocity:  first.GravityScore,
		Direction: mind.DirectionStabilizing,
	}
	for _, m := range members[1:] {
		arc.Absorb(m)
	}

	if err := e.store.PutArc(ctx, arc); err != nil {
		return nil, fmt.Errorf("storing arc: %w", err)
	}

	for _, m := range members {
		if err := e.store.SetMemoryArc(ctx, m.ID, arc.ID); err != nil {
			return nil, fmt.Errorf("back-referencing arc: %w", err)
		}
		m.ArcID = arc.ID
	}

	return arc, nil
}

// arcName derives a short label from topic, summary, content, or emotion,
// in that priority order.
func arcName(m *mind.Memory) string {
	if m.Topic != "" {
		return m.Topic
	}

	for _, text := range []string{m.Summary, m.Content} {
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > nameTokens {
			fields = fields[:nameTokens]
		}
		return strings.Join(fields, " ")
	}

	if m.Emotion != "" {
		return m.Emotion
	}
	return "untitled arc"
}
