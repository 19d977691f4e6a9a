// Package pattern detects recurring behavioral patterns by clustering
// memories in an 8-dimensional feature space.
//
// Detection is expensive, so it is gated on memory-count milestones: between
// milestones the engine serves a cached report. The gate is enforced with a
// compare-and-swap on the per-owner cache row so concurrent runs across
// processes cannot double-process the same window.
package pattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

const (
	// Epsilon is the DBSCAN neighborhood radius in feature space.
	Epsilon = 0.75

	// MinPoints is the minimum neighborhood size for a DBSCAN core point.
	MinPoints = 3

	// ReinforcementRate is the fixed strength gain when a new cluster
	// matches an existing pattern.
	ReinforcementRate = 0.1

	// DecayPerEntry is the strength lost per new memory processed since the
	// last run, applied to every pattern before reinforcement.
	DecayPerEntry = 0.01

	// DormancyThreshold is the strength below which a pattern goes dormant.
	// Dormant patterns are never deleted; a later reinforcement can revive
	// them.
	DormancyThreshold = 0.25

	// MatchSimilarity is the centroid similarity above which a fresh
	// cluster reinforces an existing pattern instead of founding a new one.
	MatchSimilarity = 0.85

	// MergeSimilarity is the pairwise similarity above which two patterns
	// collapse into one.
	MergeSimilarity = 0.92

	// InterferenceCorrelation is the absolute feature correlation above
	// which two opposing-valence patterns count as interfering.
	InterferenceCorrelation = 0.8
)

// milestones are the memory counts at which detection re-runs. Past the last
// entry the engine re-runs every extendedInterval entries.
var milestones = []int{5, 10, 20, 35, 50, 75, 100, 150, 200, 300, 500, 750, 1000}

const extendedInterval = 500

// featureNames label the feature dimensions for reporting.
var featureNames = [mind.FeatureDimensions]string{
	"valence",
	"cognitive load",
	"urgency",
	"identity",
	"contradiction",
	"reinforcement",
	"relationship",
	"action",
}

// EmergingSignal is a proto-cluster: too sparse to be a pattern yet, dense
// enough to flag.
type EmergingSignal struct {
	Centroid  mind.FeatureVector `json:"centroid"`
	MemoryIDs []string           `json:"memory_ids"`

	// Confidence approaches 1 as the group nears full cluster density.
	Confidence float64 `json:"confidence"`

	// NearestPatternID names the closest existing pattern, when one is
	// reasonably close.
	NearestPatternID string `json:"nearest_pattern_id,omitempty"`
}

// Interference is a pair of strongly correlated patterns pulling in opposite
// emotional directions.
type Interference struct {
	PatternA    string  `json:"pattern_a"`
	PatternB    string  `json:"pattern_b"`
	Correlation float64 `json:"correlation"`
}

// Dynamics summarizes the pattern population after a run.
type Dynamics struct {
	TotalActive      int     `json:"total_active"`
	TotalDormant     int     `json:"total_dormant"`
	MeanStrength     float64 `json:"mean_strength"`
	MeanVelocity     float64 `json:"mean_velocity"`
	EntriesProcessed int     `json:"entries_processed"`
}

// Report is the pattern engine output for one owner.
type Report struct {
	OwnerID       string           `json:"owner_id"`
	Patterns      []*mind.Pattern  `json:"patterns"`
	Emerging      []EmergingSignal `json:"emerging,omitempty"`
	Interferences []Interference   `json:"interferences,omitempty"`
	Dynamics      Dynamics         `json:"dynamics"`
	Narrative     string           `json:"narrative"`
	GeneratedAt   time.Time        `json:"generated_at"`

	// Cached reports whether this report was served from the trigger cache
	// rather than computed in this call. Excluded from serialization so
	// cached and fresh copies of the same run compare equal.
	Cached bool `json:"-"`
}

// Engine is the pattern detection engine.
type Engine struct {
	store  storage.Driver
	logger *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a pattern engine over the given store.
func NewEngine(store storage.Driver, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Detect returns the owner's pattern report, recomputing only when a
// milestone was crossed since the last completed run (or when force is set).
func (e *Engine) Detect(ctx context.Context, ownerID string, force bool) (*Report, error) {
	count, err := e.store.CountMemories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("counting memories: %w", err)
	}

	cache, err := e.store.GetPatternCache(ctx, ownerID)
	if err != nil {
		var notFound storage.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading pattern cache: %w", err)
		}
		cache = &mind.PatternCache{OwnerID: ownerID}
	}

	if !force && !milestoneCrossed(cache.LastProcessedCount, count) && len(cache.Report) > 0 {
		return cachedReport(cache)
	}

	report, err := e.run(ctx, ownerID, cache, count)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// run executes a full detection pass and commits it through the cache CAS.
func (e *Engine) run(ctx context.Context, ownerID string, cache *mind.PatternCache, count int) (*Report, error) {
	now := e.now()
	entriesSince := count - cache.LastProcessedCount
	if entriesSince < 0 {
		entriesSince = 0
	}

	patterns, err := e.store.ListPatterns(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}

	// Decay first: every existing pattern loses strength in proportion to
	// the new entries processed, then reinforcement below can counteract it.
	for _, p := range patterns {
		p.Strength -= DecayPerEntry * float64(entriesSince)
		if p.Strength < 0 {
			p.Strength = 0
		}
	}

	newMemories, err := e.store.ListMemories(ctx, ownerID, storage.MemoryFilter{
		Since: cache.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("listing new memories: %w", err)
	}

	points := make([]mind.FeatureVector, len(newMemories))
	for i, m := range newMemories {
		points[i] = Features(m)
	}

	clustering := Cluster(points, Epsilon, MinPoints)

	var created []*mind.Pattern
	for _, cluster := range clustering.Clusters {
		centroid := Centroid(points, cluster)
		ids := make([]string, len(cluster))
		for i, idx := range cluster {
			ids[i] = newMemories[idx].ID
		}

		candidates := make([]*mind.Pattern, 0, len(patterns)+len(created))
		candidates = append(candidates, patterns...)
		candidates = append(candidates, created...)
		if p := bestMatch(candidates, centroid, MatchSimilarity); p != nil {
			reinforce(p, centroid, ids, now)
			continue
		}

		created = append(created, &mind.Pattern{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Label:          labelFor(centroid),
			Centroid:       centroid,
			Strength:       initialStrength(len(cluster)),
			Frequency:      len(cluster),
			Status:         mind.PatternActive,
			MemoryIDs:      ids,
			LastReinforced: now,
			CreatedAt:      now,
		})
	}

	all := make([]*mind.Pattern, 0, len(patterns)+len(created))
	all = append(all, patterns...)
	all = append(all, created...)
	mergeDuplicates(all)

	// Finalize lifecycle state and per-run dynamics.
	for _, p := range all {
		if p.Strength < DormancyThreshold {
			p.Status = mind.PatternDormant
		} else {
			p.Status = mind.PatternActive
		}
		p.RecordStrength(p.Strength)
	}

	report := &Report{
		OwnerID:       ownerID,
		Patterns:      activeByRank(all),
		Emerging:      e.emerging(points, clustering.Noise, newMemories, all),
		Interferences: interferences(all),
		Dynamics:      dynamics(all, entriesSince),
		GeneratedAt:   now,
	}
	report.Narrative = narrative(report)

	if err := e.persist(ctx, patterns, created, cache, count, report, now); err != nil {
		return nil, err
	}

	e.logger.Info("pattern detection ran",
		zap.String("owner_id", ownerID),
		zap.Int("memory_count", count),
		zap.Int("active_patterns", report.Dynamics.TotalActive),
		zap.Int("created", len(created)),
	)

	return report, nil
}

// persist writes patterns and commits the run through the cache CAS. A CAS
// conflict means a concurrent run won; its cached report is served instead.
func (e *Engine) persist(ctx context.Context, existing, created []*mind.Pattern, cache *mind.PatternCache, count int, report *Report, now time.Time) error {
	for _, p := range existing {
		if err := e.store.UpdatePattern(ctx, p); err != nil {
			return fmt.Errorf("updating pattern %s: %w", p.ID, err)
		}
	}
	for _, p := range created {
		if err := e.store.PutPattern(ctx, p); err != nil {
			return fmt.Errorf("storing pattern %s: %w", p.ID, err)
		}
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	err = e.store.CompareAndSwapCache(ctx, &mind.PatternCache{
		OwnerID:            cache.OwnerID,
		LastProcessedCount: count,
		Report:             raw,
		UpdatedAt:          now,
	}, cache.LastProcessedCount)
	if errors.Is(err, storage.ErrCacheConflict) {
		e.logger.Warn("pattern cache conflict, serving concurrent run",
			zap.String("owner_id", cache.OwnerID),
		)

		winner, getErr := e.store.GetPatternCache(ctx, cache.OwnerID)
		if getErr != nil {
			return fmt.Errorf("reloading pattern cache after conflict: %w", getErr)
		}
		won, decodeErr := cachedReport(winner)
		if decodeErr != nil {
			return decodeErr
		}
		*report = *won
		return nil
	}
	if err != nil {
		return fmt.Errorf("committing pattern cache: %w", err)
	}

	return nil
}

// emerging groups noise points into proto-clusters: pairs or more within the
// neighborhood radius, but below full cluster density.
func (e *Engine) emerging(points []mind.FeatureVector, noise []int, memories []*mind.Memory, patterns []*mind.Pattern) []EmergingSignal {
	if len(noise) < 2 {
		return nil
	}

	noisePoints := make([]mind.FeatureVector, len(noise))
	for i, idx := range noise {
		noisePoints[i] = points[idx]
	}

	sub := Cluster(noisePoints, Epsilon, 2)

	var signals []EmergingSignal
	for _, group := range sub.Clusters {
		if len(group) >= MinPoints {
			continue
		}

		centroid := Centroid(noisePoints, group)
		ids := make([]string, len(group))
		for i, gi := range group {
			ids[i] = memories[noise[gi]].ID
		}

		signal := EmergingSignal{
			Centroid:   centroid,
			MemoryIDs:  ids,
			Confidence: float64(len(group)) / float64(MinPoints),
		}
		if p := bestMatch(patterns, centroid, 0.7); p != nil {
			signal.NearestPatternID = p.ID
		}
		signals = append(signals, signal)
	}

	return signals
}

// milestoneCrossed reports whether any detection milestone lies in
// (last, current].
func milestoneCrossed(last, current int) bool {
	for _, m := range milestones {
		if last < m && current >= m {
			return true
		}
	}

	top := milestones[len(milestones)-1]
	if current <= top {
		return false
	}
	// Past the fixed list: re-run on every extendedInterval boundary.
	return current/extendedInterval > last/extendedInterval
}

func cachedReport(cache *mind.PatternCache) (*Report, error) {
	var report Report
	if err := json.Unmarshal(cache.Report, &report); err != nil {
		return nil, fmt.Errorf("decoding cached report: %w", err)
	}
	report.Cached = true
	return &report, nil
}

// bestMatch returns the pattern most similar to the centroid, if the
// similarity clears the floor.
func bestMatch(patterns []*mind.Pattern, centroid mind.FeatureVector, floor float64) *mind.Pattern {
	var best *mind.Pattern
	bestSim := floor
	for _, p := range patterns {
		if sim := centroid.Similarity(p.Centroid); sim >= bestSim {
			best = p
			bestSim = sim
		}
	}
	return best
}

// reinforce folds a fresh cluster into an existing pattern: bounded strength
// gain, frequency-weighted centroid update, possible revival from dormancy.
func reinforce(p *mind.Pattern, centroid mind.FeatureVector, ids []string, now time.Time) {
	p.Strength += ReinforcementRate
	if p.Strength > 1 {
		p.Strength = 1
	}

	total := float64(p.Frequency + len(ids))
	for d := range p.Centroid {
		p.Centroid[d] = (p.Centroid[d]*float64(p.Frequency) + centroid[d]*float64(len(ids))) / total
	}

	p.Frequency += len(ids)
	p.MemoryIDs = append(p.MemoryIDs, ids...)
	p.LastReinforced = now
}

// mergeDuplicates collapses near-identical patterns pairwise. The absorbed
// pattern is drained to zero strength rather than deleted, so its history
// survives as a dormant record.
func mergeDuplicates(patterns []*mind.Pattern) {
	for i := 0; i < len(patterns); i++ {
		a := patterns[i]
		if a.Strength == 0 {
			continue
		}
		for j := i + 1; j < len(patterns); j++ {
			b := patterns[j]
			if b.Strength == 0 {
				continue
			}
			if a.Centroid.Similarity(b.Centroid) < MergeSimilarity {
				continue
			}

			survivor, absorbed := a, b
			if b.Frequency > a.Frequency {
				survivor, absorbed = b, a
			}

			total := float64(survivor.Frequency + absorbed.Frequency)
			for d := range survivor.Centroid {
				survivor.Centroid[d] = (survivor.Centroid[d]*float64(survivor.Frequency) +
					absorbed.Centroid[d]*float64(absorbed.Frequency)) / total
			}
			survivor.Frequency += absorbed.Frequency
			survivor.MemoryIDs = append(survivor.MemoryIDs, absorbed.MemoryIDs...)
			survivor.Strength = math.Max(survivor.Strength, absorbed.Strength)
			absorbed.Strength = 0

			if absorbed == a {
				break
			}
		}
	}
}

// interferences finds active pattern pairs with strong feature correlation
// but opposing valence.
func interferences(patterns []*mind.Pattern) []Interference {
	var result []Interference
	for i := 0; i < len(patterns); i++ {
		a := patterns[i]
		if a.Status != mind.PatternActive {
			continue
		}
		for j := i + 1; j < len(patterns); j++ {
			b := patterns[j]
			if b.Status != mind.PatternActive {
				continue
			}
			if a.Centroid[mind.FeatureValence]*b.Centroid[mind.FeatureValence] >= 0 {
				continue
			}
			corr := a.Centroid.Correlation(b.Centroid)
			if math.Abs(corr) < InterferenceCorrelation {
				continue
			}
			result = append(result, Interference{
				PatternA:    a.ID,
				PatternB:    b.ID,
				Correlation: corr,
			})
		}
	}
	return result
}

// activeByRank returns active patterns sorted by descending rank, ties broken
// by id for stable output.
func activeByRank(patterns []*mind.Pattern) []*mind.Pattern {
	var active []*mind.Pattern
	for _, p := range patterns {
		if p.Status == mind.PatternActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		ri, rj := active[i].Rank(), active[j].Rank()
		if ri != rj {
			return ri > rj
		}
		return active[i].ID < active[j].ID
	})
	return active
}

func dynamics(patterns []*mind.Pattern, entriesSince int) Dynamics {
	d := Dynamics{EntriesProcessed: entriesSince}
	for _, p := range patterns {
		if p.Status == mind.PatternActive {
			d.TotalActive++
		} else {
			d.TotalDormant++
		}
		d.MeanStrength += p.Strength
		d.MeanVelocity += p.Velocity
	}
	if n := len(patterns); n > 0 {
		d.MeanStrength /= float64(n)
		d.MeanVelocity /= float64(n)
	}
	return d
}

// initialStrength seeds a new pattern's strength from its cluster size.
func initialStrength(size int) float64 {
	s := 0.4 + 0.05*float64(size)
	if s > 0.8 {
		s = 0.8
	}
	return s
}

// labelFor names a centroid after its two most pronounced dimensions.
func labelFor(centroid mind.FeatureVector) string {
	type dim struct {
		name  string
		value float64
	}

	dims := make([]dim, 0, mind.FeatureDimensions)
	for i, name := range featureNames {
		if i == mind.FeatureValence {
			if centroid[i] > 0 {
				name = "positive " + name
			} else if centroid[i] < 0 {
				name = "negative " + name
			}
		}
		dims = append(dims, dim{name: name, value: math.Abs(centroid[i])})
	}
	sort.SliceStable(dims, func(i, j int) bool {
		return dims[i].value > dims[j].value
	})

	if dims[0].value == 0 {
		return "diffuse"
	}
	if dims[1].value == 0 {
		return dims[0].name
	}
	return dims[0].name + " + " + dims[1].name
}

// narrative renders a short prose summary of the report.
func narrative(r *Report) string {
	if len(r.Patterns) == 0 {
		if len(r.Emerging) > 0 {
			return fmt.Sprintf("No established patterns yet, but %d emerging signal(s) are forming.", len(r.Emerging))
		}
		return "No behavioral patterns detected yet."
	}

	top := r.Patterns[0]
	trend := "holding steady"
	if top.Velocity > 0 {
		trend = "strengthening"
	} else if top.Velocity < 0 {
		trend = "fading"
	}

	s := fmt.Sprintf("%d active pattern(s); strongest is %q (strength %.2f, %s, seen %d times).",
		len(r.Patterns), top.Label, top.Strength, trend, top.Frequency)
	if len(r.Emerging) > 0 {
		s += fmt.Sprintf(" %d emerging signal(s) forming.", len(r.Emerging))
	}
	if len(r.Interferences) > 0 {
		s += fmt.Sprintf(" %d interference pair(s) pulling in opposite directions.", len(r.Interferences))
	}
	if r.Dynamics.TotalDormant > 0 {
		s += fmt.Sprintf(" %d dormant pattern(s) retained.", r.Dynamics.TotalDormant)
	}
	return s
}
