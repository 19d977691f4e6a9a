// Package storage
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// MemoryFilter narrows owner-scoped memory queries. Zero values are ignored.
type MemoryFilter struct {
	// Since keeps only memories created strictly after the given time.
	Since time.Time

	// MinGravity keeps only memories at or above the given gravity.
	MinGravity float64

	// Topic and Emotion filter by exact label.
	Topic   string
	Emotion string

	// WithoutArc keeps only memories not yet assigned to an arc.
	WithoutArc bool

	// ArcID keeps only members of the given arc.
	ArcID string

	// Limit caps the number of results; zero means no cap. Results are
	// ordered newest first when Limit is set, oldest first otherwise.
	Limit int
}

// Driver is the store gateway for the four pipeline entities. All queries are
// owner-scoped; writes are append-mostly: only the fields named on the
// entity types (arc recentering, pattern reinforcement, memory arc
// back-reference, the pattern cache row) are mutable.
type Driver interface {
	// PutMemory persists a new memory. Memories are immutable once written.
	PutMemory(ctx context.Context, m *mind.Memory) error

	// GetMemory retrieves a memory by id.
	GetMemory(ctx context.Context, id string) (*mind.Memory, error)

	// ListMemories returns an owner's memories matching the filter.
	ListMemories(ctx context.Context, ownerID string, f MemoryFilter) ([]*mind.Memory, error)

	// CountMemories returns an owner's total memory count.
	CountMemories(ctx context.Context, ownerID string) (int, error)

	// SetMemoryArc assigns the arc back-reference on a memory. This is the
	// only mutable field of a stored memory.
	SetMemoryArc(ctx context.Context, memoryID, arcID string) error

	// PutArc persists a new arc.
	PutArc(ctx context.Context, a *mind.Arc) error

	// UpdateArc rewrites a mutated arc (recentering, retagging on merge).
	UpdateArc(ctx context.Context, a *mind.Arc) error

	// ListArcs returns an owner's arcs with activity at or after
	// activeSince. The zero time returns all arcs.
	ListArcs(ctx context.Context, ownerID string, activeSince time.Time) ([]*mind.Arc, error)

	// PutPattern persists a new pattern.
	PutPattern(ctx context.Context, p *mind.Pattern) error

	// UpdatePattern rewrites a mutated pattern (decay, reinforcement, merge).
	UpdatePattern(ctx context.Context, p *mind.Pattern) error

	// ListPatterns returns all of an owner's patterns, dormant included.
	ListPatterns(ctx context.Context, ownerID string) ([]*mind.Pattern, error)

	// GetPatternCache returns the owner's trigger-cache row, or a
	// NotFoundError when the owner has never completed a run.
	GetPatternCache(ctx context.Context, ownerID string) (*mind.PatternCache, error)

	// CompareAndSwapCache upserts the owner's cache row only if the stored
	// LastProcessedCount still equals expected (0 matches a missing row).
	// Returns ErrCacheConflict when a concurrent run won the race.
	CompareAndSwapCache(ctx context.Context, cache *mind.PatternCache, expected int) error

	// PutSnapshot appends a snapshot to the owner's chain. The write is
	// conditional: if another snapshot already references the same parent,
	// ErrSnapshotConflict is returned and nothing is written.
	PutSnapshot(ctx context.Context, s *mind.Snapshot) error

	// CurrentSnapshot returns the owner's chain head, or a NotFoundError
	// when the owner has no snapshots.
	CurrentSnapshot(ctx context.Context, ownerID string) (*mind.Snapshot, error)

	// ListSnapshots returns an owner's snapshots, oldest first.
	ListSnapshots(ctx context.Context, ownerID string) ([]*mind.Snapshot, error)

	// Close closes the store and releases any resources.
	Close() error
}
