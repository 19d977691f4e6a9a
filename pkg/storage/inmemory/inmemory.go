// Package inmemory implements storage.Driver with in-process maps. It backs
// tests and local development; all operations are safe for concurrent use.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	mu sync.RWMutex

	memories  map[string]*mind.Memory
	arcs      map[string]*mind.Arc
	patterns  map[string]*mind.Pattern
	caches    map[string]*mind.PatternCache
	snapshots map[string]*mind.Snapshot

	// children maps "ownerID/parentID" to the snapshot that claimed the
	// parent, enforcing the single-child chain rule.
	children map[string]string
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		memories:  make(map[string]*mind.Memory),
		arcs:      make(map[string]*mind.Arc),
		patterns:  make(map[string]*mind.Pattern),
		caches:    make(map[string]*mind.PatternCache),
		snapshots: make(map[string]*mind.Snapshot),
		children:  make(map[string]string),
	}
}

// PutMemory persists a new memory.
func (d *Driver) PutMemory(_ context.Context, m *mind.Memory) error {
	if m == nil {
		return errors.New("cannot store nil memory")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	clone := *m
	d.memories[m.ID] = &clone
	return nil
}

// GetMemory retrieves a memory by id.
func (d *Driver) GetMemory(_ context.Context, id string) (*mind.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.memories[id]
	if !ok {
		return nil, storage.NotFoundError{Entity: "memory", ID: id}
	}

	clone := *m
	return &clone, nil
}

// ListMemories returns an owner's memories matching the filter.
func (d *Driver) ListMemories(_ context.Context, ownerID string, f storage.MemoryFilter) ([]*mind.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*mind.Memory
	for _, m := range d.memories {
		if m.OwnerID != ownerID {
			continue
		}
		if !f.Since.IsZero() && !m.CreatedAt.After(f.Since) {
			continue
		}
		if f.MinGravity > 0 && m.GravityScore < f.MinGravity {
			continue
		}
		if f.Topic != "" && m.Topic != f.Topic {
			continue
		}
		if f.Emotion != "" && m.Emotion != f.Emotion {
			continue
		}
		if f.WithoutArc && m.ArcID != "" {
			continue
		}
		if f.ArcID != "" && m.ArcID != f.ArcID {
			continue
		}

		clone := *m
		result = append(result, &clone)
	}

	if f.Limit > 0 {
		sort.Slice(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
		if len(result) > f.Limit {
			result = result[:f.Limit]
		}
	} else {
		sort.Slice(result, func(i, j int) bool {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		})
	}

	return result, nil
}

// CountMemories returns an owner's total memory count.
func (d *Driver) CountMemories(_ context.Context, ownerID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, m := range d.memories {
		if m.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// SetMemoryArc assigns the arc back-reference on a memory.
func (d *Driver) SetMemoryArc(_ context.Context, memoryID, arcID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.memories[memoryID]
	if !ok {
		return storage.NotFoundError{Entity: "memory", ID: memoryID}
	}

	m.ArcID = arcID
	return nil
}

// PutArc persists a new arc.
func (d *Driver) PutArc(_ context.Context, a *mind.Arc) error {
	if a == nil {
		return errors.New("cannot store nil arc")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	clone := *a
	d.arcs[a.ID] = &clone
	return nil
}

// UpdateArc rewrites a mutated arc.
func (d *Driver) UpdateArc(_ context.Context, a *mind.Arc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.arcs[a.ID]; !ok {
		return storage.NotFoundError{Entity: "arc", ID: a.ID}
	}

	clone := *a
	d.arcs[a.ID] = &clone
	return nil
}

// ListArcs returns an owner's arcs with activity at or after activeSince.
func (d *Driver) ListArcs(_ context.Context, ownerID string, activeSince time.Time) ([]*mind.Arc, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*mind.Arc
	for _, a := range d.arcs {
		if a.OwnerID != ownerID {
			continue
		}
		if !activeSince.IsZero() && a.LastMemoryAt.Before(activeSince) {
			continue
		}

		clone := *a
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastMemoryAt.After(result[j].LastMemoryAt)
	})

	return result, nil
}

// PutPattern persists a new pattern.
func (d *Driver) PutPattern(_ context.Context, p *mind.Pattern) error {
	if p == nil {
		return errors.New("cannot store nil pattern")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	clone := clonePattern(p)
	d.patterns[p.ID] = clone
	return nil
}

// UpdatePattern rewrites a mutated pattern.
func (d *Driver) UpdatePattern(_ context.Context, p *mind.Pattern) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patterns[p.ID]; !ok {
		return storage.NotFoundError{Entity: "pattern", ID: p.ID}
	}

	d.patterns[p.ID] = clonePattern(p)
	return nil
}

// ListPatterns returns all of an owner's patterns, dormant included.
func (d *Driver) ListPatterns(_ context.Context, ownerID string) ([]*mind.Pattern, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*mind.Pattern
	for _, p := range d.patterns {
		if p.OwnerID != ownerID {
			continue
		}
		result = append(result, clonePattern(p))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// GetPatternCache returns the owner's trigger-cache row.
func (d *Driver) GetPatternCache(_ context.Context, ownerID string) (*mind.PatternCache, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.caches[ownerID]
	if !ok {
		return nil, storage.NotFoundError{Entity: "pattern cache", ID: ownerID}
	}

	clone := *c
	clone.Report = append([]byte(nil), c.Report...)
	return &clone, nil
}

// CompareAndSwapCache upserts the cache row if the stored count still equals
// expected. A missing row matches expected == 0.
func (d *Driver) CompareAndSwapCache(_ context.Context, cache *mind.PatternCache, expected int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.caches[cache.OwnerID]
	if ok && current.LastProcessedCount != expected {
		return storage.ErrCacheConflict
	}
	if !ok && expected != 0 {
		return storage.ErrCacheConflict
	}

	clone := *cache
	clone.Report = append([]byte(nil), cache.Report...)
	d.caches[cache.OwnerID] = &clone
	return nil
}

// PutSnapshot appends a snapshot to the owner's chain, enforcing the
// single-child-per-parent rule.
func (d *Driver) PutSnapshot(_ context.Context, s *mind.Snapshot) error {
	if s == nil {
		return errors.New("cannot store nil snapshot")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := s.OwnerID + "/" + s.PreviousSnapshotID
	if _, claimed := d.children[key]; claimed {
		return storage.ErrSnapshotConflict
	}

	clone := *s
	d.snapshots[s.ID] = &clone
	d.children[key] = s.ID
	return nil
}

// CurrentSnapshot returns the owner's chain head.
func (d *Driver) CurrentSnapshot(_ context.Context, ownerID string) (*mind.Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// The head is the snapshot no other snapshot references as parent.
	referenced := make(map[string]bool)
	for _, s := range d.snapshots {
		if s.OwnerID == ownerID && s.PreviousSnapshotID != "" {
			referenced[s.PreviousSnapshotID] = true
		}
	}

	for _, s := range d.snapshots {
		if s.OwnerID == ownerID && !referenced[s.ID] {
			clone := *s
			return &clone, nil
		}
	}

	return nil, storage.NotFoundError{Entity: "snapshot", ID: ownerID}
}

// ListSnapshots returns an owner's snapshots, oldest first.
func (d *Driver) ListSnapshots(_ context.Context, ownerID string) ([]*mind.Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*mind.Snapshot
	for _, s := range d.snapshots {
		if s.OwnerID != ownerID {
			continue
		}
		clone := *s
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func clonePattern(p *mind.Pattern) *mind.Pattern {
	clone := *p
	clone.MemoryIDs = append([]string(nil), p.MemoryIDs...)
	clone.StrengthHistory = append([]float64(nil), p.StrengthHistory...)
	return &clone
}
