package storage

import "errors"

// NotFoundError is returned when an entity doesn't exist in the store.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}

	return e.Entity + " not found: " + e.ID
}

var (
	// ErrSnapshotConflict is returned when a conditional snapshot write
	// loses the race: another snapshot already chains off the same parent.
	ErrSnapshotConflict = errors.New("snapshot parent already has a child")

	// ErrCacheConflict is returned when a compare-and-swap on the pattern
	// cache row fails because a concurrent run updated it first.
	ErrCacheConflict = errors.New("pattern cache was updated concurrently")
)
