// Package sqldriver holds the shared SQL implementation of storage.Driver.
// The sqlite and postgres packages are thin wrappers that open the
// connection, create the schema, and configure dialect behavior here.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

// SQLDriver implements storage.Driver over a database/sql connection.
type SQLDriver struct {
	// DB is the open database handle. The wrapper package owns schema
	// creation and connection lifecycle configuration.
	DB *sql.DB

	// Numbered switches '?' placeholders to '$1'-style for PostgreSQL.
	Numbered bool

	// IsUniqueViolation reports whether an error is a unique-constraint
	// violation in the wrapper's dialect. Used for the snapshot chain guard.
	IsUniqueViolation func(error) bool
}

// q rewrites '?' placeholders to numbered '$n' form when required.
func (d *SQLDriver) q(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// PutMemory persists a new memory.
func (d *SQLDriver) PutMemory(ctx context.Context, m *mind.Memory) error {
	embedding, err := marshalJSON(m.Embedding)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	tags, err := marshalJSON(m.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = d.DB.ExecContext(ctx, d.q(`
		INSERT INTO memories (
			id, owner_id, content, summary, gravity_score, emotion, topic,
			embedding, arc_id, memory_type, tags, session_id, thread_id,
			identity_anchor, contradiction, relationship_weight, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.OwnerID, m.Content, m.Summary, m.GravityScore, m.Emotion, m.Topic,
		embedding, m.ArcID, string(m.MemoryType), tags, m.SessionID, m.ThreadID,
		m.IdentityAnchor, m.Contradiction, m.RelationshipWeight, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}

	return nil
}

const memoryColumns = `id, owner_id, content, summary, gravity_score, emotion, topic,
	embedding, arc_id, memory_type, tags, session_id, thread_id,
	identity_anchor, contradiction, relationship_weight, created_at`

func scanMemory(row interface{ Scan(...any) error }) (*mind.Memory, error) {
	var m mind.Memory
	var embedding, tags sql.NullString
	var memoryType string

	err := row.Scan(
		&m.ID, &m.OwnerID, &m.Content, &m.Summary, &m.GravityScore, &m.Emotion, &m.Topic,
		&embedding, &m.ArcID, &memoryType, &tags, &m.SessionID, &m.ThreadID,
		&m.IdentityAnchor, &m.Contradiction, &m.RelationshipWeight, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.MemoryType = mind.MemoryType(memoryType)
	if err := unmarshalJSON(embedding, &m.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshaling embedding: %w", err)
	}
	if err := unmarshalJSON(tags, &m.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}

	return &m, nil
}

// GetMemory retrieves a memory by id.
func (d *SQLDriver) GetMemory(ctx context.Context, id string) (*mind.Memory, error) {
	row := d.DB.QueryRowContext(ctx,
		d.q(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`), id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Entity: "memory", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting memory: %w", err)
	}

	return m, nil
}

// ListMemories returns an owner's memories matching the filter.
func (d *SQLDriver) ListMemories(ctx context.Context, ownerID string, f storage.MemoryFilter) ([]*mind.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE owner_id = ?`
	args := []any{ownerID}

	if !f.Since.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, f.Since)
	}
	if f.MinGravity > 0 {
		query += ` AND gravity_score >= ?`
		args = append(args, f.MinGravity)
	}
	if f.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, f.Topic)
	}
	if f.Emotion != "" {
		query += ` AND emotion = ?`
		args = append(args, f.Emotion)
	}
	if f.WithoutArc {
		query += ` AND arc_id = ''`
	}
	if f.ArcID != "" {
		query += ` AND arc_id = ?`
		args = append(args, f.ArcID)
	}

	if f.Limit > 0 {
		query += ` ORDER BY created_at DESC LIMIT ?`
		args = append(args, f.Limit)
	} else {
		query += ` ORDER BY created_at ASC`
	}

	rows, err := d.DB.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var result []*mind.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		result = append(result, m)
	}

	return result, rows.Err()
}

// CountMemories returns an owner's total memory count.
func (d *SQLDriver) CountMemories(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := d.DB.QueryRowContext(ctx,
		d.q(`SELECT COUNT(*) FROM memories WHERE owner_id = ?`), ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return count, nil
}

// SetMemoryArc assigns the arc back-reference on a memory.
func (d *SQLDriver) SetMemoryArc(ctx context.Context, memoryID, arcID string) error {
	result, err := d.DB.ExecContext(ctx,
		d.q(`UPDATE memories SET arc_id = ? WHERE id = ?`), arcID, memoryID)
	if err != nil {
		return fmt.Errorf("setting memory arc: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.NotFoundError{Entity: "memory", ID: memoryID}
	}

	return nil
}

// PutArc persists a new arc.
func (d *SQLDriver) PutArc(ctx context.Context, a *mind.Arc) error {
	_, err := d.DB.ExecContext(ctx, d.q(`
		INSERT INTO arcs (
			id, owner_id, name, emotional_tone, gravity_center, memory_count,
			first_memory_at, last_memory_at, velocity, direction
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.OwnerID, a.Name, a.EmotionalTone, a.GravityCenter, a.MemoryCount,
		a.FirstMemoryAt, a.LastMemoryAt, a.Growth.Velocity, a.Growth.Direction,
	)
	if err != nil {
		return fmt.Errorf("inserting arc: %w", err)
	}
	return nil
}

// UpdateArc rewrites a mutated arc.
func (d *SQLDriver) UpdateArc(ctx context.Context, a *mind.Arc) error {
	result, err := d.DB.ExecContext(ctx, d.q(`
		UPDATE arcs SET
			name = ?, emotional_tone = ?, gravity_center = ?, memory_count = ?,
			first_memory_at = ?, last_memory_at = ?, velocity = ?, direction = ?
		WHERE id = ?`),
		a.Name, a.EmotionalTone, a.GravityCenter, a.MemoryCount,
		a.FirstMemoryAt, a.LastMemoryAt, a.Growth.Velocity, a.Growth.Direction,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating arc: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.NotFoundError{Entity: "arc", ID: a.ID}
	}

	return nil
}

// ListArcs returns an owner's arcs with activity at or after activeSince.
func (d *SQLDriver) ListArcs(ctx context.Context, ownerID string, activeSince time.Time) ([]*mind.Arc, error) {
	query := `
		SELECT id, owner_id, name, emotional_tone, gravity_center, memory_count,
			first_memory_at, last_memory_at, velocity, direction
		FROM arcs WHERE owner_id = ?`
	args := []any{ownerID}

	if !activeSince.IsZero() {
		query += ` AND last_memory_at >= ?`
		args = append(args, activeSince)
	}
	query += ` ORDER BY last_memory_at DESC`

	rows, err := d.DB.QueryContext(ctx, d.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing arcs: %w", err)
	}
	defer rows.Close()

	var result []*mind.Arc
	for rows.Next() {
		var a mind.Arc
		err := rows.Scan(
			&a.ID, &a.OwnerID, &a.Name, &a.EmotionalTone, &a.GravityCenter, &a.MemoryCount,
			&a.FirstMemoryAt, &a.LastMemoryAt, &a.Growth.Velocity, &a.Growth.Direction,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning arc: %w", err)
		}
		result = append(result, &a)
	}

	return result, rows.Err()
}

// PutPattern persists a new pattern.
func (d *SQLDriver) PutPattern(ctx context.Context, p *mind.Pattern) error {
	return d.writePattern(ctx, p, false)
}

// UpdatePattern rewrites a mutated pattern.
func (d *SQLDriver) UpdatePattern(ctx context.Context, p *mind.Pattern) error {
	return d.writePattern(ctx, p, true)
}

func (d *SQLDriver) writePattern(ctx context.Context, p *mind.Pattern, update bool) error {
	centroid, err := marshalJSON(p.Centroid)
	if err != nil {
		return fmt.Errorf("marshaling centroid: %w", err)
	}
	memoryIDs, err := marshalJSON(p.MemoryIDs)
	if err != nil {
		return fmt.Errorf("marshaling memory ids: %w", err)
	}
	history, err := marshalJSON(p.StrengthHistory)
	if err != nil {
		return fmt.Errorf("marshaling strength history: %w", err)
	}

	if update {
		result, err := d.DB.ExecContext(ctx, d.q(`
			UPDATE patterns SET
				label = ?, centroid = ?, strength = ?, frequency = ?,
				velocity = ?, acceleration = ?, status = ?, memory_ids = ?,
				strength_history = ?, last_reinforced = ?
			WHERE id = ?`),
			p.Label, centroid, p.Strength, p.Frequency,
			p.Velocity, p.Acceleration, string(p.Status), memoryIDs,
			history, p.LastReinforced, p.ID,
		)
		if err != nil {
			return fmt.Errorf("updating pattern: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return storage.NotFoundError{Entity: "pattern", ID: p.ID}
		}
		return nil
	}

	_, err = d.DB.ExecContext(ctx, d.q(`
		INSERT INTO patterns (
			id, owner_id, label, centroid, strength, frequency, velocity,
			acceleration, status, memory_ids, strength_history, last_reinforced, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OwnerID, p.Label, centroid, p.Strength, p.Frequency, p.Velocity,
		p.Acceleration, string(p.Status), memoryIDs, history, p.LastReinforced, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting pattern: %w", err)
	}
	return nil
}

// ListPatterns returns all of an owner's patterns, dormant included.
func (d *SQLDriver) ListPatterns(ctx context.Context, ownerID string) ([]*mind.Pattern, error) {
	rows, err := d.DB.QueryContext(ctx, d.q(`
		SELECT id, owner_id, label, centroid, strength, frequency, velocity,
			acceleration, status, memory_ids, strength_history, last_reinforced, created_at
		FROM patterns WHERE owner_id = ? ORDER BY created_at ASC`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	defer rows.Close()

	var result []*mind.Pattern
	for rows.Next() {
		var p mind.Pattern
		var centroid string
		var memoryIDs, history sql.NullString
		var status string
		var lastReinforced sql.NullTime

		err := rows.Scan(
			&p.ID, &p.OwnerID, &p.Label, &centroid, &p.Strength, &p.Frequency,
			&p.Velocity, &p.Acceleration, &status, &memoryIDs, &history,
			&lastReinforced, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}

		p.Status = mind.PatternStatus(status)
		if err := json.Unmarshal([]byte(centroid), &p.Centroid); err != nil {
			return nil, fmt.Errorf("unmarshaling centroid: %w", err)
		}
		if err := unmarshalJSON(memoryIDs, &p.MemoryIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling memory ids: %w", err)
		}
		if err := unmarshalJSON(history, &p.StrengthHistory); err != nil {
			return nil, fmt.Errorf("unmarshaling strength history: %w", err)
		}
		if lastReinforced.Valid {
			p.LastReinforced = lastReinforced.Time
		}

		result = append(result, &p)
	}

	return result, rows.Err()
}

// GetPatternCache returns the owner's trigger-cache row.
func (d *SQLDriver) GetPatternCache(ctx context.Context, ownerID string) (*mind.PatternCache, error) {
	var c mind.PatternCache
	err := d.DB.QueryRowContext(ctx, d.q(`
		SELECT owner_id, last_processed_count, report, updated_at
		FROM pattern_caches WHERE owner_id = ?`), ownerID,
	).Scan(&c.OwnerID, &c.LastProcessedCount, &c.Report, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Entity: "pattern cache", ID: ownerID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting pattern cache: %w", err)
	}

	return &c, nil
}

// CompareAndSwapCache upserts the cache row only if the stored count still
// equals expected. A missing row matches expected == 0.
func (d *SQLDriver) CompareAndSwapCache(ctx context.Context, cache *mind.PatternCache, expected int) error {
	if expected == 0 {
		result, err := d.DB.ExecContext(ctx, d.q(`
			INSERT INTO pattern_caches (owner_id, last_processed_count, report, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(owner_id) DO UPDATE SET
				last_processed_count = excluded.last_processed_count,
				report = excluded.report,
				updated_at = excluded.updated_at
			WHERE pattern_caches.last_processed_count = 0`),
			cache.OwnerID, cache.LastProcessedCount, cache.Report, cache.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting pattern cache: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return storage.ErrCacheConflict
		}
		return nil
	}

	result, err := d.DB.ExecContext(ctx, d.q(`
		UPDATE pattern_caches SET last_processed_count = ?, report = ?, updated_at = ?
		WHERE owner_id = ? AND last_processed_count = ?`),
		cache.LastProcessedCount, cache.Report, cache.UpdatedAt,
		cache.OwnerID, expected,
	)
	if err != nil {
		return fmt.Errorf("updating pattern cache: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrCacheConflict
	}

	return nil
}

// PutSnapshot appends a snapshot to the owner's chain. The unique index on
// (owner_id, previous_snapshot_id) is the single-writer guard.
func (d *SQLDriver) PutSnapshot(ctx context.Context, s *mind.Snapshot) error {
	vec, err := marshalJSON(s.Vector)
	if err != nil {
		return fmt.Errorf("marshaling vector: %w", err)
	}
	health, err := marshalJSON(s.Health)
	if err != nil {
		return fmt.Errorf("marshaling health: %w", err)
	}
	delta, err := marshalJSON(s.Delta)
	if err != nil {
		return fmt.Errorf("marshaling delta: %w", err)
	}
	regressed, err := marshalJSON(s.RegressedDimensions)
	if err != nil {
		return fmt.Errorf("marshaling regressed dimensions: %w", err)
	}

	_, err = d.DB.ExecContext(ctx, d.q(`
		INSERT INTO snapshots (
			id, owner_id, version, entry_count, vector, health, delta,
			regression_detected, regressed_dimensions, previous_snapshot_id,
			fingerprint, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.OwnerID, s.Version, s.EntryCount, vec, health, delta,
		s.RegressionDetected, regressed, s.PreviousSnapshotID,
		s.Fingerprint, s.CreatedAt,
	)
	if err != nil {
		if d.IsUniqueViolation != nil && d.IsUniqueViolation(err) {
			return storage.ErrSnapshotConflict
		}
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	return nil
}

const snapshotColumns = `id, owner_id, version, entry_count, vector, health, delta,
	regression_detected, regressed_dimensions, previous_snapshot_id, fingerprint, created_at`

func scanSnapshot(row interface{ Scan(...any) error }) (*mind.Snapshot, error) {
	var s mind.Snapshot
	var vec, health, delta string
	var regressed sql.NullString

	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Version, &s.EntryCount, &vec, &health, &delta,
		&s.RegressionDetected, &regressed, &s.PreviousSnapshotID,
		&s.Fingerprint, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(vec), &s.Vector); err != nil {
		return nil, fmt.Errorf("unmarshaling vector: %w", err)
	}
	if err := json.Unmarshal([]byte(health), &s.Health); err != nil {
		return nil, fmt.Errorf("unmarshaling health: %w", err)
	}
	if err := json.Unmarshal([]byte(delta), &s.Delta); err != nil {
		return nil, fmt.Errorf("unmarshaling delta: %w", err)
	}
	if err := unmarshalJSON(regressed, &s.RegressedDimensions); err != nil {
		return nil, fmt.Errorf("unmarshaling regressed dimensions: %w", err)
	}

	return &s, nil
}

// CurrentSnapshot returns the owner's chain head: the snapshot no other
// snapshot references as its parent.
func (d *SQLDriver) CurrentSnapshot(ctx context.Context, ownerID string) (*mind.Snapshot, error) {
	row := d.DB.QueryRowContext(ctx, d.q(`
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE owner_id = ? AND id NOT IN (
			SELECT previous_snapshot_id FROM snapshots
			WHERE owner_id = ? AND previous_snapshot_id != ''
		)
		LIMIT 1`), ownerID, ownerID)

	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Entity: "snapshot", ID: ownerID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting current snapshot: %w", err)
	}

	return s, nil
}

// ListSnapshots returns an owner's snapshots, oldest first.
func (d *SQLDriver) ListSnapshots(ctx context.Context, ownerID string) ([]*mind.Snapshot, error) {
	rows, err := d.DB.QueryContext(ctx, d.q(`
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE owner_id = ? ORDER BY created_at ASC`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var result []*mind.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		result = append(result, s)
	}

	return result, rows.Err()
}

// Close closes the underlying database connection.
func (d *SQLDriver) Close() error {
	return d.DB.Close()
}
