// Package dispatch is the write-side entry point of the pipeline. It
// validates and persists new memories, then fans out cascades: synchronous
// arc fusion for high-gravity memories, asynchronous pattern analysis and
// reflection flags through a worker pool, and a cascade event on the stream.
//
// The primary store write is the only fatal step. Embedding and every cascade
// are best-effort: their failures are logged and recorded, never rolled back.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/embeddings"
	"github.com/papercomputeco/psyche/pkg/eventstream"
	"github.com/papercomputeco/psyche/pkg/fusion"
	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
	"github.com/papercomputeco/psyche/pkg/vector"
)

// FusionGravity is the adjusted gravity at or above which arc fusion runs
// synchronously during dispatch.
const FusionGravity = 0.7

// Input is a dispatch request.
type Input struct {
	OwnerID string `json:"owner_id"`
	Content string `json:"content"`

	// Gravity is the caller-supplied base salience in [0,1].
	Gravity float64 `json:"gravity"`

	// System marks system-generated memories, whose gravity is halved.
	System bool `json:"system,omitempty"`

	Summary            string   `json:"summary,omitempty"`
	Emotion            string   `json:"emotion,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	SessionID          string   `json:"session_id,omitempty"`
	ThreadID           string   `json:"thread_id,omitempty"`
	IdentityAnchor     bool     `json:"identity_anchor,omitempty"`
	Contradiction      bool     `json:"contradiction,omitempty"`
	RelationshipWeight float64  `json:"relationship_weight,omitempty"`
}

// Result reports a completed dispatch.
type Result struct {
	// Memory is the persisted record.
	Memory *mind.Memory `json:"memory"`

	// Embedded reports whether an embedding was attached.
	Embedded bool `json:"embedded"`

	// Cascades names the side effects that ran or were scheduled.
	Cascades []string `json:"cascades,omitempty"`

	// Fusion is the synchronous fusion decision, when fusion ran.
	Fusion *fusion.Decision `json:"fusion,omitempty"`
}

// Dispatcher validates, persists, and cascades new memories.
type Dispatcher struct {
	store    storage.Driver
	embedder embeddings.Embedder
	vectors  vector.Driver
	fusion   *fusion.Engine
	pool     *Pool
	events   eventstream.Publisher
	logger   *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Config wires a Dispatcher. Store, Fusion, Events, Pool, and Logger are
// required; Embedder and Vectors are optional and disable similarity search
// when absent.
type Config struct {
	Store    storage.Driver
	Embedder embeddings.Embedder
	Vectors  vector.Driver
	Fusion   *fusion.Engine
	Pool     *Pool
	Events   eventstream.Publisher
	Logger   *zap.Logger
}

// NewDispatcher creates a dispatcher from the given configuration.
func NewDispatcher(c *Config) *Dispatcher {
	return &Dispatcher{
		store:    c.Store,
		embedder: c.Embedder,
		vectors:  c.Vectors,
		fusion:   c.Fusion,
		pool:     c.Pool,
		events:   c.Events,
		logger:   c.Logger,
		now:      time.Now,
	}
}

// Dispatch persists a new memory and fans out its cascades.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	m := d.build(in)

	// Embedding failures are non-fatal: the memory is stored without a
	// vector and excluded from similarity search.
	if d.embedder != nil {
		embedding, err := d.embedder.Embed(ctx, m.Content)
		if err != nil {
			d.logger.Warn("embedding failed, storing memory without vector",
				zap.String("memory_id", m.ID),
				zap.Error(err),
			)
		} else {
			m.Embedding = embedding
		}
	}

	if err := d.store.PutMemory(ctx, m); err != nil {
		return nil, mind.DependencyError(fmt.Sprintf("storing memory: %v", err), "")
	}

	if m.HasEmbedding() && d.vectors != nil {
		err := d.vectors.Add(ctx, []vector.Document{{
			ID:        m.ID,
			OwnerID:   m.OwnerID,
			Embedding: m.Embedding,
		}})
		if err != nil {
			d.logger.Warn("vector index write failed",
				zap.String("memory_id", m.ID),
				zap.Error(err),
			)
		}
	}

	result := &Result{
		Memory:   m,
		Embedded: m.HasEmbedding(),
	}
	d.cascade(ctx, m, result)

	d.logger.Info("memory dispatched",
		zap.String("memory_id", m.ID),
		zap.String("owner_id", m.OwnerID),
		zap.Float64("gravity", m.GravityScore),
		zap.Strings("cascades", result.Cascades),
	)

	return result, nil
}

// build constructs the memory record, applying type classification and the
// system gravity halving.
func (d *Dispatcher) build(in Input) *mind.Memory {
	memoryType := mind.MemoryTypeUser
	gravity := in.Gravity
	if in.System {
		memoryType = mind.MemoryTypeSystem
		gravity *= mind.SystemGravityFactor
	}

	return &mind.Memory{
		ID:                 uuid.NewString(),
		OwnerID:            in.OwnerID,
		Content:            in.Content,
		Summary:            in.Summary,
		GravityScore:       gravity,
		Emotion:            in.Emotion,
		Topic:              in.Topic,
		MemoryType:         memoryType,
		Tags:               in.Tags,
		SessionID:          in.SessionID,
		ThreadID:           in.ThreadID,
		IdentityAnchor:     in.IdentityAnchor,
		Contradiction:      in.Contradiction,
		RelationshipWeight: in.RelationshipWeight,
		CreatedAt:          d.now(),
	}
}

// cascade runs the post-write side effects. Nothing here can fail the call.
func (d *Dispatcher) cascade(ctx context.Context, m *mind.Memory, result *Result) {
	if m.GravityScore >= FusionGravity {
		decision, err := d.fusion.Fuse(ctx, m)
		if err != nil {
			d.logger.Warn("fusion cascade failed",
				zap.String("memory_id", m.ID),
				zap.Error(err),
			)
		} else {
			result.Fusion = decision
		}
		result.Cascades = append(result.Cascades, "fusion")
	}

	if m.EmotionalWeight() {
		if d.pool.Enqueue(Job{Kind: JobPatternAnalysis, OwnerID: m.OwnerID, MemoryID: m.ID}) {
			result.Cascades = append(result.Cascades, "pattern_analysis")
		}
	}

	if m.IdentityAnchor {
		if d.pool.Enqueue(Job{Kind: JobReflection, OwnerID: m.OwnerID, MemoryID: m.ID}) {
			result.Cascades = append(result.Cascades, "reflection")
		}
	}

	err := d.events.PublishCascade(ctx, &eventstream.CascadeEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeMemoryDispatched,
		EventID:       uuid.NewString(),
		EmittedAt:     d.now(),
		OwnerID:       m.OwnerID,
		MemoryID:      m.ID,
		Cascades:      result.Cascades,
	})
	if err != nil {
		d.logger.Warn("cascade event publish failed",
			zap.String("memory_id", m.ID),
			zap.Error(err),
		)
	}
}

func validate(in Input) error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return mind.ValidationError("owner id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return mind.ValidationError("content is required")
	}
	if in.Gravity < 0 || in.Gravity > 1 {
		return mind.ValidationError("gravity must be in [0,1]")
	}
	return nil
}
