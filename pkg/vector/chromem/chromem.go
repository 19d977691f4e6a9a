// Package chromem provides an embedded, pure-Go vector driver backed by
// chromem-go. Each owner gets its own collection for namespace isolation.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/vector"
)

// Driver implements vector.Driver using chromem-go.
type Driver struct {
	db     *chromemgo.DB
	logger *zap.Logger

	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
}

// Config holds configuration for the chromem driver.
type Config struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path string
}

// NewDriver creates a new chromem-backed vector driver.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	var db *chromemgo.DB
	if c.Path == "" {
		db = chromemgo.NewDB()
	} else {
		var err error
		db, err = chromemgo.NewPersistentDB(c.Path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db: %v", vector.ErrConnection, err)
		}
	}

	logger.Info("chromem vector driver initialized",
		zap.String("path", c.Path),
	)

	return &Driver{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromemgo.Collection),
	}, nil
}

func (d *Driver) collection(ownerID string) (*chromemgo.Collection, error) {
	d.mu.RLock()
	col, ok := d.collections[ownerID]
	d.mu.RUnlock()
	if ok {
		return col, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if col, ok := d.collections[ownerID]; ok {
		return col, nil
	}

	name := "owner_" + ownerID
	if ownerID == "" {
		name = "global"
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := d.db.GetOrCreateCollection(name, nil, func(_ context.Context, _ string) ([]float32, error) {
		return nil, fmt.Errorf("embedding func not configured: embeddings must be provided")
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection for owner %s: %w", ownerID, err)
	}

	d.collections[ownerID] = col
	return col, nil
}

// Add stores documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		col, err := d.collection(doc.OwnerID)
		if err != nil {
			return err
		}

		err = col.AddDocument(ctx, chromemgo.Document{
			ID:        doc.ID,
			Embedding: doc.Embedding,
			Content:   doc.ID,
			Metadata:  map[string]string{"owner_id": doc.OwnerID},
		})
		if err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}

	d.logger.Debug("added documents to chromem",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK most similar documents within an owner's collection.
func (d *Driver) Query(ctx context.Context, ownerID string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	col, err := d.collection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	out := make([]vector.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, vector.QueryResult{
			Document: vector.Document{
				ID:        r.ID,
				OwnerID:   ownerID,
				Embedding: r.Embedding,
			},
			Score: r.Similarity,
		})
	}

	return out, nil
}

// Get retrieves documents by their IDs, searching all owner collections.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var docs []vector.Document
	for ownerID, col := range d.collections {
		for _, id := range ids {
			doc, err := col.GetByID(ctx, id)
			if err != nil {
				continue
			}
			docs = append(docs, vector.Document{
				ID:        doc.ID,
				OwnerID:   ownerID,
				Embedding: doc.Embedding,
			})
		}
	}

	return docs, nil
}

// Delete removes documents by their IDs from all owner collections.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, col := range d.collections {
		if err := col.Delete(ctx, nil, nil, ids...); err != nil {
			return fmt.Errorf("deleting from chromem: %w", err)
		}
	}

	return nil
}

// Close is a no-op; chromem persists on write.
func (d *Driver) Close() error {
	return nil
}
