// Package vector provides interfaces and implementations for vector storage
// used by memory similarity search.
package vector

import "context"

// Document represents a stored memory with its embedding.
type Document struct {
	// ID is the memory id this document corresponds to.
	ID string

	// OwnerID scopes the document to a single owner. Queries never cross
	// owner boundaries.
	OwnerID string

	// Embedding is the vector representation of the memory content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of memory embeddings.
type Driver interface {
	// Add stores documents with their embeddings. If a document with the
	// same ID already exists, implementers should update it.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding
	// within a single owner's documents.
	Query(ctx context.Context, ownerID string, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
