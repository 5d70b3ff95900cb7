// Package docstore is the document-store boundary: collections of schemaless
// documents addressed by ID, equality queries on a single field, and batched
// writes capped at the backend's per-commit operation limit.
//
// Three backends are provided: MongoStore, GormStore (a JSON documents table
// on PostgreSQL or SQLite) and MemoryStore for tests and local runs.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultMaxBatchOps is the per-commit operation ceiling when a backend
// does not specify its own
const DefaultMaxBatchOps = 500

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("docstore: document not found")
	// ErrBatchFull is returned when a batch already holds MaxBatchOps operations
	ErrBatchFull = errors.New("docstore: batch operation limit reached")
	// ErrBatchCommitted is returned when a committed batch is reused
	ErrBatchCommitted = errors.New("docstore: batch already committed")
	// ErrEmptyCollection is returned when no collection name is given
	ErrEmptyCollection = errors.New("docstore: collection name cannot be empty")
)

// Document is the field map of a stored document. The document ID is not
// part of the map.
type Document map[string]any

// Snapshot is a document read back with its ID
type Snapshot struct {
	ID   string
	Data Document
}

// Store is the document-store collaborator used by repositories and the
// import pipeline
type Store interface {
	// Create inserts a document under a generated ID and returns the ID
	Create(ctx context.Context, collection string, doc Document) (string, error)
	// Get reads one document, returning ErrNotFound when it does not exist
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	// Update merges fields into an existing document
	Update(ctx context.Context, collection, id string, fields Document) error
	// FindWhere returns every document whose field equals value
	FindWhere(ctx context.Context, collection, field string, value any) ([]Snapshot, error)
	// NewBatch starts an atomic group of writes
	NewBatch() Batch
	// MaxBatchOps is the hard limit of operations one batch may carry
	MaxBatchOps() int
	Close(ctx context.Context) error
}

// Pinger is implemented by stores backed by a remote server
type Pinger interface {
	Ping(ctx context.Context) error
}

// Batch collects writes that commit together
type Batch interface {
	// Set queues a new document and returns its ID, which is valid once
	// Commit succeeds
	Set(collection string, doc Document) (string, error)
	Len() int
	Commit(ctx context.Context) error
}

// NewID generates a document ID
func NewID() string {
	return uuid.NewString()
}

type pendingWrite struct {
	collection string
	id         string
	doc        Document
}

// batchBuffer holds queued writes for backends that commit them in one go
type batchBuffer struct {
	limit     int
	writes    []pendingWrite
	committed bool
}

func newBatchBuffer(limit int) batchBuffer {
	if limit <= 0 {
		limit = DefaultMaxBatchOps
	}
	return batchBuffer{limit: limit}
}

func (b *batchBuffer) add(collection string, doc Document) (string, error) {
	if b.committed {
		return "", ErrBatchCommitted
	}
	if collection == "" {
		return "", ErrEmptyCollection
	}
	if len(b.writes) >= b.limit {
		return "", fmt.Errorf("%w (%d)", ErrBatchFull, b.limit)
	}
	id := NewID()
	b.writes = append(b.writes, pendingWrite{collection: collection, id: id, doc: copyDocument(doc)})
	return id, nil
}

// Len returns the number of queued operations
func (b *batchBuffer) Len() int {
	return len(b.writes)
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
