package docstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	order       map[string][]string
	maxBatchOps int
	failAfter   int
	writes      int
	failErr     error
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithMemoryMaxBatchOps overrides the batch operation ceiling
func WithMemoryMaxBatchOps(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxBatchOps = n
	}
}

// WithMemoryFailAfter makes every write after the first n successful ones
// fail with err. Batches count as one write.
func WithMemoryFailAfter(n int, err error) MemoryOption {
	return func(s *MemoryStore) {
		s.failAfter = n
		s.failErr = err
	}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]Document),
		order:       make(map[string][]string),
		maxBatchOps: DefaultMaxBatchOps,
		failAfter:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store
func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite(); err != nil {
		return "", err
	}
	id := NewID()
	s.put(collection, id, doc)
	return id, nil
}

// Put stores a document under a caller-chosen ID, for seeding records that
// other systems create
func (s *MemoryStore) Put(collection, id string, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, doc)
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Snapshot{ID: id, Data: copyDocument(doc)}, nil
}

// Update implements Store
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	if err := s.checkWrite(); err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// FindWhere implements Store. Results come back in insertion order.
func (s *MemoryStore) FindWhere(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0)
	for _, id := range s.order[collection] {
		doc := s.collections[collection][id]
		if v, ok := doc[field]; ok && reflect.DeepEqual(v, value) {
			out = append(out, Snapshot{ID: id, Data: copyDocument(doc)})
		}
	}
	return out, nil
}

// NewBatch implements Store
func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s, buf: newBatchBuffer(s.maxBatchOps)}
}

// MaxBatchOps implements Store
func (s *MemoryStore) MaxBatchOps() int {
	return s.maxBatchOps
}

// Close implements Store
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// All returns every document in a collection in insertion order
func (s *MemoryStore) All(collection string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order[collection]))
	for _, id := range s.order[collection] {
		out = append(out, Snapshot{ID: id, Data: copyDocument(s.collections[collection][id])})
	}
	return out
}

// Collections lists collection names that hold documents
func (s *MemoryStore) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemoryStore) put(collection, id string, doc Document) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]Document)
	}
	if _, exists := s.collections[collection][id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	s.collections[collection][id] = copyDocument(doc)
}

// checkWrite must be called with the write lock held
func (s *MemoryStore) checkWrite() error {
	if s.failAfter >= 0 && s.writes >= s.failAfter {
		return s.failErr
	}
	s.writes++
	return nil
}

type memoryBatch struct {
	store *MemoryStore
	buf   batchBuffer
}

func (b *memoryBatch) Set(collection string, doc Document) (string, error) {
	return b.buf.add(collection, doc)
}

func (b *memoryBatch) Len() int {
	return b.buf.Len()
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.buf.committed {
		return ErrBatchCommitted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if err := b.store.checkWrite(); err != nil {
		return err
	}
	for _, w := range b.buf.writes {
		b.store.put(w.collection, w.id, w.doc)
	}
	b.buf.committed = true
	return nil
}
