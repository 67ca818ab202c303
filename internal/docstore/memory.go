package docstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoc struct {
	data       Data
	createTime time.Time
	updateTime time.Time
}

// MemoryStore keeps documents in process memory. It backs tests and the
// "memory" backend.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	now         func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		now:         time.Now,
	}
}

// WithClock replaces the clock used for ServerTimestamp and write times.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) write(ref DocRef, data Data, merge bool) error {
	now := s.now()
	normalized, err := normalizeData(data, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[ref.Parent.Path()]
	if coll == nil {
		coll = make(map[string]*memoryDoc)
		s.collections[ref.Parent.Path()] = coll
	}
	doc, ok := coll[ref.ID]
	if !ok {
		coll[ref.ID] = &memoryDoc{data: normalized, createTime: now, updateTime: now}
		return nil
	}
	if merge {
		doc.data = mergeData(doc.data, normalized)
	} else {
		doc.data = normalized
	}
	doc.updateTime = now
	return nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, ref DocRef, data Data) error {
	return s.write(ref, data, false)
}

// Merge implements Store.
func (s *MemoryStore) Merge(_ context.Context, ref DocRef, data Data) error {
	return s.write(ref, data, true)
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, coll CollectionRef, data Data) (DocRef, error) {
	ref := coll.Doc(newAutoID())
	return ref, s.write(ref, data, false)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, ref DocRef) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[ref.Parent.Path()][ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	snap := doc.snapshot(ref)
	return &snap, nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, coll CollectionRef, q Query) ([]Snapshot, error) {
	s.mu.RLock()
	docs := make([]Snapshot, 0, len(s.collections[coll.Path()]))
	for id, doc := range s.collections[coll.Path()] {
		docs = append(docs, doc.snapshot(coll.Doc(id)))
	}
	s.mu.RUnlock()

	return applyQuery(docs, q), nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(coll CollectionRef) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[coll.Path()])
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (d *memoryDoc) snapshot(ref DocRef) Snapshot {
	// normalize copies, so callers cannot alias stored maps
	data, _ := normalizeData(d.data, d.updateTime)
	return Snapshot{Ref: ref, Data: data, CreateTime: d.createTime, UpdateTime: d.updateTime}
}

func newAutoID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
