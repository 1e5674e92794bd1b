package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a fully in-memory Store. It is the reference semantics for
// the contract and the backend unit tests run against.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	subscribers *subscriberSet

	// now is swappable so tests can pin the commit clock.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		subscribers: newSubscriberSet(),
		now:         time.Now,
	}
}

// SetClock overrides the commit-time clock. Test use only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) ServerTimestamp() interface{} {
	return serverTimestamp{}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = copyData(doc.Data)
	return doc, nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters []Filter, orderBy *Order, limit int) ([]Document, error) {
	s.mu.RLock()
	var results []Document
	for _, doc := range s.collections[collection] {
		if matches(doc, filters) {
			doc.Data = copyData(doc.Data)
			results = append(results, doc)
		}
	}
	s.mu.RUnlock()

	sortDocs(results, orderBy)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Subscribe(collection string, filters []Filter, fn ChangeFunc) Subscription {
	return s.subscribers.add(collection, filters, fn)
}

func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

type batchOp struct {
	kind       string // "set", "update", "delete"
	collection string
	id         string
	data       map[string]interface{}
}

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
	done  bool
}

func (b *memoryBatch) Set(doc Document) {
	b.ops = append(b.ops, batchOp{kind: "set", collection: doc.Collection, id: doc.ID, data: doc.Data})
}

func (b *memoryBatch) Update(collection, id string, fields map[string]interface{}) {
	b.ops = append(b.ops, batchOp{kind: "update", collection: collection, id: id, data: fields})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", collection: collection, id: id})
}

// Commit applies every accumulated operation or none. Updates and deletes of
// missing documents fail the whole batch with ErrConflict before any state
// changes, which is what gives supersession its lost-update guard.
func (b *memoryBatch) Commit(_ context.Context) error {
	if b.done {
		return fmt.Errorf("batch already committed")
	}
	b.done = true

	s := b.store
	s.mu.Lock()

	for _, op := range b.ops {
		if op.kind == "set" {
			continue
		}
		if _, ok := s.collections[op.collection][op.id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s %s/%s: %w", op.kind, op.collection, op.id, ErrConflict)
		}
	}

	now := s.now()
	var changed []Document
	removed := make(map[string][]string)

	for _, op := range b.ops {
		if s.collections[op.collection] == nil {
			s.collections[op.collection] = make(map[string]Document)
		}
		switch op.kind {
		case "set":
			doc := Document{
				Collection: op.collection,
				ID:         op.id,
				Data:       resolveValues(copyData(op.data), now),
				UpdatedAt:  now,
			}
			s.collections[op.collection][op.id] = doc
			changed = append(changed, doc)
		case "update":
			doc := s.collections[op.collection][op.id]
			doc.Data = copyData(doc.Data)
			for k, v := range resolveValues(op.data, now) {
				doc.Data[k] = v
			}
			doc.UpdatedAt = now
			s.collections[op.collection][op.id] = doc
			changed = append(changed, doc)
		case "delete":
			delete(s.collections[op.collection], op.id)
			removed[op.collection] = append(removed[op.collection], op.id)
		}
	}

	s.mu.Unlock()

	s.subscribers.notify(changed, removed)
	return nil
}
