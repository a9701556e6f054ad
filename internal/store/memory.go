package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for local runs and tests. Writes
// are broadcast to subscribers while the store lock is held, so every
// subscriber observes changes in write order.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	subs        map[string]map[*memSub]struct{}
	now         func() time.Time
}

type memCollection struct {
	order []string
	docs  map[string]json.RawMessage
}

type memSub struct {
	query Query
	ch    chan Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		subs:        make(map[string]map[*memSub]struct{}),
		now:         time.Now,
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memSub{query: q, ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	if s.subs[q.Collection] == nil {
		s.subs[q.Collection] = make(map[*memSub]struct{})
	}
	s.subs[q.Collection][sub] = struct{}{}
	offer(sub.ch, s.snapshotLocked(q))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[q.Collection], sub)
		close(sub.ch)
		s.mu.Unlock()
	}()
	return sub.ch, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := marshalFields(fields)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(collection)
	c.order = append(c.order, id)
	c.docs[id] = data
	s.broadcastLocked(collection)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(collection)
	current, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &merged); err != nil {
		return err
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		merged[k] = b
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	c.docs[id] = data
	s.broadcastLocked(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.broadcastLocked(collection)
	return nil
}

// List returns the current contents of a collection without subscribing.
func (s *MemoryStore) List(q Query) []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(q).Documents
}

func (s *MemoryStore) collectionLocked(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]json.RawMessage)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) snapshotLocked(q Query) Snapshot {
	c := s.collectionLocked(q.Collection)
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Document{ID: id, Fields: c.docs[id]})
	}
	sortDocuments(docs, q)
	return Snapshot{Collection: q.Collection, Documents: docs, ReadAt: s.now()}
}

func (s *MemoryStore) broadcastLocked(collection string) {
	for sub := range s.subs[collection] {
		offer(sub.ch, s.snapshotLocked(sub.query))
	}
}
