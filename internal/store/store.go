package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrUnavailable   = errors.New("store unavailable")
	ErrInvalidFields = errors.New("document fields must be a JSON object")
)

// Document is a stored record tagged with its store-assigned identifier.
// Fields holds the JSON object that was written, without the identifier.
type Document struct {
	ID     string
	Fields json.RawMessage
}

// Decode unmarshals the document fields into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Fields, v)
}

// Snapshot is the complete contents of a collection as of ReadAt.
type Snapshot struct {
	Collection string
	Documents  []Document
	ReadAt     time.Time
}

// Query selects a collection and an optional top-level field to order by.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
}

// Store is the remote document store. Subscribe pushes a full snapshot on
// every change to the collection until ctx is cancelled, then closes the
// channel. A subscriber that falls behind only ever sees the latest snapshot.
type Store interface {
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error)
	Create(ctx context.Context, collection string, fields any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

func marshalFields(fields any) (json.RawMessage, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		return nil, ErrInvalidFields
	}
	return b, nil
}

// offer replaces whatever is pending in ch with s. ch must have capacity 1
// and a single sender at a time.
func offer(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// sortDocuments orders docs by the query's field. Numbers compare
// numerically, everything else by its JSON text. Documents missing the
// field sort last; ties keep insertion order.
func sortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	keys := make([]any, len(docs))
	for i, d := range docs {
		var m map[string]any
		if err := json.Unmarshal(d.Fields, &m); err == nil {
			keys[i] = m[q.OrderBy]
		}
	}
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka == nil || kb == nil {
			return ka != nil
		}
		c := compareValues(ka, kb)
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]Document, len(docs))
	for i, j := range idx {
		sorted[i] = docs[j]
	}
	copy(docs, sorted)
}

func compareValues(a, b any) int {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
