// Package live keeps local, read-only copies of store collections current by
// consuming store subscriptions.
package live

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/wichananm65/jai-storefront/internal/store"
)

// Decoder turns a stored document into a typed item. Documents that fail to
// decode are left out of the local copy.
type Decoder[T any] func(store.Document) (T, error)

// Backoff controls how quickly a dropped subscription is re-established.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: 200 * time.Millisecond, Max: 30 * time.Second}
}

// Collection is the synchronized copy of one store collection. Run is the
// only writer; every other method only reads.
type Collection[T any] struct {
	query   store.Query
	decode  Decoder[T]
	logger  *slog.Logger
	backoff Backoff

	mu       sync.RWMutex
	items    []T
	readAt   time.Time
	watchers map[chan []T]struct{}
	stopped  bool

	ready     chan struct{}
	readyOnce sync.Once
}

func NewCollection[T any](q store.Query, decode Decoder[T], logger *slog.Logger) *Collection[T] {
	return &Collection[T]{
		query:    q,
		decode:   decode,
		logger:   logger.With("component", "live", "collection", q.Collection),
		backoff:  DefaultBackoff(),
		items:    []T{},
		watchers: make(map[chan []T]struct{}),
		ready:    make(chan struct{}),
	}
}

// WithBackoff overrides the resubscribe backoff.
func (c *Collection[T]) WithBackoff(b Backoff) *Collection[T] {
	c.backoff = b
	return c
}

// Run subscribes to the collection and applies every snapshot until ctx is
// cancelled. A closed or failed subscription is retried with exponential
// backoff; the last applied snapshot stays visible meanwhile. Watcher
// channels are closed when Run returns.
func (c *Collection[T]) Run(ctx context.Context, s store.Store) error {
	defer c.closeWatchers()
	delay := c.backoff.Initial
	for {
		updates, err := s.Subscribe(ctx, c.query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("subscribe failed", "error", err, "retry_in", delay)
		} else {
			received := false
			for snap := range updates {
				c.apply(snap)
				received = true
			}
			if ctx.Err() != nil {
				return nil
			}
			if received {
				delay = c.backoff.Initial
			}
			c.logger.Warn("subscription closed", "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(jitter(delay)):
		}
		delay *= 2
		if delay > c.backoff.Max {
			delay = c.backoff.Max
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

func (c *Collection[T]) apply(snap store.Snapshot) {
	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		item, err := c.decode(doc)
		if err != nil {
			c.logger.Warn("skipping document", "id", doc.ID, "error", err)
			continue
		}
		items = append(items, item)
	}

	c.mu.Lock()
	c.items = items
	c.readAt = snap.ReadAt
	for w := range c.watchers {
		offer(w, items)
	}
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.ready) })
}

// Snapshot returns a copy of the current items.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the first item matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if pred(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// ReadAt is the store time of the snapshot currently held.
func (c *Collection[T]) ReadAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readAt
}

// Ready is closed once the first snapshot has been applied.
func (c *Collection[T]) Ready() <-chan struct{} {
	return c.ready
}

// Watch returns a channel that receives the item list after every applied
// snapshot. Slow watchers only get the latest list. The channel is closed
// once Run has returned. stop must be called to release the watcher.
func (c *Collection[T]) Watch() (updates <-chan []T, stop func()) {
	ch := make(chan []T, 1)
	c.mu.Lock()
	if c.stopped {
		close(ch)
	} else {
		c.watchers[ch] = struct{}{}
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Collection[T]) closeWatchers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for w := range c.watchers {
		close(w)
		delete(c.watchers, w)
	}
}

func offer[T any](ch chan []T, items []T) {
	for {
		select {
		case ch <- items:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
