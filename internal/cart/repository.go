package cart

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LockTTL is how long a cart lock survives without being released.
const LockTTL = 30 * time.Second

var (
	ErrNotFound     = errors.New("cart not found")
	ErrLineNotFound = errors.New("cart line not found")
	ErrCartBusy     = errors.New("cart is being updated")
)

// Repository stores cart sessions. Lock is a try-lock: it fails with
// ErrCartBusy instead of waiting when the cart is already held.
type Repository interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

// InMemoryRepository is used for tests and single-instance runs.
type InMemoryRepository struct {
	mu    sync.Mutex
	carts map[string]Cart
	locks map[string]struct{}
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		carts: make(map[string]Cart),
		locks: make(map[string]struct{}),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Lines = append([]Line{}, c.Lines...)
	return &c, nil
}

func (r *InMemoryRepository) Save(_ context.Context, c *Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *c
	stored.Lines = append([]Line{}, c.Lines...)
	r.carts[c.ID] = stored
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[id]; !ok {
		return ErrNotFound
	}
	delete(r.carts, id)
	return nil
}

func (r *InMemoryRepository) Lock(_ context.Context, id string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locks[id]; held {
		return nil, ErrCartBusy
	}
	r.locks[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.locks, id)
			r.mu.Unlock()
		})
	}, nil
}
