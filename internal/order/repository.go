package order

import (
	"context"
	"errors"

	"github.com/wichananm65/jai-storefront/internal/store"
)

var ErrNotFound = errors.New("order not found")

// Repository writes order documents. Reads go through the synchronized
// orders collection.
type Repository interface {
	Create(ctx context.Context, o Order) (string, error)
	SetStatus(ctx context.Context, id string, status Status) error
}

type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Create(ctx context.Context, o Order) (string, error) {
	return r.store.Create(ctx, Collection, o.fields())
}

func (r *StoreRepository) SetStatus(ctx context.Context, id string, status Status) error {
	err := r.store.Update(ctx, Collection, id, map[string]any{"status": status})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
