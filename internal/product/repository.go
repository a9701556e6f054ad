package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/wichananm65/jai-storefront/internal/store"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Repository writes catalogue documents. Reads go through the synchronized
// catalogue, never through the repository.
type Repository interface {
	Create(ctx context.Context, p Product) (Product, error)
	// Reset replaces the whole catalogue with the provided list (used for seeding)
	Reset(ctx context.Context, products []Product) ([]Product, error)
}

// StoreRepository persists products in the remote document store.
type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Create(ctx context.Context, p Product) (Product, error) {
	id, err := r.store.Create(ctx, Collection, p.fields())
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	return p, nil
}

func (r *StoreRepository) Reset(ctx context.Context, products []Product) ([]Product, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := r.store.Subscribe(subCtx, store.Query{Collection: Collection})
	if err != nil {
		return nil, err
	}
	var current store.Snapshot
	select {
	case snap, ok := <-updates:
		if !ok {
			return nil, fmt.Errorf("read %s: subscription closed", Collection)
		}
		current = snap
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for _, doc := range current.Documents {
		if err := r.store.Delete(ctx, Collection, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("delete product %s: %w", doc.ID, err)
		}
	}

	out := make([]Product, 0, len(products))
	for _, p := range products {
		created, err := r.Create(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}
