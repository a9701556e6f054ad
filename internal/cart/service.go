package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wichananm65/jai-storefront/internal/product"
)

// checkoutTimeout bounds the place step of a checkout so it finishes while
// the cart lock is still held.
const checkoutTimeout = LockTTL * 2 / 3

// ProductLookup resolves a product id against the synchronized catalogue.
type ProductLookup interface {
	GetByID(id string) (product.Product, error)
}

// Service orchestrates cart operations. Every mutation holds the cart lock
// for its duration.
type Service struct {
	repo     Repository
	products ProductLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, products ProductLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: products,
		logger:   logger.With("component", "cart"),
		now:      time.Now,
	}
}

// Open starts an empty cart session.
func (s *Service) Open(ctx context.Context) (*Cart, error) {
	c := New(uuid.NewString())
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.repo.Get(ctx, id)
}

// AddItem appends a snapshot of the current catalogue entry for productID.
func (s *Service) AddItem(ctx context.Context, id, productID string) (*Cart, error) {
	p, err := s.products.GetByID(productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Add(p)
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, id string, index int) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		_, err := c.Remove(index)
		return err
	})
}

func (s *Service) Clear(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// Checkout hands a copy of the cart to place while holding the cart lock.
// The cart is cleared only when place succeeds; a failure to persist the
// cleared cart after that is logged and not returned, because the order
// already exists.
func (s *Service) Checkout(ctx context.Context, id string, place func(context.Context, Cart) error) error {
	unlock, err := s.repo.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	snapshot := *c
	snapshot.Lines = c.Items()
	placeCtx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()
	if err := place(placeCtx, snapshot); err != nil {
		return err
	}

	c.Clear()
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, c); err != nil {
		s.logger.Error("clear cart after checkout failed", "cart_id", id, "error", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	unlock, err := s.repo.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
