package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wichananm65/jai-storefront/internal/cart"
	"github.com/wichananm65/jai-storefront/internal/events"
	"github.com/wichananm65/jai-storefront/internal/validation"
)

// Carts hands out a locked cart for checkout and clears it only when place
// returns nil.
type Carts interface {
	Checkout(ctx context.Context, id string, place func(context.Context, cart.Cart) error) error
}

// View is the synchronized orders collection, newest first.
type View interface {
	Snapshot() []Order
	Find(pred func(Order) bool) (Order, bool)
}

type Service struct {
	repo         Repository
	carts        Carts
	view         View
	publisher    events.Publisher
	logger       *slog.Logger
	now          func() time.Time
	newReference func() string
}

func NewService(repo Repository, carts Carts, view View, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		carts:        carts,
		view:         view,
		publisher:    publisher,
		logger:       logger.With("component", "order"),
		now:          time.Now,
		newReference: NewReference,
	}
}

// Submit turns the cart into a Processing order. Nothing is written and the
// cart is left as it was when validation or the store write fails.
func (s *Service) Submit(ctx context.Context, cartID string, customer Customer) (Receipt, error) {
	customer = Customer{
		Name:    strings.TrimSpace(customer.Name),
		Phone:   strings.TrimSpace(customer.Phone),
		Address: strings.TrimSpace(customer.Address),
	}

	var placed Order
	err := s.carts.Checkout(ctx, cartID, func(ctx context.Context, c cart.Cart) error {
		errs := validation.Errors{}
		errs.Required("name", customer.Name)
		errs.Required("phone", customer.Phone)
		errs.Required("address", customer.Address)
		if c.Len() == 0 {
			errs["items"] = "cart is empty"
		}
		if err := errs.Err(); err != nil {
			return err
		}

		o := Order{
			Reference: s.newReference(),
			Customer:  customer,
			Items:     c.Items(),
			Total:     c.Total(),
			Date:      FormatDate(s.now()),
			Status:    StatusProcessing,
		}
		id, err := s.repo.Create(ctx, o)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		o.ID = id
		placed = o
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.logger.Info("order placed", "order_id", placed.ID, "reference", placed.Reference, "total", placed.Total.String())
	s.publish(ctx, events.Event{
		Type:      events.OrderPlaced,
		OrderID:   placed.ID,
		Reference: placed.Reference,
		Total:     placed.Total.String(),
	})

	return Receipt{
		OrderID:   placed.ID,
		Reference: placed.Reference,
		Total:     placed.Total,
		Date:      placed.Date,
	}, nil
}

// MarkShipped moves an order to Shipped. An order the synchronized view
// already shows as Shipped is left alone.
func (s *Service) MarkShipped(ctx context.Context, id string) error {
	if o, ok := s.view.Find(func(o Order) bool { return o.ID == id }); ok && !o.Status.CanTransitionTo(StatusShipped) {
		return nil
	}
	if err := s.repo.SetStatus(ctx, id, StatusShipped); err != nil {
		return err
	}
	s.logger.Info("order shipped", "order_id", id)
	s.publish(ctx, events.Event{Type: events.OrderShipped, OrderID: id})
	return nil
}

func (s *Service) List() []Order {
	return s.view.Snapshot()
}

func (s *Service) Dashboard() Dashboard {
	return ComputeDashboard(s.view.Snapshot())
}

// publish is best effort: the order is already persisted.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", "type", e.Type, "order_id", e.OrderID, "error", err)
	}
}
