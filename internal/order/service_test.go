package order

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/jai-storefront/internal/cart"
	"github.com/wichananm65/jai-storefront/internal/events"
	"github.com/wichananm65/jai-storefront/internal/live"
	"github.com/wichananm65/jai-storefront/internal/product"
	"github.com/wichananm65/jai-storefront/internal/store"
	"github.com/wichananm65/jai-storefront/internal/validation"
)

// countingStore records writes and can be told to fail them.
type countingStore struct {
	store.Store
	mu        sync.Mutex
	creates   int
	updates   int
	createErr error
}

func (s *countingStore) Create(ctx context.Context, collection string, fields any) (string, error) {
	s.mu.Lock()
	s.creates++
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Store.Create(ctx, collection, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *countingStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

type catalogue map[string]product.Product

func (c catalogue) GetByID(id string) (product.Product, error) {
	p, ok := c[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *countingStore
	carts     *cart.Service
	orders    *live.Collection[Order]
	service   *Service
	publisher *recordingPublisher
}

var fixedNow = time.Date(2026, 5, 4, 9, 30, 15, 123000000, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	cs := &countingStore{Store: mem}
	logger := slog.Default()

	products := catalogue{
		"p1": {ID: "p1", Name: "Overcoat", Category: "Men", Price: decimal.NewFromInt(100)},
		"p2": {ID: "p2", Name: "Slip Dress", Category: "Women", Price: decimal.NewFromInt(250)},
	}
	carts := cart.NewService(cart.NewInMemoryRepository(), products, logger)

	orders := live.NewCollection(store.Query{Collection: Collection, OrderBy: "date", Descending: true}, FromDocument, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go orders.Run(ctx, mem)
	select {
	case <-orders.Ready():
	case <-time.After(time.Second):
		t.Fatal("orders not ready")
	}

	pub := &recordingPublisher{}
	svc := NewService(NewStoreRepository(store.NewBreaker(cs, store.DefaultBreakerSettings())), carts, orders, pub, logger)
	svc.now = func() time.Time { return fixedNow }
	svc.newReference = func() string { return "JAI-TEST0001" }
	return &fixture{store: cs, carts: carts, orders: orders, service: svc, publisher: pub}
}

func (f *fixture) cartWith(t *testing.T, productIDs ...string) string {
	t.Helper()
	ctx := context.Background()
	c, err := f.carts.Open(ctx)
	require.NoError(t, err)
	for _, id := range productIDs {
		_, err := f.carts.AddItem(ctx, c.ID, id)
		require.NoError(t, err)
	}
	return c.ID
}

var contact = Customer{Name: "Nok", Phone: "0812345678", Address: "1 Sukhumvit Rd, Bangkok"}

func TestSubmit_PlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, "p1", "p2")

	receipt, err := f.service.Submit(ctx, cartID, contact)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, "JAI-TEST0001", receipt.Reference)
	assert.Equal(t, "350", receipt.Total.String())
	assert.Equal(t, "2026-05-04T09:30:15.123Z", receipt.Date)

	c, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)
	assert.True(t, c.Total().IsZero())
	assert.Empty(t, c.Lines)

	require.Eventually(t, func() bool { return len(f.service.List()) == 1 }, time.Second, 5*time.Millisecond)
	placed := f.service.List()[0]
	assert.Equal(t, receipt.OrderID, placed.ID)
	assert.Equal(t, StatusProcessing, placed.Status)
	assert.Len(t, placed.Items, 2)
	assert.Equal(t, "350", placed.Total.String())
	assert.Equal(t, contact, placed.Customer)

	assert.Equal(t, []string{events.OrderPlaced}, f.publisher.types())
}

func TestSubmit_MissingFieldLeavesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, "p1", "p2")

	_, err := f.service.Submit(ctx, cartID, Customer{Name: "Nok", Phone: "  ", Address: "Bangkok"})
	var verr validation.Errors
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr, "phone")
	assert.NotContains(t, verr, "name")

	creates, _ := f.store.counts()
	assert.Zero(t, creates)
	c, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)
	assert.Empty(t, f.publisher.types())
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)
	cartID := f.cartWith(t)

	_, err := f.service.Submit(context.Background(), cartID, contact)
	var verr validation.Errors
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "cart is empty", verr["items"])

	creates, _ := f.store.counts()
	assert.Zero(t, creates)
}

func TestSubmit_StoreUnavailableKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, "p1")
	f.store.createErr = errors.New("connection refused")

	_, err := f.service.Submit(ctx, cartID, contact)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	c, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)

	// retry once the store is back
	f.store.mu.Lock()
	f.store.createErr = nil
	f.store.mu.Unlock()
	_, err = f.service.Submit(ctx, cartID, contact)
	require.NoError(t, err)
}

func TestSubmit_UnknownCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Submit(context.Background(), "nope", contact)
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestMarkShipped_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receipt, err := f.service.Submit(ctx, f.cartWith(t, "p1"), contact)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.service.List()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.service.MarkShipped(ctx, receipt.OrderID))
	require.Eventually(t, func() bool {
		return f.service.List()[0].Status == StatusShipped
	}, time.Second, 5*time.Millisecond)
	_, updates := f.store.counts()
	assert.Equal(t, 1, updates)

	require.NoError(t, f.service.MarkShipped(ctx, receipt.OrderID))
	_, updates = f.store.counts()
	assert.Equal(t, 1, updates)
	assert.Equal(t, StatusShipped, f.service.List()[0].Status)
	assert.Equal(t, []string{events.OrderPlaced, events.OrderShipped}, f.publisher.types())
}

func TestMarkShipped_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	err := f.service.MarkShipped(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DashboardFollowsView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.service.Submit(ctx, f.cartWith(t, "p1"), contact)
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.cartWith(t, "p2"), contact)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.service.List()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.service.MarkShipped(ctx, first.OrderID))

	require.Eventually(t, func() bool { return f.service.Dashboard().PendingCount == 1 }, time.Second, 5*time.Millisecond)
	d := f.service.Dashboard()
	assert.Equal(t, "350", d.Revenue.String())
	assert.Equal(t, 2, d.OrderCount)
}

func TestNewReference(t *testing.T) {
	ref := NewReference()
	require.True(t, strings.HasPrefix(ref, "JAI-"))
	assert.Len(t, ref, len("JAI-")+8)
	for _, r := range strings.TrimPrefix(ref, "JAI-") {
		assert.Contains(t, referenceAlphabet, string(r))
	}
}
