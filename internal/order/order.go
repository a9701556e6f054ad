package order

import (
	"crypto/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/jai-storefront/internal/cart"
	"github.com/wichananm65/jai-storefront/internal/store"
)

// Collection is the store collection holding placed orders.
const Collection = "orders"

// DateLayout is ISO-8601 with milliseconds. Dates are always written in UTC
// so the string form sorts chronologically.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
)

// CanTransitionTo reports whether s may move to next. The only allowed
// transition is Processing to Shipped.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusProcessing && next == StatusShipped
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Order is immutable once written except for Status.
type Order struct {
	ID        string          `json:"id,omitempty"`
	Reference string          `json:"reference"`
	Customer  Customer        `json:"customer"`
	Items     []cart.Line     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Date      string          `json:"date"`
	Status    Status          `json:"status"`
}

// Receipt is what the customer gets back after a successful submission.
type Receipt struct {
	OrderID   string          `json:"orderId"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
	Date      string          `json:"date"`
}

func FromDocument(d store.Document) (Order, error) {
	var o Order
	if err := d.Decode(&o); err != nil {
		return Order{}, err
	}
	o.ID = d.ID
	if o.Items == nil {
		o.Items = []cart.Line{}
	}
	return o, nil
}

// fields is the document written on creation. The id is assigned by the
// store and never stored inside the document.
func (o Order) fields() Order {
	o.ID = ""
	return o
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference returns a human-readable order number such as JAI-7KQ2M9XD.
func NewReference() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = referenceAlphabet[int(b[i])%len(referenceAlphabet)]
	}
	return "JAI-" + string(b)
}
