package product

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/jai-storefront/internal/store"
)

// Collection is the store collection holding the catalogue.
const Collection = "products"

var ErrInvalidPrice = errors.New("price is not a number")

// Product is a catalogue item as held in the synchronized catalogue.
// Price is stored as a decimal string; numbers are accepted on read.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
}

// NewProduct is the admin "add product" payload.
type NewProduct struct {
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Price    *decimal.Decimal `json:"price"`
	Image    string           `json:"image,omitempty"`
}

type document struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    json.RawMessage `json:"price"`
	Image    string          `json:"image"`
}

// FromDocument decodes a catalogue document. A missing or non-numeric price
// is an error, so such documents never reach the catalogue or a cart.
func FromDocument(d store.Document) (Product, error) {
	var doc document
	if err := d.Decode(&doc); err != nil {
		return Product{}, err
	}
	price, err := ParsePrice(doc.Price)
	if err != nil {
		return Product{}, err
	}
	return Product{
		ID:       d.ID,
		Name:     doc.Name,
		Category: doc.Category,
		Price:    price,
		Image:    doc.Image,
	}, nil
}

// ParsePrice accepts a JSON number or a JSON string holding a number.
func ParsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, ErrInvalidPrice
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, ErrInvalidPrice
		}
		text = strings.TrimSpace(s)
	}
	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	return price, nil
}

func (p Product) fields() map[string]any {
	return map[string]any{
		"name":     p.Name,
		"category": p.Category,
		"price":    p.Price.String(),
		"image":    p.Image,
	}
}

// SampleCatalogue is the catalogue loaded by the seed command.
func SampleCatalogue() []NewProduct {
	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return []NewProduct{
		{Name: "Obsidian Wool Overcoat", Category: "Men", Price: price("18900")},
		{Name: "Gilded Silk Slip Dress", Category: "Women", Price: price("14500")},
		{Name: "Linen Camp Shirt", Category: "Men", Price: price("4200")},
		{Name: "Pleated Satin Midi Skirt", Category: "Women", Price: price("6800")},
	}
}
