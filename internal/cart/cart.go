package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/jai-storefront/internal/product"
)

// Line is a by-value copy of a product taken when it was added. Catalogue
// changes after that point never reach the line.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
}

func LineOf(p product.Product) Line {
	return Line{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		Image:     p.Image,
	}
}

// Cart is an insertion-ordered list of lines. The same product added twice
// gives two independent lines.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(id string) *Cart {
	return &Cart{ID: id, Lines: []Line{}}
}

func (c *Cart) Add(p product.Product) Line {
	l := LineOf(p)
	c.Lines = append(c.Lines, l)
	return l
}

// Remove drops the line at index. An index outside the cart returns
// ErrLineNotFound and leaves the cart as it was.
func (c *Cart) Remove(index int) (Line, error) {
	if index < 0 || index >= len(c.Lines) {
		return Line{}, ErrLineNotFound
	}
	l := c.Lines[index]
	lines := make([]Line, 0, len(c.Lines)-1)
	lines = append(lines, c.Lines[:index]...)
	c.Lines = append(lines, c.Lines[index+1:]...)
	return l, nil
}

// Total sums the line prices. It is computed on every call, never stored.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Price)
	}
	return total
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
}

func (c *Cart) Len() int {
	return len(c.Lines)
}

// Items returns a copy of the lines.
func (c *Cart) Items() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}
