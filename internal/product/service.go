package product

import (
	"context"
	"sort"
	"strings"

	"github.com/wichananm65/jai-storefront/internal/validation"
)

// Catalogue is the read side: the synchronized copy of the products
// collection.
type Catalogue interface {
	Snapshot() []Product
	Find(pred func(Product) bool) (Product, bool)
}

type Service struct {
	repo             Repository
	catalogue        Catalogue
	placeholderImage string
}

func NewService(repo Repository, catalogue Catalogue, placeholderImage string) *Service {
	return &Service{repo: repo, catalogue: catalogue, placeholderImage: placeholderImage}
}

// List returns the catalogue, optionally narrowed to one category
// (case-insensitive).
func (s *Service) List(category string) []Product {
	all := s.catalogue.Snapshot()
	if category == "" {
		return all
	}
	out := make([]Product, 0, len(all))
	for _, p := range all {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) GetByID(id string) (Product, error) {
	p, ok := s.catalogue.Find(func(p Product) bool { return p.ID == id })
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// Categories returns the distinct categories in the catalogue, sorted.
func (s *Service) Categories() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, p := range s.catalogue.Snapshot() {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Add validates and persists a new catalogue item. The new product shows up
// in the catalogue once the store pushes the next snapshot.
func (s *Service) Add(ctx context.Context, np NewProduct) (Product, error) {
	p, err := s.build(np)
	if err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, p)
}

// Reset replaces the catalogue (used for dev / seeding).
func (s *Service) Reset(ctx context.Context, items []NewProduct) ([]Product, error) {
	products := make([]Product, 0, len(items))
	for _, np := range items {
		p, err := s.build(np)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return s.repo.Reset(ctx, products)
}

func (s *Service) build(np NewProduct) (Product, error) {
	errs := validation.Errors{}
	errs.Required("name", np.Name)
	errs.Required("category", np.Category)
	if np.Price == nil {
		errs["price"] = "price is required"
	} else if np.Price.IsNegative() {
		errs["price"] = "price must be >= 0"
	}
	if err := errs.Err(); err != nil {
		return Product{}, err
	}

	image := strings.TrimSpace(np.Image)
	if image == "" {
		image = s.placeholderImage
	}
	return Product{
		Name:     strings.TrimSpace(np.Name),
		Category: strings.TrimSpace(np.Category),
		Price:    *np.Price,
		Image:    image,
	}, nil
}
