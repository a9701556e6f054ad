package product

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/jai-storefront/internal/live"
	"github.com/wichananm65/jai-storefront/internal/store"
	"github.com/wichananm65/jai-storefront/internal/validation"
)

type Handler struct {
	service   *Service
	catalogue *live.Collection[Product]
}

func NewHandler(service *Service, catalogue *live.Collection[Product]) *Handler {
	return &Handler{service: service, catalogue: catalogue}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/v1/products", h.getProducts)
	// registered before :id so "stream" is not taken as an id
	r.Get("/api/v1/products/stream", h.streamProducts)
	r.Get("/api/v1/products/:id", h.getProduct)
	r.Get("/api/v1/categories", h.getCategories)
}

// RegisterProtectedRoutes expects r to be the admin group.
func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Post("/products", h.createProduct)
}

func (h *Handler) getProducts(c *fiber.Ctx) error {
	return c.JSON(h.service.List(c.Query("category")))
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	p, err := h.service.GetByID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	}
	return c.JSON(p)
}

func (h *Handler) getCategories(c *fiber.Ctx) error {
	return c.JSON(h.service.Categories())
}

func (h *Handler) streamProducts(c *fiber.Ctx) error {
	return live.Stream(c, h.catalogue, "products")
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	payload := new(NewProduct)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	created, err := h.service.Add(c.UserContext(), *payload)
	if err != nil {
		var verr validation.Errors
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": verr})
		case errors.Is(err, store.ErrUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}
