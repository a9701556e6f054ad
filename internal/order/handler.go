package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/jai-storefront/internal/cart"
	"github.com/wichananm65/jai-storefront/internal/live"
	"github.com/wichananm65/jai-storefront/internal/store"
	"github.com/wichananm65/jai-storefront/internal/validation"
)

// Handler serves checkout to customers and the order views to the admin.
type Handler struct {
	service *Service
	orders  *live.Collection[Order]
}

func NewHandler(s *Service, orders *live.Collection[Order]) *Handler {
	return &Handler{service: s, orders: orders}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/api/v1/carts/:id/checkout", h.checkout)
}

// RegisterProtectedRoutes expects r to be the admin group.
func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Get("/dashboard", h.getDashboard)
	r.Get("/orders", h.getOrders)
	r.Get("/orders/stream", h.streamOrders)
	r.Patch("/orders/:id/ship", h.markShipped)
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	payload := new(Customer)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	receipt, err := h.service.Submit(c.UserContext(), c.Params("id"), *payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(receipt)
}

func (h *Handler) getDashboard(c *fiber.Ctx) error {
	return c.JSON(h.service.Dashboard())
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	return c.JSON(h.service.List())
}

func (h *Handler) streamOrders(c *fiber.Ctx) error {
	return live.Stream(c, h.orders, "orders")
}

func (h *Handler) markShipped(c *fiber.Ctx) error {
	if err := h.service.MarkShipped(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeError(c *fiber.Ctx, err error) error {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": verr})
	case errors.Is(err, cart.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart not found"})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	case errors.Is(err, cart.ErrCartBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
