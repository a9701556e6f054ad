package cart

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/jai-storefront/internal/product"
)

// Handler exposes cart sessions over HTTP. Checkout lives in the order
// package.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/api/v1/carts", h.openCart)
	r.Get("/api/v1/carts/:id", h.getCart)
	r.Post("/api/v1/carts/:id/items", h.addItem)
	r.Delete("/api/v1/carts/:id/items/:index", h.removeItem)
	r.Delete("/api/v1/carts/:id", h.clearCart)
}

type cartResponse struct {
	ID    string          `json:"id"`
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func toResponse(c *Cart) cartResponse {
	return cartResponse{ID: c.ID, Lines: c.Items(), Total: c.Total()}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) openCart(c *fiber.Ctx) error {
	cart, err := h.service.Open(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toResponse(cart))
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	cart, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": fiber.Map{"productId": "productId is required"}})
	}

	cart, err := h.service.AddItem(c.UserContext(), c.Params("id"), payload.ProductID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid index"})
	}

	cart, err := h.service.RemoveItem(c.UserContext(), c.Params("id"), index)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	cart, err := h.service.Clear(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart not found"})
	case errors.Is(err, ErrLineNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart line not found"})
	case errors.Is(err, product.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	case errors.Is(err, ErrCartBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
