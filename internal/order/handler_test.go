package order

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.service, f.orders)

	app := fiber.New()
	h.RegisterPublicRoutes(app)
	h.RegisterProtectedRoutes(app.Group("/api/v1/admin"))
	return app, f
}

func checkout(t *testing.T, app *fiber.App, cartID, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/carts/"+cartID+"/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func TestOrderRoutes_Registered(t *testing.T) {
	app, _ := setupApp(t)

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{
		"POST /api/v1/carts/:id/checkout",
		"GET /api/v1/admin/dashboard",
		"GET /api/v1/admin/orders",
		"GET /api/v1/admin/orders/stream",
		"PATCH /api/v1/admin/orders/:id/ship",
	} {
		assert.True(t, routes[want], "expected route %q", want)
	}
}

func TestCheckout(t *testing.T) {
	app, f := setupApp(t)
	cartID := f.cartWith(t, "p1", "p2")

	status, body := checkout(t, app, cartID, `{"name":"Nok","phone":"081","address":"Bangkok"}`)
	require.Equal(t, fiber.StatusCreated, status)

	var receipt struct {
		OrderID   string `json:"orderId"`
		Reference string `json:"reference"`
		Total     string `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &receipt))
	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, "350", receipt.Total)
}

func TestCheckout_ValidationErrors(t *testing.T) {
	app, f := setupApp(t)
	cartID := f.cartWith(t, "p1")

	status, raw := checkout(t, app, cartID, `{"name":"Nok"}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body.Errors, "phone")
	assert.Contains(t, body.Errors, "address")
}

func TestCheckout_StoreDown(t *testing.T) {
	app, f := setupApp(t)
	cartID := f.cartWith(t, "p1")
	f.store.createErr = assert.AnError

	status, _ := checkout(t, app, cartID, `{"name":"Nok","phone":"081","address":"Bangkok"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestCheckout_UnknownCart(t *testing.T) {
	app, _ := setupApp(t)
	status, _ := checkout(t, app, "missing", `{"name":"Nok","phone":"081","address":"Bangkok"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminOrders(t *testing.T) {
	app, f := setupApp(t)
	receipt, err := f.service.Submit(context.Background(), f.cartWith(t, "p1"), contact)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.service.List()) == 1 }, time.Second, 5*time.Millisecond)

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/admin/orders", nil))
	require.NoError(t, err)
	var orders []Order
	require.NoError(t, json.NewDecoder(res.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, receipt.OrderID, orders[0].ID)

	res, err = app.Test(httptest.NewRequest("PATCH", "/api/v1/admin/orders/"+receipt.OrderID+"/ship", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)

	require.Eventually(t, func() bool { return f.service.Dashboard().PendingCount == 0 }, time.Second, 5*time.Millisecond)
	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/admin/dashboard", nil))
	require.NoError(t, err)
	var dash struct {
		Revenue      string `json:"revenue"`
		PendingCount int    `json:"pendingCount"`
		OrderCount   int    `json:"orderCount"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&dash))
	assert.Equal(t, "100", dash.Revenue)
	assert.Equal(t, 0, dash.PendingCount)
	assert.Equal(t, 1, dash.OrderCount)

	res, err = app.Test(httptest.NewRequest("PATCH", "/api/v1/admin/orders/missing/ship", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}
