package product

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/jai-storefront/internal/live"
	"github.com/wichananm65/jai-storefront/internal/store"
)

const placeholder = "https://images.example/placeholder.jpg"

func newTestCatalogue(t *testing.T, s store.Store) *live.Collection[Product] {
	t.Helper()
	coll := live.NewCollection(store.Query{Collection: Collection}, FromDocument, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coll.Run(ctx, s)
	select {
	case <-coll.Ready():
	case <-time.After(time.Second):
		t.Fatal("catalogue not ready")
	}
	return coll
}

func seed(t *testing.T, s store.Store, fields ...map[string]any) []string {
	t.Helper()
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		id, err := s.Create(context.Background(), Collection, f)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func setupApp(t *testing.T) (*fiber.App, *store.MemoryStore, *live.Collection[Product]) {
	t.Helper()
	s := store.NewMemoryStore()
	coll := newTestCatalogue(t, s)
	h := NewHandler(NewService(NewStoreRepository(s), coll, placeholder), coll)

	app := fiber.New()
	h.RegisterPublicRoutes(app)
	h.RegisterProtectedRoutes(app.Group("/api/v1/admin"))
	return app, s, coll
}

func TestProductRoutes_Registered(t *testing.T) {
	app, _, _ := setupApp(t)

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{
		"GET /api/v1/products",
		"GET /api/v1/products/stream",
		"GET /api/v1/products/:id",
		"GET /api/v1/categories",
		"POST /api/v1/admin/products",
	} {
		assert.True(t, routes[want], "expected route %q", want)
	}
}

func TestGetProducts_FilterByCategory(t *testing.T) {
	app, s, coll := setupApp(t)
	seed(t, s,
		map[string]any{"name": "Overcoat", "category": "Men", "price": "18900"},
		map[string]any{"name": "Slip Dress", "category": "Women", "price": "14500"},
		map[string]any{"name": "Camp Shirt", "category": "Men", "price": 4200},
	)
	require.Eventually(t, func() bool { return len(coll.Snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/products?category=men", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var got []Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, "Men", p.Category)
	}

	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/categories", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `["Men","Women"]`, string(body))
}

func TestGetProduct(t *testing.T) {
	app, s, coll := setupApp(t)
	ids := seed(t, s, map[string]any{"name": "Silk Scarf", "category": "Women", "price": "1250"})
	require.Eventually(t, func() bool { return len(coll.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/products/"+ids[0], nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	var p Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&p))
	assert.Equal(t, "Silk Scarf", p.Name)
	assert.Equal(t, "1250", p.Price.String())

	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/products/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestCreateProduct(t *testing.T) {
	app, _, coll := setupApp(t)

	req := httptest.NewRequest("POST", "/api/v1/admin/products", strings.NewReader(`{"name":"Wool Coat","category":"Men","price":"2500"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	var created Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, placeholder, created.Image)

	require.Eventually(t, func() bool {
		_, ok := coll.Find(func(p Product) bool { return p.ID == created.ID })
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestCreateProduct_ValidationErrors(t *testing.T) {
	app, s, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/api/v1/admin/products", strings.NewReader(`{"name":"","category":"Men"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body.Errors, "name")
	assert.Contains(t, body.Errors, "price")
	assert.NotContains(t, body.Errors, "category")
	assert.Empty(t, s.List(store.Query{Collection: Collection}))
}

func TestCreateProduct_NonNumericPrice(t *testing.T) {
	app, _, _ := setupApp(t)

	req := httptest.NewRequest("POST", "/api/v1/admin/products", strings.NewReader(`{"name":"Hat","category":"Men","price":"cheap"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}
