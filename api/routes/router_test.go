package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/api/controllers"
	"github.com/microgem/storefront-backend/api/middleware"
	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/internal/orders"
	product "github.com/microgem/storefront-backend/internal/products"
	"github.com/microgem/storefront-backend/internal/storetest"
	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db/models"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/metrics"
	"github.com/microgem/storefront-backend/pkg/redis"
)

const shopOrigin = "https://www.shop.example.com"

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type testApp struct {
	handler http.Handler
	tenant  *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "dev", RequestTimeout: 5 * time.Second},
		Tenant: config.TenantConfig{DomainSources: []string{"origin"}, DevAliases: map[string]string{"localhost": "shop.example.com"}},
		Cart: config.CartConfig{
			TTL:          72 * time.Hour,
			TokenSources: []string{"cookie", "header", "body"},
			CookieName:   "cart_token",
			CASRetries:   5,
		},
		Order:     config.OrderConfig{NumberAttempts: 5, DefaultCurrency: "$", DefaultMethod: "COD"},
		RateLimit: config.RateLimitConfig{CheckoutWindow: time.Minute, CheckoutIPLimit: 100, CheckoutEmailLimit: 100},
		Metrics:   config.MetricsConfig{Enabled: true},
	}
}

func newTestApp(t *testing.T, ready map[string]controllers.Pinger) *testApp {
	t.Helper()
	cfg := testConfig()
	logg := logger.Nop()

	directory := storetest.NewDirectoryDB(t)
	tenantDB := storetest.NewTenantDB(t, "shop")
	storetest.MustCreateSite(t, directory, "shop.example.com", "shop")
	resolver, err := tenants.NewResolver(tenants.NewRepository(directory), &storetest.StaticConnector{DBs: map[string]*gorm.DB{"shop": tenantDB}})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	redisClient := redis.NewFromClient(raw)

	reg := prometheus.NewRegistry()
	m := metrics.NewStorefrontMetrics(reg)

	store, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	require.NoError(t, err)
	catalog := product.NewRepository()
	carts, err := cart.NewService(resolver, catalog, store, cfg.Cart, logg, m)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.Deps{
		Resolver: resolver,
		Carts:    carts,
		Catalog:  catalog,
		Repo:     orders.NewRepository(),
		Config:   cfg.Order,
		Logger:   logg,
		Metrics:  m,
	})
	require.NoError(t, err)

	if ready == nil {
		ready = map[string]controllers.Pinger{"redis": redisClient}
	}
	handler := NewRouter(Deps{
		Config:  cfg,
		Logger:  logg,
		Carts:   carts,
		Orders:  orderSvc,
		Redis:   redisClient,
		Ready:   ready,
		Metrics: reg,
	})
	return &testApp{handler: handler, tenant: tenantDB}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type cartPayload struct {
	Items []struct {
		ProductID int64  `json:"product_id"`
		SKU       string `json:"sku"`
		Price     string `json:"price"`
		Quantity  int    `json:"quantity"`
		Thumbnail string `json:"thumbnail"`
	} `json:"items"`
	Subtotal  json.Number `json:"subtotal"`
	Count     int         `json:"count"`
	UpdatedAt string      `json:"updated_at"`
}

func (a *testApp) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Origin", shopOrigin)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.CartTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeCart(t *testing.T, env envelope) cartPayload {
	t.Helper()
	var c cartPayload
	require.NoError(t, json.Unmarshal(env.Data, &c))
	return c
}

func TestCartAndCheckoutFlow(t *testing.T) {
	app := newTestApp(t, nil)
	mug := storetest.MustCreateProduct(t, app.tenant, "MUG", "Mug", "12.5", 5, `["https://cdn/mug.jpg"]`)

	rec, env := app.do(t, http.MethodGet, "/api/cart", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := rec.Header().Get(middleware.CartTokenHeader)
	require.True(t, cart.ValidToken(token))
	require.NotEmpty(t, rec.Result().Cookies())
	empty := decodeCart(t, env)
	assert.Empty(t, empty.Items)
	_, err := time.Parse(time.RFC3339, empty.UpdatedAt)
	assert.NoError(t, err, "absent cart still carries a timestamp")

	rec, env = app.do(t, http.MethodPost, "/api/cart/add", token, `{"product_id":`+itoa(mug.ID)+`,"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeCart(t, env)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "12.50", c.Items[0].Price)
	assert.Equal(t, "https://cdn/mug.jpg", c.Items[0].Thumbnail)
	assert.Equal(t, json.Number("25.00"), c.Subtotal)
	assert.Equal(t, 1, c.Count)
	require.NotEmpty(t, c.UpdatedAt)

	rec, env = app.do(t, http.MethodPut, "/api/cart/update", token, `{"product_id":`+itoa(mug.ID)+`,"qty":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeCart(t, env).Items[0].Quantity)

	rec, env = app.do(t, http.MethodPost, "/api/order/create", token,
		`{"name":"Ana","email":"ana@example.com","address":"1 Main St","shipping":"2.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order struct {
		OrderNo  string      `json:"order_no"`
		Total    json.Number `json:"total"`
		Currency string      `json:"currency"`
		Method   string      `json:"method"`
		Status   int         `json:"status"`
		Products []struct {
			ID       int64  `json:"id"`
			SKU      string `json:"sku"`
			Quantity int    `json:"quantity"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Len(t, order.OrderNo, 8)
	assert.Equal(t, json.Number("39.50"), order.Total)
	assert.Equal(t, "$", order.Currency)
	assert.Equal(t, "COD", order.Method)
	assert.Equal(t, 0, order.Status)
	require.Len(t, order.Products, 1)
	assert.Equal(t, mug.ID, order.Products[0].ID)
	assert.Equal(t, 3, order.Products[0].Quantity)
	assert.Equal(t, 2, storetest.Inventory(t, app.tenant, mug.ID))

	rec, env = app.do(t, http.MethodGet, "/api/cart", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, env).Items)

	rec, env = app.do(t, http.MethodPost, "/api/order/create", token,
		`{"name":"Ana","email":"ana@example.com","address":"1 Main St"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "EMPTY_CART", env.Error.Code)
}

func TestCartErrors(t *testing.T) {
	app := newTestApp(t, nil)
	token := cart.NewToken()

	rec, env := app.do(t, http.MethodPost, "/api/cart/add", token, `{"product_id":999,"qty":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Error.Code)

	rec, env = app.do(t, http.MethodPut, "/api/cart/update", token, `{"product_id":999,"qty":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ITEM_NOT_FOUND", env.Error.Code)

	rec, env = app.do(t, http.MethodPost, "/api/cart/add", token, `{"qty":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, _ = app.do(t, http.MethodDelete, "/api/cart/remove", token, `{"product_id":999}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = app.do(t, http.MethodDelete, "/api/cart/clear", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInsufficientInventoryNamesProduct(t *testing.T) {
	app := newTestApp(t, nil)
	lamp := storetest.MustCreateProduct(t, app.tenant, "LAMP", "Desk Lamp", "20", 1, "")
	token := cart.NewToken()

	rec, _ := app.do(t, http.MethodPost, "/api/cart/add", token, `{"product_id":`+itoa(lamp.ID)+`,"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := app.do(t, http.MethodPost, "/api/order/create", token,
		`{"name":"Ana","email":"ana@example.com","address":"1 Main St"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", env.Error.Code)
	assert.Contains(t, env.Error.Message, "Desk Lamp")
	assert.Equal(t, "Desk Lamp", env.Error.Details["product_name"])

	var count int64
	require.NoError(t, app.tenant.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUnknownAndMissingDomain(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "domain not found")

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Origin", "https://unknown.example.com")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TENANT_NOT_FOUND")

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestOrderCreateIdempotencyReplay(t *testing.T) {
	app := newTestApp(t, nil)
	p := storetest.MustCreateProduct(t, app.tenant, "P", "Pen", "1", 10, "")
	token := cart.NewToken()
	rec, _ := app.do(t, http.MethodPost, "/api/cart/add", token, `{"product_id":`+itoa(p.ID)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := `{"name":"Ana","email":"ana@example.com","address":"1 Main St"}`
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/order/create", strings.NewReader(body))
		req.Header.Set("Origin", shopOrigin)
		req.Header.Set(middleware.CartTokenHeader, token)
		req.Header.Set("Idempotency-Key", "checkout-1")
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		return rec
	}
	first := send()
	second := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 9, storetest.Inventory(t, app.tenant, p.ID))
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, map[string]controllers.Pinger{"directory": stubPinger{}, "redis": stubPinger{err: errors.New("down")}})

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")

	_, _ = app.do(t, http.MethodGet, "/api/cart", cart.NewToken(), "")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_cart_operations_total")
}

func TestCORSPreflightAllowsTenantOrigin(t *testing.T) {
	app := newTestApp(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/cart/add", nil)
	req.Header.Set("Origin", shopOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Cart-Token")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, shopOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
