package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/pkg/config"
)

const knownToken = "3f0e2a8c-1d4b-4c6e-9a7f-5b2c8d1e0f34"

func cartCfg(sources ...string) config.CartConfig {
	return config.CartConfig{TTL: 72 * time.Hour, TokenSources: sources, CookieName: "cart_token"}
}

func serveToken(t *testing.T, cfg config.CartConfig, req *http.Request) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	var token, body string
	h := CartToken(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CartTokenFromContext(r.Context())
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, token, body
}

func TestCartTokenIssuedWhenMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec, token, _ := serveToken(t, cartCfg("cookie", "header", "body"), req)

	require.True(t, cart.ValidToken(token))
	assert.Equal(t, token, rec.Header().Get(CartTokenHeader))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "cart_token", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, 259200, cookies[0].MaxAge)
	assert.False(t, cookies[0].HttpOnly)
}

func TestCartTokenCookieWinsAndIsNotReissued(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: "cart_token", Value: knownToken})
	req.Header.Set(CartTokenHeader, "7d9f3e2a-0000-4000-8000-000000000001")

	rec, token, _ := serveToken(t, cartCfg("cookie", "header"), req)
	assert.Equal(t, knownToken, token)
	assert.Empty(t, rec.Result().Cookies())
}

func TestCartTokenFromHeaderAndBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/cart/add", strings.NewReader(`{"product_id":1}`))
	req.Header.Set(CartTokenHeader, knownToken)
	_, token, _ := serveToken(t, cartCfg("cookie", "header", "body"), req)
	assert.Equal(t, knownToken, token)

	payload := `{"product_id":1,"cart_token":"` + knownToken + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/cart/add", strings.NewReader(payload))
	_, token, body := serveToken(t, cartCfg("cookie", "header", "body"), req)
	assert.Equal(t, knownToken, token)
	assert.Equal(t, payload, body, "body must be readable by the handler")
}

func TestCartTokenMalformedIsReplaced(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart?cart_token=nope", nil)
	req.AddCookie(&http.Cookie{Name: "cart_token", Value: "../etc/passwd"})

	rec, token, _ := serveToken(t, cartCfg("cookie", "query"), req)
	assert.True(t, cart.ValidToken(token))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, token, cookies[0].Value)
}

func TestCartTokenNonCanonicalSpellingsAreReplaced(t *testing.T) {
	for _, raw := range []string{"{" + knownToken + "}", "urn:uuid:" + knownToken, strings.ReplaceAll(knownToken, "-", "")} {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set(CartTokenHeader, raw)

		rec, token, _ := serveToken(t, cartCfg("header"), req)
		assert.NotEqual(t, raw, token)
		assert.True(t, cart.ValidToken(token))
		assert.Equal(t, token, rec.Header().Get(CartTokenHeader))
	}
}
