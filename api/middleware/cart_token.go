package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/logger"
)

const (
	CartTokenHeader = "X-Cart-Token"
	cartTokenField  = "cart_token"

	TokenSourceCookie = "cookie"
	TokenSourceHeader = "header"
	TokenSourceBody   = "body"
	TokenSourceQuery  = "query"

	maxTokenBodyBytes = 1 << 20
)

type tokenSource func(r *http.Request, cookieName string) string

var tokenSources = map[string]tokenSource{
	TokenSourceCookie: func(r *http.Request, cookieName string) string {
		c, err := r.Cookie(cookieName)
		if err != nil {
			return ""
		}
		return c.Value
	},
	TokenSourceHeader: func(r *http.Request, _ string) string {
		return r.Header.Get(CartTokenHeader)
	},
	TokenSourceBody: func(r *http.Request, _ string) string {
		return tokenFromBody(r)
	},
	TokenSourceQuery: func(r *http.Request, _ string) string {
		return r.URL.Query().Get(cartTokenField)
	},
}

// CartToken selects the guest cart token from the configured sources. A
// missing or malformed token is replaced with a fresh one, which is handed
// back as a cookie and in the X-Cart-Token response header.
func CartToken(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	sources := make([]tokenSource, 0, len(cfg.TokenSources))
	for _, name := range cfg.TokenSources {
		if src, ok := tokenSources[strings.ToLower(strings.TrimSpace(name))]; ok {
			sources = append(sources, src)
		}
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = cartTokenField
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			for _, src := range sources {
				if token = strings.TrimSpace(src(r, cookieName)); token != "" {
					break
				}
			}
			if !cart.ValidToken(token) {
				token = cart.NewToken()
			}

			existing, err := r.Cookie(cookieName)
			if err != nil || existing.Value != token {
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					Secure:   cfg.CookieSecure,
					HttpOnly: false,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(CartTokenHeader, token)

			ctx := WithCartToken(r.Context(), token)
			if logg != nil {
				ctx = logg.WithCartToken(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromBody peeks at a JSON body for cart_token and restores the body
// for the handler.
func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw, ok := payload[cartTokenField]
	if !ok {
		return ""
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return ""
	}
	return token
}
