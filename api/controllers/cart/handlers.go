package cart

import (
	"net/http"

	"github.com/microgem/storefront-backend/api/middleware"
	"github.com/microgem/storefront-backend/api/responses"
	"github.com/microgem/storefront-backend/api/validators"
	cartsvc "github.com/microgem/storefront-backend/internal/cart"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
)

// CartView returns the enriched cart for the request's token.
func CartView(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(svc, logg, w, r) {
			return
		}
		view, err := svc.View(r.Context(), domain(r), token(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newResponse(view))
	}
}

// CartAdd adds a product to the cart.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(svc, logg, w, r) {
			return
		}
		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddItem(r.Context(), domain(r), token(r), payload.ProductID, payload.VariantID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newResponse(view))
	}
}

// CartUpdate overwrites a line's quantity.
func CartUpdate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(svc, logg, w, r) {
			return
		}
		var payload UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateItem(r.Context(), domain(r), token(r), payload.ProductID, payload.VariantID, *payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newResponse(view))
	}
}

// CartRemove removes a line from the cart.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(svc, logg, w, r) {
			return
		}
		var payload RemoveItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), domain(r), token(r), payload.ProductID, payload.VariantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newResponse(view))
	}
}

// CartClear empties the cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(svc, logg, w, r) {
			return
		}
		if err := svc.Clear(r.Context(), token(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, emptyResponse())
	}
}

func serviceReady(svc cartsvc.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return false
	}
	return true
}

func domain(r *http.Request) string {
	return middleware.TenantDomainFromContext(r.Context())
}

func token(r *http.Request) string {
	return middleware.CartTokenFromContext(r.Context())
}
