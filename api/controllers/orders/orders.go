package orders

import (
	"net/http"

	"github.com/microgem/storefront-backend/api/middleware"
	"github.com/microgem/storefront-backend/api/responses"
	"github.com/microgem/storefront-backend/api/validators"
	ordersvc "github.com/microgem/storefront-backend/internal/orders"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
)

// OrderCreate places an order from the request's cart.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		order, err := svc.CreateOrder(ctx, middleware.TenantDomainFromContext(ctx), middleware.CartTokenFromContext(ctx), payload.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "order_no", order.OrderNo), "order.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
