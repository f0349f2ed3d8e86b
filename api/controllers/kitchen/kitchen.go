package kitchen

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/api/controllers/orders"
	"github.com/kioskly/kiosk-backend/api/middleware"
	"github.com/kioskly/kiosk-backend/api/responses"
	internalkitchen "github.com/kioskly/kiosk-backend/internal/kitchen"
	internalorders "github.com/kioskly/kiosk-backend/internal/orders"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// Feed returns paid orders awaiting preparation, oldest first.
func Feed(svc internalkitchen.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := middleware.StoreFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store missing from context"))
			return
		}

		feed, err := svc.Feed(r.Context(), store.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": feed})
	}
}

// MarkPreparing moves an active order onto the prep line.
func MarkPreparing(svc internalkitchen.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, svc.MarkPreparing)
}

// MarkCompleted finishes an order.
func MarkCompleted(svc internalkitchen.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, svc.MarkCompleted)
}

func transition(logg *logger.Logger, fn func(ctx context.Context, storeID, orderID uuid.UUID) (*internalorders.OrderDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := middleware.StoreFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store missing from context"))
			return
		}

		orderID, err := orders.ParseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := fn(r.Context(), store.ID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
