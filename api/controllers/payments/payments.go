package payments

import (
	"net/http"

	"github.com/kioskly/kiosk-backend/api/controllers/orders"
	"github.com/kioskly/kiosk-backend/api/middleware"
	"github.com/kioskly/kiosk-backend/api/responses"
	internalpayments "github.com/kioskly/kiosk-backend/internal/payments"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// Poll re-evaluates the order's payment against the gateway and returns the
// converged state. Kiosks call this in a loop while the customer pays.
func Poll(engine internalpayments.Engine, logg *logger.Logger) http.HandlerFunc {
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

		state, err := engine.Evaluate(r.Context(), store, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// Cancel voids a still-pending payment at the customer's request.
func Cancel(engine internalpayments.Engine, logg *logger.Logger) http.HandlerFunc {
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

		state, err := engine.CancelByClient(r.Context(), store, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}
