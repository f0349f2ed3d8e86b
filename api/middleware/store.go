package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/api/responses"
	"github.com/kioskly/kiosk-backend/internal/stores"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

type storeCtxKey struct{}

// StoreCtx resolves the {storeId} path parameter into an active store and
// attaches it to the request context. Unknown or inactive stores get a 404.
func StoreCtx(svc stores.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, "storeId")
			storeID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store id"))
				return
			}

			store, err := svc.Get(r.Context(), storeID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := context.WithValue(r.Context(), storeCtxKey{}, store)
			if logg != nil {
				ctx = logg.WithStoreID(ctx, store.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StoreFromContext returns the store attached by StoreCtx.
func StoreFromContext(ctx context.Context) (*models.Store, bool) {
	store, ok := ctx.Value(storeCtxKey{}).(*models.Store)
	return store, ok
}
