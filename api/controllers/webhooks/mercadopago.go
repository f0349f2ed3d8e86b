// Package webhooks receives gateway notifications. Handlers acknowledge with
// 200 before processing so the provider never retries because of our own
// downstream latency; the reconciliation CAS makes redelivery harmless anyway.
package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kioskly/kiosk-backend/api/middleware"
	"github.com/kioskly/kiosk-backend/api/responses"
	internalpayments "github.com/kioskly/kiosk-backend/internal/payments"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/mercadopago"
)

const processTimeout = 30 * time.Second

// MercadoPago handles webhook deliveries ({action, data:{id}}).
func MercadoPago(engine internalpayments.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := middleware.StoreFromContext(r.Context())
		if !ok {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		var event mercadopago.WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			logg.Warn(r.Context(), "undecodable webhook body, acknowledging anyway")
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		paymentID := strings.TrimSpace(event.Data.ID)
		if paymentID == "" {
			paymentID = strings.TrimSpace(r.URL.Query().Get("data.id"))
		}
		if paymentID == "" || event.Type != "payment" {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		process(r.Context(), logg, "webhook", func(ctx context.Context) error {
			return engine.HandleWebhook(ctx, store, paymentID)
		})
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}

// MercadoPagoIPN handles legacy IPN deliveries (?id=...&topic=...).
func MercadoPagoIPN(engine internalpayments.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := middleware.StoreFromContext(r.Context())
		if !ok {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		resourceID := strings.TrimSpace(r.URL.Query().Get("id"))
		topic := strings.TrimSpace(r.URL.Query().Get("topic"))
		if resourceID == "" {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		process(r.Context(), logg, "ipn", func(ctx context.Context) error {
			return engine.HandleIPN(ctx, store, resourceID, topic)
		})
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}

// process runs fn detached from the request lifecycle. Errors are logged,
// never surfaced: the provider already got its 200.
func process(reqCtx context.Context, logg *logger.Logger, channel string, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(reqCtx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, processTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logg.Error(ctx, "processing "+channel+" notification", err)
		}
	}()
}
