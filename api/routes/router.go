package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kioskly/kiosk-backend/api/controllers"
	kitchencontrollers "github.com/kioskly/kiosk-backend/api/controllers/kitchen"
	ordercontrollers "github.com/kioskly/kiosk-backend/api/controllers/orders"
	paymentcontrollers "github.com/kioskly/kiosk-backend/api/controllers/payments"
	productcontrollers "github.com/kioskly/kiosk-backend/api/controllers/products"
	webhookcontrollers "github.com/kioskly/kiosk-backend/api/controllers/webhooks"
	"github.com/kioskly/kiosk-backend/api/middleware"
	"github.com/kioskly/kiosk-backend/internal/kitchen"
	"github.com/kioskly/kiosk-backend/internal/orders"
	"github.com/kioskly/kiosk-backend/internal/payments"
	"github.com/kioskly/kiosk-backend/internal/products"
	"github.com/kioskly/kiosk-backend/internal/stores"
	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/db"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/redis"
)

// Deps carries everything the router wires into controllers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      db.Pinger
	RedisPinger   redis.Pinger
	StoreService  stores.Service
	ProductsRepo  products.Repository
	OrderService  orders.Service
	PaymentEngine payments.Engine
	KitchenSvc    kitchen.Service
}

// NewRouter assembles the API surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.Logger, d.DBPinger, d.RedisPinger))
	})

	storeCtx := middleware.StoreCtx(d.StoreService, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Use(storeCtx)

			r.Get("/products", productcontrollers.List(d.ProductsRepo, d.Logger))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(d.OrderService, d.Logger))
				r.Get("/", ordercontrollers.List(d.OrderService, d.Logger))
				r.Get("/{orderId}", ordercontrollers.Detail(d.OrderService, d.Logger))
				r.Get("/{orderId}/payment", paymentcontrollers.Poll(d.PaymentEngine, d.Logger))
				r.Post("/{orderId}/payment/cancel", paymentcontrollers.Cancel(d.PaymentEngine, d.Logger))
			})

			r.Route("/kitchen/orders", func(r chi.Router) {
				r.Get("/", kitchencontrollers.Feed(d.KitchenSvc, d.Logger))
				r.Post("/{orderId}/preparing", kitchencontrollers.MarkPreparing(d.KitchenSvc, d.Logger))
				r.Post("/{orderId}/complete", kitchencontrollers.MarkCompleted(d.KitchenSvc, d.Logger))
			})
		})

		r.Route("/webhooks/mercadopago/{storeId}", func(r chi.Router) {
			r.Use(storeCtx)
			r.Post("/", webhookcontrollers.MercadoPago(d.PaymentEngine, d.Logger))
		})

		r.Route("/notifications/mercadopago/{storeId}", func(r chi.Router) {
			r.Use(storeCtx)
			r.Get("/", webhookcontrollers.MercadoPagoIPN(d.PaymentEngine, d.Logger))
			r.Post("/", webhookcontrollers.MercadoPagoIPN(d.PaymentEngine, d.Logger))
		})
	})

	return r
}
