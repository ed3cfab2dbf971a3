package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Orders         *OrdersHandler
	Carts          *CartHandler
	Payments       *PaymentHandler
	Logistics      *LogisticsHandler
	Auth           *Authenticator
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(r *http.Request) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// gateway-facing, authenticated by signature or not at all
		r.Post("/payments/{provider}/callback", cfg.Payments.Callback)
		r.Post("/logistics/map", cfg.Logistics.Map)
		r.Post("/logistics/map-callback", cfg.Logistics.MapCallback)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Carts.GetCart)
				r.Post("/items", cfg.Carts.AddItem)
				r.Put("/items/{product_id}", cfg.Carts.UpdateQuantity)
				r.Delete("/items/{product_id}", cfg.Carts.RemoveItem)
			})

			r.Post("/checkout", cfg.Orders.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", cfg.Orders.ListOrders)
				r.Get("/{order_id}", cfg.Orders.GetOrder)
				r.Get("/{order_id}/items", cfg.Orders.OrderItems)
				r.Patch("/{order_id}/cancel", cfg.Orders.CancelOrder)
				r.Patch("/{order_id}/return", cfg.Orders.ReturnOrder)
			})

			r.Post("/payments/{provider}/checkout/{order_id}", cfg.Payments.PrepareCheckout)

			r.With(RequireRole(RoleAdmin)).Patch("/admin/orders/{order_id}/shipment", cfg.Orders.AdvanceShipment)
		})
	})

	return otelhttp.NewHandler(r, "orders-service")
}
