package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tamoykinden/Final-project-auto-purch/internal/metrics"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

// Services are the dependencies of the HTTP API.
type Services struct {
	Catalog   ProductCatalog
	Carts     CartService
	Checkout  CheckoutService
	Orders    OrderReader
	Tracker   StatusTracker
	Suppliers SupplierService
	Metrics   *metrics.Metrics

	// Ready reports whether the storage backends are reachable. Nil means always ready.
	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
}

func NewRouter(s Services) http.Handler {
	productHandler := NewProductHandler(s.Catalog)
	cartHandler := NewCartHandler(s.Carts, s.Catalog)
	checkoutHandler := NewCheckoutHandler(s.Checkout, s.Orders)
	ordersHandler := NewOrdersHandler(s.Orders, s.Tracker)
	supplierHandler := NewSupplierHandler(s.Suppliers, s.Tracker)

	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(s.Metrics))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(IdentityMiddleware)

	r.Get("/health", healthHandler(s.Ready))
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{product_id}", productHandler.GetProduct)
		r.Get("/categories", productHandler.ListCategories)
		r.Get("/suppliers", productHandler.ListSuppliers)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleBuyer))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})
			r.Post("/checkout", checkoutHandler.Checkout)
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
				r.Post("/{order_id}/cancel", ordersHandler.CancelOrder)
			})
			r.Post("/sub-orders/{sub_order_id}/cancel", ordersHandler.CancelSubOrder)
		})

		r.Route("/supplier", func(r chi.Router) {
			r.Use(RequireRole(RoleSupplier))

			r.Put("/products", supplierHandler.ImportProducts)
			r.Put("/products/{product_id}/stock", supplierHandler.SetStock)
			r.Get("/state", supplierHandler.GetState)
			r.Patch("/state", supplierHandler.UpdateState)
			r.Get("/orders", supplierHandler.ListOrders)
			r.Patch("/orders/{sub_order_id}", supplierHandler.UpdateOrderStatus)
		})
	})

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Msg("health check failed")
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
