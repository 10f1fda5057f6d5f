package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendorr/vendorr-edge/api/controllers"
	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// ControlPrefix is the path prefix of the edge's own endpoints. Everything
// else is handed to the fetch interceptor.
const ControlPrefix = "/_edge"

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Gatherer    prometheus.Gatherer
	Cache       controllers.CacheStatus
	Pingers     map[string]controllers.Pinger
	Carts       controllers.CartSessions
	Checkout    controllers.CheckoutService
	Bus         controllers.CommandBus
	Inbox       controllers.Inbox
	Interceptor http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route(ControlPrefix, func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.Origins()))

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", controllers.HealthLive(cfg))
			r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Cache, deps.Pingers))
		})
		if deps.Gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))
			r.Use(middleware.BearerToken())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Carts, logg))
				r.Delete("/", controllers.CartClear(deps.Carts, logg))
				r.Post("/items", controllers.CartAddItem(deps.Carts, logg))
				r.Patch("/items", controllers.CartUpdateItem(deps.Carts, logg))
				r.Delete("/items", controllers.CartRemoveItem(deps.Carts, logg))
				r.Post("/lookup", controllers.CartLookup(deps.Carts, logg))
			})

			r.Get("/checkout/summary", controllers.CheckoutSummary(deps.Checkout, logg))
			r.Post("/checkout", controllers.Checkout(deps.Checkout, int64(cfg.Checkout.MaxReceiptMB)<<20, logg))

			r.Post("/messages", controllers.Messages(deps.Bus, logg))
			r.Post("/sync/{tag}", controllers.SyncTag(deps.Bus, logg))
			r.Post("/push", controllers.Push(deps.Bus, logg))
			r.Get("/events", controllers.Events(deps.Bus, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Inbox, logg))
				r.Delete("/", controllers.ClearNotifications(deps.Inbox, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Inbox, logg))
				r.Post("/click", controllers.NotificationClick(logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Inbox, logg))
				r.Delete("/{notificationId}", controllers.ClearNotification(deps.Inbox, logg))
			})
		})
	})

	if deps.Interceptor != nil {
		r.NotFound(deps.Interceptor.ServeHTTP)
		r.MethodNotAllowed(deps.Interceptor.ServeHTTP)
	}

	return r
}
