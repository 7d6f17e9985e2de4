package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/crewsync/api/controllers"
	"github.com/angelmondragon/crewsync/api/middleware"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/enums"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// Deps are the services the control API exposes.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Store         controllers.Pinger
	Outbox        controllers.OutboxService
	Payloads      controllers.PayloadDecoder
	Flusher       controllers.Flusher
	Notifications controllers.NotificationTracker
	Connectivity  controllers.StateSource
	Gatherer      prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Store, deps.Connectivity))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWT.Enabled() {
			r.Use(middleware.Auth(cfg.JWT, logg))
		} else {
			r.Use(middleware.TrustLocal())
		}

		r.Route("/outbox", func(r chi.Router) {
			r.Post("/", controllers.EnqueueOutboxItem(deps.Outbox, deps.Payloads, logg))
			r.Get("/", controllers.ListOutboxItems(deps.Outbox, logg))
			r.Post("/flush", controllers.FlushOutbox(deps.Outbox, deps.Flusher, logg))
			r.Post("/{itemId}/retry", controllers.RetryOutboxItem(deps.Outbox, logg))
			r.Delete("/{itemId}", controllers.DeleteOutboxItem(deps.Outbox, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read", controllers.MarkNotificationsRead(deps.Notifications, logg))
			r.Get("/toast", controllers.NotificationToast(deps.Notifications, logg))
			r.With(middleware.RequireRole(logg, enums.AgentRoleGateway)).
				Get("/tracked", controllers.TrackedEmployees(deps.Notifications))
		})

		r.Get("/connectivity", controllers.ConnectivityState(deps.Connectivity))
	})

	return r
}
