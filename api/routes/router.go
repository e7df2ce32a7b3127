package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gasflow/ops-console/api/controllers"
	"github.com/gasflow/ops-console/api/middleware"
	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	pkgredis "github.com/gasflow/ops-console/pkg/redis"
)

// Services are the console components the HTTP API exposes.
type Services struct {
	Orders      controllers.OrderView
	Dialogs     controllers.ActionDialogs
	Exporter    controllers.Exporter
	Agents      controllers.OnlineAgents
	Dashboard   controllers.DashboardReader
	Notices     controllers.NoticeReader
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, svc.Ready))
	})
	r.Handle("/metrics", metrics.Handler(svc.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleAgency))
		r.Use(middleware.Idempotency(svc.Idempotency, logg))

		r.Get("/ping", controllers.Ping())

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svc.Orders, logg))
			r.Get("/view", controllers.CurrentView(svc.Orders, logg))
			r.Get("/export", controllers.ExportOrders(svc.Orders, svc.Exporter, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(svc.Orders, logg))
				r.Post("/status", controllers.UpdateOrderStatus(svc.Orders, logg))
				r.Post("/payment", controllers.RecordPayment(svc.Orders, logg))
				r.Get("/assign", controllers.AssignDialog(svc.Orders, svc.Dialogs, logg))
				r.Post("/assign", controllers.AssignAgent(svc.Orders, svc.Dialogs, logg))
				r.Post("/assign/retry", controllers.RetryAssignAdvance(svc.Orders, svc.Dialogs, logg))
				r.Get("/cancel", controllers.CancelDialog(svc.Orders, svc.Dialogs, logg))
				r.Post("/cancel", controllers.CancelOrder(svc.Orders, svc.Dialogs, logg))
				r.Get("/return", controllers.ReturnDialog(svc.Orders, svc.Dialogs, logg))
				r.Post("/return", controllers.ReturnOrder(svc.Orders, svc.Dialogs, logg))
				r.Post("/return/review", controllers.ReviewReturn(svc.Orders, svc.Dialogs, logg))
			})
		})

		r.Get("/assignments/pending", controllers.PendingAdvances(svc.Dialogs, logg))
		r.Get("/agents/online", controllers.OnlineAgentsList(svc.Agents, logg))
		r.Get("/dashboard", controllers.Dashboard(svc.Dashboard, logg))
		r.Get("/notices", controllers.RecentNotices(svc.Notices, logg))
	})

	return r
}
