package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/almoxarifado/almoxarifado/internal/audit"
	"github.com/almoxarifado/almoxarifado/internal/budgets"
	"github.com/almoxarifado/almoxarifado/internal/catalog"
	"github.com/almoxarifado/almoxarifado/internal/inventory"
	"github.com/almoxarifado/almoxarifado/internal/locations"
	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/observability"
	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/reports"
	"github.com/almoxarifado/almoxarifado/internal/suppliers"
	"github.com/almoxarifado/almoxarifado/jobs"
)

// Pinger reports dependency readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Ready   map[string]Pinger

	LocationsHandler     *locations.Handler
	CatalogHandler       *catalog.Handler
	InventoryHandler     *inventory.Handler
	NotificationsHandler *notifications.Handler
	SuppliersHandler     *suppliers.Handler
	BudgetsHandler       *budgets.Handler
	ReportsHandler       *reports.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(params.Ready, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireActor)
		if params.LocationsHandler != nil {
			r.Route("/locations", params.LocationsHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/categories", params.CatalogHandler.MountCategoryRoutes)
		}
		r.Route("/items", func(r chi.Router) {
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountItemRoutes(r)
			}
			if params.InventoryHandler != nil {
				params.InventoryHandler.MountItemStockRoutes(r)
			}
		})
		if params.InventoryHandler != nil {
			r.Route("/movements", params.InventoryHandler.MountMovementRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.BudgetsHandler != nil {
			r.Route("/budgets", params.BudgetsHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

func readiness(deps map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		result := make(map[string]string, len(deps))
		code := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("dependency", name), slog.Any("error", err))
				result[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			result[name] = "up"
		}
		httpx.JSON(w, code, result)
	}
}
