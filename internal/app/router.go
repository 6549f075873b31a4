package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/audit"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/observability"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/httpx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/products"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/transfers"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	LocationsHandler *locations.Handler
	ProductsHandler  *products.Handler
	FXHandler        *fx.Handler
	PricingHandler   *pricing.Handler
	InventoryHandler *inventory.Handler
	TransfersHandler *transfers.Handler
	JobsHandler      *jobs.Handler
	AuditHandler     *audit.Handler
	// Checks are pinged by /readyz.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(requestLogger(params.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range params.Checks {
			if err := check.Ping(ctx); err != nil {
				params.Logger.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpx.Identity)
		if params.LocationsHandler != nil {
			params.LocationsHandler.MountRoutes(r)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.FXHandler != nil {
			params.FXHandler.MountRoutes(r)
		}
		if params.PricingHandler != nil {
			params.PricingHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.TransfersHandler != nil {
			params.TransfersHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(r)
		}
	})

	return r
}
