package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/audit"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/cache"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/products"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/transfers"
)

// Services holds the domain services shared by the API, worker and CLI.
type Services struct {
	Locations *locations.Service
	Products  *products.Service
	Rates     *fx.Resolver
	Pricing   *pricing.Service
	Ledger    *inventory.Ledger
	Transfers *transfers.Service
	Audit     *audit.Service
}

// ServiceDeps are the infrastructure handles services are built from.
// Redis may be nil; caching and template locks are then disabled.
type ServiceDeps struct {
	Config   *Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Observer inventory.Observer
}

// BuildServices wires repositories into services.
func BuildServices(deps ServiceDeps) (*Services, error) {
	cfg := deps.Config
	rounding, err := pricing.NewRoundingPolicy(cfg.PriceRounding)
	if err != nil {
		return nil, err
	}
	auditLogger := shared.NewAuditLogger(deps.Pool)
	approvals := shared.NewApprovalRecorder(deps.Pool, deps.Logger)

	locationService := locations.NewService(locations.NewRepository(deps.Pool), auditLogger, deps.Logger)
	productService := products.NewService(products.NewRepository(deps.Pool))
	resolver := fx.NewResolver(fx.NewRepository(deps.Pool), fx.NewCache(deps.Redis, cfg.FXCacheTTL), deps.Logger)
	pricingService := pricing.NewService(pricing.Dependencies{
		Repo:      pricing.NewRepository(deps.Pool),
		Locations: locationService,
		Products:  productService,
		Rates:     resolver,
		Rounding:  rounding,
		Locker:    cache.NewLocker(deps.Redis, cfg.TemplateLockTTL),
		Audit:     auditLogger,
		Logger:    deps.Logger,
	})
	ledger := inventory.NewLedger(inventory.NewRepository(deps.Pool), auditLogger, deps.Logger, inventory.LedgerConfig{
		MaxRetries: cfg.LedgerMaxRetries,
		Observer:   deps.Observer,
	})
	transferService := transfers.NewService(transfers.NewRepository(deps.Pool), ledger, approvals, auditLogger, deps.Logger)

	return &Services{
		Locations: locationService,
		Products:  productService,
		Rates:     resolver,
		Pricing:   pricingService,
		Ledger:    ledger,
		Transfers: transferService,
		Audit:     audit.NewService(audit.NewRepository(deps.Pool)),
	}, nil
}

// Handlers builds the HTTP handlers for s.
func (s *Services) Handlers(logger *slog.Logger, cfg *Config) RouterParams {
	return RouterParams{
		Logger:           logger,
		Config:           cfg,
		LocationsHandler: locations.NewHandler(logger, s.Locations),
		ProductsHandler:  products.NewHandler(logger, s.Products),
		FXHandler:        fx.NewHandler(logger, s.Rates),
		PricingHandler:   pricing.NewHandler(logger, s.Pricing, s.Locations),
		InventoryHandler: inventory.NewHandler(logger, s.Ledger, s.Locations, cfg.ExpiryWarningDays),
		TransfersHandler: transfers.NewHandler(logger, s.Transfers, s.Locations),
		AuditHandler:     audit.NewHandler(logger, s.Audit),
	}
}
