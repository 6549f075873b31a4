package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/app"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/locations"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/db"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/products"
)

// seedActor is recorded as the author of every seeded row.
const seedActor int64 = 1

// Seeds a demo tree (HQ in Korea, a Vietnamese branch and sub-branch), two
// products, rates, stock and frozen prices. Run against an empty database.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	services, err := app.BuildServices(app.ServiceDeps{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Pool:   pool,
	})
	if err != nil {
		log.Fatalf("build services: %v", err)
	}

	fmt.Println("→ Seeding locations...")
	tree, err := seedLocations(ctx, services.Locations)
	if err != nil {
		log.Fatalf("seed locations: %v", err)
	}

	fmt.Println("→ Seeding products...")
	items, err := seedProducts(ctx, services.Products)
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("→ Seeding exchange rates...")
	if err := seedRates(ctx, services.Rates); err != nil {
		log.Fatalf("seed rates: %v", err)
	}

	fmt.Println("→ Seeding stock...")
	if err := seedStock(ctx, services.Ledger, tree, items); err != nil {
		log.Fatalf("seed stock: %v", err)
	}

	fmt.Println("→ Seeding prices...")
	if err := seedPrices(ctx, services.Pricing, tree, items); err != nil {
		log.Fatalf("seed prices: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

type seededTree struct {
	HQ, Branch, SubBranch int64
}

func seedLocations(ctx context.Context, svc *locations.Service) (seededTree, error) {
	hq, err := svc.Create(ctx, seedActor, locations.CreateInput{Code: "HQ-SEL", Name: "Seoul HQ", Type: locations.TypeHQ, Currency: "KRW"})
	if err != nil {
		return seededTree{}, err
	}
	branch, err := svc.Create(ctx, seedActor, locations.CreateInput{Code: "BR-HCM", Name: "Ho Chi Minh Branch", Type: locations.TypeBranch, ParentID: &hq.ID, Currency: "VND", DisplayOrder: 1})
	if err != nil {
		return seededTree{}, err
	}
	sub, err := svc.Create(ctx, seedActor, locations.CreateInput{Code: "SB-D1", Name: "District 1 Store", Type: locations.TypeSubBranch, ParentID: &branch.ID, Currency: "VND", DisplayOrder: 1})
	if err != nil {
		return seededTree{}, err
	}
	return seededTree{HQ: hq.ID, Branch: branch.ID, SubBranch: sub.ID}, nil
}

func seedProducts(ctx context.Context, svc *products.Service) ([]products.Product, error) {
	inputs := []products.CreateInput{
		{SKU: "SERUM-30ML", Name: "Hydrating Serum 30ml", Unit: "ea", ShelfLifeDays: 730, BaseCost: decimal.NewFromInt(12000)},
		{SKU: "MASK-10P", Name: "Sheet Mask 10 pack", Unit: "box", ShelfLifeDays: 540, BaseCost: decimal.NewFromInt(8000)},
	}
	out := make([]products.Product, 0, len(inputs))
	for _, in := range inputs {
		p, err := svc.Create(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.SKU, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func seedRates(ctx context.Context, resolver *fx.Resolver) error {
	start := fx.Day(time.Now()).AddDate(0, 0, -30)
	for i, rate := range []string{"18.20", "18.35", "18.50"} {
		_, err := resolver.Upsert(ctx, fx.UpsertInput{
			FromCurrency:  "KRW",
			ToCurrency:    "VND",
			EffectiveDate: start.AddDate(0, 0, i*10).Format(fx.DateLayout),
			Rate:          decimal.RequireFromString(rate),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func seedStock(ctx context.Context, ledger *inventory.Ledger, tree seededTree, items []products.Product) error {
	today := fx.Day(time.Now())
	for _, p := range items {
		for _, loc := range []int64{tree.HQ, tree.Branch} {
			_, err := ledger.Receive(ctx, inventory.ReceiveInput{
				LocationID: loc,
				ProductID:  p.ID,
				ActorID:    seedActor,
				Note:       "seed",
				Items: []inventory.ReceiveItem{
					{BatchNo: p.SKU + "-A", UnitCost: p.BaseCost, ExpiryDate: today.AddDate(0, 0, 45), Qty: 40},
					{BatchNo: p.SKU + "-B", UnitCost: p.BaseCost, ExpiryDate: today.AddDate(0, 0, p.ShelfLifeDays), Qty: 120},
				},
			})
			if err != nil {
				return fmt.Errorf("%s at %d: %w", p.SKU, loc, err)
			}
		}
	}
	return nil
}

func seedPrices(ctx context.Context, svc *pricing.Service, tree seededTree, items []products.Product) error {
	for _, p := range items {
		_, err := svc.SaveBranchConfig(ctx, seedActor, pricing.BranchConfigInput{
			ProductID:           p.ID,
			LocationID:          tree.Branch,
			HQMarginPercent:     decimal.NewFromInt(20),
			BranchMarginPercent: decimal.NewFromInt(15),
			TransferCost:        decimal.NewFromInt(1500),
		})
		if err != nil {
			return fmt.Errorf("%s branch: %w", p.SKU, err)
		}
		_, err = svc.SaveSubBranchConfig(ctx, seedActor, pricing.SubBranchConfigInput{
			ProductID:              p.ID,
			LocationID:             tree.SubBranch,
			SubBranchMarginPercent: decimal.NewFromInt(10),
			TransferCost:           decimal.NewFromInt(5000),
			DiscountPercent:        decimal.NewFromInt(5),
		})
		if err != nil {
			return fmt.Errorf("%s sub-branch: %w", p.SKU, err)
		}
	}
	return nil
}
