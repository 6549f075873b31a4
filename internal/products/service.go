package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Repository is the persistence port for products.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter shared.ListFilter) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Product, error)
}

// Service coordinates product master data.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Validationf("invalid product id")
	}
	return s.repo.Get(ctx, id)
}

// List returns products page by page.
func (s *Service) List(ctx context.Context, filter shared.ListFilter) ([]Product, error) {
	return s.repo.List(ctx, filter.Normalize())
}

// Create validates and stores a product.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	sku, err := ValidateSKU(in.SKU)
	if err != nil {
		return Product{}, err
	}
	if in.BaseCost.IsNegative() {
		return Product{}, shared.Validationf("base cost must be >= 0")
	}
	if in.ShelfLifeDays < 0 {
		return Product{}, shared.Validationf("shelf life must be >= 0")
	}
	p := Product{
		SKU:           sku,
		Name:          strings.TrimSpace(in.Name),
		Unit:          strings.TrimSpace(in.Unit),
		ShelfLifeDays: in.ShelfLifeDays,
		BaseCost:      in.BaseCost,
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Product{}, shared.Validationf("sku %s already registered", sku)
		}
		return Product{}, fmt.Errorf("products: create: %w", err)
	}
	return created, nil
}

// Update changes the name and base cost. SKU and unit stay as registered.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Validationf("invalid product id")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, shared.Validationf("name is required")
	}
	if in.BaseCost.IsNegative() {
		return Product{}, shared.Validationf("base cost must be >= 0")
	}
	in.Name = strings.TrimSpace(in.Name)
	return s.repo.Update(ctx, id, in)
}
