package products

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// Product is a sellable item. SKU and unit never change after creation.
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	ShelfLifeDays int             `json:"shelf_life_days"`
	BaseCost      decimal.Decimal `json:"base_cost"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateInput registers a product.
type CreateInput struct {
	SKU           string          `json:"sku" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Unit          string          `json:"unit" validate:"required,max=20"`
	ShelfLifeDays int             `json:"shelf_life_days" validate:"gte=0"`
	BaseCost      decimal.Decimal `json:"base_cost"`
}

// UpdateInput edits the mutable attributes of a product.
type UpdateInput struct {
	Name     string          `json:"name" validate:"required,max=200"`
	BaseCost decimal.Decimal `json:"base_cost"`
}

// ValidateSKU normalises and checks a SKU against [A-Z0-9-]+.
func ValidateSKU(sku string) (string, error) {
	sku = strings.TrimSpace(sku)
	if !skuPattern.MatchString(sku) {
		return "", shared.Validationf("sku %q must match [A-Z0-9-]+", sku)
	}
	return sku, nil
}
