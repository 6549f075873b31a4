package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level tells which derivation produced a config.
type Level string

const (
	// LevelBranch configs are derived from the product base cost at HQ.
	LevelBranch Level = "Branch"
	// LevelSubBranch configs are derived from the parent branch's discounted price.
	LevelSubBranch Level = "SubBranch"
)

// Config is the frozen price of a product at one location. Prices are
// always recomputed from margins, cost and the frozen exchange rate.
type Config struct {
	ID                     int64           `json:"id"`
	ProductID              int64           `json:"product_id"`
	LocationID             int64           `json:"location_id"`
	SourceLocationID       int64           `json:"source_location_id"`
	Level                  Level           `json:"level"`
	Currency               string          `json:"currency"`
	HQMarginPercent        decimal.Decimal `json:"hq_margin_percent"`
	BranchMarginPercent    decimal.Decimal `json:"branch_margin_percent"`
	SubBranchMarginPercent decimal.Decimal `json:"sub_branch_margin_percent"`
	TransferCost           decimal.Decimal `json:"transfer_cost"`
	ExchangeRate           decimal.Decimal `json:"exchange_rate"`
	RateDate               time.Time       `json:"rate_date"`
	LocalCost              decimal.Decimal `json:"local_cost"`
	FinalPrice             decimal.Decimal `json:"final_price"`
	DiscountPercent        decimal.Decimal `json:"discount_percent"`
	DiscountedPrice        decimal.Decimal `json:"discounted_price"`
	TemplateID             *int64          `json:"template_id,omitempty"`
	UpdatedBy              int64           `json:"updated_by"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// BranchConfigInput prices a product at a Branch.
type BranchConfigInput struct {
	ProductID           int64           `json:"product_id" validate:"required,gt=0"`
	LocationID          int64           `json:"location_id" validate:"required,gt=0"`
	HQMarginPercent     decimal.Decimal `json:"hq_margin_percent"`
	BranchMarginPercent decimal.Decimal `json:"branch_margin_percent"`
	TransferCost        decimal.Decimal `json:"transfer_cost"`
	DiscountPercent     decimal.Decimal `json:"discount_percent"`
}

// SubBranchConfigInput prices a product at a SubBranch.
type SubBranchConfigInput struct {
	ProductID              int64           `json:"product_id" validate:"required,gt=0"`
	LocationID             int64           `json:"location_id" validate:"required,gt=0"`
	SubBranchMarginPercent decimal.Decimal `json:"sub_branch_margin_percent"`
	TransferCost           decimal.Decimal `json:"transfer_cost"`
	DiscountPercent        decimal.Decimal `json:"discount_percent"`
}

// ConfigFilter narrows config listings.
type ConfigFilter struct {
	LocationIDs []int64
	ProductID   int64
	Limit       int
	Offset      int
}

// Template is a reusable set of margins applied in bulk.
type Template struct {
	ID                     int64           `json:"id"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	HQMarginPercent        decimal.Decimal `json:"hq_margin_percent"`
	BranchMarginPercent    decimal.Decimal `json:"branch_margin_percent"`
	SubBranchMarginPercent decimal.Decimal `json:"sub_branch_margin_percent"`
	DefaultTransferCost    decimal.Decimal `json:"default_transfer_cost"`
	DiscountPercent        decimal.Decimal `json:"discount_percent"`
	// TargetCurrency, when set, restricts the template to locations in that currency.
	TargetCurrency string    `json:"target_currency,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TemplateInput creates or replaces a template.
type TemplateInput struct {
	Name                   string          `json:"name" validate:"required,max=120"`
	Description            string          `json:"description" validate:"max=500"`
	HQMarginPercent        decimal.Decimal `json:"hq_margin_percent"`
	BranchMarginPercent    decimal.Decimal `json:"branch_margin_percent"`
	SubBranchMarginPercent decimal.Decimal `json:"sub_branch_margin_percent"`
	DefaultTransferCost    decimal.Decimal `json:"default_transfer_cost"`
	DiscountPercent        decimal.Decimal `json:"discount_percent"`
	TargetCurrency         string          `json:"target_currency" validate:"omitempty,len=3"`
	IsActive               *bool           `json:"is_active"`
}

// Application records one bulk template apply.
type Application struct {
	ID          int64     `json:"id"`
	TemplateID  int64     `json:"template_id"`
	LocationIDs []int64   `json:"location_ids"`
	ProductIDs  []int64   `json:"product_ids"`
	RowsWritten int       `json:"rows_written"`
	AppliedBy   int64     `json:"applied_by"`
	AppliedAt   time.Time `json:"applied_at"`
}

// ApplyInput targets a template at locations and products.
type ApplyInput struct {
	LocationIDs []int64 `json:"location_ids" validate:"required,min=1,dive,gt=0"`
	ProductIDs  []int64 `json:"product_ids" validate:"required,min=1,dive,gt=0"`
}

// Source names where a chain hop's price came from.
type Source string

const (
	SourceBaseCost Source = "base_cost"
	SourceConfig   Source = "pricing_config"
)

// ChainHop is one location on the HQ to target price walk.
type ChainHop struct {
	LocationID    int64             `json:"location_id"`
	LocationName  string            `json:"location_name"`
	Currency      string            `json:"currency"`
	Price         decimal.Decimal   `json:"price"`
	MarginApplied []decimal.Decimal `json:"margin_applied"`
	Source        Source            `json:"source"`
}
