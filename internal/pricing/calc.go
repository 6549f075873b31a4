// Package pricing derives sellable prices down the location tree.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Computation is the result of ComputeDerivedPrice.
type Computation struct {
	// LocalCost is (parent + transfer) converted into the destination currency.
	LocalCost decimal.Decimal `json:"local_cost"`
	// FinalPrice is LocalCost marked up by every margin, before rounding.
	FinalPrice decimal.Decimal `json:"final_price"`
	// SuggestedPrice is FinalPrice rounded to the currency increment.
	SuggestedPrice decimal.Decimal `json:"suggested_rounded_price"`
}

// Quote is a fully derived price for one (product, location) pair.
type Quote struct {
	Computation
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
}

// ComputeDerivedPrice converts parent price plus transfer cost at rate and
// applies each margin percent as a share of the final price:
// price = localCost / Π(1 - m/100). The result is rounded to increment.
func ComputeDerivedPrice(parentPrice, transferCost, rate decimal.Decimal, margins []decimal.Decimal, increment decimal.Decimal) (Computation, error) {
	if parentPrice.IsNegative() {
		return Computation{}, shared.Validationf("parent price must be >= 0")
	}
	if transferCost.IsNegative() {
		return Computation{}, shared.Validationf("transfer cost must be >= 0")
	}
	if !rate.IsPositive() {
		return Computation{}, shared.Validationf("exchange rate must be positive")
	}
	localCost := parentPrice.Add(transferCost).Mul(rate)
	price := localCost
	for i, m := range margins {
		if err := checkPercent("margin", m); err != nil {
			return Computation{}, shared.Validationf("margin %d: %v", i+1, err)
		}
		price = price.Div(one.Sub(m.Div(hundred)))
	}
	return Computation{
		LocalCost:      localCost,
		FinalPrice:     price,
		SuggestedPrice: RoundTo(price, increment),
	}, nil
}

// DeriveBranchPrice prices an HQ to Branch hop: HQ margin then branch margin
// on top of the product's base cost.
func DeriveBranchPrice(baseCost, transferCost, rate, hqMargin, branchMargin, discount, increment decimal.Decimal) (Quote, error) {
	c, err := ComputeDerivedPrice(baseCost, transferCost, rate, []decimal.Decimal{hqMargin, branchMargin}, increment)
	if err != nil {
		return Quote{}, err
	}
	return applyDiscount(c, discount)
}

// DeriveSubBranchPrice prices a Branch to SubBranch hop: one margin on top of
// the parent branch's discounted price.
func DeriveSubBranchPrice(parentDiscounted, transferCost, rate, subMargin, discount, increment decimal.Decimal) (Quote, error) {
	c, err := ComputeDerivedPrice(parentDiscounted, transferCost, rate, []decimal.Decimal{subMargin}, increment)
	if err != nil {
		return Quote{}, err
	}
	return applyDiscount(c, discount)
}

// DiscountedPrice applies discount percent to a final price without rounding.
func DiscountedPrice(finalPrice, discount decimal.Decimal) decimal.Decimal {
	return finalPrice.Mul(one.Sub(discount.Div(hundred)))
}

func applyDiscount(c Computation, discount decimal.Decimal) (Quote, error) {
	if err := checkPercent("discount", discount); err != nil {
		return Quote{}, shared.Validationf("%v", err)
	}
	return Quote{Computation: c, DiscountedPrice: DiscountedPrice(c.SuggestedPrice, discount)}, nil
}

type percentError struct {
	field string
	value decimal.Decimal
}

func (e percentError) Error() string {
	return e.field + " " + e.value.String() + "% outside [0, 100)"
}

func checkPercent(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThanOrEqual(hundred) {
		return percentError{field: field, value: v}
	}
	return nil
}
