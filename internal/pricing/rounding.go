package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// RoundingPolicy maps a currency to the increment final prices snap to.
// Currencies without an override use their ISO 4217 minor unit.
type RoundingPolicy struct {
	increments map[string]decimal.Decimal
}

// NewRoundingPolicy builds a policy from "CUR" -> "increment" pairs, e.g. KRW -> 100.
func NewRoundingPolicy(overrides map[string]string) (RoundingPolicy, error) {
	p := RoundingPolicy{increments: make(map[string]decimal.Decimal, len(overrides))}
	for cur, raw := range overrides {
		code := strings.ToUpper(strings.TrimSpace(cur))
		if _, err := currency.ParseISO(code); err != nil {
			return RoundingPolicy{}, fmt.Errorf("pricing: rounding currency %q: %w", cur, err)
		}
		inc, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return RoundingPolicy{}, fmt.Errorf("pricing: rounding increment for %s: %w", code, err)
		}
		if !inc.IsPositive() {
			return RoundingPolicy{}, fmt.Errorf("pricing: rounding increment for %s must be positive", code)
		}
		p.increments[code] = inc
	}
	return p, nil
}

// Increment returns the rounding step for cur.
func (p RoundingPolicy) Increment(cur string) decimal.Decimal {
	code := strings.ToUpper(cur)
	if inc, ok := p.increments[code]; ok {
		return inc
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return decimal.New(1, -2)
	}
	scale, step := currency.Standard.Rounding(unit)
	return decimal.New(int64(step), -int32(scale))
}

// Round snaps amount to the increment of cur.
func (p RoundingPolicy) Round(amount decimal.Decimal, cur string) decimal.Decimal {
	return RoundTo(amount, p.Increment(cur))
}

// RoundTo rounds amount to the nearest multiple of increment, halves away from zero.
// A non-positive increment leaves amount untouched.
func RoundTo(amount, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return amount
	}
	return amount.Div(increment).Round(0).Mul(increment)
}
