// Package fx resolves time-versioned exchange rates between ISO currencies.
package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of effective dates.
const DateLayout = "2006-01-02"

// ExchangeRate converts one unit of FromCurrency into ToCurrency from EffectiveDate on.
type ExchangeRate struct {
	ID            int64           `json:"id"`
	FromCurrency  string          `json:"from_currency"`
	ToCurrency    string          `json:"to_currency"`
	EffectiveDate time.Time       `json:"effective_date"`
	Rate          decimal.Decimal `json:"rate"`
	CreatedAt     time.Time       `json:"created_at"`
}

// UpsertInput creates or overwrites the rate of a pair on one date.
type UpsertInput struct {
	FromCurrency  string          `json:"from_currency" validate:"required,len=3"`
	ToCurrency    string          `json:"to_currency" validate:"required,len=3"`
	EffectiveDate string          `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Rate          decimal.Decimal `json:"rate"`
}

// ListFilter narrows rate listings to a pair.
type ListFilter struct {
	FromCurrency string
	ToCurrency   string
	Limit        int
	Offset       int
}

// Day truncates t to midnight UTC, the granularity of effective dates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date. An empty string means today.
func ParseDay(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return Day(now), nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
