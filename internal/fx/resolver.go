package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Repository is the persistence port for exchange rates.
type Repository interface {
	// Latest returns the row with the greatest effective_date <= asOf, or shared.ErrNotFound.
	Latest(ctx context.Context, from, to string, asOf time.Time) (ExchangeRate, error)
	Upsert(ctx context.Context, rate ExchangeRate) (ExchangeRate, error)
	List(ctx context.Context, filter ListFilter) ([]ExchangeRate, error)
}

// Resolver answers "what is the rate from A to B on day D".
type Resolver struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewResolver wires the resolver. cache may be nil.
func NewResolver(repo Repository, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, cache: cache, logger: logger}
}

// Resolve returns the applicable rate. Identical currencies resolve to 1 without lookup.
func (r *Resolver) Resolve(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	rate, err := r.Lookup(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Rate, nil
}

// Lookup is Resolve returning the whole row, so callers can record which rate they froze.
func (r *Resolver) Lookup(ctx context.Context, from, to string, asOf time.Time) (ExchangeRate, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return ExchangeRate{}, err
	}
	day := Day(asOf)
	if from == to {
		return ExchangeRate{FromCurrency: from, ToCurrency: to, EffectiveDate: day, Rate: decimal.NewFromInt(1)}, nil
	}
	if cached, ok, err := r.cache.Get(ctx, from, to, day); err != nil {
		r.logger.Warn("fx cache read", slog.String("pair", from+to), slog.Any("error", err))
	} else if ok {
		return cached, nil
	}
	rate, err := r.repo.Latest(ctx, from, to, day)
	if errors.Is(err, shared.ErrNotFound) {
		return ExchangeRate{}, &shared.RateNotFoundError{From: from, To: to}
	}
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("fx: lookup %s->%s: %w", from, to, err)
	}
	if err := r.cache.Put(ctx, day, rate); err != nil {
		r.logger.Warn("fx cache write", slog.String("pair", from+to), slog.Any("error", err))
	}
	return rate, nil
}

// Upsert stores a rate, replacing any row with the same pair and date.
func (r *Resolver) Upsert(ctx context.Context, in UpsertInput) (ExchangeRate, error) {
	from, to, err := normalizePair(in.FromCurrency, in.ToCurrency)
	if err != nil {
		return ExchangeRate{}, err
	}
	if from == to {
		return ExchangeRate{}, shared.Validationf("rate %s->%s is implicitly 1", from, to)
	}
	if !in.Rate.IsPositive() {
		return ExchangeRate{}, shared.Validationf("rate must be positive")
	}
	day, err := time.Parse(DateLayout, in.EffectiveDate)
	if err != nil {
		return ExchangeRate{}, shared.Validationf("effective date %q: %v", in.EffectiveDate, err)
	}
	saved, err := r.repo.Upsert(ctx, ExchangeRate{FromCurrency: from, ToCurrency: to, EffectiveDate: day, Rate: in.Rate})
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("fx: upsert: %w", err)
	}
	if err := r.cache.Bump(ctx); err != nil {
		r.logger.Warn("fx cache bump", slog.Any("error", err))
	}
	r.logger.Info("exchange rate saved",
		slog.String("from", from), slog.String("to", to),
		slog.String("effective_date", in.EffectiveDate), slog.String("rate", in.Rate.String()))
	return saved, nil
}

// List returns stored rates, newest first.
func (r *Resolver) List(ctx context.Context, filter ListFilter) ([]ExchangeRate, error) {
	var err error
	if filter.FromCurrency != "" {
		if filter.FromCurrency, err = shared.NormalizeCurrency(filter.FromCurrency); err != nil {
			return nil, err
		}
	}
	if filter.ToCurrency != "" {
		if filter.ToCurrency, err = shared.NormalizeCurrency(filter.ToCurrency); err != nil {
			return nil, err
		}
	}
	page := shared.ListFilter{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return r.repo.List(ctx, filter)
}

func normalizePair(from, to string) (string, string, error) {
	f, err := shared.NormalizeCurrency(from)
	if err != nil {
		return "", "", err
	}
	t, err := shared.NormalizeCurrency(to)
	if err != nil {
		return "", "", err
	}
	return f, t, nil
}
