package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// PgRepository stores rates in the exchange_rates table, unique on (from, to, effective_date).
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const rateColumns = `id, from_currency, to_currency, effective_date, rate, created_at`

func (r *PgRepository) Latest(ctx context.Context, from, to string, asOf time.Time) (ExchangeRate, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+rateColumns+` FROM exchange_rates
WHERE from_currency=$1 AND to_currency=$2 AND effective_date <= $3
ORDER BY effective_date DESC LIMIT 1`, from, to, asOf)
	return scanRate(row)
}

func (r *PgRepository) Upsert(ctx context.Context, rate ExchangeRate) (ExchangeRate, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO exchange_rates (from_currency, to_currency, effective_date, rate, created_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (from_currency, to_currency, effective_date) DO UPDATE SET rate = EXCLUDED.rate
RETURNING `+rateColumns, rate.FromCurrency, rate.ToCurrency, rate.EffectiveDate, rate.Rate)
	return scanRate(row)
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]ExchangeRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rateColumns+` FROM exchange_rates
WHERE ($1 = '' OR from_currency = $1) AND ($2 = '' OR to_currency = $2)
ORDER BY effective_date DESC, from_currency, to_currency
LIMIT $3 OFFSET $4`, filter.FromCurrency, filter.ToCurrency, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExchangeRate{}
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

func scanRate(row pgx.Row) (ExchangeRate, error) {
	var rate ExchangeRate
	if err := row.Scan(&rate.ID, &rate.FromCurrency, &rate.ToCurrency, &rate.EffectiveDate, &rate.Rate, &rate.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ExchangeRate{}, shared.ErrNotFound
		}
		return ExchangeRate{}, err
	}
	return rate, nil
}
