package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// PgRepository persists products in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const productColumns = `id, sku, name, unit, shelf_life_days, base_cost, created_at, updated_at`

func (r *PgRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, shared.ErrNotFound) {
		return Product{}, shared.NotFoundf("product %d", id)
	}
	return p, err
}

func (r *PgRepository) List(ctx context.Context, filter shared.ListFilter) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku LIMIT $1 OFFSET $2`, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, unit, shelf_life_days, base_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING `+productColumns, p.SKU, p.Name, p.Unit, p.ShelfLifeDays, p.BaseCost))
}

func (r *PgRepository) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET name=$2, base_cost=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+productColumns, id, in.Name, in.BaseCost))
	if errors.Is(err, shared.ErrNotFound) {
		return Product{}, shared.NotFoundf("product %d", id)
	}
	return p, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.ShelfLifeDays, &p.BaseCost, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}
