package locations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// PgRepository persists locations in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const locationColumns = `id, code, name, type, parent_id, currency, display_order, is_active, created_at, updated_at`

// List returns every location, active or not.
func (r *PgRepository) List(ctx context.Context) ([]Location, error) {
	if r == nil {
		return nil, errors.New("locations repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY display_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Create inserts a location and returns it with generated columns.
func (r *PgRepository) Create(ctx context.Context, loc Location) (Location, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO locations (code, name, type, parent_id, currency, display_order, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING `+locationColumns, loc.Code, loc.Name, string(loc.Type), loc.ParentID, loc.Currency, loc.DisplayOrder, loc.IsActive)
	return scanLocation(row)
}

// UpdateParent rewrites parent_id for a non-HQ location.
func (r *PgRepository) UpdateParent(ctx context.Context, id, parentID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET parent_id=$2, updated_at=NOW() WHERE id=$1 AND type <> 'HQ'`, id, parentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("location %d", id)
	}
	return nil
}

// SetActive toggles the soft-delete flag.
func (r *PgRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("location %d", id)
	}
	return nil
}

func scanLocation(row pgx.Row) (Location, error) {
	var (
		loc Location
		typ string
	)
	if err := row.Scan(&loc.ID, &loc.Code, &loc.Name, &typ, &loc.ParentID, &loc.Currency, &loc.DisplayOrder, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrNotFound
		}
		return Location{}, err
	}
	loc.Type = Type(typ)
	return loc, nil
}
