package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/db"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the batch ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const batchColumns = `id, product_id, location_id, batch_no, unit_cost, manufactured_date, expiry_date,
quality_status, qty_on_hand, qty_reserved, version, created_at, updated_at`

const fifoOrder = `expiry_date ASC, created_at ASC, id ASC`

func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE id=$1`, id))
	if errors.Is(err, shared.ErrNotFound) {
		return Batch{}, shared.NotFoundf("batch %d", id)
	}
	return b, err
}

func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM stock_batches
WHERE ($1::bigint[] IS NULL OR location_id = ANY($1))
  AND ($2 = 0 OR product_id = $2)
  AND ($3 OR qty_on_hand > 0)
ORDER BY location_id, product_id, `+fifoOrder+`
LIMIT $4 OFFSET $5`, filter.LocationIDs, filter.ProductID, filter.IncludeEmpty, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (r *Repository) AvailableQty(ctx context.Context, locationID, productID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty_on_hand - qty_reserved), 0)::bigint FROM stock_batches
WHERE location_id=$1 AND product_id=$2 AND quality_status='OK'`, locationID, productID).Scan(&qty)
	return qty, err
}

func (r *Repository) ExpiringBefore(ctx context.Context, cutoff time.Time, locationIDs []int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM stock_batches
WHERE qty_on_hand > 0 AND expiry_date <= $1 AND ($2::bigint[] IS NULL OR location_id = ANY($2))
ORDER BY `+fifoOrder, cutoff, locationIDs)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var ref any
	if filter.Ref != uuid.Nil {
		ref = filter.Ref
	}
	rows, err := r.pool.Query(ctx, `SELECT id, ref, movement_type, batch_id, location_id, product_id, qty, actor_id, note, created_at
FROM stock_movements
WHERE ($1::bigint[] IS NULL OR location_id = ANY($1))
  AND ($2 = 0 OR product_id = $2)
  AND ($3::uuid IS NULL OR ref = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`, filter.LocationIDs, filter.ProductID, ref, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		var (
			m       Movement
			actorID *int64
		)
		if err := rows.Scan(&m.ID, &m.Ref, &m.Type, &m.BatchID, &m.LocationID, &m.ProductID, &m.Qty, &actorID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			m.ActorID = *actorID
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *txRepo) LockBatches(ctx context.Context, locationID, productID int64) ([]Batch, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+batchColumns+` FROM stock_batches
WHERE location_id=$1 AND product_id=$2 AND qty_on_hand > 0
ORDER BY `+fifoOrder+`
FOR UPDATE`, locationID, productID)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (t *txRepo) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	b, err := scanBatch(t.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, shared.ErrNotFound) {
		return Batch{}, shared.NotFoundf("batch %d", id)
	}
	return b, err
}

func (t *txRepo) FindBatchForUpdate(ctx context.Context, locationID, productID int64, batchNo string, expiry time.Time, quality QualityStatus) (Batch, error) {
	return scanBatch(t.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches
WHERE location_id=$1 AND product_id=$2 AND batch_no=$3 AND expiry_date=$4 AND quality_status=$5
ORDER BY id LIMIT 1 FOR UPDATE`, locationID, productID, batchNo, expiry, string(quality)))
}

func (t *txRepo) UpdateBatch(ctx context.Context, b Batch) (Batch, error) {
	updated, err := scanBatch(t.tx.QueryRow(ctx, `UPDATE stock_batches
SET qty_on_hand=$3, qty_reserved=$4, quality_status=$5, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2
RETURNING `+batchColumns, b.ID, b.Version, b.QtyOnHand, b.QtyReserved, b.QualityStatus))
	if errors.Is(err, shared.ErrNotFound) {
		return Batch{}, shared.ErrConcurrentUpdate
	}
	return updated, err
}

func (t *txRepo) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	return scanBatch(t.tx.QueryRow(ctx, `INSERT INTO stock_batches (product_id, location_id, batch_no, unit_cost,
manufactured_date, expiry_date, quality_status, qty_on_hand, qty_reserved, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1,NOW(),NOW())
RETURNING `+batchColumns,
		b.ProductID, b.LocationID, b.BatchNo, b.UnitCost, b.ManufacturedDate, b.ExpiryDate, b.QualityStatus, b.QtyOnHand, b.QtyReserved))
}

func (t *txRepo) InsertMovements(ctx context.Context, movements []Movement) error {
	if len(movements) == 0 {
		return nil
	}
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"stock_movements"},
		[]string{"ref", "movement_type", "batch_id", "location_id", "product_id", "qty", "actor_id", "note", "created_at"},
		pgx.CopyFromSlice(len(movements), func(i int) ([]any, error) {
			m := movements[i]
			var actor any
			if m.ActorID != 0 {
				actor = m.ActorID
			}
			return []any{m.Ref, string(m.Type), m.BatchID, m.LocationID, m.ProductID, m.Qty, actor, m.Note, m.CreatedAt}, nil
		}))
	return err
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	defer rows.Close()
	out := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.LocationID, &b.BatchNo, &b.UnitCost, &b.ManufacturedDate, &b.ExpiryDate,
		&b.QualityStatus, &b.QtyOnHand, &b.QtyReserved, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.ErrNotFound
	}
	return b, err
}
