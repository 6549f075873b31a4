package transfers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// PgRepository persists stock_transfer_requests.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const requestColumns = `id, ref, requested_by, from_location_id, to_location_id, product_id, requested_qty,
status, approved_by, approved_at, rejection_reason, note, created_at, updated_at`

// Create inserts a request.
func (r *PgRepository) Create(ctx context.Context, req Request) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `INSERT INTO stock_transfer_requests
(ref, requested_by, from_location_id, to_location_id, product_id, requested_qty, status, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
RETURNING `+requestColumns,
		req.Ref, req.RequestedBy, req.FromLocationID, req.ToLocationID, req.ProductID, req.Qty, string(req.Status), req.Note))
}

// Get fetches a request by id.
func (r *PgRepository) Get(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM stock_transfer_requests WHERE id=$1`, id))
	if errors.Is(err, shared.ErrNotFound) {
		return Request{}, shared.NotFoundf("transfer request %d", id)
	}
	return req, err
}

// List returns requests touching any of filter.LocationIDs, newest first.
func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM stock_transfer_requests
WHERE ($1::text = '' OR status = $1)
  AND ($2::bigint[] IS NULL OR from_location_id = ANY($2) OR to_location_id = ANY($2))
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, string(filter.Status), filter.LocationIDs, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// CompareAndSet updates the mutable fields while status still equals expected.
func (r *PgRepository) CompareAndSet(ctx context.Context, req Request, expected Status) (Request, error) {
	saved, err := scanRequest(r.pool.QueryRow(ctx, `UPDATE stock_transfer_requests
SET status=$3, approved_by=$4, approved_at=$5, rejection_reason=$6, updated_at=NOW()
WHERE id=$1 AND status=$2
RETURNING `+requestColumns,
		req.ID, string(expected), string(req.Status), req.ApprovedBy, req.ApprovedAt, req.RejectionReason))
	if errors.Is(err, shared.ErrNotFound) {
		return Request{}, shared.ErrConcurrentUpdate
	}
	return saved, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	err := row.Scan(&req.ID, &req.Ref, &req.RequestedBy, &req.FromLocationID, &req.ToLocationID, &req.ProductID, &req.Qty,
		&status, &req.ApprovedBy, &req.ApprovedAt, &req.RejectionReason, &req.Note, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, shared.ErrNotFound
	}
	req.Status = Status(status)
	return req, err
}
