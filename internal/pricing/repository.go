package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/db"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRepository persists pricing configs, templates and apply history.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type txRepo struct {
	q querier
}

// WithTx runs fn in a repeatable-read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// WithSnapshot runs fn against one read-only snapshot.
func (r *PgRepository) WithSnapshot(ctx context.Context, fn func(context.Context, ReadRepository) error) error {
	return db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const configColumns = `id, product_id, location_id, source_location_id, level, currency,
hq_margin_percent, branch_margin_percent, sub_branch_margin_percent, transfer_cost,
exchange_rate, rate_date, local_cost, final_price, discount_percent, discounted_price,
template_id, updated_by, created_at, updated_at`

func (t *txRepo) GetConfig(ctx context.Context, productID, locationID int64) (Config, error) {
	cfg, err := scanConfig(t.q.QueryRow(ctx, `SELECT `+configColumns+` FROM pricing_configs
WHERE product_id=$1 AND location_id=$2`, productID, locationID))
	if errors.Is(err, shared.ErrNotFound) {
		return Config{}, shared.NotFoundf("pricing config for product %d at location %d", productID, locationID)
	}
	return cfg, err
}

func (t *txRepo) UpsertConfig(ctx context.Context, c Config) (Config, error) {
	return scanConfig(t.q.QueryRow(ctx, `INSERT INTO pricing_configs (product_id, location_id, source_location_id, level, currency,
hq_margin_percent, branch_margin_percent, sub_branch_margin_percent, transfer_cost,
exchange_rate, rate_date, local_cost, final_price, discount_percent, discounted_price,
template_id, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
ON CONFLICT (product_id, location_id) DO UPDATE SET
	source_location_id = EXCLUDED.source_location_id,
	level = EXCLUDED.level,
	currency = EXCLUDED.currency,
	hq_margin_percent = EXCLUDED.hq_margin_percent,
	branch_margin_percent = EXCLUDED.branch_margin_percent,
	sub_branch_margin_percent = EXCLUDED.sub_branch_margin_percent,
	transfer_cost = EXCLUDED.transfer_cost,
	exchange_rate = EXCLUDED.exchange_rate,
	rate_date = EXCLUDED.rate_date,
	local_cost = EXCLUDED.local_cost,
	final_price = EXCLUDED.final_price,
	discount_percent = EXCLUDED.discount_percent,
	discounted_price = EXCLUDED.discounted_price,
	template_id = EXCLUDED.template_id,
	updated_by = EXCLUDED.updated_by,
	updated_at = NOW()
RETURNING `+configColumns,
		c.ProductID, c.LocationID, c.SourceLocationID, c.Level, c.Currency,
		c.HQMarginPercent, c.BranchMarginPercent, c.SubBranchMarginPercent, c.TransferCost,
		c.ExchangeRate, c.RateDate, c.LocalCost, c.FinalPrice, c.DiscountPercent, c.DiscountedPrice,
		c.TemplateID, c.UpdatedBy))
}

func (t *txRepo) InsertApplication(ctx context.Context, app Application) (Application, error) {
	err := t.q.QueryRow(ctx, `INSERT INTO pricing_template_applications (template_id, location_ids, product_ids, rows_written, applied_by, applied_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		app.TemplateID, app.LocationIDs, app.ProductIDs, app.RowsWritten, app.AppliedBy, app.AppliedAt).Scan(&app.ID)
	return app, err
}

func (r *PgRepository) ListConfigs(ctx context.Context, filter ConfigFilter) ([]Config, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+configColumns+` FROM pricing_configs
WHERE ($1::bigint[] IS NULL OR location_id = ANY($1)) AND ($2 = 0 OR product_id = $2)
ORDER BY location_id, product_id LIMIT $3 OFFSET $4`, filter.LocationIDs, filter.ProductID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Config{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

const templateColumns = `id, name, description, hq_margin_percent, branch_margin_percent, sub_branch_margin_percent,
default_transfer_cost, discount_percent, target_currency, is_active, created_by, created_at, updated_at`

func (r *PgRepository) GetTemplate(ctx context.Context, id int64) (Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM pricing_templates WHERE id=$1`, id))
	if errors.Is(err, shared.ErrNotFound) {
		return Template{}, shared.NotFoundf("pricing template %d", id)
	}
	return t, err
}

func (r *PgRepository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM pricing_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `INSERT INTO pricing_templates (name, description, hq_margin_percent, branch_margin_percent,
sub_branch_margin_percent, default_transfer_cost, discount_percent, target_currency, is_active, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW()) RETURNING `+templateColumns,
		t.Name, t.Description, t.HQMarginPercent, t.BranchMarginPercent, t.SubBranchMarginPercent,
		t.DefaultTransferCost, t.DiscountPercent, t.TargetCurrency, t.IsActive, t.CreatedBy))
}

func (r *PgRepository) UpdateTemplate(ctx context.Context, t Template) (Template, error) {
	updated, err := scanTemplate(r.pool.QueryRow(ctx, `UPDATE pricing_templates SET name=$2, description=$3,
hq_margin_percent=$4, branch_margin_percent=$5, sub_branch_margin_percent=$6, default_transfer_cost=$7,
discount_percent=$8, target_currency=$9, is_active=$10, updated_at=NOW()
WHERE id=$1 RETURNING `+templateColumns,
		t.ID, t.Name, t.Description, t.HQMarginPercent, t.BranchMarginPercent, t.SubBranchMarginPercent,
		t.DefaultTransferCost, t.DiscountPercent, t.TargetCurrency, t.IsActive))
	if errors.Is(err, shared.ErrNotFound) {
		return Template{}, shared.NotFoundf("pricing template %d", t.ID)
	}
	return updated, err
}

func (r *PgRepository) ListApplications(ctx context.Context, templateID int64) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, template_id, location_ids, product_ids, rows_written, applied_by, applied_at
FROM pricing_template_applications WHERE template_id=$1 ORDER BY applied_at DESC, id DESC`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Application{}
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.LocationIDs, &a.ProductIDs, &a.RowsWritten, &a.AppliedBy, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanConfig(row pgx.Row) (Config, error) {
	var c Config
	err := row.Scan(&c.ID, &c.ProductID, &c.LocationID, &c.SourceLocationID, &c.Level, &c.Currency,
		&c.HQMarginPercent, &c.BranchMarginPercent, &c.SubBranchMarginPercent, &c.TransferCost,
		&c.ExchangeRate, &c.RateDate, &c.LocalCost, &c.FinalPrice, &c.DiscountPercent, &c.DiscountedPrice,
		&c.TemplateID, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, shared.ErrNotFound
	}
	return c, err
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.HQMarginPercent, &t.BranchMarginPercent, &t.SubBranchMarginPercent,
		&t.DefaultTransferCost, &t.DiscountPercent, &t.TargetCurrency, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, shared.ErrNotFound
	}
	return t, err
}
