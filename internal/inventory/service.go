package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/db"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
	AvailableQty(ctx context.Context, locationID, productID int64) (int64, error)
	ExpiringBefore(ctx context.Context, cutoff time.Time, locationIDs []int64) ([]Batch, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// TxRepository is the transactional side of the repository. Batches returned
// by the lock methods stay locked until the transaction ends.
type TxRepository interface {
	// LockBatches returns every batch with stock of a product at a location.
	LockBatches(ctx context.Context, locationID, productID int64) ([]Batch, error)
	GetBatchForUpdate(ctx context.Context, id int64) (Batch, error)
	// FindBatchForUpdate matches a destination batch by batch number, expiry and quality.
	FindBatchForUpdate(ctx context.Context, locationID, productID int64, batchNo string, expiry time.Time, quality QualityStatus) (Batch, error)
	// UpdateBatch writes quantities and quality when Version still matches,
	// otherwise it fails with shared.ErrConcurrentUpdate.
	UpdateBatch(ctx context.Context, b Batch) (Batch, error)
	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	InsertMovements(ctx context.Context, movements []Movement) error
}

// LedgerConfig groups optional settings.
type LedgerConfig struct {
	MaxRetries int
	Observer   Observer
}

// Ledger coordinates batch-level stock operations.
type Ledger struct {
	repo       RepositoryPort
	audit      shared.Auditor
	logger     *slog.Logger
	observer   Observer
	maxRetries int
	now        func() time.Time
}

// NewLedger builds Ledger.
func NewLedger(repo RepositoryPort, audit shared.Auditor, logger *slog.Logger, cfg LedgerConfig) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Ledger{repo: repo, audit: audit, logger: logger, observer: cfg.Observer, maxRetries: cfg.MaxRetries, now: time.Now}
}

// AvailableQty sums qty available over OK batches.
func (l *Ledger) AvailableQty(ctx context.Context, locationID, productID int64) (int64, error) {
	if locationID <= 0 || productID <= 0 {
		return 0, shared.Validationf("location and product are required")
	}
	return l.repo.AvailableQty(ctx, locationID, productID)
}

// ListBatches returns batches, FIFO ordered per location and product.
func (l *Ledger) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	page := shared.ListFilter{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return l.repo.ListBatches(ctx, filter)
}

// ListMovements returns journal lines, newest first.
func (l *Ledger) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	page := shared.ListFilter{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return l.repo.ListMovements(ctx, filter)
}

// NearExpiry lists batches with stock expiring within the given number of days.
func (l *Ledger) NearExpiry(ctx context.Context, withinDays int, locationIDs []int64) ([]Batch, error) {
	if withinDays < 0 {
		return nil, shared.Validationf("days must be >= 0")
	}
	cutoff := l.now().UTC().AddDate(0, 0, withinDays)
	return l.repo.ExpiringBefore(ctx, cutoff, locationIDs)
}

// Allocate reserves qty in FIFO order and returns the batches it came from.
// Nothing is reserved when stock is short.
func (l *Ledger) Allocate(ctx context.Context, req StockRequest) ([]Allocation, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	ref := uuid.New()
	var plan []Allocation
	err := l.mutate(ctx, "allocate", func(ctx context.Context, tx TxRepository) error {
		batches, err := tx.LockBatches(ctx, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		plan, err = PlanAllocation(req.LocationID, req.ProductID, batches, req.Qty)
		if err != nil {
			return err
		}
		byID := indexBatches(batches)
		movements := make([]Movement, 0, len(plan))
		for _, a := range plan {
			b := byID[a.BatchID]
			b.QtyReserved += a.Qty
			if _, err := tx.UpdateBatch(ctx, b); err != nil {
				return err
			}
			movements = append(movements, l.movement(ref, MovementReserve, b, a.Qty, req.ActorID, req.Note))
		}
		return tx.InsertMovements(ctx, movements)
	})
	if err != nil {
		return nil, err
	}
	l.record(ctx, req.ActorID, "stock:reserve", ref, map[string]any{
		"location_id": req.LocationID, "product_id": req.ProductID, "qty": req.Qty,
	})
	return plan, nil
}

// Reserve is Allocate for callers that do not need the batch breakdown.
func (l *Ledger) Reserve(ctx context.Context, req StockRequest) error {
	_, err := l.Allocate(ctx, req)
	return err
}

// Release hands back reserved quantity, oldest expiry first.
func (l *Ledger) Release(ctx context.Context, req StockRequest) ([]Allocation, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	ref := uuid.New()
	var plan []Allocation
	err := l.mutate(ctx, "release", func(ctx context.Context, tx TxRepository) error {
		batches, err := tx.LockBatches(ctx, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		plan, err = PlanRelease(batches, req.Qty)
		if err != nil {
			return err
		}
		byID := indexBatches(batches)
		movements := make([]Movement, 0, len(plan))
		for _, a := range plan {
			b := byID[a.BatchID]
			b.QtyReserved -= a.Qty
			if _, err := tx.UpdateBatch(ctx, b); err != nil {
				return err
			}
			movements = append(movements, l.movement(ref, MovementRelease, b, a.Qty, req.ActorID, req.Note))
		}
		return tx.InsertMovements(ctx, movements)
	})
	if err != nil {
		return nil, err
	}
	l.record(ctx, req.ActorID, "stock:release", ref, map[string]any{
		"location_id": req.LocationID, "product_id": req.ProductID, "qty": req.Qty,
	})
	return plan, nil
}

// ConsumeForSale takes available stock in FIFO order straight off qty_on_hand.
func (l *Ledger) ConsumeForSale(ctx context.Context, req StockRequest) ([]Allocation, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	ref := uuid.New()
	var plan []Allocation
	err := l.mutate(ctx, "sale", func(ctx context.Context, tx TxRepository) error {
		batches, err := tx.LockBatches(ctx, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		plan, err = PlanAllocation(req.LocationID, req.ProductID, batches, req.Qty)
		if err != nil {
			return err
		}
		byID := indexBatches(batches)
		movements := make([]Movement, 0, len(plan))
		for _, a := range plan {
			b := byID[a.BatchID]
			b.QtyOnHand -= a.Qty
			if _, err := tx.UpdateBatch(ctx, b); err != nil {
				return err
			}
			movements = append(movements, l.movement(ref, MovementSale, b, a.Qty, req.ActorID, req.Note))
		}
		return tx.InsertMovements(ctx, movements)
	})
	if err != nil {
		return nil, err
	}
	l.record(ctx, req.ActorID, "stock:sale", ref, map[string]any{
		"location_id": req.LocationID, "product_id": req.ProductID, "qty": req.Qty,
	})
	return plan, nil
}

// Transfer moves qty from one location to another in a single transaction.
// Each source batch either merges into a destination batch with the same
// batch number, expiry and quality or is copied as a new batch.
func (l *Ledger) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.FromLocationID <= 0 || in.ToLocationID <= 0 || in.ProductID <= 0 {
		return TransferResult{}, shared.Validationf("locations and product are required")
	}
	if in.FromLocationID == in.ToLocationID {
		return TransferResult{}, shared.Validationf("source and destination must differ")
	}
	if in.Qty <= 0 {
		return TransferResult{}, shared.Validationf("quantity must be positive")
	}
	ref := in.Ref
	if ref == uuid.Nil {
		ref = uuid.New()
	}
	var result TransferResult
	err := l.mutate(ctx, "transfer", func(ctx context.Context, tx TxRepository) error {
		result = TransferResult{Ref: ref}
		batches, err := tx.LockBatches(ctx, in.FromLocationID, in.ProductID)
		if err != nil {
			return err
		}
		plan, err := PlanAllocation(in.FromLocationID, in.ProductID, batches, in.Qty)
		if err != nil {
			return err
		}
		byID := indexBatches(batches)
		movements := make([]Movement, 0, 2*len(plan))
		for _, a := range plan {
			src := byID[a.BatchID]
			src.QtyOnHand -= a.Qty
			if _, err := tx.UpdateBatch(ctx, src); err != nil {
				return err
			}
			movements = append(movements, l.movement(ref, MovementTransferOut, src, a.Qty, in.ActorID, in.Note))

			dst, err := tx.FindBatchForUpdate(ctx, in.ToLocationID, in.ProductID, src.BatchNo, src.ExpiryDate, src.QualityStatus)
			switch {
			case err == nil:
				dst.QtyOnHand += a.Qty
				dst, err = tx.UpdateBatch(ctx, dst)
			case errors.Is(err, shared.ErrNotFound):
				dst, err = tx.InsertBatch(ctx, Batch{
					ProductID:        in.ProductID,
					LocationID:       in.ToLocationID,
					BatchNo:          src.BatchNo,
					UnitCost:         src.UnitCost,
					ManufacturedDate: src.ManufacturedDate,
					ExpiryDate:       src.ExpiryDate,
					QualityStatus:    src.QualityStatus,
					QtyOnHand:        a.Qty,
				})
			}
			if err != nil {
				return err
			}
			movements = append(movements, l.movement(ref, MovementTransferIn, dst, a.Qty, in.ActorID, in.Note))
			result.Allocations = append(result.Allocations, a)
			result.Destination = append(result.Destination, dst)
		}
		return tx.InsertMovements(ctx, movements)
	})
	if err != nil {
		return TransferResult{}, err
	}
	l.logger.Info("stock transferred",
		slog.String("ref", ref.String()),
		slog.Int64("from", in.FromLocationID),
		slog.Int64("to", in.ToLocationID),
		slog.Int64("product_id", in.ProductID),
		slog.Int64("qty", in.Qty))
	l.record(ctx, in.ActorID, "stock:transfer", ref, map[string]any{
		"from_location_id": in.FromLocationID, "to_location_id": in.ToLocationID,
		"product_id": in.ProductID, "qty": in.Qty,
	})
	return result, nil
}

// Receive inserts new batches from a goods receipt.
func (l *Ledger) Receive(ctx context.Context, in ReceiveInput) ([]Batch, error) {
	if in.LocationID <= 0 || in.ProductID <= 0 {
		return nil, shared.Validationf("location and product are required")
	}
	if len(in.Items) == 0 {
		return nil, shared.Validationf("at least one item is required")
	}
	items := make([]ReceiveItem, len(in.Items))
	for i, item := range in.Items {
		item.BatchNo = strings.TrimSpace(item.BatchNo)
		if item.BatchNo == "" {
			return nil, shared.Validationf("item %d: batch number is required", i+1)
		}
		if item.Qty <= 0 {
			return nil, shared.Validationf("item %d: quantity must be positive", i+1)
		}
		if item.UnitCost.IsNegative() {
			return nil, shared.Validationf("item %d: unit cost must be >= 0", i+1)
		}
		if item.ExpiryDate.IsZero() {
			return nil, shared.Validationf("item %d: expiry date is required", i+1)
		}
		if item.ManufacturedDate != nil && item.ManufacturedDate.After(item.ExpiryDate) {
			return nil, shared.Validationf("item %d: manufactured after expiry", i+1)
		}
		if item.QualityStatus == "" {
			item.QualityStatus = QualityOK
		}
		if !item.QualityStatus.Valid() {
			return nil, shared.Validationf("item %d: unknown quality status %q", i+1, item.QualityStatus)
		}
		items[i] = item
	}
	ref := uuid.New()
	var created []Batch
	err := l.mutate(ctx, "receive", func(ctx context.Context, tx TxRepository) error {
		created = created[:0]
		movements := make([]Movement, 0, len(items))
		for _, item := range items {
			b, err := tx.InsertBatch(ctx, Batch{
				ProductID:        in.ProductID,
				LocationID:       in.LocationID,
				BatchNo:          item.BatchNo,
				UnitCost:         item.UnitCost,
				ManufacturedDate: item.ManufacturedDate,
				ExpiryDate:       item.ExpiryDate,
				QualityStatus:    item.QualityStatus,
				QtyOnHand:        item.Qty,
			})
			if err != nil {
				return err
			}
			created = append(created, b)
			movements = append(movements, l.movement(ref, MovementReceive, b, item.Qty, in.ActorID, in.Note))
		}
		return tx.InsertMovements(ctx, movements)
	})
	if err != nil {
		return nil, err
	}
	l.record(ctx, in.ActorID, "stock:receive", ref, map[string]any{
		"location_id": in.LocationID, "product_id": in.ProductID, "batches": len(created),
	})
	return created, nil
}

// UpdateQuality flags a batch. Reserved stock stays reserved; only OK
// batches are eligible for new allocations.
func (l *Ledger) UpdateQuality(ctx context.Context, batchID int64, in QualityInput) (Batch, error) {
	if batchID <= 0 {
		return Batch{}, shared.Validationf("invalid batch id")
	}
	if !in.Status.Valid() {
		return Batch{}, shared.Validationf("unknown quality status %q", in.Status)
	}
	ref := uuid.New()
	var updated Batch
	err := l.mutate(ctx, "quality", func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.QualityStatus == in.Status {
			updated = b
			return nil
		}
		note := fmt.Sprintf("%s -> %s", b.QualityStatus, in.Status)
		if in.Note != "" {
			note += ": " + in.Note
		}
		b.QualityStatus = in.Status
		if updated, err = tx.UpdateBatch(ctx, b); err != nil {
			return err
		}
		return tx.InsertMovements(ctx, []Movement{l.movement(ref, MovementQuality, updated, 0, in.ActorID, note)})
	})
	if err != nil {
		return Batch{}, err
	}
	return updated, nil
}

// GetBatch returns one batch.
func (l *Ledger) GetBatch(ctx context.Context, id int64) (Batch, error) {
	if id <= 0 {
		return Batch{}, shared.Validationf("invalid batch id")
	}
	return l.repo.GetBatch(ctx, id)
}

// mutate runs fn in a transaction, retrying lost row races up to maxRetries.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	err := db.Retry(ctx, l.maxRetries, func(ctx context.Context) error {
		return l.repo.WithTx(ctx, fn)
	}, func(attempt int, err error) {
		l.observer.LedgerRetry(op)
		l.logger.Warn("ledger contention, retrying", slog.String("op", op), slog.Int("attempt", attempt), slog.Any("error", err))
	})
	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		l.observer.InsufficientStock(op)
		l.logger.Warn("insufficient stock",
			slog.String("op", op),
			slog.Int64("location_id", stockErr.LocationID),
			slog.Int64("product_id", stockErr.ProductID),
			slog.Int64("available", stockErr.Available),
			slog.Int64("requested", stockErr.Requested))
	}
	if err != nil {
		return fmt.Errorf("inventory: %s: %w", op, err)
	}
	return nil
}

func (l *Ledger) movement(ref uuid.UUID, typ MovementType, b Batch, qty, actorID int64, note string) Movement {
	return Movement{
		Ref:        ref,
		Type:       typ,
		BatchID:    b.ID,
		LocationID: b.LocationID,
		ProductID:  b.ProductID,
		Qty:        qty,
		ActorID:    actorID,
		Note:       note,
		CreatedAt:  l.now().UTC(),
	}
}

func (l *Ledger) record(ctx context.Context, actorID int64, action string, ref uuid.UUID, meta map[string]any) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.AuditEntityStock,
		EntityID: ref.String(),
		Meta:     meta,
	}); err != nil {
		l.logger.Warn("audit stock", slog.String("action", action), slog.Any("error", err))
	}
}

func checkRequest(req StockRequest) error {
	if req.LocationID <= 0 || req.ProductID <= 0 {
		return shared.Validationf("location and product are required")
	}
	if req.Qty <= 0 {
		return shared.Validationf("quantity must be positive")
	}
	return nil
}

func indexBatches(batches []Batch) map[int64]Batch {
	out := make(map[int64]Batch, len(batches))
	for _, b := range batches {
		out[b.ID] = b
	}
	return out
}
