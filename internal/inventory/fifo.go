package inventory

import (
	"sort"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// SortFIFO orders batches for consumption: expiry, then receipt time, then id.
func SortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// AvailableOf sums qty available over OK batches.
func AvailableOf(batches []Batch) int64 {
	var total int64
	for _, b := range batches {
		if b.QualityStatus == QualityOK && b.Available() > 0 {
			total += b.Available()
		}
	}
	return total
}

// PlanAllocation takes qty from OK batches in FIFO order. It returns an
// *shared.InsufficientStockError and no plan when the batches cannot cover qty.
// batches is not modified.
func PlanAllocation(locationID, productID int64, batches []Batch, qty int64) ([]Allocation, error) {
	if qty <= 0 {
		return nil, shared.Validationf("quantity must be positive")
	}
	available := AvailableOf(batches)
	if available < qty {
		return nil, &shared.InsufficientStockError{LocationID: locationID, ProductID: productID, Available: available, Requested: qty}
	}
	ordered := append([]Batch(nil), batches...)
	SortFIFO(ordered)
	remaining := qty
	plan := make([]Allocation, 0, len(ordered))
	for _, b := range ordered {
		if remaining == 0 {
			break
		}
		if b.QualityStatus != QualityOK || b.Available() <= 0 {
			continue
		}
		take := min(remaining, b.Available())
		plan = append(plan, Allocation{BatchID: b.ID, BatchNo: b.BatchNo, ExpiryDate: b.ExpiryDate, Qty: take})
		remaining -= take
	}
	return plan, nil
}

// PlanRelease undoes reservations in FIFO order, regardless of quality.
func PlanRelease(batches []Batch, qty int64) ([]Allocation, error) {
	if qty <= 0 {
		return nil, shared.Validationf("quantity must be positive")
	}
	var reserved int64
	for _, b := range batches {
		reserved += b.QtyReserved
	}
	if reserved < qty {
		return nil, shared.Validationf("cannot release %d, only %d reserved", qty, reserved)
	}
	ordered := append([]Batch(nil), batches...)
	SortFIFO(ordered)
	remaining := qty
	plan := make([]Allocation, 0, len(ordered))
	for _, b := range ordered {
		if remaining == 0 {
			break
		}
		if b.QtyReserved <= 0 {
			continue
		}
		take := min(remaining, b.QtyReserved)
		plan = append(plan, Allocation{BatchID: b.ID, BatchNo: b.BatchNo, ExpiryDate: b.ExpiryDate, Qty: take})
		remaining -= take
	}
	return plan, nil
}
