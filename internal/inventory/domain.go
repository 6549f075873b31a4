package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QualityStatus flags whether a batch may be sold or moved.
type QualityStatus string

const (
	QualityOK         QualityStatus = "OK"
	QualityQuarantine QualityStatus = "Quarantine"
	QualityDamaged    QualityStatus = "Damaged"
	QualityExpired    QualityStatus = "Expired"
)

// Valid reports whether q is a known status.
func (q QualityStatus) Valid() bool {
	switch q {
	case QualityOK, QualityQuarantine, QualityDamaged, QualityExpired:
		return true
	}
	return false
}

// Batch is a physical lot of one product at one location.
type Batch struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	LocationID       int64           `json:"location_id"`
	BatchNo          string          `json:"batch_no"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ManufacturedDate *time.Time      `json:"manufactured_date,omitempty"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	QualityStatus    QualityStatus   `json:"quality_status"`
	QtyOnHand        int64           `json:"qty_on_hand"`
	QtyReserved      int64           `json:"qty_reserved"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Available is on hand minus reserved.
func (b Batch) Available() int64 {
	return b.QtyOnHand - b.QtyReserved
}

// Allocation is the quantity taken from one batch.
type Allocation struct {
	BatchID    int64     `json:"batch_id"`
	BatchNo    string    `json:"batch_no"`
	ExpiryDate time.Time `json:"expiry_date"`
	Qty        int64     `json:"qty"`
}

// StockRequest addresses a quantity of one product at one location.
type StockRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	Qty        int64  `json:"qty" validate:"required,gt=0"`
	Note       string `json:"note" validate:"max=500"`
	ActorID    int64  `json:"-"`
}

// TransferInput moves stock between two locations.
type TransferInput struct {
	FromLocationID int64  `json:"from_location_id" validate:"required,gt=0"`
	ToLocationID   int64  `json:"to_location_id" validate:"required,gt=0"`
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	Qty            int64  `json:"qty" validate:"required,gt=0"`
	Note           string `json:"note" validate:"max=500"`
	ActorID        int64  `json:"-"`
	// Ref ties the journal rows to an upstream document, such as a transfer request.
	Ref uuid.UUID `json:"-"`
}

// TransferResult describes what a transfer touched.
type TransferResult struct {
	Ref         uuid.UUID    `json:"ref"`
	Allocations []Allocation `json:"allocations"`
	Destination []Batch      `json:"destination"`
}

// ReceiveItem is one new batch on a receipt.
type ReceiveItem struct {
	BatchNo          string          `json:"batch_no" validate:"required,max=64"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ManufacturedDate *time.Time      `json:"manufactured_date,omitempty"`
	ExpiryDate       time.Time       `json:"expiry_date" validate:"required"`
	QualityStatus    QualityStatus   `json:"quality_status,omitempty"`
	Qty              int64           `json:"qty" validate:"required,gt=0"`
}

// ReceiveInput books a goods receipt.
type ReceiveInput struct {
	LocationID int64         `json:"location_id" validate:"required,gt=0"`
	ProductID  int64         `json:"product_id" validate:"required,gt=0"`
	Items      []ReceiveItem `json:"items" validate:"required,min=1,dive"`
	Note       string        `json:"note" validate:"max=500"`
	ActorID    int64         `json:"-"`
}

// QualityInput changes the quality flag of a batch.
type QualityInput struct {
	Status  QualityStatus `json:"quality_status" validate:"required,oneof=OK Quarantine Damaged Expired"`
	Note    string        `json:"note" validate:"max=500"`
	ActorID int64         `json:"-"`
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	LocationIDs  []int64
	ProductID    int64
	IncludeEmpty bool
	Limit        int
	Offset       int
}

// MovementType enumerates journal entries.
type MovementType string

const (
	MovementReceive     MovementType = "RECEIVE"
	MovementReserve     MovementType = "RESERVE"
	MovementRelease     MovementType = "RELEASE"
	MovementTransferOut MovementType = "TRANSFER_OUT"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementSale        MovementType = "SALE"
	MovementQuality     MovementType = "QUALITY"
)

// Movement is one journal line. Every ledger mutation writes its movements
// in the same transaction as the batch change.
type Movement struct {
	ID         int64        `json:"id"`
	Ref        uuid.UUID    `json:"ref"`
	Type       MovementType `json:"type"`
	BatchID    int64        `json:"batch_id"`
	LocationID int64        `json:"location_id"`
	ProductID  int64        `json:"product_id"`
	Qty        int64        `json:"qty"`
	ActorID    int64        `json:"actor_id"`
	Note       string       `json:"note,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// MovementFilter narrows journal listings.
type MovementFilter struct {
	LocationIDs []int64
	ProductID   int64
	Ref         uuid.UUID
	Limit       int
	Offset      int
}
