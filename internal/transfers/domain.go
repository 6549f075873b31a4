package transfers

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates transfer request states.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Request asks for stock to move between two locations. Approving it runs
// the ledger transfer under Ref.
type Request struct {
	ID              int64      `json:"id"`
	Ref             uuid.UUID  `json:"ref"`
	RequestedBy     int64      `json:"requested_by"`
	FromLocationID  int64      `json:"from_location_id"`
	ToLocationID    int64      `json:"to_location_id"`
	ProductID       int64      `json:"product_id"`
	Qty             int64      `json:"requested_qty"`
	Status          Status     `json:"status"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Note            string     `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateInput carries a new request.
type CreateInput struct {
	FromLocationID int64  `json:"from_location_id" validate:"required,gt=0"`
	ToLocationID   int64  `json:"to_location_id" validate:"required,gt=0"`
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	Qty            int64  `json:"requested_qty" validate:"required,gt=0"`
	Note           string `json:"note" validate:"max=500"`
}

// RejectInput carries the rejection reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListFilter narrows request listings. LocationIDs matches either end.
type ListFilter struct {
	Status      Status
	LocationIDs []int64
	Limit       int
	Offset      int
}
