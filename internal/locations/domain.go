package locations

import "time"

// Type enumerates the three levels of the location tree.
type Type string

const (
	// TypeHQ is the single root of the tree.
	TypeHQ Type = "HQ"
	// TypeBranch sits directly under HQ.
	TypeBranch Type = "Branch"
	// TypeSubBranch sits under a Branch.
	TypeSubBranch Type = "SubBranch"
)

// Valid reports whether t is a known location type.
func (t Type) Valid() bool {
	switch t {
	case TypeHQ, TypeBranch, TypeSubBranch:
		return true
	}
	return false
}

// parentType returns the type a parent of t must have.
func (t Type) parentType() (Type, bool) {
	switch t {
	case TypeBranch:
		return TypeHQ, true
	case TypeSubBranch:
		return TypeBranch, true
	}
	return "", false
}

// Location is one node of the HQ → Branch → SubBranch tree.
type Location struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Type         Type      `json:"type"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	Currency     string    `json:"currency"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TreeNode is the presentation shape produced by BuildTree.
type TreeNode struct {
	Location
	Children []TreeNode `json:"children"`
}

// CreateInput describes a new location.
type CreateInput struct {
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=120"`
	Type         Type   `json:"type" validate:"required,oneof=HQ Branch SubBranch"`
	ParentID     *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	Currency     string `json:"currency" validate:"required,len=3"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}
