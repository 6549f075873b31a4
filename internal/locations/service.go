package locations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Repository is the persistence port for locations.
type Repository interface {
	List(ctx context.Context) ([]Location, error)
	Create(ctx context.Context, loc Location) (Location, error)
	UpdateParent(ctx context.Context, id, parentID int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service exposes hierarchy queries and admin operations.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Hierarchy loads the current tree.
func (s *Service) Hierarchy(ctx context.Context) (*Hierarchy, error) {
	locs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("locations: list: %w", err)
	}
	return NewHierarchy(locs), nil
}

// Get returns a single location.
func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return Location{}, err
	}
	return h.Get(id)
}

// Ancestors returns the root-first parent chain of id.
func (s *Service) Ancestors(ctx context.Context, id int64) ([]Location, error) {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return h.Ancestors(id)
}

// Breadcrumbs returns the root-first chain including id.
func (s *Service) Breadcrumbs(ctx context.Context, id int64) ([]Location, error) {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return h.Breadcrumbs(id)
}

// AccessibleLocations resolves the scope of the given role.
func (s *Service) AccessibleLocations(ctx context.Context, role shared.Role, homeID int64) ([]Location, error) {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return h.AccessibleLocations(role, homeID)
}

// Scope resolves the principal's accessible locations into a lookup set.
func (s *Service) Scope(ctx context.Context, p shared.Principal) (Scope, error) {
	locs, err := s.AccessibleLocations(ctx, p.Role, p.HomeLocationID)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(locs), nil
}

// Tree returns the presentation forest restricted to the principal's scope.
func (s *Service) Tree(ctx context.Context, p shared.Principal) ([]TreeNode, error) {
	locs, err := s.AccessibleLocations(ctx, p.Role, p.HomeLocationID)
	if err != nil {
		return nil, err
	}
	return BuildTree(locs), nil
}

// Create validates type/parent rules and inserts a location.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Location, error) {
	cur, err := normalizeCreate(in)
	if err != nil {
		return Location{}, err
	}
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return Location{}, err
	}
	loc := Location{
		Code:         cur.Code,
		Name:         cur.Name,
		Type:         cur.Type,
		ParentID:     cur.ParentID,
		Currency:     cur.Currency,
		DisplayOrder: cur.DisplayOrder,
		IsActive:     true,
	}
	switch loc.Type {
	case TypeHQ:
		if loc.ParentID != nil {
			return Location{}, shared.Validationf("HQ cannot have a parent")
		}
		for _, existing := range h.All() {
			if existing.Type == TypeHQ {
				return Location{}, shared.Validationf("HQ already exists (id %d)", existing.ID)
			}
		}
	default:
		if loc.ParentID == nil {
			return Location{}, shared.Validationf("%s requires a parent", loc.Type)
		}
		if err := checkParent(h, loc.Type, *loc.ParentID); err != nil {
			return Location{}, err
		}
	}
	created, err := s.repo.Create(ctx, loc)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Location{}, shared.Validationf("location code %q already used", loc.Code)
		}
		return Location{}, fmt.Errorf("locations: create: %w", err)
	}
	s.record(ctx, actorID, "location:create", created.ID, map[string]any{"type": string(created.Type), "parent_id": created.ParentID})
	return created, nil
}

// Reparent moves a Branch or SubBranch under a new parent of the proper type.
// The new parent can never be the node itself or one of its descendants.
func (s *Service) Reparent(ctx context.Context, actorID, id, newParentID int64) (Location, error) {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return Location{}, err
	}
	loc, err := h.Get(id)
	if err != nil {
		return Location{}, err
	}
	if loc.Type == TypeHQ {
		return Location{}, shared.Validationf("HQ cannot be reparented")
	}
	if newParentID == id {
		return Location{}, shared.Validationf("location %d cannot be its own parent", id)
	}
	below, err := h.IsDescendant(id, newParentID)
	if err != nil {
		return Location{}, err
	}
	if below {
		return Location{}, shared.Validationf("location %d is a descendant of %d", newParentID, id)
	}
	if err := checkParent(h, loc.Type, newParentID); err != nil {
		return Location{}, err
	}
	if err := s.repo.UpdateParent(ctx, id, newParentID); err != nil {
		return Location{}, fmt.Errorf("locations: reparent: %w", err)
	}
	s.record(ctx, actorID, "location:reparent", id, map[string]any{"from": loc.ParentID, "to": newParentID})
	loc.ParentID = &newParentID
	return loc, nil
}

// Deactivate soft-deletes a location. HQ stays active and a location with
// active children cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, actorID, id int64) error {
	h, err := s.Hierarchy(ctx)
	if err != nil {
		return err
	}
	loc, err := h.Get(id)
	if err != nil {
		return err
	}
	if loc.Type == TypeHQ {
		return shared.Validationf("HQ cannot be deactivated")
	}
	desc, err := h.Descendants(id)
	if err != nil {
		return err
	}
	for _, child := range desc {
		if child.IsActive {
			return shared.Validationf("location %d still has active child %d", id, child.ID)
		}
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("locations: deactivate: %w", err)
	}
	s.record(ctx, actorID, "location:deactivate", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.AuditEntityLocation,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit location", slog.String("action", action), slog.Any("error", err))
	}
}

func checkParent(h *Hierarchy, t Type, parentID int64) error {
	parent, err := h.Get(parentID)
	if err != nil {
		return err
	}
	want, _ := t.parentType()
	if parent.Type != want {
		return shared.Validationf("%s must be parented by %s, got %s", t, want, parent.Type)
	}
	if !parent.IsActive {
		return shared.Validationf("parent location %d is inactive", parentID)
	}
	return nil
}

func normalizeCreate(in CreateInput) (CreateInput, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return in, shared.Validationf("code and name are required")
	}
	if !in.Type.Valid() {
		return in, shared.Validationf("unknown location type %q", in.Type)
	}
	cur, err := shared.NormalizeCurrency(in.Currency)
	if err != nil {
		return in, err
	}
	in.Currency = cur
	return in, nil
}

// Scope is a lookup set over accessible location ids.
type Scope struct {
	ids map[int64]struct{}
}

// NewScope builds a scope from locs.
func NewScope(locs []Location) Scope {
	ids := make(map[int64]struct{}, len(locs))
	for _, loc := range locs {
		ids[loc.ID] = struct{}{}
	}
	return Scope{ids: ids}
}

// Contains reports whether id is inside the scope.
func (s Scope) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Require fails with ErrForbidden for any id outside the scope.
func (s Scope) Require(ids ...int64) error {
	for _, id := range ids {
		if !s.Contains(id) {
			return fmt.Errorf("%w: location %d outside your scope", shared.ErrForbidden, id)
		}
	}
	return nil
}

// IDs returns the scope's ids in no particular order.
func (s Scope) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}
