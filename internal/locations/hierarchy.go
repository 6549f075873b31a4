package locations

import (
	"fmt"
	"sort"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// Hierarchy is an arena of locations indexed by id plus a parent → children
// adjacency list. It is immutable once built.
type Hierarchy struct {
	nodes    []Location
	index    map[int64]int
	children map[int64][]int
}

// NewHierarchy indexes locs in a single pass. Children are ordered by
// display_order, then id.
func NewHierarchy(locs []Location) *Hierarchy {
	h := &Hierarchy{
		nodes:    make([]Location, len(locs)),
		index:    make(map[int64]int, len(locs)),
		children: make(map[int64][]int),
	}
	copy(h.nodes, locs)
	for i, loc := range h.nodes {
		h.index[loc.ID] = i
		if loc.ParentID != nil {
			h.children[*loc.ParentID] = append(h.children[*loc.ParentID], i)
		}
	}
	for parent := range h.children {
		kids := h.children[parent]
		sort.SliceStable(kids, func(a, b int) bool { return h.less(kids[a], kids[b]) })
	}
	return h
}

func (h *Hierarchy) less(a, b int) bool {
	if h.nodes[a].DisplayOrder != h.nodes[b].DisplayOrder {
		return h.nodes[a].DisplayOrder < h.nodes[b].DisplayOrder
	}
	return h.nodes[a].ID < h.nodes[b].ID
}

// Len returns the number of indexed locations.
func (h *Hierarchy) Len() int { return len(h.nodes) }

// Get returns the location with id.
func (h *Hierarchy) Get(id int64) (Location, error) {
	i, ok := h.index[id]
	if !ok {
		return Location{}, shared.NotFoundf("location %d", id)
	}
	return h.nodes[i], nil
}

// All returns every indexed location in input order.
func (h *Hierarchy) All() []Location {
	out := make([]Location, len(h.nodes))
	copy(out, h.nodes)
	return out
}

// Ancestors returns the parent chain of id, root first, excluding id itself.
func (h *Hierarchy) Ancestors(id int64) ([]Location, error) {
	start, ok := h.index[id]
	if !ok {
		return nil, shared.NotFoundf("location %d", id)
	}
	visited := map[int64]struct{}{id: {}}
	var chain []Location
	cur := h.nodes[start]
	for cur.ParentID != nil {
		pid := *cur.ParentID
		if _, seen := visited[pid]; seen {
			return nil, fmt.Errorf("%w: cycle through location %d", shared.ErrCorruptHierarchy, pid)
		}
		visited[pid] = struct{}{}
		pi, ok := h.index[pid]
		if !ok {
			return nil, fmt.Errorf("%w: location %d has unknown parent %d", shared.ErrCorruptHierarchy, cur.ID, pid)
		}
		cur = h.nodes[pi]
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Breadcrumbs returns ancestors followed by the location itself.
func (h *Hierarchy) Breadcrumbs(id int64) ([]Location, error) {
	chain, err := h.Ancestors(id)
	if err != nil {
		return nil, err
	}
	self, _ := h.Get(id)
	return append(chain, self), nil
}

// Descendants returns every location transitively parented under id, in
// breadth-first order.
func (h *Hierarchy) Descendants(id int64) ([]Location, error) {
	if _, ok := h.index[id]; !ok {
		return nil, shared.NotFoundf("location %d", id)
	}
	visited := map[int64]struct{}{id: {}}
	var out []Location
	queue := []int64{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, ci := range h.children[parent] {
			child := h.nodes[ci]
			if _, seen := visited[child.ID]; seen {
				return nil, fmt.Errorf("%w: location %d reached twice", shared.ErrCorruptHierarchy, child.ID)
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// IsDescendant reports whether candidate lies strictly below ancestor.
func (h *Hierarchy) IsDescendant(ancestor, candidate int64) (bool, error) {
	chain, err := h.Ancestors(candidate)
	if err != nil {
		return false, err
	}
	for _, loc := range chain {
		if loc.ID == ancestor {
			return true, nil
		}
	}
	return false, nil
}

// AccessibleLocations computes the location scope for a role. HQ admins get
// every active location; branch managers get home plus its active
// descendants. The caller enforces the scope.
func (h *Hierarchy) AccessibleLocations(role shared.Role, homeID int64) ([]Location, error) {
	switch role {
	case shared.RoleHQAdmin:
		var out []Location
		for _, loc := range h.nodes {
			if loc.IsActive {
				out = append(out, loc)
			}
		}
		return out, nil
	case shared.RoleBranchManager:
		home, err := h.Get(homeID)
		if err != nil {
			return nil, err
		}
		desc, err := h.Descendants(homeID)
		if err != nil {
			return nil, err
		}
		out := []Location{home}
		for _, loc := range desc {
			if loc.IsActive {
				out = append(out, loc)
			}
		}
		return out, nil
	default:
		return nil, shared.Validationf("unsupported role %d", int(role))
	}
}

// Validate checks the structural invariants: one HQ root, type-consistent
// parents and no cycles.
func (h *Hierarchy) Validate() error {
	roots := 0
	for _, loc := range h.nodes {
		if loc.ParentID == nil {
			if loc.Type != TypeHQ {
				return fmt.Errorf("%w: %s location %d has no parent", shared.ErrCorruptHierarchy, loc.Type, loc.ID)
			}
			roots++
			continue
		}
		if loc.Type == TypeHQ {
			return fmt.Errorf("%w: HQ location %d has a parent", shared.ErrCorruptHierarchy, loc.ID)
		}
		parent, err := h.Get(*loc.ParentID)
		if err != nil {
			return fmt.Errorf("%w: location %d has unknown parent %d", shared.ErrCorruptHierarchy, loc.ID, *loc.ParentID)
		}
		want, _ := loc.Type.parentType()
		if parent.Type != want {
			return fmt.Errorf("%w: %s %d parented by %s %d", shared.ErrCorruptHierarchy, loc.Type, loc.ID, parent.Type, parent.ID)
		}
		if _, err := h.Ancestors(loc.ID); err != nil {
			return err
		}
	}
	if len(h.nodes) > 0 && roots != 1 {
		return fmt.Errorf("%w: expected exactly one HQ root, found %d", shared.ErrCorruptHierarchy, roots)
	}
	return nil
}

// BuildTree arranges locs into a forest for presentation. Nodes whose parent
// is absent from locs become roots; nodes caught in a cycle are dropped.
func BuildTree(locs []Location) []TreeNode {
	h := NewHierarchy(locs)
	var roots []int
	for i, loc := range h.nodes {
		if loc.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		if _, ok := h.index[*loc.ParentID]; !ok {
			roots = append(roots, i)
		}
	}
	sort.SliceStable(roots, func(a, b int) bool { return h.less(roots[a], roots[b]) })
	visited := make(map[int64]struct{}, len(locs))
	forest := make([]TreeNode, 0, len(roots))
	for _, ri := range roots {
		forest = append(forest, h.subtree(ri, visited))
	}
	return forest
}

func (h *Hierarchy) subtree(i int, visited map[int64]struct{}) TreeNode {
	node := TreeNode{Location: h.nodes[i], Children: []TreeNode{}}
	visited[node.ID] = struct{}{}
	for _, ci := range h.children[node.ID] {
		if _, seen := visited[h.nodes[ci].ID]; seen {
			continue
		}
		node.Children = append(node.Children, h.subtree(ci, visited))
	}
	return node
}
