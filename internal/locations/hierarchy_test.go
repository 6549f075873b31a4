package locations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

func ptr(v int64) *int64 { return &v }

func sampleLocations() []Location {
	return []Location{
		{ID: 1, Code: "HQ", Type: TypeHQ, Currency: "KRW", IsActive: true},
		{ID: 2, Code: "VN", Type: TypeBranch, ParentID: ptr(1), Currency: "VND", DisplayOrder: 2, IsActive: true},
		{ID: 3, Code: "KR", Type: TypeBranch, ParentID: ptr(1), Currency: "KRW", DisplayOrder: 1, IsActive: true},
		{ID: 4, Code: "VN-HCM", Type: TypeSubBranch, ParentID: ptr(2), Currency: "VND", DisplayOrder: 2, IsActive: true},
		{ID: 5, Code: "VN-HN", Type: TypeSubBranch, ParentID: ptr(2), Currency: "VND", DisplayOrder: 1, IsActive: true},
		{ID: 6, Code: "KR-SEL", Type: TypeSubBranch, ParentID: ptr(3), Currency: "KRW", IsActive: true},
		{ID: 7, Code: "KR-OLD", Type: TypeSubBranch, ParentID: ptr(3), Currency: "KRW", IsActive: false},
	}
}

func ids(locs []Location) []int64 {
	out := make([]int64, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.ID)
	}
	return out
}

func TestAncestorDepthByType(t *testing.T) {
	h := NewHierarchy(sampleLocations())
	require.NoError(t, h.Validate())
	for _, loc := range h.All() {
		chain, err := h.Ancestors(loc.ID)
		require.NoError(t, err)
		switch loc.Type {
		case TypeHQ:
			require.Empty(t, chain)
		case TypeBranch:
			require.Len(t, chain, 1)
			require.Equal(t, TypeHQ, chain[0].Type)
		case TypeSubBranch:
			require.Len(t, chain, 2)
			require.Equal(t, TypeHQ, chain[0].Type, "root first")
			require.Equal(t, TypeBranch, chain[1].Type)
		}
	}
}

func TestAncestorsUnknownID(t *testing.T) {
	h := NewHierarchy(sampleLocations())
	_, err := h.Ancestors(99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBreadcrumbsEndWithSelf(t *testing.T) {
	h := NewHierarchy(sampleLocations())
	crumbs, err := h.Breadcrumbs(4)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 4}, ids(crumbs))
}

func TestDescendants(t *testing.T) {
	h := NewHierarchy(sampleLocations())
	desc, err := h.Descendants(1)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 3, 4, 5, 6, 7}, ids(desc))

	desc, err = h.Descendants(2)
	require.NoError(t, err)
	require.Equal(t, []int64{5, 4}, ids(desc), "display order within siblings")

	desc, err = h.Descendants(6)
	require.NoError(t, err)
	require.Empty(t, desc)
}

func TestAccessibleLocations(t *testing.T) {
	h := NewHierarchy(sampleLocations())

	all, err := h.AccessibleLocations(shared.RoleHQAdmin, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6}, ids(all), "inactive location hidden")

	for _, home := range []int64{1, 2, 3, 4, 6} {
		scope, err := h.AccessibleLocations(shared.RoleBranchManager, home)
		require.NoError(t, err)
		got := ids(scope)
		require.Contains(t, got, home)
		desc, _ := h.Descendants(home)
		allowed := map[int64]bool{home: true}
		for _, d := range desc {
			allowed[d.ID] = true
		}
		for _, id := range got {
			require.True(t, allowed[id], "location %d leaked into scope of %d", id, home)
		}
	}

	scope, err := h.AccessibleLocations(shared.RoleBranchManager, 2)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 4, 5}, ids(scope))

	_, err = h.AccessibleLocations(shared.Role(42), 2)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCycleIsReportedNotLooped(t *testing.T) {
	locs := []Location{
		{ID: 1, Type: TypeHQ},
		{ID: 2, Type: TypeBranch, ParentID: ptr(3)},
		{ID: 3, Type: TypeSubBranch, ParentID: ptr(2)},
	}
	h := NewHierarchy(locs)
	_, err := h.Ancestors(2)
	require.ErrorIs(t, err, shared.ErrCorruptHierarchy)
	require.ErrorIs(t, h.Validate(), shared.ErrCorruptHierarchy)

	tree := BuildTree(locs)
	require.Len(t, tree, 1)
	require.Empty(t, tree[0].Children)
}

func TestOrphanIsCorrupt(t *testing.T) {
	h := NewHierarchy([]Location{
		{ID: 1, Type: TypeHQ},
		{ID: 2, Type: TypeSubBranch, ParentID: ptr(50)},
	})
	_, err := h.Ancestors(2)
	require.ErrorIs(t, err, shared.ErrCorruptHierarchy)
}

func TestValidateTypeRules(t *testing.T) {
	h := NewHierarchy([]Location{
		{ID: 1, Type: TypeHQ},
		{ID: 2, Type: TypeSubBranch, ParentID: ptr(1)},
	})
	require.ErrorIs(t, h.Validate(), shared.ErrCorruptHierarchy)

	h = NewHierarchy([]Location{{ID: 1, Type: TypeHQ}, {ID: 2, Type: TypeHQ}})
	require.ErrorIs(t, h.Validate(), shared.ErrCorruptHierarchy)
}

func TestBuildTreeOrdersSiblings(t *testing.T) {
	tree := BuildTree(sampleLocations())
	require.Len(t, tree, 1)
	root := tree[0]
	require.Equal(t, int64(1), root.ID)
	require.Len(t, root.Children, 2)
	require.Equal(t, int64(3), root.Children[0].ID)
	require.Equal(t, int64(2), root.Children[1].ID)
	require.Equal(t, int64(5), root.Children[1].Children[0].ID)
	require.Equal(t, int64(4), root.Children[1].Children[1].ID)
}

func TestBuildTreeSubsetPromotesOrphans(t *testing.T) {
	h := NewHierarchy(sampleLocations())
	scope, err := h.AccessibleLocations(shared.RoleBranchManager, 2)
	require.NoError(t, err)
	tree := BuildTree(scope)
	require.Len(t, tree, 1)
	require.Equal(t, int64(2), tree[0].ID)
	require.Len(t, tree[0].Children, 2)
}
