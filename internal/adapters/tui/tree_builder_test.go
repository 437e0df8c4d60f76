package tui_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/bale/internal/adapters/tui"
)

func TestBuildTree_SimpleDependency(t *testing.T) {
	t.Parallel()

	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow()},
		"B": {Name: "B", Log: tui.NewLogWindow()},
		"C": {Name: "C", Log: tui.NewLogWindow()},
	}

	dependencies := map[string][]string{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}

	entries := []string{"A"}

	roots := tui.BuildTree(entries, dependencies, unitMap)

	assert.Len(t, roots, 1)
	assert.Equal(t, "A", roots[0].Name)
	assert.Len(t, roots[0].Children, 1)
	assert.Equal(t, "B", roots[0].Children[0].Name)
	assert.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "C", roots[0].Children[0].Children[0].Name)

	// Verify canonical node references are set
	assert.NotNil(t, roots[0].CanonicalNode)
	assert.Equal(t, unitMap["A"], roots[0].CanonicalNode)
	assert.NotNil(t, roots[0].Children[0].CanonicalNode)
	assert.Equal(t, unitMap["B"], roots[0].Children[0].CanonicalNode)
}

func TestBuildTree_StatusUpdates(t *testing.T) {
	t.Parallel()

	// Create canonical nodes
	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow(), Status: tui.StatusPending},
		"B": {Name: "B", Log: tui.NewLogWindow(), Status: tui.StatusPending},
	}

	dependencies := map[string][]string{
		"A": {"B"},
		"B": {},
	}

	entries := []string{"A"}

	roots := tui.BuildTree(entries, dependencies, unitMap)

	// Initially both should reference pending status
	assert.Equal(t, tui.StatusPending, roots[0].CanonicalNode.Status)
	assert.Equal(t, tui.StatusPending, roots[0].Children[0].CanonicalNode.Status)

	// Update canonical node status
	unitMap["A"].Status = tui.StatusRunning
	unitMap["B"].Status = tui.StatusDone

	// Tree nodes should reflect updated status via canonical reference
	assert.Equal(t, tui.StatusRunning, roots[0].CanonicalNode.Status)
	assert.Equal(t, tui.StatusDone, roots[0].Children[0].CanonicalNode.Status)
}

func TestBuildTree_SharedDependency(t *testing.T) {
	t.Parallel()

	// Diamond: A -> B -> D, A -> C -> D
	// D appears twice in the tree

	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow()},
		"B": {Name: "B", Log: tui.NewLogWindow()},
		"C": {Name: "C", Log: tui.NewLogWindow()},
		"D": {Name: "D", Log: tui.NewLogWindow()},
	}

	dependencies := map[string][]string{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"D"},
		"D": {},
	}

	entries := []string{"A"}

	roots := tui.BuildTree(entries, dependencies, unitMap)

	assert.Len(t, roots, 1)
	assert.Equal(t, "A", roots[0].Name)
	assert.Len(t, roots[0].Children, 2)

	// Verify D appears under both B and C
	bNode := roots[0].Children[0]
	cNode := roots[0].Children[1]

	assert.Len(t, bNode.Children, 1)
	assert.Equal(t, "D", bNode.Children[0].Name)

	assert.Len(t, cNode.Children, 1)
	assert.Equal(t, "D", cNode.Children[0].Name)

	// Both positions share the canonical node and its log window
	assert.Equal(t, unitMap["D"], bNode.Children[0].CanonicalNode)
	assert.Equal(t, unitMap["D"], cNode.Children[0].CanonicalNode)
	assert.Same(t, bNode.Children[0].Log, cNode.Children[0].Log)
}

func TestBuildTree_NoDependencies(t *testing.T) {
	t.Parallel()

	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow()},
		"B": {Name: "B", Log: tui.NewLogWindow()},
	}

	dependencies := map[string][]string{
		"A": {},
		"B": {},
	}

	entries := []string{"A", "B"}

	roots := tui.BuildTree(entries, dependencies, unitMap)

	assert.Len(t, roots, 2)
	assert.Equal(t, "A", roots[0].Name)
	assert.Equal(t, "B", roots[1].Name)
	assert.Empty(t, roots[0].Children)
	assert.Empty(t, roots[1].Children)
}

func TestBuildTree_MultipleEntries(t *testing.T) {
	t.Parallel()

	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow()},
		"B": {Name: "B", Log: tui.NewLogWindow()},
		"C": {Name: "C", Log: tui.NewLogWindow()},
	}

	dependencies := map[string][]string{
		"A": {"C"},
		"B": {"C"},
		"C": {},
	}

	entries := []string{"A", "B"}

	roots := tui.BuildTree(entries, dependencies, unitMap)

	assert.Len(t, roots, 2)
	assert.Equal(t, "A", roots[0].Name)
	assert.Equal(t, "B", roots[1].Name)

	// C appears under both A and B
	assert.Len(t, roots[0].Children, 1)
	assert.Equal(t, "C", roots[0].Children[0].Name)

	assert.Len(t, roots[1].Children, 1)
	assert.Equal(t, "C", roots[1].Children[0].Name)
}

func TestBuildTree_UnknownEntry(t *testing.T) {
	t.Parallel()

	unitMap := map[string]*tui.UnitNode{
		"A": {Name: "A", Log: tui.NewLogWindow()},
	}

	roots := tui.BuildTree([]string{"A", "missing"}, map[string][]string{}, unitMap)

	assert.Len(t, roots, 1)
	assert.Equal(t, "A", roots[0].Name)
}

func TestFlattenTree_Collapsed(t *testing.T) {
	t.Parallel()

	parent := &tui.UnitNode{
		Name:       "parent",
		IsExpanded: false,
		Children: []*tui.UnitNode{
			{Name: "child1", Log: tui.NewLogWindow()},
			{Name: "child2", Log: tui.NewLogWindow()},
		},
		Log: tui.NewLogWindow(),
	}

	roots := []*tui.UnitNode{parent}
	flat := tui.FlattenTree(roots)

	// Only parent should be in flat list since it's collapsed
	assert.Len(t, flat, 1)
	assert.Equal(t, "parent", flat[0].Name)
}

func TestFlattenTree_Expanded(t *testing.T) {
	t.Parallel()

	child1 := &tui.UnitNode{Name: "child1", Log: tui.NewLogWindow()}
	child2 := &tui.UnitNode{Name: "child2", Log: tui.NewLogWindow()}

	parent := &tui.UnitNode{
		Name:       "parent",
		IsExpanded: true,
		Children:   []*tui.UnitNode{child1, child2},
		Log:        tui.NewLogWindow(),
	}

	roots := []*tui.UnitNode{parent}
	flat := tui.FlattenTree(roots)

	// All nodes should be in flat list
	assert.Len(t, flat, 3)
	assert.Equal(t, "parent", flat[0].Name)
	assert.Equal(t, "child1", flat[1].Name)
	assert.Equal(t, "child2", flat[2].Name)
}

func TestFlattenTree_NestedExpansion(t *testing.T) {
	t.Parallel()

	grandchild := &tui.UnitNode{Name: "grandchild", Log: tui.NewLogWindow()}

	child := &tui.UnitNode{
		Name:       "child",
		IsExpanded: true,
		Children:   []*tui.UnitNode{grandchild},
		Log:        tui.NewLogWindow(),
	}

	parent := &tui.UnitNode{
		Name:       "parent",
		IsExpanded: true,
		Children:   []*tui.UnitNode{child},
		Log:        tui.NewLogWindow(),
	}

	roots := []*tui.UnitNode{parent}
	flat := tui.FlattenTree(roots)

	// All three levels should be visible
	assert.Len(t, flat, 3)
	assert.Equal(t, "parent", flat[0].Name)
	assert.Equal(t, "child", flat[1].Name)
	assert.Equal(t, "grandchild", flat[2].Name)
}

func TestFlattenTree_PartialExpansion(t *testing.T) {
	t.Parallel()

	grandchild := &tui.UnitNode{Name: "grandchild", Log: tui.NewLogWindow()}

	child := &tui.UnitNode{
		Name:       "child",
		IsExpanded: false, // Collapsed
		Children:   []*tui.UnitNode{grandchild},
		Log:        tui.NewLogWindow(),
	}

	parent := &tui.UnitNode{
		Name:       "parent",
		IsExpanded: true,
		Children:   []*tui.UnitNode{child},
		Log:        tui.NewLogWindow(),
	}

	roots := []*tui.UnitNode{parent}
	flat := tui.FlattenTree(roots)

	// Grandchild should not be visible since child is collapsed
	assert.Len(t, flat, 2)
	assert.Equal(t, "parent", flat[0].Name)
	assert.Equal(t, "child", flat[1].Name)
}
