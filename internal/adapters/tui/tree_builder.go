package tui

const maxTreeDepth = 10

// buildTree constructs a visual tree from the import dependency map.
// Units form a DAG, so a unit may appear several times in the tree when
// more than one importer pulls it in.
func buildTree(
	entries []string,
	dependencies map[string][]string,
	unitMap map[string]*UnitNode,
) []*UnitNode {
	roots := make([]*UnitNode, 0, len(entries))

	for _, entry := range entries {
		root := buildSubtree(entry, dependencies, unitMap, 0)
		if root != nil {
			roots = append(roots, root)
		}
	}

	return roots
}

func buildSubtree(
	name string,
	dependencies map[string][]string,
	unitMap map[string]*UnitNode,
	depth int,
) *UnitNode {
	// Guard against very deep trees
	if depth > maxTreeDepth {
		return nil
	}

	canonical := unitMap[name]
	if canonical == nil {
		return nil
	}

	// Each tree position gets its own clone; live state stays on the
	// canonical node.
	node := &UnitNode{
		Name:          canonical.Name,
		Log:           canonical.Log,
		Depth:         depth,
		Children:      make([]*UnitNode, 0),
		CanonicalNode: canonical,
	}

	for _, dep := range dependencies[name] {
		child := buildSubtree(dep, dependencies, unitMap, depth+1)
		if child != nil {
			child.Parent = node
			node.Children = append(node.Children, child)
		}
	}

	return node
}

// flattenTree converts the tree into the visible row list. Children of a
// collapsed node are skipped.
func flattenTree(roots []*UnitNode) []*UnitNode {
	flat := make([]*UnitNode, 0)

	var walk func(node *UnitNode)
	walk = func(node *UnitNode) {
		flat = append(flat, node)
		if node.IsExpanded {
			for _, child := range node.Children {
				walk(child)
			}
		}
	}

	for _, root := range roots {
		walk(root)
	}

	return flat
}
