package spreadsheet

import "slices"

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	Address CellAddress

	CellPrecedents map[CellAddress]struct{} // cells this cell depends on
	CellDependents map[CellAddress]struct{} // cells that depend on this cell

	// ranges this cell reads as a whole, tracked separately so a change
	// anywhere inside the range only needs one lookup
	RangePrecedents map[RangeAddress]struct{}

	HasFormula bool
}

// DependencyGraph manages cell dependencies and tracks which cells need
// recalculation
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that read it
	dirtySet       map[CellAddress]struct{}
	volatileCells  map[CellAddress]struct{} // always recalculated
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	dg := &DependencyGraph{}
	dg.Clear()
	return dg
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]struct{}),
		CellDependents:  make(map[CellAddress]struct{}),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// RemoveNode removes a node along with its outgoing dependencies. cells that
// depend on it keep their edge so they are recalculated when it comes back.
func (dg *DependencyGraph) RemoveNode(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	if !exists {
		return false
	}
	dg.ClearDependencies(addr)
	node.HasFormula = false
	delete(dg.dirtySet, addr)
	delete(dg.volatileCells, addr)
	dg.cleanupNodeIfEmpty(addr)
	return true
}

// cleanupNodeIfEmpty removes a node if nothing points to or from it
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if node.HasFormula ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, addr)
	delete(dg.dirtySet, addr)
}

// AddCellDependency records that from depends on to
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	dg.GetOrCreateNode(from).CellPrecedents[to] = struct{}{}
	dg.GetOrCreateNode(to).CellDependents[from] = struct{}{}
}

// AddRangeDependency records that from reads every cell of rangeAddr
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, rangeAddr RangeAddress) {
	dg.GetOrCreateNode(from).RangePrecedents[rangeAddr] = struct{}{}
	if dg.rangeObservers[rangeAddr] == nil {
		dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[rangeAddr][from] = struct{}{}
}

// ClearDependencies clears all outgoing dependencies for a cell
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for precedent := range node.CellPrecedents {
		if precedentNode, ok := dg.nodes[precedent]; ok {
			delete(precedentNode.CellDependents, addr)
			dg.cleanupNodeIfEmpty(precedent)
		}
	}
	clear(node.CellPrecedents)

	for rangeAddr := range node.RangePrecedents {
		if observers, ok := dg.rangeObservers[rangeAddr]; ok {
			delete(observers, addr)
			if len(observers) == 0 {
				delete(dg.rangeObservers, rangeAddr)
			}
		}
	}
	clear(node.RangePrecedents)
	dg.cleanupNodeIfEmpty(addr)
}

// SetHasFormula flags a node as a formula cell so it survives cleanup
func (dg *DependencyGraph) SetHasFormula(addr CellAddress, hasFormula bool) {
	if hasFormula {
		dg.GetOrCreateNode(addr).HasFormula = true
		return
	}
	if node, exists := dg.nodes[addr]; exists {
		node.HasFormula = false
		dg.cleanupNodeIfEmpty(addr)
	}
}

// MarkDirty marks a cell as needing recalculation
func (dg *DependencyGraph) MarkDirty(addr CellAddress) {
	dg.dirtySet[addr] = struct{}{}
}

// MarkChanged marks everything that reads addr as dirty, either directly or
// through an observed range
func (dg *DependencyGraph) MarkChanged(addr CellAddress) {
	if node, exists := dg.nodes[addr]; exists {
		for dependent := range node.CellDependents {
			dg.MarkDirty(dependent)
		}
	}
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observer := range observers {
				dg.MarkDirty(observer)
			}
		}
	}
}

// MarkWorksheetDirty marks every cell reading from a worksheet as dirty
func (dg *DependencyGraph) MarkWorksheetDirty(worksheetID uint32) {
	for addr, node := range dg.nodes {
		if addr.WorksheetID == worksheetID && len(node.CellDependents) > 0 {
			for dependent := range node.CellDependents {
				dg.MarkDirty(dependent)
			}
		}
	}
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.WorksheetID == worksheetID {
			for observer := range observers {
				dg.MarkDirty(observer)
			}
		}
	}
}

// IsDirty reports whether a cell is waiting for recalculation
func (dg *DependencyGraph) IsDirty(addr CellAddress) bool {
	_, dirty := dg.dirtySet[addr]
	return dirty
}

// ClearDirty clears the dirty flag for a cell
func (dg *DependencyGraph) ClearDirty(addr CellAddress) {
	delete(dg.dirtySet, addr)
}

// DirtyCount returns how many cells are waiting for recalculation
func (dg *DependencyGraph) DirtyCount() int {
	return len(dg.dirtySet)
}

// DirtyCells returns the dirty set ordered by worksheet, row, then column
func (dg *DependencyGraph) DirtyCells() []CellAddress {
	cells := make([]CellAddress, 0, len(dg.dirtySet))
	for addr := range dg.dirtySet {
		cells = append(cells, addr)
	}
	slices.SortFunc(cells, compareAddresses)
	return cells
}

func compareAddresses(a, b CellAddress) int {
	switch {
	case a.WorksheetID != b.WorksheetID:
		return int(a.WorksheetID) - int(b.WorksheetID)
	case a.Row != b.Row:
		return int(a.Row) - int(b.Row)
	default:
		return int(a.Column) - int(b.Column)
	}
}

// GetDirectDependents returns cells directly depending on this cell
func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellDependents))
	for dependent := range node.CellDependents {
		result = append(result, dependent)
	}
	return result
}

// GetDirectPrecedents returns cells this cell directly depends on
func (dg *DependencyGraph) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellPrecedents))
	for precedent := range node.CellPrecedents {
		result = append(result, precedent)
	}
	return result
}

// GetRangePrecedents returns ranges this cell depends on
func (dg *DependencyGraph) GetRangePrecedents(addr CellAddress) []RangeAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]RangeAddress, 0, len(node.RangePrecedents))
	for rangeAddr := range node.RangePrecedents {
		result = append(result, rangeAddr)
	}
	return result
}

// GetAffectedCells returns every cell that transitively reads addr, through
// direct references or observed ranges
func (dg *DependencyGraph) GetAffectedCells(addr CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	queue := []CellAddress{addr}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var next []CellAddress
		if node, exists := dg.nodes[current]; exists {
			for dependent := range node.CellDependents {
				next = append(next, dependent)
			}
		}
		for rangeAddr, observers := range dg.rangeObservers {
			if rangeAddr.Contains(current) {
				for observer := range observers {
					next = append(next, observer)
				}
			}
		}
		for _, n := range next {
			if _, seen := visited[n]; !seen {
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}

	result := make([]CellAddress, 0, len(visited))
	for affected := range visited {
		result = append(result, affected)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// RangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}

// Clear removes all nodes and dependencies from the graph
func (dg *DependencyGraph) Clear() {
	dg.nodes = make(map[CellAddress]*DependencyNode)
	dg.rangeObservers = make(map[RangeAddress]map[CellAddress]struct{})
	dg.dirtySet = make(map[CellAddress]struct{})
	dg.volatileCells = make(map[CellAddress]struct{})
}

// MarkVolatile marks a cell as containing volatile functions
func (dg *DependencyGraph) MarkVolatile(addr CellAddress) {
	dg.volatileCells[addr] = struct{}{}
}

// UnmarkVolatile removes volatile marking from a cell
func (dg *DependencyGraph) UnmarkVolatile(addr CellAddress) {
	delete(dg.volatileCells, addr)
}

// IsVolatile checks if a cell contains volatile functions
func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, isVolatile := dg.volatileCells[addr]
	return isVolatile
}

// MarkAllVolatileDirty marks all volatile cells, and everything that reads
// them, as dirty for recalculation
func (dg *DependencyGraph) MarkAllVolatileDirty() {
	for addr := range dg.volatileCells {
		dg.MarkDirty(addr)
		for _, affected := range dg.GetAffectedCells(addr) {
			dg.MarkDirty(affected)
		}
	}
}
