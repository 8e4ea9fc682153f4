package spreadsheet

// ASTKey represents a normalized AST used as a key for formula deduplication.
// two formulas with the same structure relative to their cell (ignoring
// whitespace) share one key, so =A1+1 in B1 and =A2+1 in B2 intern once.
type ASTKey string

// FormulaTable stores parsed formulas centrally. it tracks which cells use
// each formula and which named ranges each formula reads, so redefining a
// name can dirty exactly the cells that depend on it.
type FormulaTable struct {
	astIndex  map[ASTKey]uint32  // normalized AST -> formula ID
	astCache  map[uint32]ASTNode // formula ID -> parsed AST
	refCounts map[uint32]int     // formula ID -> number of cells using it

	cellsUsingFormula map[uint32]map[CellAddress]struct{} // formula ID -> cells
	formulaAtCell     map[CellAddress]uint32              // cell -> formula ID

	namedRangesUsed         map[uint32]map[uint32]struct{} // formula ID -> named range IDs
	formulasUsingNamedRange map[uint32]map[uint32]struct{} // named range ID -> formula IDs

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	ft := &FormulaTable{}
	ft.Clear()
	return ft
}

// InternFormula adds a formula or increments its reference count if an
// identical one exists, and records cell as a user. returns the formula ID.
func (ft *FormulaTable) InternFormula(ast ASTNode, cell CellAddress) uint32 {
	key := ASTKey(ast.ToString())

	id, exists := ft.astIndex[key]
	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.astIndex[key] = id
		ft.astCache[id] = ast
	}

	// a cell can only hold one formula at a time
	if oldID, ok := ft.formulaAtCell[cell]; ok && oldID != id {
		ft.RemoveCellReference(oldID, cell)
	}
	if _, already := ft.cellsUsingFormula[id][cell]; !already {
		ft.refCounts[id]++
	}
	if ft.cellsUsingFormula[id] == nil {
		ft.cellsUsingFormula[id] = make(map[CellAddress]struct{})
	}
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id

	return id
}

// GetAST retrieves the cached AST for a formula ID
func (ft *FormulaTable) GetAST(id uint32) (ASTNode, bool) {
	ast, exists := ft.astCache[id]
	return ast, exists
}

// RemoveCellReference detaches a cell from a formula. returns true if the
// formula was dropped because no cell uses it anymore.
func (ft *FormulaTable) RemoveCellReference(formulaID uint32, cell CellAddress) bool {
	cells, exists := ft.cellsUsingFormula[formulaID]
	if !exists {
		return false
	}
	if _, used := cells[cell]; !used {
		return false
	}

	delete(cells, cell)
	if ft.formulaAtCell[cell] == formulaID {
		delete(ft.formulaAtCell, cell)
	}

	ft.refCounts[formulaID]--
	if ft.refCounts[formulaID] > 0 {
		return false
	}
	ft.removeFormula(formulaID)
	return true
}

// removeFormula removes a formula and all its tracking data
func (ft *FormulaTable) removeFormula(formulaID uint32) {
	if ast, exists := ft.astCache[formulaID]; exists {
		delete(ft.astIndex, ASTKey(ast.ToString()))
	}
	delete(ft.astCache, formulaID)
	delete(ft.refCounts, formulaID)
	delete(ft.cellsUsingFormula, formulaID)

	for namedRangeID := range ft.namedRangesUsed[formulaID] {
		ft.RemoveNamedRangeReference(formulaID, namedRangeID)
	}
	delete(ft.namedRangesUsed, formulaID)
}

// GetReferenceCount returns the number of cells using a formula
func (ft *FormulaTable) GetReferenceCount(id uint32) int {
	return ft.refCounts[id]
}

// TrackNamedRangeReference records that a formula reads a named range
func (ft *FormulaTable) TrackNamedRangeReference(formulaID uint32, namedRangeID uint32) {
	if ft.namedRangesUsed[formulaID] == nil {
		ft.namedRangesUsed[formulaID] = make(map[uint32]struct{})
	}
	ft.namedRangesUsed[formulaID][namedRangeID] = struct{}{}

	if ft.formulasUsingNamedRange[namedRangeID] == nil {
		ft.formulasUsingNamedRange[namedRangeID] = make(map[uint32]struct{})
	}
	ft.formulasUsingNamedRange[namedRangeID][formulaID] = struct{}{}
}

// RemoveNamedRangeReference removes a named range reference from a formula
func (ft *FormulaTable) RemoveNamedRangeReference(formulaID uint32, namedRangeID uint32) {
	if names, exists := ft.namedRangesUsed[formulaID]; exists {
		delete(names, namedRangeID)
		if len(names) == 0 {
			delete(ft.namedRangesUsed, formulaID)
		}
	}
	if formulas, exists := ft.formulasUsingNamedRange[namedRangeID]; exists {
		delete(formulas, formulaID)
		if len(formulas) == 0 {
			delete(ft.formulasUsingNamedRange, namedRangeID)
		}
	}
}

// NamedRangesUsedBy returns the IDs of the named ranges a formula reads
func (ft *FormulaTable) NamedRangesUsedBy(formulaID uint32) []uint32 {
	result := make([]uint32, 0, len(ft.namedRangesUsed[formulaID]))
	for id := range ft.namedRangesUsed[formulaID] {
		result = append(result, id)
	}
	return result
}

// CellsUsingNamedRange returns every cell whose formula reads the named range
func (ft *FormulaTable) CellsUsingNamedRange(namedRangeID uint32) []CellAddress {
	var result []CellAddress
	for formulaID := range ft.formulasUsingNamedRange[namedRangeID] {
		for cell := range ft.cellsUsingFormula[formulaID] {
			result = append(result, cell)
		}
	}
	return result
}

// GetCellsUsingFormula returns all cells using a specific formula
func (ft *FormulaTable) GetCellsUsingFormula(formulaID uint32) []CellAddress {
	cells := ft.cellsUsingFormula[formulaID]
	result := make([]CellAddress, 0, len(cells))
	for cell := range cells {
		result = append(result, cell)
	}
	return result
}

// GetFormulaAtCell returns the formula ID at a specific cell
func (ft *FormulaTable) GetFormulaAtCell(cell CellAddress) (uint32, bool) {
	id, exists := ft.formulaAtCell[cell]
	return id, exists
}

// Count returns the number of unique formulas
func (ft *FormulaTable) Count() int {
	return len(ft.astIndex)
}

// Clear removes all formulas from the table
func (ft *FormulaTable) Clear() {
	ft.astIndex = make(map[ASTKey]uint32)
	ft.astCache = make(map[uint32]ASTNode)
	ft.refCounts = make(map[uint32]int)
	ft.cellsUsingFormula = make(map[uint32]map[CellAddress]struct{})
	ft.formulaAtCell = make(map[CellAddress]uint32)
	ft.namedRangesUsed = make(map[uint32]map[uint32]struct{})
	ft.formulasUsingNamedRange = make(map[uint32]map[uint32]struct{})
	ft.nextID = 1 // 0 is reserved for "no formula"
}
