package spreadsheet

// Storage holds references to shared tables needed by storage operations
type Storage struct {
	worksheets      *WorksheetTable
	namedRanges     *NamedRangeTable
	strings         *StringTable
	formulas        *FormulaTable
	dependencyGraph *DependencyGraph
}

// NewStorage creates empty shared tables for one spreadsheet
func NewStorage() *Storage {
	return &Storage{
		worksheets:      NewWorksheetTable(),
		namedRanges:     NewNamedRangeTable(),
		strings:         NewStringTable(),
		formulas:        NewFormulaTable(),
		dependencyGraph: NewDependencyGraph(),
	}
}

// worksheet resolves a worksheet by ID, returning nil when it is undefined
func (s *Storage) worksheet(id uint32) *Worksheet {
	ws, ok := s.worksheets.GetWorksheet(id)
	if !ok {
		return nil
	}
	return ws
}
