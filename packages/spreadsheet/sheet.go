package spreadsheet

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Spreadsheet is the main spreadsheet class that combines storage, parsing,
// dependency tracking, and formula evaluation into a unified API
type Spreadsheet struct {
	storage          *Storage
	calculationStack *CalculationStack
	functions        *BuiltInFunctions

	logger     *slog.Logger
	clock      Clock
	rng        RandomGenerator
	metrics    *Metrics
	dateSystem DateSystem
}

// NewSpreadsheet creates a new spreadsheet instance
func NewSpreadsheet(opts ...Option) *Spreadsheet {
	s := &Spreadsheet{
		storage:          NewStorage(),
		calculationStack: NewCalculationStack(),
		functions:        defaultFunctions(),
		logger:           slog.New(slog.DiscardHandler),
		clock:            &WallClock{},
		rng:              &DefaultRandomGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SpreadsheetInterface interface {
	// cell methods

	Get(address string) (Primitive, error)
	Set(address string, value Primitive) error
	Remove(address string) error

	// worksheet methods

	AddWorksheet(name string) error
	RemoveWorksheet(name string) error
	RenameWorksheet(oldName string, newName string) error
	DoesWorksheetExist(name string) bool
	ListWorksheets() []string
	ListReferencedWorksheets() []string

	// named range methods

	AddNamedRange(name string) error
	DefineNamedRange(name string, address string) error
	RemoveNamedRange(name string) error
	RenameNamedRange(oldName string, newName string) error
	DoesNamedRangeExist(name string) bool
	ListNamedRanges() []string
	ListReferencedNamedRanges() []string

	// common methods

	Calculate() error
	EvaluateFormula(worksheet string, formula string) (Primitive, error)
}

var (
	_ SpreadsheetInterface = (*Spreadsheet)(nil)
	_ ReferenceResolver    = (*Spreadsheet)(nil)
)

// lookupWorksheet resolves a worksheet name to its ID without registering
// it. unknown names resolve to 0.
func (s *Spreadsheet) lookupWorksheet(name string) uint32 {
	id, _ := s.storage.worksheets.GetWorksheetID(name)
	return id
}

// internWorksheet resolves a worksheet name for a formula, registering it as
// referenced if it does not exist yet
func (s *Spreadsheet) internWorksheet(name string) uint32 {
	return s.storage.worksheets.InternWorksheet(name)
}

// resolveAddress parses an address like "Sheet1!B2" into a cell on a
// defined worksheet
func (s *Spreadsheet) resolveAddress(address string) (CellAddress, *Worksheet, error) {
	parser := NewParserWithContext(&ParserContext{ResolveWorksheet: s.lookupWorksheet})
	addr, err := parser.ParseReference(address)
	if err != nil {
		return CellAddress{}, nil, NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid address: %v", err))
	}
	if addr.StartRow != addr.EndRow || addr.StartColumn != addr.EndColumn {
		return CellAddress{}, nil, NewApplicationError(InvalidArgument, fmt.Sprintf("Address '%s' is a range, not a cell", address))
	}
	cell := CellAddress{WorksheetID: addr.WorksheetID, Row: addr.StartRow, Column: addr.StartColumn}
	return cell, s.storage.worksheet(addr.WorksheetID), nil
}

// Get retrieves the value of a cell. formula cells yield their last
// calculated result.
func (s *Spreadsheet) Get(address string) (Primitive, error) {
	addr, worksheet, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	if worksheet == nil {
		return NewSpreadsheetError(ErrorCodeValue, "Worksheet not found"), nil
	}
	cell := worksheet.GetCell(addr.Row, addr.Column)
	if cell == nil {
		return nil, nil
	}
	return cell.Value, nil
}

// normalizeValue converts Go values into the primitives cells store
func (s *Spreadsheet) normalizeValue(value Primitive) (Primitive, error) {
	switch v := value.(type) {
	case nil, float64, string, bool, *SpreadsheetError:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case time.Time:
		return timeToSerial(v, s.dateSystem), nil
	case ErrorCode:
		return NewSpreadsheetError(v, ""), nil
	default:
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("Unsupported cell value type %T", value))
	}
}

// Set sets the value of a cell. strings starting with '=' are formulas, nil
// removes the cell.
func (s *Spreadsheet) Set(address string, value Primitive) error {
	// "WorksheetA!WorksheetB!CellRef" -> "WorksheetB!CellRef"
	if parts := strings.Split(address, "!"); len(parts) == 3 {
		address = parts[1] + "!" + parts[2]
	}

	addr, worksheet, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	if worksheet == nil {
		return NewApplicationError(InvalidArgument, "Cannot set cell on unknown worksheet")
	}

	value, err = s.normalizeValue(value)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Remove(address)
	}

	if text, ok := value.(string); ok && strings.HasPrefix(text, "=") {
		s.setFormula(worksheet, addr, text)
		return nil
	}

	s.detachFormula(addr)
	worksheet.SetCell(addr.Row, addr.Column, value)
	s.markChanged(addr)
	return nil
}

func (s *Spreadsheet) setFormula(worksheet *Worksheet, addr CellAddress, text string) {
	graph := s.storage.dependencyGraph
	ast, err := ParseFormula(text, &ParserContext{
		CurrentWorksheetID: addr.WorksheetID,
		CurrentRow:         int32(addr.Row),
		CurrentColumn:      int32(addr.Column),
		ResolveWorksheet:   s.internWorksheet,
	})

	s.detachFormula(addr)
	if err != nil {
		s.logger.Debug("formula did not parse", "formula", text, "error", err)
		worksheet.SetCell(addr.Row, addr.Column, asErrorValue(err))
		s.markChanged(addr)
		return
	}

	formulaID := s.storage.formulas.InternFormula(ast, addr)
	worksheet.SetFormula(addr.Row, addr.Column, formulaID)
	s.trackNamedRanges(ast, formulaID)
	s.linkDependencies(ast, addr)
	graph.SetHasFormula(addr, true)
	graph.MarkDirty(addr)
	s.markChanged(addr)
}

// detachFormula drops everything the formula at addr registered: named
// range references, graph edges and the volatile mark
func (s *Spreadsheet) detachFormula(addr CellAddress) {
	graph := s.storage.dependencyGraph
	if formulaID, ok := s.storage.formulas.GetFormulaAtCell(addr); ok {
		for _, id := range s.storage.formulas.NamedRangesUsedBy(formulaID) {
			s.storage.namedRanges.RemoveReference(id)
		}
	}
	graph.ClearDependencies(addr)
	graph.UnmarkVolatile(addr)
	graph.SetHasFormula(addr, false)
	graph.ClearDirty(addr)
}

// trackNamedRanges counts one reference per distinct name in the formula
func (s *Spreadsheet) trackNamedRanges(ast ASTNode, formulaID uint32) {
	seen := make(map[string]struct{})
	walkAST(ast, func(node ASTNode) {
		n, ok := node.(*NamedRangeNode)
		if !ok {
			return
		}
		if _, dup := seen[foldName(n.Name)]; dup {
			return
		}
		seen[foldName(n.Name)] = struct{}{}
		id := s.storage.namedRanges.InternNamedRange(n.Name)
		s.storage.formulas.TrackNamedRangeReference(formulaID, id)
	})
}

// linkDependencies records the cells and ranges the formula at addr reads.
// defined named ranges are linked through their current address.
func (s *Spreadsheet) linkDependencies(ast ASTNode, addr CellAddress) {
	graph := s.storage.dependencyGraph
	walkAST(ast, func(node ASTNode) {
		switch n := node.(type) {
		case *CellRefNode:
			if target, ok := n.Address(addr); ok {
				graph.AddCellDependency(addr, target)
			}
		case *RangeNode:
			if r, ok := n.Address(addr); ok {
				graph.AddRangeDependency(addr, r)
			}
		case *NamedRangeNode:
			if id, ok := s.storage.namedRanges.GetNamedRangeID(n.Name); ok {
				if r, defined := s.storage.namedRanges.GetRangeAddress(id); defined {
					graph.AddRangeDependency(addr, r)
				}
			}
		case *FunctionCallNode:
			if s.functions.IsVolatile(n.Name) {
				graph.MarkVolatile(addr)
			}
		}
	})
}

// markWorksheetChanged dirties every formula that transitively reads
// anything on the worksheet
func (s *Spreadsheet) markWorksheetChanged(worksheetID uint32) {
	graph := s.storage.dependencyGraph
	graph.MarkWorksheetDirty(worksheetID)
	for _, addr := range graph.DirtyCells() {
		s.markChanged(addr)
	}
}

// markChanged marks everything that transitively reads addr as dirty
func (s *Spreadsheet) markChanged(addr CellAddress) {
	graph := s.storage.dependencyGraph
	for _, affected := range graph.GetAffectedCells(addr) {
		graph.MarkDirty(affected)
	}
}

// Remove removes a cell
func (s *Spreadsheet) Remove(address string) error {
	addr, worksheet, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	if worksheet == nil {
		return nil // nothing to remove from an unknown worksheet
	}

	s.detachFormula(addr)
	worksheet.RemoveCell(addr.Row, addr.Column)
	s.markChanged(addr)
	s.storage.dependencyGraph.RemoveNode(addr)
	return nil
}

// AddWorksheet adds a new worksheet. formulas that already referenced the
// name pick it up on the next calculation.
func (s *Spreadsheet) AddWorksheet(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "Worksheet name cannot be empty")
	}
	if s.DoesWorksheetExist(name) {
		return NewApplicationError(AlreadyExists, "Worksheet already exists")
	}

	worksheetID := s.storage.worksheets.DefineWorksheet(name, NewWorksheet(s.storage, 0))
	s.markWorksheetChanged(worksheetID)
	s.logger.Debug("worksheet added", "worksheet", name, "id", worksheetID)
	return nil
}

// RemoveWorksheet removes a worksheet. formulas elsewhere that read it
// become #REF!.
func (s *Spreadsheet) RemoveWorksheet(name string) error {
	worksheet, exists := s.storage.worksheets.GetWorksheetByName(name)
	if !exists {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	worksheetID := worksheet.ID()
	graph := s.storage.dependencyGraph

	s.markWorksheetChanged(worksheetID)

	cells := slices.Collect(worksheet.Cells())
	for _, cell := range cells {
		addr := CellAddress{WorksheetID: worksheetID, Row: cell.Row, Column: cell.Col}
		s.detachFormula(addr)
		worksheet.RemoveCell(cell.Row, cell.Col)
	}

	// the cells of the removed worksheet may still be dependents of others
	for _, addr := range graph.DirtyCells() {
		if addr.WorksheetID == worksheetID {
			graph.ClearDirty(addr)
		}
	}

	s.storage.worksheets.UndefineWorksheet(name)
	s.logger.Debug("worksheet removed", "worksheet", name, "id", worksheetID)
	return nil
}

// RenameWorksheet renames a worksheet. the worksheet keeps its ID, so
// formulas reading it keep working.
func (s *Spreadsheet) RenameWorksheet(oldName string, newName string) error {
	if !s.DoesWorksheetExist(oldName) {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	if strings.TrimSpace(newName) == "" {
		return NewApplicationError(InvalidArgument, "Worksheet name cannot be empty")
	}
	if s.DoesWorksheetExist(newName) {
		return NewApplicationError(AlreadyExists, "Worksheet name already exists")
	}

	s.storage.worksheets.RenameWorksheet(oldName, newName)
	return nil
}

// DoesWorksheetExist checks if a worksheet exists
func (s *Spreadsheet) DoesWorksheetExist(name string) bool {
	id, exists := s.storage.worksheets.GetWorksheetID(name)
	return exists && s.storage.worksheets.IsWorksheetDefined(id)
}

// ListWorksheets returns all defined worksheet names, sorted
func (s *Spreadsheet) ListWorksheets() []string {
	worksheets := s.storage.worksheets.GetAllDefinedWorksheets()
	result := make([]string, 0, len(worksheets))
	for name := range worksheets {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// ListReferencedWorksheets returns all referenced but undefined worksheet
// names, sorted
func (s *Spreadsheet) ListReferencedWorksheets() []string {
	result := s.storage.worksheets.GetAllUndefinedWorksheets()
	slices.Sort(result)
	return result
}

// AddNamedRange declares a named range without an address. formulas using
// it evaluate to #NAME? until DefineNamedRange gives it one.
func (s *Spreadsheet) AddNamedRange(name string) error {
	if err := validateRangeName(name); err != nil {
		return err
	}
	if id, ok := s.storage.namedRanges.GetNamedRangeID(name); ok && s.storage.namedRanges.IsDeclared(id) {
		return NewApplicationError(AlreadyExists, "Named range already exists")
	}

	s.storage.namedRanges.DeclareNamedRange(name)
	return nil
}

func validateRangeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "Named range name cannot be empty")
	}
	if _, _, ok := splitCellReference(strings.ToUpper(name)); ok {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Named range '%s' looks like a cell reference", name))
	}
	return nil
}

// DefineNamedRange points a named range at an address like "Sheet1!A1:B4",
// declaring the name if needed
func (s *Spreadsheet) DefineNamedRange(name string, address string) error {
	if err := validateRangeName(name); err != nil {
		return err
	}
	parser := NewParserWithContext(&ParserContext{ResolveWorksheet: s.lookupWorksheet})
	addr, err := parser.ParseReference(address)
	if err != nil {
		return err
	}
	if s.storage.worksheet(addr.WorksheetID) == nil {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Address '%s' does not name an existing worksheet", address))
	}

	id := s.storage.namedRanges.DefineNamedRange(name, addr)
	s.refreshNamedRangeUsers(id)
	return nil
}

// refreshNamedRangeUsers relinks and dirties every formula reading the
// named range after its address changed
func (s *Spreadsheet) refreshNamedRangeUsers(id uint32) {
	graph := s.storage.dependencyGraph
	for _, addr := range s.storage.formulas.CellsUsingNamedRange(id) {
		formulaID, ok := s.storage.formulas.GetFormulaAtCell(addr)
		if !ok {
			continue
		}
		ast, ok := s.storage.formulas.GetAST(formulaID)
		if !ok {
			continue
		}
		graph.ClearDependencies(addr)
		graph.UnmarkVolatile(addr)
		s.linkDependencies(ast, addr)
		graph.SetHasFormula(addr, true)
		graph.MarkDirty(addr)
		s.markChanged(addr)
	}
}

// RemoveNamedRange removes a named range. formulas using it become #NAME?.
func (s *Spreadsheet) RemoveNamedRange(name string) error {
	id, ok := s.storage.namedRanges.GetNamedRangeID(name)
	if !ok || !s.storage.namedRanges.IsDeclared(id) {
		return NewApplicationError(NotFound, "Named range not found")
	}

	users := s.storage.formulas.CellsUsingNamedRange(id)
	s.storage.namedRanges.UndefineNamedRange(name)
	s.refreshNamedRangeUsers(id)
	if len(users) > 0 {
		s.logger.Debug("named range removed while in use", "name", name, "cells", len(users))
	}
	return nil
}

// RenameNamedRange renames a named range. formulas still using the old name
// evaluate to #NAME?.
func (s *Spreadsheet) RenameNamedRange(oldName string, newName string) error {
	oldID, ok := s.storage.namedRanges.GetNamedRangeID(oldName)
	if !ok || !s.storage.namedRanges.IsDeclared(oldID) {
		return NewApplicationError(NotFound, "Named range not found")
	}
	if err := validateRangeName(newName); err != nil {
		return err
	}
	if newID, exists := s.storage.namedRanges.GetNamedRangeID(newName); exists && s.storage.namedRanges.IsDeclared(newID) {
		return NewApplicationError(AlreadyExists, "Named range already exists")
	}

	rangeAddr, isDefined := s.storage.namedRanges.GetRangeAddress(oldID)
	s.storage.namedRanges.UndefineNamedRange(oldName)
	s.refreshNamedRangeUsers(oldID)

	if isDefined {
		newID := s.storage.namedRanges.DefineNamedRange(newName, rangeAddr)
		s.refreshNamedRangeUsers(newID)
	} else {
		s.storage.namedRanges.DeclareNamedRange(newName)
	}
	return nil
}

// DoesNamedRangeExist checks if a named range has an address
func (s *Spreadsheet) DoesNamedRangeExist(name string) bool {
	id, exists := s.storage.namedRanges.GetNamedRangeID(name)
	return exists && s.storage.namedRanges.IsRangeDefined(id)
}

// ListNamedRanges returns all defined named range names, sorted
func (s *Spreadsheet) ListNamedRanges() []string {
	ranges := s.storage.namedRanges.GetAllDefinedRanges()
	result := make([]string, 0, len(ranges))
	for name := range ranges {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// ListReferencedNamedRanges returns all declared or referenced named
// ranges that have no address, sorted
func (s *Spreadsheet) ListReferencedNamedRanges() []string {
	result := s.storage.namedRanges.GetAllUndefinedRanges()
	slices.Sort(result)
	return result
}

// Calculate recalculates all dirty cells in the spreadsheet. volatile cells
// and their dependents are always recalculated.
func (s *Spreadsheet) Calculate() error {
	start := time.Now()
	graph := s.storage.dependencyGraph

	graph.MarkAllVolatileDirty()
	s.calculationStack.reset()

	dirty := graph.DirtyCells()
	s.metrics.setDirtyCells(len(dirty))
	for _, addr := range dirty {
		// calculating an earlier cell may already have pulled this one in
		if graph.IsDirty(addr) {
			s.calculateCell(addr)
		}
	}
	s.calculationStack.reset()
	s.metrics.setDirtyCells(graph.DirtyCount())

	elapsed := time.Since(start)
	s.metrics.observeCalculation(elapsed)
	s.logger.Debug("calculated", "cells", len(dirty), "duration", elapsed)
	return nil
}

// calculateCell evaluates the formula at addr and stores its result
func (s *Spreadsheet) calculateCell(addr CellAddress) {
	graph := s.storage.dependencyGraph
	graph.ClearDirty(addr)

	worksheet := s.storage.worksheet(addr.WorksheetID)
	if worksheet == nil {
		return
	}
	formulaID := worksheet.FormulaID(addr.Row, addr.Column)
	if formulaID == 0 {
		return
	}
	ast, ok := s.storage.formulas.GetAST(formulaID)
	if !ok {
		return
	}

	s.calculationStack.push(addr)
	result := s.evaluate(ast, addr)
	s.calculationStack.pop()

	worksheet.SetFormulaResult(addr.Row, addr.Column, result)
}

func (s *Spreadsheet) evalContext(source CellAddress) *EvalContext {
	return &EvalContext{
		Source:     source,
		Clock:      s.clock,
		Random:     s.rng,
		DateSystem: s.dateSystem,
		Refs:       s,
		Functions:  s.functions,
		Logger:     s.logger,
		Metrics:    s.metrics,
	}
}

// evaluate runs an AST for the cell at source. errors become error values,
// a range result collapses to one value, a blank result is 0.
func (s *Spreadsheet) evaluate(ast ASTNode, source CellAddress) Primitive {
	result, err := ast.Eval(s.evalContext(source))
	if err != nil {
		return asErrorValue(err)
	}
	result = singleValue(result, source)
	if result == nil {
		return 0.0
	}
	return result
}

// EvaluateFormula evaluates formula text as if it sat in A1 of worksheet,
// without storing it. the leading '=' is optional.
func (s *Spreadsheet) EvaluateFormula(worksheet string, formula string) (Primitive, error) {
	ws, exists := s.storage.worksheets.GetWorksheetByName(worksheet)
	if !exists {
		return nil, NewApplicationError(NotFound, "Worksheet not found")
	}
	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}
	source := CellAddress{WorksheetID: ws.ID()}
	ast, err := ParseFormula(formula, &ParserContext{
		CurrentWorksheetID: ws.ID(),
		ResolveWorksheet:   s.internWorksheet,
	})
	if err != nil {
		return asErrorValue(err), nil
	}
	return s.evaluate(ast, source), nil
}

// cellAt serves cell reads during evaluation. a dirty formula cell is
// calculated first; a cell already on the calculation stack is a circular
// reference.
func (s *Spreadsheet) cellAt(worksheetID, row, col uint32) *Cell {
	addr := CellAddress{WorksheetID: worksheetID, Row: row, Column: col}
	if s.calculationStack.isProcessing(addr) {
		s.logger.Debug("circular reference", "worksheet", worksheetID, "row", row, "column", col, "depth", s.calculationStack.depth())
		return &Cell{Type: CellValueTypeError, Row: row, Col: col, Value: errRef("circular reference")}
	}
	worksheet := s.storage.worksheet(worksheetID)
	if worksheet == nil {
		return &Cell{Type: CellValueTypeError, Row: row, Col: col, Value: errRef("worksheet does not exist")}
	}
	if s.storage.dependencyGraph.IsDirty(addr) {
		s.calculateCell(addr)
	}
	return worksheet.GetCell(row, col)
}

// Area resolves a rectangular area for formula evaluation
func (s *Spreadsheet) Area(addr RangeAddress) (Range, error) {
	if s.storage.worksheet(addr.WorksheetID) == nil {
		return nil, errRef("worksheet does not exist")
	}
	return NewCellRange(addr, s), nil
}

// NamedRange resolves a defined named range, #NAME? otherwise
func (s *Spreadsheet) NamedRange(name string) (Range, error) {
	id, ok := s.storage.namedRanges.GetNamedRangeID(name)
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("Named range '%s' not found", name))
	}
	addr, defined := s.storage.namedRanges.GetRangeAddress(id)
	if !defined {
		return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("Named range '%s' is not defined", name))
	}
	return s.Area(addr)
}

// Reference resolves reference text for INDIRECT. the text may also be a
// defined name.
func (s *Spreadsheet) Reference(text string, worksheetID uint32) (Range, error) {
	parser := NewParserWithContext(&ParserContext{
		CurrentWorksheetID: worksheetID,
		ResolveWorksheet:   s.lookupWorksheet,
	})
	addr, err := parser.ParseReference(text)
	if err != nil {
		if s.DoesNamedRangeExist(text) {
			return s.NamedRange(text)
		}
		return nil, errRef(fmt.Sprintf("'%s' is not a valid reference", text))
	}
	return s.Area(addr)
}

// WorksheetName returns the name a worksheet ID is registered under
func (s *Spreadsheet) WorksheetName(id uint32) (string, bool) {
	return s.storage.worksheets.GetWorksheetName(id)
}

// GetWorksheet returns a worksheet by name for diagnostic purposes
func (s *Spreadsheet) GetWorksheet(name string) (*Worksheet, bool) {
	return s.storage.worksheets.GetWorksheetByName(name)
}

// GetDependencyGraph returns the dependency graph for diagnostic purposes
func (s *Spreadsheet) GetDependencyGraph() *DependencyGraph {
	return s.storage.dependencyGraph
}
