package spreadsheet

import (
	"iter"
	"slices"
)

// WorksheetTable manages worksheet storage and ID mappings. like named
// ranges, a worksheet can be referenced by a formula before it exists, in
// which case it is tracked as undefined until someone adds it.
type WorksheetTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> display name

	definedWorksheets map[uint32]*Worksheet
	undefinedIDs      map[uint32]struct{}

	nextID uint32
}

// NewWorksheetTable creates a new worksheet table
func NewWorksheetTable() *WorksheetTable {
	wt := &WorksheetTable{}
	wt.Clear()
	return wt
}

// InternWorksheet returns the ID for name, registering it as undefined if it
// has never been seen
func (wt *WorksheetTable) InternWorksheet(name string) uint32 {
	if id, exists := wt.nameToID[foldName(name)]; exists {
		return id
	}
	id := wt.nextID
	wt.nextID++
	wt.nameToID[foldName(name)] = id
	wt.idToName[id] = name
	wt.undefinedIDs[id] = struct{}{}
	return id
}

// DefineWorksheet attaches a Worksheet to name and returns its ID. formulas
// that referenced the name while it was undefined resolve to it from now on.
func (wt *WorksheetTable) DefineWorksheet(name string, worksheet *Worksheet) uint32 {
	id := wt.InternWorksheet(name)
	wt.idToName[id] = name
	wt.definedWorksheets[id] = worksheet
	delete(wt.undefinedIDs, id)
	if worksheet != nil {
		worksheet.worksheetID = id
	}
	return id
}

// UndefineWorksheet detaches the worksheet from name but keeps the ID, so
// formulas pointing at it evaluate to #REF! instead of silently retargeting
func (wt *WorksheetTable) UndefineWorksheet(name string) bool {
	id, exists := wt.nameToID[foldName(name)]
	if !exists {
		return false
	}
	delete(wt.definedWorksheets, id)
	wt.undefinedIDs[id] = struct{}{}
	return true
}

// RenameWorksheet moves a defined worksheet to a new name, keeping its ID so
// formulas keep pointing at it
func (wt *WorksheetTable) RenameWorksheet(oldName, newName string) bool {
	id, exists := wt.nameToID[foldName(oldName)]
	if !exists {
		return false
	}
	delete(wt.nameToID, foldName(oldName))
	wt.nameToID[foldName(newName)] = id
	wt.idToName[id] = newName
	return true
}

// GetWorksheet returns the Worksheet for a given ID
func (wt *WorksheetTable) GetWorksheet(id uint32) (*Worksheet, bool) {
	worksheet, exists := wt.definedWorksheets[id]
	return worksheet, exists
}

// GetWorksheetByName returns the Worksheet for a given name
func (wt *WorksheetTable) GetWorksheetByName(name string) (*Worksheet, bool) {
	id, exists := wt.nameToID[foldName(name)]
	if !exists {
		return nil, false
	}
	return wt.GetWorksheet(id)
}

// IsWorksheetDefined checks if a worksheet has a definition
func (wt *WorksheetTable) IsWorksheetDefined(id uint32) bool {
	_, exists := wt.definedWorksheets[id]
	return exists
}

// GetWorksheetID returns the ID for a worksheet name
func (wt *WorksheetTable) GetWorksheetID(name string) (uint32, bool) {
	id, exists := wt.nameToID[foldName(name)]
	return id, exists
}

// GetWorksheetName returns the name for a worksheet ID
func (wt *WorksheetTable) GetWorksheetName(id uint32) (string, bool) {
	name, exists := wt.idToName[id]
	return name, exists
}

// Contains checks if a worksheet name is known (defined or undefined)
func (wt *WorksheetTable) Contains(name string) bool {
	_, exists := wt.nameToID[foldName(name)]
	return exists
}

// GetAllDefinedWorksheets returns all defined worksheets by name
func (wt *WorksheetTable) GetAllDefinedWorksheets() map[string]*Worksheet {
	result := make(map[string]*Worksheet, len(wt.definedWorksheets))
	for id, worksheet := range wt.definedWorksheets {
		result[wt.idToName[id]] = worksheet
	}
	return result
}

// GetAllUndefinedWorksheets returns names referenced by formulas that have
// no worksheet behind them
func (wt *WorksheetTable) GetAllUndefinedWorksheets() []string {
	result := make([]string, 0, len(wt.undefinedIDs))
	for id := range wt.undefinedIDs {
		result = append(result, wt.idToName[id])
	}
	return result
}

// Clear removes all worksheets from the table
func (wt *WorksheetTable) Clear() {
	wt.nameToID = make(map[string]uint32)
	wt.idToName = make(map[uint32]string)
	wt.definedWorksheets = make(map[uint32]*Worksheet)
	wt.undefinedIDs = make(map[uint32]struct{})
	wt.nextID = 1 // 0 is reserved for "no worksheet"
}

// ChunkKey represents the key for indexing chunks in Worksheet
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

const (
	ChunkRows uint32 = 256                   // rows per chunk - power of 2 for efficient modulo
	ChunkCols uint32 = 256                   // columns per chunk - matches typical viewport size
	ChunkSize        = ChunkRows * ChunkCols // 65536 cells per chunk
)

// valueSlots is a structure-of-arrays store for one kind of cell value.
// arrays other than Types are allocated on first use.
//
//   - numbers hold NUMBER and BOOLEAN values, and the code of ERROR values
//   - stringIDs hold STRING values, and the message of ERROR values
type valueSlots struct {
	Types     []uint8
	Numbers   []float64
	StringIDs []uint32
}

func (vs *valueSlots) numbers() []float64 {
	if vs.Numbers == nil {
		vs.Numbers = make([]float64, ChunkSize)
	}
	return vs.Numbers
}

func (vs *valueSlots) stringIDs() []uint32 {
	if vs.StringIDs == nil {
		vs.StringIDs = make([]uint32, ChunkSize)
	}
	return vs.StringIDs
}

// Chunk represents a 256x256 region of cells. Values holds literal cell
// contents, Results holds the last calculated result of formula cells.
type Chunk struct {
	Values         valueSlots
	Results        valueSlots
	FormulaIDs     []uint32 // formula table IDs (lazy)
	NonEmptyCount  int
	OccupiedBitmap []uint64 // bit-packed, set for every non-empty cell
}

func (c *Chunk) formulaID(idx uint32) uint32 {
	if c.FormulaIDs == nil {
		return 0
	}
	return c.FormulaIDs[idx]
}

func (c *Chunk) occupied(idx uint32) bool {
	return c.OccupiedBitmap[idx/64]&(1<<(idx%64)) != 0
}

func (c *Chunk) setOccupied(idx uint32, on bool) {
	if on == c.occupied(idx) {
		return
	}
	if on {
		c.OccupiedBitmap[idx/64] |= 1 << (idx % 64)
		c.NonEmptyCount++
	} else {
		c.OccupiedBitmap[idx/64] &^= 1 << (idx % 64)
		c.NonEmptyCount--
	}
}

// Worksheet provides sparse spreadsheet storage optimized for clustered data.
//
// architecture:
//   - cells are partitioned into 256x256 chunks for spatial locality
//   - each chunk allocates arrays lazily based on the cell types present
//   - strings are deduplicated through the shared StringTable
//   - formulas live in the shared FormulaTable, chunks only keep their IDs
type Worksheet struct {
	chunks      map[ChunkKey]*Chunk
	totalCells  int
	cellsByType [8]uint32
	storage     *Storage
	worksheetID uint32
}

// NewWorksheet creates a new worksheet
func NewWorksheet(storage *Storage, worksheetID uint32) *Worksheet {
	return &Worksheet{
		chunks:      make(map[ChunkKey]*Chunk),
		storage:     storage,
		worksheetID: worksheetID,
	}
}

// ID returns the worksheet ID assigned by the WorksheetTable
func (w *Worksheet) ID() uint32 {
	return w.worksheetID
}

func locate(row, col uint32) (ChunkKey, uint32) {
	key := ChunkKey{ChunkRow: row / ChunkRows, ChunkCol: col / ChunkCols}
	// column-first indexing for better cache locality in column scans
	idx := (col%ChunkCols)*ChunkRows + row%ChunkRows
	return key, idx
}

func (w *Worksheet) getChunk(key ChunkKey) *Chunk {
	chunk, exists := w.chunks[key]
	if !exists {
		chunk = &Chunk{
			Values:         valueSlots{Types: make([]uint8, ChunkSize)},
			OccupiedBitmap: make([]uint64, (ChunkSize+63)/64),
		}
		w.chunks[key] = chunk
	}
	return chunk
}

func (w *Worksheet) lookupString(id uint32) string {
	if w.storage == nil {
		return ""
	}
	s, _ := w.storage.strings.GetString(id)
	return s
}

func (w *Worksheet) internString(s string) uint32 {
	if w.storage == nil {
		return 0
	}
	return w.storage.strings.Intern(s)
}

func (w *Worksheet) releaseString(id uint32) {
	if w.storage != nil && id != 0 {
		w.storage.strings.RemoveReference(id)
	}
}

// read decodes the value stored at idx
func (w *Worksheet) read(vs *valueSlots, idx uint32) Primitive {
	if vs.Types == nil {
		return nil
	}
	switch CellType(vs.Types[idx]) {
	case CellValueTypeNumber, CellValueTypeDate:
		return vs.Numbers[idx]
	case CellValueTypeString:
		return w.lookupString(vs.StringIDs[idx])
	case CellValueTypeBoolean:
		return vs.Numbers[idx] != 0
	case CellValueTypeError:
		var message string
		if vs.StringIDs != nil {
			message = w.lookupString(vs.StringIDs[idx])
		}
		return NewSpreadsheetError(ErrorCode(vs.Numbers[idx]), message)
	}
	return nil
}

// write encodes value at idx, releasing any string it replaces
func (w *Worksheet) write(vs *valueSlots, idx uint32, value Primitive) CellType {
	if vs.Types == nil {
		vs.Types = make([]uint8, ChunkSize)
	}
	old := CellType(vs.Types[idx])
	if (old == CellValueTypeString || old == CellValueTypeError) && vs.StringIDs != nil {
		w.releaseString(vs.StringIDs[idx])
		vs.StringIDs[idx] = 0
	}

	cellType := TypeOf(value)
	switch v := value.(type) {
	case float64:
		vs.numbers()[idx] = v
	case int:
		vs.numbers()[idx] = float64(v)
	case int64:
		vs.numbers()[idx] = float64(v)
	case string:
		vs.stringIDs()[idx] = w.internString(v)
	case bool:
		vs.numbers()[idx] = 0
		if v {
			vs.numbers()[idx] = 1
		}
	case *SpreadsheetError:
		vs.numbers()[idx] = float64(v.ErrorCode)
		vs.stringIDs()[idx] = w.internString(v.Message)
	}
	vs.Types[idx] = uint8(cellType)
	return cellType
}

func (w *Worksheet) countType(oldType, newType CellType) {
	if oldType == newType {
		return
	}
	if w.cellsByType[oldType] > 0 {
		w.cellsByType[oldType]--
	}
	w.cellsByType[newType]++
}

// GetCell retrieves a cell at the given row and column, or nil if empty
func (w *Worksheet) GetCell(row, col uint32) *Cell {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists || !chunk.occupied(idx) {
		return nil
	}

	cell := &Cell{
		Type: CellType(chunk.Values.Types[idx]),
		Row:  row,
		Col:  col,
	}
	if formulaID := chunk.formulaID(idx); formulaID != 0 {
		cell.FormulaID = formulaID
		if w.storage != nil {
			if ast, ok := w.storage.formulas.GetAST(formulaID); ok {
				cell.Formula = ast.ToString()
			}
		}
		cell.Value = w.read(&chunk.Results, idx)
		cell.FormulaResultType = TypeOf(cell.Value)
		return cell
	}

	cell.Value = w.read(&chunk.Values, idx)
	if cell.Type == CellValueTypeString || cell.Type == CellValueTypeError {
		cell.StringID = chunk.Values.StringIDs[idx]
	}
	return cell
}

// FormulaID returns the formula table ID stored at a cell, 0 if none
func (w *Worksheet) FormulaID(row, col uint32) uint32 {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists {
		return 0
	}
	return chunk.formulaID(idx)
}

// releaseFormula detaches a formula from the cell, if any
func (w *Worksheet) releaseFormula(chunk *Chunk, idx, row, col uint32) {
	formulaID := chunk.formulaID(idx)
	if formulaID == 0 {
		return
	}
	if w.storage != nil {
		w.storage.formulas.RemoveCellReference(formulaID, CellAddress{WorksheetID: w.worksheetID, Row: row, Column: col})
	}
	chunk.FormulaIDs[idx] = 0
	w.write(&chunk.Results, idx, nil)
}

// SetCell stores a literal value, replacing any formula in the cell. a nil
// value empties the cell.
func (w *Worksheet) SetCell(row, col uint32, value Primitive) {
	if value == nil {
		w.RemoveCell(row, col)
		return
	}
	key, idx := locate(row, col)
	chunk := w.getChunk(key)
	w.releaseFormula(chunk, idx, row, col)

	wasOccupied := chunk.occupied(idx)
	oldType := CellType(chunk.Values.Types[idx])
	newType := w.write(&chunk.Values, idx, value)
	if newType == CellValueTypeEmpty {
		// unsupported Go type, nothing stored
		w.RemoveCell(row, col)
		return
	}
	chunk.setOccupied(idx, true)
	if !wasOccupied {
		w.totalCells++
	}
	w.countType(oldType, newType)
}

// SetFormula marks the cell as holding the given interned formula. its
// result stays blank until the next calculation.
func (w *Worksheet) SetFormula(row, col uint32, formulaID uint32) {
	key, idx := locate(row, col)
	chunk := w.getChunk(key)
	if chunk.formulaID(idx) != formulaID {
		w.releaseFormula(chunk, idx, row, col)
	}

	wasOccupied := chunk.occupied(idx)
	oldType := CellType(chunk.Values.Types[idx])
	w.write(&chunk.Values, idx, nil)
	if chunk.FormulaIDs == nil {
		chunk.FormulaIDs = make([]uint32, ChunkSize)
	}
	chunk.FormulaIDs[idx] = formulaID
	chunk.setOccupied(idx, true)
	if !wasOccupied {
		w.totalCells++
	}
	w.countType(oldType, CellValueTypeEmpty)
}

// RemoveCell removes a cell at the given row and column
func (w *Worksheet) RemoveCell(row, col uint32) {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists || !chunk.occupied(idx) {
		return
	}

	w.releaseFormula(chunk, idx, row, col)
	oldType := CellType(chunk.Values.Types[idx])
	w.write(&chunk.Values, idx, nil)
	w.countType(oldType, CellValueTypeEmpty)

	chunk.setOccupied(idx, false)
	w.totalCells--
	if chunk.NonEmptyCount == 0 {
		delete(w.chunks, key)
	}
}

// SetFormulaResult stores the calculated result of a formula cell
func (w *Worksheet) SetFormulaResult(row, col uint32, result Primitive) {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists || chunk.formulaID(idx) == 0 {
		return
	}
	w.write(&chunk.Results, idx, result)
}

// Cells iterates non-empty cells in row-major order
func (w *Worksheet) Cells() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		var cells []*Cell
		for key, chunk := range w.chunks {
			for idx := uint32(0); idx < ChunkSize; idx++ {
				if !chunk.occupied(idx) {
					continue
				}
				row := key.ChunkRow*ChunkRows + idx%ChunkRows
				col := key.ChunkCol*ChunkCols + idx/ChunkRows
				cells = append(cells, w.GetCell(row, col))
			}
		}
		slices.SortFunc(cells, func(a, b *Cell) int {
			if a.Row != b.Row {
				return int(a.Row) - int(b.Row)
			}
			return int(a.Col) - int(b.Col)
		})
		for _, cell := range cells {
			if !yield(cell) {
				return
			}
		}
	}
}

// GetCellTypeCount returns the count of literal cells of a specific type
func (w *Worksheet) GetCellTypeCount(cellType CellType) uint32 {
	if int(cellType) < len(w.cellsByType) {
		return w.cellsByType[cellType]
	}
	return 0
}

// GetTotalCells returns the total number of non-empty cells
func (w *Worksheet) GetTotalCells() int {
	return w.totalCells
}
