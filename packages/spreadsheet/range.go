package spreadsheet

import (
	"fmt"
	"iter"
)

const (
	MaxRows    = 1048576 // rows per worksheet, matching xlsx limits
	MaxColumns = 16384   // columns per worksheet (XFD)
)

// RangeAddress represents a range of cells within a single worksheet
type RangeAddress struct {
	WorksheetID uint32
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// Contains reports whether cell lies inside the range
func (r RangeAddress) Contains(cell CellAddress) bool {
	return cell.WorksheetID == r.WorksheetID &&
		cell.Row >= r.StartRow && cell.Row <= r.EndRow &&
		cell.Column >= r.StartColumn && cell.Column <= r.EndColumn
}

// Height returns the number of rows covered by the range
func (r RangeAddress) Height() int {
	return int(r.EndRow-r.StartRow) + 1
}

// Width returns the number of columns covered by the range
func (r RangeAddress) Width() int {
	return int(r.EndColumn-r.StartColumn) + 1
}

// Range is an area of cells passed to functions. a single-cell reference is a
// 1x1 Range, so functions that care about "was this a reference" can still
// tell a ref from a literal.
type Range interface {
	GetBounds() RangeAddress
	Iterate() iter.Seq[*Cell]
	IterateValues() iter.Seq[Primitive]

	Height() int
	Width() int
	IsSingleCell() bool

	// ValueAt returns the value at a 0-based position relative to the top
	// left corner
	ValueAt(row, col int) Primitive

	// Offset derives a new area from the top left corner of this one.
	// returns #REF! if the result falls off the worksheet.
	Offset(rowOffset, colOffset, height, width int) (Range, error)
}

// cellSource is what a CellRange reads through. the spreadsheet implements it
// so that dirty formula cells are brought up to date on first read.
type cellSource interface {
	cellAt(worksheetID, row, col uint32) *Cell
}

// CellRange implements Range for lazy cell iteration over a worksheet
type CellRange struct {
	addr   RangeAddress
	source cellSource
}

// NewCellRange creates a range over addr, normalizing reversed corners
func NewCellRange(addr RangeAddress, source cellSource) *CellRange {
	if addr.StartRow > addr.EndRow {
		addr.StartRow, addr.EndRow = addr.EndRow, addr.StartRow
	}
	if addr.StartColumn > addr.EndColumn {
		addr.StartColumn, addr.EndColumn = addr.EndColumn, addr.StartColumn
	}
	return &CellRange{addr: addr, source: source}
}

// GetBounds returns the range boundaries
func (r *CellRange) GetBounds() RangeAddress {
	return r.addr
}

func (r *CellRange) Height() int { return r.addr.Height() }

func (r *CellRange) Width() int { return r.addr.Width() }

func (r *CellRange) IsSingleCell() bool {
	return r.addr.StartRow == r.addr.EndRow && r.addr.StartColumn == r.addr.EndColumn
}

func (r *CellRange) cell(row, col uint32) *Cell {
	var cell *Cell
	if r.source != nil {
		cell = r.source.cellAt(r.addr.WorksheetID, row, col)
	}
	if cell == nil {
		cell = &Cell{Type: CellValueTypeEmpty, Row: row, Col: col}
	}
	return cell
}

// ValueAt returns the value at a relative position, blank when outside
func (r *CellRange) ValueAt(row, col int) Primitive {
	if row < 0 || col < 0 || row >= r.Height() || col >= r.Width() {
		return nil
	}
	return r.cell(r.addr.StartRow+uint32(row), r.addr.StartColumn+uint32(col)).Value
}

// Offset derives a new range relative to the top left corner
func (r *CellRange) Offset(rowOffset, colOffset, height, width int) (Range, error) {
	addr, err := offsetAddress(r.addr, rowOffset, colOffset, height, width)
	if err != nil {
		return nil, err
	}
	return &CellRange{addr: addr, source: r.source}, nil
}

// Iterate returns an iterator over all cells in the range, row by row
func (r *CellRange) Iterate() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for row := r.addr.StartRow; row <= r.addr.EndRow; row++ {
			for col := r.addr.StartColumn; col <= r.addr.EndColumn; col++ {
				if !yield(r.cell(row, col)) {
					return
				}
			}
		}
	}
}

// IterateValues returns an iterator over cell values in the range
func (r *CellRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for cell := range r.Iterate() {
			if !yield(cell.Value) {
				return
			}
		}
	}
}

// offsetAddress moves and resizes addr. it is shared by every Range
// implementation so OFFSET behaves the same against test doubles.
func offsetAddress(addr RangeAddress, rowOffset, colOffset, height, width int) (RangeAddress, error) {
	if height == 0 || width == 0 {
		return RangeAddress{}, errRef("offset height and width must be non-zero")
	}
	top := int(addr.StartRow) + rowOffset
	left := int(addr.StartColumn) + colOffset
	bottom := top + height - 1
	right := left + width - 1
	if height < 0 {
		top, bottom = top+height+1, top
	}
	if width < 0 {
		left, right = left+width+1, left
	}
	if top < 0 || left < 0 || bottom >= MaxRows || right >= MaxColumns {
		return RangeAddress{}, errRef(fmt.Sprintf("offset (%d,%d) size %dx%d is outside the worksheet", rowOffset, colOffset, height, width))
	}
	return RangeAddress{
		WorksheetID: addr.WorksheetID,
		StartRow:    uint32(top),
		StartColumn: uint32(left),
		EndRow:      uint32(bottom),
		EndColumn:   uint32(right),
	}, nil
}

// rangeValues flattens a range row by row
func rangeValues(r Range) []Primitive {
	values := make([]Primitive, 0, r.Height()*r.Width())
	for v := range r.IterateValues() {
		values = append(values, v)
	}
	return values
}

// ValueRange is a Range over a fixed buffer of values laid out row-major
// over origin. offsets may move it anywhere on the sheet, positions that
// fall outside the buffer read as blank.
type ValueRange struct {
	addr   RangeAddress
	origin RangeAddress
	values []Primitive
}

// NewValueRange creates a range whose cells hold values. the buffer must
// have Height()*Width() entries, missing trailing entries read as blank.
func NewValueRange(addr RangeAddress, values []Primitive) *ValueRange {
	addr = NewCellRange(addr, nil).addr
	return &ValueRange{addr: addr, origin: addr, values: values}
}

func (r *ValueRange) GetBounds() RangeAddress { return r.addr }

func (r *ValueRange) Height() int { return r.addr.Height() }

func (r *ValueRange) Width() int { return r.addr.Width() }

func (r *ValueRange) IsSingleCell() bool {
	return r.addr.StartRow == r.addr.EndRow && r.addr.StartColumn == r.addr.EndColumn
}

func (r *ValueRange) at(row, col uint32) Primitive {
	if !r.origin.Contains(CellAddress{WorksheetID: r.origin.WorksheetID, Row: row, Column: col}) {
		return nil
	}
	idx := int(row-r.origin.StartRow)*r.origin.Width() + int(col-r.origin.StartColumn)
	if idx >= len(r.values) {
		return nil
	}
	return r.values[idx]
}

func (r *ValueRange) ValueAt(row, col int) Primitive {
	if row < 0 || col < 0 || row >= r.Height() || col >= r.Width() {
		return nil
	}
	return r.at(r.addr.StartRow+uint32(row), r.addr.StartColumn+uint32(col))
}

func (r *ValueRange) Offset(rowOffset, colOffset, height, width int) (Range, error) {
	addr, err := offsetAddress(r.addr, rowOffset, colOffset, height, width)
	if err != nil {
		return nil, err
	}
	return &ValueRange{addr: addr, origin: r.origin, values: r.values}, nil
}

func (r *ValueRange) Iterate() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for row := r.addr.StartRow; row <= r.addr.EndRow; row++ {
			for col := r.addr.StartColumn; col <= r.addr.EndColumn; col++ {
				v := r.at(row, col)
				if !yield(&Cell{Type: TypeOf(v), Row: row, Col: col, Value: v}) {
					return
				}
			}
		}
	}
}

func (r *ValueRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for row := r.addr.StartRow; row <= r.addr.EndRow; row++ {
			for col := r.addr.StartColumn; col <= r.addr.EndColumn; col++ {
				if !yield(r.at(row, col)) {
					return
				}
			}
		}
	}
}
