package spreadsheet

import "strings"

// Primitive represents every value a formula can produce or consume.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: blank cells
//   - *SpreadsheetError: error values (#DIV/0!, #VALUE!, etc.)
//   - Range: an area, or a single-cell reference when it is 1x1
type Primitive any

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function or name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large, small or out of domain
	ErrorCodeNA    ErrorCode = 7 // #N/A - value not available, wrong argument count
	ErrorCodeOther ErrorCode = 8 // #ERROR! - all other errors
)

// ErrorMapper maps error codes to their display text
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeOther: "#ERROR!",
}

// String renders the code the way a cell displays it
func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return ErrorMapper[ErrorCodeOther]
}

// ParseErrorCode maps display text such as "#N/A" back to its code. matching
// is case-insensitive.
func ParseErrorCode(s string) (ErrorCode, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for code, text := range ErrorMapper {
		if text == upper {
			return code, true
		}
	}
	return 0, false
}

// SpreadsheetError preserves error code for display in cells. it is used both
// as a Go error and as a cell value.
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorCode.String()
}

// Is reports whether target is a *SpreadsheetError with the same code, so
// errors.Is works against values returned by NewSpreadsheetError.
func (e *SpreadsheetError) Is(target error) bool {
	t, ok := target.(*SpreadsheetError)
	return ok && t.ErrorCode == e.ErrorCode
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = code.String()
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// shorthand constructors used throughout the function library
func errValue(message string) *SpreadsheetError { return NewSpreadsheetError(ErrorCodeValue, message) }
func errNum(message string) *SpreadsheetError   { return NewSpreadsheetError(ErrorCodeNum, message) }
func errDiv0(message string) *SpreadsheetError  { return NewSpreadsheetError(ErrorCodeDiv0, message) }
func errRef(message string) *SpreadsheetError   { return NewSpreadsheetError(ErrorCodeRef, message) }
func errNA(message string) *SpreadsheetError    { return NewSpreadsheetError(ErrorCodeNA, message) }

// CellType represents numeric constants for cell value
// types (external API)
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeDate    CellType = 3
	CellValueTypeBoolean CellType = 4
	CellValueTypeError   CellType = 5
)

// TypeOf returns the cell type a primitive would be stored as
func TypeOf(value Primitive) CellType {
	switch value.(type) {
	case float64, int, int64:
		return CellValueTypeNumber
	case string:
		return CellValueTypeString
	case bool:
		return CellValueTypeBoolean
	case *SpreadsheetError:
		return CellValueTypeError
	default:
		return CellValueTypeEmpty
	}
}

type CellAddress struct {
	WorksheetID uint32
	Row         uint32
	Column      uint32
}

// Cell represents a spreadsheet cell with its data and metadata
type Cell struct {
	Type              CellType  // cell type constant indicating data type
	Row               uint32    // zero-based row index
	Col               uint32    // zero-based column index
	Value             Primitive // actual cell value - type depends on cell type
	StringID          uint32    // internal string table ID for STRING/ERROR types
	Formula           string    // formula text for FORMULA type cells
	FormulaID         uint32    // internal formula table ID for FORMULA type
	FormulaResultType CellType  // for FORMULA cells, the returned type
}
