package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode enables dependency extraction, formula deduplication, and
// volatile function detection through tree traversal rather than
// regex/string manipulation.
type ASTNode interface {
	Eval(ec *EvalContext) (Primitive, error)
	GetPosition() NodePosition
	ToString() string
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(ec *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ec *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(ec *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ErrorNode represents an error literal such as #N/A
type ErrorNode struct {
	Code     ErrorCode
	Position NodePosition
}

func (n *ErrorNode) Eval(ec *EvalContext) (Primitive, error) {
	return NewSpreadsheetError(n.Code, ""), nil
}

func (n *ErrorNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ErrorNode) ToString() string {
	return n.Code.String()
}

// EmptyArgNode is an omitted function argument, as in IF(A1,,1)
type EmptyArgNode struct {
	Position NodePosition
}

func (n *EmptyArgNode) Eval(ec *EvalContext) (Primitive, error) {
	return nil, nil
}

func (n *EmptyArgNode) GetPosition() NodePosition {
	return n.Position
}

func (n *EmptyArgNode) ToString() string {
	return ""
}

// CellRefNode represents a cell reference stored relative to the formula cell
type CellRefNode struct {
	WorksheetID uint32
	RowOffset   int32
	ColOffset   int32
	Position    NodePosition
}

// Address resolves the reference against the cell that holds the formula
func (n *CellRefNode) Address(source CellAddress) (CellAddress, bool) {
	row := int64(source.Row) + int64(n.RowOffset)
	col := int64(source.Column) + int64(n.ColOffset)
	if row < 0 || col < 0 || row >= MaxRows || col >= MaxColumns {
		return CellAddress{}, false
	}
	worksheetID := n.WorksheetID
	if worksheetID == 0 {
		worksheetID = source.WorksheetID
	}
	return CellAddress{WorksheetID: worksheetID, Row: uint32(row), Column: uint32(col)}, true
}

// Eval returns a 1x1 Range. operators dereference it, functions may keep it
// as a reference.
func (n *CellRefNode) Eval(ec *EvalContext) (Primitive, error) {
	addr, ok := n.Address(ec.Source)
	if !ok {
		return nil, errRef("invalid cell reference")
	}
	return ec.area(RangeAddress{
		WorksheetID: addr.WorksheetID,
		StartRow:    addr.Row,
		StartColumn: addr.Column,
		EndRow:      addr.Row,
		EndColumn:   addr.Column,
	})
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	if n.WorksheetID != 0 {
		return fmt.Sprintf("WS_REF(%d,%d,%d)", n.WorksheetID, n.RowOffset, n.ColOffset)
	}
	return fmt.Sprintf("REF(%d,%d)", n.RowOffset, n.ColOffset)
}

// RangeNode represents a range of cells stored relative to the formula cell
type RangeNode struct {
	WorksheetID    uint32
	StartRowOffset int32
	StartColOffset int32
	EndRowOffset   int32
	EndColOffset   int32
	Position       NodePosition
}

// Address resolves the range against the cell that holds the formula
func (n *RangeNode) Address(source CellAddress) (RangeAddress, bool) {
	startRow := int64(source.Row) + int64(n.StartRowOffset)
	startCol := int64(source.Column) + int64(n.StartColOffset)
	endRow := int64(source.Row) + int64(n.EndRowOffset)
	endCol := int64(source.Column) + int64(n.EndColOffset)
	for _, v := range []int64{startRow, endRow} {
		if v < 0 || v >= MaxRows {
			return RangeAddress{}, false
		}
	}
	for _, v := range []int64{startCol, endCol} {
		if v < 0 || v >= MaxColumns {
			return RangeAddress{}, false
		}
	}
	worksheetID := n.WorksheetID
	if worksheetID == 0 {
		worksheetID = source.WorksheetID
	}
	return RangeAddress{
		WorksheetID: worksheetID,
		StartRow:    uint32(min(startRow, endRow)),
		StartColumn: uint32(min(startCol, endCol)),
		EndRow:      uint32(max(startRow, endRow)),
		EndColumn:   uint32(max(startCol, endCol)),
	}, true
}

func (n *RangeNode) Eval(ec *EvalContext) (Primitive, error) {
	addr, ok := n.Address(ec.Source)
	if !ok {
		return nil, errRef("invalid range reference")
	}
	return ec.area(addr)
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	if n.WorksheetID != 0 {
		return fmt.Sprintf("WS_RANGE(%d,%d,%d,%d,%d)", n.WorksheetID,
			n.StartRowOffset, n.StartColOffset, n.EndRowOffset, n.EndColOffset)
	}
	return fmt.Sprintf("N_WS_RANGE(%d,%d,%d,%d)",
		n.StartRowOffset, n.StartColOffset, n.EndRowOffset, n.EndColOffset)
}

// NamedRangeNode represents a named range reference
type NamedRangeNode struct {
	Name     string
	Position NodePosition
}

func (n *NamedRangeNode) Eval(ec *EvalContext) (Primitive, error) {
	if ec.Refs == nil {
		return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("Named range '%s' not found", n.Name))
	}
	return ec.Refs.NamedRange(n.Name)
}

func (n *NamedRangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NamedRangeNode) ToString() string {
	return strings.ToUpper(n.Name)
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

// operand evaluates a node in operator position: references collapse to a
// single value and evaluation errors become error values
func operand(ec *EvalContext, node ASTNode) Primitive {
	v, err := node.Eval(ec)
	if err != nil {
		return asErrorValue(err)
	}
	return singleValue(v, ec.Source)
}

func (n *BinaryOpNode) Eval(ec *EvalContext) (Primitive, error) {
	leftVal := operand(ec, n.Left)
	rightVal := operand(ec, n.Right)

	if err, ok := leftVal.(*SpreadsheetError); ok {
		return err, nil
	}
	if err, ok := rightVal.(*SpreadsheetError); ok {
		return err, nil
	}

	switch n.Op {
	case BinOpConcat:
		return coerceString(leftVal) + coerceString(rightVal), nil
	case BinOpEqual:
		return compareValues(leftVal, rightVal, false) == 0, nil
	case BinOpNotEqual:
		return compareValues(leftVal, rightVal, false) != 0, nil
	case BinOpLess:
		return compareValues(leftVal, rightVal, false) < 0, nil
	case BinOpLessEqual:
		return compareValues(leftVal, rightVal, false) <= 0, nil
	case BinOpGreater:
		return compareValues(leftVal, rightVal, false) > 0, nil
	case BinOpGreaterEqual:
		return compareValues(leftVal, rightVal, false) >= 0, nil
	}

	left, err := ec.coerceNumber(leftVal)
	if err != nil {
		return nil, err
	}
	right, err := ec.coerceNumber(rightVal)
	if err != nil {
		return nil, err
	}

	var result float64
	switch n.Op {
	case BinOpAdd:
		result = left + right
	case BinOpSubtract:
		result = left - right
	case BinOpMultiply:
		result = left * right
	case BinOpDivide:
		if right == 0 {
			return nil, errDiv0("Division by zero")
		}
		result = left / right
	case BinOpPower:
		if left == 0 && right == 0 {
			return nil, errNum("0^0 is undefined")
		}
		result = math.Pow(left, right)
	default:
		return nil, errValue("Unknown operator")
	}
	return checkNumber(result)
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), binaryOpText[n.Op], n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ec *EvalContext) (Primitive, error) {
	val := operand(ec, n.Operand)
	if err, ok := val.(*SpreadsheetError); ok {
		return err, nil
	}

	num, err := ec.coerceNumber(val)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case UnaryOpPlus:
		return num, nil
	case UnaryOpMinus:
		return -num, nil
	case UnaryOpPercent:
		return num / 100.0, nil
	default:
		return nil, errValue("Unknown unary operator")
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	}
	return "+" + n.Operand.ToString()
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

// Eval evaluates the arguments and dispatches to the registry. arguments that
// fail to evaluate are passed on as error values, the function decides
// whether they matter (IFERROR, ISERROR, COUNT all care differently).
func (n *FunctionCallNode) Eval(ec *EvalContext) (Primitive, error) {
	args := make([]Primitive, len(n.Args))
	for i, argNode := range n.Args {
		argVal, err := argNode.Eval(ec)
		if err != nil {
			argVal = asErrorValue(err)
		}
		args[i] = argVal
	}
	return ec.Call(n.Name, args...)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// walkAST visits every node depth first
func walkAST(node ASTNode, visit func(ASTNode)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case *BinaryOpNode:
		walkAST(n.Left, visit)
		walkAST(n.Right, visit)
	case *UnaryOpNode:
		walkAST(n.Operand, visit)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			walkAST(arg, visit)
		}
	}
}
