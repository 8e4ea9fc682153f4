package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// ParserContext provides context for parsing relative references
type ParserContext struct {
	CurrentWorksheetID uint32
	CurrentRow         int32
	CurrentColumn      int32
	ResolveWorksheet   func(name string) uint32
}

// Parser parses tokens into an AST using precedence climbing. from lowest to
// highest: comparison, concatenation, additive, multiplicative, power,
// unary prefix, percent postfix.
type Parser struct {
	tokens  []Token
	pos     int
	context *ParserContext
}

// NewParser creates a new parser with the given tokens and context
func NewParser(tokens []Token, context *ParserContext) *Parser {
	return &Parser{tokens: tokens, context: context}
}

// NewParserWithContext creates a parser with no tokens, for resolving
// addresses and references on their own
func NewParserWithContext(context *ParserContext) *Parser {
	return &Parser{context: context}
}

// ParseFormula lexes and parses formula text (with its leading '=')
// relative to the context cell
func ParseFormula(formula string, context *ParserContext) (ASTNode, error) {
	tokens, lexErrors := NewLexer(formula).Tokenize()
	if len(lexErrors) > 0 {
		message := strings.Join(lexErrors, "; ")
		if strings.Contains(message, "invalid range reference") || strings.Contains(message, "invalid cell reference after worksheet") {
			return nil, errRef(message)
		}
		return nil, errValue(message)
	}
	return NewParser(tokens, context).Parse()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, errValue("no tokens to parse")
	}
	if p.tokens[0].Type != TokenEquals {
		return nil, errValue("formula must start with '='")
	}
	p.pos = 1

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, errValue(fmt.Sprintf("unexpected token after expression: %s", tok.Value))
	}
	return node, nil
}

// binaryLevel parses one left-associative precedence level
func (p *Parser) binaryLevel(next func() (ASTNode, error), ops map[string]BinaryOp) (ASTNode, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}
		op, ok := ops[tok.Value]
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}
}

var (
	comparisonOps = map[string]BinaryOp{
		"=": BinOpEqual, "<>": BinOpNotEqual, "!=": BinOpNotEqual,
		"<": BinOpLess, "<=": BinOpLessEqual, ">": BinOpGreater, ">=": BinOpGreaterEqual,
	}
	concatOps         = map[string]BinaryOp{"&": BinOpConcat}
	additiveOps       = map[string]BinaryOp{"+": BinOpAdd, "-": BinOpSubtract}
	multiplicativeOps = map[string]BinaryOp{"*": BinOpMultiply, "/": BinOpDivide}
)

func (p *Parser) parseComparison() (ASTNode, error) {
	return p.binaryLevel(p.parseConcatenation, comparisonOps)
}

func (p *Parser) parseConcatenation() (ASTNode, error) {
	return p.binaryLevel(p.parseAddition, concatOps)
}

func (p *Parser) parseAddition() (ASTNode, error) {
	return p.binaryLevel(p.parseMultiplication, additiveOps)
}

func (p *Parser) parseMultiplication() (ASTNode, error) {
	return p.binaryLevel(p.parsePower, multiplicativeOps)
}

// parsePower handles exponentiation. spreadsheets evaluate 2^3^2 left to
// right, so this is left-associative too.
func (p *Parser) parsePower() (ASTNode, error) {
	return p.binaryLevel(p.parseUnary, map[string]BinaryOp{"^": BinOpPower})
}

// parseUnary handles prefix + and -
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePostfix handles trailing percent signs
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenUnaryPostfixOp {
		end := p.peek().Pos + 1
		p.pos++
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: end},
		}
	}
	return node, nil
}

// parsePrimary handles literals, references, functions and parentheses
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.peek()
	position := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, errValue(fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val, Position: position}, nil

	case TokenString:
		p.pos++
		position.End += 2 // quotes
		return &StringNode{Value: tok.Value, Position: position}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Position: position}, nil

	case TokenErrorLiteral:
		p.pos++
		code, _ := ParseErrorCode(tok.Value)
		return &ErrorNode{Code: code, Position: position}, nil

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		p.pos++
		return p.parseRange(tok)

	case TokenIdentifier:
		p.pos++
		return &NamedRangeNode{Name: tok.Value, Position: position}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, errValue("expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, errValue("unexpected end of expression")

	default:
		return nil, errValue(fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses NAME(arg, arg, ...). omitted arguments become
// EmptyArgNode.
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.peek()
	p.pos++
	if p.peek().Type != TokenLeftParen {
		return nil, errValue("expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}
	if p.peek().Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		var arg ASTNode
		if t := p.peek(); t.Type == TokenComma || t.Type == TokenRightParen {
			arg = &EmptyArgNode{Position: NodePosition{Start: t.Pos, End: t.Pos}}
		} else {
			var err error
			arg, err = p.parseComparison()
			if err != nil {
				return nil, err
			}
		}
		args = append(args, arg)

		switch p.peek().Type {
		case TokenRightParen:
			p.pos++
			return &FunctionCallNode{
				Name:     funcTok.Value,
				Args:     args,
				Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
			}, nil
		case TokenComma:
			p.pos++
		case TokenEOF:
			return nil, errValue("unexpected end in function arguments")
		default:
			return nil, errValue("expected ',' or ')' in function arguments")
		}
	}
}

// splitWorksheet separates "Sheet!A1" into its worksheet ID and the
// reference text. the current worksheet is used when there is no prefix.
func (p *Parser) splitWorksheet(ref string) (uint32, string) {
	worksheetID := p.context.CurrentWorksheetID
	idx := strings.LastIndex(ref, "!")
	if idx == -1 {
		return worksheetID, ref
	}

	name := ref[:idx]
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	if p.context.ResolveWorksheet != nil {
		worksheetID = p.context.ResolveWorksheet(name)
	} else {
		worksheetID = 0
	}
	return worksheetID, ref[idx+1:]
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) (ASTNode, error) {
	worksheetID, cellStr := p.splitWorksheet(tok.Value)
	col, row, err := parseCellAddress(cellStr)
	if err != nil {
		return nil, err
	}
	return &CellRefNode{
		WorksheetID: worksheetID,
		RowOffset:   row - p.context.CurrentRow,
		ColOffset:   col - p.context.CurrentColumn,
		Position:    NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))},
	}, nil
}

// parseRange parses a range token into a RangeNode
func (p *Parser) parseRange(tok Token) (ASTNode, error) {
	worksheetID, rangeStr := p.splitWorksheet(tok.Value)
	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil, errRef(fmt.Sprintf("invalid range format: %s", rangeStr))
	}

	startCol, startRow, err := parseCellAddress(parts[0])
	if err != nil {
		return nil, errRef(fmt.Sprintf("invalid start cell in range: %s", parts[0]))
	}
	endCol, endRow, err := parseCellAddress(parts[1])
	if err != nil {
		return nil, errRef(fmt.Sprintf("invalid end cell in range: %s", parts[1]))
	}

	return &RangeNode{
		WorksheetID:    worksheetID,
		StartRowOffset: startRow - p.context.CurrentRow,
		StartColOffset: startCol - p.context.CurrentColumn,
		EndRowOffset:   endRow - p.context.CurrentRow,
		EndColOffset:   endCol - p.context.CurrentColumn,
		Position:       NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))},
	}, nil
}

// ParseReference resolves "A1", "B2:C4" or "Sheet!A1:B2" to an absolute
// range. a single cell comes back as a 1x1 range.
func (p *Parser) ParseReference(input string) (RangeAddress, error) {
	tokens, lexErrors := NewLexerForReference(strings.TrimSpace(input)).Tokenize()
	if len(lexErrors) > 0 || len(tokens) != 2 {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("not a cell reference or range: %s", input))
	}

	worksheetID, ref := p.splitWorksheet(tokens[0].Value)
	start, end, _ := strings.Cut(ref, ":")
	if end == "" {
		end = start
	}
	startCol, startRow, err := parseCellAddress(start)
	if err != nil {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell address in '%s': %v", input, err))
	}
	endCol, endRow, err := parseCellAddress(end)
	if err != nil {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell address in '%s': %v", input, err))
	}

	return RangeAddress{
		WorksheetID: worksheetID,
		StartRow:    uint32(min(startRow, endRow)),
		StartColumn: uint32(min(startCol, endCol)),
		EndRow:      uint32(max(startRow, endRow)),
		EndColumn:   uint32(max(startCol, endCol)),
	}, nil
}

// parseFullAddress parses a single cell address like "A1" or "Sheet1!B2".
// returns worksheet ID (0 when unknown), row and column indices (0-based).
func (p *Parser) parseFullAddress(address string) (worksheetID uint32, row int32, col int32, err error) {
	addr, err := p.ParseReference(address)
	if err != nil {
		return 0, 0, 0, err
	}
	return addr.WorksheetID, int32(addr.StartRow), int32(addr.StartColumn), nil
}

// parseCellAddress parses a cell address like "A1" or "$B$2" into column
// and row indices (0-based)
func parseCellAddress(cell string) (col int32, row int32, err error) {
	letters, digits, ok := splitCellReference(cell)
	if !ok {
		return 0, 0, errRef(fmt.Sprintf("invalid cell reference: %s", cell))
	}

	colIdx := columnIndex(letters)
	if colIdx < 0 || colIdx >= MaxColumns {
		return 0, 0, errRef(fmt.Sprintf("column out of range: %s", letters))
	}

	rowNum, err := strconv.ParseInt(digits, 10, 32)
	if err != nil || rowNum < 1 || rowNum > MaxRows {
		return 0, 0, errRef(fmt.Sprintf("row number out of range: %s", digits))
	}

	return int32(colIdx), int32(rowNum - 1), nil
}

// columnIndex converts column letters to a 0-based index (A=0, Z=25, AA=26)
func columnIndex(letters string) int {
	idx := 0
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return -1
		}
		idx = idx*26 + int(ch-'A') + 1
	}
	return idx - 1
}

// columnLetters converts a 0-based column index to letters
func columnLetters(idx int) string {
	var out []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

// FormatCellAddress renders a 0-based row and column in A1 notation
func FormatCellAddress(row, col uint32) string {
	return columnLetters(int(col)) + strconv.Itoa(int(row)+1)
}
