package spreadsheet

import (
	"sort"
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenIdentifier
	TokenWhitespace
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charHash       = '#'
	charDollar     = '$'
)

// valueTokens can start an operand
var valueTokens = map[TokenType]bool{
	TokenNumber:       true,
	TokenString:       true,
	TokenBoolean:      true,
	TokenErrorLiteral: true,
	TokenCell:         true,
	TokenRange:        true,
	TokenFunction:     true,
	TokenIdentifier:   true,
	TokenLeftParen:    true,
}

func withValues(extra ...TokenType) map[TokenType]bool {
	m := make(map[TokenType]bool, len(valueTokens)+len(extra))
	for t := range valueTokens {
		m[t] = true
	}
	for _, t := range extra {
		m[t] = true
	}
	return m
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:          withValues(TokenEquals, TokenUnaryPrefixOp),
	StateAfterEquals:    withValues(TokenUnaryPrefixOp),
	StateAfterOperator:  withValues(TokenUnaryPrefixOp),
	StateAfterLeftParen: withValues(TokenUnaryPrefixOp, TokenRightParen, TokenComma), // empty parens for PI()
	StateAfterComma:     withValues(TokenUnaryPrefixOp, TokenComma, TokenRightParen),
	StateAfterValue: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterIdentifier: {
		TokenLeftParen:      true, // function call
		TokenBinaryOp:       true, // named range used as value
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterIdentifier
)

// errorLiterals lists error texts longest first so "#NULL!" wins over "#N/A"
// style prefixes
var errorLiterals = func() []string {
	out := make([]string, 0, len(ErrorMapper))
	for _, text := range ErrorMapper {
		out = append(out, text)
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}()

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
	context    *LexerContext
}

// LexerContext narrows what a lexer accepts. a nil ExpectedTokens means a
// full formula starting with '='.
type LexerContext struct {
	InitialState   TokenState
	ExpectedTokens map[TokenType]bool
}

// NewLexer creates a lexer for a full formula
func NewLexer(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{InitialState: StateStart})
}

// NewLexerWithContext creates a new lexer with specific context
func NewLexerWithContext(input string, context *LexerContext) *Lexer {
	return &Lexer{
		runes:   []rune(input),
		state:   context.InitialState,
		context: context,
	}
}

// NewLexerForReference creates a lexer that only accepts a single cell
// reference or range, as used by Get/Set addresses and INDIRECT
func NewLexerForReference(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		ExpectedTokens: map[TokenType]bool{
			TokenCell:  true,
			TokenRange: true,
		},
	})
}

// Tokenize tokenizes the entire input and returns tokens and any error
func (l *Lexer) Tokenize() ([]Token, []string) {
	specialized := l.context.ExpectedTokens != nil
	if !specialized && (len(l.runes) == 0 || l.runes[0] != charEqual) {
		return nil, []string{"formula must start with '='"}
	}

	for {
		tok := l.nextToken()
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenError {
			return nil, []string{tok.Value}
		}
		if !l.validateTransition(tok.Type) {
			return nil, []string{"unexpected token: " + tok.Value}
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, []string{"unbalanced parentheses: missing closing parenthesis"}
	}
	if !specialized && !tokenTransitions[l.state][TokenEOF] {
		return nil, []string{"unexpected end of formula"}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	if l.context.ExpectedTokens != nil {
		return l.context.ExpectedTokens[tokenType] && len(l.tokens) == 0
	}
	return tokenTransitions[l.state][tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators leave the state where it was
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenIdentifier, TokenFunction:
		l.state = StateAfterIdentifier
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	switch {
	case ch == charQuote:
		return l.scanString()
	case ch == charApostrophe:
		return l.scanQuotedWorksheetRef()
	case ch == charHash:
		return l.scanErrorLiteral()
	case l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))):
		return l.scanNumber()
	case l.isAlpha(ch) || ch == charUnderscore || ch == charDollar:
		return l.scanIdentifierOrCell()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unbalanced parentheses: too many closing parentheses", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		l.pos++
		if l.isUnaryContext() {
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charEqual:
		l.pos++
		// the first = is the formula prefix, any later one is a comparison
		if startPos == 0 {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater, charExclaim:
		return l.scanBinaryOp()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	return l.peek(0)
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func (l *Lexer) isNameChar(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch) || ch == charUnderscore || ch == charPeriod || ch == charDollar
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}
	if l.current() == charPeriod {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !l.isDigit(l.current()) {
			l.pos = savedPos
		} else {
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a string literal, "" inside the literal is one quote
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch != charQuote {
			result = append(result, ch)
			l.pos++
			continue
		}
		if l.peek(1) == charQuote {
			result = append(result, charQuote)
			l.pos += 2
			continue
		}
		l.pos++
		return Token{Type: TokenString, Value: string(result), Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanErrorLiteral scans an error constant such as #N/A or #DIV/0!
func (l *Lexer) scanErrorLiteral() Token {
	startPos := l.pos
	rest := strings.ToUpper(l.substring(l.pos, len(l.runes)))
	for _, text := range errorLiterals {
		if strings.HasPrefix(rest, text) {
			l.pos += len([]rune(text))
			return Token{Type: TokenErrorLiteral, Value: text, Pos: startPos}
		}
	}
	l.pos++
	return Token{Type: TokenError, Value: "unknown error literal", Pos: startPos}
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges, and
// booleans. dotted names like NORM.S.DIST are single identifiers.
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos
	for l.isNameChar(l.current()) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)
	upperValue := strings.ToUpper(value)

	if l.current() == charExclaim {
		return l.scanReferenceAfterWorksheet(startPos)
	}

	// checked before cells so LOG10( is a call, not a reference
	if l.current() == charLParen {
		if strings.ContainsRune(value, charDollar) {
			return Token{Type: TokenError, Value: "invalid function name: " + value, Pos: startPos}
		}
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos}
	}

	if isCellReference(value) {
		return l.scanRangeTail(startPos, value)
	}

	if upperValue == "TRUE" || upperValue == "FALSE" {
		return Token{Type: TokenBoolean, Value: upperValue, Pos: startPos}
	}

	if strings.ContainsRune(value, charDollar) {
		return Token{Type: TokenError, Value: "invalid cell reference: " + value, Pos: startPos}
	}
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// scanRangeTail finishes a cell token, extending it to a range when a colon
// and a second cell follow
func (l *Lexer) scanRangeTail(startPos int, first string) Token {
	if l.current() != charColon {
		return Token{Type: TokenCell, Value: l.substring(startPos, l.pos), Pos: startPos}
	}

	savedPos := l.pos
	l.pos++
	secondStart := l.pos
	for l.isAlpha(l.current()) || l.isDigit(l.current()) || l.current() == charDollar {
		l.pos++
	}
	if isCellReference(l.substring(secondStart, l.pos)) {
		return Token{Type: TokenRange, Value: l.substring(startPos, l.pos), Pos: startPos}
	}

	l.pos = savedPos
	return Token{Type: TokenError, Value: "invalid range reference: " + first + ":", Pos: startPos}
}

// scanQuotedWorksheetRef scans 'My Sheet'!A1 style references
func (l *Lexer) scanQuotedWorksheetRef() Token {
	startPos := l.pos
	l.pos++
	for l.pos < len(l.runes) {
		if l.current() == charApostrophe {
			if l.peek(1) == charApostrophe {
				l.pos += 2
				continue
			}
			break
		}
		l.pos++
	}
	if l.pos >= len(l.runes) {
		return Token{Type: TokenError, Value: "unclosed worksheet name", Pos: startPos}
	}
	l.pos++

	if l.current() != charExclaim {
		return Token{Type: TokenError, Value: "expected ! after worksheet name", Pos: startPos}
	}
	return l.scanReferenceAfterWorksheet(startPos)
}

// scanReferenceAfterWorksheet scans the cell or range following "Sheet!"
func (l *Lexer) scanReferenceAfterWorksheet(startPos int) Token {
	l.pos++ // consume !

	cellStart := l.pos
	for l.isAlpha(l.current()) || l.isDigit(l.current()) || l.current() == charDollar {
		l.pos++
	}
	cellRef := l.substring(cellStart, l.pos)
	if !isCellReference(cellRef) {
		return Token{Type: TokenError, Value: "invalid cell reference after worksheet", Pos: startPos}
	}
	return l.scanRangeTail(startPos, cellRef)
}

// scanBinaryOp scans operators that are always binary
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charLess:
		switch l.current() {
		case charEqual:
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		case charGreater:
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}
	case charExclaim:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "!=", Pos: startPos}
		}
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: startPos}
	}

	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// isUnaryContext checks if + or - in the current state is a prefix operator
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}

// isCellReference checks if s is an A1 style reference, optionally with
// $ markers (A1, $B$12, c$3)
func isCellReference(s string) bool {
	_, _, ok := splitCellReference(s)
	return ok
}

// splitCellReference separates the column letters and row digits of an A1
// reference, dropping $ markers
func splitCellReference(s string) (letters, digits string, ok bool) {
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	start := i
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	letters = s[start:i]
	if len(letters) == 0 || len(letters) > 3 {
		return "", "", false
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	digits = s[i:]
	if len(digits) == 0 || len(digits) > 7 {
		return "", "", false
	}
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return "", "", false
		}
	}
	return letters, digits, true
}
