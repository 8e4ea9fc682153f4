package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input  string
		types  []TokenType
		values []string
	}{
		{
			input:  "=1+2",
			types:  []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF},
			values: []string{"=", "1", "+", "2", ""},
		},
		{
			input:  "=-A1%",
			types:  []TokenType{TokenEquals, TokenUnaryPrefixOp, TokenCell, TokenUnaryPostfixOp, TokenEOF},
			values: []string{"=", "-", "A1", "%", ""},
		},
		{
			input:  `=sum($A$1:b2, "x""y", true)`,
			types:  []TokenType{TokenEquals, TokenFunction, TokenLeftParen, TokenRange, TokenComma, TokenString, TokenComma, TokenBoolean, TokenRightParen, TokenEOF},
			values: []string{"=", "SUM", "(", "$A$1:b2", ",", `x"y`, ",", "TRUE", ")", ""},
		},
		{
			input:  "='My ''Q1'' Data'!A1:B2",
			types:  []TokenType{TokenEquals, TokenRange, TokenEOF},
			values: []string{"=", "'My ''Q1'' Data'!A1:B2", ""},
		},
		{
			input:  "=1.5e-3>=.25",
			types:  []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF},
			values: []string{"=", "1.5e-3", ">=", ".25", ""},
		},
		{
			input:  "=#div/0!<>#N/A",
			types:  []TokenType{TokenEquals, TokenErrorLiteral, TokenBinaryOp, TokenErrorLiteral, TokenEOF},
			values: []string{"=", "#DIV/0!", "<>", "#N/A", ""},
		},
		{
			input:  "=Rates&F.DIST(1,2,3,TRUE)",
			types:  []TokenType{TokenEquals, TokenIdentifier, TokenBinaryOp, TokenFunction, TokenLeftParen, TokenNumber, TokenComma, TokenNumber, TokenComma, TokenNumber, TokenComma, TokenBoolean, TokenRightParen, TokenEOF},
			values: []string{"=", "Rates", "&", "F.DIST", "(", "1", ",", "2", ",", "3", ",", "TRUE", ")", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, errs := NewLexer(tt.input).Tokenize()
			require.Empty(t, errs)
			assert.Equal(t, tt.types, tokenTypes(tokens))
			values := make([]string, len(tokens))
			for i, tok := range tokens {
				values[i] = tok.Value
			}
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, errs := NewLexer(`="héllo"&A1`).Tokenize()
	require.Empty(t, errs)
	require.Len(t, tokens, 5)
	assert.Equal(t, 1, tokens[1].Pos)
	assert.Equal(t, 8, tokens[2].Pos, "positions count runes, not bytes")
	assert.Equal(t, 9, tokens[3].Pos)
}

func TestLexerErrors(t *testing.T) {
	tests := map[string]string{
		"":            "formula must start with '='",
		"=SUM(1":      "unbalanced parentheses",
		"=1)":         "unbalanced parentheses",
		`="open`:      "unclosed string literal",
		"=A1:":        "invalid range reference",
		"=Data!":      "invalid cell reference after worksheet",
		"=#WHAT":      "unknown error literal",
		"=1 2":        "unexpected token",
		"=1+":         "unexpected end of formula",
		"='Sheet A1":  "unclosed worksheet name",
		"='Sheet' A1": "expected ! after worksheet name",
		"=A1!B":       "invalid cell reference after worksheet",
		"=$X":         "invalid cell reference",
		"=1~2":        "unexpected character",
	}

	for input, message := range tests {
		t.Run(input, func(t *testing.T) {
			tokens, errs := NewLexer(input).Tokenize()
			assert.Nil(t, tokens)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], message)
		})
	}
}

func TestReferenceLexer(t *testing.T) {
	tokens, errs := NewLexerForReference("Sheet1!B2:C3").Tokenize()
	require.Empty(t, errs)
	assert.Equal(t, []TokenType{TokenRange, TokenEOF}, tokenTypes(tokens))

	for _, input := range []string{"=A1", "A1 B1", "1", "Total"} {
		_, errs := NewLexerForReference(input).Tokenize()
		assert.NotEmpty(t, errs, input)
	}
}

func TestSplitCellReference(t *testing.T) {
	letters, digits, ok := splitCellReference("$AB$12")
	require.True(t, ok)
	assert.Equal(t, "AB", letters)
	assert.Equal(t, "12", digits)

	for _, s := range []string{"", "A", "12", "ABCD1", "A1B", "Tax"} {
		_, _, ok := splitCellReference(s)
		assert.False(t, ok, s)
	}
}
