package spreadsheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextFunctions(t *testing.T) {
	tests := []struct {
		name     string
		function string
		args     []Primitive
		expected Primitive
	}{
		{"concatenate coerces", "CONCATENATE", []Primitive{"a", 1.0, true}, "a1TRUE"},
		{"len counts runes", "LEN", []Primitive{"héllo"}, 5.0},
		{"len of number", "LEN", []Primitive{123.5}, 5.0},
		{"upper", "UPPER", []Primitive{"MiXed"}, "MIXED"},
		{"lower", "LOWER", []Primitive{"MiXed"}, "mixed"},
		{"proper", "PROPER", []Primitive{"hello wORLD o'neil"}, "Hello World O'Neil"},
		{"trim", "TRIM", []Primitive{"  a   b  "}, "a b"},
		{"clean", "CLEAN", []Primitive{"a\x01b\tc"}, "abc"},
		{"left", "LEFT", []Primitive{"hello", 2.0}, "he"},
		{"left default", "LEFT", []Primitive{"hello"}, "h"},
		{"left past end", "LEFT", []Primitive{"hi", 5.0}, "hi"},
		{"right", "RIGHT", []Primitive{"hello", 3.0}, "llo"},
		{"mid", "MID", []Primitive{"hello", 2.0, 3.0}, "ell"},
		{"mid past end", "MID", []Primitive{"hello", 10.0, 2.0}, ""},
		{"find", "FIND", []Primitive{"l", "hello"}, 3.0},
		{"find from start", "FIND", []Primitive{"l", "hello", 4.0}, 4.0},
		{"find empty", "FIND", []Primitive{"", "hello"}, 1.0},
		{"search ignores case", "SEARCH", []Primitive{"L", "hello"}, 3.0},
		{"search star", "SEARCH", []Primitive{"h*o", "say hello"}, 5.0},
		{"search question mark", "SEARCH", []Primitive{"?l", "hello"}, 2.0},
		{"substitute all", "SUBSTITUTE", []Primitive{"a-b-c", "-", "+"}, "a+b+c"},
		{"substitute instance", "SUBSTITUTE", []Primitive{"a-b-c", "-", "+", 2.0}, "a-b+c"},
		{"substitute missing instance", "SUBSTITUTE", []Primitive{"a-b-c", "-", "+", 5.0}, "a-b-c"},
		{"replace", "REPLACE", []Primitive{"abcdef", 2.0, 3.0, "X"}, "aXef"},
		{"replace past end", "REPLACE", []Primitive{"abc", 5.0, 1.0, "Z"}, "abcZ"},
		{"rept", "REPT", []Primitive{"ab", 3.0}, "ababab"},
		{"exact", "EXACT", []Primitive{"a", "A"}, false},
		{"exact equal", "EXACT", []Primitive{"abc", "abc"}, true},
		{"char", "CHAR", []Primitive{65.0}, "A"},
		{"code", "CODE", []Primitive{"Apple"}, 65.0},
		{"char euro", "CHAR", []Primitive{128.0}, "€"},
		{"char latin", "CHAR", []Primitive{233.0}, "é"},
		{"code euro", "CODE", []Primitive{"€uro"}, 128.0},
		{"code latin", "CODE", []Primitive{"é"}, 233.0},
		{"code outside code page", "CODE", []Primitive{"世"}, 63.0},
		{"t of text", "T", []Primitive{"x"}, "x"},
		{"t of number", "T", []Primitive{1.0}, ""},
		{"n of logical", "N", []Primitive{true}, 1.0},
		{"n of text", "N", []Primitive{"x"}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, invoke(tt.function, tt.args...))
		})
	}
}

func TestTextErrors(t *testing.T) {
	tests := []struct {
		name     string
		function string
		args     []Primitive
		expected ErrorCode
	}{
		{"negative left", "LEFT", []Primitive{"x", -1.0}, ErrorCodeValue},
		{"mid start zero", "MID", []Primitive{"hello", 0.0, 1.0}, ErrorCodeValue},
		{"find is case sensitive", "FIND", []Primitive{"L", "hello"}, ErrorCodeValue},
		{"find start past end", "FIND", []Primitive{"x", "hello", 7.0}, ErrorCodeValue},
		{"search not found", "SEARCH", []Primitive{"z", "hello"}, ErrorCodeValue},
		{"substitute instance zero", "SUBSTITUTE", []Primitive{"a", "a", "b", 0.0}, ErrorCodeValue},
		{"negative rept", "REPT", []Primitive{"x", -1.0}, ErrorCodeValue},
		{"rept too long", "REPT", []Primitive{"ab", 20000.0}, ErrorCodeValue},
		{"char zero", "CHAR", []Primitive{0.0}, ErrorCodeValue},
		{"code of empty", "CODE", []Primitive{""}, ErrorCodeValue},
		{"concatenate error", "CONCATENATE", []Primitive{"a", errNA("x")}, ErrorCodeNA},
		{"upper error", "UPPER", []Primitive{errDiv0("x")}, ErrorCodeDiv0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrorCode(t, tt.expected, invoke(tt.function, tt.args...))
		})
	}

	t.Run("ResultTooLong", func(t *testing.T) {
		half := strings.Repeat("x", 20000)
		assertErrorCode(t, ErrorCodeValue, invoke("CONCATENATE", half, half))
	})
}

func TestJoiningAreas(t *testing.T) {
	f := newEvalFactory(t)
	area := f.CreateAreaEval("A1:A4", "a", "", nil, "b")

	assert.Equal(t, "ab", invoke("CONCAT", area))
	assert.Equal(t, "a, b", invoke("TEXTJOIN", ", ", true, area))
	assert.Equal(t, "a, , , b", invoke("TEXTJOIN", ", ", false, area))
	assert.Equal(t, "a-1-b", invoke("TEXTJOIN", "-", true, "a", 1.0, area.ValueAt(3, 0)))
	assertErrorCode(t, ErrorCodeRef, invoke("CONCAT", f.CreateAreaEval("A1:A2", "a", errRef("x"))))
}

func TestValue(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
	}{
		{"1,234.5", 1234.5},
		{"50%", 0.5},
		{"$12", 12},
		{"(3)", -3},
		{"-1.5e3", -1500},
		{" 42 ", 42},
		{"2024-01-15", 45306},
		{"12:00", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assertNumber(t, tt.expected, invoke("VALUE", tt.text))
		})
	}

	assertErrorCode(t, ErrorCodeValue, invoke("VALUE", "abc"))
	assertErrorCode(t, ErrorCodeValue, invoke("VALUE", true))
	assertNumber(t, 0, invoke("VALUE", nil))
}

func TestNumberFormatting(t *testing.T) {
	t.Run("FIXED", func(t *testing.T) {
		assert.Equal(t, "1,234.6", invoke("FIXED", 1234.567, 1.0))
		assert.Equal(t, "1234.6", invoke("FIXED", 1234.567, 1.0, true))
		assert.Equal(t, "1,230", invoke("FIXED", 1234.567, -1.0))
		assert.Equal(t, "-1,235", invoke("FIXED", -1234.5, 0.0))
		assert.Equal(t, "0.50", invoke("FIXED", 0.5))
		assert.Equal(t, "0", invoke("FIXED", 1234.5, -309.0))
		assert.Equal(t, "0", invoke("FIXED", 1234.5, -2000000000.0))
	})

	t.Run("DOLLAR", func(t *testing.T) {
		assert.Equal(t, "$1,234.57", invoke("DOLLAR", 1234.567))
		assert.Equal(t, "($1,234.6)", invoke("DOLLAR", -1234.567, 1.0))
		assertErrorCode(t, ErrorCodeValue, invoke("DOLLAR", "abc"))
		assert.Equal(t, "$0", invoke("DOLLAR", -1234.5, -2000000000.0))
	})

	t.Run("TEXT", func(t *testing.T) {
		tests := []struct {
			value    Primitive
			format   string
			expected string
		}{
			{1234.567, "0.00", "1234.57"},
			{1234.5, "#,##0.00", "1,234.50"},
			{0.256, "0.0%", "25.6%"},
			{1234567.0, "0.00E+00", "1.23E+06"},
			{-5.0, "0;(0)", "(5)"},
			{45306.0, "yyyy-mm-dd", "2024-01-15"},
			{45306.0, "mmm d, yyyy", "Jan 15, 2024"},
			{45306.0, "dddd", "Monday"},
			{0.75, "h:mm AM/PM", "6:00 PM"},
			{0.5, "hh:mm:ss", "12:00:00"},
			{"abc", "0.00", "abc"},
			{"12", "0.0", "12.0"},
			{true, "0", "TRUE"},
			{3.0, "General", "3"},
		}
		for _, tt := range tests {
			t.Run(tt.format, func(t *testing.T) {
				assert.Equal(t, tt.expected, invoke("TEXT", tt.value, tt.format))
			})
		}
		assertErrorCode(t, ErrorCodeNA, invoke("TEXT", errNA("x"), "0"))
	})
}
