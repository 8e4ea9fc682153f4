package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cellOf unwraps the single cell reference returned by INDEX and OFFSET
func cellOf(t *testing.T, v Primitive) Primitive {
	t.Helper()
	r, ok := v.(Range)
	require.True(t, ok, "expected a reference, got %v (%T)", v, v)
	require.True(t, r.IsSingleCell(), "expected a single cell, got %dx%d", r.Height(), r.Width())
	return r.ValueAt(0, 0)
}

func numberTable(f *EvalFactory) Range {
	return f.CreateAreaEval("A1:C4",
		1.0, "one", "uno",
		2.0, "two", "dos",
		3.0, "three", "tres",
		5.0, "five", "cinco",
	)
}

func TestVlookup(t *testing.T) {
	f := newEvalFactory(t)
	table := numberTable(f)

	assert.Equal(t, "two", invoke("VLOOKUP", 2.0, table, 2.0, false))
	assert.Equal(t, "tres", invoke("VLOOKUP", 4.0, table, 3.0))
	assert.Equal(t, "five", invoke("VLOOKUP", 6.0, table, 2.0, true))
	assertErrorCode(t, ErrorCodeNA, invoke("VLOOKUP", "1", table, 3.0, false), "numeric text does not match numbers")

	assertErrorCode(t, ErrorCodeNA, invoke("VLOOKUP", 0.0, table, 2.0))
	assertErrorCode(t, ErrorCodeNA, invoke("VLOOKUP", 4.0, table, 2.0, false))
	assertErrorCode(t, ErrorCodeRef, invoke("VLOOKUP", 2.0, table, 4.0, false))
	assertErrorCode(t, ErrorCodeValue, invoke("VLOOKUP", 2.0, table, 0.0, false))
	assertErrorCode(t, ErrorCodeNA, invoke("VLOOKUP", nil, table, 2.0, false))
	assertErrorCode(t, ErrorCodeDiv0, invoke("VLOOKUP", errDiv0("x"), table, 2.0))
}

func TestHlookup(t *testing.T) {
	f := newEvalFactory(t)
	table := f.CreateAreaEval("A1:D2",
		"a", "b", "c", "d",
		10.0, 20.0, 30.0, 40.0,
	)

	assert.Equal(t, 30.0, invoke("HLOOKUP", "c", table, 2.0, false))
	assert.Equal(t, 20.0, invoke("HLOOKUP", "B*", table, 2.0, false))
	assert.Equal(t, 20.0, invoke("HLOOKUP", "bz", table, 2.0))
	assertErrorCode(t, ErrorCodeRef, invoke("HLOOKUP", "c", table, 3.0, false))
}

func TestMatch(t *testing.T) {
	f := newEvalFactory(t)
	ascending := f.CreateAreaEval("A1:A4", 10.0, 20.0, 30.0, 40.0)
	descending := f.CreateAreaEval("A1:A4", 40.0, 30.0, 20.0, 10.0)

	assertNumber(t, 2, invoke("MATCH", 25.0, ascending))
	assertNumber(t, 3, invoke("MATCH", 30.0, ascending, 0.0))
	assertNumber(t, 4, invoke("MATCH", 99.0, ascending, 1.0))
	assertNumber(t, 2, invoke("MATCH", 25.0, descending, -1.0))
	assertErrorCode(t, ErrorCodeNA, invoke("MATCH", 5.0, ascending))
	assertErrorCode(t, ErrorCodeNA, invoke("MATCH", 25.0, ascending, 0.0))
	assertErrorCode(t, ErrorCodeNA, invoke("MATCH", 1.0, numberTable(f)))

	words := f.CreateAreaEval("A1:C1", "apple", "banana", "bx")
	assertNumber(t, 3, invoke("MATCH", "b?", words, 0.0))
	assertNumber(t, 2, invoke("MATCH", "BANANA", words, 0.0))

	t.Run("ApproximateStepsOverOtherTypes", func(t *testing.T) {
		mixed := f.CreateAreaEval("A1:A4", 1.0, "x", 3.0, 5.0)
		assertNumber(t, 3, invoke("MATCH", 4.0, mixed))
	})
}

func TestIndex(t *testing.T) {
	f := newEvalFactory(t)
	table := numberTable(f)

	assert.Equal(t, "dos", cellOf(t, invoke("INDEX", table, 2.0, 3.0)))
	assert.Equal(t, 20.0, cellOf(t, invoke("INDEX", f.CreateAreaEval("A1:A3", 10.0, 20.0, 30.0), 2.0)))
	assert.Equal(t, "c", cellOf(t, invoke("INDEX", f.CreateAreaEval("A1:E1", "a", "b", "c", "d", "e"), 3.0)))

	column, ok := invoke("INDEX", table, 0.0, 2.0).(Range)
	require.True(t, ok)
	assert.Equal(t, []Primitive{"one", "two", "three", "five"}, rangeValues(column))

	row, ok := invoke("INDEX", table, 3.0, 0.0).(Range)
	require.True(t, ok)
	assert.Equal(t, []Primitive{3.0, "three", "tres"}, rangeValues(row))

	assertErrorCode(t, ErrorCodeRef, invoke("INDEX", table, 5.0, 1.0))
	assertErrorCode(t, ErrorCodeRef, invoke("INDEX", table, 1.0, 4.0))
	assertErrorCode(t, ErrorCodeValue, invoke("INDEX", table, -1.0, 1.0))
}

func TestLookup(t *testing.T) {
	f := newEvalFactory(t)

	keys := f.CreateAreaEval("A1:A3", 1.0, 3.0, 5.0)
	results := f.CreateAreaEval("B1:B3", "a", "b", "c")
	assert.Equal(t, "b", invoke("LOOKUP", 4.0, keys, results))
	assert.Equal(t, "c", invoke("LOOKUP", 9.0, keys, results))
	assertErrorCode(t, ErrorCodeNA, invoke("LOOKUP", 0.0, keys, results))

	wide := f.CreateAreaEval("A1:C2", 1.0, 2.0, 3.0, "x", "y", "z")
	assert.Equal(t, "y", invoke("LOOKUP", 2.0, wide))

	tall := f.CreateAreaEval("A1:B3", 1.0, "x", 2.0, "y", 3.0, "z")
	assert.Equal(t, "z", invoke("LOOKUP", 3.5, tall))
}

func TestChoose(t *testing.T) {
	assert.Equal(t, "b", invoke("CHOOSE", 2.0, "a", "b", "c"))
	assert.Equal(t, "c", invoke("CHOOSE", 3.9, "a", "b", "c"))
	assertErrorCode(t, ErrorCodeValue, invoke("CHOOSE", 4.0, "a", "b", "c"))
	assertErrorCode(t, ErrorCodeValue, invoke("CHOOSE", 0.0, "a"))
}

func TestReferenceInfo(t *testing.T) {
	f := newEvalFactory(t)

	assertNumber(t, 7, invoke("ROW", f.CreateRefEval("D7", nil)))
	assertNumber(t, 4, invoke("COLUMN", f.CreateRefEval("D7", nil)))
	assertNumber(t, 5, invokeAt("ROW", 4, 2))
	assertNumber(t, 3, invokeAt("COLUMN", 4, 2))
	assertErrorCode(t, ErrorCodeValue, invoke("ROW", 5.0))

	table := numberTable(f)
	assertNumber(t, 4, invoke("ROWS", table))
	assertNumber(t, 3, invoke("COLUMNS", table))
	assertNumber(t, 1, invoke("ROWS", 5.0))
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name     string
		args     []Primitive
		expected string
	}{
		{"absolute", []Primitive{2.0, 3.0}, "$C$2"},
		{"absolute row", []Primitive{2.0, 3.0, 2.0}, "C$2"},
		{"absolute column", []Primitive{2.0, 3.0, 3.0}, "$C2"},
		{"relative", []Primitive{2.0, 3.0, 4.0}, "C2"},
		{"r1c1", []Primitive{2.0, 3.0, 1.0, false}, "R2C3"},
		{"relative r1c1", []Primitive{2.0, 3.0, 4.0, false}, "R[2]C[3]"},
		{"wide column", []Primitive{1.0, 28.0, 4.0}, "AB1"},
		{"worksheet", []Primitive{1.0, 1.0, 1.0, true, "Data"}, "Data!$A$1"},
		{"quoted worksheet", []Primitive{1.0, 1.0, 1.0, true, "Q1 Sales"}, "'Q1 Sales'!$A$1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, invoke("ADDRESS", tt.args...))
		})
	}

	assertErrorCode(t, ErrorCodeValue, invoke("ADDRESS", 0.0, 1.0))
	assertErrorCode(t, ErrorCodeValue, invoke("ADDRESS", 1.0, 1.0, 5.0))
}

func TestOffsetAndIndirect(t *testing.T) {
	f := newEvalFactory(t)
	grid := f.CreateAreaEval("A1:C3", 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0)

	assert.Equal(t, 5.0, cellOf(t, invoke("OFFSET", grid, 1.0, 1.0, 1.0, 1.0)))

	moved, ok := invoke("OFFSET", grid, 1.0, 0.0, 2.0, 2.0).(Range)
	require.True(t, ok)
	assert.Equal(t, []Primitive{4.0, 5.0, 7.0, 8.0}, rangeValues(moved))

	assertErrorCode(t, ErrorCodeRef, invoke("OFFSET", grid, -1.0, 0.0))
	assertErrorCode(t, ErrorCodeRef, invoke("OFFSET", grid, 0.0, 0.0, 0.0, 1.0))
	assertErrorCode(t, ErrorCodeValue, invoke("OFFSET", 5.0, 1.0, 1.0))

	assertErrorCode(t, ErrorCodeRef, invoke("INDIRECT", "A1"))
	assertErrorCode(t, ErrorCodeRef, invoke("INDIRECT", "R1C1", false))
}
