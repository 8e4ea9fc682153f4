package spreadsheet

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EvalFactory builds areas and references over fixed value buffers, so
// functions can be called without a spreadsheet behind them
type EvalFactory struct {
	t *testing.T
}

func newEvalFactory(t *testing.T) *EvalFactory {
	return &EvalFactory{t: t}
}

func (f *EvalFactory) address(ref string) RangeAddress {
	f.t.Helper()
	addr, err := NewParserWithContext(&ParserContext{}).ParseReference(ref)
	require.NoError(f.t, err, "bad test reference %q", ref)
	return addr
}

// CreateAreaEval lays values out row by row over ref, e.g. "A1:B3"
func (f *EvalFactory) CreateAreaEval(ref string, values ...Primitive) Range {
	f.t.Helper()
	addr := f.address(ref)
	require.LessOrEqual(f.t, len(values), addr.Height()*addr.Width(), "too many values for %s", ref)
	return NewValueRange(addr, values)
}

// CreateRefEval is a single cell reference holding value
func (f *EvalFactory) CreateRefEval(ref string, value Primitive) Range {
	f.t.Helper()
	addr := f.address(ref)
	require.True(f.t, addr.StartRow == addr.EndRow && addr.StartColumn == addr.EndColumn, "%s is not a single cell", ref)
	return NewValueRange(addr, []Primitive{value})
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fixedRandom float64

func (r fixedRandom) Float64() float64 { return float64(r) }

// testContext evaluates at srcRow, srcCol (0-based) with a fixed clock of
// 2024-03-15 10:30 and a random source that always returns 0.25
func testContext(srcRow, srcCol uint32) *EvalContext {
	return &EvalContext{
		Source: CellAddress{Row: srcRow, Column: srcCol},
		Clock:  fixedClock{now: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		Random: fixedRandom(0.25),
	}
}

// invokeAt calls a function by name as if from the cell at srcRow, srcCol.
// error results come back as error values, the way a cell would hold them.
func invokeAt(name string, srcRow, srcCol uint32, args ...Primitive) Primitive {
	result, err := defaultFunctions().Call(testContext(srcRow, srcCol), name, args...)
	if err != nil {
		return asErrorValue(err)
	}
	return result
}

func invoke(name string, args ...Primitive) Primitive {
	return invokeAt(name, 0, 0, args...)
}

func assertNumber(t *testing.T, expected float64, actual Primitive, msgAndArgs ...any) {
	t.Helper()
	n, ok := actual.(float64)
	if !assert.True(t, ok, "expected a number, got %v (%T)", actual, actual) {
		return
	}
	tolerance := 1e-9 * math.Max(1, math.Abs(expected))
	assert.InDelta(t, expected, n, tolerance, msgAndArgs...)
}

func assertNumberWithin(t *testing.T, expected, delta float64, actual Primitive, msgAndArgs ...any) {
	t.Helper()
	n, ok := actual.(float64)
	if !assert.True(t, ok, "expected a number, got %v (%T)", actual, actual) {
		return
	}
	assert.InDelta(t, expected, n, delta, msgAndArgs...)
}

func assertErrorCode(t *testing.T, expected ErrorCode, actual Primitive, msgAndArgs ...any) {
	t.Helper()
	e, ok := actual.(*SpreadsheetError)
	if !assert.True(t, ok, "expected %s, got %v (%T)", expected, actual, actual) {
		return
	}
	assert.Equal(t, expected, e.ErrorCode, msgAndArgs...)
}

func TestEvalFactory(t *testing.T) {
	f := newEvalFactory(t)

	t.Run("AreaLayout", func(t *testing.T) {
		area := f.CreateAreaEval("B2:C4", 1.0, 2.0, 3.0, 4.0, 5.0, 6.0)
		assert.Equal(t, 3, area.Height())
		assert.Equal(t, 2, area.Width())
		assert.Equal(t, 4.0, area.ValueAt(1, 1))
		assert.Equal(t, []Primitive{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, rangeValues(area))
	})

	t.Run("ShortBufferReadsBlank", func(t *testing.T) {
		area := f.CreateAreaEval("A1:A3", 1.0)
		assert.Equal(t, []Primitive{1.0, nil, nil}, rangeValues(area))
	})

	t.Run("OffsetOutsideBufferIsBlank", func(t *testing.T) {
		area := f.CreateAreaEval("A1:B2", 1.0, 2.0, 3.0, 4.0)
		moved, err := area.Offset(1, 1, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []Primitive{4.0, nil, nil, nil}, rangeValues(moved))
	})

	t.Run("OffsetOffTheSheet", func(t *testing.T) {
		ref := f.CreateRefEval("A1", 1.0)
		_, err := ref.Offset(-1, 0, 1, 1)
		assertErrorCode(t, ErrorCodeRef, asErrorValue(err))
	})

	t.Run("RefIsSingleCell", func(t *testing.T) {
		ref := f.CreateRefEval("D7", "x")
		assert.True(t, ref.IsSingleCell())
		assert.Equal(t, uint32(6), ref.GetBounds().StartRow)
		assert.Equal(t, "x", ref.ValueAt(0, 0))
	})
}

func TestFunctionCallBoundary(t *testing.T) {
	t.Run("UnknownFunction", func(t *testing.T) {
		assertErrorCode(t, ErrorCodeName, invoke("NOSUCHFUNCTION", 1.0))
	})

	t.Run("WrongArity", func(t *testing.T) {
		assertErrorCode(t, ErrorCodeNA, invoke("ABS"))
		assertErrorCode(t, ErrorCodeNA, invoke("ABS", 1.0, 2.0))
	})

	t.Run("NamesAreCaseInsensitive", func(t *testing.T) {
		assertNumber(t, 3, invoke("abs", -3.0))
	})

	t.Run("NonFiniteResultIsNum", func(t *testing.T) {
		assertErrorCode(t, ErrorCodeNum, invoke("EXP", 1000.0))
	})

	t.Run("CustomFunction", func(t *testing.T) {
		bf := NewBuiltInFunctions()
		bf.Register("TWICE", 1, 1, func(ec *EvalContext, args ...Primitive) (Primitive, error) {
			n, err := ec.numberArg(args[0])
			if err != nil {
				return nil, err
			}
			return n * 2, nil
		})
		result, err := bf.Call(&EvalContext{}, "twice", 21.0)
		require.NoError(t, err)
		assert.Equal(t, 42.0, result)
		assert.True(t, bf.Has("TWICE"))
		assert.False(t, bf.IsVolatile("TWICE"))
	})

	t.Run("VolatileRegistry", func(t *testing.T) {
		for _, name := range []string{"RAND", "RANDBETWEEN", "NOW", "TODAY", "OFFSET", "INDIRECT"} {
			assert.True(t, defaultFunctions().IsVolatile(name), name)
		}
		assert.False(t, defaultFunctions().IsVolatile("SUM"))
	})
}
