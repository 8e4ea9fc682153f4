package spreadsheet

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// DateSystem selects the epoch used for date serial numbers
type DateSystem uint8

const (
	Date1900 DateSystem = iota // serial 1 is 1900-01-01, with 1900-02-29 as serial 60
	Date1904                   // serial 0 is 1904-01-01
)

// ReferenceResolver turns addresses and reference text into areas. the
// spreadsheet implements it, test doubles can too.
type ReferenceResolver interface {
	Area(addr RangeAddress) (Range, error)
	NamedRange(name string) (Range, error)
	// Reference resolves A1-style text for INDIRECT. worksheetID is the
	// worksheet of the calling formula.
	Reference(text string, worksheetID uint32) (Range, error)
	WorksheetName(id uint32) (string, bool)
}

// Function is the signature every formula function implements. args are
// evaluated but not dereferenced, so cell references arrive as 1x1 Ranges.
type Function func(ec *EvalContext, args ...Primitive) (Primitive, error)

type functionSpec struct {
	name     string
	minArgs  int
	maxArgs  int // -1 for no limit
	volatile bool
	fn       Function
}

// BuiltInFunctions is the registry formula function calls dispatch through
type BuiltInFunctions struct {
	functions map[string]*functionSpec
}

// NewBuiltInFunctions creates an empty registry
func NewBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{functions: make(map[string]*functionSpec)}
}

// NewDefaultBuiltInFunctions creates a registry holding the full function
// library
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	bf := NewBuiltInFunctions()
	registerMathFunctions(bf)
	registerStatFunctions(bf)
	registerCriteriaFunctions(bf)
	registerLookupFunctions(bf)
	registerTextFunctions(bf)
	registerLogicalFunctions(bf)
	registerInfoFunctions(bf)
	registerDateFunctions(bf)
	registerFinancialFunctions(bf)
	registerEngineeringFunctions(bf)
	registerDistributionFunctions(bf)
	return bf
}

var defaultFunctions = sync.OnceValue(NewDefaultBuiltInFunctions)

// Register adds or replaces a function. maxArgs of -1 accepts any number
// of arguments from minArgs up.
func (bf *BuiltInFunctions) Register(name string, minArgs, maxArgs int, fn Function) {
	name = strings.ToUpper(name)
	bf.functions[name] = &functionSpec{name: name, minArgs: minArgs, maxArgs: maxArgs, fn: fn}
}

// RegisterVolatile adds a function whose result can change without any of
// its inputs changing, so cells calling it recalculate on every pass
func (bf *BuiltInFunctions) RegisterVolatile(name string, minArgs, maxArgs int, fn Function) {
	bf.Register(name, minArgs, maxArgs, fn)
	bf.functions[strings.ToUpper(name)].volatile = true
}

// Has reports whether name is registered
func (bf *BuiltInFunctions) Has(name string) bool {
	_, ok := bf.functions[strings.ToUpper(name)]
	return ok
}

// IsVolatile reports whether name is a registered volatile function
func (bf *BuiltInFunctions) IsVolatile(name string) bool {
	spec, ok := bf.functions[strings.ToUpper(name)]
	return ok && spec.volatile
}

// Names returns the registered function names in sorted order
func (bf *BuiltInFunctions) Names() []string {
	names := make([]string, 0, len(bf.functions))
	for name := range bf.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func arityMessage(spec *functionSpec) string {
	switch {
	case spec.minArgs == 0 && spec.maxArgs == 0:
		return fmt.Sprintf("%s takes no arguments", spec.name)
	case spec.minArgs == spec.maxArgs:
		return fmt.Sprintf("%s requires exactly %d argument(s)", spec.name, spec.minArgs)
	case spec.maxArgs < 0:
		return fmt.Sprintf("%s requires at least %d argument(s)", spec.name, spec.minArgs)
	default:
		return fmt.Sprintf("%s requires %d to %d arguments", spec.name, spec.minArgs, spec.maxArgs)
	}
}

// Call invokes a function by name. the returned error is always a
// *SpreadsheetError, and a NaN or infinite numeric result becomes #NUM!.
func (bf *BuiltInFunctions) Call(ec *EvalContext, name string, args ...Primitive) (Primitive, error) {
	upper := strings.ToUpper(name)
	spec, ok := bf.functions[upper]
	if !ok {
		ec.logger().Debug("unknown function", "function", upper)
		ec.Metrics.recordError(upper, ErrorCodeName)
		return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("Unknown function: %s", name))
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		ec.Metrics.recordError(upper, ErrorCodeNA)
		return nil, errNA(arityMessage(spec))
	}

	ec.Metrics.recordCall(upper)
	result, err := spec.fn(ec, args...)
	if err == nil {
		if sErr, ok := result.(*SpreadsheetError); ok {
			err = sErr
		}
	}
	if err != nil {
		var sErr *SpreadsheetError
		if !errors.As(err, &sErr) {
			sErr = errValue(err.Error())
		}
		ec.Metrics.recordError(upper, sErr.ErrorCode)
		return nil, sErr
	}
	if f, ok := result.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		ec.Metrics.recordError(upper, ErrorCodeNum)
		return nil, errNum(fmt.Sprintf("%s result is not a finite number", upper))
	}
	return result, nil
}

// EvalContext carries everything a formula needs while it is evaluated.
// the zero value works for pure functions: no references resolve, the
// clock is the wall clock and the date system is 1900.
type EvalContext struct {
	Source     CellAddress // cell holding the formula
	Clock      Clock
	Random     RandomGenerator
	DateSystem DateSystem
	Refs       ReferenceResolver
	Functions  *BuiltInFunctions
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Call dispatches to the context's registry, or the default library
func (ec *EvalContext) Call(name string, args ...Primitive) (Primitive, error) {
	functions := ec.Functions
	if functions == nil {
		functions = defaultFunctions()
	}
	return functions.Call(ec, name, args...)
}

func (ec *EvalContext) area(addr RangeAddress) (Primitive, error) {
	if ec.Refs == nil {
		return nil, errRef("references are not available here")
	}
	r, err := ec.Refs.Area(addr)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (ec *EvalContext) now() time.Time {
	if ec.Clock == nil {
		return time.Now()
	}
	return ec.Clock.Now()
}

func (ec *EvalContext) random() float64 {
	if ec.Random == nil {
		return rand.Float64()
	}
	return ec.Random.Float64()
}

func (ec *EvalContext) logger() *slog.Logger {
	if ec.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return ec.Logger
}
