package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

func registerLookupFunctions(bf *BuiltInFunctions) {
	bf.Register("INDEX", 2, 3, fnIndex)
	bf.Register("MATCH", 2, 3, fnMatch)
	bf.Register("VLOOKUP", 3, 4, fnVlookup)
	bf.Register("HLOOKUP", 3, 4, fnHlookup)
	bf.Register("LOOKUP", 2, 3, fnLookup)
	bf.Register("CHOOSE", 2, -1, fnChoose)
	bf.Register("ROW", 0, 1, fnRow)
	bf.Register("COLUMN", 0, 1, fnColumn)
	bf.Register("ROWS", 1, 1, fnRows)
	bf.Register("COLUMNS", 1, 1, fnColumns)
	bf.Register("ADDRESS", 2, 5, fnAddress)
	bf.RegisterVolatile("OFFSET", 3, 5, fnOffset)
	bf.RegisterVolatile("INDIRECT", 1, 2, fnIndirect)
}

// fnIndex returns a reference into area. a 0 row or column selects the
// whole column or row; a single row or column area takes one index.
func fnIndex(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if err, ok := args[0].(*SpreadsheetError); ok {
		return nil, err
	}
	area := ec.asRange(args[0])
	row, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	col := 0
	if len(args) > 2 {
		if col, err = ec.intArg(args[2]); err != nil {
			return nil, err
		}
	} else if area.Height() == 1 && area.Width() > 1 {
		// INDEX(A1:E1, 3) indexes along the row
		if row == 0 {
			return area, nil
		}
		return indexCell(area, 1, row)
	} else if area.Width() == 1 {
		col = 1
	}
	if row < 0 || col < 0 {
		return nil, errValue("INDEX row and column must not be negative")
	}
	if row > area.Height() || col > area.Width() {
		return nil, errRef(fmt.Sprintf("INDEX (%d,%d) is outside a %dx%d area", row, col, area.Height(), area.Width()))
	}
	switch {
	case row == 0 && col == 0:
		return area, nil
	case row == 0:
		return area.Offset(0, col-1, area.Height(), 1)
	case col == 0:
		return area.Offset(row-1, 0, 1, area.Width())
	}
	return indexCell(area, row, col)
}

func indexCell(area Range, row, col int) (Primitive, error) {
	if row < 1 || col < 1 || row > area.Height() || col > area.Width() {
		return nil, errRef(fmt.Sprintf("INDEX (%d,%d) is outside a %dx%d area", row, col, area.Height(), area.Width()))
	}
	return area.Offset(row-1, col-1, 1, 1)
}

// orderable reports whether v can be ordered against key: same type and
// not blank
func orderable(v, key Primitive) bool {
	if v == nil {
		return false
	}
	if _, isErr := v.(*SpreadsheetError); isErr {
		return false
	}
	return typeRank(v) == typeRank(key)
}

// exactMatch finds the first value equal to key. text compares without
// case and honours wildcards.
func exactMatch(values []Primitive, key Primitive) int {
	if s, ok := key.(string); ok {
		pattern := wildcardPattern(s)
		for i, v := range values {
			if t, ok := v.(string); ok && pattern.MatchString(t) {
				return i
			}
		}
		return -1
	}
	for i, v := range values {
		if orderable(v, key) && compareValues(v, key, false) == 0 {
			return i
		}
	}
	return -1
}

// approximateMatch binary searches values, assumed sorted, for the last
// position holding the largest value <= key (or the smallest >= key when
// descending). values of another type are stepped over.
func approximateMatch(values []Primitive, key Primitive, descending bool) int {
	lo, hi, found := 0, len(values)-1, -1
	for lo <= hi {
		mid := (lo + hi) / 2
		probe := mid
		for probe <= hi && !orderable(values[probe], key) {
			probe++
		}
		if probe > hi {
			hi = mid - 1
			continue
		}
		c := compareValues(values[probe], key, false)
		if descending {
			c = -c
		}
		if c <= 0 {
			found = probe
			lo = probe + 1
		} else {
			hi = mid - 1
		}
	}
	return found
}

func (ec *EvalContext) lookupKey(arg Primitive) (Primitive, error) {
	key := ec.deref(arg)
	switch t := key.(type) {
	case *SpreadsheetError:
		return nil, t
	case nil:
		return nil, errNA("lookup value is blank")
	}
	return key, nil
}

func fnMatch(ec *EvalContext, args ...Primitive) (Primitive, error) {
	key, err := ec.lookupKey(args[0])
	if err != nil {
		return nil, err
	}
	if err, ok := args[1].(*SpreadsheetError); ok {
		return nil, err
	}
	area := ec.asRange(args[1])
	if area.Height() != 1 && area.Width() != 1 {
		return nil, errNA("MATCH needs a single row or column")
	}
	matchType, err := ec.optNumber(args, 2, 1)
	if err != nil {
		return nil, err
	}

	values := rangeValues(area)
	var idx int
	switch {
	case matchType == 0:
		idx = exactMatch(values, key)
	case matchType > 0:
		idx = approximateMatch(values, key, false)
	default:
		idx = approximateMatch(values, key, true)
	}
	if idx < 0 {
		return nil, errNA(fmt.Sprintf("%s not found", coerceString(key)))
	}
	return float64(idx + 1), nil
}

// tableLookup is VLOOKUP when vertical, HLOOKUP otherwise
func tableLookup(ec *EvalContext, args []Primitive, vertical bool) (Primitive, error) {
	key, err := ec.lookupKey(args[0])
	if err != nil {
		return nil, err
	}
	if err, ok := args[1].(*SpreadsheetError); ok {
		return nil, err
	}
	table := ec.asRange(args[1])
	index, err := ec.intArg(args[2])
	if err != nil {
		return nil, err
	}
	approximate, err := ec.optBool(args, 3, true)
	if err != nil {
		return nil, err
	}

	extent := table.Width()
	if !vertical {
		extent = table.Height()
	}
	if index < 1 {
		return nil, errValue("lookup index must be at least 1")
	}
	if index > extent {
		return nil, errRef(fmt.Sprintf("lookup index %d is outside the table", index))
	}

	var keys []Primitive
	if vertical {
		for row := range table.Height() {
			keys = append(keys, table.ValueAt(row, 0))
		}
	} else {
		for col := range table.Width() {
			keys = append(keys, table.ValueAt(0, col))
		}
	}

	var pos int
	if approximate {
		pos = approximateMatch(keys, key, false)
	} else {
		pos = exactMatch(keys, key)
	}
	if pos < 0 {
		return nil, errNA(fmt.Sprintf("%s not found", coerceString(key)))
	}
	if vertical {
		return table.ValueAt(pos, index-1), nil
	}
	return table.ValueAt(index-1, pos), nil
}

func fnVlookup(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return tableLookup(ec, args, true)
}

func fnHlookup(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return tableLookup(ec, args, false)
}

// fnLookup is the vector form. without a result vector a 2D area searches
// its first row or column, whichever is longer, and returns from the last.
func fnLookup(ec *EvalContext, args ...Primitive) (Primitive, error) {
	key, err := ec.lookupKey(args[0])
	if err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		if err, ok := arg.(*SpreadsheetError); ok {
			return nil, err
		}
	}
	area := ec.asRange(args[1])

	var keys, results []Primitive
	switch {
	case len(args) > 2:
		keys = rangeValues(area)
		results = rangeValues(ec.asRange(args[2]))
	case area.Width() > area.Height():
		for col := range area.Width() {
			keys = append(keys, area.ValueAt(0, col))
			results = append(results, area.ValueAt(area.Height()-1, col))
		}
	default:
		for row := range area.Height() {
			keys = append(keys, area.ValueAt(row, 0))
			results = append(results, area.ValueAt(row, area.Width()-1))
		}
	}

	pos := approximateMatch(keys, key, false)
	if pos < 0 {
		return nil, errNA(fmt.Sprintf("%s not found", coerceString(key)))
	}
	if pos >= len(results) {
		return nil, errNA("result vector is shorter than the lookup vector")
	}
	return results[pos], nil
}

func fnChoose(ec *EvalContext, args ...Primitive) (Primitive, error) {
	idx, err := ec.intArg(args[0])
	if err != nil {
		return nil, err
	}
	if idx < 1 || idx >= len(args) {
		return nil, errValue(fmt.Sprintf("CHOOSE index %d is out of range", idx))
	}
	return args[idx], nil
}

func (ec *EvalContext) referenceArg(args []Primitive) (RangeAddress, error) {
	if len(args) == 0 || args[0] == nil {
		return RangeAddress{
			WorksheetID: ec.Source.WorksheetID,
			StartRow:    ec.Source.Row, EndRow: ec.Source.Row,
			StartColumn: ec.Source.Column, EndColumn: ec.Source.Column,
		}, nil
	}
	switch t := args[0].(type) {
	case Range:
		return t.GetBounds(), nil
	case *SpreadsheetError:
		return RangeAddress{}, t
	}
	return RangeAddress{}, errValue("argument must be a reference")
}

func fnRow(ec *EvalContext, args ...Primitive) (Primitive, error) {
	addr, err := ec.referenceArg(args)
	if err != nil {
		return nil, err
	}
	return float64(addr.StartRow + 1), nil
}

func fnColumn(ec *EvalContext, args ...Primitive) (Primitive, error) {
	addr, err := ec.referenceArg(args)
	if err != nil {
		return nil, err
	}
	return float64(addr.StartColumn + 1), nil
}

func fnRows(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if err, ok := args[0].(*SpreadsheetError); ok {
		return nil, err
	}
	return float64(ec.asRange(args[0]).Height()), nil
}

func fnColumns(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if err, ok := args[0].(*SpreadsheetError); ok {
		return nil, err
	}
	return float64(ec.asRange(args[0]).Width()), nil
}

func fnOffset(ec *EvalContext, args ...Primitive) (Primitive, error) {
	base, ok := args[0].(Range)
	if !ok {
		if err, isErr := args[0].(*SpreadsheetError); isErr {
			return nil, err
		}
		return nil, errValue("OFFSET needs a reference")
	}
	rows, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	cols, err := ec.intArg(args[2])
	if err != nil {
		return nil, err
	}
	height, err := ec.optInt(args, 3, base.Height())
	if err != nil {
		return nil, err
	}
	width, err := ec.optInt(args, 4, base.Width())
	if err != nil {
		return nil, err
	}
	return base.Offset(rows, cols, height, width)
}

func fnIndirect(ec *EvalContext, args ...Primitive) (Primitive, error) {
	text, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	a1, err := ec.optBool(args, 1, true)
	if err != nil {
		return nil, err
	}
	if !a1 {
		return nil, errRef("R1C1 references are not supported")
	}
	if ec.Refs == nil {
		return nil, errRef("references are not available here")
	}
	r, err := ec.Refs.Reference(strings.TrimSpace(text), ec.Source.WorksheetID)
	if err != nil {
		return nil, errRef(fmt.Sprintf("'%s' is not a valid reference", text))
	}
	return r, nil
}

// quoteWorksheetName quotes a worksheet name for use in a reference when it
// is not a plain identifier
func quoteWorksheetName(name string) string {
	plain := name != ""
	for i, ch := range name {
		isLetter := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || ch == '_'
		isDigit := ch >= '0' && ch <= '9'
		if !isLetter && !(isDigit && i > 0) && ch != '.' {
			plain = false
			break
		}
	}
	if plain && !isCellReference(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// fnAddress builds reference text. abs_num 1 is $A$1, 2 is A$1, 3 is $A1
// and 4 is A1.
func fnAddress(ec *EvalContext, args ...Primitive) (Primitive, error) {
	row, err := ec.intArg(args[0])
	if err != nil {
		return nil, err
	}
	col, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	absNum, err := ec.optInt(args, 2, 1)
	if err != nil {
		return nil, err
	}
	a1, err := ec.optBool(args, 3, true)
	if err != nil {
		return nil, err
	}
	if row < 1 || col < 1 || row > MaxRows || col > MaxColumns || absNum < 1 || absNum > 4 {
		return nil, errValue("ADDRESS arguments are out of range")
	}
	absRow := absNum == 1 || absNum == 2
	absCol := absNum == 1 || absNum == 3

	var ref string
	if a1 {
		ref = columnLetters(col - 1)
		if absCol {
			ref = "$" + ref
		}
		if absRow {
			ref += "$"
		}
		ref += strconv.Itoa(row)
	} else {
		rowPart, colPart := strconv.Itoa(row), strconv.Itoa(col)
		if !absRow {
			rowPart = "[" + rowPart + "]"
		}
		if !absCol {
			colPart = "[" + colPart + "]"
		}
		ref = "R" + rowPart + "C" + colPart
	}

	if len(args) > 4 && args[4] != nil {
		sheet, err := ec.stringArg(args[4])
		if err != nil {
			return nil, err
		}
		ref = quoteWorksheetName(sheet) + "!" + ref
	}
	return ref, nil
}
