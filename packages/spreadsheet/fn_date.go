package spreadsheet

import (
	"fmt"
	"math"
	"strings"
	"time"
)

func registerDateFunctions(bf *BuiltInFunctions) {
	bf.Register("DATE", 3, 3, fnDate)
	bf.Register("TIME", 3, 3, fnTime)
	bf.Register("DATEVALUE", 1, 1, fnDateValue)
	bf.Register("TIMEVALUE", 1, 1, fnTimeValue)
	bf.Register("YEAR", 1, 1, datePartFn(func(y, m, d int) int { return y }))
	bf.Register("MONTH", 1, 1, datePartFn(func(y, m, d int) int { return m }))
	bf.Register("DAY", 1, 1, datePartFn(func(y, m, d int) int { return d }))
	bf.Register("HOUR", 1, 1, timePartFn(func(h, m, s int) int { return h }))
	bf.Register("MINUTE", 1, 1, timePartFn(func(h, m, s int) int { return m }))
	bf.Register("SECOND", 1, 1, timePartFn(func(h, m, s int) int { return s }))
	bf.Register("WEEKDAY", 1, 2, fnWeekday)
	bf.Register("WEEKNUM", 1, 2, fnWeekNum)
	bf.Register("ISOWEEKNUM", 1, 1, fnIsoWeekNum)
	bf.Register("DAYS", 2, 2, fnDays)
	bf.Register("DAYS360", 2, 3, fnDays360)
	bf.Register("DATEDIF", 3, 3, fnDateDif)
	bf.Register("YEARFRAC", 2, 3, fnYearFrac)
	bf.Register("EDATE", 2, 2, fnEdate)
	bf.Register("EOMONTH", 2, 2, fnEomonth)
	bf.Register("WORKDAY", 2, 3, fnWorkday)
	bf.Register("NETWORKDAYS", 2, 3, fnNetworkDays)
	bf.RegisterVolatile("NOW", 0, 0, fnNow)
	bf.RegisterVolatile("TODAY", 0, 0, fnToday)
}

// dateArg reads a date serial, text dates included
func (ec *EvalContext) dateArg(v Primitive) (float64, error) {
	serial, err := ec.numberArg(v)
	if err != nil {
		return 0, err
	}
	if serial < 0 || serial >= maxDateSerial(ec.DateSystem) {
		return 0, errNum(fmt.Sprintf("%s is not a valid date", formatNumber(serial)))
	}
	return serial, nil
}

func (ec *EvalContext) dateFields(v Primitive) (serial float64, year, month, day int, err error) {
	if serial, err = ec.dateArg(v); err != nil {
		return 0, 0, 0, 0, err
	}
	year, month, day, err = dateParts(serial, ec.DateSystem)
	return serial, year, month, day, err
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (ec *EvalContext) checkedSerial(serial float64) (Primitive, error) {
	if serial < 0 || serial >= maxDateSerial(ec.DateSystem) {
		return nil, errNum("date is outside the supported range")
	}
	return serial, nil
}

// fnDate normalises overflowing months and days. years below 1900 are
// taken as offsets from 1900.
func fnDate(ec *EvalContext, args ...Primitive) (Primitive, error) {
	var parts [3]int
	for i := range parts {
		n, err := ec.intArg(args[i])
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	year, month, day := parts[0], parts[1], parts[2]
	if year < 0 || year > 9999 {
		return nil, errNum(fmt.Sprintf("year %d is out of range", year))
	}
	if year < 1900 {
		year += 1900
	}
	return ec.checkedSerial(dateSerial(year, month, day, ec.DateSystem))
}

func fnTime(ec *EvalContext, args ...Primitive) (Primitive, error) {
	var parts [3]int
	for i := range parts {
		n, err := ec.intArg(args[i])
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	total := parts[0]*3600 + parts[1]*60 + parts[2]
	if total < 0 {
		return nil, errNum("time is negative")
	}
	return float64(total%secondsPerDay) / secondsPerDay, nil
}

func (ec *EvalContext) parseDateText(v Primitive) (float64, error) {
	switch t := ec.deref(v).(type) {
	case *SpreadsheetError:
		return 0, t
	case string:
		if serial, ok := parseDateTime(t, ec.DateSystem); ok {
			return serial, nil
		}
		return 0, errValue(fmt.Sprintf("'%s' is not a date or time", t))
	}
	return 0, errValue("argument must be text")
}

func fnDateValue(ec *EvalContext, args ...Primitive) (Primitive, error) {
	serial, err := ec.parseDateText(args[0])
	if err != nil {
		return nil, err
	}
	return math.Floor(serial), nil
}

func fnTimeValue(ec *EvalContext, args ...Primitive) (Primitive, error) {
	serial, err := ec.parseDateText(args[0])
	if err != nil {
		return nil, err
	}
	return serial - math.Floor(serial), nil
}

func datePartFn(pick func(y, m, d int) int) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		_, y, m, d, err := ec.dateFields(args[0])
		if err != nil {
			return nil, err
		}
		return float64(pick(y, m, d)), nil
	}
}

func timePartFn(pick func(h, m, s int) int) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		serial, err := ec.dateArg(args[0])
		if err != nil {
			return nil, err
		}
		h, m, s := timeParts(serial)
		return float64(pick(h, m, s)), nil
	}
}

// weekStart maps a WEEKDAY/WEEKNUM return_type to the day (0 = Sunday)
// numbered 1
func weekStart(returnType int) (int, bool) {
	switch {
	case returnType == 1:
		return 0, true
	case returnType == 2:
		return 1, true
	case returnType >= 11 && returnType <= 17:
		return (returnType - 10) % 7, true
	}
	return 0, false
}

func fnWeekday(ec *EvalContext, args ...Primitive) (Primitive, error) {
	serial, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	returnType, err := ec.optInt(args, 1, 1)
	if err != nil {
		return nil, err
	}
	wd := weekday(serial, ec.DateSystem)
	if returnType == 3 {
		return float64((wd + 6) % 7), nil
	}
	start, ok := weekStart(returnType)
	if !ok {
		return nil, errNum(fmt.Sprintf("WEEKDAY return_type %d is not valid", returnType))
	}
	return float64((wd-start+7)%7 + 1), nil
}

func isoWeek(serial float64, ds DateSystem) (int, error) {
	t, err := serialToTime(serial, ds)
	if err != nil {
		return 0, err
	}
	_, week := t.ISOWeek()
	return week, nil
}

func fnWeekNum(ec *EvalContext, args ...Primitive) (Primitive, error) {
	serial, year, _, _, err := ec.dateFields(args[0])
	if err != nil {
		return nil, err
	}
	returnType, err := ec.optInt(args, 1, 1)
	if err != nil {
		return nil, err
	}
	if returnType == 21 {
		week, err := isoWeek(serial, ec.DateSystem)
		if err != nil {
			return nil, err
		}
		return float64(week), nil
	}
	start, ok := weekStart(returnType)
	if !ok {
		return nil, errNum(fmt.Sprintf("WEEKNUM return_type %d is not valid", returnType))
	}
	jan1 := dateSerial(year, 1, 1, ec.DateSystem)
	offset := (weekday(jan1, ec.DateSystem) - start + 7) % 7
	return math.Floor((math.Floor(serial)-jan1+float64(offset))/7) + 1, nil
}

func fnIsoWeekNum(ec *EvalContext, args ...Primitive) (Primitive, error) {
	serial, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	week, err := isoWeek(serial, ec.DateSystem)
	if err != nil {
		return nil, err
	}
	return float64(week), nil
}

func fnDays(ec *EvalContext, args ...Primitive) (Primitive, error) {
	end, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	start, err := ec.dateArg(args[1])
	if err != nil {
		return nil, err
	}
	return math.Floor(end) - math.Floor(start), nil
}

func isLastDayOfMonth(year, month, day int) bool {
	return day >= daysInMonth(year, month)
}

func fnDays360(ec *EvalContext, args ...Primitive) (Primitive, error) {
	_, sy, sm, sd, err := ec.dateFields(args[0])
	if err != nil {
		return nil, err
	}
	_, ey, em, ed, err := ec.dateFields(args[1])
	if err != nil {
		return nil, err
	}
	european, err := ec.optBool(args, 2, false)
	if err != nil {
		return nil, err
	}
	if european {
		sd, ed = min(sd, 30), min(ed, 30)
	} else {
		if isLastDayOfMonth(sy, sm, sd) {
			sd = 30
		}
		if ed == 31 {
			if sd < 30 {
				ed = 1
				em++
			} else {
				ed = 30
			}
		}
	}
	return float64((ey-sy)*360 + (em-sm)*30 + (ed - sd)), nil
}

// fnDateDif counts whole units between two dates: "Y", "M", "D", "MD",
// "YM" or "YD"
func fnDateDif(ec *EvalContext, args ...Primitive) (Primitive, error) {
	start, sy, sm, sd, err := ec.dateFields(args[0])
	if err != nil {
		return nil, err
	}
	end, ey, em, ed, err := ec.dateFields(args[1])
	if err != nil {
		return nil, err
	}
	unit, err := ec.stringArg(args[2])
	if err != nil {
		return nil, err
	}
	start, end = math.Floor(start), math.Floor(end)
	if start > end {
		return nil, errNum("DATEDIF start date is after the end date")
	}
	months := (ey-sy)*12 + em - sm
	if ed < sd {
		months--
	}
	switch strings.ToUpper(unit) {
	case "Y":
		return float64(months / 12), nil
	case "M":
		return float64(months), nil
	case "D":
		return end - start, nil
	case "MD":
		if ed >= sd {
			return float64(ed - sd), nil
		}
		py, pm := ey, em-1
		if pm == 0 {
			py, pm = ey-1, 12
		}
		return end - dateSerial(py, pm, sd, ec.DateSystem), nil
	case "YM":
		return float64(months % 12), nil
	case "YD":
		y := ey
		if em < sm || (em == sm && ed < sd) {
			y--
		}
		return end - dateSerial(y, sm, sd, ec.DateSystem), nil
	}
	return nil, errNum(fmt.Sprintf("DATEDIF unit '%s' is not valid", unit))
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func fnYearFrac(ec *EvalContext, args ...Primitive) (Primitive, error) {
	start, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	end, err := ec.dateArg(args[1])
	if err != nil {
		return nil, err
	}
	basis, err := ec.optInt(args, 2, 0)
	if err != nil {
		return nil, err
	}
	if basis < 0 || basis > 4 {
		return nil, errNum(fmt.Sprintf("YEARFRAC basis %d is not valid", basis))
	}
	start, end = math.Floor(start), math.Floor(end)
	if start > end {
		start, end = end, start
	}
	return yearFrac(start, end, basis, ec.DateSystem)
}

// yearFrac measures the fraction of a year between two serials under a
// day count basis: 0 US 30/360, 1 actual/actual, 2 actual/360, 3
// actual/365, 4 European 30/360
func yearFrac(start, end float64, basis int, ds DateSystem) (float64, error) {
	sy, sm, sd, err := dateParts(start, ds)
	if err != nil {
		return 0, err
	}
	ey, em, ed, err := dateParts(end, ds)
	if err != nil {
		return 0, err
	}
	switch basis {
	case 0:
		startLastFeb := sm == 2 && isLastDayOfMonth(sy, sm, sd)
		endLastFeb := em == 2 && isLastDayOfMonth(ey, em, ed)
		if startLastFeb && endLastFeb {
			ed = 30
		}
		if startLastFeb {
			sd = 30
		}
		if ed == 31 && sd >= 30 {
			ed = 30
		}
		if sd == 31 {
			sd = 30
		}
		return float64((ey-sy)*360+(em-sm)*30+(ed-sd)) / 360, nil
	case 1:
		days := end - start
		if sy == ey {
			if isLeapYear(sy) {
				return days / 366, nil
			}
			return days / 365, nil
		}
		if ey == sy+1 && (em < sm || (em == sm && ed <= sd)) {
			leap := (isLeapYear(sy) && (sm < 3)) || (isLeapYear(ey) && (em > 2 || (em == 2 && ed == 29)))
			if leap {
				return days / 366, nil
			}
			return days / 365, nil
		}
		total := dateSerial(ey+1, 1, 1, ds) - dateSerial(sy, 1, 1, ds)
		return days / (total / float64(ey-sy+1)), nil
	case 2:
		return (end - start) / 360, nil
	case 3:
		return (end - start) / 365, nil
	default:
		sd, ed = min(sd, 30), min(ed, 30)
		return float64((ey-sy)*360+(em-sm)*30+(ed-sd)) / 360, nil
	}
}

func (ec *EvalContext) shiftMonths(args []Primitive) (year, month, day int, err error) {
	_, year, month, day, err = ec.dateFields(args[0])
	if err != nil {
		return 0, 0, 0, err
	}
	months, err := ec.intArg(args[1])
	if err != nil {
		return 0, 0, 0, err
	}
	total := year*12 + month - 1 + months
	return total / 12, total%12 + 1, day, nil
}

func fnEdate(ec *EvalContext, args ...Primitive) (Primitive, error) {
	year, month, day, err := ec.shiftMonths(args)
	if err != nil {
		return nil, err
	}
	if year < 1900 {
		return nil, errNum("EDATE result is before the first date")
	}
	return ec.checkedSerial(dateSerial(year, month, min(day, daysInMonth(year, month)), ec.DateSystem))
}

func fnEomonth(ec *EvalContext, args ...Primitive) (Primitive, error) {
	year, month, _, err := ec.shiftMonths(args)
	if err != nil {
		return nil, err
	}
	if year < 1900 {
		return nil, errNum("EOMONTH result is before the first date")
	}
	return ec.checkedSerial(dateSerial(year, month+1, 0, ec.DateSystem))
}

func (ec *EvalContext) holidays(args []Primitive, i int) (map[float64]bool, error) {
	out := make(map[float64]bool)
	if i >= len(args) || args[i] == nil {
		return out, nil
	}
	nums, err := ec.collectNumbers(args[i : i+1])
	if err != nil {
		return nil, err
	}
	for _, n := range nums {
		out[math.Floor(n)] = true
	}
	return out, nil
}

func (ec *EvalContext) isWorkday(serial float64, holidays map[float64]bool) bool {
	wd := weekday(serial, ec.DateSystem)
	return wd != 0 && wd != 6 && !holidays[serial]
}

func fnWorkday(ec *EvalContext, args ...Primitive) (Primitive, error) {
	start, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	days, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	holidays, err := ec.holidays(args, 2)
	if err != nil {
		return nil, err
	}
	serial := math.Floor(start)
	step := 1.0
	if days < 0 {
		step, days = -1, -days
	}
	limit := maxDateSerial(ec.DateSystem)
	for days > 0 {
		serial += step
		if serial < 0 {
			return nil, errNum("WORKDAY result is before the first date")
		}
		if serial >= limit {
			return nil, errNum("WORKDAY result is past the last date")
		}
		if ec.isWorkday(serial, holidays) {
			days--
		}
	}
	return ec.checkedSerial(serial)
}

func fnNetworkDays(ec *EvalContext, args ...Primitive) (Primitive, error) {
	start, err := ec.dateArg(args[0])
	if err != nil {
		return nil, err
	}
	end, err := ec.dateArg(args[1])
	if err != nil {
		return nil, err
	}
	holidays, err := ec.holidays(args, 2)
	if err != nil {
		return nil, err
	}
	start, end = math.Floor(start), math.Floor(end)
	sign := 1.0
	if start > end {
		start, end, sign = end, start, -1
	}
	count := 0.0
	for serial := start; serial <= end; serial++ {
		if ec.isWorkday(serial, holidays) {
			count++
		}
	}
	return sign * count, nil
}

func fnNow(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return timeToSerial(ec.now(), ec.DateSystem), nil
}

func fnToday(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return math.Floor(timeToSerial(ec.now(), ec.DateSystem)), nil
}
