package spreadsheet

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	secondsPerDay = 86400
	// serial of 10000-01-01, the first date that cannot be represented
	maxDateSerial1900 = 2958466
	maxDateSerial1904 = maxDateSerial1900 - 1462
)

var (
	epoch1900       = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	epoch1900Early  = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC) // before the phantom 1900-02-29
	epoch1904       = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	phantomLeapDay  = 60.0
	firstMarch1900  = 61.0
	daysBetween1904 = 1462.0
)

func daysSince(base time.Time, year, month, day int) float64 {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return float64((t.Unix() - base.Unix()) / secondsPerDay)
}

// dateSerial converts a calendar date to a serial number. month and day may
// overflow in either direction, as DATE allows. in the 1900 system
// 1900-02-29 exists and is serial 60.
func dateSerial(year, month, day int, ds DateSystem) float64 {
	// normalise the month first so the day offset is applied linearly
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	if month < 1 {
		month += 12
		year--
	}

	if ds == Date1904 {
		return daysSince(epoch1904, year, month, 1) + float64(day-1)
	}
	first := daysSince(epoch1900, year, month, 1)
	if first < firstMarch1900 {
		first = daysSince(epoch1900Early, year, month, 1)
	}
	return first + float64(day-1)
}

func maxDateSerial(ds DateSystem) float64 {
	if ds == Date1904 {
		return maxDateSerial1904
	}
	return maxDateSerial1900
}

// serialToTime converts a serial number to a UTC time. the phantom leap day
// maps to 1900-03-01, use dateParts when the calendar fields matter.
func serialToTime(serial float64, ds DateSystem) (time.Time, error) {
	if serial < 0 || serial >= maxDateSerial(ds) {
		return time.Time{}, errNum(fmt.Sprintf("%s is not a valid date", formatNumber(serial)))
	}
	days := math.Floor(serial)
	ms := math.Round((serial - days) * secondsPerDay * 1000)

	base := epoch1900
	switch {
	case ds == Date1904:
		base = epoch1904
	case days < firstMarch1900:
		base = epoch1900Early
	}
	return base.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond), nil
}

// timeToSerial converts the wall clock fields of t to a serial number
func timeToSerial(t time.Time, ds DateSystem) float64 {
	date := dateSerial(t.Year(), int(t.Month()), t.Day(), ds)
	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return date + secs/secondsPerDay
}

// dateParts returns the calendar fields of a serial number
func dateParts(serial float64, ds DateSystem) (year, month, day int, err error) {
	if ds == Date1900 && math.Floor(serial) == phantomLeapDay {
		return 1900, 2, 29, nil
	}
	if ds == Date1900 && math.Floor(serial) == 0 && serial >= 0 {
		// serial 0 displays as 1900-01-00
		return 1900, 1, 0, nil
	}
	t, err := serialToTime(serial, ds)
	if err != nil {
		return 0, 0, 0, err
	}
	return t.Year(), int(t.Month()), t.Day(), nil
}

// timeParts returns hour, minute and second of the fractional day, rounded
// to the nearest second
func timeParts(serial float64) (hour, minute, second int) {
	frac := serial - math.Floor(serial)
	total := int(math.Round(frac*secondsPerDay)) % secondsPerDay
	return total / 3600, total % 3600 / 60, total % 60
}

// weekday returns 0 for Sunday through 6 for Saturday. in the 1900 system
// serial 1 is a Sunday, which is wrong before March 1900 but matches what
// spreadsheets report.
func weekday(serial float64, ds DateSystem) int {
	days := int(math.Floor(serial))
	if ds == Date1904 {
		days += int(daysBetween1904)
	}
	return ((days-1)%7 + 7) % 7
}

var (
	dateLayouts = []string{
		"2006-01-02",
		"2006/1/2",
		"1/2/2006",
		"1-2-2006",
		"2-Jan-2006",
		"2 Jan 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"January 2, 2006",
		"January 2 2006",
		"2 January 2006",
		"2-Jan-06",
		"1/2/06",
	}
	timeLayouts = []string{
		"15:04",
		"15:04:05",
		"15:04:05.999",
		"3:04 PM",
		"3:04:05 PM",
		"3:04PM",
		"3:04:05PM",
		"3 PM",
		"3PM",
	}
)

// parseDateTime recognises date, time and date-time text and returns its
// serial number
func parseDateTime(s string, ds DateSystem) (float64, bool) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return 0, false
	}
	if t, ok := parseTimeOfDay(s); ok {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateSerialChecked(t, ds)
		}
	}
	// "date time": split at each space and try the tail as a time
	for i := len(s) - 1; i > 0; i-- {
		if s[i] != ' ' {
			continue
		}
		frac, ok := parseTimeOfDay(s[i+1:])
		if !ok {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s[:i]); err == nil {
				serial, ok := dateSerialChecked(t, ds)
				return serial + frac, ok
			}
		}
	}
	return 0, false
}

func dateSerialChecked(t time.Time, ds DateSystem) (float64, bool) {
	serial := dateSerial(t.Year(), int(t.Month()), t.Day(), ds)
	if serial < 0 || serial >= maxDateSerial(ds) {
		return 0, false
	}
	return serial, true
}

// parseTimeOfDay parses a time on its own and returns the fraction of a day.
// hours past 23 roll over, as in "25:00".
func parseTimeOfDay(s string) (float64, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
			return secs / secondsPerDay, true
		}
	}
	var h, m, sec int
	if n, _ := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); n >= 2 && h >= 24 && m < 60 && sec < 60 {
		total := float64(h*3600 + m*60 + sec)
		return total / secondsPerDay, true
	}
	return 0, false
}
