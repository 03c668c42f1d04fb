package egupro

import (
	"fmt"
	"strings"
	"time"
)

// TimeSpan specifies the portion of a year that a query or report covers.
type TimeSpan int

// The TimeSpans are the full year, the four calendar quarters, and the
// ozone season.
const (
	Annual TimeSpan = iota + 1
	FirstQuarter
	SecondQuarter
	ThirdQuarter
	FourthQuarter
	OzoneSeason
)

func (ts TimeSpan) String() string {
	switch ts {
	case Annual:
		return "Annual"
	case FirstQuarter:
		return "FirstQuarter"
	case SecondQuarter:
		return "SecondQuarter"
	case ThirdQuarter:
		return "ThirdQuarter"
	case FourthQuarter:
		return "FourthQuarter"
	case OzoneSeason:
		return "OzoneSeason"
	default:
		panic(fmt.Sprintf("unknown time span: %d", int(ts)))
	}
}

// ParseTimeSpan returns the TimeSpan corresponding to s. It accepts
// the String form of each span as well as the abbreviations annual,
// q1, q2, q3, q4, and ozone, ignoring case.
func ParseTimeSpan(s string) (TimeSpan, error) {
	switch strings.ToLower(trimString(s)) {
	case "annual":
		return Annual, nil
	case "q1", "firstquarter":
		return FirstQuarter, nil
	case "q2", "secondquarter":
		return SecondQuarter, nil
	case "q3", "thirdquarter":
		return ThirdQuarter, nil
	case "q4", "fourthquarter":
		return FourthQuarter, nil
	case "ozone", "ozoneseason":
		return OzoneSeason, nil
	}
	return -1, fmt.Errorf("egupro: invalid time span %q", s)
}

// Interval returns the start and the end of the receiver span in the
// given year. The end is exclusive. For OzoneSeason the interval is the
// default regulatory window (May 1 through September 30); callers with a
// configured ozone window should use that instead.
func (ts TimeSpan) Interval(year int) (start, end time.Time) {
	switch ts {
	case Annual:
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case FirstQuarter:
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
	case SecondQuarter:
		start = time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
	case ThirdQuarter:
		start = time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
	case FourthQuarter:
		start = time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case OzoneSeason:
		start = time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
	default:
		panic(fmt.Sprintf("unknown time span: %d", int(ts)))
	}
	return
}
