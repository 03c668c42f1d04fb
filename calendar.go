/*
Copyright © 2019 the EGUPro authors.
This file is part of EGUPro.

EGUPro is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

EGUPro is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with EGUPro.  If not, see <http://www.gnu.org/licenses/>.*/

package egupro

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	nonLeapYearHours = 8760
	leapYearHours    = 8784
	hoursPerDay      = 24
)

// ConfigurationError reports a fatal problem with the run configuration:
// a required input table is missing, or the base/future year pair cannot
// be determined uniquely. It always aborts the run before aggregation
// begins.
type ConfigurationError string

func (e ConfigurationError) Error() string { return string(e) }

// isLeapYear reports whether year is a leap year.
func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// hoursInYear returns the number of hours in the given year, 8760 or
// 8784.
func hoursInYear(year int) int {
	if isLeapYear(year) {
		return leapYearHours
	}
	return nonLeapYearHours
}

// InputVarsRecord is one row of the input variables table, which
// configures a run for one region and fuel bin.
type InputVarsRecord struct {
	Region, FuelBin string

	// BaseYear and FutureYear are the historical and projected years.
	// The distinct (BaseYear, FutureYear) pair must be the same on
	// every row of the table.
	BaseYear, FutureYear int

	// OzoneStart and OzoneEnd bound the ozone season (inclusive dates).
	OzoneStart, OzoneEnd time.Time
}

// inputVarsFields is the number of fields in an input variables record:
// region, fuel bin, base year, future year, ozone season start date, and
// ozone season end date.
const inputVarsFields = 6

// NewInputVarsRecord creates an input variables record from one table
// row.
func NewInputVarsRecord(rec []string) (*InputVarsRecord, error) {
	if len(rec) != inputVarsFields {
		return nil, fmt.Errorf("egupro.NewInputVarsRecord: record should have %d fields but instead has %d",
			inputVarsFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	r := new(InputVarsRecord)
	r.Region = trimString(rec[0])
	r.FuelBin = trimString(rec[1])
	var err error
	r.BaseYear, err = strconv.Atoi(trimString(rec[2]))
	if err != nil {
		return nil, fmt.Errorf("egupro.NewInputVarsRecord: base year: %v", err)
	}
	r.FutureYear, err = strconv.Atoi(trimString(rec[3]))
	if err != nil {
		return nil, fmt.Errorf("egupro.NewInputVarsRecord: future year: %v", err)
	}
	r.OzoneStart, err = parseDate(rec[4])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewInputVarsRecord: ozone season start: %v", err)
	}
	r.OzoneEnd, err = parseDate(rec[5])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewInputVarsRecord: ozone season end: %v", err)
	}
	return r, nil
}

// ReadInputVariables reads the input variables table.
func ReadInputVariables(f *TableFile) ([]*InputVarsRecord, error) {
	var records []*InputVarsRecord
	for {
		line, err := f.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.name, err)
		}
		rec, err := NewInputVarsRecord(line)
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.name, err)
		}
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Years holds the unique base and future year pair for a run.
type Years struct {
	Base, Future int
}

// CalendarIndex maps among absolute calendar hours, operating dates and
// hours, and per-region dispatch hierarchy hours for one base/future
// year pair.
type CalendarIndex struct {
	years                  Years
	baseStart, futureStart time.Time
	ozoneStart, ozoneEnd   time.Time

	// hierarchy maps a region:fuelBin key and calendar hour to the
	// dispatch hierarchy hour. Hierarchy hours exist only for hours the
	// future-year simulation allocated generation to.
	hierarchy map[string]map[int]int
}

// NewCalendarIndex builds a calendar index from the input variables
// table. It returns a ConfigurationError if the table is empty, if the
// distinct (base year, future year) pair is not unique, or if the
// distinct ozone season window is not unique.
func NewCalendarIndex(vars []*InputVarsRecord) (*CalendarIndex, error) {
	if len(vars) == 0 {
		return nil, ConfigurationError("egupro: input variables table has no rows")
	}
	yearPairs := make(map[Years]struct{})
	ozonePairs := make(map[[2]time.Time]struct{})
	for _, v := range vars {
		yearPairs[Years{Base: v.BaseYear, Future: v.FutureYear}] = struct{}{}
		ozonePairs[[2]time.Time{v.OzoneStart, v.OzoneEnd}] = struct{}{}
	}
	if len(yearPairs) != 1 {
		return nil, ConfigurationError(fmt.Sprintf(
			"egupro: input variables table has %d distinct base/future year pairs; need exactly 1", len(yearPairs)))
	}
	if len(ozonePairs) != 1 {
		return nil, ConfigurationError(fmt.Sprintf(
			"egupro: input variables table has %d distinct ozone season windows; need exactly 1", len(ozonePairs)))
	}
	c := &CalendarIndex{
		years:      Years{Base: vars[0].BaseYear, Future: vars[0].FutureYear},
		ozoneStart: vars[0].OzoneStart,
		ozoneEnd:   vars[0].OzoneEnd,
		hierarchy:  make(map[string]map[int]int),
	}
	c.baseStart = time.Date(c.years.Base, time.January, 1, 0, 0, 0, 0, time.UTC)
	c.futureStart = time.Date(c.years.Future, time.January, 1, 0, 0, 0, 0, time.UTC)
	return c, nil
}

// Years returns the base and future years for the run.
func (c *CalendarIndex) Years() Years { return c.years }

// HoursInYear returns the number of calendar hours in the given year,
// which must be the base or future year.
func (c *CalendarIndex) HoursInYear(year int) (int, error) {
	if year != c.years.Base && year != c.years.Future {
		return 0, fmt.Errorf("egupro: year %d is neither the base year %d nor the future year %d",
			year, c.years.Base, c.years.Future)
	}
	return hoursInYear(year), nil
}

// HourToDate converts a calendar hour in the given year to the operating
// date and operating hour of day. Calendar hours are 1-based.
func (c *CalendarIndex) HourToDate(year, calendarHour int) (time.Time, int, error) {
	n, err := c.HoursInYear(year)
	if err != nil {
		return time.Time{}, 0, err
	}
	if calendarHour < 1 || calendarHour > n {
		return time.Time{}, 0, fmt.Errorf("egupro: calendar hour %d out of range for year %d", calendarHour, year)
	}
	start := c.baseStart
	if year == c.years.Future {
		start = c.futureStart
	}
	t := start.Add(time.Duration(calendarHour-1) * time.Hour)
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return date, t.Hour(), nil
}

// DateToHour converts an operating date and hour of day to the calendar
// hour within the date's own year, which must be the base or future
// year.
func (c *CalendarIndex) DateToHour(date time.Time, opHour int) (int, error) {
	if opHour < 0 || opHour > 23 {
		return 0, fmt.Errorf("egupro: operating hour %d out of range", opHour)
	}
	year := date.Year()
	if _, err := c.HoursInYear(year); err != nil {
		return 0, err
	}
	start := c.baseStart
	if year == c.years.Future {
		start = c.futureStart
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(start).Hours()) + opHour + 1, nil
}

// AddHierarchy records the dispatch hierarchy hours observed in the
// future-year hourly records. Records are scanned in a deterministic
// order; the first hierarchy hour observed for a (region, fuel bin,
// calendar hour) wins.
func (c *CalendarIndex) AddHierarchy(projected map[string][]*HourlyProjectedRecord) {
	keys := make([]string, 0, len(projected))
	for k := range projected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		recs := projected[k]
		sorted := make([]*HourlyProjectedRecord, len(recs))
		copy(sorted, recs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].CalendarHour < sorted[j].CalendarHour })
		for _, r := range sorted {
			if r.HierarchyHour <= 0 {
				continue
			}
			sliceKey := r.Region + ":" + r.FuelBin
			m, ok := c.hierarchy[sliceKey]
			if !ok {
				m = make(map[int]int)
				c.hierarchy[sliceKey] = m
			}
			if _, ok := m[r.CalendarHour]; !ok {
				m[r.CalendarHour] = r.HierarchyHour
			}
		}
	}
}

// HierarchyHour returns the dispatch hierarchy hour for the given
// region, fuel bin, and calendar hour. The second return value is false
// if the future-year simulation allocated no generation to that hour.
func (c *CalendarIndex) HierarchyHour(region, fuelBin string, calendarHour int) (int, bool) {
	m, ok := c.hierarchy[region+":"+fuelBin]
	if !ok {
		return 0, false
	}
	h, ok := m[calendarHour]
	return h, ok
}

// OzoneWindow returns the inclusive ozone season start and end dates.
func (c *CalendarIndex) OzoneWindow() (start, end time.Time) {
	return c.ozoneStart, c.ozoneEnd
}

// OzoneHourRange returns the inclusive calendar hour bounds of the ozone
// season on the future-year calendar.
func (c *CalendarIndex) OzoneHourRange() (startHour, endHour int) {
	start := time.Date(c.years.Future, c.ozoneStart.Month(), c.ozoneStart.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(c.years.Future, c.ozoneEnd.Month(), c.ozoneEnd.Day(), 0, 0, 0, 0, time.UTC)
	startHour, _ = c.DateToHour(start, 0)
	endHour, _ = c.DateToHour(end, 23)
	return startHour, endHour
}
