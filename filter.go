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
	"strings"
	"time"
)

// FilterContext restricts a run to a subset of the units and, for the
// time-resolved outputs, a span of the future year. A nil context, or
// one built from empty lists, keeps everything. Contexts are immutable
// once created.
type FilterContext struct {
	states, regions, fuelBins, facilities map[string]bool
	span                                  TimeSpan
}

// NewFilterContext creates a selection from lists of state codes,
// region names, fuel bins, and facility IDs. Empty or nil lists place
// no restriction on their attribute. A zero span means Annual.
func NewFilterContext(states, regions, fuelBins, facilities []string, span TimeSpan) *FilterContext {
	return &FilterContext{
		states:     stringSet(states),
		regions:    stringSet(regions),
		fuelBins:   stringSet(fuelBins),
		facilities: stringSet(facilities),
		span:       span,
	}
}

func stringSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Keep reports whether the unit is within the selection.
func (c *FilterContext) Keep(u *UnitRecord) bool {
	if c == nil {
		return true
	}
	if c.states != nil && !c.states[u.State] {
		return false
	}
	if c.regions != nil && !c.regions[u.Region] {
		return false
	}
	if c.fuelBins != nil && !c.fuelBins[u.FuelBin] {
		return false
	}
	if c.facilities != nil && !c.facilities[u.FacilityID] {
		return false
	}
	return true
}

// KeepUnits returns the unit records within the selection, in their
// original order.
func (c *FilterContext) KeepUnits(units []*UnitRecord) []*UnitRecord {
	if c == nil {
		return units
	}
	out := make([]*UnitRecord, 0, len(units))
	for _, u := range units {
		if c.Keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// Span returns the selected reporting span; the zero value reads as
// Annual.
func (c *FilterContext) Span() TimeSpan {
	if c == nil || c.span == 0 {
		return Annual
	}
	return c.span
}

// KeepHour reports whether a future-year calendar hour falls within
// the selected span. The ozone season span uses the run's configured
// window rather than the default regulatory one.
func (c *FilterContext) KeepHour(index *CalendarIndex, calendarHour int) bool {
	span := c.Span()
	if span == Annual {
		return true
	}
	years := index.Years()
	date, _, err := index.HourToDate(years.Future, calendarHour)
	if err != nil {
		return false
	}
	var start, end time.Time
	if span == OzoneSeason {
		ozStart, ozEnd := index.OzoneWindow()
		start = time.Date(years.Future, ozStart.Month(), ozStart.Day(), 0, 0, 0, 0, time.UTC)
		// The window end is inclusive.
		end = time.Date(years.Future, ozEnd.Month(), ozEnd.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	} else {
		start, end = span.Interval(years.Future)
	}
	return !date.Before(start) && date.Before(end)
}
