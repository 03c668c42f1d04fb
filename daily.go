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

import "sort"

// DailyActivityRecord is one row of the daily unit activity summary:
// the summed activity of one unit on one calendar day. Days with no
// hourly activity rows produce no record.
type DailyActivityRecord struct {
	BaseIdentity, FutureIdentity UnitIdentity
	FacilityName                 string
	State                        string
	Category                     Category

	// Day is the calendar day of year, 1-based.
	Day int

	// OzoneFraction is the fraction of the day's hours that fall
	// inside the ozone season window, between 0 and 1.
	OzoneFraction float64

	// Daily sums of the hourly fields: gross load (MW), heat input
	// (mmBtu), and pollutant masses (tons).
	BYGLoad, FYGLoad         float64
	BYHeatInput, FYHeatInput float64
	BYSO2Mass, FYSO2Mass     float64
	BYNOxMass, FYNOxMass     float64
	BYCO2Mass, FYCO2Mass     float64
}

// activityUnitKey identifies the physical unit an hourly activity row
// belongs to.
func activityUnitKey(r *HourlyActivityRecord) string {
	if r.FutureIdentity != (UnitIdentity{}) {
		return r.FutureIdentity.unitKey()
	}
	return r.BaseIdentity.unitKey()
}

// ozoneDayFraction returns the fraction of day's hours that lie inside
// the inclusive calendar hour window [ozStart, ozEnd].
func ozoneDayFraction(day, ozStart, ozEnd int) float64 {
	dayStart := (day-1)*hoursPerDay + 1
	dayEnd := day * hoursPerDay
	lo := dayStart
	if ozStart > lo {
		lo = ozStart
	}
	hi := dayEnd
	if ozEnd < hi {
		hi = ozEnd
	}
	if hi < lo {
		return 0
	}
	return float64(hi-lo+1) / hoursPerDay
}

// AggregateDaily reduces hourly activity rows to one record per unit,
// lifecycle category, and calendar day, summing all numeric fields. The
// result is ordered by unit, day, and category.
func AggregateDaily(rows []*HourlyActivityRecord, index *CalendarIndex) []*DailyActivityRecord {
	type dayKey struct {
		unit string
		cat  Category
		day  int
	}
	ozStart, ozEnd := index.OzoneHourRange()

	groups := make(map[dayKey]*DailyActivityRecord)
	for _, r := range rows {
		day := (r.CalendarHour-1)/hoursPerDay + 1
		k := dayKey{unit: activityUnitKey(r), cat: r.Category, day: day}
		d, ok := groups[k]
		if !ok {
			d = &DailyActivityRecord{
				BaseIdentity:   r.BaseIdentity,
				FutureIdentity: r.FutureIdentity,
				FacilityName:   r.FacilityName,
				State:          r.State,
				Category:       r.Category,
				Day:            day,
				OzoneFraction:  ozoneDayFraction(day, ozStart, ozEnd),
			}
			groups[k] = d
		}
		d.BYGLoad += r.BYGLoad
		d.FYGLoad += r.FYGLoad
		d.BYHeatInput += r.BYHeatInput
		d.FYHeatInput += r.FYHeatInput
		d.BYSO2Mass += r.BYSO2Mass
		d.FYSO2Mass += r.FYSO2Mass
		d.BYNOxMass += r.BYNOxMass
		d.FYNOxMass += r.FYNOxMass
		d.BYCO2Mass += r.BYCO2Mass
		d.FYCO2Mass += r.FYCO2Mass
	}

	out := make([]*DailyActivityRecord, 0, len(groups))
	for _, d := range groups {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		ki := activityUnitKeyDaily(out[i])
		kj := activityUnitKeyDaily(out[j])
		if ki != kj {
			return ki < kj
		}
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func activityUnitKeyDaily(d *DailyActivityRecord) string {
	if d.FutureIdentity != (UnitIdentity{}) {
		return d.FutureIdentity.unitKey()
	}
	return d.BaseIdentity.unitKey()
}
