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
	"math"
	"sort"
)

// AnnualUnitRecord is one row of the annual unit summary: the annual
// totals, splits, maxima, and derived rates for one unit and lifecycle
// category. Rates with a zero denominator are NaN, which exports as an
// empty cell.
type AnnualUnitRecord struct {
	BaseIdentity, FutureIdentity UnitIdentity
	FacilityName                 string
	State                        string
	Category                     Category

	// Annual totals: gross load (MW-hrs), heat input (mmBtu), and
	// pollutant masses (tons).
	BYGLoad, FYGLoad         float64
	BYHeatInput, FYHeatInput float64
	BYSO2Mass, FYSO2Mass     float64
	BYNOxMass, FYNOxMass     float64
	BYCO2Mass, FYCO2Mass     float64

	// BYUtilization and FYUtilization are the annual heat input divided
	// by the unit's maximum hourly heat input times the hours in the
	// year. NaN when the maximum hourly heat input is zero.
	BYUtilization, FYUtilization float64

	// Ozone season splits of heat input (mmBtu) and NOx mass (tons).
	BYOzoneHeatInput, FYOzoneHeatInput   float64
	BYOzoneNOxMass, FYOzoneNOxMass       float64
	BYNonOzoneNOxMass, FYNonOzoneNOxMass float64

	// OzoneActiveDays is the number of ozone season days on which the
	// unit had nonzero future-year heat input.
	OzoneActiveDays int

	// FYOzoneNOxPerDay is the future-year ozone season NOx mass per
	// active ozone season day (tons/day). NaN with no active days.
	FYOzoneNOxPerDay float64

	// FYMaxSO2Mass and FYMaxNOxMass are the highest single-hour masses
	// (tons) in the future year, taken over the hourly rows directly.
	FYMaxSO2Mass, FYMaxNOxMass float64

	// Emission rates (lbs/mmBtu): 2000 times the annual mass in tons
	// divided by the annual heat input. NaN when the heat input is
	// zero.
	BYSO2Rate, FYSO2Rate float64
	BYNOxRate, FYNOxRate float64

	// GenerationDeficit reports that the unit has no entry in the
	// dispatch hierarchy table. GenericUnit reports that the unit was
	// created by the projection to cover demand.
	GenerationDeficit bool
	GenericUnit       bool
}

// emissionRate returns the rate in lbs/mmBtu for the given annual mass
// (tons) and heat input (mmBtu), or NaN when the denominator is zero.
func emissionRate(tons, heatInput float64) float64 {
	if heatInput == 0 || math.IsNaN(heatInput) {
		return math.NaN()
	}
	return lbsPerTon * tons / heatInput
}

// utilization returns the annual heat input divided by the hourly
// capacity times the hours in the year, or NaN when the capacity is
// zero.
func utilization(heatInput, maxHourly float64, hours int) float64 {
	if maxHourly == 0 || math.IsNaN(maxHourly) {
		return math.NaN()
	}
	return heatInput / (maxHourly * float64(hours))
}

// AnnualAggregator reduces hourly and daily activity records to one row
// per unit and lifecycle category.
type AnnualAggregator struct {
	Index *CalendarIndex

	// Units holds the unit attribute records, for hourly capacities.
	Units []*UnitRecord

	// Hierarchy is the dispatch hierarchy table; units missing from it
	// are flagged as generation-deficit units. May be nil.
	Hierarchy *UnitHierarchy

	// GenericUnits holds the facility:unit keys of units created by
	// the projection. May be nil.
	GenericUnits map[string]bool
}

// Aggregate produces the annual unit summary from the hourly activity
// rows and the daily summary. The result is ordered by unit and
// category.
func (a *AnnualAggregator) Aggregate(rows []*HourlyActivityRecord, daily []*DailyActivityRecord) []*AnnualUnitRecord {
	attrs := make(map[UnitIdentity]*UnitRecord)
	for _, u := range a.Units {
		attrs[u.UnitIdentity] = u
	}
	ozStart, ozEnd := a.Index.OzoneHourRange()
	years := a.Index.Years()

	type annKey struct {
		unit string
		cat  Category
	}
	groups := make(map[annKey]*AnnualUnitRecord)
	for _, r := range rows {
		k := annKey{unit: activityUnitKey(r), cat: r.Category}
		ann, ok := groups[k]
		if !ok {
			ann = &AnnualUnitRecord{
				BaseIdentity:   r.BaseIdentity,
				FutureIdentity: r.FutureIdentity,
				FacilityName:   r.FacilityName,
				State:          r.State,
				Category:       r.Category,
			}
			groups[k] = ann
		}
		ann.BYGLoad += r.BYGLoad
		ann.FYGLoad += r.FYGLoad
		ann.BYHeatInput += r.BYHeatInput
		ann.FYHeatInput += r.FYHeatInput
		ann.BYSO2Mass += r.BYSO2Mass
		ann.FYSO2Mass += r.FYSO2Mass
		ann.BYNOxMass += r.BYNOxMass
		ann.FYNOxMass += r.FYNOxMass
		ann.BYCO2Mass += r.BYCO2Mass
		ann.FYCO2Mass += r.FYCO2Mass

		inOzone := r.CalendarHour >= ozStart && r.CalendarHour <= ozEnd
		if inOzone {
			ann.BYOzoneHeatInput += r.BYHeatInput
			ann.FYOzoneHeatInput += r.FYHeatInput
			ann.BYOzoneNOxMass += r.BYNOxMass
			ann.FYOzoneNOxMass += r.FYNOxMass
		} else {
			ann.BYNonOzoneNOxMass += r.BYNOxMass
			ann.FYNonOzoneNOxMass += r.FYNOxMass
		}

		// Maxima come from the hourly rows, not from any sum.
		if r.FYSO2Mass > ann.FYMaxSO2Mass {
			ann.FYMaxSO2Mass = r.FYSO2Mass
		}
		if r.FYNOxMass > ann.FYMaxNOxMass {
			ann.FYMaxNOxMass = r.FYNOxMass
		}
	}

	// Active ozone season days per unit and category.
	for _, d := range daily {
		if d.OzoneFraction <= 0 || d.FYHeatInput == 0 {
			continue
		}
		k := annKey{unit: activityUnitKeyDaily(d), cat: d.Category}
		if ann, ok := groups[k]; ok {
			ann.OzoneActiveDays++
		}
	}

	out := make([]*AnnualUnitRecord, 0, len(groups))
	for _, ann := range groups {
		byAttrs := attrs[ann.BaseIdentity]
		fyAttrs := attrs[ann.FutureIdentity]

		ann.BYUtilization = math.NaN()
		if byAttrs != nil {
			ann.BYUtilization = utilization(ann.BYHeatInput, byAttrs.MaxHourlyHeatInput, hoursInYear(years.Base))
		}
		ann.FYUtilization = math.NaN()
		if fyAttrs != nil {
			ann.FYUtilization = utilization(ann.FYHeatInput, fyAttrs.MaxHourlyHeatInput, hoursInYear(years.Future))
		}

		ann.BYSO2Rate = emissionRate(ann.BYSO2Mass, ann.BYHeatInput)
		ann.FYSO2Rate = emissionRate(ann.FYSO2Mass, ann.FYHeatInput)
		ann.BYNOxRate = emissionRate(ann.BYNOxMass, ann.BYHeatInput)
		ann.FYNOxRate = emissionRate(ann.FYNOxMass, ann.FYHeatInput)

		if ann.OzoneActiveDays == 0 {
			ann.FYOzoneNOxPerDay = math.NaN()
		} else {
			ann.FYOzoneNOxPerDay = ann.FYOzoneNOxMass / float64(ann.OzoneActiveDays)
		}

		id := ann.FutureIdentity
		if id == (UnitIdentity{}) {
			id = ann.BaseIdentity
		}
		if a.Hierarchy != nil {
			ann.GenerationDeficit = !a.Hierarchy.Contains(id.FacilityID, id.UnitID)
		}
		if a.GenericUnits != nil {
			ann.GenericUnit = a.GenericUnits[id.unitKey()]
		}
		out = append(out, ann)
	}

	sort.Slice(out, func(i, j int) bool {
		ki := annualUnitKey(out[i])
		kj := annualUnitKey(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func annualUnitKey(a *AnnualUnitRecord) string {
	if a.FutureIdentity != (UnitIdentity{}) {
		return a.FutureIdentity.unitKey()
	}
	return a.BaseIdentity.unitKey()
}
