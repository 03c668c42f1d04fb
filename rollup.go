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

// RegionalHourlyRecord is one row of the regional hourly rollup: the
// summed activity of all units dispatching in one region and fuel bin
// at one hierarchy hour. Base-year values are keyed on the base-year
// hierarchy hour and future-year values on the future-year hierarchy
// hour, so the two sides of a row describe the same dispatch position,
// not necessarily the same clock hour or the same units.
type RegionalHourlyRecord struct {
	Region, FuelBin string
	HierarchyHour   int

	BYGLoad, FYGLoad         float64
	BYHeatInput, FYHeatInput float64
	BYSO2Mass, FYSO2Mass     float64
	BYNOxMass, FYNOxMass     float64
	BYCO2Mass, FYCO2Mass     float64

	// GrowthRate and AdjustedGrowthRate are the largest non-null rates
	// among the future-year contributions. NaN when every contribution
	// was null.
	GrowthRate, AdjustedGrowthRate float64
}

// StateHourlyRecord is one row of the state hourly rollup, with the
// same dual-axis keying as RegionalHourlyRecord.
type StateHourlyRecord struct {
	State, FuelBin string
	HierarchyHour  int

	BYGLoad, FYGLoad         float64
	BYHeatInput, FYHeatInput float64
	BYSO2Mass, FYSO2Mass     float64
	BYNOxMass, FYNOxMass     float64
	BYCO2Mass, FYCO2Mass     float64

	GrowthRate, AdjustedGrowthRate float64
}

type rollupKey struct {
	place, fuelBin string
	hour           int
}

type rollupValues struct {
	byGLoad, fyGLoad         float64
	byHeatInput, fyHeatInput float64
	bySO2Mass, fySO2Mass     float64
	byNOxMass, fyNOxMass     float64
	byCO2Mass, fyCO2Mass     float64
	growth, adjGrowth        float64
}

// maxRate keeps the larger of the current and incoming rates, treating
// NaN as missing.
func maxRate(cur, in float64) float64 {
	if math.IsNaN(in) {
		return cur
	}
	if math.IsNaN(cur) || in > cur {
		return in
	}
	return cur
}

// rollupRows accumulates the two sides of each hourly row under their
// own hierarchy hours. The place function picks the geographic key for
// the base-year or future-year side of a row; rows without an identity
// on a side, or without a hierarchy position there, contribute nothing
// to that side.
func rollupRows(rows []*HourlyActivityRecord, place func(r *HourlyActivityRecord, base bool) string) map[rollupKey]*rollupValues {
	groups := make(map[rollupKey]*rollupValues)
	get := func(k rollupKey) *rollupValues {
		v, ok := groups[k]
		if !ok {
			v = &rollupValues{growth: math.NaN(), adjGrowth: math.NaN()}
			groups[k] = v
		}
		return v
	}
	for _, r := range rows {
		if r.BaseIdentity != (UnitIdentity{}) && r.BYHierarchyHour > 0 {
			v := get(rollupKey{place: place(r, true), fuelBin: r.BaseIdentity.FuelBin, hour: r.BYHierarchyHour})
			v.byGLoad += r.BYGLoad
			v.byHeatInput += r.BYHeatInput
			v.bySO2Mass += r.BYSO2Mass
			v.byNOxMass += r.BYNOxMass
			v.byCO2Mass += r.BYCO2Mass
		}
		if r.FutureIdentity != (UnitIdentity{}) && r.FYHierarchyHour > 0 {
			v := get(rollupKey{place: place(r, false), fuelBin: r.FutureIdentity.FuelBin, hour: r.FYHierarchyHour})
			v.fyGLoad += r.FYGLoad
			v.fyHeatInput += r.FYHeatInput
			v.fySO2Mass += r.FYSO2Mass
			v.fyNOxMass += r.FYNOxMass
			v.fyCO2Mass += r.FYCO2Mass
			v.growth = maxRate(v.growth, r.GrowthRate)
			v.adjGrowth = maxRate(v.adjGrowth, r.AdjustedGrowthRate)
		}
	}
	return groups
}

func sortedRollupKeys(groups map[rollupKey]*rollupValues) []rollupKey {
	keys := make([]rollupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].place != keys[j].place {
			return keys[i].place < keys[j].place
		}
		if keys[i].fuelBin != keys[j].fuelBin {
			return keys[i].fuelBin < keys[j].fuelBin
		}
		return keys[i].hour < keys[j].hour
	})
	return keys
}

// RollupRegional sums the hourly activity to one row per region, fuel
// bin, and hierarchy hour, ordered by those keys.
func RollupRegional(rows []*HourlyActivityRecord) []*RegionalHourlyRecord {
	groups := rollupRows(rows, func(r *HourlyActivityRecord, base bool) string {
		if base {
			return r.BaseIdentity.Region
		}
		return r.FutureIdentity.Region
	})
	out := make([]*RegionalHourlyRecord, 0, len(groups))
	for _, k := range sortedRollupKeys(groups) {
		v := groups[k]
		out = append(out, &RegionalHourlyRecord{
			Region:             k.place,
			FuelBin:            k.fuelBin,
			HierarchyHour:      k.hour,
			BYGLoad:            v.byGLoad,
			FYGLoad:            v.fyGLoad,
			BYHeatInput:        v.byHeatInput,
			FYHeatInput:        v.fyHeatInput,
			BYSO2Mass:          v.bySO2Mass,
			FYSO2Mass:          v.fySO2Mass,
			BYNOxMass:          v.byNOxMass,
			FYNOxMass:          v.fyNOxMass,
			BYCO2Mass:          v.byCO2Mass,
			FYCO2Mass:          v.fyCO2Mass,
			GrowthRate:         v.growth,
			AdjustedGrowthRate: v.adjGrowth,
		})
	}
	return out
}

// RollupState sums the hourly activity to one row per state, fuel bin,
// and hierarchy hour, ordered by those keys. Units keep their own
// region's hierarchy positions, so a state spanning several regions
// mixes their dispatch orders at the same hour number.
func RollupState(rows []*HourlyActivityRecord) []*StateHourlyRecord {
	groups := rollupRows(rows, func(r *HourlyActivityRecord, base bool) string {
		return r.State
	})
	out := make([]*StateHourlyRecord, 0, len(groups))
	for _, k := range sortedRollupKeys(groups) {
		v := groups[k]
		out = append(out, &StateHourlyRecord{
			State:              k.place,
			FuelBin:            k.fuelBin,
			HierarchyHour:      k.hour,
			BYGLoad:            v.byGLoad,
			FYGLoad:            v.fyGLoad,
			BYHeatInput:        v.byHeatInput,
			FYHeatInput:        v.fyHeatInput,
			BYSO2Mass:          v.bySO2Mass,
			FYSO2Mass:          v.fySO2Mass,
			BYNOxMass:          v.byNOxMass,
			FYNOxMass:          v.fyNOxMass,
			BYCO2Mass:          v.byCO2Mass,
			FYCO2Mass:          v.fyCO2Mass,
			GrowthRate:         v.growth,
			AdjustedGrowthRate: v.adjGrowth,
		})
	}
	return out
}
