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
	"math"
	"sort"
	"strings"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Default tolerances for the conservation comparisons.
const (
	integrityAbsTol = 1.e-6
	integrityRelTol = 1.e-9
)

// IntegrityMismatch describes one failed conservation comparison: an
// aggregate total that does not match the hourly rows it was reduced
// from.
type IntegrityMismatch struct {
	// Level is the aggregate that disagrees: "daily", "annual",
	// "regional", or "state".
	Level string

	// Measure names the quantity compared, e.g. "fy_heat_input".
	Measure string

	// Scope is the state:fuel_bin slice compared, or "all" for the
	// whole dataset.
	Scope string

	Hourly, Aggregate float64
}

func (m IntegrityMismatch) String() string {
	return fmt.Sprintf("%s %s (%s): hourly total %g but aggregate total %g",
		m.Level, m.Measure, m.Scope, m.Hourly, m.Aggregate)
}

// RegressionStats holds a least-squares fit of future-year against
// base-year values.
type RegressionStats struct {
	Slope, Intercept, RSquared float64
	N                          int
}

// IntegrityResult holds the outcome of the conservation checks. The
// checks are diagnostic: a mismatch is reported, never fatal.
type IntegrityResult struct {
	Mismatches []IntegrityMismatch

	// HeatInputFit relates future-year to base-year annual heat input
	// across units. Its slope is a rough realized growth factor for
	// the whole dataset.
	HeatInputFit RegressionStats
}

// OK reports whether every comparison was within tolerance.
func (r *IntegrityResult) OK() bool { return len(r.Mismatches) == 0 }

// IntegrityChecker verifies that each aggregation level conserves the
// totals of the hourly rows it was built from, for every measure, both
// per state and fuel bin slice and over the whole dataset.
type IntegrityChecker struct {
	// AbsTol and RelTol are the comparison tolerances; zero values
	// select the defaults.
	AbsTol, RelTol float64

	// Log receives a warning for each mismatch. The default is the
	// logrus standard logger.
	Log logrus.FieldLogger
}

func (c *IntegrityChecker) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func (c *IntegrityChecker) absTol() float64 {
	if c.AbsTol == 0 {
		return integrityAbsTol
	}
	return c.AbsTol
}

func (c *IntegrityChecker) relTol() float64 {
	if c.RelTol == 0 {
		return integrityRelTol
	}
	return c.RelTol
}

// measureTotals accumulates the ten conserved measures of one scope.
type measureTotals struct {
	byGLoad, fyGLoad         float64
	byHeatInput, fyHeatInput float64
	bySO2Mass, fySO2Mass     float64
	byNOxMass, fyNOxMass     float64
	byCO2Mass, fyCO2Mass     float64
}

var integrityMeasures = []struct {
	name  string
	value func(t *measureTotals) float64
}{
	{"by_gload", func(t *measureTotals) float64 { return t.byGLoad }},
	{"fy_gload", func(t *measureTotals) float64 { return t.fyGLoad }},
	{"by_heat_input", func(t *measureTotals) float64 { return t.byHeatInput }},
	{"fy_heat_input", func(t *measureTotals) float64 { return t.fyHeatInput }},
	{"by_so2_mass", func(t *measureTotals) float64 { return t.bySO2Mass }},
	{"fy_so2_mass", func(t *measureTotals) float64 { return t.fySO2Mass }},
	{"by_nox_mass", func(t *measureTotals) float64 { return t.byNOxMass }},
	{"fy_nox_mass", func(t *measureTotals) float64 { return t.fyNOxMass }},
	{"by_co2_mass", func(t *measureTotals) float64 { return t.byCO2Mass }},
	{"fy_co2_mass", func(t *measureTotals) float64 { return t.fyCO2Mass }},
}

// activityPartition returns the state:fuel_bin slice an activity row
// belongs to, preferring the base identity's fuel bin.
func activityPartition(base, future UnitIdentity, state string) string {
	bin := base.FuelBin
	if base == (UnitIdentity{}) {
		bin = future.FuelBin
	}
	return Partition{State: state, FuelBin: bin}.String()
}

// Check compares every aggregation level against the hourly rows. The
// regional and state comparisons restrict the hourly totals to the
// row sides that carry an identity and a hierarchy position, matching
// the rollup's own inclusion rule, so that a mismatch indicates an
// aggregation fault rather than a known hierarchy gap.
func (c *IntegrityChecker) Check(rows []*HourlyActivityRecord, daily []*DailyActivityRecord,
	annual []*AnnualUnitRecord, regional []*RegionalHourlyRecord, state []*StateHourlyRecord) *IntegrityResult {

	res := new(IntegrityResult)

	hourlyAll := new(measureTotals)
	hourlyByPart := make(map[string]*measureTotals)
	hourlyDispatch := new(measureTotals)
	for _, r := range rows {
		addHourly(hourlyAll, r)
		p := activityPartition(r.BaseIdentity, r.FutureIdentity, r.State)
		t, ok := hourlyByPart[p]
		if !ok {
			t = new(measureTotals)
			hourlyByPart[p] = t
		}
		addHourly(t, r)
		if r.BaseIdentity != (UnitIdentity{}) && r.BYHierarchyHour > 0 {
			hourlyDispatch.byGLoad += r.BYGLoad
			hourlyDispatch.byHeatInput += r.BYHeatInput
			hourlyDispatch.bySO2Mass += r.BYSO2Mass
			hourlyDispatch.byNOxMass += r.BYNOxMass
			hourlyDispatch.byCO2Mass += r.BYCO2Mass
		}
		if r.FutureIdentity != (UnitIdentity{}) && r.FYHierarchyHour > 0 {
			hourlyDispatch.fyGLoad += r.FYGLoad
			hourlyDispatch.fyHeatInput += r.FYHeatInput
			hourlyDispatch.fySO2Mass += r.FYSO2Mass
			hourlyDispatch.fyNOxMass += r.FYNOxMass
			hourlyDispatch.fyCO2Mass += r.FYCO2Mass
		}
	}

	dailyAll := new(measureTotals)
	dailyByPart := make(map[string]*measureTotals)
	for _, d := range daily {
		t := partTotals(dailyByPart, activityPartition(d.BaseIdentity, d.FutureIdentity, d.State))
		for _, dst := range []*measureTotals{dailyAll, t} {
			dst.byGLoad += d.BYGLoad
			dst.fyGLoad += d.FYGLoad
			dst.byHeatInput += d.BYHeatInput
			dst.fyHeatInput += d.FYHeatInput
			dst.bySO2Mass += d.BYSO2Mass
			dst.fySO2Mass += d.FYSO2Mass
			dst.byNOxMass += d.BYNOxMass
			dst.fyNOxMass += d.FYNOxMass
			dst.byCO2Mass += d.BYCO2Mass
			dst.fyCO2Mass += d.FYCO2Mass
		}
	}

	annualAll := new(measureTotals)
	annualByPart := make(map[string]*measureTotals)
	for _, a := range annual {
		t := partTotals(annualByPart, activityPartition(a.BaseIdentity, a.FutureIdentity, a.State))
		for _, dst := range []*measureTotals{annualAll, t} {
			dst.byGLoad += a.BYGLoad
			dst.fyGLoad += a.FYGLoad
			dst.byHeatInput += a.BYHeatInput
			dst.fyHeatInput += a.FYHeatInput
			dst.bySO2Mass += a.BYSO2Mass
			dst.fySO2Mass += a.FYSO2Mass
			dst.byNOxMass += a.BYNOxMass
			dst.fyNOxMass += a.FYNOxMass
			dst.byCO2Mass += a.BYCO2Mass
			dst.fyCO2Mass += a.FYCO2Mass
		}
	}

	regionalAll := new(measureTotals)
	for _, r := range regional {
		regionalAll.byGLoad += r.BYGLoad
		regionalAll.fyGLoad += r.FYGLoad
		regionalAll.byHeatInput += r.BYHeatInput
		regionalAll.fyHeatInput += r.FYHeatInput
		regionalAll.bySO2Mass += r.BYSO2Mass
		regionalAll.fySO2Mass += r.FYSO2Mass
		regionalAll.byNOxMass += r.BYNOxMass
		regionalAll.fyNOxMass += r.FYNOxMass
		regionalAll.byCO2Mass += r.BYCO2Mass
		regionalAll.fyCO2Mass += r.FYCO2Mass
	}
	stateAll := new(measureTotals)
	for _, s := range state {
		stateAll.byGLoad += s.BYGLoad
		stateAll.fyGLoad += s.FYGLoad
		stateAll.byHeatInput += s.BYHeatInput
		stateAll.fyHeatInput += s.FYHeatInput
		stateAll.bySO2Mass += s.BYSO2Mass
		stateAll.fySO2Mass += s.FYSO2Mass
		stateAll.byNOxMass += s.BYNOxMass
		stateAll.fyNOxMass += s.FYNOxMass
		stateAll.byCO2Mass += s.BYCO2Mass
		stateAll.fyCO2Mass += s.FYCO2Mass
	}

	// A nil aggregate means its stage did not run; there is nothing to
	// compare.
	if daily != nil {
		c.compare(res, "daily", "all", hourlyAll, dailyAll)
	}
	if annual != nil {
		c.compare(res, "annual", "all", hourlyAll, annualAll)
	}
	if regional != nil {
		c.compare(res, "regional", "all", hourlyDispatch, regionalAll)
	}
	if state != nil {
		c.compare(res, "state", "all", hourlyDispatch, stateAll)
	}

	for _, p := range sortedPartitions(hourlyByPart, dailyByPart, annualByPart) {
		h := hourlyByPart[p]
		if h == nil {
			h = new(measureTotals)
		}
		if daily != nil {
			d := dailyByPart[p]
			if d == nil {
				d = new(measureTotals)
			}
			c.compare(res, "daily", p, h, d)
		}
		if annual != nil {
			a := annualByPart[p]
			if a == nil {
				a = new(measureTotals)
			}
			c.compare(res, "annual", p, h, a)
		}
	}

	res.HeatInputFit = heatInputFit(annual)

	log := c.logger()
	if len(res.Mismatches) > 0 {
		log.Warnf("egupro: %d conservation checks failed", len(res.Mismatches))
	}
	log.WithFields(logrus.Fields{
		"mismatches": len(res.Mismatches),
		"fit_slope":  res.HeatInputFit.Slope,
		"fit_r2":     res.HeatInputFit.RSquared,
	}).Info("integrity check finished")
	return res
}

func addHourly(t *measureTotals, r *HourlyActivityRecord) {
	t.byGLoad += r.BYGLoad
	t.fyGLoad += r.FYGLoad
	t.byHeatInput += r.BYHeatInput
	t.fyHeatInput += r.FYHeatInput
	t.bySO2Mass += r.BYSO2Mass
	t.fySO2Mass += r.FYSO2Mass
	t.byNOxMass += r.BYNOxMass
	t.fyNOxMass += r.FYNOxMass
	t.byCO2Mass += r.BYCO2Mass
	t.fyCO2Mass += r.FYCO2Mass
}

func partTotals(m map[string]*measureTotals, p string) *measureTotals {
	t, ok := m[p]
	if !ok {
		t = new(measureTotals)
		m[p] = t
	}
	return t
}

func sortedPartitions(ms ...map[string]*measureTotals) []string {
	seen := make(map[string]bool)
	for _, m := range ms {
		for p := range m {
			seen[p] = true
		}
	}
	parts := make([]string, 0, len(seen))
	for p := range seen {
		parts = append(parts, p)
	}
	sort.Strings(parts)
	return parts
}

func (c *IntegrityChecker) compare(res *IntegrityResult, level, scope string, hourly, agg *measureTotals) {
	for _, m := range integrityMeasures {
		h, a := m.value(hourly), m.value(agg)
		if floats.EqualWithinAbsOrRel(h, a, c.absTol(), c.relTol()) {
			continue
		}
		mm := IntegrityMismatch{Level: level, Measure: m.name, Scope: scope, Hourly: h, Aggregate: a}
		res.Mismatches = append(res.Mismatches, mm)
		c.logger().Warnf("egupro: conservation check failed: %s", mm)
	}
}

// Tolerances for the realized-vs-specified growth comparison, looser
// than the conservation tolerances because dispatch rounds the
// specified factors.
const (
	growthAbsTol = 1.e-3
	growthRelTol = 0.01
)

// GrowthDeviation describes a region and fuel bin slice whose realized
// growth differs from its specified factor.
type GrowthDeviation struct {
	Slice               string
	Specified, Realized float64
}

func (d GrowthDeviation) String() string {
	return fmt.Sprintf("%s: specified growth %g but realized %g", d.Slice, d.Specified, d.Realized)
}

// CheckGrowth compares the realized future-to-base heat input ratio of
// each region and fuel bin slice against the named factor in the
// growth matrix. Slices with no base-year heat input, or absent from
// the matrix, are skipped. Like the conservation checks, deviations
// are reported but never fatal.
func (c *IntegrityChecker) CheckGrowth(rows []*HourlyActivityRecord, growth *GrowthMatrix, factor string) []GrowthDeviation {
	type split struct{ by, fy float64 }
	slices := make(map[string]*split)
	for _, r := range rows {
		id := r.FutureIdentity
		if id == (UnitIdentity{}) {
			id = r.BaseIdentity
		}
		key := id.Region + ":" + id.FuelBin
		s, ok := slices[key]
		if !ok {
			s = new(split)
			slices[key] = s
		}
		s.by += r.BYHeatInput
		s.fy += r.FYHeatInput
	}

	keys := make([]string, 0, len(slices))
	for k := range slices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []GrowthDeviation
	for _, key := range keys {
		s := slices[key]
		if s.by == 0 {
			continue
		}
		sep := strings.Index(key, ":")
		specified, ok := growth.Factor(key[:sep], key[sep+1:], factor)
		if !ok || math.IsNaN(specified) {
			continue
		}
		realized := s.fy / s.by
		if floats.EqualWithinAbsOrRel(specified, realized, growthAbsTol, growthRelTol) {
			continue
		}
		d := GrowthDeviation{Slice: key, Specified: specified, Realized: realized}
		out = append(out, d)
		c.logger().Warnf("egupro: growth check: %s", d)
	}
	return out
}

// heatInputFit regresses future-year annual heat input on base-year
// annual heat input across the units that operated in the base year.
func heatInputFit(annual []*AnnualUnitRecord) RegressionStats {
	var x, y []float64
	for _, a := range annual {
		if a.BYHeatInput > 0 {
			x = append(x, a.BYHeatInput)
			y = append(y, a.FYHeatInput)
		}
	}
	fit := RegressionStats{N: len(x)}
	if len(x) < 2 {
		fit.Slope = math.NaN()
		fit.Intercept = math.NaN()
		fit.RSquared = math.NaN()
		return fit
	}
	fit.Slope, fit.Intercept, fit.RSquared, _, _, _ = stats.LinearRegression(x, y)
	return fit
}
