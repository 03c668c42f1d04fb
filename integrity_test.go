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
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIntegrityCheck(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Coal", "1001", "1", ReportingFull, "1990-01-01", "")
	u.MaxHourlyHeatInput = 200
	hours := seqHours(48)
	proj := map[string][]*HourlyProjectedRecord{
		u.Key(): projRecords(u.UnitIdentity, hours, hours, 60, 120, 150, 90, 90),
	}
	idx.AddHierarchy(proj)
	r := &Reconciler{
		Index: idx,
		Units: []*UnitRecord{u},
		Base: map[string][]*HourlyBaseRecord{
			u.Key(): baseRecords(t, idx, u.UnitIdentity, hours, 50, 100, 200, 100, 80),
		},
		Projected: proj,
		NProcs:    1,
		Log:       quietLogger(),
	}
	rows, _, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	daily := AggregateDaily(rows, idx)
	annual := (&AnnualAggregator{Index: idx, Units: []*UnitRecord{u}}).Aggregate(rows, daily)
	regional := RollupRegional(rows)
	state := RollupState(rows)

	c := &IntegrityChecker{Log: quietLogger()}
	res := c.Check(rows, daily, annual, regional, state)
	if !res.OK() {
		t.Errorf("want no mismatches but have %v", res.Mismatches)
	}
	// A single base-year-active unit is not enough points to fit.
	if res.HeatInputFit.N != 1 || !math.IsNaN(res.HeatInputFit.Slope) {
		t.Errorf("fit: have %+v", res.HeatInputFit)
	}

	// Corrupting one daily record fails the daily comparison for the
	// whole dataset and for the record's slice, and nothing else.
	daily[0].FYHeatInput += 10
	res = c.Check(rows, daily, annual, regional, state)
	if len(res.Mismatches) != 2 {
		t.Fatalf("want 2 mismatches but have %d: %v", len(res.Mismatches), res.Mismatches)
	}
	m := res.Mismatches[0]
	if m.Level != "daily" || m.Measure != "fy_heat_input" || m.Scope != "all" {
		t.Errorf("first mismatch: have %+v", m)
	}
	if different(m.Hourly, 5760, reconcileTolerance) || different(m.Aggregate, 5770, reconcileTolerance) {
		t.Errorf("first mismatch totals: have %g and %g", m.Hourly, m.Aggregate)
	}
	if m2 := res.Mismatches[1]; m2.Scope != "GA:Coal" {
		t.Errorf("second mismatch scope: want GA:Coal but have %s", m2.Scope)
	}
	if !strings.Contains(m.String(), "daily fy_heat_input (all)") {
		t.Errorf("mismatch description: have %q", m.String())
	}
}

func TestIntegrityCheckSkipsNilAggregates(t *testing.T) {
	rows := rollupTestRows()
	c := &IntegrityChecker{Log: quietLogger()}
	// Stages that did not run leave nothing to compare.
	res := c.Check(rows, nil, nil, nil, nil)
	if !res.OK() {
		t.Errorf("want no mismatches but have %v", res.Mismatches)
	}
	if res.HeatInputFit.N != 0 || !math.IsNaN(res.HeatInputFit.Slope) {
		t.Errorf("fit: have %+v", res.HeatInputFit)
	}
}

func TestHeatInputFit(t *testing.T) {
	annual := []*AnnualUnitRecord{
		{BYHeatInput: 10, FYHeatInput: 30},
		{BYHeatInput: 20, FYHeatInput: 50},
		{BYHeatInput: 30, FYHeatInput: 70},
		// Units with no base-year operation stay out of the fit.
		{BYHeatInput: 0, FYHeatInput: 99},
	}
	fit := heatInputFit(annual)
	if fit.N != 3 {
		t.Errorf("want 3 points but have %d", fit.N)
	}
	if different(fit.Slope, 2, reconcileTolerance) ||
		different(fit.Intercept, 10, reconcileTolerance) ||
		different(fit.RSquared, 1, reconcileTolerance) {
		t.Errorf("want slope 2, intercept 10, r² 1 but have %+v", fit)
	}
}

func TestGrowthMatrixFactor(t *testing.T) {
	g := &GrowthMatrix{
		Slices:  []string{"SE:Coal", "SE:Gas"},
		Factors: []string{"peak", "annual"},
		M:       mat.NewDense(2, 2, []float64{1.5, 1.2, math.NaN(), 1.1}),
		rows:    map[string]int{"SE:Coal": 0, "SE:Gas": 1},
		cols:    map[string]int{"peak": 0, "annual": 1},
	}
	if v, ok := g.Factor("SE", "Coal", "annual"); !ok || v != 1.2 {
		t.Errorf("SE coal annual: have %g, %v", v, ok)
	}
	if v, ok := g.Factor("SE", "Gas", "peak"); !ok || !math.IsNaN(v) {
		t.Errorf("SE gas peak: have %g, %v", v, ok)
	}
	if _, ok := g.Factor("SE", "Coal", "monthly"); ok {
		t.Error("an unknown factor name should not be found")
	}
	if _, ok := g.Factor("XX", "Coal", "annual"); ok {
		t.Error("an unknown slice should not be found")
	}
}

func TestCheckGrowth(t *testing.T) {
	idA := UnitIdentity{Region: "SE", FuelBin: "Coal", FacilityID: "1001", UnitID: "1"}
	idB := UnitIdentity{Region: "SE", FuelBin: "Gas", FacilityID: "1002", UnitID: "1"}
	idC := UnitIdentity{Region: "MW", FuelBin: "Gas", FacilityID: "2001", UnitID: "1"}
	rows := []*HourlyActivityRecord{
		// SE coal realizes exactly its specified factor.
		{BaseIdentity: idA, FutureIdentity: idA, BYHeatInput: 100, FYHeatInput: 70},
		{BaseIdentity: idA, FutureIdentity: idA, BYHeatInput: 100, FYHeatInput: 170},
		// SE gas realizes 1.5 against a specified 1.1.
		{BaseIdentity: idB, FutureIdentity: idB, BYHeatInput: 40, FYHeatInput: 90},
		{BaseIdentity: idB, FutureIdentity: idB, BYHeatInput: 60, FYHeatInput: 60},
		// No base-year heat input: nothing to compare.
		{FutureIdentity: idC, FYHeatInput: 80},
	}
	g := &GrowthMatrix{
		Slices:  []string{"SE:Coal", "SE:Gas"},
		Factors: []string{"annual"},
		M:       mat.NewDense(2, 1, []float64{1.2, 1.1}),
		rows:    map[string]int{"SE:Coal": 0, "SE:Gas": 1},
		cols:    map[string]int{"annual": 0},
	}
	c := &IntegrityChecker{Log: quietLogger()}
	devs := c.CheckGrowth(rows, g, "annual")
	if len(devs) != 1 {
		t.Fatalf("want 1 deviation but have %d: %v", len(devs), devs)
	}
	d := devs[0]
	if d.Slice != "SE:Gas" || d.Specified != 1.1 || different(d.Realized, 1.5, reconcileTolerance) {
		t.Errorf("deviation: have %+v", d)
	}
	if !strings.Contains(d.String(), "specified growth 1.1") {
		t.Errorf("deviation description: have %q", d.String())
	}
}
