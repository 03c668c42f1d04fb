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
	"io/ioutil"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/unit/badunit"
	"github.com/sirupsen/logrus"
)

const reconcileTolerance = 1.e-10

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

// seqHours returns the calendar hours 1 through n.
func seqHours(n int) []int {
	hours := make([]int, n)
	for i := range hours {
		hours[i] = i + 1
	}
	return hours
}

// baseRecords creates one base-year record per listed calendar hour,
// all sharing the given hourly values.
func baseRecords(t *testing.T, idx *CalendarIndex, id UnitIdentity, hours []int, gload, heat, so2, nox, co2 float64) []*HourlyBaseRecord {
	t.Helper()
	recs := make([]*HourlyBaseRecord, 0, len(hours))
	for _, h := range hours {
		date, opHour, err := idx.HourToDate(idx.Years().Base, h)
		if err != nil {
			t.Fatal(err)
		}
		recs = append(recs, &HourlyBaseRecord{
			UnitIdentity: id,
			OpDate:       date,
			OpHour:       opHour,
			GLoad:        gload,
			HeatInput:    heat,
			SO2Mass:      so2,
			NOxMass:      nox,
			CO2Mass:      co2,
		})
	}
	return recs
}

// projRecords creates one future-year record per listed calendar hour.
// hier pairs with hours.
func projRecords(id UnitIdentity, hours, hier []int, gload, heat, so2, nox, co2 float64) []*HourlyProjectedRecord {
	recs := make([]*HourlyProjectedRecord, 0, len(hours))
	for i, h := range hours {
		recs = append(recs, &HourlyProjectedRecord{
			UnitIdentity:  id,
			CalendarHour:  h,
			HierarchyHour: hier[i],
			GLoad:         gload,
			HeatInput:     heat,
			SO2Mass:       so2,
			NOxMass:       nox,
			CO2Mass:       co2,
		})
	}
	return recs
}

func TestReconcileFullYear(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Coal", "1001", "1", ReportingFull, "1990-01-01", "")
	hours := seqHours(nonLeapYearHours)
	hier := make([]int, len(hours))
	for i := range hier {
		// Dispatch order is the reverse of calendar order, so a mixed-up
		// axis shows immediately.
		hier[i] = len(hours) - i
	}
	proj := map[string][]*HourlyProjectedRecord{
		u.Key(): projRecords(u.UnitIdentity, hours, hier, 60, 120, 150, 90, 90),
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
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != nonLeapYearHours {
		t.Fatalf("want %d rows but have %d", nonLeapYearHours, len(rows))
	}
	for i, row := range rows {
		if row.CalendarHour != i+1 {
			t.Fatalf("row %d: want calendar hour %d but have %d", i, i+1, row.CalendarHour)
		}
		if row.Category != FullPartial {
			t.Fatalf("row %d: want category %s but have %s", i, FullPartial, row.Category)
		}
	}
	row := rows[0]
	if row.BaseIdentity != u.UnitIdentity || row.FutureIdentity != u.UnitIdentity {
		t.Errorf("identities: have %v and %v", row.BaseIdentity, row.FutureIdentity)
	}
	if row.BYHierarchyHour != nonLeapYearHours || row.FYHierarchyHour != nonLeapYearHours {
		t.Errorf("hierarchy hours: want %d but have %d and %d",
			nonLeapYearHours, row.BYHierarchyHour, row.FYHierarchyHour)
	}
	// Pound masses convert to tons; CO2 is reported in tons already.
	masses := []struct {
		name       string
		have, want float64
	}{
		{"by so2", row.BYSO2Mass, 0.1},
		{"fy so2", row.FYSO2Mass, 0.075},
		{"by nox", row.BYNOxMass, 0.05},
		{"fy nox", row.FYNOxMass, 0.045},
		{"by co2", row.BYCO2Mass, 80},
		{"fy co2", row.FYCO2Mass, 90},
	}
	for _, m := range masses {
		if different(m.have, m.want, reconcileTolerance) {
			t.Errorf("%s: want %g but have %g", m.name, m.want, m.have)
		}
	}
	if !math.IsNaN(row.GrowthRate) || !math.IsNaN(row.AdjustedGrowthRate) {
		t.Errorf("growth: want null fields but have %g and %g", row.GrowthRate, row.AdjustedGrowthRate)
	}

	if report.RowCount[FullPartial] != nonLeapYearHours {
		t.Errorf("row count: want %d but have %d", nonLeapYearHours, report.RowCount[FullPartial])
	}
	totals := []struct {
		name       string
		have, want float64
	}{
		{"by so2", report.BYTotals[FullPartial][SO2].Value(), badunit.Ton(876).Value()},
		{"fy so2", report.FYTotals[FullPartial][SO2].Value(), badunit.Ton(657).Value()},
		{"by nox", report.BYTotals[FullPartial][NOx].Value(), badunit.Ton(438).Value()},
		{"fy nox", report.FYTotals[FullPartial][NOx].Value(), badunit.Ton(394.2).Value()},
		{"by co2", report.BYTotals[FullPartial][CO2].Value(), badunit.Ton(700800).Value()},
		{"fy co2", report.FYTotals[FullPartial][CO2].Value(), badunit.Ton(788400).Value()},
		{"by heat input", report.BYHeatInput[FullPartial], 876000},
		{"fy heat input", report.FYHeatInput[FullPartial], 1051200},
	}
	for _, tot := range totals {
		if different(tot.have, tot.want, reconcileTolerance) {
			t.Errorf("%s total: want %g but have %g", tot.name, tot.want, tot.have)
		}
	}
	if report.MissingParms["SE:Coal"] != nonLeapYearHours {
		t.Errorf("missing parms: want %d but have %d",
			nonLeapYearHours, report.MissingParms["SE:Coal"])
	}

	daily := AggregateDaily(rows, idx)
	annual := (&AnnualAggregator{Index: idx, Units: []*UnitRecord{u}}).Aggregate(rows, daily)
	if len(annual) != 1 {
		t.Fatalf("want 1 annual record but have %d", len(annual))
	}
	annTotals := []struct {
		name       string
		have, want float64
	}{
		{"by gload", annual[0].BYGLoad, 438000},
		{"fy gload", annual[0].FYGLoad, 525600},
		{"by heat input", annual[0].BYHeatInput, 876000},
		{"fy heat input", annual[0].FYHeatInput, 1051200},
	}
	for _, tot := range annTotals {
		if different(tot.have, tot.want, reconcileTolerance) {
			t.Errorf("annual %s: want %g but have %g", tot.name, tot.want, tot.have)
		}
	}
}

func TestReconcileNewUnit(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Gas", "2001", "1", ReportingNew, "2023-01-01", "")
	hours := seqHours(nonLeapYearHours)
	proj := map[string][]*HourlyProjectedRecord{
		u.Key(): projRecords(u.UnitIdentity, hours, hours, 40, 80, 10, 20, 45),
	}
	idx.AddHierarchy(proj)
	r := &Reconciler{
		Index:     idx,
		Units:     []*UnitRecord{u},
		Projected: proj,
		NProcs:    1,
		Log:       quietLogger(),
	}
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != nonLeapYearHours {
		t.Fatalf("want %d rows but have %d", nonLeapYearHours, len(rows))
	}
	row := rows[0]
	if row.Category != NewUnit {
		t.Errorf("want category %s but have %s", NewUnit, row.Category)
	}
	// A projection-created unit has no base-year identity or activity.
	if row.BaseIdentity != (UnitIdentity{}) {
		t.Errorf("base identity: have %v", row.BaseIdentity)
	}
	if row.FutureIdentity != u.UnitIdentity {
		t.Errorf("future identity: have %v", row.FutureIdentity)
	}
	if row.BYGLoad != 0 || row.BYHeatInput != 0 || row.BYSO2Mass != 0 {
		t.Errorf("base-year activity: have %+v", row)
	}
	if row.BYHierarchyHour != 0 || row.FYHierarchyHour != 1 {
		t.Errorf("hierarchy hours: have %d and %d", row.BYHierarchyHour, row.FYHierarchyHour)
	}
	if report.RowCount[NewUnit] != nonLeapYearHours {
		t.Errorf("row count: want %d but have %d", nonLeapYearHours, report.RowCount[NewUnit])
	}
	if different(report.FYHeatInput[NewUnit], 700800, reconcileTolerance) {
		t.Errorf("fy heat input total: want 700800 but have %g", report.FYHeatInput[NewUnit])
	}
}

func TestReconcileRetired(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Coal", "1002", "1", ReportingFull, "1975-01-01", "2023-01-01")
	hours := seqHours(48)
	r := &Reconciler{
		Index: idx,
		Units: []*UnitRecord{u},
		Base: map[string][]*HourlyBaseRecord{
			u.Key(): baseRecords(t, idx, u.UnitIdentity, hours, 30, 60, 100, 50, 40),
		},
		NProcs: 1,
		Log:    quietLogger(),
	}
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(hours) {
		t.Fatalf("want %d rows but have %d", len(hours), len(rows))
	}
	row := rows[0]
	if row.Category != Retired {
		t.Errorf("want category %s but have %s", Retired, row.Category)
	}
	// The same attribute record covers both years, so the future
	// identity stays populated even though no future activity exists.
	if row.FutureIdentity != u.UnitIdentity {
		t.Errorf("future identity: have %v", row.FutureIdentity)
	}
	if row.FYGLoad != 0 || row.FYHeatInput != 0 || row.FYSO2Mass != 0 || row.HourlyHILimit {
		t.Errorf("future-year activity: have %+v", row)
	}
	if row.BYHierarchyHour != 0 || row.FYHierarchyHour != 0 {
		t.Errorf("hierarchy hours: have %d and %d", row.BYHierarchyHour, row.FYHierarchyHour)
	}
	if different(row.BYSO2Mass, 0.05, reconcileTolerance) {
		t.Errorf("by so2: want 0.05 but have %g", row.BYSO2Mass)
	}
	if report.RowCount[Retired] != len(hours) {
		t.Errorf("row count: want %d but have %d", len(hours), report.RowCount[Retired])
	}
}

func TestReconcileSwitcher(t *testing.T) {
	idx := testIndex(t)
	coal := testUnit("SE", "Coal", "1001", "2", ReportingFull, "1985-06-01", "2020-01-01")
	gas := testUnit("SE", "Gas", "1001", "2", ReportingNew, "2020-01-01", "")
	proj := map[string][]*HourlyProjectedRecord{
		// The simulation dispatched the first two hours under the old
		// bin and hours two and three under the new one; the new bin
		// wins hour two.
		coal.Key(): projRecords(coal.UnitIdentity, []int{1, 2}, []int{11, 12}, 50, 100, 130, 70, 80),
		gas.Key():  projRecords(gas.UnitIdentity, []int{2, 3}, []int{77, 78}, 55, 110, 120, 60, 85),
	}
	idx.AddHierarchy(proj)
	r := &Reconciler{
		Index: idx,
		Units: []*UnitRecord{coal, gas},
		Base: map[string][]*HourlyBaseRecord{
			coal.Key(): baseRecords(t, idx, coal.UnitIdentity, seqHours(4), 45, 90, 100, 50, 70),
		},
		Projected: proj,
		NProcs:    1,
		Log:       quietLogger(),
	}
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	// Hour 4 has no future-year record and drops out of the join.
	if len(rows) != 3 {
		t.Fatalf("want 3 rows but have %d", len(rows))
	}

	want := []struct {
		hour     int
		category Category
		futureID UnitIdentity
		byHier   int
		fyHier   int
	}{
		{1, FullPartial, coal.UnitIdentity, 11, 11},
		{2, Switch, gas.UnitIdentity, 12, 77},
		{3, Switch, gas.UnitIdentity, 0, 78},
	}
	for i, w := range want {
		row := rows[i]
		if row.CalendarHour != w.hour {
			t.Errorf("row %d: want hour %d but have %d", i, w.hour, row.CalendarHour)
		}
		if row.Category != w.category {
			t.Errorf("hour %d: want category %s but have %s", w.hour, w.category, row.Category)
		}
		if row.FutureIdentity != w.futureID {
			t.Errorf("hour %d: want future identity %v but have %v", w.hour, w.futureID, row.FutureIdentity)
		}
		if row.BaseIdentity != coal.UnitIdentity {
			t.Errorf("hour %d: want base identity %v but have %v", w.hour, coal.UnitIdentity, row.BaseIdentity)
		}
		if row.BYHierarchyHour != w.byHier || row.FYHierarchyHour != w.fyHier {
			t.Errorf("hour %d: want hierarchy hours %d and %d but have %d and %d",
				w.hour, w.byHier, w.fyHier, row.BYHierarchyHour, row.FYHierarchyHour)
		}
	}
	if different(rows[0].FYSO2Mass, 0.065, reconcileTolerance) {
		t.Errorf("hour 1 fy so2: want 0.065 but have %g", rows[0].FYSO2Mass)
	}
	if different(rows[1].FYSO2Mass, 0.06, reconcileTolerance) {
		t.Errorf("hour 2 fy so2: want 0.06 but have %g", rows[1].FYSO2Mass)
	}
	if report.RowCount[FullPartial] != 1 || report.RowCount[Switch] != 2 {
		t.Errorf("row counts: have %v", report.RowCount)
	}
}

func TestReconcileDeterminism(t *testing.T) {
	idx := testIndex(t)
	mk := func(state, bin, fac string) *UnitRecord {
		u := testUnit("SE", bin, fac, "1", ReportingFull, "1990-01-01", "")
		u.State = state
		return u
	}
	units := []*UnitRecord{
		mk("GA", "Coal", "1001"),
		mk("GA", "Gas", "1002"),
		mk("TX", "Coal", "1003"),
	}
	hours := seqHours(24)
	base := make(map[string][]*HourlyBaseRecord)
	proj := make(map[string][]*HourlyProjectedRecord)
	for i, u := range units {
		v := float64(i + 1)
		base[u.Key()] = baseRecords(t, idx, u.UnitIdentity, hours, 10*v, 20*v, 30*v, 40*v, 50*v)
		proj[u.Key()] = projRecords(u.UnitIdentity, hours, hours, 11*v, 21*v, 31*v, 41*v, 51*v)
	}
	idx.AddHierarchy(proj)
	parms := make(map[string]*GenerationParmsRecord)
	for _, bin := range []string{"Coal", "Gas"} {
		for _, h := range hours {
			date, opHour, err := idx.HourToDate(idx.Years().Future, h)
			if err != nil {
				t.Fatal(err)
			}
			p := &GenerationParmsRecord{
				Region:             "SE",
				FuelBin:            bin,
				OpDate:             date,
				OpHour:             opHour,
				GrowthRate:         1.2,
				AdjustedGrowthRate: 1.1,
			}
			parms[p.Key()] = p
		}
	}

	run := func(nprocs int) ([]*HourlyActivityRecord, *RunReport) {
		r := &Reconciler{
			Index:     idx,
			Units:     units,
			Base:      base,
			Projected: proj,
			Parms:     parms,
			NProcs:    nprocs,
			Log:       quietLogger(),
		}
		rows, report, err := r.Reconcile()
		if err != nil {
			t.Fatal(err)
		}
		return rows, report
	}
	rows1, report1 := run(1)
	rows4, report4 := run(4)

	if len(rows1) != 3*len(hours) {
		t.Fatalf("want %d rows but have %d", 3*len(hours), len(rows1))
	}
	if !reflect.DeepEqual(rows1, rows4) {
		t.Error("rows depend on the number of concurrent partitions")
	}
	if !reflect.DeepEqual(report1.RowCount, report4.RowCount) {
		t.Errorf("row counts differ: %v and %v", report1.RowCount, report4.RowCount)
	}
	// Partitions come back sorted by state and fuel bin.
	if rows1[0].State != "GA" || rows1[0].BaseIdentity.FuelBin != "Coal" {
		t.Errorf("first partition: have %s %s", rows1[0].State, rows1[0].BaseIdentity.FuelBin)
	}
	if rows1[24].State != "GA" || rows1[24].BaseIdentity.FuelBin != "Gas" {
		t.Errorf("second partition: have %s %s", rows1[24].State, rows1[24].BaseIdentity.FuelBin)
	}
	if rows1[48].State != "TX" || rows1[48].BaseIdentity.FuelBin != "Coal" {
		t.Errorf("third partition: have %s %s", rows1[48].State, rows1[48].BaseIdentity.FuelBin)
	}
	if rows1[0].GrowthRate != 1.2 || rows1[0].AdjustedGrowthRate != 1.1 {
		t.Errorf("growth: have %g and %g", rows1[0].GrowthRate, rows1[0].AdjustedGrowthRate)
	}

	// The GA and TX coal units reconcile in separate partitions but
	// land in the same regional bucket.
	var coalHour1 *RegionalHourlyRecord
	for _, rec := range RollupRegional(rows1) {
		if rec.Region == "SE" && rec.FuelBin == "Coal" && rec.HierarchyHour == 1 {
			coalHour1 = rec
		}
	}
	if coalHour1 == nil {
		t.Fatal("no regional coal record for hour 1")
	}
	if different(coalHour1.BYGLoad, 40, reconcileTolerance) || different(coalHour1.FYGLoad, 44, reconcileTolerance) {
		t.Errorf("regional coal hour 1: have %g and %g", coalHour1.BYGLoad, coalHour1.FYGLoad)
	}
}

func TestReconcileUnclassifiedDropped(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Coal", "3001", "1", ReportingNonCAMD, "1995-01-01", "")
	proj := map[string][]*HourlyProjectedRecord{
		u.Key(): projRecords(u.UnitIdentity, []int{1, 2, 3}, []int{1, 2, 3}, 40, 80, 10, 20, 45),
	}
	idx.AddHierarchy(proj)
	r := &Reconciler{
		Index: idx,
		Units: []*UnitRecord{u},
		Base: map[string][]*HourlyBaseRecord{
			u.Key(): baseRecords(t, idx, u.UnitIdentity, seqHours(5), 30, 60, 100, 50, 40),
		},
		Projected: proj,
		NProcs:    1,
		Log:       quietLogger(),
	}
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("want 0 rows but have %d", len(rows))
	}
	if report.DroppedUnitHours["SE:Coal"] != 8 {
		t.Errorf("want 8 dropped unit-hours but have %d", report.DroppedUnitHours["SE:Coal"])
	}
	if report.TotalDropped() != 8 {
		t.Errorf("want 8 total dropped but have %d", report.TotalDropped())
	}
}

func TestGrowthParms(t *testing.T) {
	idx := testIndex(t)
	u := testUnit("SE", "Coal", "1001", "1", ReportingFull, "1990-01-01", "")
	hours := []int{1, 2}
	proj := map[string][]*HourlyProjectedRecord{
		u.Key(): projRecords(u.UnitIdentity, hours, []int{1, 2}, 60, 120, 150, 90, 90),
	}
	idx.AddHierarchy(proj)
	parm := &GenerationParmsRecord{
		Region:             "SE",
		FuelBin:            "Coal",
		OpDate:             testDate("2023-01-01"),
		OpHour:             0,
		GrowthRate:         1.05,
		AdjustedGrowthRate: 1.1,
	}
	r := &Reconciler{
		Index: idx,
		Units: []*UnitRecord{u},
		Base: map[string][]*HourlyBaseRecord{
			u.Key(): baseRecords(t, idx, u.UnitIdentity, hours, 50, 100, 200, 100, 80),
		},
		Projected: proj,
		Parms:     map[string]*GenerationParmsRecord{parm.Key(): parm},
		NProcs:    1,
		Log:       quietLogger(),
	}
	rows, report, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows but have %d", len(rows))
	}
	if rows[0].GrowthRate != 1.05 || rows[0].AdjustedGrowthRate != 1.1 {
		t.Errorf("hour 1 growth: have %g and %g", rows[0].GrowthRate, rows[0].AdjustedGrowthRate)
	}
	if !math.IsNaN(rows[1].GrowthRate) || !math.IsNaN(rows[1].AdjustedGrowthRate) {
		t.Errorf("hour 2 growth: want null fields but have %g and %g",
			rows[1].GrowthRate, rows[1].AdjustedGrowthRate)
	}
	if report.MissingParms["SE:Coal"] != 1 {
		t.Errorf("missing parms: want 1 but have %d", report.MissingParms["SE:Coal"])
	}
	// Hours past the end of the future year have no parameters.
	if g, a := r.growthParms("SE", "Coal", 8761); !math.IsNaN(g) || !math.IsNaN(a) {
		t.Errorf("hour 8761: want null fields but have %g and %g", g, a)
	}
}

func TestReconcileNeedsIndex(t *testing.T) {
	r := &Reconciler{}
	if _, _, err := r.Reconcile(); err == nil {
		t.Fatal("reconciling without a calendar index should be an error")
	}
}
