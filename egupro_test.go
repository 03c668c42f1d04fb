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
	"bytes"
	"io"
	"io/ioutil"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/tealeg/xlsx"
)

const engineUnitsFileString = `Region,Fuel Bin,Facility ID,Unit ID,Facility Name,State,BY Type,Online,Offline,Heat Rate,Max HI,Capacity,Longitude,Latitude,Programs
SE,Coal,1001,1,Plant One,GA,FULL,1982-03-01,,10500,200,120,-83.8,33.06,ARP
SE,Gas,2001,1,Plant Two,GA,NEW,2023-01-01,,8000,150,80,-84.1,32.5,
`

const engineBaseFileString = `#base year hourly activity
Region,Fuel Bin,Facility ID,Unit ID,Op Date,Op Hour,GLOAD (MW),Heat Input (mmBtu),SO2 Mass (lbs),NOx Mass (lbs),CO2 Mass (tons)
SE,Coal,1001,1,2007-01-01,0,50,100,200,100,80
SE,Coal,1001,1,2007-01-01,1,55,110,210,105,85
`

const engineProjectedFileString = `Region,Fuel Bin,Facility ID,Unit ID,Calendar Hour,Hierarchy Hour,Hourly HI Limit,GLOAD (MW),Heat Input (mmBtu),SO2 Mass (lbs),NOx Mass (lbs),CO2 Mass (tons)
SE,Coal,1001,1,1,2,N,60,120,150,90,90
SE,Coal,1001,1,2,1,Y,62,124,155,92,93
SE,Gas,2001,1,1,1,N,30,60,2,4,45
`

const engineParmsFileString = `Region,Fuel Bin,Op Date,Op Hour,Growth Rate,Adjusted Growth Rate
SE,Coal,2023-01-01,0,1.2,1.1
SE,Coal,2023-01-01,1,1.21,1.11
SE,Gas,2023-01-01,0,1.3,1.25
`

const engineHierarchyFileString = `Region,Fuel Bin,Facility ID,Unit ID,Rank
SE,Coal,1001,1,1
SE,Gas,2001,1,1
`

const engineGenericFileString = `Region,Fuel Bin,Facility ID,Unit ID
SE,Gas,2001,1
`

func testEngineTables() *TableSet {
	return &TableSet{
		InputVariables:  OpenTableFile("input_vars.csv", strings.NewReader(inputVarsFileString)),
		UnitAttributes:  OpenTableFile("units.csv", strings.NewReader(engineUnitsFileString)),
		HourlyBase:      []*TableFile{OpenTableFile("by.csv", strings.NewReader(engineBaseFileString))},
		HourlyProjected: []*TableFile{OpenTableFile("fy.csv", strings.NewReader(engineProjectedFileString))},
		GenerationParms: OpenTableFile("parms.csv", strings.NewReader(engineParmsFileString)),
		UnitHierarchy:   OpenTableFile("hier.csv", strings.NewReader(engineHierarchyFileString)),
		GenericUnits:    OpenTableFile("generic.csv", strings.NewReader(engineGenericFileString)),
	}
}

func runTestEngine(t *testing.T, report io.Writer) *Engine {
	e := &Engine{
		InitFuncs: []EngineManipulator{LoadTables(testEngineTables()), BuildCalendar()},
		RunFuncs: []EngineManipulator{
			ReconcileHours(nil),
			SummarizeDaily(),
			SummarizeAnnual(),
			SummarizeRegions(),
			SummarizeStates(),
			CheckIntegrity(""),
		},
		NProcs: 1,
		Log:    quietLogger(),
	}
	if report != nil {
		e.CleanupFuncs = []EngineManipulator{PrintReport(report)}
	}
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngineGuards(t *testing.T) {
	e := &Engine{Log: quietLogger()}
	if err := e.Run(); err == nil || !strings.Contains(err.Error(), "must be initialized") {
		t.Errorf("run before init: have %v", err)
	}
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	if err := e.Init(); err == nil || !strings.Contains(err.Error(), "already been initialized") {
		t.Errorf("second init: have %v", err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err == nil || !strings.Contains(err.Error(), "already been run") {
		t.Errorf("second run: have %v", err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTablesMissing(t *testing.T) {
	dummy := func() *TableFile { return OpenTableFile("x.csv", strings.NewReader("")) }
	tests := []struct {
		ts   *TableSet
		want string
	}{
		{&TableSet{}, "input variables"},
		{&TableSet{InputVariables: dummy()}, "unit attributes"},
		{&TableSet{InputVariables: dummy(), UnitAttributes: dummy()},
			"hourly base year activity"},
		{&TableSet{InputVariables: dummy(), UnitAttributes: dummy(),
			HourlyBase: []*TableFile{dummy()}}, "hourly future year activity"},
	}
	for _, test := range tests {
		err := LoadTables(test.ts)(&Engine{Log: quietLogger()})
		want := "egupro: missing required input table: " + test.want
		if err == nil || err.Error() != want {
			t.Errorf("want %q but have %v", want, err)
		}
		if _, ok := err.(ConfigurationError); !ok {
			t.Errorf("want a ConfigurationError but have %T", err)
		}
	}
}

func TestEngine(t *testing.T) {
	var buf bytes.Buffer
	e := runTestEngine(t, &buf)

	if len(e.Hourly) != 3 {
		t.Fatalf("want 3 hourly rows but have %d", len(e.Hourly))
	}
	r := e.Hourly[0]
	if r.Category != FullPartial || r.CalendarHour != 1 {
		t.Errorf("first row: have %+v", r)
	}
	if different(r.BYSO2Mass, 0.1, reconcileTolerance) ||
		different(r.FYSO2Mass, 0.075, reconcileTolerance) ||
		different(r.BYNOxMass, 0.05, reconcileTolerance) ||
		different(r.BYCO2Mass, 80, reconcileTolerance) {
		t.Errorf("first row masses: have %+v", r)
	}
	if r.BYHierarchyHour != 2 || r.FYHierarchyHour != 2 || r.HourlyHILimit {
		t.Errorf("first row dispatch fields: have %+v", r)
	}
	if different(r.GrowthRate, 1.2, reconcileTolerance) ||
		different(r.AdjustedGrowthRate, 1.1, reconcileTolerance) {
		t.Errorf("first row growth: have %g and %g", r.GrowthRate, r.AdjustedGrowthRate)
	}
	if r2 := e.Hourly[1]; !r2.HourlyHILimit || r2.BYHierarchyHour != 1 {
		t.Errorf("second row: have %+v", r2)
	}
	rNew := e.Hourly[2]
	if rNew.Category != NewUnit || rNew.BaseIdentity != (UnitIdentity{}) ||
		rNew.FYGLoad != 30 || rNew.FYHierarchyHour != 1 {
		t.Errorf("new unit row: have %+v", rNew)
	}

	if len(e.Daily) != 2 {
		t.Fatalf("want 2 daily records but have %d", len(e.Daily))
	}
	d := e.Daily[0]
	if d.Day != 1 || different(d.BYHeatInput, 210, reconcileTolerance) ||
		different(d.FYHeatInput, 244, reconcileTolerance) {
		t.Errorf("daily record: have %+v", d)
	}

	if len(e.Annual) != 2 {
		t.Fatalf("want 2 annual records but have %d", len(e.Annual))
	}
	a := e.Annual[0]
	if a.Category != FullPartial || different(a.BYHeatInput, 210, reconcileTolerance) ||
		different(a.FYHeatInput, 244, reconcileTolerance) {
		t.Errorf("annual record: have %+v", a)
	}
	if a.GenerationDeficit || a.GenericUnit {
		t.Errorf("annual flags: have %+v", a)
	}
	aNew := e.Annual[1]
	if aNew.Category != NewUnit || !aNew.GenericUnit || aNew.GenerationDeficit {
		t.Errorf("new unit annual record: have %+v", aNew)
	}
	if !math.IsNaN(aNew.BYUtilization) {
		t.Errorf("new unit BY utilization: have %g", aNew.BYUtilization)
	}

	if len(e.Regional) != 3 || len(e.StateHourly) != 3 {
		t.Fatalf("want 3 regional and 3 state records but have %d and %d",
			len(e.Regional), len(e.StateHourly))
	}
	if reg := e.Regional[2]; reg.Region != "SE" || reg.FuelBin != "Gas" ||
		reg.FYGLoad != 30 || reg.BYGLoad != 0 {
		t.Errorf("regional gas record: have %+v", reg)
	}
	if st := e.StateHourly[0]; st.State != "GA" || st.FuelBin != "Coal" ||
		st.HierarchyHour != 1 || st.BYGLoad != 55 {
		t.Errorf("state coal record: have %+v", st)
	}

	if e.Report.RowCount[FullPartial] != 2 || e.Report.RowCount[NewUnit] != 1 {
		t.Errorf("report row counts: have %v", e.Report.RowCount)
	}
	if e.Report.TotalDropped() != 0 || len(e.Report.MissingParms) != 0 {
		t.Errorf("report drops: have %+v", e.Report)
	}
	if e.Integrity == nil || !e.Integrity.OK() {
		t.Errorf("integrity: have %+v", e.Integrity)
	}

	out := buf.String()
	if !strings.Contains(out, "FULL/PARTIAL") || !strings.Contains(out, "NEW") {
		t.Errorf("report output: have %q", out)
	}
	if strings.Contains(out, "Region:FuelBin") {
		t.Errorf("a clean run should not print the dropped table: %q", out)
	}

	// The summaries are write-once.
	if err := ReconcileHours(nil)(e); err == nil ||
		!strings.Contains(err.Error(), "already been generated") {
		t.Errorf("second reconcile: have %v", err)
	}
	if err := SummarizeDaily()(e); err == nil ||
		!strings.Contains(err.Error(), "already been generated") {
		t.Errorf("second daily summary: have %v", err)
	}
}

func TestPrintReportNoRun(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintReport(&buf)(&Engine{}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("want no output but have %q", buf.String())
	}
}

var engineTableNames = []string{
	"hourly_activity.csv", "daily_activity.csv", "annual_summary.csv",
	"regional_hourly.csv", "state_hourly.csv",
}

func TestWriteTables(t *testing.T) {
	e := runTestEngine(t, nil)
	if err := WriteTables("", nil)(e); err != nil {
		t.Fatal(err)
	}
	defer func() {
		for _, name := range engineTableNames {
			os.Remove(name)
		}
	}()

	b, err := ioutil.ReadFile("hourly_activity.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "BY Region,BY Fuel Bin") {
		t.Errorf("hourly header: have %q", string(b[:40]))
	}
	if n := strings.Count(string(b), "\n"); n != 4 {
		t.Errorf("want a header and 3 rows but have %d lines", n)
	}
	b, err = ioutil.ReadFile("annual_summary.csv")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 3 {
		t.Errorf("want a header and 2 rows but have %d lines", n)
	}

	// An ozone season filter drops the January activity from the
	// time-resolved tables.
	filter := NewFilterContext(nil, nil, nil, nil, OzoneSeason)
	if err := WriteTables("", filter)(e); err != nil {
		t.Fatal(err)
	}
	b, err = ioutil.ReadFile("hourly_activity.csv")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 1 {
		t.Errorf("want only the header but have %d lines", n)
	}
	b, err = ioutil.ReadFile("annual_summary.csv")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 3 {
		t.Errorf("the annual summary should not be filtered; have %d lines", n)
	}
}

func TestWriteWorkbookOutput(t *testing.T) {
	e := runTestEngine(t, nil)
	const fileName = "testEngineWorkbook.xlsx"
	if err := WriteWorkbookOutput(fileName)(e); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(fileName)

	f, err := xlsx.OpenFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Hourly Activity", "Daily Activity",
		"Annual Summary", "Regional Hourly", "State Hourly"} {
		if _, ok := f.Sheet[name]; !ok {
			t.Errorf("missing sheet %s", name)
		}
	}
	s := f.Sheet["Annual Summary"]
	if have := s.Cell(0, 0).Value; have != "Facility ID" {
		t.Errorf("want Facility ID but have %q", have)
	}
	if have := s.Cell(1, 0).Value; have != "1001" {
		t.Errorf("want 1001 but have %q", have)
	}
}
