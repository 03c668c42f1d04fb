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
	"reflect"
	"strings"
	"testing"
	"time"
)

const hourlyBaseFileString = `#base year hourly activity
Region,Fuel Bin,Facility ID,Unit ID,Op Date,Op Hour,GLOAD (MW),Heat Input (mmBtu),SO2 Mass (lbs),NOx Mass (lbs),CO2 Mass (tons)
SE,Coal,1001,1,2007-01-01,0,50,100,200,100,80
SE,Coal,1001,1,2007-01-01,1,55,110,210,105,85
SE,Gas,2001,1,2007-01-01,0,20,40,1,2,30
`

const hourlyProjectedFileString = `Region,Fuel Bin,Facility ID,Unit ID,Calendar Hour,Hierarchy Hour,Hourly HI Limit,GLOAD (MW),Heat Input (mmBtu),SO2 Mass (lbs),NOx Mass (lbs),CO2 Mass (tons)
SE,Coal,1001,1,1,4,N,60,120,150,90,90
SE,Coal,1001,1,2,2,Y,62,124,155,92,93
`

func TestReadHourlyBase(t *testing.T) {
	f := OpenTableFile("by.csv", strings.NewReader(hourlyBaseFileString))
	records, err := ReadHourlyBase(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 units but have %d", len(records))
	}
	recs := records["SE:Coal:1001:1"]
	if len(recs) != 2 {
		t.Fatalf("want 2 records but have %d", len(recs))
	}
	want := &HourlyBaseRecord{
		UnitIdentity: UnitIdentity{Region: "SE", FuelBin: "Coal", FacilityID: "1001", UnitID: "1"},
		OpDate:       time.Date(2007, time.January, 1, 0, 0, 0, 0, time.UTC),
		OpHour:       0,
		GLoad:        50,
		HeatInput:    100,
		SO2Mass:      200,
		NOxMass:      100,
		CO2Mass:      80,
	}
	var have *HourlyBaseRecord
	for _, r := range recs {
		if r.OpHour == 0 {
			have = r
		}
	}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("want %+v but have %+v", want, have)
	}
}

func TestReadHourlyBaseMultipleFiles(t *testing.T) {
	// Splitting the table across files changes nothing but the read
	// concurrency.
	f1 := OpenTableFile("by1.csv", strings.NewReader(
		"SE,Coal,1001,1,2007-01-01,0,50,100,200,100,80\n"))
	f2 := OpenTableFile("by2.csv", strings.NewReader(
		"SE,Gas,2001,1,2007-01-01,0,20,40,1,2,30\n"))
	records, err := ReadHourlyBase(f1, f2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 units but have %d", len(records))
	}
}

func TestReadHourlyBaseDuplicate(t *testing.T) {
	f := OpenTableFile("by.csv", strings.NewReader(
		"SE,Coal,1001,1,2007-01-01,0,50,100,200,100,80\n"+
			"SE,Coal,1001,1,2007-01-01,0,51,101,201,101,81\n"))
	_, err := ReadHourlyBase(f)
	if err == nil {
		t.Fatal("a duplicate unit hour should be an error")
	}
	if !strings.Contains(err.Error(), "duplicate base-year hourly record") {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestReadHourlyProjected(t *testing.T) {
	f := OpenTableFile("fy.csv", strings.NewReader(hourlyProjectedFileString))
	records, err := ReadHourlyProjected(f)
	if err != nil {
		t.Fatal(err)
	}
	recs := records["SE:Coal:1001:1"]
	if len(recs) != 2 {
		t.Fatalf("want 2 records but have %d", len(recs))
	}
	var have *HourlyProjectedRecord
	for _, r := range recs {
		if r.CalendarHour == 2 {
			have = r
		}
	}
	want := &HourlyProjectedRecord{
		UnitIdentity:  UnitIdentity{Region: "SE", FuelBin: "Coal", FacilityID: "1001", UnitID: "1"},
		CalendarHour:  2,
		HierarchyHour: 2,
		HourlyHILimit: true,
		GLoad:         62,
		HeatInput:     124,
		SO2Mass:       155,
		NOxMass:       92,
		CO2Mass:       93,
	}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("want %+v but have %+v", want, have)
	}
}

func TestNewHourlyProjectedRecordHourRange(t *testing.T) {
	base := []string{"SE", "Coal", "1001", "1", "", "4", "N", "60", "120", "150", "90", "90"}
	for _, hour := range []string{"0", "8785", "-3"} {
		rec := make([]string, len(base))
		copy(rec, base)
		rec[4] = hour
		if _, err := NewHourlyProjectedRecord(rec); err == nil {
			t.Errorf("calendar hour %s should be out of range", hour)
		}
	}
	rec := make([]string, len(base))
	copy(rec, base)
	rec[4] = "8784"
	if _, err := NewHourlyProjectedRecord(rec); err != nil {
		t.Errorf("calendar hour 8784 should be accepted: %v", err)
	}
}

func TestReadGenerationParms(t *testing.T) {
	f := OpenTableFile("parms.csv", strings.NewReader(
		`Region,Fuel Bin,Op Date,Op Hour,Growth Rate,Adjusted Growth Rate
SE,Coal,2023-01-01,0,1.05,1.10
SE,Coal,2023-01-01,1,,
SE,Coal,2023-01-01,0,1.06,1.11
`))
	records, err := ReadGenerationParms(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records but have %d", len(records))
	}
	// The later duplicate overwrites the earlier one.
	r := records["SE:Coal:2023-01-01:0"]
	if r == nil || r.GrowthRate != 1.06 || r.AdjustedGrowthRate != 1.11 {
		t.Errorf("duplicate handling: have %+v", r)
	}
	// Empty growth fields are null, not zero.
	r = records["SE:Coal:2023-01-01:1"]
	if r == nil || !math.IsNaN(r.GrowthRate) || !math.IsNaN(r.AdjustedGrowthRate) {
		t.Errorf("null growth fields: have %+v", r)
	}
}
