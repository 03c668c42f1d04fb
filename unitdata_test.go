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
	"time"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
)

func TestNewUnitRecord(t *testing.T) {
	rec := []string{"SE", "Coal", "1001", "1", "Plant One", "ga", "Full",
		"1982-03-01", "", "10500", "4800", "460", "-83.8", "33.06", "ARP;CSNOX"}
	u, err := NewUnitRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	want := &UnitRecord{
		UnitIdentity: UnitIdentity{
			Region: "SE", FuelBin: "Coal", FacilityID: "1001", UnitID: "1",
		},
		FacilityName:       "Plant One",
		State:              "GA",
		OnlineStart:        time.Date(1982, time.March, 1, 0, 0, 0, 0, time.UTC),
		ReportingType:      ReportingFull,
		HeatRate:           10500,
		MaxHourlyHeatInput: 4800,
		NameplateCapacity:  460,
		Longitude:          -83.8,
		Latitude:           33.06,
		ProgramCodes:       []string{"ARP", "CSNOX"},
	}
	diff := pretty.Diff(u, want)
	if len(diff) != 0 {
		t.Fatal(diff)
	}
	if loc := u.Location(); loc != (geom.Point{X: -83.8, Y: 33.06}) {
		t.Errorf("location: have %+v", loc)
	}

	// An empty offline date means no planned retirement; -9 means the
	// same thing.
	rec[8] = "-9"
	u, err = NewUnitRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if u.OfflineStart != nil {
		t.Errorf("null offline date: have %v", u.OfflineStart)
	}
	rec[8] = "2019-06-01"
	u, err = NewUnitRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if u.OfflineStart == nil || !u.OfflineStart.Equal(time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("offline date: have %v", u.OfflineStart)
	}
}

func TestNewUnitRecordHeader(t *testing.T) {
	rec := []string{"Region", "Fuel Bin", "Facility ID", "Unit ID", "Facility Name",
		"State", "BY Type", "Online", "Offline", "Heat Rate", "Max HI",
		"Capacity", "Longitude", "Latitude", "Programs"}
	u, err := NewUnitRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Errorf("a header row should be skipped, but have %+v", u)
	}
}

func TestNewUnitRecordWrongFieldCount(t *testing.T) {
	_, err := NewUnitRecord([]string{"SE", "Coal", "1001"})
	if err == nil {
		t.Fatal("want an error but have none")
	}
	want := "egupro.NewUnitRecord: record should have 15 fields but instead has 3"
	if err.Error() != want {
		t.Errorf("want %q but have %q", want, err.Error())
	}
}

const unitAttrsDupFileString = `Region,Fuel Bin,Facility ID,Unit ID,Facility Name,State,BY Type,Online,Offline,Heat Rate,Max HI,Capacity,Longitude,Latitude,Programs
SE,Coal,1001,1,Plant One,GA,FULL,1982-03-01,,10500,4800,460,-83.8,33.06,ARP
SE,Coal,1001,1,Plant One,GA,FULL,1982-03-01,,10500,4800,460,-83.8,33.06,ARP
`

func TestReadUnitAttributesDuplicate(t *testing.T) {
	f := OpenTableFile("units.csv", strings.NewReader(unitAttrsDupFileString))
	_, err := ReadUnitAttributes(f)
	if err == nil {
		t.Fatal("a duplicate unit identity should be an error")
	}
	if !strings.Contains(err.Error(), "duplicate unit SE:Coal:1001:1") {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestStringToNullFloat(t *testing.T) {
	for _, s := range []string{"", "-9", " -9 "} {
		v, err := stringToNullFloat(s)
		if err != nil {
			t.Fatal(err)
		}
		if !math.IsNaN(v) {
			t.Errorf("%q: want NaN but have %g", s, v)
		}
	}
	v, err := stringToNullFloat("2.5")
	if err != nil {
		t.Fatal(err)
	}
	if v != 2.5 {
		t.Errorf("want 2.5 but have %g", v)
	}
	if _, err := stringToNullFloat("spam"); err == nil {
		t.Error("want an error but have none")
	}
}

func TestParseYN(t *testing.T) {
	for _, s := range []string{"Y", "y", "YES", " Y "} {
		b, err := parseYN(s)
		if err != nil || !b {
			t.Errorf("%q: want true but have %v (%v)", s, b, err)
		}
	}
	for _, s := range []string{"N", "no", "", "-9"} {
		b, err := parseYN(s)
		if err != nil || b {
			t.Errorf("%q: want false but have %v (%v)", s, b, err)
		}
	}
	if _, err := parseYN("maybe"); err == nil {
		t.Error("want an error but have none")
	}
}
