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
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
)

const (
	nullVal     = "-9"
	commentRune = '#'
)

// dateLayout is the format for all dates in the input tables.
const dateLayout = "2006-01-02"

// UnitIdentity identifies one generating unit within one dispatch region
// and fuel bin. A unit that switches fuel bins between the base year and
// the future year appears under two identities that share FacilityID and
// UnitID but differ in FuelBin.
type UnitIdentity struct {
	// Region is the dispatch region code (required).
	Region string

	// FuelBin is the fuel/unit-type bin the unit dispatches under
	// (required).
	FuelBin string

	// FacilityID is the ORIS plant code (required).
	FacilityID string

	// UnitID is the CAMD unit identifier within the facility (required).
	UnitID string
}

// Key returns a unique key for this unit identity.
func (id UnitIdentity) Key() string {
	return id.Region + ":" + id.FuelBin + ":" + id.FacilityID + ":" + id.UnitID
}

// unitKey identifies a physical unit independent of region and fuel bin,
// for matching a unit's base-year identity with its future-year identity.
func (id UnitIdentity) unitKey() string {
	return id.FacilityID + ":" + id.UnitID
}

// ReportingType describes how a unit reported hourly data in the base
// year.
type ReportingType string

// The reporting types from the unit attribute file.
const (
	ReportingFull    ReportingType = "FULL"
	ReportingPartial ReportingType = "PARTIAL"
	ReportingNew     ReportingType = "NEW"
	ReportingNonCAMD ReportingType = "NON-CAMD"
	ReportingNonEGU  ReportingType = "NON-EGU"
)

// parseReportingType canonicalizes the base-year reporting type field.
func parseReportingType(s string) (ReportingType, error) {
	switch strings.ToUpper(trimString(s)) {
	case "FULL":
		return ReportingFull, nil
	case "PARTIAL":
		return ReportingPartial, nil
	case "NEW":
		return ReportingNew, nil
	case "NON-CAMD", "NONCAMD":
		return ReportingNonCAMD, nil
	case "NON-EGU", "NONEGU":
		return ReportingNonEGU, nil
	default:
		return "", fmt.Errorf("egupro: invalid base-year reporting type %q", s)
	}
}

// UnitRecord holds the attributes of one generating unit. Records are
// loaded once from the unit attribute file and are immutable for the
// rest of the run.
type UnitRecord struct {
	UnitIdentity

	// FacilityName is the plant name as reported to CAMD.
	FacilityName string

	// State is the two-letter postal abbreviation of the state the unit
	// is located in (required).
	State string

	// OnlineStart is the date the unit began operating.
	OnlineStart time.Time

	// OfflineStart is the first date on which the unit no longer
	// operates, or nil for a unit with no planned retirement.
	OfflineStart *time.Time

	// ReportingType is the unit's base-year hourly data type.
	ReportingType ReportingType

	// HeatRate is the unit's nominal heat rate (btu/kW-hr).
	HeatRate float64

	// MaxHourlyHeatInput is the unit's hourly heat input capacity
	// (mmBtu).
	MaxHourlyHeatInput float64

	// NameplateCapacity is the unit's nameplate capacity (MW).
	NameplateCapacity float64

	// Longitude and Latitude give the unit location in degrees.
	Longitude, Latitude float64

	// ProgramCodes lists the regulatory programs the unit reports
	// under.
	ProgramCodes []string
}

// Location returns the point location of the unit.
func (u *UnitRecord) Location() geom.Point {
	return geom.Point{X: u.Longitude, Y: u.Latitude}
}

// unitAttributeFields is the number of fields in a unit attribute
// record.
const unitAttributeFields = 15

// NewUnitRecord creates a unit record from one row of the unit attribute
// file. The fields are, in order: region, fuel bin, facility ID, unit ID,
// facility name, state, base-year reporting type, online start date,
// offline start date, heat rate (btu/kW-hr), max hourly heat input
// (mmBtu), nameplate capacity (MW), longitude, latitude, and a
// semicolon-separated program code list.
func NewUnitRecord(rec []string) (*UnitRecord, error) {
	if len(rec) != unitAttributeFields {
		return nil, fmt.Errorf("egupro.NewUnitRecord: record should have %d fields but instead has %d",
			unitAttributeFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	u := new(UnitRecord)
	u.Region = trimString(rec[0])
	u.FuelBin = trimString(rec[1])
	u.FacilityID = trimString(rec[2])
	u.UnitID = trimString(rec[3])
	u.FacilityName = trimString(rec[4])
	u.State = strings.ToUpper(trimString(rec[5]))

	var err error
	u.ReportingType, err = parseReportingType(rec[6])
	if err != nil {
		return nil, err
	}
	u.OnlineStart, err = parseDate(rec[7])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewUnitRecord: online start date: %v", err)
	}
	u.OfflineStart, err = parseNullDate(rec[8])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewUnitRecord: offline start date: %v", err)
	}
	for i, f := range []*float64{&u.HeatRate, &u.MaxHourlyHeatInput,
		&u.NameplateCapacity, &u.Longitude, &u.Latitude} {
		*f, err = stringToFloat(rec[9+i])
		if err != nil {
			return nil, fmt.Errorf("egupro.NewUnitRecord: field %d: %v", 9+i, err)
		}
	}
	if s := trimString(rec[14]); s != "" && s != nullVal {
		u.ProgramCodes = strings.Split(s, ";")
	}
	return u, nil
}

// ReadUnitAttributes reads the unit attribute table. It returns an
// error if the same unit identity appears more than once.
func ReadUnitAttributes(f *TableFile) ([]*UnitRecord, error) {
	var units []*UnitRecord
	seen := make(map[UnitIdentity]struct{})
	for line := 1; ; line++ {
		rec, err := f.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.Name(), err)
		}
		u, err := NewUnitRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s line %d: %v", f.Name(), line, err)
		}
		if u == nil { // header
			continue
		}
		if _, ok := seen[u.UnitIdentity]; ok {
			return nil, fmt.Errorf("egupro: duplicate unit %s in %s", u.Key(), f.Name())
		}
		seen[u.UnitIdentity] = struct{}{}
		units = append(units, u)
	}
	return units, nil
}

// stringToFloat converts a string to a floating point number.
// If the string is "" or "-9" it returns 0.
func stringToFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == nullVal {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err
}

// stringToNullFloat converts a string to a floating point number,
// returning NaN if the string is "" or "-9". It is used for fields where
// missing and zero mean different things.
func stringToNullFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == nullVal {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err
}

// Get rid of extra quotation marks and copy the string so the
// whole line from the input file isn't held in memory
func trimString(s string) string {
	return string([]byte(strings.Trim(s, "\" ")))
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, trimString(s))
}

// parseNullDate parses a date field that may be empty or "-9", returning
// nil in either case.
func parseNullDate(s string) (*time.Time, error) {
	s = trimString(s)
	if s == "" || s == nullVal {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
