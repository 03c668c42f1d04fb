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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Pollutant identifies one of the pollutant mass fields carried on every
// hourly record.
type Pollutant string

// The pollutants tracked by the hourly tables.
const (
	SO2 Pollutant = "SO2"
	NOx Pollutant = "NOx"
	CO2 Pollutant = "CO2"
)

// HourlyBaseRecord is one base-year actual measurement for one unit and
// operating hour. There is at most one record per (unit identity,
// operating date, operating hour).
type HourlyBaseRecord struct {
	UnitIdentity

	// OpDate is the operating date.
	OpDate time.Time

	// OpHour is the operating hour of the day, 0–23.
	OpHour int

	// GLoad is the gross load (MW).
	GLoad float64

	// HeatInput is the heat input (mmBtu).
	HeatInput float64

	// SO2Mass and NOxMass are emitted masses in pounds; CO2Mass is in
	// tons.
	SO2Mass, NOxMass, CO2Mass float64
}

// Key returns a unique key for this record.
func (r *HourlyBaseRecord) Key() string {
	return r.UnitIdentity.Key() + ":" + r.OpDate.Format(dateLayout) + ":" + strconv.Itoa(r.OpHour)
}

// HourlyProjectedRecord is one simulated future-year hour for one unit.
type HourlyProjectedRecord struct {
	UnitIdentity

	// CalendarHour is the absolute hour of the year, 1–8784.
	CalendarHour int

	// HierarchyHour is the dispatch-order position of this hour within
	// the unit's region and fuel bin.
	HierarchyHour int

	// HourlyHILimit reports whether the unit hit its maximum hourly
	// heat input this hour.
	HourlyHILimit bool

	// GLoad is the gross load (MW).
	GLoad float64

	// HeatInput is the heat input (mmBtu).
	HeatInput float64

	// SO2Mass and NOxMass are emitted masses in pounds; CO2Mass is in
	// tons.
	SO2Mass, NOxMass, CO2Mass float64
}

// Key returns a unique key for this record.
func (r *HourlyProjectedRecord) Key() string {
	return r.UnitIdentity.Key() + ":" + strconv.Itoa(r.CalendarHour)
}

// GenerationParmsRecord holds the hour-specific growth parameters for one
// region, fuel bin, and operating hour. One record is broadcast to every
// unit sharing the region and fuel bin.
type GenerationParmsRecord struct {
	Region, FuelBin string

	// OpDate and OpHour locate the hour the parameters apply to.
	OpDate time.Time
	OpHour int

	// GrowthRate is the hour-specific growth rate.
	GrowthRate float64

	// AdjustedGrowthRate is the adjusted future-year growth ratio for
	// this hour.
	AdjustedGrowthRate float64
}

// Key returns a unique key for this record.
func (r *GenerationParmsRecord) Key() string {
	return r.Region + ":" + r.FuelBin + ":" + r.OpDate.Format(dateLayout) + ":" + strconv.Itoa(r.OpHour)
}

// A TableFile wraps one open input table for reading.
type TableFile struct {
	name string
	r    *csv.Reader
}

// OpenTableFile prepares rd for reading as a CSV table. name is only
// used in error messages.
func OpenTableFile(name string, rd io.Reader) *TableFile {
	r := csv.NewReader(rd)
	r.Comment = commentRune
	r.FieldsPerRecord = -1
	return &TableFile{name: name, r: r}
}

// Name returns the name of the table file.
func (f *TableFile) Name() string { return f.name }

// hourlyBaseFields is the number of fields in a base-year hourly record:
// region, fuel bin, facility ID, unit ID, operating date, operating
// hour, gross load (MW), heat input (mmBtu), SO2 mass (lbs), NOx mass
// (lbs), and CO2 mass (tons).
const hourlyBaseFields = 11

// NewHourlyBaseRecord creates a base-year hourly record from one table
// row.
func NewHourlyBaseRecord(rec []string) (*HourlyBaseRecord, error) {
	if len(rec) != hourlyBaseFields {
		return nil, fmt.Errorf("egupro.NewHourlyBaseRecord: record should have %d fields but instead has %d",
			hourlyBaseFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	r := new(HourlyBaseRecord)
	r.Region = trimString(rec[0])
	r.FuelBin = trimString(rec[1])
	r.FacilityID = trimString(rec[2])
	r.UnitID = trimString(rec[3])
	var err error
	r.OpDate, err = parseDate(rec[4])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewHourlyBaseRecord: operating date: %v", err)
	}
	r.OpHour, err = parseOpHour(rec[5])
	if err != nil {
		return nil, err
	}
	for i, f := range []*float64{&r.GLoad, &r.HeatInput, &r.SO2Mass,
		&r.NOxMass, &r.CO2Mass} {
		*f, err = stringToFloat(rec[6+i])
		if err != nil {
			return nil, fmt.Errorf("egupro.NewHourlyBaseRecord: field %d: %v", 6+i, err)
		}
	}
	return r, nil
}

// hourlyProjectedFields is the number of fields in a future-year hourly
// diagnostic record: region, fuel bin, facility ID, unit ID, calendar
// hour, hierarchy hour, heat input limit flag (Y/N), gross load (MW),
// heat input (mmBtu), SO2 mass (lbs), NOx mass (lbs), and CO2 mass
// (tons).
const hourlyProjectedFields = 12

// NewHourlyProjectedRecord creates a future-year hourly record from one
// table row.
func NewHourlyProjectedRecord(rec []string) (*HourlyProjectedRecord, error) {
	if len(rec) != hourlyProjectedFields {
		return nil, fmt.Errorf("egupro.NewHourlyProjectedRecord: record should have %d fields but instead has %d",
			hourlyProjectedFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	r := new(HourlyProjectedRecord)
	r.Region = trimString(rec[0])
	r.FuelBin = trimString(rec[1])
	r.FacilityID = trimString(rec[2])
	r.UnitID = trimString(rec[3])
	var err error
	r.CalendarHour, err = strconv.Atoi(trimString(rec[4]))
	if err != nil {
		return nil, fmt.Errorf("egupro.NewHourlyProjectedRecord: calendar hour: %v", err)
	}
	if r.CalendarHour < 1 || r.CalendarHour > leapYearHours {
		return nil, fmt.Errorf("egupro.NewHourlyProjectedRecord: calendar hour %d out of range", r.CalendarHour)
	}
	r.HierarchyHour, err = strconv.Atoi(trimString(rec[5]))
	if err != nil {
		return nil, fmt.Errorf("egupro.NewHourlyProjectedRecord: hierarchy hour: %v", err)
	}
	r.HourlyHILimit, err = parseYN(rec[6])
	if err != nil {
		return nil, err
	}
	for i, f := range []*float64{&r.GLoad, &r.HeatInput, &r.SO2Mass,
		&r.NOxMass, &r.CO2Mass} {
		*f, err = stringToFloat(rec[7+i])
		if err != nil {
			return nil, fmt.Errorf("egupro.NewHourlyProjectedRecord: field %d: %v", 7+i, err)
		}
	}
	return r, nil
}

// generationParmsFields is the number of fields in a generation
// parameters record: region, fuel bin, operating date, operating hour,
// growth rate, and adjusted growth ratio.
const generationParmsFields = 6

// NewGenerationParmsRecord creates a generation parameters record from
// one table row.
func NewGenerationParmsRecord(rec []string) (*GenerationParmsRecord, error) {
	if len(rec) != generationParmsFields {
		return nil, fmt.Errorf("egupro.NewGenerationParmsRecord: record should have %d fields but instead has %d",
			generationParmsFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	r := new(GenerationParmsRecord)
	r.Region = trimString(rec[0])
	r.FuelBin = trimString(rec[1])
	var err error
	r.OpDate, err = parseDate(rec[2])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewGenerationParmsRecord: operating date: %v", err)
	}
	r.OpHour, err = parseOpHour(rec[3])
	if err != nil {
		return nil, err
	}
	r.GrowthRate, err = stringToNullFloat(rec[4])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewGenerationParmsRecord: growth rate: %v", err)
	}
	r.AdjustedGrowthRate, err = stringToNullFloat(rec[5])
	if err != nil {
		return nil, fmt.Errorf("egupro.NewGenerationParmsRecord: adjusted growth ratio: %v", err)
	}
	return r, nil
}

type baseRecordErr struct {
	rec *HourlyBaseRecord
	err error
}

// parseBaseLines parses the lines of a base-year hourly table.
func (f *TableFile) parseBaseLines(recordChan chan baseRecordErr, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		line, err := f.r.Read()
		if err == io.EOF {
			return
		}
		if err == nil {
			var rec *HourlyBaseRecord
			rec, err = NewHourlyBaseRecord(line)
			if err == nil {
				if rec == nil {
					continue
				}
				recordChan <- baseRecordErr{rec: rec}
				continue
			}
		}
		recordChan <- baseRecordErr{err: fmt.Errorf("egupro: reading %s: %v", f.name, err)}
		return
	}
}

// ReadHourlyBase reads base-year hourly records from the given files
// concurrently, grouping them by unit identity key. A duplicate (unit,
// operating date, operating hour) key is an error.
func ReadHourlyBase(files ...*TableFile) (map[string][]*HourlyBaseRecord, error) {
	recordChan := make(chan baseRecordErr)
	var wg sync.WaitGroup
	wg.Add(len(files))
	for _, f := range files {
		go f.parseBaseLines(recordChan, &wg)
	}
	go func() {
		wg.Wait()
		close(recordChan)
	}()
	records := make(map[string][]*HourlyBaseRecord)
	seen := make(map[string]struct{})
	for re := range recordChan {
		if re.err != nil {
			return nil, re.err
		}
		key := re.rec.Key()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("egupro: duplicate base-year hourly record %s", key)
		}
		seen[key] = struct{}{}
		idKey := re.rec.UnitIdentity.Key()
		records[idKey] = append(records[idKey], re.rec)
	}
	return records, nil
}

type projRecordErr struct {
	rec *HourlyProjectedRecord
	err error
}

// parseProjectedLines parses the lines of a future-year hourly
// diagnostic table.
func (f *TableFile) parseProjectedLines(recordChan chan projRecordErr, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		line, err := f.r.Read()
		if err == io.EOF {
			return
		}
		if err == nil {
			var rec *HourlyProjectedRecord
			rec, err = NewHourlyProjectedRecord(line)
			if err == nil {
				if rec == nil {
					continue
				}
				recordChan <- projRecordErr{rec: rec}
				continue
			}
		}
		recordChan <- projRecordErr{err: fmt.Errorf("egupro: reading %s: %v", f.name, err)}
		return
	}
}

// ReadHourlyProjected reads future-year hourly diagnostic records from
// the given files concurrently, grouping them by unit identity key. A
// duplicate (unit, calendar hour) key is an error.
func ReadHourlyProjected(files ...*TableFile) (map[string][]*HourlyProjectedRecord, error) {
	recordChan := make(chan projRecordErr)
	var wg sync.WaitGroup
	wg.Add(len(files))
	for _, f := range files {
		go f.parseProjectedLines(recordChan, &wg)
	}
	go func() {
		wg.Wait()
		close(recordChan)
	}()
	records := make(map[string][]*HourlyProjectedRecord)
	seen := make(map[string]struct{})
	for re := range recordChan {
		if re.err != nil {
			return nil, re.err
		}
		key := re.rec.Key()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("egupro: duplicate future-year hourly record %s", key)
		}
		seen[key] = struct{}{}
		idKey := re.rec.UnitIdentity.Key()
		records[idKey] = append(records[idKey], re.rec)
	}
	return records, nil
}

// ReadGenerationParms reads the generation parameters table, keyed by
// region, fuel bin, operating date, and operating hour. Later duplicates
// overwrite earlier ones.
func ReadGenerationParms(f *TableFile) (map[string]*GenerationParmsRecord, error) {
	records := make(map[string]*GenerationParmsRecord)
	for {
		line, err := f.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.name, err)
		}
		rec, err := NewGenerationParmsRecord(line)
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.name, err)
		}
		if rec == nil {
			continue
		}
		records[rec.Key()] = rec
	}
	return records, nil
}

// parseOpHour parses an operating hour of the day field, 0 through 23.
func parseOpHour(s string) (int, error) {
	h, err := strconv.Atoi(trimString(s))
	if err != nil {
		return 0, fmt.Errorf("egupro: operating hour: %v", err)
	}
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("egupro: operating hour %d out of range", h)
	}
	return h, nil
}

// parseYN parses a Y/N flag field.
func parseYN(s string) (bool, error) {
	switch strings.ToUpper(trimString(s)) {
	case "Y", "YES":
		return true, nil
	case "N", "NO", "", nullVal:
		return false, nil
	default:
		return false, fmt.Errorf("egupro: invalid Y/N flag %q", s)
	}
}
