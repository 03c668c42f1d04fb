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
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/gonum/mat"
)

// workbookCache holds previously opened workbook files to avoid
// reading the same file multiple times.
var workbookCache *requestcache.Cache

var loadWorkbookCacheOnce sync.Once

// loadWorkbook loads a workbook file from disk, utilizing a cache to
// avoid loading the same file more than once.
func loadWorkbook(fileName string) (*xlsx.File, error) {
	loadWorkbookCacheOnce.Do(func() {
		workbookCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			filename := req.(string)
			f, err := xlsx.OpenFile(filename)
			if err != nil {
				return nil, fmt.Errorf("egupro: opening workbook: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(100))
	})
	r := workbookCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// UnitHierarchyRecord holds one row of the dispatch hierarchy table:
// a unit's allocation rank within its region and fuel bin.
type UnitHierarchyRecord struct {
	Region, FuelBin    string
	FacilityID, UnitID string
	Rank               int
}

const unitHierarchyFields = 5

// NewUnitHierarchyRecord creates a record from one row of the dispatch
// hierarchy table. The fields are, in order: region, fuel bin,
// facility ID, unit ID, rank.
func NewUnitHierarchyRecord(rec []string) (*UnitHierarchyRecord, error) {
	if len(rec) != unitHierarchyFields {
		return nil, fmt.Errorf("egupro.NewUnitHierarchyRecord: record should have %d fields but instead has %d",
			unitHierarchyFields, len(rec))
	}
	if strings.Contains(strings.ToLower(rec[0]), "region") {
		// This record is an uncommented header so ignore it.
		return nil, nil
	}
	r := new(UnitHierarchyRecord)
	r.Region = trimString(rec[0])
	r.FuelBin = trimString(rec[1])
	r.FacilityID = trimString(rec[2])
	r.UnitID = trimString(rec[3])
	rank, err := strconv.Atoi(trimString(rec[4]))
	if err != nil {
		return nil, fmt.Errorf("egupro.NewUnitHierarchyRecord: parsing rank: %v", err)
	}
	r.Rank = rank
	return r, nil
}

// UnitHierarchy is the dispatch hierarchy: for each region and fuel
// bin, the units ordered by allocation rank. Units absent from the
// hierarchy cannot be assigned generation and are flagged in the
// annual summary.
type UnitHierarchy struct {
	slices map[string][]*UnitHierarchyRecord
	units  map[string]bool
}

// NewUnitHierarchy assembles a hierarchy from its records. Listing the
// same unit twice within one region and fuel bin is an error.
func NewUnitHierarchy(records []*UnitHierarchyRecord) (*UnitHierarchy, error) {
	h := &UnitHierarchy{
		slices: make(map[string][]*UnitHierarchyRecord),
		units:  make(map[string]bool),
	}
	seen := make(map[string]bool)
	for _, r := range records {
		key := r.Region + ":" + r.FuelBin + ":" + r.FacilityID + ":" + r.UnitID
		if seen[key] {
			return nil, fmt.Errorf("egupro: duplicate dispatch hierarchy entry %s", key)
		}
		seen[key] = true
		sliceKey := r.Region + ":" + r.FuelBin
		h.slices[sliceKey] = append(h.slices[sliceKey], r)
		h.units[r.FacilityID+":"+r.UnitID] = true
	}
	for _, recs := range h.slices {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Rank < recs[j].Rank })
	}
	return h, nil
}

// ReadUnitHierarchy reads the dispatch hierarchy table.
func ReadUnitHierarchy(f *TableFile) (*UnitHierarchy, error) {
	var records []*UnitHierarchyRecord
	for {
		rec, err := f.r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("egupro: reading %s: %v", f.Name(), err)
		}
		r, err := NewUnitHierarchyRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("egupro: reading %s: %v", f.Name(), err)
		}
		if r == nil { // header
			continue
		}
		records = append(records, r)
	}
	return NewUnitHierarchy(records)
}

// ReadUnitHierarchyWorkbook reads the dispatch hierarchy from a
// workbook sheet laid out like the table file, with a header row
// first.
func ReadUnitHierarchyWorkbook(fileName, sheet string) (*UnitHierarchy, error) {
	f, err := loadWorkbook(fileName)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("egupro: reading dispatch hierarchy; no sheet %s", sheet)
	}
	var records []*UnitHierarchyRecord
	for j := 0; j < s.MaxRow; j++ {
		rec := make([]string, unitHierarchyFields)
		for i := 0; i < unitHierarchyFields; i++ {
			rec[i] = s.Cell(j, i).Value
		}
		if trimString(rec[0]) == "" {
			continue
		}
		r, err := NewUnitHierarchyRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("egupro: reading dispatch hierarchy sheet %s row %d: %v", sheet, j, err)
		}
		if r == nil { // header
			continue
		}
		records = append(records, r)
	}
	return NewUnitHierarchy(records)
}

// Contains reports whether the unit appears anywhere in the
// hierarchy.
func (h *UnitHierarchy) Contains(facilityID, unitID string) bool {
	return h.units[facilityID+":"+unitID]
}

// Rank returns the unit's allocation rank within the given region and
// fuel bin, and whether the unit is listed there.
func (h *UnitHierarchy) Rank(region, fuelBin, facilityID, unitID string) (int, bool) {
	for _, r := range h.slices[region+":"+fuelBin] {
		if r.FacilityID == facilityID && r.UnitID == unitID {
			return r.Rank, true
		}
	}
	return 0, false
}

// Len returns the number of hierarchy entries.
func (h *UnitHierarchy) Len() int {
	n := 0
	for _, recs := range h.slices {
		n += len(recs)
	}
	return n
}

const genericUnitFields = 4

// ReadGenericUnits reads the table of units created by the projection
// to cover demand, returning their facility:unit keys. The fields
// are, in order: region, fuel bin, facility ID, unit ID.
func ReadGenericUnits(f *TableFile) (map[string]bool, error) {
	units := make(map[string]bool)
	for {
		rec, err := f.r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("egupro: reading %s: %v", f.Name(), err)
		}
		if len(rec) != genericUnitFields {
			return nil, fmt.Errorf("egupro: reading %s: record should have %d fields but instead has %d",
				f.Name(), genericUnitFields, len(rec))
		}
		if strings.Contains(strings.ToLower(rec[0]), "region") {
			// This record is an uncommented header so ignore it.
			continue
		}
		units[trimString(rec[2])+":"+trimString(rec[3])] = true
	}
	return units, nil
}

// GrowthMatrix holds the specified growth factors for each region and
// fuel bin slice, one matrix row per slice and one column per named
// factor. Missing cells are NaN.
type GrowthMatrix struct {
	// Slices holds the region:fuel_bin keys in matrix row order.
	Slices []string

	// Factors holds the factor names in matrix column order.
	Factors []string

	M *mat.Dense

	rows, cols map[string]int
}

// Factor returns the named growth factor for a region and fuel bin,
// and whether both the slice and the factor exist.
func (g *GrowthMatrix) Factor(region, fuelBin, factor string) (float64, bool) {
	j, ok := g.rows[region+":"+fuelBin]
	if !ok {
		return math.NaN(), false
	}
	i, ok := g.cols[factor]
	if !ok {
		return math.NaN(), false
	}
	return g.M.At(j, i), true
}

// ReadGrowthWorkbook reads the specified growth factors from a
// workbook sheet. The first row holds the factor names starting in the
// third column; each following row holds a region, a fuel bin, and
// that slice's factors. Empty cells become NaN.
func ReadGrowthWorkbook(fileName, sheet string) (*GrowthMatrix, error) {
	f, err := loadWorkbook(fileName)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("egupro: reading growth factors; no sheet %s", sheet)
	}
	if s.MaxRow < 1 || s.MaxCol < 3 {
		return nil, fmt.Errorf("egupro: reading growth factors: sheet %s is too small", sheet)
	}

	g := &GrowthMatrix{
		rows: make(map[string]int),
		cols: make(map[string]int),
	}
	for i := 2; i < s.MaxCol; i++ {
		name := strings.TrimSpace(s.Cell(0, i).Value)
		if name == "" {
			break
		}
		g.cols[name] = len(g.Factors)
		g.Factors = append(g.Factors, name)
	}
	if len(g.Factors) == 0 {
		return nil, fmt.Errorf("egupro: reading growth factors: sheet %s has no factor names", sheet)
	}

	var vals []float64
	for j := 1; j < s.MaxRow; j++ {
		region := trimString(s.Cell(j, 0).Value)
		fuelBin := trimString(s.Cell(j, 1).Value)
		if region == "" {
			continue
		}
		key := region + ":" + fuelBin
		if _, ok := g.rows[key]; ok {
			return nil, fmt.Errorf("egupro: reading growth factors: duplicate slice %s", key)
		}
		g.rows[key] = len(g.Slices)
		g.Slices = append(g.Slices, key)
		for i := range g.Factors {
			cell := strings.TrimSpace(s.Cell(j, 2+i).Value)
			if cell == "" {
				vals = append(vals, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("egupro: reading growth factors: %v", err)
			}
			vals = append(vals, v)
		}
	}
	if len(g.Slices) == 0 {
		return nil, fmt.Errorf("egupro: reading growth factors: sheet %s has no slices", sheet)
	}
	g.M = mat.NewDense(len(g.Slices), len(g.Factors), vals)
	return g, nil
}
