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
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/ctessum/unit"
	"github.com/ctessum/unit/badunit"
)

// reportCategories fixes the row order of the report tables.
var reportCategories = []Category{FullPartial, Switch, NewUnit, Retired}

// A RunReport summarizes one reconciliation run: row counts and mass
// totals per lifecycle category, the unit hours dropped because a unit
// matched no category, and the rows emitted with missing generation
// parameters.
type RunReport struct {
	Years Years

	// RowCount is the number of hourly activity rows per category.
	RowCount map[Category]int

	// BYTotals and FYTotals hold the pollutant mass totals per
	// category, in SI units.
	BYTotals, FYTotals map[Category]map[Pollutant]*unit.Unit

	// BYHeatInput and FYHeatInput hold heat input totals (mmBtu) per
	// category.
	BYHeatInput, FYHeatInput map[Category]float64

	// DroppedUnitHours counts excluded unit hours by region and fuel
	// bin.
	DroppedUnitHours map[string]int

	// MissingParms counts rows emitted with null growth fields by
	// region and fuel bin.
	MissingParms map[string]int
}

func newRunReport(years Years) *RunReport {
	return &RunReport{
		Years:            years,
		RowCount:         make(map[Category]int),
		BYTotals:         make(map[Category]map[Pollutant]*unit.Unit),
		FYTotals:         make(map[Category]map[Pollutant]*unit.Unit),
		BYHeatInput:      make(map[Category]float64),
		FYHeatInput:      make(map[Category]float64),
		DroppedUnitHours: make(map[string]int),
		MissingParms:     make(map[string]int),
	}
}

func addMass(m map[Category]map[Pollutant]*unit.Unit, c Category, pol Pollutant, tons float64) {
	if _, ok := m[c]; !ok {
		m[c] = make(map[Pollutant]*unit.Unit)
	}
	v := badunit.Ton(tons)
	if cur, ok := m[c][pol]; ok {
		cur.Add(v)
	} else {
		m[c][pol] = v
	}
}

// AddActivity adds one hourly activity row to the report totals.
func (r *RunReport) AddActivity(row *HourlyActivityRecord) {
	c := row.Category
	r.RowCount[c]++
	addMass(r.BYTotals, c, SO2, row.BYSO2Mass)
	addMass(r.BYTotals, c, NOx, row.BYNOxMass)
	addMass(r.BYTotals, c, CO2, row.BYCO2Mass)
	addMass(r.FYTotals, c, SO2, row.FYSO2Mass)
	addMass(r.FYTotals, c, NOx, row.FYNOxMass)
	addMass(r.FYTotals, c, CO2, row.FYCO2Mass)
	r.BYHeatInput[c] += row.BYHeatInput
	r.FYHeatInput[c] += row.FYHeatInput
}

// AddDropped counts n excluded unit hours for the given region and fuel
// bin.
func (r *RunReport) AddDropped(region, fuelBin string, n int) {
	r.DroppedUnitHours[region+":"+fuelBin] += n
}

// AddMissingParms counts one row emitted with null growth fields for
// the given region and fuel bin.
func (r *RunReport) AddMissingParms(region, fuelBin string) {
	r.MissingParms[region+":"+fuelBin]++
}

// TotalDropped returns the number of excluded unit hours across all
// regions and fuel bins.
func (r *RunReport) TotalDropped() int {
	var n int
	for _, v := range r.DroppedUnitHours {
		n += v
	}
	return n
}

// merge adds the contents of o into the receiver.
func (r *RunReport) merge(o *RunReport) {
	for c, n := range o.RowCount {
		r.RowCount[c] += n
	}
	for c, pols := range o.BYTotals {
		for pol, v := range pols {
			if _, ok := r.BYTotals[c]; !ok {
				r.BYTotals[c] = make(map[Pollutant]*unit.Unit)
			}
			if cur, ok := r.BYTotals[c][pol]; ok {
				cur.Add(v)
			} else {
				r.BYTotals[c][pol] = v
			}
		}
	}
	for c, pols := range o.FYTotals {
		for pol, v := range pols {
			if _, ok := r.FYTotals[c]; !ok {
				r.FYTotals[c] = make(map[Pollutant]*unit.Unit)
			}
			if cur, ok := r.FYTotals[c][pol]; ok {
				cur.Add(v)
			} else {
				r.FYTotals[c][pol] = v
			}
		}
	}
	for c, v := range o.BYHeatInput {
		r.BYHeatInput[c] += v
	}
	for c, v := range o.FYHeatInput {
		r.FYHeatInput[c] += v
	}
	for k, v := range o.DroppedUnitHours {
		r.DroppedUnitHours[k] += v
	}
	for k, v := range o.MissingParms {
		r.MissingParms[k] += v
	}
}

// TotalsTable returns a table of the reconciled totals, where the rows
// are the lifecycle categories and the columns are the pollutant masses
// and heat inputs for the two years.
func (r *RunReport) TotalsTable() Table {
	pols := []Pollutant{SO2, NOx, CO2}
	var massDim string
	for _, m := range []map[Category]map[Pollutant]*unit.Unit{r.BYTotals, r.FYTotals} {
		for _, pp := range m {
			for _, v := range pp {
				massDim = v.Dimensions().String()
			}
		}
	}

	header := []string{"Category", "Rows"}
	for _, yr := range []string{"BY", "FY"} {
		for _, pol := range pols {
			h := fmt.Sprintf("%s %s", yr, pol)
			if massDim != "" {
				h += fmt.Sprintf(" (%s)", massDim)
			}
			header = append(header, h)
		}
		header = append(header, yr+" Heat Input (mmBtu)")
	}
	t := Table{header}

	for _, c := range reportCategories {
		if r.RowCount[c] == 0 {
			continue
		}
		row := []string{c.String(), strconv.Itoa(r.RowCount[c])}
		for _, pol := range pols {
			row = append(row, fmt.Sprintf("%g", massValue(r.BYTotals, c, pol)))
		}
		row = append(row, fmt.Sprintf("%g", r.BYHeatInput[c]))
		for _, pol := range pols {
			row = append(row, fmt.Sprintf("%g", massValue(r.FYTotals, c, pol)))
		}
		row = append(row, fmt.Sprintf("%g", r.FYHeatInput[c]))
		t = append(t, row)
	}
	return t
}

func massValue(m map[Category]map[Pollutant]*unit.Unit, c Category, pol Pollutant) float64 {
	if u, ok := m[c][pol]; ok {
		return u.Value()
	}
	return 0
}

// DroppedTable returns a table of excluded unit hours and missing
// generation-parameter rows, keyed by region and fuel bin.
func (r *RunReport) DroppedTable() Table {
	keys := make(map[string]struct{})
	for k := range r.DroppedUnitHours {
		keys[k] = struct{}{}
	}
	for k := range r.MissingParms {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	t := Table{{"Region:FuelBin", "Dropped Unit-Hours", "Missing Parms Rows"}}
	for _, k := range sorted {
		t = append(t, []string{k,
			strconv.Itoa(r.DroppedUnitHours[k]),
			strconv.Itoa(r.MissingParms[k])})
	}
	return t
}

// A Table holds a text representation of report data.
type Table [][]string

// Tabbed creates a tab-separated table.
func (t Table) Tabbed(w io.Writer) (n int, err error) {
	ww := new(tabwriter.Writer)
	ww.Init(w, 0, 2, 0, '\t', 0)
	var nn int
	for _, l := range t {
		for _, r := range l {
			nn, err = fmt.Fprint(ww, r+"\t")
			if err != nil {
				return
			}
			n += nn
		}
		nn, err = fmt.Fprint(ww, "\n")
		if err != nil {
			return
		}
		n += nn
	}
	return n, ww.Flush()
}
