/*
Copyright © 2020 the EGUPro authors.
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
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/tealeg/xlsx"
)

// formatValue renders a derived quantity for output. Null results
// (NaN) become empty cells.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatYN(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// WriteCSV writes the table in CSV form.
func (t Table) WriteCSV(w io.Writer) error {
	return csv.NewWriter(w).WriteAll(t)
}

// WriteCSVFile writes the table to the named file in CSV form.
func (t Table) WriteCSVFile(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("egupro: creating output file: %v", err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("egupro: writing %s: %v", fileName, err)
	}
	return f.Close()
}

// HourlyActivityTable renders the reconciled hourly rows, one output
// row per input row, in their existing order.
func HourlyActivityTable(rows []*HourlyActivityRecord) Table {
	t := Table{{
		"BY Region", "BY Fuel Bin", "FY Region", "FY Fuel Bin",
		"Facility ID", "Unit ID", "Facility Name", "State", "Category",
		"Calendar Hour", "BY Hierarchy Hour", "FY Hierarchy Hour", "HI Limit",
		"BY GLOAD (MW)", "FY GLOAD (MW)",
		"BY Heat Input (mmBtu)", "FY Heat Input (mmBtu)",
		"BY SO2 Mass (Tons)", "FY SO2 Mass (Tons)",
		"BY NOx Mass (Tons)", "FY NOx Mass (Tons)",
		"BY CO2 Mass (Tons)", "FY CO2 Mass (Tons)",
		"Growth Rate", "Adjusted Growth Rate",
	}}
	for _, r := range rows {
		id := r.FutureIdentity
		if id == (UnitIdentity{}) {
			id = r.BaseIdentity
		}
		t = append(t, []string{
			r.BaseIdentity.Region, r.BaseIdentity.FuelBin,
			r.FutureIdentity.Region, r.FutureIdentity.FuelBin,
			id.FacilityID, id.UnitID, r.FacilityName, r.State, r.Category.String(),
			strconv.Itoa(r.CalendarHour),
			strconv.Itoa(r.BYHierarchyHour), strconv.Itoa(r.FYHierarchyHour),
			formatYN(r.HourlyHILimit),
			formatValue(r.BYGLoad), formatValue(r.FYGLoad),
			formatValue(r.BYHeatInput), formatValue(r.FYHeatInput),
			formatValue(r.BYSO2Mass), formatValue(r.FYSO2Mass),
			formatValue(r.BYNOxMass), formatValue(r.FYNOxMass),
			formatValue(r.BYCO2Mass), formatValue(r.FYCO2Mass),
			formatValue(r.GrowthRate), formatValue(r.AdjustedGrowthRate),
		})
	}
	return t
}

// DailyActivityTable renders the daily summary.
func DailyActivityTable(daily []*DailyActivityRecord) Table {
	t := Table{{
		"Facility ID", "Unit ID", "Facility Name", "State", "Category",
		"Day", "Ozone Fraction",
		"BY GLOAD (MW)", "FY GLOAD (MW)",
		"BY Heat Input (mmBtu)", "FY Heat Input (mmBtu)",
		"BY SO2 Mass (Tons)", "FY SO2 Mass (Tons)",
		"BY NOx Mass (Tons)", "FY NOx Mass (Tons)",
		"BY CO2 Mass (Tons)", "FY CO2 Mass (Tons)",
	}}
	for _, d := range daily {
		id := d.FutureIdentity
		if id == (UnitIdentity{}) {
			id = d.BaseIdentity
		}
		t = append(t, []string{
			id.FacilityID, id.UnitID, d.FacilityName, d.State, d.Category.String(),
			strconv.Itoa(d.Day), formatValue(d.OzoneFraction),
			formatValue(d.BYGLoad), formatValue(d.FYGLoad),
			formatValue(d.BYHeatInput), formatValue(d.FYHeatInput),
			formatValue(d.BYSO2Mass), formatValue(d.FYSO2Mass),
			formatValue(d.BYNOxMass), formatValue(d.FYNOxMass),
			formatValue(d.BYCO2Mass), formatValue(d.FYCO2Mass),
		})
	}
	return t
}

// AnnualSummaryTable renders the annual unit summary.
func AnnualSummaryTable(annual []*AnnualUnitRecord) Table {
	t := Table{{
		"Facility ID", "Unit ID", "Facility Name", "State",
		"BY Region", "BY Fuel Bin", "FY Region", "FY Fuel Bin", "Category",
		"BY GLOAD (MW-hrs)", "FY GLOAD (MW-hrs)",
		"BY Heat Input (mmBtu)", "FY Heat Input (mmBtu)",
		"BY SO2 Mass (Tons)", "FY SO2 Mass (Tons)",
		"BY NOx Mass (Tons)", "FY NOx Mass (Tons)",
		"BY CO2 Mass (Tons)", "FY CO2 Mass (Tons)",
		"BY Utilization", "FY Utilization",
		"BY Ozone Heat Input (mmBtu)", "FY Ozone Heat Input (mmBtu)",
		"BY Ozone NOx Mass (Tons)", "FY Ozone NOx Mass (Tons)",
		"BY Non-Ozone NOx Mass (Tons)", "FY Non-Ozone NOx Mass (Tons)",
		"Ozone Active Days", "FY Ozone NOx Per Day (Tons)",
		"FY Max Hourly SO2 Mass (Tons)", "FY Max Hourly NOx Mass (Tons)",
		"BY SO2 Rate (lbs/mmBtu)", "FY SO2 Rate (lbs/mmBtu)",
		"BY NOx Rate (lbs/mmBtu)", "FY NOx Rate (lbs/mmBtu)",
		"Generation Deficit", "Generic Unit",
	}}
	for _, a := range annual {
		id := a.FutureIdentity
		if id == (UnitIdentity{}) {
			id = a.BaseIdentity
		}
		t = append(t, []string{
			id.FacilityID, id.UnitID, a.FacilityName, a.State,
			a.BaseIdentity.Region, a.BaseIdentity.FuelBin,
			a.FutureIdentity.Region, a.FutureIdentity.FuelBin, a.Category.String(),
			formatValue(a.BYGLoad), formatValue(a.FYGLoad),
			formatValue(a.BYHeatInput), formatValue(a.FYHeatInput),
			formatValue(a.BYSO2Mass), formatValue(a.FYSO2Mass),
			formatValue(a.BYNOxMass), formatValue(a.FYNOxMass),
			formatValue(a.BYCO2Mass), formatValue(a.FYCO2Mass),
			formatValue(a.BYUtilization), formatValue(a.FYUtilization),
			formatValue(a.BYOzoneHeatInput), formatValue(a.FYOzoneHeatInput),
			formatValue(a.BYOzoneNOxMass), formatValue(a.FYOzoneNOxMass),
			formatValue(a.BYNonOzoneNOxMass), formatValue(a.FYNonOzoneNOxMass),
			strconv.Itoa(a.OzoneActiveDays), formatValue(a.FYOzoneNOxPerDay),
			formatValue(a.FYMaxSO2Mass), formatValue(a.FYMaxNOxMass),
			formatValue(a.BYSO2Rate), formatValue(a.FYSO2Rate),
			formatValue(a.BYNOxRate), formatValue(a.FYNOxRate),
			formatYN(a.GenerationDeficit), formatYN(a.GenericUnit),
		})
	}
	return t
}

// RegionalSummaryTable renders the regional hourly rollup.
func RegionalSummaryTable(recs []*RegionalHourlyRecord) Table {
	t := Table{{
		"Region", "Fuel Bin", "Hierarchy Hour",
		"BY GLOAD (MW)", "FY GLOAD (MW)",
		"BY Heat Input (mmBtu)", "FY Heat Input (mmBtu)",
		"BY SO2 Mass (Tons)", "FY SO2 Mass (Tons)",
		"BY NOx Mass (Tons)", "FY NOx Mass (Tons)",
		"BY CO2 Mass (Tons)", "FY CO2 Mass (Tons)",
		"Growth Rate", "Adjusted Growth Rate",
	}}
	for _, r := range recs {
		t = append(t, []string{
			r.Region, r.FuelBin, strconv.Itoa(r.HierarchyHour),
			formatValue(r.BYGLoad), formatValue(r.FYGLoad),
			formatValue(r.BYHeatInput), formatValue(r.FYHeatInput),
			formatValue(r.BYSO2Mass), formatValue(r.FYSO2Mass),
			formatValue(r.BYNOxMass), formatValue(r.FYNOxMass),
			formatValue(r.BYCO2Mass), formatValue(r.FYCO2Mass),
			formatValue(r.GrowthRate), formatValue(r.AdjustedGrowthRate),
		})
	}
	return t
}

// StateSummaryTable renders the state hourly rollup.
func StateSummaryTable(recs []*StateHourlyRecord) Table {
	t := Table{{
		"State", "Fuel Bin", "Hierarchy Hour",
		"BY GLOAD (MW)", "FY GLOAD (MW)",
		"BY Heat Input (mmBtu)", "FY Heat Input (mmBtu)",
		"BY SO2 Mass (Tons)", "FY SO2 Mass (Tons)",
		"BY NOx Mass (Tons)", "FY NOx Mass (Tons)",
		"BY CO2 Mass (Tons)", "FY CO2 Mass (Tons)",
		"Growth Rate", "Adjusted Growth Rate",
	}}
	for _, s := range recs {
		t = append(t, []string{
			s.State, s.FuelBin, strconv.Itoa(s.HierarchyHour),
			formatValue(s.BYGLoad), formatValue(s.FYGLoad),
			formatValue(s.BYHeatInput), formatValue(s.FYHeatInput),
			formatValue(s.BYSO2Mass), formatValue(s.FYSO2Mass),
			formatValue(s.BYNOxMass), formatValue(s.FYNOxMass),
			formatValue(s.BYCO2Mass), formatValue(s.FYCO2Mass),
			formatValue(s.GrowthRate), formatValue(s.AdjustedGrowthRate),
		})
	}
	return t
}

// NamedTable pairs a table with the sheet name it is written under.
type NamedTable struct {
	Name  string
	Table Table
}

// WriteWorkbook writes the tables as sheets of one workbook file, in
// the given order.
func WriteWorkbook(fileName string, tables []NamedTable) error {
	f := xlsx.NewFile()
	for _, nt := range tables {
		sheet, err := f.AddSheet(nt.Name)
		if err != nil {
			return fmt.Errorf("egupro: adding workbook sheet %s: %v", nt.Name, err)
		}
		for _, row := range nt.Table {
			r := sheet.AddRow()
			for _, val := range row {
				c := r.AddCell()
				c.Value = val
			}
		}
	}
	if err := f.Save(fileName); err != nil {
		return fmt.Errorf("egupro: writing workbook %s: %v", fileName, err)
	}
	return nil
}

// shapefileNoData fills attribute fields whose value is null; the
// dBase attribute format has no null marker for numbers.
const shapefileNoData = -9999.

// wgs84 is the projection definition written alongside point output.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// annualModelVars lists the variables that output expressions can use,
// with the value of each for one row of the annual summary.
var annualModelVars = []struct {
	name  string
	value func(a *AnnualUnitRecord) float64
}{
	{"by_gload", func(a *AnnualUnitRecord) float64 { return a.BYGLoad }},
	{"fy_gload", func(a *AnnualUnitRecord) float64 { return a.FYGLoad }},
	{"by_heat", func(a *AnnualUnitRecord) float64 { return a.BYHeatInput }},
	{"fy_heat", func(a *AnnualUnitRecord) float64 { return a.FYHeatInput }},
	{"by_so2", func(a *AnnualUnitRecord) float64 { return a.BYSO2Mass }},
	{"fy_so2", func(a *AnnualUnitRecord) float64 { return a.FYSO2Mass }},
	{"by_nox", func(a *AnnualUnitRecord) float64 { return a.BYNOxMass }},
	{"fy_nox", func(a *AnnualUnitRecord) float64 { return a.FYNOxMass }},
	{"by_co2", func(a *AnnualUnitRecord) float64 { return a.BYCO2Mass }},
	{"fy_co2", func(a *AnnualUnitRecord) float64 { return a.FYCO2Mass }},
	{"by_util", func(a *AnnualUnitRecord) float64 { return a.BYUtilization }},
	{"fy_util", func(a *AnnualUnitRecord) float64 { return a.FYUtilization }},
	{"by_so2rate", func(a *AnnualUnitRecord) float64 { return a.BYSO2Rate }},
	{"fy_so2rate", func(a *AnnualUnitRecord) float64 { return a.FYSO2Rate }},
	{"by_noxrate", func(a *AnnualUnitRecord) float64 { return a.BYNOxRate }},
	{"fy_noxrate", func(a *AnnualUnitRecord) float64 { return a.FYNOxRate }},
	{"os_fy_heat", func(a *AnnualUnitRecord) float64 { return a.FYOzoneHeatInput }},
	{"os_fy_nox", func(a *AnnualUnitRecord) float64 { return a.FYOzoneNOxMass }},
	{"os_days", func(a *AnnualUnitRecord) float64 { return float64(a.OzoneActiveDays) }},
	{"max_fy_so2", func(a *AnnualUnitRecord) float64 { return a.FYMaxSO2Mass }},
	{"max_fy_nox", func(a *AnnualUnitRecord) float64 { return a.FYMaxNOxMass }},
	{"deficit", func(a *AnnualUnitRecord) float64 { return boolVal(a.GenerationDeficit) }},
	{"generic", func(a *AnnualUnitRecord) float64 { return boolVal(a.GenericUnit) }},
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Outputter evaluates user-requested expressions over the annual unit
// summary and writes the results as a point shapefile at the unit
// locations.
//
// outputVariables maps the names of the attribute fields to be written
// to expressions defining how they are calculated from the variables
// in annualModelVars, from other output variables, and from the
// output functions.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions. Default functions include:
//
// 'exp(x)', the exponential function e^x.
//
// 'sqrt(x)', the square root.
//
// 'max(a, b)', the larger of two values.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("egupro: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
		"sqrt": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("egupro: got %d arguments for function 'sqrt', but needs 1", len(arg))
			}
			return math.Sqrt(arg[0].(float64)), nil
		},
		"max": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("egupro: got %d arguments for function 'max', but needs 2", len(args))
			}
			return math.Max(args[0].(float64), args[1].(float64)), nil
		},
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := &Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}
	if err := o.expandDerivatives(); err != nil {
		return nil, err
	}
	return o, nil
}

func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, val := range s {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// expressionVars returns the unique variable names an expression uses.
func (o *Outputter) expressionVars(name, expr string) ([]string, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
	if err != nil {
		return nil, fmt.Errorf("egupro: output variable %s: %v", name, err)
	}
	return removeDuplicates(e.Vars()), nil
}

// expandDerivatives replaces references to user-defined output
// variables by the expressions that define them, leaving only
// variables from annualModelVars, then records those as the model
// variables. Definitions that reference each other in a cycle are an
// error.
func (o *Outputter) expandDerivatives() error {
	// A variable name only counts as a reference when it stands alone,
	// not as part of a longer name: 'fy_so2' must not match inside
	// 'fy_so2rate'.
	for iter := 0; ; iter++ {
		if iter > len(o.outputVariables) {
			return fmt.Errorf("egupro: output variables contain a circular definition")
		}
		changed := false
		for key, expr := range o.outputVariables {
			vars, err := o.expressionVars(key, expr)
			if err != nil {
				return err
			}
			for _, v := range vars {
				def, ok := o.outputVariables[v]
				if !ok || v == key || def == v {
					continue
				}
				re := regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
				o.outputVariables[key] = re.ReplaceAllString(o.outputVariables[key], "("+def+")")
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	o.modelVariables = o.modelVariables[:0]
	for key, expr := range o.outputVariables {
		vars, err := o.expressionVars(key, expr)
		if err != nil {
			return err
		}
		o.modelVariables = append(o.modelVariables, vars...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return nil
}

// checkModelVars checks that the variables required to calculate the
// requested output are available in the annual summary.
func (o *Outputter) checkModelVars() error {
	avail := make(map[string]bool, len(annualModelVars))
	for _, v := range annualModelVars {
		avail[v.name] = true
	}
	for _, v := range o.modelVariables {
		if !avail[v] {
			return fmt.Errorf("egupro: undefined variable name '%s'", v)
		}
	}
	return nil
}

// checkOutputNames checks (1) if any output variable names exceed 10
// characters and (2) if any include characters that are unsupported in
// shapefile field names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		long := len(key) > 10
		ok, err := regexp.MatchString("^[A-Za-z]\\w*$", key)
		if err != nil {
			panic(err)
		}
		if long && !ok {
			return fmt.Errorf("egupro: output variable name '%s' exceeds 10 characters and includes unsupported character(s)", key)
		} else if long {
			return fmt.Errorf("egupro: output variable name '%s' exceeds 10 characters", key)
		} else if !ok {
			return fmt.Errorf("egupro: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// Check validates the output variable names and their expressions.
func (o *Outputter) Check() error {
	if err := o.checkModelVars(); err != nil {
		return err
	}
	return checkOutputNames(o.outputVariables)
}

// Write evaluates the output expressions for each row of the annual
// summary and writes a point shapefile at the unit locations. Units
// without an attribute record have no location and are skipped. Null
// results are written as the no-data value.
func (o *Outputter) Write(annual []*AnnualUnitRecord, units []*UnitRecord) error {
	if err := o.Check(); err != nil {
		return err
	}

	vars := make([]string, 0, len(o.outputVariables))
	for v := range o.outputVariables {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	exprs := make(map[string]*govaluate.EvaluableExpression, len(vars))
	for _, v := range vars {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(o.outputVariables[v], o.outputFunctions)
		if err != nil {
			return fmt.Errorf("egupro: output variable %s: %v", v, err)
		}
		exprs[v] = e
	}

	attrs := make(map[UnitIdentity]*UnitRecord, len(units))
	for _, u := range units {
		attrs[u.UnitIdentity] = u
	}

	fields := make([]goshp.Field, len(vars))
	for i, v := range vars {
		fields[i] = goshp.FloatField(v, 14, 8)
	}

	fileBase := strings.TrimSuffix(o.fileName, filepath.Ext(o.fileName))
	shape, err := shp.NewEncoderFromFields(fileBase+".shp", goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("egupro: creating output shapefile: %v", err)
	}

	for _, a := range annual {
		u := attrs[a.FutureIdentity]
		if u == nil {
			u = attrs[a.BaseIdentity]
		}
		if u == nil {
			continue
		}
		params := make(map[string]interface{}, len(annualModelVars))
		for _, mv := range annualModelVars {
			params[mv.name] = mv.value(a)
		}
		outFields := make([]interface{}, len(vars))
		for j, v := range vars {
			result, err := exprs[v].Evaluate(params)
			if err != nil {
				shape.Close()
				return fmt.Errorf("egupro: evaluating output variable %s: %v", v, err)
			}
			val, ok := result.(float64)
			if !ok {
				shape.Close()
				return fmt.Errorf("egupro: output variable %s is not a number", v)
			}
			if math.IsNaN(val) {
				val = shapefileNoData
			}
			outFields[j] = val
		}
		if err := shape.EncodeFields(geom.Point{X: u.Longitude, Y: u.Latitude}, outFields...); err != nil {
			shape.Close()
			return fmt.Errorf("egupro: writing output shapefile: %v", err)
		}
	}
	shape.Close()

	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("egupro: creating output prj file: %v", err)
	}
	fmt.Fprint(f, wgs84)
	return f.Close()
}

// DefaultOutputVariables returns the output variable set used when a
// run does not specify its own: the annual masses, heat inputs, and
// rates for both years.
func DefaultOutputVariables() map[string]string {
	vars := []string{
		"by_heat", "fy_heat", "by_so2", "fy_so2", "by_nox", "fy_nox",
		"by_co2", "fy_co2", "by_util", "fy_util", "fy_so2rate", "fy_noxrate",
	}
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v] = v
	}
	return out
}
