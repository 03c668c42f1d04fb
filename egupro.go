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

// Package egupro reconciles hour-by-hour generating unit activity
// between a historical base year and a projected future year, and
// rolls the reconciled record up into daily, annual, regional, and
// state summaries.
package egupro

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.4.1"

// EngineManipulator is a function that operates on an Engine to
// initialize it, advance the run, or clean up afterwards.
type EngineManipulator func(e *Engine) error

// Engine holds the data and state of one reconciliation run. The
// functions in InitFuncs, RunFuncs, and CleanupFuncs define what the
// run does; the remaining fields hold the input tables and the derived
// summaries. Each derived summary is written once: a stage that finds
// its output already present refuses to run again.
type Engine struct {
	// InitFuncs are the functions for loading and indexing the input
	// tables. They run in order when Init is called.
	InitFuncs []EngineManipulator

	// RunFuncs are the functions that reconcile and aggregate. They
	// run in order when Run is called.
	RunFuncs []EngineManipulator

	// CleanupFuncs are the functions that write results and shut the
	// run down. They run in order when Cleanup is called.
	CleanupFuncs []EngineManipulator

	// Input tables.
	InputVars    []*InputVarsRecord
	Units        []*UnitRecord
	Base         map[string][]*HourlyBaseRecord
	Projected    map[string][]*HourlyProjectedRecord
	Parms        map[string]*GenerationParmsRecord
	Hierarchy    *UnitHierarchy
	GenericUnits map[string]bool
	Growth       *GrowthMatrix

	// Index is the run calendar, created by BuildCalendar.
	Index *CalendarIndex

	// Derived summaries.
	Hourly      []*HourlyActivityRecord
	Daily       []*DailyActivityRecord
	Annual      []*AnnualUnitRecord
	Regional    []*RegionalHourlyRecord
	StateHourly []*StateHourlyRecord
	Report      *RunReport
	Integrity   *IntegrityResult

	// NProcs is the number of partitions reconciled concurrently. The
	// default is the number of processors.
	NProcs int

	// Log receives run progress information. The default is the logrus
	// standard logger.
	Log logrus.FieldLogger

	initialized, finished bool
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Init initializes the run by running the InitFuncs in order, stopping
// at the first error.
func (e *Engine) Init() error {
	if e.initialized {
		return fmt.Errorf("egupro: engine has already been initialized")
	}
	e.initialized = true
	for _, f := range e.InitFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// Run advances the run by running the RunFuncs in order, stopping at
// the first error. Init must be called first, and Run only runs once.
func (e *Engine) Run() error {
	if !e.initialized {
		return fmt.Errorf("egupro: engine must be initialized before running")
	}
	if e.finished {
		return fmt.Errorf("egupro: engine has already been run")
	}
	e.finished = true
	for _, f := range e.RunFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup shuts the run down by running the CleanupFuncs in order,
// stopping at the first error.
func (e *Engine) Cleanup() error {
	for _, f := range e.CleanupFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// TableSet holds the opened input tables of one run. The input
// variables, unit attributes, hourly base year, and hourly future
// year tables are required; the rest may be nil.
type TableSet struct {
	InputVariables  *TableFile
	UnitAttributes  *TableFile
	HourlyBase      []*TableFile
	HourlyProjected []*TableFile
	GenerationParms *TableFile
	UnitHierarchy   *TableFile
	GenericUnits    *TableFile
}

// LoadTables returns a function that reads the input tables into the
// engine. A missing required table is a fatal error; missing optional
// tables leave their derived quantities null or unflagged.
func LoadTables(ts *TableSet) EngineManipulator {
	return func(e *Engine) error {
		for _, check := range []struct {
			name    string
			missing bool
		}{
			{"input variables", ts.InputVariables == nil},
			{"unit attributes", ts.UnitAttributes == nil},
			{"hourly base year activity", len(ts.HourlyBase) == 0},
			{"hourly future year activity", len(ts.HourlyProjected) == 0},
		} {
			if check.missing {
				return ConfigurationError("egupro: missing required input table: " + check.name)
			}
		}
		var err error
		if e.InputVars, err = ReadInputVariables(ts.InputVariables); err != nil {
			return err
		}
		if e.Units, err = ReadUnitAttributes(ts.UnitAttributes); err != nil {
			return err
		}
		if e.Base, err = ReadHourlyBase(ts.HourlyBase...); err != nil {
			return err
		}
		if e.Projected, err = ReadHourlyProjected(ts.HourlyProjected...); err != nil {
			return err
		}
		if ts.GenerationParms != nil {
			if e.Parms, err = ReadGenerationParms(ts.GenerationParms); err != nil {
				return err
			}
		}
		if ts.UnitHierarchy != nil {
			if e.Hierarchy, err = ReadUnitHierarchy(ts.UnitHierarchy); err != nil {
				return err
			}
		}
		if ts.GenericUnits != nil {
			if e.GenericUnits, err = ReadGenericUnits(ts.GenericUnits); err != nil {
				return err
			}
		}
		e.logger().WithFields(logrus.Fields{
			"units":           len(e.Units),
			"base_units":      len(e.Base),
			"projected_units": len(e.Projected),
		}).Info("input tables loaded")
		return nil
	}
}

// BuildCalendar returns a function that creates the run calendar from
// the input variables and indexes the dispatch hour ordering from the
// future year records.
func BuildCalendar() EngineManipulator {
	return func(e *Engine) error {
		index, err := NewCalendarIndex(e.InputVars)
		if err != nil {
			return err
		}
		index.AddHierarchy(e.Projected)
		e.Index = index
		return nil
	}
}

// ReconcileHours returns a function that classifies the units within
// the filter and joins their base year and future year hourly records
// into the hourly activity table.
func ReconcileHours(filter *FilterContext) EngineManipulator {
	return func(e *Engine) error {
		if e.Hourly != nil {
			return fmt.Errorf("egupro: hourly activity has already been generated")
		}
		r := &Reconciler{
			Index:     e.Index,
			Units:     filter.KeepUnits(e.Units),
			Base:      e.Base,
			Projected: e.Projected,
			Parms:     e.Parms,
			NProcs:    e.NProcs,
			Log:       e.Log,
		}
		rows, report, err := r.Reconcile()
		if err != nil {
			return err
		}
		e.Hourly = rows
		e.Report = report
		return nil
	}
}

// SummarizeDaily returns a function that reduces the hourly activity
// to the daily summary.
func SummarizeDaily() EngineManipulator {
	return func(e *Engine) error {
		if e.Daily != nil {
			return fmt.Errorf("egupro: daily summary has already been generated")
		}
		e.Daily = AggregateDaily(e.Hourly, e.Index)
		return nil
	}
}

// SummarizeAnnual returns a function that reduces the hourly and daily
// activity to the annual unit summary.
func SummarizeAnnual() EngineManipulator {
	return func(e *Engine) error {
		if e.Annual != nil {
			return fmt.Errorf("egupro: annual summary has already been generated")
		}
		a := &AnnualAggregator{
			Index:        e.Index,
			Units:        e.Units,
			Hierarchy:    e.Hierarchy,
			GenericUnits: e.GenericUnits,
		}
		e.Annual = a.Aggregate(e.Hourly, e.Daily)
		return nil
	}
}

// SummarizeRegions returns a function that rolls the hourly activity
// up to regions.
func SummarizeRegions() EngineManipulator {
	return func(e *Engine) error {
		if e.Regional != nil {
			return fmt.Errorf("egupro: regional rollup has already been generated")
		}
		e.Regional = RollupRegional(e.Hourly)
		return nil
	}
}

// SummarizeStates returns a function that rolls the hourly activity up
// to states.
func SummarizeStates() EngineManipulator {
	return func(e *Engine) error {
		if e.StateHourly != nil {
			return fmt.Errorf("egupro: state rollup has already been generated")
		}
		e.StateHourly = RollupState(e.Hourly)
		return nil
	}
}

// CheckIntegrity returns a function that verifies the aggregates
// conserve the hourly totals and, when a growth matrix is loaded,
// compares realized against specified growth for the named factor.
// Failures are reported through the run log, never as errors.
func CheckIntegrity(growthFactor string) EngineManipulator {
	return func(e *Engine) error {
		c := &IntegrityChecker{Log: e.Log}
		e.Integrity = c.Check(e.Hourly, e.Daily, e.Annual, e.Regional, e.StateHourly)
		if e.Growth != nil && growthFactor != "" {
			c.CheckGrowth(e.Hourly, e.Growth, growthFactor)
		}
		return nil
	}
}

// WriteTables returns a function that writes each generated summary to
// a CSV file in the given directory. The hourly and daily tables are
// restricted to the filter's reporting span.
func WriteTables(dir string, filter *FilterContext) EngineManipulator {
	return func(e *Engine) error {
		write := func(name string, t Table) error {
			return t.WriteCSVFile(filepath.Join(dir, name))
		}
		if e.Hourly != nil {
			if err := write("hourly_activity.csv", HourlyActivityTable(filterHourly(e.Hourly, e.Index, filter))); err != nil {
				return err
			}
		}
		if e.Daily != nil {
			if err := write("daily_activity.csv", DailyActivityTable(filterDaily(e.Daily, e.Index, filter))); err != nil {
				return err
			}
		}
		if e.Annual != nil {
			if err := write("annual_summary.csv", AnnualSummaryTable(e.Annual)); err != nil {
				return err
			}
		}
		if e.Regional != nil {
			if err := write("regional_hourly.csv", RegionalSummaryTable(e.Regional)); err != nil {
				return err
			}
		}
		if e.StateHourly != nil {
			if err := write("state_hourly.csv", StateSummaryTable(e.StateHourly)); err != nil {
				return err
			}
		}
		return nil
	}
}

// filterHourly returns the rows within the filter's reporting span.
func filterHourly(rows []*HourlyActivityRecord, index *CalendarIndex, filter *FilterContext) []*HourlyActivityRecord {
	if filter.Span() == Annual {
		return rows
	}
	out := make([]*HourlyActivityRecord, 0, len(rows))
	for _, r := range rows {
		if filter.KeepHour(index, r.CalendarHour) {
			out = append(out, r)
		}
	}
	return out
}

// filterDaily returns the daily records whose day begins within the
// filter's reporting span.
func filterDaily(daily []*DailyActivityRecord, index *CalendarIndex, filter *FilterContext) []*DailyActivityRecord {
	if filter.Span() == Annual {
		return daily
	}
	out := make([]*DailyActivityRecord, 0, len(daily))
	for _, d := range daily {
		if filter.KeepHour(index, (d.Day-1)*hoursPerDay+1) {
			out = append(out, d)
		}
	}
	return out
}

// WriteWorkbookOutput returns a function that writes the generated
// summaries as sheets of one workbook file.
func WriteWorkbookOutput(fileName string) EngineManipulator {
	return func(e *Engine) error {
		var tables []NamedTable
		if e.Hourly != nil {
			tables = append(tables, NamedTable{Name: "Hourly Activity", Table: HourlyActivityTable(e.Hourly)})
		}
		if e.Daily != nil {
			tables = append(tables, NamedTable{Name: "Daily Activity", Table: DailyActivityTable(e.Daily)})
		}
		if e.Annual != nil {
			tables = append(tables, NamedTable{Name: "Annual Summary", Table: AnnualSummaryTable(e.Annual)})
		}
		if e.Regional != nil {
			tables = append(tables, NamedTable{Name: "Regional Hourly", Table: RegionalSummaryTable(e.Regional)})
		}
		if e.StateHourly != nil {
			tables = append(tables, NamedTable{Name: "State Hourly", Table: StateSummaryTable(e.StateHourly)})
		}
		return WriteWorkbook(fileName, tables)
	}
}

// Output returns a function that evaluates the output expressions over
// the annual summary and writes the result as a point shapefile.
func (o *Outputter) Output() EngineManipulator {
	return func(e *Engine) error {
		return o.Write(e.Annual, e.Units)
	}
}

// CheckOutputVars returns a function that validates the output
// variables before the run spends time reconciling.
func (o *Outputter) CheckOutputVars() EngineManipulator {
	return func(e *Engine) error {
		return o.Check()
	}
}

// PrintReport returns a function that writes the run report tables
// to w.
func PrintReport(w io.Writer) EngineManipulator {
	return func(e *Engine) error {
		if e.Report == nil {
			return nil
		}
		if _, err := e.Report.TotalsTable().Tabbed(w); err != nil {
			return err
		}
		if e.Report.TotalDropped() > 0 || len(e.Report.MissingParms) > 0 {
			if _, err := e.Report.DroppedTable().Tabbed(w); err != nil {
				return err
			}
		}
		return nil
	}
}
