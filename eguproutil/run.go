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

// Package eguproutil runs EGUPro reconciliations from scenario files
// and command-line configuration.
package eguproutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/egupro"
)

// OutputToggles selects which summaries a run generates. Annual
// implies Daily, since the annual summary counts ozone season
// operating days from the daily summary. Hourly only selects whether
// the hourly table is written; the hourly rows always exist because
// every other summary is built from them.
type OutputToggles struct {
	Hourly, Daily, Annual, Regional, State bool
}

// RunOptions holds the settings of one reconciliation run.
type RunOptions struct {
	// Scenario locates the input tables.
	Scenario *Config

	// Filter restricts the run to part of the unit population and
	// restricts the hourly and daily outputs to part of the year.
	Filter *egupro.FilterContext

	// OutputDir is the directory the summary tables are written to.
	OutputDir string

	// OutputShapefile, if nonempty, is the location the unit-level
	// point shapefile is written to.
	OutputShapefile string

	// OutputWorkbook, if nonempty, is the location the summaries are
	// written to as one workbook.
	OutputWorkbook string

	// OutputVariables maps shapefile attribute fields to expressions
	// over the annual summary.
	OutputVariables map[string]string

	// LogFile, if nonempty, is the location the run log is copied to.
	LogFile string

	// NProcs is the number of partitions reconciled concurrently.
	NProcs int

	// GrowthFactor names the growth factor column that realized
	// growth is checked against.
	GrowthFactor string

	// Outputs selects the summaries to generate.
	Outputs OutputToggles

	// ReportOnly stops the run after reconciliation and prints the
	// run report instead of writing the summaries.
	ReportOnly bool

	// ReportWriter receives the run report. The default is standard
	// output.
	ReportWriter io.Writer
}

// Run reconciles the scenario specified by o and writes the requested
// outputs.
func Run(o *RunOptions) error {
	startTime := time.Now()
	outChan := outChan()
	ctx := context.TODO()

	log := logrus.New()
	if o.LogFile != "" {
		logfile, err := os.Create(o.LogFile)
		if err != nil {
			return fmt.Errorf("egupro: problem creating log file: %v", err)
		}
		defer logfile.Close()
		log.Out = io.MultiWriter(os.Stderr, logfile)
	}

	var outputter *egupro.Outputter
	if !o.ReportOnly && o.OutputShapefile != "" {
		var err error
		outputter, err = egupro.NewOutputter(o.OutputShapefile, o.OutputVariables, nil)
		if err != nil {
			return err
		}
		log.Info("parsed output variable expressions")
	}

	ts, closeTables, err := openTables(ctx, o.Scenario, outChan)
	if err != nil {
		return err
	}
	defer closeTables()

	// The allocation order and growth factors may arrive in workbook
	// form; load them after the tables so a table takes precedence.
	loadWorkbooks := func(e *egupro.Engine) error {
		if e.Hierarchy == nil && o.Scenario.UnitHierarchyWorkbook != "" {
			h, err := egupro.ReadUnitHierarchyWorkbook(
				maybeDownload(ctx, o.Scenario.UnitHierarchyWorkbook, outChan),
				o.Scenario.UnitHierarchySheet)
			if err != nil {
				return err
			}
			e.Hierarchy = h
		}
		if o.Scenario.GrowthWorkbook != "" {
			g, err := egupro.ReadGrowthWorkbook(
				maybeDownload(ctx, o.Scenario.GrowthWorkbook, outChan),
				o.Scenario.GrowthSheet)
			if err != nil {
				return err
			}
			e.Growth = g
		}
		return nil
	}

	initFuncs := []egupro.EngineManipulator{
		egupro.LoadTables(ts),
		egupro.BuildCalendar(),
		loadWorkbooks,
	}
	if outputter != nil {
		initFuncs = append(initFuncs, outputter.CheckOutputVars())
	}

	runFuncs := []egupro.EngineManipulator{
		egupro.ReconcileHours(o.Filter),
	}
	if !o.ReportOnly {
		if o.Outputs.Daily || o.Outputs.Annual {
			runFuncs = append(runFuncs, egupro.SummarizeDaily())
		}
		if o.Outputs.Annual {
			runFuncs = append(runFuncs, egupro.SummarizeAnnual())
		}
		if o.Outputs.Regional {
			runFuncs = append(runFuncs, egupro.SummarizeRegions())
		}
		if o.Outputs.State {
			runFuncs = append(runFuncs, egupro.SummarizeStates())
		}
		runFuncs = append(runFuncs, egupro.CheckIntegrity(o.GrowthFactor))
	}

	reportWriter := o.ReportWriter
	if reportWriter == nil {
		reportWriter = os.Stdout
	}
	cleanupFuncs := []egupro.EngineManipulator{
		egupro.PrintReport(reportWriter),
	}
	if !o.ReportOnly {
		if !o.Outputs.Hourly {
			cleanupFuncs = append(cleanupFuncs, func(e *egupro.Engine) error {
				e.Hourly = nil
				return nil
			})
		}
		cleanupFuncs = append(cleanupFuncs, egupro.WriteTables(o.OutputDir, o.Filter))
		if o.OutputWorkbook != "" {
			cleanupFuncs = append(cleanupFuncs, egupro.WriteWorkbookOutput(o.OutputWorkbook))
		}
		if outputter != nil {
			cleanupFuncs = append(cleanupFuncs, outputter.Output())
		}
	}

	e := &egupro.Engine{
		InitFuncs:    initFuncs,
		RunFuncs:     runFuncs,
		CleanupFuncs: cleanupFuncs,
		NProcs:       o.NProcs,
		Log:          log,
	}

	log.Info("initializing run")
	if err := e.Init(); err != nil {
		return fmt.Errorf("egupro: problem initializing run: %v", err)
	}
	if err := e.Run(); err != nil {
		return fmt.Errorf("egupro: problem reconciling: %v", err)
	}
	if err := e.Cleanup(); err != nil {
		return fmt.Errorf("egupro: problem shutting down run: %v", err)
	}
	log.WithField("elapsed", time.Since(startTime)).Info("run finished")
	return nil
}

// openTables opens the scenario's input tables, downloading any that
// are remote. The returned function closes the underlying files.
func openTables(ctx context.Context, c *Config, outChan chan string) (*egupro.TableSet, func(), error) {
	var files []*os.File
	closer := func() {
		for _, f := range files {
			f.Close()
		}
	}
	open := func(path string) (*egupro.TableFile, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(maybeDownload(ctx, path, outChan))
		if err != nil {
			return nil, fmt.Errorf("egupro: problem opening input table: %v", err)
		}
		files = append(files, f)
		return egupro.OpenTableFile(filepath.Base(path), f), nil
	}
	ts := new(egupro.TableSet)
	var err error
	if ts.InputVariables, err = open(c.InputVariables); err != nil {
		closer()
		return nil, nil, err
	}
	if ts.UnitAttributes, err = open(c.UnitAttributes); err != nil {
		closer()
		return nil, nil, err
	}
	for _, path := range c.HourlyBase {
		t, err := open(path)
		if err != nil {
			closer()
			return nil, nil, err
		}
		ts.HourlyBase = append(ts.HourlyBase, t)
	}
	for _, path := range c.HourlyProjected {
		t, err := open(path)
		if err != nil {
			closer()
			return nil, nil, err
		}
		ts.HourlyProjected = append(ts.HourlyProjected, t)
	}
	if ts.GenerationParms, err = open(c.GenerationParms); err != nil {
		closer()
		return nil, nil, err
	}
	if ts.UnitHierarchy, err = open(c.UnitHierarchy); err != nil {
		closer()
		return nil, nil, err
	}
	if ts.GenericUnits, err = open(c.GenericUnits); err != nil {
		closer()
		return nil, nil, err
	}
	return ts, closer, nil
}
