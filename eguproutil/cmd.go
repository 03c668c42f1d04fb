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

package eguproutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/egupro"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to EGUPro.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "scenario",
			usage: `
              scenario specifies the location of the scenario file
              listing the input tables of the projection to be
              reconciled.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "span",
			usage: `
              span restricts the hourly and daily outputs to a part of
              the future year: annual, q1, q2, q3, q4, or ozone.`,
			shorthand:  "s",
			defaultVal: "annual",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "states",
			usage: `
              states restricts the run to units in the listed state
              codes. An empty list means all states.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "regions",
			usage: `
              regions restricts the run to units in the listed dispatch
              regions. An empty list means all regions.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "fuelbins",
			usage: `
              fuelbins restricts the run to units in the listed fuel
              bins. An empty list means all fuel bins.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "facilities",
			usage: `
              facilities restricts the run to the listed facility IDs.
              An empty list means all facilities.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "nprocs",
			usage: `
              nprocs is the number of state and fuel bin partitions to
              reconcile concurrently. The default of zero means the
              number of processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the summary tables are written
              to.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputShapefile",
			usage: `
              OutputShapefile is the location the unit-level point
              shapefile is written to. No shapefile is written when it
              is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputWorkbook",
			usage: `
              OutputWorkbook is the location the summaries are written
              to as one workbook. No workbook is written when it is
              empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables maps the attribute fields of the output
              shapefile to expressions defining how they are calculated
              from the annual summary.`,
			defaultVal: egupro.DefaultOutputVariables(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the location the run log is copied to. The
              default is egupro.log in the output directory.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "GrowthFactor",
			usage: `
              GrowthFactor names the column of the growth factor
              workbook that realized growth is checked against.`,
			defaultVal: "annual_growth",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Outputs.Hourly",
			usage: `
              Outputs.Hourly specifies whether to write the hourly
              activity table.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Outputs.Daily",
			usage: `
              Outputs.Daily specifies whether to generate the daily
              summary.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Outputs.Annual",
			usage: `
              Outputs.Annual specifies whether to generate the annual
              unit summary.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Outputs.Regional",
			usage: `
              Outputs.Regional specifies whether to generate the
              regional hourly rollup.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Outputs.State",
			usage: `
              Outputs.State specifies whether to generate the state
              hourly rollup.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("EGUPRO")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(reportCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Printf(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("egupro: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "egupro",
	Short: "Reconcile and roll up generating unit projections.",
	Long: `EGUPro reconciles hour-by-hour generating unit activity between a
historical base year and a projected future year, and rolls the
reconciled record up into daily, annual, regional, and state summaries.

Refer to the subcommand documentation for configuration options and
default settings. Configuration can be changed by using a configuration
file (and providing the path to the file using the --config flag), by
using command-line arguments, or by setting environment variables in
the format 'EGUPRO_var' where 'var' is the name of the variable to be
set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of EGUPro.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("EGUPro v%s\n", egupro.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd reconciles a scenario and writes every requested output.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile a scenario and write its summaries.",
	Long: `run reconciles the base year and future year activity of the scenario's
units and writes the hourly, daily, annual, regional, and state
summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		ctx := context.TODO()

		scenario := os.ExpandEnv(Cfg.GetString("scenario"))
		if scenario == "" {
			return fmt.Errorf("egupro: no scenario file specified; use the --scenario flag")
		}
		cfg, err := LoadConfig(maybeDownload(ctx, scenario, outChan))
		if err != nil {
			return err
		}
		span, err := egupro.ParseTimeSpan(Cfg.GetString("span"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		outputDir, err := checkOutputDir(os.ExpandEnv(Cfg.GetString("OutputDir")))
		if err != nil {
			return err
		}
		filter := egupro.NewFilterContext(
			expandStringSlice(Cfg.GetStringSlice("states")),
			expandStringSlice(Cfg.GetStringSlice("regions")),
			expandStringSlice(Cfg.GetStringSlice("fuelbins")),
			expandStringSlice(Cfg.GetStringSlice("facilities")),
			span)

		return Run(&RunOptions{
			Scenario:        cfg,
			Filter:          filter,
			OutputDir:       outputDir,
			OutputShapefile: os.ExpandEnv(Cfg.GetString("OutputShapefile")),
			OutputWorkbook:  os.ExpandEnv(Cfg.GetString("OutputWorkbook")),
			OutputVariables: outputVars,
			LogFile:         checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), outputDir),
			NProcs:          Cfg.GetInt("nprocs"),
			GrowthFactor:    Cfg.GetString("GrowthFactor"),
			Outputs: OutputToggles{
				Hourly:   Cfg.GetBool("Outputs.Hourly"),
				Daily:    Cfg.GetBool("Outputs.Daily"),
				Annual:   Cfg.GetBool("Outputs.Annual"),
				Regional: Cfg.GetBool("Outputs.Regional"),
				State:    Cfg.GetBool("Outputs.State"),
			},
		})
	},
	DisableAutoGenTag: true,
}

// reportCmd reconciles a scenario and prints the run report without
// writing the summary tables.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reconcile a scenario and print its run report.",
	Long: `report reconciles the base year and future year activity of the
scenario's units and prints the classification totals and drop counts
without writing the summary tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		ctx := context.TODO()

		scenario := os.ExpandEnv(Cfg.GetString("scenario"))
		if scenario == "" {
			return fmt.Errorf("egupro: no scenario file specified; use the --scenario flag")
		}
		cfg, err := LoadConfig(maybeDownload(ctx, scenario, outChan))
		if err != nil {
			return err
		}
		span, err := egupro.ParseTimeSpan(Cfg.GetString("span"))
		if err != nil {
			return err
		}
		filter := egupro.NewFilterContext(
			expandStringSlice(Cfg.GetStringSlice("states")),
			expandStringSlice(Cfg.GetStringSlice("regions")),
			expandStringSlice(Cfg.GetStringSlice("fuelbins")),
			expandStringSlice(Cfg.GetStringSlice("facilities")),
			span)

		return Run(&RunOptions{
			Scenario:     cfg,
			Filter:       filter,
			NProcs:       Cfg.GetInt("nprocs"),
			ReportOnly:   true,
			ReportWriter: cmd.OutOrStdout(),
		})
	},
	DisableAutoGenTag: true,
}
