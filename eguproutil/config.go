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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// Config specifies the input tables of one projection scenario.
type Config struct {
	// InputVariables is the location of the scenario settings table,
	// holding the base and future year, the ozone season window, and
	// the pollutant list.
	InputVariables string

	// UnitAttributes is the location of the generating unit
	// attributes table.
	UnitAttributes string

	// HourlyBase is the list of base year hourly activity tables.
	HourlyBase []string

	// HourlyProjected is the list of future year hourly activity
	// tables.
	HourlyProjected []string

	// GenerationParms is the location of the per-slice generation
	// parameters table. It may be empty.
	GenerationParms string

	// UnitHierarchy is the location of the unit allocation order
	// table. It may be empty.
	UnitHierarchy string

	// UnitHierarchyWorkbook and UnitHierarchySheet locate the unit
	// allocation order in workbook form. They are ignored when
	// UnitHierarchy is set.
	UnitHierarchyWorkbook string
	UnitHierarchySheet    string

	// GenericUnits is the location of the table listing units created
	// by the projection rather than observed in the base year. It may
	// be empty.
	GenericUnits string

	// GrowthWorkbook and GrowthSheet locate the growth factor matrix
	// that realized growth is checked against. They may be empty.
	GrowthWorkbook string
	GrowthSheet    string
}

// LoadConfig reads the scenario configuration from filename and
// expands any environment variables in the paths it holds.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("egupro: problem opening scenario file: %v", err)
	}
	defer f.Close()
	c := new(Config)
	if _, err := toml.DecodeReader(f, c); err != nil {
		return nil, fmt.Errorf("egupro: problem reading scenario file %s: %v", filename, err)
	}
	c.InputVariables = os.ExpandEnv(c.InputVariables)
	c.UnitAttributes = os.ExpandEnv(c.UnitAttributes)
	c.HourlyBase = expandStringSlice(c.HourlyBase)
	c.HourlyProjected = expandStringSlice(c.HourlyProjected)
	c.GenerationParms = os.ExpandEnv(c.GenerationParms)
	c.UnitHierarchy = os.ExpandEnv(c.UnitHierarchy)
	c.UnitHierarchyWorkbook = os.ExpandEnv(c.UnitHierarchyWorkbook)
	c.GenericUnits = os.ExpandEnv(c.GenericUnits)
	c.GrowthWorkbook = os.ExpandEnv(c.GrowthWorkbook)
	if c.UnitHierarchySheet == "" {
		c.UnitHierarchySheet = "UnitHierarchy"
	}
	if c.GrowthSheet == "" {
		c.GrowthSheet = "GrowthRates"
	}
	return c, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputDir makes sure that the output directory exists.
func checkOutputDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(dir); err != nil {
		return dir, fmt.Errorf("egupro: the OutputDir directory doesn't exist: %v", err)
	}
	return dir, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputDir string) string {
	if logFile == "" {
		logFile = filepath.Join(outputDir, "egupro.log")
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
