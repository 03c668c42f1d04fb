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
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// lbsPerTon converts pound masses from the hourly tables to tons.
const lbsPerTon = 2000.

// HourlyActivityRecord is one row of the hourly activity summary: the
// reconciled base-year and future-year activity of one unit in one
// calendar hour. Rows are written once by the Reconciler and never
// mutated afterward.
type HourlyActivityRecord struct {
	// BaseIdentity and FutureIdentity are the unit's identities in the
	// two years. They differ for fuel-bin switchers; BaseIdentity is
	// zero for units created by the projection.
	BaseIdentity, FutureIdentity UnitIdentity

	// FacilityName is the plant name, and State the unit's state.
	FacilityName string
	State        string

	// Category is the lifecycle category the unit hour classified as.
	Category Category

	// CalendarHour is the position of the hour within each year's own
	// calendar, 1-based.
	CalendarHour int

	// BYHierarchyHour and FYHierarchyHour are the dispatch-order
	// positions of this hour in the base-year and future-year fuel
	// bins. Zero means no generation was allocated to the hour.
	BYHierarchyHour, FYHierarchyHour int

	// HourlyHILimit reports whether the unit hit its maximum hourly
	// heat input in the future year.
	HourlyHILimit bool

	// Gross load (MW) and heat input (mmBtu) for each year.
	BYGLoad, FYGLoad         float64
	BYHeatInput, FYHeatInput float64

	// Pollutant masses, all in tons.
	BYSO2Mass, FYSO2Mass float64
	BYNOxMass, FYNOxMass float64
	BYCO2Mass, FYCO2Mass float64

	// GrowthRate and AdjustedGrowthRate are the hour's generation
	// parameters, NaN where no parameters record exists.
	GrowthRate, AdjustedGrowthRate float64
}

// Reconciler merges base-year actual and future-year projected hourly
// records into the hourly activity summary, classifying every unit hour
// on the way. Partitions of units sharing a state and fuel bin are
// processed concurrently.
type Reconciler struct {
	// Index is the calendar index for the run, with hierarchy hours
	// already recorded.
	Index *CalendarIndex

	// Units holds the unit attribute records.
	Units []*UnitRecord

	// Base and Projected group the two years' hourly records by unit
	// identity key.
	Base      map[string][]*HourlyBaseRecord
	Projected map[string][]*HourlyProjectedRecord

	// Parms holds the generation parameters records by key.
	Parms map[string]*GenerationParmsRecord

	// NProcs is the number of partitions processed concurrently.
	// Values below one mean GOMAXPROCS.
	NProcs int

	// Log receives progress and drop diagnostics. If it is nil, the
	// logrus standard logger is used.
	Log logrus.FieldLogger
}

func (r *Reconciler) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

type partitionResult struct {
	rows   []*HourlyActivityRecord
	report *RunReport
}

// Reconcile classifies every unit and produces the hourly activity
// summary and the run report. Rows are ordered by partition, unit, and
// hour, so results are deterministic regardless of how many partitions
// run concurrently.
func (r *Reconciler) Reconcile() ([]*HourlyActivityRecord, *RunReport, error) {
	if r.Index == nil {
		return nil, nil, fmt.Errorf("egupro: Reconciler needs a calendar index")
	}
	plans := NewClassifier(r.Units, r.Index.Years()).Plans()

	partPlans := make(map[Partition][]*UnitPlan)
	var parts []Partition
	for _, p := range plans {
		part := p.Partition()
		if _, ok := partPlans[part]; !ok {
			parts = append(parts, part)
		}
		partPlans[part] = append(partPlans[part], p)
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].State != parts[j].State {
			return parts[i].State < parts[j].State
		}
		return parts[i].FuelBin < parts[j].FuelBin
	})

	nprocs := r.NProcs
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(-1)
	}
	var lock sync.Mutex
	results := make(map[Partition]*partitionResult)
	jobChan := make(chan Partition, len(parts))
	errChan := make(chan error)
	for x := 0; x < nprocs; x++ {
		go func() {
			for part := range jobChan {
				res, err := r.reconcilePartition(partPlans[part])
				if err != nil {
					errChan <- fmt.Errorf("egupro: reconciling partition %v: %v", part, err)
					return
				}
				lock.Lock()
				results[part] = res
				lock.Unlock()
			}
			errChan <- nil
		}()
	}
	for _, part := range parts {
		jobChan <- part
	}
	close(jobChan)
	for x := 0; x < nprocs; x++ {
		if err := <-errChan; err != nil {
			return nil, nil, err
		}
	}

	// Merge the partition buffers in sorted partition order.
	report := newRunReport(r.Index.Years())
	var rows []*HourlyActivityRecord
	for _, part := range parts {
		res := results[part]
		rows = append(rows, res.rows...)
		report.merge(res.report)
	}
	if n := report.TotalDropped(); n > 0 {
		r.logger().Warnf("%d unit-hours matched no lifecycle category and were dropped", n)
	}
	r.logger().WithFields(logrus.Fields{
		"rows":       len(rows),
		"partitions": len(parts),
	}).Info("hourly reconciliation finished")
	return rows, report, nil
}

// reconcilePartition produces the hourly activity rows for the units of
// one (state, fuel bin) partition. It writes only into its own result
// buffer; the caller merges buffers after all partitions complete.
func (r *Reconciler) reconcilePartition(plans []*UnitPlan) (*partitionResult, error) {
	res := &partitionResult{report: newRunReport(r.Index.Years())}
	for _, p := range plans {
		if p.Category == Unclassified {
			r.countDropped(p, res.report)
			continue
		}
		baseByHour, err := r.baseHours(p)
		if err != nil {
			return nil, err
		}
		projByHour := r.projectedHours(p)

		var hours []int
		switch p.Category {
		case Retired:
			hours = sortedHours(baseByHour, nil)
		case NewUnit:
			hours = sortedHours(nil, projByHour)
		default:
			// FULL/PARTIAL and SWITCH rows need both years' records.
			for h := range baseByHour {
				if _, ok := projByHour[h]; ok {
					hours = append(hours, h)
				}
			}
			sort.Ints(hours)
		}

		for _, h := range hours {
			b := baseByHour[h]
			var f *HourlyProjectedRecord
			if p.Category != Retired {
				f = projByHour[h]
			}
			row := r.newActivityRow(p, h, b, f)
			res.rows = append(res.rows, row)
			res.report.AddActivity(row)
			if math.IsNaN(row.GrowthRate) && math.IsNaN(row.AdjustedGrowthRate) {
				// Tolerated gap: the row keeps null growth fields.
				id := row.FutureIdentity
				if id == (UnitIdentity{}) {
					id = row.BaseIdentity
				}
				res.report.AddMissingParms(id.Region, id.FuelBin)
			}
		}
	}
	return res, nil
}

// baseHours indexes the unit's base-year records by base-year calendar
// hour.
func (r *Reconciler) baseHours(p *UnitPlan) (map[int]*HourlyBaseRecord, error) {
	baseByHour := make(map[int]*HourlyBaseRecord)
	if p.Base == nil {
		return baseByHour, nil
	}
	for _, b := range r.Base[p.Base.Key()] {
		h, err := r.Index.DateToHour(b.OpDate, b.OpHour)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %v", p.UnitKey, err)
		}
		baseByHour[h] = b
	}
	return baseByHour, nil
}

// projectedHours indexes the unit's future-year records by calendar
// hour. For a switcher the records may arrive under both fuel bins; the
// post-switch bin wins when both dispatched the same hour.
func (r *Reconciler) projectedHours(p *UnitPlan) map[int]*HourlyProjectedRecord {
	projByHour := make(map[int]*HourlyProjectedRecord)
	if p.Future != nil {
		for _, f := range r.Projected[p.Future.Key()] {
			projByHour[f.CalendarHour] = f
		}
	}
	if p.Base != nil && (p.Future == nil || p.Base.Key() != p.Future.Key()) {
		for _, f := range r.Projected[p.Base.Key()] {
			if _, ok := projByHour[f.CalendarHour]; !ok {
				projByHour[f.CalendarHour] = f
			}
		}
	}
	return projByHour
}

// countDropped counts the unit hours of an unclassifiable unit into the
// report, keyed by region and fuel bin.
func (r *Reconciler) countDropped(p *UnitPlan, report *RunReport) {
	ids := make(map[string]UnitIdentity)
	if p.Base != nil {
		ids[p.Base.Key()] = p.Base.UnitIdentity
	}
	if p.Future != nil {
		ids[p.Future.Key()] = p.Future.UnitIdentity
	}
	for k, id := range ids {
		if n := len(r.Base[k]) + len(r.Projected[k]); n > 0 {
			report.AddDropped(id.Region, id.FuelBin, n)
		}
	}
}

// newActivityRow builds one hourly activity summary row.
func (r *Reconciler) newActivityRow(p *UnitPlan, h int, b *HourlyBaseRecord, f *HourlyProjectedRecord) *HourlyActivityRecord {
	attrs := p.Future
	if attrs == nil {
		attrs = p.Base
	}
	row := &HourlyActivityRecord{
		FacilityName: attrs.FacilityName,
		State:        attrs.State,
		CalendarHour: h,
	}
	if p.Base != nil {
		row.BaseIdentity = p.Base.UnitIdentity
	}
	// The future identity is the one the hour actually dispatched
	// under: a mid-year switcher's pre-switch hours still belong to the
	// base-year bin.
	if f != nil {
		row.FutureIdentity = f.UnitIdentity
	} else if p.Future != nil {
		row.FutureIdentity = p.Future.UnitIdentity
	}

	var projBin string
	if f != nil {
		projBin = f.FuelBin
	}
	row.Category = p.classifyHour(projBin, f != nil)

	if b != nil {
		row.BYGLoad = b.GLoad
		row.BYHeatInput = b.HeatInput
		row.BYSO2Mass = b.SO2Mass / lbsPerTon
		row.BYNOxMass = b.NOxMass / lbsPerTon
		row.BYCO2Mass = b.CO2Mass
	}
	if f != nil {
		row.FYGLoad = f.GLoad
		row.FYHeatInput = f.HeatInput
		row.FYSO2Mass = f.SO2Mass / lbsPerTon
		row.FYNOxMass = f.NOxMass / lbsPerTon
		row.FYCO2Mass = f.CO2Mass
		row.HourlyHILimit = f.HourlyHILimit
	}

	if p.Base != nil {
		row.BYHierarchyHour, _ = r.Index.HierarchyHour(p.Base.Region, p.Base.FuelBin, h)
	}
	switch row.Category {
	case FullPartial, NewUnit:
		// Taken directly from the future year's own record.
		if f != nil {
			row.FYHierarchyHour = f.HierarchyHour
		}
	case Switch:
		// The unit dispatches under a different hierarchy after the
		// switch, so look the hour up under the post-switch bin.
		row.FYHierarchyHour, _ = r.Index.HierarchyHour(p.Future.Region, p.Future.FuelBin, h)
	case Retired:
		// No future activity occurred, but the reference keeps the
		// hour axis aligned for the rollups.
		row.FYHierarchyHour, _ = r.Index.HierarchyHour(p.Base.Region, p.Base.FuelBin, h)
	}

	gid := row.FutureIdentity
	if gid == (UnitIdentity{}) {
		gid = row.BaseIdentity
	}
	row.GrowthRate, row.AdjustedGrowthRate = r.growthParms(gid.Region, gid.FuelBin, h)
	return row
}

// growthParms looks up the generation parameters for the given slice at
// the future-year hour h, returning NaN values when no record exists.
func (r *Reconciler) growthParms(region, fuelBin string, h int) (growth, adjusted float64) {
	future := r.Index.Years().Future
	n, err := r.Index.HoursInYear(future)
	if err != nil || h > n {
		return math.NaN(), math.NaN()
	}
	date, opHour, err := r.Index.HourToDate(future, h)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	key := region + ":" + fuelBin + ":" + date.Format(dateLayout) + ":" + strconv.Itoa(opHour)
	parm, ok := r.Parms[key]
	if !ok {
		return math.NaN(), math.NaN()
	}
	return parm.GrowthRate, parm.AdjustedGrowthRate
}

// sortedHours returns the union of the two maps' hour keys in ascending
// order.
func sortedHours(base map[int]*HourlyBaseRecord, proj map[int]*HourlyProjectedRecord) []int {
	seen := make(map[int]struct{})
	var hours []int
	for h := range base {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			hours = append(hours, h)
		}
	}
	for h := range proj {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			hours = append(hours, h)
		}
	}
	sort.Ints(hours)
	return hours
}
