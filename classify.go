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
	"sort"
	"time"
)

// Category is the lifecycle category assigned to a unit hour by the
// classifier.
type Category int

// The lifecycle categories. Unclassified marks a unit whose attributes
// match no category; its hours are excluded from reconciliation but are
// counted and reported.
const (
	Unclassified Category = iota
	FullPartial
	Switch
	NewUnit
	Retired
)

func (c Category) String() string {
	switch c {
	case FullPartial:
		return "FULL/PARTIAL"
	case Switch:
		return "SWITCH"
	case NewUnit:
		return "NEW"
	case Retired:
		return "RETIRED"
	case Unclassified:
		return "UNCLASSIFIED"
	default:
		panic(fmt.Sprintf("unknown category: %d", int(c)))
	}
}

// Partition is the (state, fuel bin) slice of units that are classified
// and reconciled together.
type Partition struct {
	State, FuelBin string
}

func (p Partition) String() string { return p.State + ":" + p.FuelBin }

// aliveInBaseYear reports whether the unit operated during the base
// year: it came online on or before the end of the base year, and any
// retirement begins after the start of the base year.
func aliveInBaseYear(u *UnitRecord, years Years) bool {
	baseStart := time.Date(years.Base, time.January, 1, 0, 0, 0, 0, time.UTC)
	baseEnd := time.Date(years.Base+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !u.OnlineStart.Before(baseEnd) {
		return false
	}
	return u.OfflineStart == nil || u.OfflineStart.After(baseStart)
}

// retiredForFutureYear reports whether the unit no longer operates in
// the future year. The boundary convention: a unit is retired iff its
// offline date is not after the first hour of the future year;
// strictly-after means still operating.
func retiredForFutureYear(u *UnitRecord, years Years) bool {
	if u.OfflineStart == nil {
		return false
	}
	futureStart := time.Date(years.Future, time.January, 1, 0, 0, 0, 0, time.UTC)
	return !u.OfflineStart.After(futureStart)
}

// A UnitPlan describes how one physical unit participates in the
// reconciliation: the identity it reported under in the base year, the
// identity it dispatches under in the future year, and its default
// lifecycle category. For a fuel-bin switcher the two identities differ,
// and the per-hour category depends on which bin each future-year record
// dispatched under.
type UnitPlan struct {
	// UnitKey identifies the physical unit (facility ID and unit ID).
	UnitKey string

	// Base is the unit attribute record for the base-year identity, or
	// nil for a unit created by the projection.
	Base *UnitRecord

	// Future is the unit attribute record for the future-year identity.
	// It equals Base unless the unit switches fuel bins or is new.
	Future *UnitRecord

	// Category is the unit-level category. Switcher units carry
	// FullPartial here; their hours under the post-switch bin classify
	// as Switch.
	Category Category

	// Switcher reports whether the base-year and future-year fuel bins
	// differ.
	Switcher bool
}

// Partition returns the (state, fuel bin) partition the unit is
// processed in. Units are partitioned by their base-year fuel bin;
// units with no base-year identity use the future-year bin.
func (p *UnitPlan) Partition() Partition {
	u := p.Base
	if u == nil {
		u = p.Future
	}
	return Partition{State: u.State, FuelBin: u.FuelBin}
}

// classifyHour returns the category for one unit hour. projBin is the
// fuel bin of the future-year record present for the hour; hasProj is
// false if there is none. The result is Unclassified only for units
// whose attributes matched no category.
func (p *UnitPlan) classifyHour(projBin string, hasProj bool) Category {
	switch p.Category {
	case FullPartial:
		if p.Switcher && hasProj && p.Base != nil && projBin != p.Base.FuelBin {
			return Switch
		}
		return FullPartial
	default:
		return p.Category
	}
}

// Classifier assigns a lifecycle category to every unit before
// reconciliation.
type Classifier struct {
	years  Years
	byUnit map[string][]*UnitRecord
}

// NewClassifier creates a classifier for the given unit attribute
// records and year pair.
func NewClassifier(units []*UnitRecord, years Years) *Classifier {
	cl := &Classifier{
		years:  years,
		byUnit: make(map[string][]*UnitRecord),
	}
	for _, u := range units {
		k := u.unitKey()
		cl.byUnit[k] = append(cl.byUnit[k], u)
	}
	return cl
}

// Plans returns one UnitPlan per physical unit, in deterministic order
// by unit key. The category rules, in precedence order:
//
//  1. A unit with a FULL or PARTIAL base-year reporting type that
//     operated in the base year is FullPartial. If the unit also
//     appears under a different fuel bin, it is a switcher and its
//     post-switch hours classify as Switch.
//  2. A unit whose only reporting type is NEW is NewUnit. A NEW record
//     matched by a FULL/PARTIAL record under a different fuel bin is a
//     re-labeled switcher, not a new unit, and is consumed by rule 1.
//  3. A FULL/PARTIAL unit with an offline date on or before the start
//     of the future year is Retired, unless it is claimed as a switcher
//     by rule 1.
//
// Units matching no rule come back Unclassified.
func (cl *Classifier) Plans() []*UnitPlan {
	keys := make([]string, 0, len(cl.byUnit))
	for k := range cl.byUnit {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	plans := make([]*UnitPlan, 0, len(keys))
	for _, k := range keys {
		rows := cl.byUnit[k]
		sorted := make([]*UnitRecord, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Region != sorted[j].Region {
				return sorted[i].Region < sorted[j].Region
			}
			return sorted[i].FuelBin < sorted[j].FuelBin
		})

		var baseRow, newRow *UnitRecord
		for _, u := range sorted {
			switch u.ReportingType {
			case ReportingFull, ReportingPartial:
				if baseRow == nil {
					baseRow = u
				}
			case ReportingNew:
				if newRow == nil {
					newRow = u
				}
			}
		}

		p := &UnitPlan{UnitKey: k}
		switch {
		case baseRow != nil && aliveInBaseYear(baseRow, cl.years):
			p.Base = baseRow
			p.Future = baseRow
			p.Category = FullPartial
			if newRow != nil && newRow.FuelBin != baseRow.FuelBin {
				// A NEW record under a different bin marks the
				// post-switch identity of this unit.
				p.Future = newRow
				p.Switcher = true
			}
			if !p.Switcher && retiredForFutureYear(baseRow, cl.years) {
				p.Category = Retired
			}
		case baseRow == nil && newRow != nil:
			p.Future = newRow
			p.Category = NewUnit
		default:
			p.Category = Unclassified
			if baseRow != nil {
				p.Base = baseRow
			} else {
				p.Future = sorted[0]
			}
		}
		plans = append(plans, p)
	}
	return plans
}
