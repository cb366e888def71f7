// Package refdata holds the immutable reference tables the engine reads:
// basket items with base-year weights, item-level index observations, and
// the division/group/class hierarchy. The engine never mutates these; every
// computation takes a Snapshot and produces fresh derived records.
package refdata

import (
	"strings"

	"github.com/shopspring/decimal"

	"cpi-engine/pkg/api"
)

// Item is one basket entry from the weights table. Weights are absolute
// (0-100) per geography and kept as decimals so per-geography sums stay
// exact; renormalized weights downstream are float64.
type Item struct {
	ID            string
	Name          string
	HierarchyCode string // class-level dotted code, e.g. "01.1.1"
	Tags          []string
	Priority      int
	Available     bool
	Weights       map[api.Geography]decimal.Decimal
}

// HasTag reports tag membership, case-insensitive.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Weight returns the item's absolute weight for a geography.
func (it *Item) Weight(geo api.Geography) decimal.Decimal {
	return it.Weights[geo]
}

// TimeSeriesPoint is one observation from the time-series table.
// Missing marks an explicit gap; Index is meaningless when Missing is set.
type TimeSeriesPoint struct {
	ItemID      string
	Geography   api.Geography
	Month       api.Month
	Index       float64
	Missing     bool
	Provisional bool
}

// HierarchyLevel names a tier of the classification tree.
type HierarchyLevel string

const (
	LevelDivision HierarchyLevel = "division"
	LevelGroup    HierarchyLevel = "group"
	LevelClass    HierarchyLevel = "class"
)

// HierarchyNode is one row of the hierarchy table.
type HierarchyNode struct {
	Level      HierarchyLevel
	Code       string
	Name       string
	ParentCode string // empty at division level
	ChildCount int
}

// CodeAtLevel truncates a dotted hierarchy code to the given level:
// division keeps one segment, group two, class three. Returns "" when the
// code is too shallow for the requested level.
func CodeAtLevel(code string, level HierarchyLevel) string {
	segs := strings.Split(code, ".")
	var n int
	switch level {
	case LevelDivision:
		n = 1
	case LevelGroup:
		n = 2
	case LevelClass:
		n = 3
	default:
		return ""
	}
	if len(segs) < n {
		return ""
	}
	return strings.Join(segs[:n], ".")
}

// CodeMatches reports whether an item's hierarchy code falls under the given
// node code, at whichever granularity the node code carries.
func CodeMatches(itemCode, nodeCode string) bool {
	if itemCode == nodeCode {
		return true
	}
	return strings.HasPrefix(itemCode, nodeCode+".")
}
