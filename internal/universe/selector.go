// Package universe resolves a definition's item set via set-algebra rules.
// Each rule type compiles to a predicate over an item; inclusion is the
// union of matching items, exclusion the OR-combined removal. Removal is
// commutative, so rule evaluation order never changes the result.
package universe

import (
	"strings"

	"github.com/shopspring/decimal"

	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

// Resolution is the derived item set for one (definition, geography).
type Resolution struct {
	Definition     string
	Geography      api.Geography
	Items          []string // sorted item ids
	SelectedWeight decimal.Decimal
	ExcludedItems  int
	ExcludedWeight decimal.Decimal
}

// Contains reports membership in the resolved set.
func (r *Resolution) Contains(itemID string) bool {
	for _, id := range r.Items {
		if id == itemID {
			return true
		}
	}
	return false
}

// matcher is a compiled predicate over one item.
type matcher struct {
	ids   map[string]bool
	tags  map[string]bool
	codes []string
}

func compile(rs refdata.RuleSet) matcher {
	m := matcher{ids: make(map[string]bool), tags: make(map[string]bool)}
	for _, id := range rs.IDs {
		m.ids[id] = true
	}
	for _, t := range rs.Tags {
		m.tags[strings.ToLower(t)] = true
	}
	m.codes = rs.HierarchyCodes
	return m
}

// matches checks the three rule types with OR semantics and per-item
// short-circuit.
func (m matcher) matches(it *refdata.Item) bool {
	if m.ids[it.ID] {
		return true
	}
	for _, t := range it.Tags {
		if m.tags[strings.ToLower(t)] {
			return true
		}
	}
	for _, code := range m.codes {
		if refdata.CodeMatches(it.HierarchyCode, code) {
			return true
		}
	}
	return false
}

// Resolve computes S(d,g) and its total selected weight. A definition whose
// rules select zero weight is a configuration defect and fails with
// EMPTY_UNIVERSE.
func Resolve(snap *refdata.Snapshot, def *refdata.Definition, geo api.Geography) (*Resolution, error) {
	include := compile(def.IncludeSet)
	exclude := compile(def.ExcludeSet)

	res := &Resolution{
		Definition:     def.ID,
		Geography:      geo,
		SelectedWeight: decimal.Zero,
		ExcludedWeight: decimal.Zero,
	}

	for _, it := range snap.Items() {
		if !it.Available {
			continue
		}
		if def.Include == refdata.IncludeList && !include.matches(it) {
			continue
		}
		if exclude.matches(it) {
			res.ExcludedItems++
			res.ExcludedWeight = res.ExcludedWeight.Add(it.Weight(geo))
			continue
		}
		res.Items = append(res.Items, it.ID)
		res.SelectedWeight = res.SelectedWeight.Add(it.Weight(geo))
	}

	if res.SelectedWeight.IsZero() {
		return nil, enginerrors.NewEmptyUniverseError(def.ID, string(geo))
	}
	return res, nil
}
