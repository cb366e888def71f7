package refdata

import (
	"fmt"

	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

// IncludeMode selects how a definition's starting set is formed.
type IncludeMode string

const (
	IncludeAll  IncludeMode = "all"
	IncludeList IncludeMode = "list"
)

// RuleSet lists match criteria for selecting or removing items. The three
// rule types combine with OR semantics: an item matches the set when any id,
// tag, or hierarchy-code rule matches it.
type RuleSet struct {
	IDs            []string `yaml:"ids"`
	Tags           []string `yaml:"tags"`
	HierarchyCodes []string `yaml:"hierarchy_codes"`
}

// Empty reports whether the set carries no rules.
func (r RuleSet) Empty() bool {
	return len(r.IDs) == 0 && len(r.Tags) == 0 && len(r.HierarchyCodes) == 0
}

// Definition is an immutable index-variant configuration. Its resolved item
// set is derived, never stored; universe resolution recomputes it from the
// current snapshot.
type Definition struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Geographies []api.Geography   `yaml:"geographies"`
	Include     IncludeMode       `yaml:"include"`
	IncludeSet  RuleSet           `yaml:"include_rules"`
	ExcludeSet  RuleSet           `yaml:"exclude_rules"`
	Policy      api.MissingPolicy `yaml:"missing_policy"`
	MinCoverage float64           `yaml:"min_coverage"` // 0 = methodology hard floor
}

// Validate rejects malformed definitions before any computation starts.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return enginerrors.NewMalformedDefinitionError("", "missing definition id")
	}
	switch d.Include {
	case IncludeAll:
		if !d.IncludeSet.Empty() {
			return enginerrors.NewMalformedDefinitionError(d.ID, `include mode "all" must not carry include rules`)
		}
	case IncludeList:
		if d.IncludeSet.Empty() {
			return enginerrors.NewMalformedDefinitionError(d.ID, `include mode "list" requires at least one include rule`)
		}
	default:
		return enginerrors.NewMalformedDefinitionError(d.ID, fmt.Sprintf("unknown include mode %q", d.Include))
	}
	switch d.Policy {
	case api.PolicyDropAndRenormalize, api.PolicyCarryForward, api.PolicyImputeParent:
	case "":
		d.Policy = api.PolicyDropAndRenormalize
	default:
		return enginerrors.NewMalformedDefinitionError(d.ID, fmt.Sprintf("unknown missing-data policy %q", d.Policy))
	}
	if d.MinCoverage < 0 || d.MinCoverage > 1 {
		return enginerrors.NewMalformedDefinitionError(d.ID, "min_coverage must be within [0,1]")
	}
	if len(d.Geographies) == 0 {
		return enginerrors.NewMalformedDefinitionError(d.ID, "at least one geography required")
	}
	return nil
}

// CoverageFloor is the coverage below which the month fails. A definition
// may raise the floor above the methodology default, never lower it.
func (d *Definition) CoverageFloor() float64 {
	if d.MinCoverage > api.CoverageHardFloor {
		return d.MinCoverage
	}
	return api.CoverageHardFloor
}
