// Package contribution attributes a month's year-on-year inflation
// additively to items and hierarchy groups.
package contribution

import (
	"sort"

	"cpi-engine/internal/missing"
	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

// TolerancePP is the reconciliation tolerance for the contribution-sum
// identity, in percentage points.
const TolerancePP = 0.01

// ItemContribution is one item's signed contribution in percentage points.
type ItemContribution struct {
	ItemID       string  `json:"item_id"`
	Name         string  `json:"name,omitempty"`
	GroupCode    string  `json:"group_code"`
	Points       float64 `json:"points"`
	WeightShare  float64 `json:"weight_share"`
	CurrentLevel float64 `json:"current_level"`
	PriorLevel   float64 `json:"prior_level"`
}

// GroupContribution is the exact sum of its member items' points. Group
// totals are composed, never recomputed, so composition stays exact.
type GroupContribution struct {
	Code   string  `json:"code"`
	Name   string  `json:"name,omitempty"`
	Points float64 `json:"points"`
	Items  int     `json:"items"`
}

// Decomposition attributes one (definition, geography, month) YoY rate.
// Residual is the gap between the published rate and the contribution sum;
// it is caused by availability differing between t and t-12 and is always
// reported, never folded into an item.
type Decomposition struct {
	Definition string              `json:"definition"`
	Geography  api.Geography       `json:"geography"`
	Month      api.Month           `json:"month"`
	YoY        float64             `json:"yoy"`
	PriorIndex float64             `json:"prior_index"`
	Items      []ItemContribution  `json:"items"`
	Groups     []GroupContribution `json:"groups"`
	Residual   float64             `json:"residual"`
	Skipped    []string            `json:"skipped_items,omitempty"`
}

// DecomposeYoY computes per-item contributions using the current-month
// renormalized weights (not historical ones) and the prior-year levels from
// resPrior. Items available at t but not at t-12 are skipped and surface in
// the residual. priorIndex is I(d,g,t-12), yoy the published rate.
func DecomposeYoY(snap *refdata.Snapshot, resT, resPrior *missing.Resolution, priorIndex, yoy float64) *Decomposition {
	d := &Decomposition{
		Definition: resT.Definition,
		Geography:  resT.Geography,
		Month:      resT.Month,
		YoY:        yoy,
		PriorIndex: priorIndex,
	}

	var sum float64
	groups := make(map[string]*GroupContribution)
	for _, id := range resT.Available {
		prior, ok := resPrior.Levels[id]
		if !ok {
			d.Skipped = append(d.Skipped, id)
			continue
		}
		it, _ := snap.Item(id)
		w := resT.Weights[id]
		points := w * (resT.Levels[id] - prior) / priorIndex * 100

		groupCode := refdata.CodeAtLevel(it.HierarchyCode, refdata.LevelGroup)
		d.Items = append(d.Items, ItemContribution{
			ItemID:       id,
			Name:         it.Name,
			GroupCode:    groupCode,
			Points:       points,
			WeightShare:  w,
			CurrentLevel: resT.Levels[id],
			PriorLevel:   prior,
		})
		sum += points

		g := groups[groupCode]
		if g == nil {
			g = &GroupContribution{Code: groupCode}
			if node, ok := snap.Node(groupCode); ok {
				g.Name = node.Name
			}
			groups[groupCode] = g
		}
		g.Points += points
		g.Items++
	}

	d.Residual = yoy - sum

	sort.Slice(d.Items, func(i, j int) bool {
		if d.Items[i].Points != d.Items[j].Points {
			return d.Items[i].Points > d.Items[j].Points
		}
		return d.Items[i].ItemID < d.Items[j].ItemID
	})
	for _, g := range groups {
		d.Groups = append(d.Groups, *g)
	}
	sort.Slice(d.Groups, func(i, j int) bool { return d.Groups[i].Code < d.Groups[j].Code })

	return d
}

// Records flattens the decomposition into public contribution records,
// items first, then groups.
func (d *Decomposition) Records() []api.ContributionRecord {
	out := make([]api.ContributionRecord, 0, len(d.Items)+len(d.Groups))
	for _, it := range d.Items {
		out = append(out, api.ContributionRecord{
			Definition: d.Definition,
			Geography:  d.Geography,
			Month:      d.Month,
			Subject:    it.ItemID,
			Name:       it.Name,
			Level:      "item",
			Points:     it.Points,
		})
	}
	for _, g := range d.Groups {
		out = append(out, api.ContributionRecord{
			Definition: d.Definition,
			Geography:  d.Geography,
			Month:      d.Month,
			Subject:    g.Code,
			Name:       g.Name,
			Level:      "group",
			Points:     g.Points,
		})
	}
	return out
}

// ItemPoints returns the per-item points keyed by item id.
func (d *Decomposition) ItemPoints() map[string]float64 {
	out := make(map[string]float64, len(d.Items))
	for _, it := range d.Items {
		out[it.ItemID] = it.Points
	}
	return out
}
