// Package wedge attributes the inflation gap between two definitions
// (typically headline and a core variant) to hierarchy groups.
package wedge

import (
	"sort"

	"cpi-engine/internal/contribution"
	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

// Analyze compares two decompositions of the same geography/month. For each
// group G, wedgeContr(G) = sum of headline item points in G minus the sum of
// core item points in G. Group wedges reconstruct the total wedge only when
// both definitions share identical availability at t; any gap lands in the
// report's Residual field, never discarded.
func Analyze(snap *refdata.Snapshot, headline, core *contribution.Decomposition) *api.WedgeReport {
	rep := &api.WedgeReport{
		Headline:    headline.Definition,
		Core:        core.Definition,
		Geography:   headline.Geography,
		Month:       headline.Month,
		HeadlineYoY: headline.YoY,
		CoreYoY:     core.YoY,
		Wedge:       headline.YoY - core.YoY,
	}

	type acc struct{ head, core float64 }
	byGroup := make(map[string]*acc)
	get := func(code string) *acc {
		a := byGroup[code]
		if a == nil {
			a = &acc{}
			byGroup[code] = a
		}
		return a
	}
	for _, it := range headline.Items {
		get(it.GroupCode).head += it.Points
	}
	for _, it := range core.Items {
		get(it.GroupCode).core += it.Points
	}

	codes := make([]string, 0, len(byGroup))
	for code := range byGroup {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var groupSum float64
	for _, code := range codes {
		a := byGroup[code]
		g := api.WedgeGroup{
			GroupCode:      code,
			HeadlinePoints: a.head,
			CorePoints:     a.core,
			Wedge:          a.head - a.core,
		}
		if node, ok := snap.Node(code); ok {
			g.GroupName = node.Name
		}
		rep.Groups = append(rep.Groups, g)
		groupSum += g.Wedge
	}

	rep.Residual = rep.Wedge - groupSum
	return rep
}
