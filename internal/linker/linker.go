// Package linker splices a legacy base-year series onto a new base-year
// series at a link month.
package linker

import (
	"sort"

	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

// Link rescales the legacy series by LF = I_new(T*) / I_old(T*) and splices:
// months before T* take the rescaled legacy level, months at and after T*
// take the new level directly. Rates computed on the linked series never mix
// raw old and new levels, so YoY ratios spanning T* stay consistent. Fails
// with LINK_DIVIDE_BY_ZERO when the legacy level at T* is zero or missing.
func Link(definition string, geo api.Geography, legacy, fresh map[api.Month]float64, linkMonth api.Month) (*api.LinkedSeries, error) {
	oldAt, okOld := legacy[linkMonth]
	newAt, okNew := fresh[linkMonth]
	if !okOld || oldAt == 0 || !okNew {
		return nil, enginerrors.NewLinkDivideByZeroError(definition, string(geo), string(linkMonth))
	}
	lf := newAt / oldAt

	out := &api.LinkedSeries{
		Definition: definition,
		Geography:  geo,
		LinkMonth:  linkMonth,
		LinkFactor: lf,
	}

	for m, lvl := range legacy {
		if m.Before(linkMonth) {
			out.Points = append(out.Points, api.LinkedPoint{Month: m, Index: lvl * lf, Source: "legacy"})
		}
	}
	for m, lvl := range fresh {
		if !m.Before(linkMonth) {
			out.Points = append(out.Points, api.LinkedPoint{Month: m, Index: lvl, Source: "new"})
		}
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Month < out.Points[j].Month })

	return out, nil
}

// Levels returns the linked series as a month-keyed level map, the shape the
// inflation calculator consumes.
func Levels(s *api.LinkedSeries) map[api.Month]float64 {
	out := make(map[api.Month]float64, len(s.Points))
	for _, p := range s.Points {
		out[p.Month] = p.Index
	}
	return out
}
