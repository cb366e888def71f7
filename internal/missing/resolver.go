// Package missing computes per-month availability, coverage, and
// renormalized weights under the configured missing-data policy. Policies
// are a closed set dispatched by one switch; no runtime extension point.
package missing

import (
	"github.com/shopspring/decimal"

	"cpi-engine/internal/aggregate"
	"cpi-engine/internal/refdata"
	"cpi-engine/internal/universe"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

// Resolution is the availability outcome for one (definition, geography,
// month): the availability set, renormalized weights summing to 1, and the
// effective index level per available item (observed, carried, or imputed).
type Resolution struct {
	Definition string
	Geography  api.Geography
	Month      api.Month
	Available  []string           // sorted item ids
	Weights    map[string]float64 // renormalized over Available
	Levels     map[string]float64 // effective level per available item
	Coverage   api.CoverageRecord
}

// Resolve applies the definition's missing-data policy to the resolved
// universe at one month. Coverage below the definition's floor, or zero
// available weight, fails with INSUFFICIENT_COVERAGE; that aborts this month
// only, never its neighbors.
func Resolve(snap *refdata.Snapshot, uni *universe.Resolution, def *refdata.Definition, month api.Month) (*Resolution, error) {
	res := &Resolution{
		Definition: uni.Definition,
		Geography:  uni.Geography,
		Month:      month,
		Weights:    make(map[string]float64),
		Levels:     make(map[string]float64),
	}
	cov := api.CoverageRecord{
		Definition: uni.Definition,
		Geography:  uni.Geography,
		Month:      month,
		Policy:     def.Policy,
	}

	availableWeight := decimal.Zero
	for _, id := range uni.Items {
		it, _ := snap.Item(id)
		lvl, ok := snap.Level(id, uni.Geography, month)
		if !ok {
			var err error
			lvl, ok, err = fillMissing(snap, it, uni.Geography, month, def.Policy)
			if err != nil {
				return nil, err
			}
			if ok {
				cov.ImputedItems = append(cov.ImputedItems, id)
			}
		}
		if !ok {
			cov.DroppedItems = append(cov.DroppedItems, id)
			continue
		}
		res.Available = append(res.Available, id)
		res.Levels[id] = lvl
		availableWeight = availableWeight.Add(it.Weight(uni.Geography))
	}

	cov.SelectedWeight, _ = uni.SelectedWeight.Float64()
	cov.AvailableWeight, _ = availableWeight.Float64()
	if !uni.SelectedWeight.IsZero() {
		cov.Coverage, _ = availableWeight.Div(uni.SelectedWeight).Float64()
	}
	cov.Flag = api.FlagForCoverage(cov.Coverage)

	if availableWeight.IsZero() || cov.Coverage < def.CoverageFloor() {
		cov.Flag = api.FlagError
		res.Coverage = cov
		return res, enginerrors.NewInsufficientCoverageError(uni.Definition, string(uni.Geography), string(month), cov.Coverage)
	}

	// Renormalize: w_i / W_A over the availability set, summing to 1.
	for _, id := range res.Available {
		it, _ := snap.Item(id)
		w, _ := it.Weight(uni.Geography).Div(availableWeight).Float64()
		res.Weights[id] = w
	}

	res.Coverage = cov
	return res, nil
}

// fillMissing produces a substitute level for a missing observation, or
// ok=false when the policy drops the item instead.
func fillMissing(snap *refdata.Snapshot, it *refdata.Item, geo api.Geography, month api.Month, policy api.MissingPolicy) (float64, bool, error) {
	switch policy {
	case api.PolicyCarryForward:
		if lvl, ok := lastKnown(snap, it.ID, geo, month); ok {
			return lvl, true, nil
		}
		// No prior value exists; fall back to dropping the item.
		return 0, false, nil

	case api.PolicyImputeParent:
		for _, level := range []refdata.HierarchyLevel{refdata.LevelClass, refdata.LevelGroup, refdata.LevelDivision} {
			code := refdata.CodeAtLevel(it.HierarchyCode, level)
			if code == "" {
				continue
			}
			if idx, ok := aggregate.NodeIndex(snap, code, geo, month); ok {
				return idx, true, nil
			}
		}
		return 0, false, enginerrors.NewImputationExhaustedError(it.ID, string(geo), string(month))

	default: // DROP_AND_RENORMALIZE
		return 0, false, nil
	}
}

// lastKnown scans backwards from the preceding month to the base month for
// the item's most recent non-missing level.
func lastKnown(snap *refdata.Snapshot, itemID string, geo api.Geography, month api.Month) (float64, bool) {
	for m := month.Prev(); !m.Before(snap.BaseMonth()); m = m.Prev() {
		if lvl, ok := snap.Level(itemID, geo, m); ok {
			return lvl, true
		}
	}
	return 0, false
}
