// Package aggregate computes weighted-mean index levels and hierarchical
// rollups. Every function is pure: identical inputs reproduce identical
// levels, which requires summation in a deterministic (sorted) order.
package aggregate

import (
	"sort"

	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

// WeightedMean computes sum(w_i * level_i) over the keys present in both
// maps, iterating in sorted key order so results are bit-reproducible.
// Weights are expected to sum to 1 over the availability set.
func WeightedMean(weights, levels map[string]float64) float64 {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		if _, ok := levels[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += weights[k] * levels[k]
	}
	return sum
}

// NodeIndex computes a hierarchy node's index for one geography/month by
// applying the weighted-mean formula recursively over the node's direct
// children. Each level renormalizes over its own available children, so a
// missing grandchild affects only its immediate parent's renormalization.
// ok is false when nothing under the node has data.
func NodeIndex(snap *refdata.Snapshot, nodeCode string, geo api.Geography, month api.Month) (float64, bool) {
	children := snap.ChildNodes(nodeCode)
	if len(children) == 0 {
		return leafIndex(snap, nodeCode, geo, month)
	}

	weights := make(map[string]float64, len(children))
	levels := make(map[string]float64, len(children))
	var avail float64
	for _, child := range children {
		idx, ok := NodeIndex(snap, child, geo, month)
		if !ok {
			continue
		}
		w, _ := snap.NodeWeight(child, geo).Float64()
		if w <= 0 {
			continue
		}
		weights[child] = w
		levels[child] = idx
		avail += w
	}
	if avail == 0 {
		return 0, false
	}
	for k := range weights {
		weights[k] /= avail
	}
	return WeightedMean(weights, levels), true
}

// leafIndex aggregates a leaf-adjacent node directly from its member items,
// renormalizing over those with a non-missing observation.
func leafIndex(snap *refdata.Snapshot, nodeCode string, geo api.Geography, month api.Month) (float64, bool) {
	items := snap.ItemsUnder(nodeCode)
	weights := make(map[string]float64, len(items))
	levels := make(map[string]float64, len(items))
	var avail float64
	for _, id := range items {
		lvl, ok := snap.Level(id, geo, month)
		if !ok {
			continue
		}
		it, _ := snap.Item(id)
		w, _ := it.Weight(geo).Float64()
		if w <= 0 {
			continue
		}
		weights[id] = w
		levels[id] = lvl
		avail += w
	}
	if avail == 0 {
		return 0, false
	}
	for k := range weights {
		weights[k] /= avail
	}
	return WeightedMean(weights, levels), true
}

// Rollup computes every hierarchy node's index for one geography/month,
// children strictly before parents. Nodes with no data are omitted.
func Rollup(snap *refdata.Snapshot, geo api.Geography, month api.Month) map[string]float64 {
	out := make(map[string]float64)
	for _, n := range snap.Nodes() {
		if idx, ok := NodeIndex(snap, n.Code, geo, month); ok {
			out[n.Code] = idx
		}
	}
	return out
}
