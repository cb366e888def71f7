package refdata

import (
	"sort"

	"github.com/shopspring/decimal"

	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

type seriesKey struct {
	item  string
	geo   api.Geography
	month api.Month
}

// Snapshot is an immutable, in-memory view of the three reference tables.
// All engine computations are pure functions over a Snapshot.
type Snapshot struct {
	items     map[string]*Item
	itemIDs   []string // sorted, for deterministic iteration
	series    map[seriesKey]TimeSeriesPoint
	nodes     map[string]*HierarchyNode
	children  map[string][]string // node code -> sorted child node codes
	baseMonth api.Month
}

// NewSnapshot builds a snapshot and rejects structural defects that make
// computation meaningless: duplicate item ids, duplicate observations, and
// hierarchy cycles. Softer data problems (weight sums, base-month levels)
// are left to the QA validator, which reports without blocking.
func NewSnapshot(items []*Item, points []TimeSeriesPoint, nodes []*HierarchyNode, baseMonth api.Month) (*Snapshot, error) {
	s := &Snapshot{
		items:     make(map[string]*Item, len(items)),
		series:    make(map[seriesKey]TimeSeriesPoint, len(points)),
		nodes:     make(map[string]*HierarchyNode, len(nodes)),
		children:  make(map[string][]string),
		baseMonth: baseMonth,
	}

	for _, it := range items {
		if _, dup := s.items[it.ID]; dup {
			return nil, enginerrors.NewDuplicateItemError(it.ID)
		}
		s.items[it.ID] = it
		s.itemIDs = append(s.itemIDs, it.ID)
	}
	sort.Strings(s.itemIDs)

	for _, p := range points {
		k := seriesKey{p.ItemID, p.Geography, p.Month}
		if _, dup := s.series[k]; dup {
			return nil, enginerrors.NewDuplicatePointError(p.ItemID, string(p.Geography), string(p.Month))
		}
		s.series[k] = p
	}

	for _, n := range nodes {
		s.nodes[n.Code] = n
	}
	for _, n := range nodes {
		if n.ParentCode != "" {
			s.children[n.ParentCode] = append(s.children[n.ParentCode], n.Code)
		}
	}
	for code := range s.children {
		sort.Strings(s.children[code])
	}
	if cyclic := s.findCycle(); cyclic != "" {
		return nil, enginerrors.NewCyclicHierarchyError(cyclic)
	}

	return s, nil
}

// findCycle walks parent links from every node; a walk longer than the node
// count means a cycle. Returns the offending code or "".
func (s *Snapshot) findCycle() string {
	for code := range s.nodes {
		cur, steps := code, 0
		for cur != "" {
			n, ok := s.nodes[cur]
			if !ok {
				break
			}
			cur = n.ParentCode
			if steps++; steps > len(s.nodes) {
				return code
			}
		}
	}
	return ""
}

// BaseMonth is the month in which every item's level is defined as 100.
func (s *Snapshot) BaseMonth() api.Month { return s.baseMonth }

// Item returns the item with the given id.
func (s *Snapshot) Item(id string) (*Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// ItemIDs returns all item ids in sorted order.
func (s *Snapshot) ItemIDs() []string { return s.itemIDs }

// Items returns all items in id order.
func (s *Snapshot) Items() []*Item {
	out := make([]*Item, 0, len(s.itemIDs))
	for _, id := range s.itemIDs {
		out = append(out, s.items[id])
	}
	return out
}

// Point returns the observation for (item, geography, month).
func (s *Snapshot) Point(itemID string, geo api.Geography, month api.Month) (TimeSeriesPoint, bool) {
	p, ok := s.series[seriesKey{itemID, geo, month}]
	return p, ok
}

// Level returns a non-missing index level, or ok=false when the point is
// absent or explicitly missing.
func (s *Snapshot) Level(itemID string, geo api.Geography, month api.Month) (float64, bool) {
	p, ok := s.series[seriesKey{itemID, geo, month}]
	if !ok || p.Missing {
		return 0, false
	}
	return p.Index, true
}

// Node returns the hierarchy node with the given code.
func (s *Snapshot) Node(code string) (*HierarchyNode, bool) {
	n, ok := s.nodes[code]
	return n, ok
}

// Nodes returns all hierarchy nodes in code order.
func (s *Snapshot) Nodes() []*HierarchyNode {
	codes := make([]string, 0, len(s.nodes))
	for c := range s.nodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	out := make([]*HierarchyNode, 0, len(codes))
	for _, c := range codes {
		out = append(out, s.nodes[c])
	}
	return out
}

// ChildNodes returns the sorted child node codes of a node.
func (s *Snapshot) ChildNodes(code string) []string { return s.children[code] }

// ItemsUnder returns the sorted ids of available items whose hierarchy code
// falls under the given node code.
func (s *Snapshot) ItemsUnder(nodeCode string) []string {
	var out []string
	for _, id := range s.itemIDs {
		it := s.items[id]
		if it.Available && CodeMatches(it.HierarchyCode, nodeCode) {
			out = append(out, id)
		}
	}
	return out
}

// NodeWeight sums the absolute weights of available items under a node.
func (s *Snapshot) NodeWeight(nodeCode string, geo api.Geography) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range s.ItemsUnder(nodeCode) {
		sum = sum.Add(s.items[id].Weight(geo))
	}
	return sum
}

// Months returns every month observed in the time-series table, sorted.
func (s *Snapshot) Months() []api.Month {
	seen := make(map[api.Month]bool)
	for k := range s.series {
		seen[k.month] = true
	}
	out := make([]api.Month, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasSeries reports whether any observation exists for (item, geography).
func (s *Snapshot) HasSeries(itemID string, geo api.Geography) bool {
	for k := range s.series {
		if k.item == itemID && k.geo == geo {
			return true
		}
	}
	return false
}

// Geographies returns every geography that appears in item weights, sorted.
func (s *Snapshot) Geographies() []api.Geography {
	seen := make(map[api.Geography]bool)
	for _, it := range s.items {
		for g := range it.Weights {
			seen[g] = true
		}
	}
	out := make([]api.Geography, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
