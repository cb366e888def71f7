package missing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"cpi-engine/internal/refdata"
	"cpi-engine/internal/universe"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

const geo = api.Geography("combined")

type point struct {
	item    string
	month   api.Month
	level   float64
	missing bool
}

// fixture: five items with weights 20/30/25/15/10; item i3 has no
// observation at 2025-01, matching the documented missing-data scenario.
func testSnapshot(t *testing.T, points []point) *refdata.Snapshot {
	t.Helper()
	weights := map[string]float64{"i1": 20, "i2": 30, "i3": 25, "i4": 15, "i5": 10}
	codes := map[string]string{"i1": "01.1.1", "i2": "01.1.1", "i3": "01.1.1", "i4": "02.1.1", "i5": "02.1.1"}
	var items []*refdata.Item
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		items = append(items, &refdata.Item{
			ID: id, Name: id, HierarchyCode: codes[id], Available: true,
			Weights: map[api.Geography]decimal.Decimal{geo: decimal.NewFromFloat(weights[id])},
		})
	}
	nodes := []*refdata.HierarchyNode{
		{Level: refdata.LevelDivision, Code: "01"},
		{Level: refdata.LevelGroup, Code: "01.1", ParentCode: "01"},
		{Level: refdata.LevelClass, Code: "01.1.1", ParentCode: "01.1"},
		{Level: refdata.LevelDivision, Code: "02"},
		{Level: refdata.LevelGroup, Code: "02.1", ParentCode: "02"},
		{Level: refdata.LevelClass, Code: "02.1.1", ParentCode: "02.1"},
	}
	var pts []refdata.TimeSeriesPoint
	for _, p := range points {
		pts = append(pts, refdata.TimeSeriesPoint{
			ItemID: p.item, Geography: geo, Month: p.month, Index: p.level, Missing: p.missing,
		})
	}
	snap, err := refdata.NewSnapshot(items, pts, nodes, "2024-01")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func resolveAll(t *testing.T, snap *refdata.Snapshot, policy api.MissingPolicy, month api.Month) (*Resolution, error) {
	t.Helper()
	def := &refdata.Definition{
		ID: "headline", Include: refdata.IncludeAll,
		Geographies: []api.Geography{geo}, Policy: policy,
	}
	uni, err := universe.Resolve(snap, def, geo)
	if err != nil {
		t.Fatal(err)
	}
	return Resolve(snap, uni, def, month)
}

func scenarioPoints() []point {
	pts := []point{}
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		pts = append(pts, point{id, "2024-01", 100, false})
	}
	levels := map[string]float64{"i1": 102, "i2": 101, "i4": 100, "i5": 99}
	for id, lvl := range levels {
		pts = append(pts, point{id, "2025-01", lvl, false})
	}
	pts = append(pts, point{"i3", "2025-01", 0, true})
	return pts
}

func TestDropAndRenormalize(t *testing.T) {
	snap := testSnapshot(t, scenarioPoints())
	res, err := resolveAll(t, snap, api.PolicyDropAndRenormalize, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Coverage.Coverage; math.Abs(got-0.75) > 1e-12 {
		t.Errorf("coverage = %v, want 0.75", got)
	}
	if res.Coverage.Flag != api.FlagWeakSignal {
		t.Errorf("flag = %s, want WEAK_SIGNAL", res.Coverage.Flag)
	}
	want := map[string]float64{"i1": 20.0 / 75, "i2": 30.0 / 75, "i4": 15.0 / 75, "i5": 10.0 / 75}
	if len(res.Weights) != len(want) {
		t.Fatalf("weights = %v", res.Weights)
	}
	var sum float64
	for id, w := range want {
		if math.Abs(res.Weights[id]-w) > 1e-9 {
			t.Errorf("weight[%s] = %v, want %v", id, res.Weights[id], w)
		}
		sum += res.Weights[id]
	}
	if math.Abs(sum-1.0) > 1e-8 {
		t.Errorf("renormalized weights sum %v, want 1.0 within 1e-8", sum)
	}
	if len(res.Coverage.DroppedItems) != 1 || res.Coverage.DroppedItems[0] != "i3" {
		t.Errorf("dropped = %v, want [i3]", res.Coverage.DroppedItems)
	}
}

func TestCarryForward(t *testing.T) {
	pts := scenarioPoints()
	// Give i3 a prior observation to carry.
	pts = append(pts, point{"i3", "2024-12", 97.5, false})
	snap := testSnapshot(t, pts)
	res, err := resolveAll(t, snap, api.PolicyCarryForward, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Coverage.Coverage-1.0) > 1e-12 {
		t.Errorf("coverage = %v, want 1.0 under carry-forward", res.Coverage.Coverage)
	}
	if res.Levels["i3"] != 97.5 {
		t.Errorf("carried level = %v, want 97.5", res.Levels["i3"])
	}
	if len(res.Coverage.ImputedItems) != 1 || res.Coverage.ImputedItems[0] != "i3" {
		t.Errorf("imputed = %v, want [i3]", res.Coverage.ImputedItems)
	}
}

func TestCarryForwardReachesBase(t *testing.T) {
	// i3 has never been observed after the base month; base level carries.
	pts := scenarioPoints()
	snap := testSnapshot(t, pts)
	res, err := resolveAll(t, snap, api.PolicyCarryForward, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if res.Levels["i3"] != 100 {
		t.Errorf("carry-forward should reach back to the base level, got %v", res.Levels["i3"])
	}
}

func TestImputeParent(t *testing.T) {
	snap := testSnapshot(t, scenarioPoints())
	res, err := resolveAll(t, snap, api.PolicyImputeParent, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	// i3's class 01.1.1 has i1 and i2 available: (20*102+30*101)/50 = 101.4
	if math.Abs(res.Levels["i3"]-101.4) > 1e-9 {
		t.Errorf("imputed level = %v, want 101.4", res.Levels["i3"])
	}
	if math.Abs(res.Coverage.Coverage-1.0) > 1e-12 {
		t.Errorf("coverage = %v, want 1.0 under imputation", res.Coverage.Coverage)
	}
}

func TestImputeParentExhausted(t *testing.T) {
	// Nothing under division 01 has data at t, so i1-i3 have no ancestor index.
	pts := []point{}
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		pts = append(pts, point{id, "2024-01", 100, false})
	}
	pts = append(pts, point{"i4", "2025-01", 100, false}, point{"i5", "2025-01", 99, false})
	snap := testSnapshot(t, pts)
	_, err := resolveAll(t, snap, api.PolicyImputeParent, "2025-01")
	if !enginerrors.HasCode(err, enginerrors.ErrCodeImputationExhausted) {
		t.Fatalf("want IMPUTATION_EXHAUSTED, got %v", err)
	}
}

func TestZeroCoverageFails(t *testing.T) {
	pts := []point{}
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		pts = append(pts, point{id, "2024-01", 100, false})
		pts = append(pts, point{id, "2025-01", 0, true})
	}
	snap := testSnapshot(t, pts)
	res, err := resolveAll(t, snap, api.PolicyDropAndRenormalize, "2025-01")
	if !enginerrors.HasCode(err, enginerrors.ErrCodeInsufficientCoverage) {
		t.Fatalf("want INSUFFICIENT_COVERAGE, got %v", err)
	}
	if res == nil || res.Coverage.Flag != api.FlagError {
		t.Error("failed month must still carry an ERROR coverage record")
	}
}

func TestCoverageBelowFloorFails(t *testing.T) {
	// Only i5 (weight 10) available: coverage 0.10.
	pts := []point{{"i5", "2025-01", 99, false}}
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		pts = append(pts, point{id, "2024-01", 100, false})
	}
	snap := testSnapshot(t, pts)
	_, err := resolveAll(t, snap, api.PolicyDropAndRenormalize, "2025-01")
	if !enginerrors.HasCode(err, enginerrors.ErrCodeInsufficientCoverage) {
		t.Fatalf("want INSUFFICIENT_COVERAGE, got %v", err)
	}
}
