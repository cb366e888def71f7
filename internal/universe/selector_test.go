package universe

import (
	"testing"

	"github.com/shopspring/decimal"

	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

const geo = api.Geography("combined")

func testSnapshot(t *testing.T) *refdata.Snapshot {
	t.Helper()
	mk := func(id, code string, weight float64, available bool, tags ...string) *refdata.Item {
		return &refdata.Item{
			ID: id, Name: id, HierarchyCode: code, Tags: tags, Available: available,
			Weights: map[api.Geography]decimal.Decimal{geo: decimal.NewFromFloat(weight)},
		}
	}
	items := []*refdata.Item{
		mk("rice", "01.1.1", 20, true, "food"),
		mk("wheat", "01.1.1", 15, true, "food"),
		mk("milk", "01.2.1", 10, true, "food"),
		mk("petrol", "04.1.1", 30, true, "fuel", "volatile"),
		mk("rent", "05.1.1", 25, true),
		mk("retired", "05.1.1", 0, false),
	}
	nodes := []*refdata.HierarchyNode{
		{Level: refdata.LevelDivision, Code: "01", Name: "Food"},
		{Level: refdata.LevelGroup, Code: "01.1", ParentCode: "01"},
		{Level: refdata.LevelClass, Code: "01.1.1", ParentCode: "01.1"},
		{Level: refdata.LevelGroup, Code: "01.2", ParentCode: "01"},
		{Level: refdata.LevelClass, Code: "01.2.1", ParentCode: "01.2"},
		{Level: refdata.LevelDivision, Code: "04", Name: "Fuel"},
		{Level: refdata.LevelGroup, Code: "04.1", ParentCode: "04"},
		{Level: refdata.LevelClass, Code: "04.1.1", ParentCode: "04.1"},
		{Level: refdata.LevelDivision, Code: "05", Name: "Housing"},
		{Level: refdata.LevelGroup, Code: "05.1", ParentCode: "05"},
		{Level: refdata.LevelClass, Code: "05.1.1", ParentCode: "05.1"},
	}
	snap, err := refdata.NewSnapshot(items, nil, nodes, "2024-01")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func headline() *refdata.Definition {
	return &refdata.Definition{
		ID: "headline", Include: refdata.IncludeAll,
		Geographies: []api.Geography{geo},
	}
}

func TestHeadlineResolvesFullUniverse(t *testing.T) {
	snap := testSnapshot(t)
	res, err := Resolve(snap, headline(), geo)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 5 {
		t.Fatalf("headline items = %v, want the 5 available items", res.Items)
	}
	if w, _ := res.SelectedWeight.Float64(); w != 100 {
		t.Errorf("selected weight = %v, want 100", w)
	}
	if res.Contains("retired") {
		t.Error("unavailable item must not be selected")
	}
}

func TestExclusionRules(t *testing.T) {
	snap := testSnapshot(t)
	tests := []struct {
		name    string
		exclude refdata.RuleSet
		items   int
		weight  float64
	}{
		{"by id", refdata.RuleSet{IDs: []string{"rent"}}, 4, 75},
		{"by tag", refdata.RuleSet{Tags: []string{"fuel"}}, 4, 70},
		{"by division", refdata.RuleSet{HierarchyCodes: []string{"01"}}, 2, 55},
		{"by group", refdata.RuleSet{HierarchyCodes: []string{"01.1"}}, 3, 65},
		{"by class", refdata.RuleSet{HierarchyCodes: []string{"01.2.1"}}, 4, 90},
		{"or across types", refdata.RuleSet{IDs: []string{"rent"}, Tags: []string{"volatile"}, HierarchyCodes: []string{"01.2"}}, 2, 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := headline()
			def.ExcludeSet = tt.exclude
			res, err := Resolve(snap, def, geo)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Items) != tt.items {
				t.Errorf("items = %v, want %d", res.Items, tt.items)
			}
			if w, _ := res.SelectedWeight.Float64(); w != tt.weight {
				t.Errorf("selected weight = %v, want %v", w, tt.weight)
			}
			if ew, _ := res.ExcludedWeight.Float64(); ew != 100-tt.weight {
				t.Errorf("excluded weight = %v, want %v", ew, 100-tt.weight)
			}
		})
	}
}

func TestAllowList(t *testing.T) {
	snap := testSnapshot(t)
	def := &refdata.Definition{
		ID: "food-only", Include: refdata.IncludeList,
		IncludeSet:  refdata.RuleSet{Tags: []string{"food"}},
		Geographies: []api.Geography{geo},
	}
	res, err := Resolve(snap, def, geo)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("allow-list items = %v, want 3", res.Items)
	}
	if w, _ := res.SelectedWeight.Float64(); w != 45 {
		t.Errorf("selected weight = %v, want 45", w)
	}
}

func TestEmptyUniverseFails(t *testing.T) {
	snap := testSnapshot(t)
	def := headline()
	def.ExcludeSet = refdata.RuleSet{HierarchyCodes: []string{"01", "04", "05"}}
	_, err := Resolve(snap, def, geo)
	if !enginerrors.HasCode(err, enginerrors.ErrCodeEmptyUniverse) {
		t.Fatalf("want EMPTY_UNIVERSE, got %v", err)
	}
}

func TestExclusionOrderIndependence(t *testing.T) {
	snap := testSnapshot(t)
	a := headline()
	a.ExcludeSet = refdata.RuleSet{Tags: []string{"fuel"}, HierarchyCodes: []string{"04"}}
	b := headline()
	b.ExcludeSet = refdata.RuleSet{HierarchyCodes: []string{"04"}, Tags: []string{"fuel"}}
	ra, err := Resolve(snap, a, geo)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := Resolve(snap, b, geo)
	if err != nil {
		t.Fatal(err)
	}
	if !ra.SelectedWeight.Equal(rb.SelectedWeight) || len(ra.Items) != len(rb.Items) {
		t.Error("OR-combined exclusion must be order-independent")
	}
}
