package qa

import (
	"testing"

	"github.com/shopspring/decimal"

	"cpi-engine/internal/contribution"
	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

const geo = api.Geography("national")

func buildSnapshot(t *testing.T, items []*refdata.Item, points []refdata.TimeSeriesPoint) *refdata.Snapshot {
	t.Helper()
	nodes := []*refdata.HierarchyNode{
		{Level: refdata.LevelDivision, Code: "01", Name: "Food"},
		{Level: refdata.LevelGroup, Code: "01.1", ParentCode: "01"},
		{Level: refdata.LevelClass, Code: "01.1.1", ParentCode: "01.1"},
	}
	snap, err := refdata.NewSnapshot(items, points, nodes, "2024-01")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func item(id string, weight float64) *refdata.Item {
	return &refdata.Item{
		ID: id, Name: id, HierarchyCode: "01.1.1", Available: true,
		Weights: map[api.Geography]decimal.Decimal{geo: decimal.NewFromFloat(weight)},
	}
}

func findCheck(t *testing.T, rep *api.QAReport, name string) api.QACheck {
	t.Helper()
	for _, c := range rep.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not in report", name)
	return api.QACheck{}
}

func TestCleanTablesPass(t *testing.T) {
	snap := buildSnapshot(t,
		[]*refdata.Item{item("a", 60), item("b", 40)},
		[]refdata.TimeSeriesPoint{
			{ItemID: "a", Geography: geo, Month: "2024-01", Index: 100},
			{ItemID: "b", Geography: geo, Month: "2024-01", Index: 100},
			{ItemID: "a", Geography: geo, Month: "2024-02", Index: 101},
			{ItemID: "b", Geography: geo, Month: "2024-02", Index: 102},
		})

	rep, affected := New(snap).Run(nil, nil, nil)
	if !rep.Passed {
		t.Fatalf("report failed: %+v", rep.Checks)
	}
	if len(affected) != 0 {
		t.Fatalf("affected = %v, want none", affected)
	}
	if rep.ID == "" || rep.GeneratedAt == "" {
		t.Error("report must carry an id and timestamp")
	}
}

func TestWeightSumViolation(t *testing.T) {
	snap := buildSnapshot(t,
		[]*refdata.Item{item("a", 60), item("b", 39)}, // sums to 99
		nil)

	rep, _ := New(snap).Run(nil, nil, nil)
	c := findCheck(t, rep, "weight_sum_per_geography")
	if c.Passed || len(c.Failures) != 1 {
		t.Fatalf("weight sum check = %+v, want one failure", c)
	}
	if rep.Passed {
		t.Error("report must fail on a weight-sum breach")
	}
}

func TestBaseMonthViolation(t *testing.T) {
	snap := buildSnapshot(t,
		[]*refdata.Item{item("a", 100)},
		[]refdata.TimeSeriesPoint{
			{ItemID: "a", Geography: geo, Month: "2024-01", Index: 100.5},
		})

	rep, _ := New(snap).Run(nil, nil, nil)
	c := findCheck(t, rep, "base_month_equals_100")
	if c.Passed {
		t.Fatal("base-month check must fail when the base level is not 100")
	}
	if rep.Passed {
		t.Error("report must fail")
	}
}

func TestMoMOutlierIsWarningOnly(t *testing.T) {
	snap := buildSnapshot(t,
		[]*refdata.Item{item("a", 100)},
		[]refdata.TimeSeriesPoint{
			{ItemID: "a", Geography: geo, Month: "2024-01", Index: 100},
			{ItemID: "a", Geography: geo, Month: "2024-02", Index: 130}, // +30% MoM
		})

	rep, _ := New(snap).Run(nil, nil, nil)
	c := findCheck(t, rep, "mom_outliers")
	if c.Passed || c.Severity != "warning" {
		t.Fatalf("outlier check = %+v, want a warning failure", c)
	}
	if !rep.Passed {
		t.Error("warnings alone must not fail the report")
	}
}

func TestCoverageErrorDegradesTriple(t *testing.T) {
	snap := buildSnapshot(t, []*refdata.Item{item("a", 100)}, nil)
	coverage := []api.CoverageRecord{
		{Definition: "headline", Geography: geo, Month: "2025-02", Coverage: 0.40, Flag: api.FlagError},
		{Definition: "headline", Geography: geo, Month: "2025-01", Coverage: 0.98, Flag: api.FlagPass},
	}

	rep, affected := New(snap).Run(nil, coverage, nil)
	c := findCheck(t, rep, "coverage_flags")
	if c.Passed || len(c.Failures) != 1 {
		t.Fatalf("coverage check = %+v, want exactly one failure", c)
	}
	if len(affected) != 1 || affected[0].Month != "2025-02" {
		t.Fatalf("affected = %v, want only the ERROR month", affected)
	}
}

func TestContributionIdentity(t *testing.T) {
	snap := buildSnapshot(t, []*refdata.Item{item("a", 100)}, nil)

	good := &contribution.Decomposition{
		Definition: "headline", Geography: geo, Month: "2025-01",
		YoY: 2.90, Residual: 0,
		Items: []contribution.ItemContribution{
			{ItemID: "a", Points: 1.90}, {ItemID: "b", Points: 1.00},
		},
	}
	rep, affected := New(snap).Run(nil, nil, []*contribution.Decomposition{good})
	if c := findCheck(t, rep, "contribution_sum_identity"); !c.Passed {
		t.Fatalf("identity check failed on a consistent decomposition: %+v", c)
	}
	if len(affected) != 0 {
		t.Fatal("no triple should be degraded")
	}

	// Residual field disagrees with the actual gap.
	bad := &contribution.Decomposition{
		Definition: "headline", Geography: geo, Month: "2025-01",
		YoY: 2.90, Residual: 0,
		Items: []contribution.ItemContribution{
			{ItemID: "a", Points: 1.90},
		},
	}
	rep, affected = New(snap).Run(nil, nil, []*contribution.Decomposition{bad})
	c := findCheck(t, rep, "contribution_sum_identity")
	if c.Passed || c.Severity != "warning" {
		t.Fatalf("identity check = %+v, want a warning failure", c)
	}
	if len(affected) != 1 {
		t.Fatalf("affected = %v, want the inconsistent triple", affected)
	}

	// Residual honest but beyond the tolerance still warns.
	large := &contribution.Decomposition{
		Definition: "headline", Geography: geo, Month: "2025-01",
		YoY: 2.90, Residual: 0.50,
		Items: []contribution.ItemContribution{
			{ItemID: "a", Points: 2.40},
		},
	}
	rep, affected = New(snap).Run(nil, nil, []*contribution.Decomposition{large})
	if c := findCheck(t, rep, "contribution_sum_identity"); c.Passed {
		t.Fatal("identity check must flag residuals beyond tolerance")
	}
	if len(affected) != 1 {
		t.Fatal("oversized residual must degrade its triple")
	}
}
