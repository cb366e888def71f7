// Package qa runs invariant checks over the reference tables and computed
// records and emits a structured quality report. The validator never
// mutates underlying data; a failing check degrades the affected record's
// quality flag but never blocks computation of other records.
package qa

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cpi-engine/internal/contribution"
	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

const (
	weightSumTolerance = 0.01
	baseLevelTolerance = 1e-6
	momOutlierPct      = 20.0
)

// Triple identifies one affected (definition, geography, month) record.
type Triple struct {
	Definition string
	Geography  api.Geography
	Month      api.Month
}

// Validator checks reference-table and output invariants.
type Validator struct {
	snap *refdata.Snapshot
}

func New(snap *refdata.Snapshot) *Validator { return &Validator{snap: snap} }

// Run executes every check and returns the report plus the triples whose
// quality flags should be degraded by the caller.
func (v *Validator) Run(points []api.IndexPoint, coverage []api.CoverageRecord, decomps []*contribution.Decomposition) (*api.QAReport, []Triple) {
	rep := &api.QAReport{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	var affected []Triple

	rep.Checks = append(rep.Checks,
		v.checkWeightSums(),
		v.checkUniqueItemIDs(),
		v.checkHierarchy(),
		v.checkBaseMonth(),
		v.checkSeriesBounds(),
		v.checkMoMOutliers(),
	)

	covCheck, covBad := v.checkCoverageFlags(coverage)
	rep.Checks = append(rep.Checks, covCheck)
	affected = append(affected, covBad...)

	contribCheck, contribBad := v.checkContributionIdentity(decomps)
	rep.Checks = append(rep.Checks, contribCheck)
	affected = append(affected, contribBad...)

	rep.Passed = true
	for _, c := range rep.Checks {
		if !c.Passed && c.Severity != enginerrors.SeverityWarning.String() {
			rep.Passed = false
		}
	}
	return rep, affected
}

func check(name string, severity enginerrors.Severity, failures []string) api.QACheck {
	return api.QACheck{
		Name:     name,
		Passed:   len(failures) == 0,
		Severity: severity.String(),
		Failures: failures,
	}
}

// checkWeightSums verifies that per geography, available-item weights sum to
// 100 within tolerance. The engine does not own this invariant but must
// fail loudly when the input violates it.
func (v *Validator) checkWeightSums() api.QACheck {
	var failures []string
	hundred := decimal.NewFromInt(100)
	for _, geo := range v.snap.Geographies() {
		sum := decimal.Zero
		for _, it := range v.snap.Items() {
			if it.Available {
				sum = sum.Add(it.Weight(geo))
			}
		}
		diff, _ := sum.Sub(hundred).Abs().Float64()
		if diff > weightSumTolerance {
			failures = append(failures, enginerrors.NewWeightSumError(string(geo), sum.StringFixed(4)).Error())
		}
	}
	return check("weight_sum_per_geography", enginerrors.SeverityError, failures)
}

func (v *Validator) checkUniqueItemIDs() api.QACheck {
	var failures []string
	ids := v.snap.ItemIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			failures = append(failures, fmt.Sprintf("duplicate item id %s", ids[i]))
		}
	}
	return check("unique_item_ids", enginerrors.SeverityError, failures)
}

// checkHierarchy verifies parent links resolve and every item's hierarchy
// code lands on exactly one class-level node. Cycles are rejected at
// snapshot construction; a re-check here keeps the report self-contained.
func (v *Validator) checkHierarchy() api.QACheck {
	var failures []string
	for _, n := range v.snap.Nodes() {
		if n.ParentCode == "" {
			continue
		}
		if _, ok := v.snap.Node(n.ParentCode); !ok {
			failures = append(failures, fmt.Sprintf("node %s: parent %s not found", n.Code, n.ParentCode))
		}
	}
	for _, it := range v.snap.Items() {
		classCode := refdata.CodeAtLevel(it.HierarchyCode, refdata.LevelClass)
		if classCode == "" {
			failures = append(failures, fmt.Sprintf("item %s: hierarchy code %q too shallow", it.ID, it.HierarchyCode))
			continue
		}
		if _, ok := v.snap.Node(classCode); !ok {
			failures = append(failures, fmt.Sprintf("item %s: class node %s not found", it.ID, classCode))
		}
	}
	return check("hierarchy_integrity", enginerrors.SeverityError, failures)
}

// checkBaseMonth verifies every observed item/geography series carries a
// base-month level of exactly 100.
func (v *Validator) checkBaseMonth() api.QACheck {
	var failures []string
	base := v.snap.BaseMonth()
	for _, it := range v.snap.Items() {
		for _, geo := range v.snap.Geographies() {
			if !v.snap.HasSeries(it.ID, geo) {
				continue
			}
			lvl, ok := v.snap.Level(it.ID, geo, base)
			if !ok {
				failures = append(failures, fmt.Sprintf("item %s/%s: no base-month observation", it.ID, geo))
				continue
			}
			if math.Abs(lvl-100.0) > baseLevelTolerance {
				failures = append(failures, fmt.Sprintf("item %s/%s: base level %.6f != 100", it.ID, geo, lvl))
			}
		}
	}
	return check("base_month_equals_100", enginerrors.SeverityError, failures)
}

// checkSeriesBounds verifies every non-missing observation is strictly
// positive.
func (v *Validator) checkSeriesBounds() api.QACheck {
	var failures []string
	for _, it := range v.snap.Items() {
		for _, geo := range v.snap.Geographies() {
			for _, m := range v.snap.Months() {
				p, ok := v.snap.Point(it.ID, geo, m)
				if !ok || p.Missing {
					continue
				}
				if p.Index <= 0 {
					failures = append(failures, fmt.Sprintf("item %s/%s@%s: non-positive level %.4f", it.ID, geo, m, p.Index))
				}
			}
		}
	}
	return check("index_bounds", enginerrors.SeverityError, failures)
}

// checkMoMOutliers flags item-level month-on-month moves beyond the outlier
// threshold. Warning only: large moves are suspicious, not invalid.
func (v *Validator) checkMoMOutliers() api.QACheck {
	var failures []string
	months := v.snap.Months()
	for _, it := range v.snap.Items() {
		for _, geo := range v.snap.Geographies() {
			for i := 1; i < len(months); i++ {
				if months[i-1] != months[i].Prev() {
					continue
				}
				prev, okPrev := v.snap.Level(it.ID, geo, months[i-1])
				cur, okCur := v.snap.Level(it.ID, geo, months[i])
				if !okPrev || !okCur || prev == 0 {
					continue
				}
				mom := (cur/prev - 1) * 100
				if math.Abs(mom) > momOutlierPct {
					failures = append(failures, fmt.Sprintf("item %s/%s@%s: MoM %.2f%% exceeds ±%.0f%%", it.ID, geo, months[i], mom, momOutlierPct))
				}
			}
		}
	}
	return check("mom_outliers", enginerrors.SeverityWarning, failures)
}

func (v *Validator) checkCoverageFlags(coverage []api.CoverageRecord) (api.QACheck, []Triple) {
	var failures []string
	var affected []Triple
	for _, c := range coverage {
		if c.Flag == api.FlagError {
			failures = append(failures, fmt.Sprintf("%s/%s@%s: coverage %.4f graded ERROR", c.Definition, c.Geography, c.Month, c.Coverage))
			affected = append(affected, Triple{c.Definition, c.Geography, c.Month})
		}
	}
	return check("coverage_flags", enginerrors.SeverityError, failures), affected
}

// checkContributionIdentity verifies the contribution-sum law: the item
// points plus the reported residual reconstruct the published YoY rate, and
// the residual stays within tolerance. Non-fatal; the residual is already an
// explicit output field.
func (v *Validator) checkContributionIdentity(decomps []*contribution.Decomposition) (api.QACheck, []Triple) {
	var failures []string
	var affected []Triple
	for _, d := range decomps {
		var sum float64
		ids := make([]string, 0, len(d.Items))
		byID := d.ItemPoints()
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			sum += byID[id]
		}
		if math.Abs(sum+d.Residual-d.YoY) > baseLevelTolerance {
			failures = append(failures, fmt.Sprintf("%s/%s@%s: residual field inconsistent with contribution sum", d.Definition, d.Geography, d.Month))
			affected = append(affected, Triple{d.Definition, d.Geography, d.Month})
			continue
		}
		if math.Abs(d.Residual) > contribution.TolerancePP {
			failures = append(failures, fmt.Sprintf("%s/%s@%s: contribution residual %.4f pp exceeds %.2f pp", d.Definition, d.Geography, d.Month, d.Residual, contribution.TolerancePP))
			affected = append(affected, Triple{d.Definition, d.Geography, d.Month})
		}
	}
	return check("contribution_sum_identity", enginerrors.SeverityWarning, failures), affected
}
