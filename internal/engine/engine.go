// Package engine orchestrates the computation pipeline: universe resolution,
// missing-data handling, aggregation, rates, contributions, and QA. All work
// is a pure function of the snapshot and the definitions; a rerun with the
// same inputs reproduces the same records or the same failures.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cpi-engine/internal/aggregate"
	"cpi-engine/internal/contribution"
	"cpi-engine/internal/inflation"
	"cpi-engine/internal/linker"
	"cpi-engine/internal/missing"
	"cpi-engine/internal/qa"
	"cpi-engine/internal/refdata"
	"cpi-engine/internal/universe"
	"cpi-engine/internal/wedge"
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

const defaultWorkers = 4

// Engine computes index variants over an immutable snapshot.
type Engine struct {
	snap    *refdata.Snapshot
	defs    map[string]*refdata.Definition
	order   []string
	log     zerolog.Logger
	workers int
}

// New validates the definitions and builds an engine. A malformed definition
// is a configuration error and fails construction outright.
func New(snap *refdata.Snapshot, defs []*refdata.Definition) (*Engine, error) {
	e := &Engine{
		snap:    snap,
		defs:    make(map[string]*refdata.Definition, len(defs)),
		log:     zerolog.Nop(),
		workers: defaultWorkers,
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		e.defs[d.ID] = d
		e.order = append(e.order, d.ID)
	}
	sort.Strings(e.order)
	return e, nil
}

// WithLogger attaches a logger for computation events.
func (e *Engine) WithLogger(log zerolog.Logger) *Engine {
	e.log = log
	return e
}

// WithWorkers sets the parallel worker count.
func (e *Engine) WithWorkers(n int) *Engine {
	if n > 0 {
		e.workers = n
	}
	return e
}

// Definitions returns the configured definitions in id order.
func (e *Engine) Definitions() []*refdata.Definition {
	out := make([]*refdata.Definition, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.defs[id])
	}
	return out
}

// Snapshot exposes the underlying reference tables, read-only by convention.
func (e *Engine) Snapshot() *refdata.Snapshot { return e.snap }

// Request selects what to compute.
type Request struct {
	Definitions   []string        // empty = all configured
	Geographies   []api.Geography // empty = each definition's own scope
	From, To      api.Month
	Contributions bool
	RunQA         bool
}

// Result is the assembled output of one computation run.
type Result struct {
	RunID          string                        `json:"run_id"`
	StartedAt      time.Time                     `json:"started_at"`
	CompletedAt    time.Time                     `json:"completed_at"`
	Points         []api.IndexPoint              `json:"points"`
	Coverage       []api.CoverageRecord          `json:"coverage"`
	Contributions  []api.ContributionRecord      `json:"contributions,omitempty"`
	Decompositions []*contribution.Decomposition `json:"decompositions,omitempty"`
	Errors         []api.ComputeError            `json:"errors,omitempty"`
	QA             *api.QAReport                 `json:"qa,omitempty"`
}

// pairResult carries one (definition, geography) series computation.
type pairResult struct {
	points   []api.IndexPoint
	coverage []api.CoverageRecord
	decomps  []*contribution.Decomposition
	errs     []api.ComputeError
	levels   map[api.Month]float64
}

type pairKey struct {
	def string
	geo api.Geography
}

// Compute runs the pipeline. (definition, geography) series are computed on
// parallel workers; months within one series run in order because carried
// values and rates read earlier months of the same series. Per-triple
// failures are recorded and isolated; they never abort sibling records.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.New().String(), StartedAt: time.Now()}
	if !req.From.Valid() || !req.To.Valid() || req.To.Before(req.From) {
		return nil, enginerrors.NewMalformedDefinitionError("", "invalid month range")
	}

	pairs, confErrs := e.selectPairs(req)
	res.Errors = append(res.Errors, confErrs...)

	results := make(map[pairKey]*pairResult, len(pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for _, pk := range pairs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(pk pairKey) {
			defer wg.Done()
			defer func() { <-sem }()
			pr := e.computePair(pk, req)
			mu.Lock()
			results[pk] = pr
			mu.Unlock()
		}(pk)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		// Partial results carry no side effects; discard them.
		return nil, err
	}

	for _, pk := range pairs {
		pr := results[pk]
		if pr == nil {
			continue
		}
		res.Points = append(res.Points, pr.points...)
		res.Coverage = append(res.Coverage, pr.coverage...)
		res.Decompositions = append(res.Decompositions, pr.decomps...)
		res.Errors = append(res.Errors, pr.errs...)
		for _, d := range pr.decomps {
			res.Contributions = append(res.Contributions, d.Records()...)
		}
	}

	if req.RunQA {
		report, affected := qa.New(e.snap).Run(res.Points, res.Coverage, res.Decompositions)
		res.QA = report
		degradeFlags(res.Coverage, affected)
	}

	res.CompletedAt = time.Now()
	e.log.Info().
		Str("run_id", res.RunID).
		Int("points", len(res.Points)).
		Int("errors", len(res.Errors)).
		Msg("computation run complete")
	return res, nil
}

// selectPairs expands the request into (definition, geography) pairs in
// deterministic order, surfacing configuration errors per definition.
func (e *Engine) selectPairs(req Request) ([]pairKey, []api.ComputeError) {
	ids := req.Definitions
	if len(ids) == 0 {
		ids = e.order
	}
	var pairs []pairKey
	var errs []api.ComputeError
	for _, id := range ids {
		def, ok := e.defs[id]
		if !ok {
			errs = append(errs, api.ComputeError{
				Definition: id,
				Code:       enginerrors.ErrCodeUnknownDefinition,
				Message:    "definition not configured",
			})
			continue
		}
		geos := req.Geographies
		if len(geos) == 0 {
			geos = def.Geographies
		}
		for _, g := range geos {
			if !geographyInScope(def, g) {
				errs = append(errs, api.ComputeError{
					Definition: id,
					Geography:  g,
					Code:       enginerrors.ErrCodeUnknownGeography,
					Message:    "geography outside definition scope",
				})
				continue
			}
			pairs = append(pairs, pairKey{def: id, geo: g})
		}
	}
	return pairs, errs
}

func geographyInScope(def *refdata.Definition, geo api.Geography) bool {
	for _, g := range def.Geographies {
		if g == geo {
			return true
		}
	}
	return false
}

// computePair runs one (definition, geography) series: index levels for
// every month the rates need, then rates and contributions over the
// requested window.
func (e *Engine) computePair(pk pairKey, req Request) *pairResult {
	pr := &pairResult{levels: make(map[api.Month]float64)}
	def := e.defs[pk.def]

	uni, err := universe.Resolve(e.snap, def, pk.geo)
	if err != nil {
		pr.errs = append(pr.errs, toComputeError(err))
		return pr
	}

	// Rates need history: start twelve months early, clipped at the base.
	start := req.From.MinusMonths(12)
	if start.Before(e.snap.BaseMonth()) {
		start = e.snap.BaseMonth()
	}

	resolutions := make(map[api.Month]*missing.Resolution)
	for _, m := range api.MonthRange(start, req.To) {
		// Warm-up months exist only to feed rates and carry-forward; their
		// coverage records and failures stay out of the public result.
		requested := !m.Before(req.From)
		mres, err := missing.Resolve(e.snap, uni, def, m)
		if err != nil {
			if requested {
				pr.errs = append(pr.errs, toComputeError(err))
				if mres != nil {
					pr.coverage = append(pr.coverage, mres.Coverage)
				}
			}
			continue
		}
		resolutions[m] = mres
		pr.levels[m] = aggregate.WeightedMean(mres.Weights, mres.Levels)
		if requested {
			pr.coverage = append(pr.coverage, mres.Coverage)
		}
	}

	for _, m := range api.MonthRange(req.From, req.To) {
		mres, ok := resolutions[m]
		if !ok {
			continue
		}
		pt := api.IndexPoint{
			Definition:  pk.def,
			Geography:   pk.geo,
			Month:       m,
			Index:       pr.levels[m],
			Provisional: e.anyProvisional(mres),
		}
		if mom, err := inflation.MoM(pr.levels, pk.def, pk.geo, m); err == nil {
			pt.MoM = &mom
		}
		yoy, yoyErr := inflation.YoY(pr.levels, pk.def, pk.geo, m)
		if yoyErr == nil {
			pt.YoY = &yoy
		}
		pr.points = append(pr.points, pt)

		if req.Contributions && yoyErr == nil {
			prior, hasPrior := resolutions[m.MinusMonths(12)]
			if hasPrior {
				d := contribution.DecomposeYoY(e.snap, mres, prior, pr.levels[m.MinusMonths(12)], yoy)
				pr.decomps = append(pr.decomps, d)
			}
		}

		e.log.Debug().
			Str("definition", pk.def).
			Str("geography", string(pk.geo)).
			Str("month", string(m)).
			Float64("index", pt.Index).
			Float64("coverage", mres.Coverage.Coverage).
			Msg("triple computed")
	}
	return pr
}

func (e *Engine) anyProvisional(mres *missing.Resolution) bool {
	for _, id := range mres.Available {
		if p, ok := e.snap.Point(id, mres.Geography, mres.Month); ok && p.Provisional {
			return true
		}
	}
	return false
}

// Wedge computes headline and core over the window and attributes their YoY
// gap at month t.
func (e *Engine) Wedge(ctx context.Context, headlineID, coreID string, geo api.Geography, t api.Month) (*api.WedgeReport, error) {
	res, err := e.Compute(ctx, Request{
		Definitions:   []string{headlineID, coreID},
		Geographies:   []api.Geography{geo},
		From:          t,
		To:            t,
		Contributions: true,
	})
	if err != nil {
		return nil, err
	}
	var head, core *contribution.Decomposition
	for _, d := range res.Decompositions {
		switch {
		case d.Definition == headlineID && d.Month == t:
			head = d
		case d.Definition == coreID && d.Month == t:
			core = d
		}
	}
	if head == nil {
		return nil, wedgeFailure(headlineID, geo, t, res.Errors)
	}
	if core == nil {
		return nil, wedgeFailure(coreID, geo, t, res.Errors)
	}
	return wedge.Analyze(e.snap, head, core), nil
}

// wedgeFailure explains a side of the wedge that produced no decomposition:
// the pair's own recorded error when one exists, otherwise missing history.
func wedgeFailure(definition string, geo api.Geography, t api.Month, errs []api.ComputeError) error {
	for _, ce := range errs {
		if ce.Definition != definition {
			continue
		}
		sev := enginerrors.SeverityError
		if ce.Code == enginerrors.ErrCodeEmptyUniverse || ce.Code == enginerrors.ErrCodeMalformedDefinition {
			sev = enginerrors.SeverityFatal
		}
		return &enginerrors.EngineError{
			Code:       ce.Code,
			Message:    ce.Message,
			Severity:   sev,
			Definition: ce.Definition,
			Geography:  string(ce.Geography),
			Month:      string(ce.Month),
		}
	}
	return enginerrors.NewInsufficientHistoryError(definition, string(geo), string(t), 12)
}

// LinkSeries computes the definition's series on the current (new base-year)
// snapshot over the window and splices the supplied legacy series onto it at
// linkMonth.
func (e *Engine) LinkSeries(ctx context.Context, definition string, geo api.Geography, legacy map[api.Month]float64, linkMonth, from, to api.Month) (*api.LinkedSeries, error) {
	res, err := e.Compute(ctx, Request{
		Definitions: []string{definition},
		Geographies: []api.Geography{geo},
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}
	fresh := make(map[api.Month]float64)
	for _, p := range res.Points {
		fresh[p.Month] = p.Index
	}
	return linker.Link(definition, geo, legacy, fresh, linkMonth)
}

// Validate runs the QA validator over the reference tables alone.
func (e *Engine) Validate() *api.QAReport {
	report, _ := qa.New(e.snap).Run(nil, nil, nil)
	return report
}

func toComputeError(err error) api.ComputeError {
	if ee, ok := err.(*enginerrors.EngineError); ok {
		return api.ComputeError{
			Definition: ee.Definition,
			Geography:  api.Geography(ee.Geography),
			Month:      api.Month(ee.Month),
			Code:       ee.Code,
			Message:    ee.Message,
		}
	}
	return api.ComputeError{Code: "INTERNAL", Message: err.Error()}
}

// degradeFlags lowers the quality flag of each affected coverage record by
// one grade. Records are replaced, not mutated in place elsewhere.
func degradeFlags(coverage []api.CoverageRecord, affected []qa.Triple) {
	if len(affected) == 0 {
		return
	}
	bad := make(map[qa.Triple]bool, len(affected))
	for _, t := range affected {
		bad[t] = true
	}
	for i := range coverage {
		c := &coverage[i]
		if !bad[qa.Triple{Definition: c.Definition, Geography: c.Geography, Month: c.Month}] {
			continue
		}
		switch c.Flag {
		case api.FlagPass:
			c.Flag = api.FlagCaution
		case api.FlagCaution:
			c.Flag = api.FlagWeakSignal
		case api.FlagWeakSignal:
			c.Flag = api.FlagError
		}
	}
}
