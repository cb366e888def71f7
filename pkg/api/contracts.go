// Package api defines the plain record structures the engine exchanges with
// external collaborators (loaders, dashboards, exporters). No engine-internal
// types appear here; every field is a value the consumer can serialize as-is.
package api

// Geography is an independent weighting and index scope (combined, rural,
// urban, ...). Computations never mix across geographies.
type Geography string

// MissingPolicy selects how a month's missing observations are handled.
type MissingPolicy string

const (
	PolicyDropAndRenormalize MissingPolicy = "DROP_AND_RENORMALIZE"
	PolicyCarryForward       MissingPolicy = "CARRY_FORWARD"
	PolicyImputeParent       MissingPolicy = "IMPUTE_PARENT"
)

// QualityFlag grades a computed record by its data coverage.
type QualityFlag string

const (
	FlagPass       QualityFlag = "PASS"
	FlagCaution    QualityFlag = "CAUTION"
	FlagWeakSignal QualityFlag = "WEAK_SIGNAL"
	FlagError      QualityFlag = "ERROR"
)

// Coverage thresholds. Fixed by methodology, not runtime-configurable.
const (
	CoveragePass      = 0.95
	CoverageCaution   = 0.85
	CoverageHardFloor = 0.70
)

// FlagForCoverage maps a coverage ratio to its quality flag. Ratios below
// the hard floor grade ERROR; callers treat that as fatal for the month.
func FlagForCoverage(cov float64) QualityFlag {
	switch {
	case cov >= CoveragePass:
		return FlagPass
	case cov >= CoverageCaution:
		return FlagCaution
	case cov >= CoverageHardFloor:
		return FlagWeakSignal
	default:
		return FlagError
	}
}

// IndexPoint is one computed index level with its derived rates.
// MoM/YoY are nil when the reference month has no computed index.
type IndexPoint struct {
	Definition  string    `json:"definition"`
	Geography   Geography `json:"geography"`
	Month       Month     `json:"month"`
	Index       float64   `json:"index"`
	MoM         *float64  `json:"mom,omitempty"`
	YoY         *float64  `json:"yoy,omitempty"`
	Provisional bool      `json:"provisional,omitempty"`
}

// CoverageRecord describes data availability behind one computed month.
// Produced fresh each computation and never mutated afterwards.
type CoverageRecord struct {
	Definition      string        `json:"definition"`
	Geography       Geography     `json:"geography"`
	Month           Month         `json:"month"`
	Policy          MissingPolicy `json:"policy"`
	SelectedWeight  float64       `json:"selected_weight"`
	AvailableWeight float64       `json:"available_weight"`
	Coverage        float64       `json:"coverage"`
	Flag            QualityFlag   `json:"flag"`
	DroppedItems    []string      `json:"dropped_items,omitempty"`
	ImputedItems    []string      `json:"imputed_items,omitempty"`
}

// ContributionRecord attributes percentage points of a month's YoY inflation
// to one item or hierarchy group.
type ContributionRecord struct {
	Definition string    `json:"definition"`
	Geography  Geography `json:"geography"`
	Month      Month     `json:"month"`
	Subject    string    `json:"subject"` // item id or group code
	Name       string    `json:"name,omitempty"`
	Level      string    `json:"level"` // "item" or "group"
	Points     float64   `json:"points"`
}

// WedgeGroup attributes part of a headline-core gap to one hierarchy group.
type WedgeGroup struct {
	GroupCode      string  `json:"group_code"`
	GroupName      string  `json:"group_name,omitempty"`
	HeadlinePoints float64 `json:"headline_points"`
	CorePoints     float64 `json:"core_points"`
	Wedge          float64 `json:"wedge"`
}

// WedgeReport compares two definitions' YoY rates for one geography/month.
// Residual is the part of the wedge not reconstructed by group attribution;
// it is nonzero when the two definitions' availability sets differ.
type WedgeReport struct {
	Headline    string       `json:"headline"`
	Core        string       `json:"core"`
	Geography   Geography    `json:"geography"`
	Month       Month        `json:"month"`
	HeadlineYoY float64      `json:"headline_yoy"`
	CoreYoY     float64      `json:"core_yoy"`
	Wedge       float64      `json:"wedge"`
	Groups      []WedgeGroup `json:"groups"`
	Residual    float64      `json:"residual"`
}

// LinkedPoint is one month of a spliced series.
type LinkedPoint struct {
	Month  Month   `json:"month"`
	Index  float64 `json:"index"`
	Source string  `json:"source"` // "legacy" or "new"
}

// LinkedSeries splices a legacy base-year series onto a new one.
type LinkedSeries struct {
	Definition string        `json:"definition"`
	Geography  Geography     `json:"geography"`
	LinkMonth  Month         `json:"link_month"`
	LinkFactor float64       `json:"link_factor"`
	Points     []LinkedPoint `json:"points"`
}

// QACheck is the outcome of one validator check.
type QACheck struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity string   `json:"severity"`
	Failures []string `json:"failures,omitempty"`
}

// QAReport is the structured output of the quality validator.
type QAReport struct {
	ID          string    `json:"id"`
	GeneratedAt string    `json:"generated_at"`
	Checks      []QACheck `json:"checks"`
	Passed      bool      `json:"passed"`
}

// ComputeError records a per-record failure that did not abort the run.
type ComputeError struct {
	Definition string    `json:"definition,omitempty"`
	Geography  Geography `json:"geography,omitempty"`
	Month      Month     `json:"month,omitempty"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
}
