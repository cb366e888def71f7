// Package errors provides severity-aware error types for the index engine.
package errors

import "fmt"

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// EngineError is a structured error with computation context.
type EngineError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Definition  string   `json:"definition,omitempty"`
	Geography   string   `json:"geography,omitempty"`
	Month       string   `json:"month,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *EngineError) Error() string {
	scope := e.Definition
	if e.Geography != "" {
		scope += "/" + e.Geography
	}
	if e.Month != "" {
		scope += "@" + e.Month
	}
	if scope != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Severity, e.Code, e.Message, scope)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeEmptyUniverse        = "EMPTY_UNIVERSE"
	ErrCodeInsufficientCoverage = "INSUFFICIENT_COVERAGE"
	ErrCodeInsufficientHistory  = "INSUFFICIENT_HISTORY"
	ErrCodeImputationExhausted  = "IMPUTATION_EXHAUSTED"
	ErrCodeLinkDivideByZero     = "LINK_DIVIDE_BY_ZERO"
	ErrCodeMalformedDefinition  = "MALFORMED_DEFINITION"
	ErrCodeCyclicHierarchy      = "CYCLIC_HIERARCHY"
	ErrCodeDuplicateItem        = "DUPLICATE_ITEM"
	ErrCodeDuplicatePoint       = "DUPLICATE_POINT"
	ErrCodeWeightSumMismatch    = "WEIGHT_SUM_MISMATCH"
	ErrCodeUnknownDefinition    = "UNKNOWN_DEFINITION"
	ErrCodeUnknownGeography     = "UNKNOWN_GEOGRAPHY"
)

// HasCode reports whether err is an *EngineError carrying the given code.
func HasCode(err error, code string) bool {
	e, ok := err.(*EngineError)
	return ok && e.Code == code
}

// NewEmptyUniverseError reports a definition whose rules select zero weight.
func NewEmptyUniverseError(definition, geography string) *EngineError {
	return &EngineError{
		Code:       ErrCodeEmptyUniverse,
		Message:    "definition selects no items with positive weight",
		Severity:   SeverityFatal,
		Definition: definition,
		Geography:  geography,
	}
}

// NewInsufficientCoverageError reports coverage below the hard floor.
// Fatal for the affected month only; sibling months proceed.
func NewInsufficientCoverageError(definition, geography, month string, coverage float64) *EngineError {
	return &EngineError{
		Code:       ErrCodeInsufficientCoverage,
		Message:    fmt.Sprintf("coverage %.4f below hard floor", coverage),
		Severity:   SeverityError,
		Definition: definition,
		Geography:  geography,
		Month:      month,
	}
}

// NewInsufficientHistoryError reports a rate whose reference month has no index.
func NewInsufficientHistoryError(definition, geography, month string, lagMonths int) *EngineError {
	return &EngineError{
		Code:        ErrCodeInsufficientHistory,
		Message:     fmt.Sprintf("no index level %d month(s) before", lagMonths),
		Severity:    SeverityWarning,
		Definition:  definition,
		Geography:   geography,
		Month:       month,
		Recoverable: true,
	}
}

// NewImputationExhaustedError reports a missing item with no usable ancestor index.
func NewImputationExhaustedError(itemID, geography, month string) *EngineError {
	return &EngineError{
		Code:      ErrCodeImputationExhausted,
		Message:   fmt.Sprintf("no ancestor index available for item %s", itemID),
		Severity:  SeverityError,
		Geography: geography,
		Month:     month,
	}
}

// NewLinkDivideByZeroError reports a zero or missing legacy level at the link month.
func NewLinkDivideByZeroError(definition, geography, linkMonth string) *EngineError {
	return &EngineError{
		Code:       ErrCodeLinkDivideByZero,
		Message:    "legacy series level at link month is zero or missing",
		Severity:   SeverityFatal,
		Definition: definition,
		Geography:  geography,
		Month:      linkMonth,
	}
}

// NewMalformedDefinitionError reports an invalid definition document.
func NewMalformedDefinitionError(definition, detail string) *EngineError {
	return &EngineError{
		Code:       ErrCodeMalformedDefinition,
		Message:    detail,
		Severity:   SeverityFatal,
		Definition: definition,
	}
}

// NewCyclicHierarchyError reports a hierarchy table that does not form a tree.
func NewCyclicHierarchyError(code string) *EngineError {
	return &EngineError{
		Code:     ErrCodeCyclicHierarchy,
		Message:  fmt.Sprintf("cycle detected through node %s", code),
		Severity: SeverityFatal,
	}
}

// NewDuplicateItemError reports a repeated item identifier in the weights table.
func NewDuplicateItemError(itemID string) *EngineError {
	return &EngineError{
		Code:     ErrCodeDuplicateItem,
		Message:  fmt.Sprintf("item id %s appears more than once", itemID),
		Severity: SeverityFatal,
	}
}

// NewDuplicatePointError reports more than one observation per (item, geography, month).
func NewDuplicatePointError(itemID, geography, month string) *EngineError {
	return &EngineError{
		Code:      ErrCodeDuplicatePoint,
		Message:   fmt.Sprintf("duplicate observation for item %s", itemID),
		Severity:  SeverityFatal,
		Geography: geography,
		Month:     month,
	}
}

// NewWeightSumError reports per-geography weights drifting from 100.
func NewWeightSumError(geography string, sum string) *EngineError {
	return &EngineError{
		Code:      ErrCodeWeightSumMismatch,
		Message:   fmt.Sprintf("available-item weights sum to %s, expected 100 within 0.01", sum),
		Severity:  SeverityError,
		Geography: geography,
	}
}
