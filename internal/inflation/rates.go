// Package inflation derives month-on-month and year-on-year rates from
// computed index levels.
package inflation

import (
	"cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

// Rate computes the percentage change of the index at t against the index
// lagMonths earlier. Fails with INSUFFICIENT_HISTORY when the reference
// month has no computed index; callers treat that as "not yet computable",
// never as zero.
func Rate(levels map[api.Month]float64, definition string, geo api.Geography, t api.Month, lagMonths int) (float64, error) {
	cur, ok := levels[t]
	if !ok {
		return 0, enginerrors.NewInsufficientHistoryError(definition, string(geo), string(t), 0)
	}
	ref, ok := levels[t.MinusMonths(lagMonths)]
	if !ok || ref == 0 {
		return 0, enginerrors.NewInsufficientHistoryError(definition, string(geo), string(t), lagMonths)
	}
	return (cur/ref - 1) * 100, nil
}

// MoM is the month-on-month rate at t.
func MoM(levels map[api.Month]float64, definition string, geo api.Geography, t api.Month) (float64, error) {
	return Rate(levels, definition, geo, t, 1)
}

// YoY is the year-on-year rate at t.
func YoY(levels map[api.Month]float64, definition string, geo api.Geography, t api.Month) (float64, error) {
	return Rate(levels, definition, geo, t, 12)
}
