package api

import (
	"fmt"
	"regexp"
	"strconv"
)

// Month is a calendar month in YYYY-MM form. The zero-padded form makes
// lexical ordering equal to chronological ordering.
type Month string

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonth validates and returns a Month.
func ParseMonth(s string) (Month, error) {
	if !monthRe.MatchString(s) {
		return "", fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return Month(s), nil
}

// Valid reports whether m is well-formed.
func (m Month) Valid() bool { return monthRe.MatchString(string(m)) }

func (m Month) split() (int, int) {
	y, _ := strconv.Atoi(string(m)[:4])
	mo, _ := strconv.Atoi(string(m)[5:])
	return y, mo
}

// MinusMonths returns the month n calendar months earlier.
func (m Month) MinusMonths(n int) Month {
	y, mo := m.split()
	total := y*12 + (mo - 1) - n
	return Month(fmt.Sprintf("%04d-%02d", total/12, total%12+1))
}

// Prev returns the immediately preceding month.
func (m Month) Prev() Month { return m.MinusMonths(1) }

// Next returns the immediately following month.
func (m Month) Next() Month { return m.MinusMonths(-1) }

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool { return m < o }

// MonthRange returns every month from from to to inclusive.
// Returns nil when to precedes from.
func MonthRange(from, to Month) []Month {
	if to.Before(from) {
		return nil
	}
	var out []Month
	for m := from; !to.Before(m); m = m.Next() {
		out = append(out, m)
	}
	return out
}
