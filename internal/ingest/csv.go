// Package ingest materializes the reference tables from the formats external
// collaborators produce: CSV for weights, time series, and hierarchy, YAML
// for definition documents. Loading happens entirely outside the engine
// boundary; the output is an immutable snapshot.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

// Leading fixed columns of the weights table; remaining headers are
// geography names carrying absolute weights.
var itemColumns = []string{"item_id", "name", "hierarchy_code", "tags", "priority", "available"}

// ReadItems parses the weights table. Tags are pipe-separated; every column
// after the fixed set is a geography weight in 0-100.
func ReadItems(r io.Reader) ([]*refdata.Item, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if err := expectColumns(header, itemColumns); err != nil {
		return nil, fmt.Errorf("weights table: %w", err)
	}
	geos := header[len(itemColumns):]

	var items []*refdata.Item
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("weights table row %d: %d fields, want %d", i+2, len(row), len(header))
		}
		priority, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("weights table row %d: bad priority %q", i+2, row[4])
		}
		it := &refdata.Item{
			ID:            strings.TrimSpace(row[0]),
			Name:          strings.TrimSpace(row[1]),
			HierarchyCode: strings.TrimSpace(row[2]),
			Priority:      priority,
			Available:     strings.TrimSpace(row[5]) == "1",
			Weights:       make(map[api.Geography]decimal.Decimal, len(geos)),
		}
		if tags := strings.TrimSpace(row[3]); tags != "" {
			it.Tags = strings.Split(tags, "|")
		}
		for j, geo := range geos {
			cell := strings.TrimSpace(row[len(itemColumns)+j])
			if cell == "" {
				continue
			}
			w, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("weights table row %d: bad weight %q for %s", i+2, cell, geo)
			}
			it.Weights[api.Geography(geo)] = w
		}
		items = append(items, it)
	}
	return items, nil
}

// ReadSeries parses the time-series table. Fixed columns item_id, month,
// provisional; remaining headers are geographies. A blank cell is an
// explicit missing observation.
func ReadSeries(r io.Reader) ([]refdata.TimeSeriesPoint, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	fixed := []string{"item_id", "month", "provisional"}
	if err := expectColumns(header, fixed); err != nil {
		return nil, fmt.Errorf("series table: %w", err)
	}
	geos := header[len(fixed):]

	var points []refdata.TimeSeriesPoint
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("series table row %d: %d fields, want %d", i+2, len(row), len(header))
		}
		month, err := api.ParseMonth(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("series table row %d: %w", i+2, err)
		}
		provisional := strings.TrimSpace(row[2]) == "1"
		for j, geo := range geos {
			p := refdata.TimeSeriesPoint{
				ItemID:      strings.TrimSpace(row[0]),
				Geography:   api.Geography(geo),
				Month:       month,
				Provisional: provisional,
			}
			cell := strings.TrimSpace(row[len(fixed)+j])
			if cell == "" {
				p.Missing = true
			} else {
				lvl, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("series table row %d: bad level %q for %s", i+2, cell, geo)
				}
				p.Index = lvl
			}
			points = append(points, p)
		}
	}
	return points, nil
}

// ReadHierarchy parses the hierarchy table: level, code, name, parent_code,
// child_count.
func ReadHierarchy(r io.Reader) ([]*refdata.HierarchyNode, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	want := []string{"level", "code", "name", "parent_code", "child_count"}
	if err := expectColumns(header, want); err != nil {
		return nil, fmt.Errorf("hierarchy table: %w", err)
	}

	var nodes []*refdata.HierarchyNode
	for i, row := range rows {
		if len(row) < len(want) {
			return nil, fmt.Errorf("hierarchy table row %d: %d fields, want %d", i+2, len(row), len(want))
		}
		level := refdata.HierarchyLevel(strings.TrimSpace(row[0]))
		switch level {
		case refdata.LevelDivision, refdata.LevelGroup, refdata.LevelClass:
		default:
			return nil, fmt.Errorf("hierarchy table row %d: unknown level %q", i+2, row[0])
		}
		count, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("hierarchy table row %d: bad child_count %q", i+2, row[4])
		}
		nodes = append(nodes, &refdata.HierarchyNode{
			Level:      level,
			Code:       strings.TrimSpace(row[1]),
			Name:       strings.TrimSpace(row[2]),
			ParentCode: strings.TrimSpace(row[3]),
			ChildCount: count,
		})
	}
	return nodes, nil
}

// LoadSnapshot reads the three tables from files and builds a snapshot.
func LoadSnapshot(itemsPath, seriesPath, hierarchyPath string, baseMonth api.Month) (*refdata.Snapshot, error) {
	items, err := readFile(itemsPath, ReadItems)
	if err != nil {
		return nil, err
	}
	points, err := readFile(seriesPath, ReadSeries)
	if err != nil {
		return nil, err
	}
	nodes, err := readFile(hierarchyPath, ReadHierarchy)
	if err != nil {
		return nil, err
	}
	return refdata.NewSnapshot(items, points, nodes, baseMonth)
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return parse(f)
}

func readAll(r io.Reader) ([][]string, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, header, nil
}

func expectColumns(header, want []string) error {
	if len(header) < len(want) {
		return fmt.Errorf("header has %d columns, want at least %d", len(header), len(want))
	}
	for i, col := range want {
		if !strings.EqualFold(header[i], col) {
			return fmt.Errorf("column %d is %q, want %q", i+1, header[i], col)
		}
	}
	return nil
}
