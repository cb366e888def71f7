package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cpi-engine/internal/refdata"
	"cpi-engine/pkg/api"
)

// DefinitionsDoc is the on-disk shape of the definition configuration.
type DefinitionsDoc struct {
	BaseMonth   api.Month             `yaml:"base_month"`
	Definitions []*refdata.Definition `yaml:"definitions"`
}

// ReadDefinitions parses and validates a definitions document.
func ReadDefinitions(r io.Reader) (*DefinitionsDoc, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc DefinitionsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definitions document: %w", err)
	}
	if !doc.BaseMonth.Valid() {
		return nil, fmt.Errorf("definitions document: invalid base_month %q", doc.BaseMonth)
	}
	seen := make(map[string]bool, len(doc.Definitions))
	for _, d := range doc.Definitions {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("definitions document: duplicate definition id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return &doc, nil
}

// LoadDefinitions reads a definitions document from a file.
func LoadDefinitions(path string) (*DefinitionsDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDefinitions(f)
}

// ReadLevelSeries parses a two-column month,index CSV, the exchange format
// for an externally computed series (e.g. a legacy base-year series being
// linked).
func ReadLevelSeries(r io.Reader) (map[api.Month]float64, error) {
	rows, header, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if err := expectColumns(header, []string{"month", "index"}); err != nil {
		return nil, fmt.Errorf("level series: %w", err)
	}
	out := make(map[api.Month]float64, len(rows))
	for i, row := range rows {
		m, err := api.ParseMonth(row[0])
		if err != nil {
			return nil, fmt.Errorf("level series row %d: %w", i+2, err)
		}
		lvl, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("level series row %d: bad index %q", i+2, row[1])
		}
		out[m] = lvl
	}
	return out, nil
}

// LoadLevelSeries reads a level series from a file.
func LoadLevelSeries(path string) (map[api.Month]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLevelSeries(f)
}
