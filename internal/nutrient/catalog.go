package nutrient

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pbaille/nutriscan/internal/domain"
)

//go:embed indian_food_nutrients.csv
var defaultCatalog []byte

// Catalog column headers
const (
	ColFood     = "Food_Item"
	ColIron     = "Iron_mg"
	ColB12      = "B12_ug"
	ColVitaminD = "VitaminD_IU"
	ColCalcium  = "Calcium_mg"
)

// Catalog is the read-only reference table of food nutrients.
// It is safe for concurrent use once built.
type Catalog struct {
	records []domain.NutrientRecord
	names   []string
	index   map[string]int
}

// NewCatalog builds a catalog keyed by normalized food name
func NewCatalog(records []domain.NutrientRecord) (*Catalog, error) {
	c := &Catalog{
		records: make([]domain.NutrientRecord, 0, len(records)),
		names:   make([]string, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}

	for _, r := range records {
		key := domain.Normalize(r.FoodName)
		if key == "" {
			return nil, fmt.Errorf("empty food name")
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate food name %q", r.FoodName)
		}
		r.FoodName = key
		c.index[key] = len(c.records)
		c.records = append(c.records, r)
		c.names = append(c.names, key)
	}

	return c, nil
}

// Default returns the catalog bundled with the binary
func Default() (*Catalog, error) {
	return LoadCSV(bytes.NewReader(defaultCatalog))
}

// LoadCSV reads a catalog with a header row
func LoadCSV(r io.Reader) (*Catalog, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read csv: no header")
	}
	return FromRows(rows[0], rows[1:])
}

// FromRows builds a catalog from a header and data rows.
// Header matching ignores case; extra columns are ignored.
func FromRows(header []string, rows [][]string) (*Catalog, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	need := []string{ColFood, ColIron, ColB12, ColVitaminD, ColCalcium}
	idx := make([]int, len(need))
	for i, name := range need {
		pos, ok := cols[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
		idx[i] = pos
	}

	records := make([]domain.NutrientRecord, 0, len(rows))
	for n, row := range rows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		var vals [4]float64
		for i := range vals {
			pos := idx[i+1]
			if pos >= len(row) {
				return nil, fmt.Errorf("row %d: missing %s", n+1, need[i+1])
			}
			v, err := parseAmount(row[pos])
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", n+1, need[i+1], err)
			}
			vals[i] = v
		}
		if idx[0] >= len(row) {
			return nil, fmt.Errorf("row %d: missing %s", n+1, ColFood)
		}

		records = append(records, domain.NutrientRecord{
			FoodName:   row[idx[0]],
			IronMg:     vals[0],
			B12Ug:      vals[1],
			VitaminDIU: vals[2],
			CalciumMg:  vals[3],
		})
	}

	return NewCatalog(records)
}

// parseAmount reads a non-negative quantity; blanks count as zero
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount %v", v)
	}
	return v, nil
}

// Len returns the number of foods
func (c *Catalog) Len() int { return len(c.records) }

// Names returns the normalized food names in catalog order
func (c *Catalog) Names() []string { return c.names }

// Records returns all rows in catalog order
func (c *Catalog) Records() []domain.NutrientRecord { return c.records }

// Lookup finds an exact (normalized) food name
func (c *Catalog) Lookup(name string) (domain.NutrientRecord, bool) {
	i, ok := c.index[domain.Normalize(name)]
	if !ok {
		return domain.NutrientRecord{}, false
	}
	return c.records[i], true
}
