// Package dataset loads the regional fodder tables from flat CSV files and
// serves them as immutable snapshots.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fodder-analyzer/internal/domain"
)

// Table names used in errors and health output
const (
	TableGap    = "gap"
	TableSupply = "supply"
	TableDemand = "demand"
	TableMandal = "mandal"
)

// Column headers
const (
	colDistrict    = "District"
	colMandal      = "Mandal"
	colTotalSupply = "Total_Fodder_Tons"
	colTotalDemand = "Total_Demand_Tons"
	colBalance     = "Balance_Tons"
	colStatus      = "Status"
)

// table is a parsed CSV with a header index
type table struct {
	header map[string]int
	rows   [][]string
}

func (t *table) has(col string) bool {
	_, ok := t.header[col]
	return ok
}

func (t *table) str(row []string, col string) string {
	i, ok := t.header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// num reads a numeric cell; blank or missing cells read as 0
func (t *table) num(row []string, col string) (float64, error) {
	s := strings.ReplaceAll(t.str(row, col), ",", "")
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

// tons reads a tonnage cell, which must be finite and not negative
func (t *table) tons(row []string, col string) (float64, error) {
	v, err := t.num(row, col)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("column %s: invalid tonnage %v", col, v)
	}
	return v, nil
}

func readTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	t := &table{header: make(map[string]int, len(records[0]))}
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.header[h] = i
	}
	for _, col := range required {
		if !t.has(col) {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func openTable(name, path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewDatasetError(name, path, err)
	}
	defer f.Close()

	t, err := readTable(f, required...)
	if err != nil {
		return nil, domain.NewDatasetError(name, path, err)
	}
	return t, nil
}

// Mismatch records a row whose stored balance or status disagreed with the
// value recomputed from supply and demand.
type Mismatch struct {
	Region string
	Field  string
	Stored string
	Want   string
}

// LoadGap reads the gap-balance table. Balance, status and deficit
// percentage are recomputed from supply and demand; rows where the file
// disagreed are reported as mismatches.
func LoadGap(path string) ([]domain.RegionRecord, []Mismatch, error) {
	t, err := openTable(TableGap, path, colDistrict, colTotalSupply, colTotalDemand)
	if err != nil {
		return nil, nil, err
	}
	return parseGap(t, path)
}

func parseGap(t *table, path string) ([]domain.RegionRecord, []Mismatch, error) {
	var (
		records    []domain.RegionRecord
		mismatches []Mismatch
		seen       = make(map[string]bool)
	)
	for i, row := range t.rows {
		name := t.str(row, colDistrict)
		if name == "" || seen[name] {
			continue
		}
		supply, err := t.tons(row, colTotalSupply)
		if err != nil {
			return nil, nil, domain.NewDatasetError(TableGap, path, fmt.Errorf("row %d: %w", i+2, err))
		}
		demand, err := t.tons(row, colTotalDemand)
		if err != nil {
			return nil, nil, domain.NewDatasetError(TableGap, path, fmt.Errorf("row %d: %w", i+2, err))
		}

		rec := domain.NewRegionRecord(name, supply, demand)
		seen[name] = true
		records = append(records, rec)

		if t.has(colStatus) {
			if stored := strings.ToUpper(t.str(row, colStatus)); stored != "" && stored != string(rec.Status) {
				mismatches = append(mismatches, Mismatch{Region: name, Field: colStatus, Stored: stored, Want: string(rec.Status)})
			}
		}
		if t.has(colBalance) {
			if stored, err := t.num(row, colBalance); err == nil && !closeEnough(stored, rec.BalanceTons) {
				mismatches = append(mismatches, Mismatch{
					Region: name,
					Field:  colBalance,
					Stored: strconv.FormatFloat(stored, 'f', 2, 64),
					Want:   strconv.FormatFloat(rec.BalanceTons, 'f', 2, 64),
				})
			}
		}
	}
	return records, mismatches, nil
}

// closeEnough tolerates the rounding of a two-decimal CSV export
func closeEnough(a, b float64) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

// LoadSupply reads the per-crop supply table. Unknown columns are ignored
// and missing crop columns read as 0.
func LoadSupply(path string) ([]domain.CropSupplyRecord, error) {
	t, err := openTable(TableSupply, path, colDistrict)
	if err != nil {
		return nil, err
	}

	var records []domain.CropSupplyRecord
	for i, row := range t.rows {
		name := t.str(row, colDistrict)
		if name == "" {
			continue
		}
		rec := domain.CropSupplyRecord{Region: name, Crops: make(map[string]float64, len(domain.Crops))}
		for _, crop := range domain.Crops {
			v, err := t.tons(row, crop)
			if err != nil {
				return nil, domain.NewDatasetError(TableSupply, path, fmt.Errorf("row %d: %w", i+2, err))
			}
			rec.Crops[crop] = v
		}
		if t.has(colTotalSupply) {
			if rec.Total, err = t.tons(row, colTotalSupply); err != nil {
				return nil, domain.NewDatasetError(TableSupply, path, fmt.Errorf("row %d: %w", i+2, err))
			}
		} else {
			for _, v := range rec.Crops {
				rec.Total += v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadDemand reads the per-category demand table
func LoadDemand(path string) ([]domain.AnimalDemandRecord, error) {
	t, err := openTable(TableDemand, path, colDistrict)
	if err != nil {
		return nil, err
	}

	var records []domain.AnimalDemandRecord
	for i, row := range t.rows {
		name := t.str(row, colDistrict)
		if name == "" {
			continue
		}
		cats, total, err := categoryTons(t, row)
		if err != nil {
			return nil, domain.NewDatasetError(TableDemand, path, fmt.Errorf("row %d: %w", i+2, err))
		}
		rec := domain.AnimalDemandRecord{Region: name, Categories: cats, Total: total}
		if t.has(colTotalDemand) {
			if rec.Total, err = t.tons(row, colTotalDemand); err != nil {
				return nil, domain.NewDatasetError(TableDemand, path, fmt.Errorf("row %d: %w", i+2, err))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadMandals reads the sub-region demand table
func LoadMandals(path string) ([]domain.MandalRecord, error) {
	t, err := openTable(TableMandal, path, colDistrict, colMandal)
	if err != nil {
		return nil, err
	}

	var records []domain.MandalRecord
	for i, row := range t.rows {
		district, mandal := t.str(row, colDistrict), t.str(row, colMandal)
		if district == "" || mandal == "" {
			continue
		}
		cats, total, err := categoryTons(t, row)
		if err != nil {
			return nil, domain.NewDatasetError(TableMandal, path, fmt.Errorf("row %d: %w", i+2, err))
		}
		rec := domain.MandalRecord{SubRegion: mandal, ParentRegion: district, Categories: cats, TotalDemandTons: total}
		if t.has(colTotalDemand) {
			if rec.TotalDemandTons, err = t.tons(row, colTotalDemand); err != nil {
				return nil, domain.NewDatasetError(TableMandal, path, fmt.Errorf("row %d: %w", i+2, err))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func categoryTons(t *table, row []string) (map[domain.AnimalCategory]float64, float64, error) {
	cats := make(map[domain.AnimalCategory]float64, len(domain.AnimalCategories))
	var total float64
	for _, cat := range domain.AnimalCategories {
		v, err := t.tons(row, cat.Column())
		if err != nil {
			return nil, 0, err
		}
		cats[cat] = v
		total += v
	}
	return cats, total, nil
}
