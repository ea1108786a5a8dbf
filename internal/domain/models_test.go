package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		expected Status
	}{
		{"Positive", 10, Surplus},
		{"Tiny positive", 0.0001, Surplus},
		{"Zero is deficit", 0, Deficit},
		{"Negative", -5, Deficit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.balance); got != tt.expected {
				t.Errorf("StatusFor(%v) = %v, want %v", tt.balance, got, tt.expected)
			}
		})
	}
}

func TestNewRegionRecordInvariants(t *testing.T) {
	cases := []struct {
		supply, demand float64
	}{
		{529193.34, 2427896.20},
		{1828093.46, 543642.20},
		{1000, 1000},
		{0, 0},
		{12.5, 0},
	}

	for _, c := range cases {
		r := NewRegionRecord("X", c.supply, c.demand)
		if r.BalanceTons != c.supply-c.demand {
			t.Errorf("BalanceTons = %v, want %v", r.BalanceTons, c.supply-c.demand)
		}
		if (r.Status == Surplus) != (r.BalanceTons > 0) {
			t.Errorf("Status = %v for balance %v", r.Status, r.BalanceTons)
		}
	}
}

func TestNewRegionRecordDeficitPercentage(t *testing.T) {
	r := NewRegionRecord("NELLORE", 150, 100)
	if r.DeficitPercentage != 50 {
		t.Errorf("DeficitPercentage = %v, want 50", r.DeficitPercentage)
	}

	zero := NewRegionRecord("EMPTY", 100, 0)
	if zero.DeficitPercentage != 0 {
		t.Errorf("DeficitPercentage with zero demand = %v, want 0", zero.DeficitPercentage)
	}
}

func TestAnimalCategoryColumn(t *testing.T) {
	if Buffalo.Column() != "Buffaloes_Demand" {
		t.Errorf("Buffalo.Column() = %v, want Buffaloes_Demand", Buffalo.Column())
	}
	if Cattle.Column() != "Cattle_Demand" {
		t.Errorf("Cattle.Column() = %v, want Cattle_Demand", Cattle.Column())
	}
}

func TestSumRegions(t *testing.T) {
	records := []RegionRecord{
		NewRegionRecord("A", 100, 50),
		NewRegionRecord("B", 20, 70),
		NewRegionRecord("C", 30, 30),
	}
	totals := SumRegions(records)

	if totals.Supply != 150 || totals.Demand != 150 || totals.Balance != 0 {
		t.Errorf("SumRegions = %+v", totals)
	}
	if totals.SurplusCount != 1 {
		t.Errorf("SurplusCount = %v, want 1", totals.SurplusCount)
	}
	if totals.RegionCount != 3 {
		t.Errorf("RegionCount = %v, want 3", totals.RegionCount)
	}
}

func TestDatasetErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", NewDatasetError("gap", "missing.csv", errors.New("no such file")))
	if !errors.Is(err, ErrMissingDataset) {
		t.Error("DatasetError should match ErrMissingDataset")
	}

	var dsErr *DatasetError
	if !errors.As(err, &dsErr) || dsErr.Table != "gap" {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestUploadErrorMatchesSentinel(t *testing.T) {
	err := NewUploadError("data.csv", "no header row")
	if !errors.Is(err, ErrMalformedUpload) {
		t.Error("UploadError should unwrap to ErrMalformedUpload")
	}
}
