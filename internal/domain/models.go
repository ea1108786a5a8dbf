// Package domain contains the core domain models for the fodder analyzer.
// These models are shared by the dataset store, the intent engine and every
// outer surface (web, lambda, CLI).
package domain

// Status classifies the sign of a region's fodder balance
type Status string

const (
	Surplus Status = "SURPLUS"
	Deficit Status = "DEFICIT"
)

// StatusFor returns the status for a balance. A zero balance is a deficit:
// only a strictly positive balance counts as surplus.
func StatusFor(balance float64) Status {
	if balance > 0 {
		return Surplus
	}
	return Deficit
}

// Crop names, in the column order of the supply table
const (
	CropPaddy        = "Paddy"
	CropWheat        = "Wheat"
	CropJowar        = "Jowar"
	CropBajra        = "Bajra"
	CropMaize        = "Maize"
	CropRagi         = "Ragi"
	CropSmallMillets = "Small Millets"
	CropGroundnut    = "Groundnut"
	CropSugarcane    = "Sugarcane"
	CropCotton       = "Cotton"
	CropPulses       = "Pulses"
	CropSoyabean     = "Soyabean"
)

// Crops is the fixed crop set of the supply table
var Crops = []string{
	CropPaddy, CropWheat, CropJowar, CropBajra, CropMaize, CropRagi,
	CropSmallMillets, CropGroundnut, CropSugarcane, CropCotton, CropPulses, CropSoyabean,
}

// AnimalCategory is a livestock category of the demand tables
type AnimalCategory string

const (
	Cattle  AnimalCategory = "Cattle"
	Buffalo AnimalCategory = "Buffalo"
	Sheep   AnimalCategory = "Sheep"
	Goat    AnimalCategory = "Goat"
	Pig     AnimalCategory = "Pig"
	Poultry AnimalCategory = "Poultry"
)

// AnimalCategories lists every category in column order
var AnimalCategories = []AnimalCategory{Cattle, Buffalo, Sheep, Goat, Pig, Poultry}

// Column returns the demand table column holding this category's tonnage
func (a AnimalCategory) Column() string {
	if a == Buffalo {
		return "Buffaloes_Demand"
	}
	return string(a) + "_Demand"
}

// RegionRecord is one row of the gap-balance table
type RegionRecord struct {
	Name              string  `json:"district"`
	TotalSupplyTons   float64 `json:"supply"`
	TotalDemandTons   float64 `json:"demand"`
	BalanceTons       float64 `json:"balance"`
	Status            Status  `json:"status"`
	DeficitPercentage float64 `json:"deficitPercentage"`
}

// NewRegionRecord builds a record whose balance, status and deficit
// percentage are derived from supply and demand.
func NewRegionRecord(name string, supply, demand float64) RegionRecord {
	balance := supply - demand
	pct := 0.0
	if demand != 0 {
		pct = balance / demand * 100
	}
	return RegionRecord{
		Name:              name,
		TotalSupplyTons:   supply,
		TotalDemandTons:   demand,
		BalanceTons:       balance,
		Status:            StatusFor(balance),
		DeficitPercentage: pct,
	}
}

// CropSupplyRecord holds per-crop fodder tonnage for a region
type CropSupplyRecord struct {
	Region string             `json:"district"`
	Total  float64            `json:"total"`
	Crops  map[string]float64 `json:"crops"`
}

// Tons returns the tonnage for a crop, 0 when the crop is absent
func (c CropSupplyRecord) Tons(crop string) float64 {
	return c.Crops[crop]
}

// AnimalDemandRecord holds per-category fodder demand for a region
type AnimalDemandRecord struct {
	Region     string                     `json:"district"`
	Total      float64                    `json:"total"`
	Categories map[AnimalCategory]float64 `json:"categories"`
}

// Tons returns the demand for a category, 0 when absent
func (a AnimalDemandRecord) Tons(cat AnimalCategory) float64 {
	return a.Categories[cat]
}

// MandalRecord is a sub-region demand row
type MandalRecord struct {
	SubRegion       string                     `json:"mandal"`
	ParentRegion    string                     `json:"district"`
	TotalDemandTons float64                    `json:"total"`
	Categories      map[AnimalCategory]float64 `json:"categories"`
}

// Totals summarizes a set of region records
type Totals struct {
	Supply       float64 `json:"supply"`
	Demand       float64 `json:"demand"`
	Balance      float64 `json:"balance"`
	SurplusCount int     `json:"surplusCount"`
	RegionCount  int     `json:"regionCount"`
}

// SumRegions totals supply and demand over the records
func SumRegions(records []RegionRecord) Totals {
	var t Totals
	for _, r := range records {
		t.Supply += r.TotalSupplyTons
		t.Demand += r.TotalDemandTons
		if r.Status == Surplus {
			t.SurplusCount++
		}
	}
	t.Balance = t.Supply - t.Demand
	t.RegionCount = len(records)
	return t
}
