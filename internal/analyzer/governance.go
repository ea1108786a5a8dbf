// Package analyzer derives governance indicators from the regional gap
// table: how self-sufficient the state is, which regions are most at risk
// and where surplus fodder should move.
package analyzer

import (
	"cmp"
	"slices"
	"time"

	"github.com/fodder-analyzer/internal/domain"
)

// Thresholds for the statewide vulnerability grade and regional risk
const (
	CriticalSufficiency = 0.75
	ElevatedSufficiency = 0.90

	// RiskDeficitPct flags a deficit region when its shortfall exceeds this
	// share of demand
	RiskDeficitPct = 40.0

	// TransferShare is the fraction of the smaller side moved in a
	// suggested transfer
	TransferShare = 0.4

	// TransferPairs caps the number of surplus/deficit pairs considered
	TransferPairs = 3
)

// Vulnerability grades statewide fodder sufficiency
type Vulnerability string

const (
	Critical Vulnerability = "CRITICAL"
	Elevated Vulnerability = "ELEVATED"
	Stable   Vulnerability = "STABLE"
)

// VulnerabilityFor grades a sufficiency index
func VulnerabilityFor(sufficiency float64) Vulnerability {
	switch {
	case sufficiency < CriticalSufficiency:
		return Critical
	case sufficiency < ElevatedSufficiency:
		return Elevated
	default:
		return Stable
	}
}

// Assumptions documents the estimation basis shown alongside indicators
type Assumptions struct {
	Consumption string `json:"consumption"`
	Methodology string `json:"methodology"`
	Lineage     string `json:"lineage"`
	Disclaimer  string `json:"disclaimer"`
}

// DefaultAssumptions describes how the gap table was produced
var DefaultAssumptions = Assumptions{
	Consumption: "Adult Cattle: 2.2T/yr, Buffalo: 2.6T/yr, Small Ruminants: 0.3T/yr.",
	Methodology: "Production-based residue estimation using standard harvest indices (1.3 for Paddy, 2.0 for Maize and Groundnut).",
	Lineage:     "Derived from the mandal livestock census and crop production records.",
	Disclaimer:  "This is a decision support signal, not an executive order. Ground-truth validation by the administration is mandatory.",
}

// Methodology names the model behind the indicators
const Methodology = "Residue-to-grain ratio modelling against census demand."

// Report is the full set of governance indicators
type Report struct {
	Totals           domain.Totals   `json:"totals"`
	SufficiencyIndex float64         `json:"sufficiencyIndex"`
	Vulnerability    Vulnerability   `json:"vulnerability"`
	Certainty        float64         `json:"certainty"`
	Transfers        []Transfer      `json:"transfers"`
	Recommendations  []string        `json:"recommendations"`
	RiskRegions      []RiskRegion    `json:"riskRegions"`
	Regions          []RegionInsight `json:"regions"`
	Methodology      string          `json:"methodology"`
	Assumptions      Assumptions     `json:"assumptions"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

// RiskRegion is a deficit region whose shortfall exceeds RiskDeficitPct
type RiskRegion struct {
	Name              string  `json:"district"`
	BalanceTons       float64 `json:"balance"`
	DeficitPercentage float64 `json:"deficitPercentage"`
}

// Analyze computes the report for a set of region records. It returns nil
// when there are no records.
func Analyze(regions []domain.RegionRecord) *Report {
	if len(regions) == 0 {
		return nil
	}

	totals := domain.SumRegions(regions)
	suff := Sufficiency(totals)
	transfers := SuggestTransfers(regions)

	recs := make([]string, len(transfers))
	for i, t := range transfers {
		recs[i] = t.String()
	}

	return &Report{
		Totals:           totals,
		SufficiencyIndex: suff,
		Vulnerability:    VulnerabilityFor(suff),
		Certainty:        Certainty(regions),
		Transfers:        transfers,
		Recommendations:  recs,
		RiskRegions:      RiskRegions(regions),
		Regions:          RegionInsights(regions),
		Methodology:      Methodology,
		Assumptions:      DefaultAssumptions,
		GeneratedAt:      time.Now(),
	}
}

// Sufficiency is total supply over total demand, 0 when there is no demand
func Sufficiency(t domain.Totals) float64 {
	if t.Demand <= 0 {
		return 0
	}
	return t.Supply / t.Demand
}

// Certainty is the share of regions reporting any supply. Regions with no
// recorded supply usually mean missing crop data rather than zero output.
func Certainty(regions []domain.RegionRecord) float64 {
	if len(regions) == 0 {
		return 0
	}
	var reported int
	for _, r := range regions {
		if r.TotalSupplyTons > 0 {
			reported++
		}
	}
	return float64(reported) / float64(len(regions))
}

// RiskRegions returns deficit regions beyond RiskDeficitPct, most severe
// first
func RiskRegions(regions []domain.RegionRecord) []RiskRegion {
	var out []RiskRegion
	for _, r := range regions {
		if r.Status != domain.Deficit || -r.DeficitPercentage <= RiskDeficitPct {
			continue
		}
		out = append(out, RiskRegion{Name: r.Name, BalanceTons: r.BalanceTons, DeficitPercentage: r.DeficitPercentage})
	}
	slices.SortStableFunc(out, func(a, b RiskRegion) int {
		return cmp.Compare(a.DeficitPercentage, b.DeficitPercentage)
	})
	return out
}
