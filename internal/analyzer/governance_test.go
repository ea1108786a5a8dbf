package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodder-analyzer/internal/domain"
)

func sampleRegions() []domain.RegionRecord {
	return []domain.RegionRecord{
		domain.NewRegionRecord("PRAKASAM", 529193.34, 2427896.20),
		domain.NewRegionRecord("KADAPA", 363509.13, 1481487.20),
		domain.NewRegionRecord("GUNTUR", 669802.04, 735090.20),
		domain.NewRegionRecord("ELURU", 1828093.46, 1665749.50),
		domain.NewRegionRecord("KRISHNA", 1215900.87, 932936.60),
		domain.NewRegionRecord("WEST GODAVARI", 1828093.46, 543642.20),
		domain.NewRegionRecord("NO DATA", 0, 1000),
	}
}

func TestVulnerabilityFor(t *testing.T) {
	tests := []struct {
		sufficiency float64
		want        Vulnerability
	}{
		{0, Critical},
		{0.7499, Critical},
		{0.75, Elevated},
		{0.8999, Elevated},
		{0.9, Stable},
		{1.4, Stable},
	}
	for _, tt := range tests {
		if got := VulnerabilityFor(tt.sufficiency); got != tt.want {
			t.Errorf("VulnerabilityFor(%v) = %v, want %v", tt.sufficiency, got, tt.want)
		}
	}
}

func TestSufficiency(t *testing.T) {
	assert.Equal(t, 0.0, Sufficiency(domain.Totals{Supply: 10}))
	assert.InDelta(t, 0.5, Sufficiency(domain.Totals{Supply: 50, Demand: 100}), 1e-9)
}

func TestCertainty(t *testing.T) {
	assert.Equal(t, 0.0, Certainty(nil))
	assert.InDelta(t, 6.0/7.0, Certainty(sampleRegions()), 1e-9)
}

func TestSuggestTransfers(t *testing.T) {
	transfers := SuggestTransfers(sampleRegions())
	require.Len(t, transfers, 3)

	// Largest surplus pairs with the largest deficit
	assert.Equal(t, "WEST GODAVARI", transfers[0].From)
	assert.Equal(t, "PRAKASAM", transfers[0].To)
	assert.InDelta(t, 1284451.26*0.4, transfers[0].Tons, 0.01)

	// The deficit is the smaller side here
	assert.Equal(t, "ELURU", transfers[2].From)
	assert.Equal(t, "GUNTUR", transfers[2].To)
	assert.InDelta(t, 65288.16*0.4, transfers[2].Tons, 0.01)

	assert.Equal(t, "Suggest moving ~26,115 tons from ELURU to GUNTUR.", transfers[2].String())
}

func TestSuggestTransfersOneSided(t *testing.T) {
	surplusOnly := []domain.RegionRecord{domain.NewRegionRecord("A", 10, 5)}
	assert.Empty(t, SuggestTransfers(surplusOnly))
	assert.Empty(t, SuggestTransfers(nil))
}

func TestRiskRegions(t *testing.T) {
	risks := RiskRegions(sampleRegions())
	require.Len(t, risks, 3)
	assert.Equal(t, "NO DATA", risks[0].Name)
	assert.Equal(t, "PRAKASAM", risks[1].Name)
	assert.Equal(t, "KADAPA", risks[2].Name)
	for _, r := range risks {
		assert.Less(t, r.DeficitPercentage, -RiskDeficitPct)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name   string
		record domain.RegionRecord
		want   Severity
	}{
		{"severe", domain.NewRegionRecord("A", 20, 100), SeveritySevere},
		{"high", domain.NewRegionRecord("A", 55, 100), SeverityHigh},
		{"moderate", domain.NewRegionRecord("A", 95, 100), SeverityModerate},
		{"zero balance is deficit", domain.NewRegionRecord("A", 100, 100), SeverityModerate},
		{"surplus", domain.NewRegionRecord("A", 110, 100), SeveritySurplus},
		{"strong surplus", domain.NewRegionRecord("A", 200, 100), SeverityStrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityFor(tt.record))
		})
	}
}

func TestAnalyze(t *testing.T) {
	assert.Nil(t, Analyze(nil))

	regions := sampleRegions()
	report := Analyze(regions)
	require.NotNil(t, report)

	totals := domain.SumRegions(regions)
	assert.Equal(t, totals, report.Totals)
	assert.InDelta(t, totals.Supply/totals.Demand, report.SufficiencyIndex, 1e-9)
	assert.Equal(t, VulnerabilityFor(report.SufficiencyIndex), report.Vulnerability)
	assert.Len(t, report.Recommendations, len(report.Transfers))
	assert.Len(t, report.Regions, len(regions))
	assert.Equal(t, DefaultAssumptions, report.Assumptions)
	assert.NotEmpty(t, report.Methodology)
}
