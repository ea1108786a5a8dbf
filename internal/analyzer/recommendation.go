package analyzer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/format"
)

// Transfer is a suggested movement of fodder between two regions
type Transfer struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Tons float64 `json:"tons"`
}

func (t Transfer) String() string {
	return fmt.Sprintf("Suggest moving ~%s tons from %s to %s.", format.Grouped(t.Tons), t.From, t.To)
}

// SuggestTransfers pairs the largest surpluses with the largest deficits by
// rank. Each pair moves TransferShare of the smaller of the two gaps.
func SuggestTransfers(regions []domain.RegionRecord) []Transfer {
	var surplus, deficit []domain.RegionRecord
	for _, r := range regions {
		switch r.Status {
		case domain.Surplus:
			surplus = append(surplus, r)
		case domain.Deficit:
			deficit = append(deficit, r)
		}
	}
	slices.SortStableFunc(surplus, func(a, b domain.RegionRecord) int { return cmp.Compare(b.BalanceTons, a.BalanceTons) })
	slices.SortStableFunc(deficit, func(a, b domain.RegionRecord) int { return cmp.Compare(a.BalanceTons, b.BalanceTons) })

	n := min(len(surplus), len(deficit), TransferPairs)
	transfers := make([]Transfer, 0, n)
	for i := range n {
		s, d := surplus[i], deficit[i]
		transfers = append(transfers, Transfer{
			From: s.Name,
			To:   d.Name,
			Tons: min(s.BalanceTons, -d.BalanceTons) * TransferShare,
		})
	}
	return transfers
}

// Severity buckets a region by its deficit percentage
type Severity string

const (
	SeveritySevere   Severity = "SEVERE"
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityStrong   Severity = "STRONG_SURPLUS"
	SeveritySurplus  Severity = "SURPLUS"
)

// RegionInsight pairs a region with its severity and advice
type RegionInsight struct {
	domain.RegionRecord
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// RegionInsights grades every region in file order
func RegionInsights(regions []domain.RegionRecord) []RegionInsight {
	out := make([]RegionInsight, len(regions))
	for i, r := range regions {
		sev := SeverityFor(r)
		out[i] = RegionInsight{RegionRecord: r, Severity: sev, Recommendation: recommend(r, sev)}
	}
	return out
}

// SeverityFor grades one region
func SeverityFor(r domain.RegionRecord) Severity {
	pct := r.DeficitPercentage
	switch {
	case r.Status == domain.Surplus && pct >= 50:
		return SeverityStrong
	case r.Status == domain.Surplus:
		return SeveritySurplus
	case pct <= -60:
		return SeveritySevere
	case pct <= -RiskDeficitPct:
		return SeverityHigh
	default:
		return SeverityModerate
	}
}

func recommend(r domain.RegionRecord, sev Severity) string {
	switch sev {
	case SeveritySevere:
		return fmt.Sprintf("Emergency procurement needed; shortfall is %s of demand", format.Percent(-r.DeficitPercentage))
	case SeverityHigh:
		return "Prioritize inbound transfers and open cattle camps"
	case SeverityModerate:
		return "Close the gap with silage and crop residue collection"
	case SeverityStrong:
		return "Candidate fodder bank for neighbouring deficit regions"
	default:
		return "Maintain storage levels"
	}
}
