package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/forecast"
	"github.com/fodder-analyzer/internal/format"
	"github.com/fodder-analyzer/internal/resolver"
)

// shortageCrops are the crops named by keywords, in keyword order
var shortageCrops = func() []string {
	var out []string
	for _, k := range resolver.CropKeywords {
		if !slices.Contains(out, k.Target) {
			out = append(out, k.Target)
		}
	}
	return out
}()

// deepDiveCrops are compared against the state average in a region report
var deepDiveCrops = []string{
	domain.CropPaddy, domain.CropMaize, domain.CropGroundnut, domain.CropSugarcane,
	domain.CropJowar, domain.CropBajra, domain.CropRagi,
}

// majorCategories are the livestock groups named in a region report
var majorCategories = []domain.AnimalCategory{domain.Cattle, domain.Buffalo, domain.Sheep, domain.Goat}

func (e *Engine) cropShortage(req *request) (string, bool) {
	if !req.snap.HasSupply() {
		return "", false
	}
	var (
		lowest string
		low    float64
	)
	for _, crop := range shortageCrops {
		var total float64
		for _, s := range req.snap.Supply {
			total += s.Tons(crop)
		}
		if total <= 0 {
			continue
		}
		if lowest == "" || total < low {
			lowest, low = crop, total
		}
	}
	if lowest == "" {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CRITICAL CROP ANALYSIS: %s\n\n", strings.ToUpper(lowest))
	fmt.Fprintf(&b, "State Total: **%s**\n", format.Tons(low))
	b.WriteString("Status: **Lowest Active Fodder Source**\n\n")
	fmt.Fprintf(&b, "Insight: %s contributes the smallest share of biomass to the state fodder pool. "+
		"Districts with heavy cattle demand that lean on %s are exposed; supplement with Paddy straw or Maize silage.", lowest, lowest)
	return b.String(), true
}

func (e *Engine) cropReport(req *request) (string, bool) {
	crop, _ := resolver.ResolveCrop(req.query)
	if !req.snap.HasSupply() {
		return "", false
	}

	var total float64
	top := req.snap.Supply[0]
	for _, s := range req.snap.Supply {
		total += s.Tons(crop)
		if s.Tons(crop) > top.Tons(crop) {
			top = s
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CROP REPORT: %s\n\n", strings.ToUpper(crop))
	fmt.Fprintf(&b, "State Total: **%s**\n", format.Tons(total))
	fmt.Fprintf(&b, "Top Producer: **%s** (%s)\n\n", top.Region, format.Tons(top.Tons(crop)))
	fmt.Fprintf(&b, "Analysis: %s is an important fodder source and %s is the largest contributor to its biomass.", crop, top.Region)
	return b.String(), true
}

func (e *Engine) livestockReport(req *request) (string, bool) {
	cat, _ := resolver.ResolveAnimal(req.query)
	if !req.snap.HasDemand() {
		return "", false
	}

	var total float64
	top := req.snap.Demand[0]
	for _, d := range req.snap.Demand {
		total += d.Tons(cat)
		if d.Tons(cat) > top.Tons(cat) {
			top = d
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "LIVESTOCK INSIGHT: %s\n\n", strings.ToUpper(string(cat)))
	fmt.Fprintf(&b, "Total Feed Needed (State): **%s**\n", format.Tons(total))
	fmt.Fprintf(&b, "Highest Requirement in: **%s** (%s)\n\n", top.Region, format.Tons(top.Tons(cat)))
	fmt.Fprintf(&b, "Management Tip: Keeping %s in %s on quality feed matters most for production targets.", cat, top.Region)
	return b.String(), true
}

func (e *Engine) comparison(req *request) (string, bool) {
	names := e.resolver.ResolveAll(req.query, req.names)
	if len(names) < 2 {
		return "", false
	}
	r1, ok1 := req.snap.Region(names[0])
	r2, ok2 := req.snap.Region(names[1])
	if !ok1 || !ok2 {
		return "", false
	}

	diff := r1.BalanceTons - r2.BalanceTons
	winner := r2.Name
	if diff > 0 {
		winner = r1.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "COMPARISON: %s vs %s\n\n", strings.ToUpper(r1.Name), strings.ToUpper(r2.Name))
	fmt.Fprintf(&b, "• %s: %s (%s)\n", r1.Name, format.Tons(r1.BalanceTons), r1.Status)
	fmt.Fprintf(&b, "• %s: %s (%s)\n\n", r2.Name, format.Tons(r2.BalanceTons), r2.Status)
	fmt.Fprintf(&b, "Gap Analysis: **%s** is in a better relative position by %s.", winner, format.Tons(math.Abs(diff)))
	return b.String(), true
}

func (e *Engine) dashboardHelp(req *request) (string, bool) {
	t, ok := findTopic(req.upper, dashboardGuide)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("DASHBOARD GUIDE: %s\n\n%s", t.key, t.text), true
}

// rankMetric selects the gap table column a ranking sorts by
type rankMetric struct {
	label     string
	value     func(domain.RegionRecord) float64
	ascending bool
}

func chooseMetric(req *request) rankMetric {
	lowest := req.has(lowestWords...)
	direction := "HIGHEST"
	if lowest {
		direction = "LOWEST"
	}

	switch {
	case req.has(demandWords...):
		return rankMetric{direction + " DEMAND", func(r domain.RegionRecord) float64 { return r.TotalDemandTons }, lowest}
	case req.has(supplyWords...):
		return rankMetric{direction + " SUPPLY", func(r domain.RegionRecord) float64 { return r.TotalSupplyTons }, lowest}
	case req.has(surplusWords...):
		return rankMetric{direction + " SURPLUS", func(r domain.RegionRecord) float64 { return r.BalanceTons }, lowest}
	default:
		// Most critical balance first
		return rankMetric{"RANKING", func(r domain.RegionRecord) float64 { return r.BalanceTons }, true}
	}
}

func (e *Engine) ranking(req *request) (string, bool) {
	idx, _ := rankIndex(req.upper)
	m := chooseMetric(req)

	sorted := slices.Clone(req.snap.Regions)
	slices.SortStableFunc(sorted, func(a, b domain.RegionRecord) int {
		if m.ascending {
			return cmp.Compare(m.value(a), m.value(b))
		}
		return cmp.Compare(m.value(b), m.value(a))
	})
	if idx >= len(sorted) {
		e.log.Debug("%v: #%d of %d", domain.ErrOutOfRangeRank, idx+1, len(sorted))
		return "", false
	}
	row := sorted[idx]

	var b strings.Builder
	fmt.Fprintf(&b, "%s: #%d\n\n", m.label, idx+1)
	fmt.Fprintf(&b, "District: **%s**\n", strings.ToUpper(row.Name))
	fmt.Fprintf(&b, "Metric: **%s**\n", format.Tons(m.value(row)))
	fmt.Fprintf(&b, "Current Status: %s", row.Status)
	return b.String(), true
}

// extremes returns up to n surplus regions by balance descending and up to
// n deficit regions by balance ascending
func extremes(regions []domain.RegionRecord, n int) (surplus, deficit []domain.RegionRecord) {
	for _, r := range regions {
		switch {
		case r.BalanceTons > 0:
			surplus = append(surplus, r)
		case r.BalanceTons < 0:
			deficit = append(deficit, r)
		}
	}
	slices.SortStableFunc(surplus, func(a, b domain.RegionRecord) int { return cmp.Compare(b.BalanceTons, a.BalanceTons) })
	slices.SortStableFunc(deficit, func(a, b domain.RegionRecord) int { return cmp.Compare(a.BalanceTons, b.BalanceTons) })
	if n > 0 {
		surplus = surplus[:min(n, len(surplus))]
		deficit = deficit[:min(n, len(deficit))]
	}
	return surplus, deficit
}

func (e *Engine) logistics(req *request) (string, bool) {
	hubs, zones := extremes(req.snap.Regions, 3)
	if len(hubs) == 0 || len(zones) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("🚚 LOGISTICS STRATEGY: STATEWIDE REDISTRIBUTION\n\n")
	b.WriteString("Redistribution is the primary intervention for closing district fodder gaps.\n\n")

	b.WriteString("**📍 KEY SUPPLY HUBS (SURPLUS):**\n")
	for _, r := range hubs {
		fmt.Fprintf(&b, "- **%s**: +%s\n", r.Name, format.Tons(r.BalanceTons))
	}
	b.WriteString("\n**🚩 PRIORITY DEFICIT ZONES:**\n")
	for _, r := range zones {
		fmt.Fprintf(&b, "- **%s**: %s\n", r.Name, format.Tons(r.BalanceTons))
	}

	b.WriteString("\n**STRATEGIC PLAN:**\n")
	step := 1
	fmt.Fprintf(&b, "%d. Start transport from **%s** to **%s** to bridge the largest gap.\n", step, hubs[0].Name, zones[0].Name)
	step++
	if len(hubs) > 1 && len(zones) > 1 {
		fmt.Fprintf(&b, "%d. Use **%s** as a secondary hub for **%s**.\n", step, hubs[1].Name, zones[1].Name)
		step++
	}
	fmt.Fprintf(&b, "%d. Mobilize fodder banks in surplus zones to hold a 30-day buffer for neighbouring deficit areas.", step)
	return b.String(), true
}

func (e *Engine) deficitList(req *request) (string, bool) {
	_, deficit := extremes(req.snap.Regions, 0)
	if len(deficit) == 0 {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚩 CRITICAL SHORTAGE LIST (%d Districts)\n\n", len(deficit))
	b.WriteString("These areas report a negative fodder balance:\n\n")
	for i, r := range deficit {
		fmt.Fprintf(&b, "%d. **%s** (%s)\n", i+1, r.Name, format.Tons(r.BalanceTons))
	}
	b.WriteString("\n**Recommendation:** Prioritize fodder movement to the top 3 zones immediately.")
	return b.String(), true
}

func (e *Engine) forecast(req *request) (string, bool) {
	scope := "STATEWIDE"
	totals := req.snap.Totals()
	supply, demand := totals.Supply, totals.Demand
	if name, ok := e.resolver.Resolve(req.query, req.names); ok {
		if r, found := req.snap.Region(name); found {
			scope = strings.ToUpper(r.Name)
			supply, demand = r.TotalSupplyTons, r.TotalDemandTons
		}
	}

	p := forecast.Project(supply, demand, forecast.DefaultHorizon)

	var b strings.Builder
	fmt.Fprintf(&b, "🔮 FUTURE FORECAST: %s\n\n", scope)
	fmt.Fprintf(&b, "Monthly burn rate from current consumption: ~%s\n\n", format.Tons(p.MonthlyBurn))
	b.WriteString("| Period | Est. Stock | Status |\n|---|---|---|\n")
	for _, period := range p.Periods {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", period.Label, format.Tons(period.DisplayStock), statusBadge(period.Status))
	}
	b.WriteString("\n**GOVERNANCE ADVICE:** ")
	if p.FinalStock() < 0 {
		b.WriteString("Resource redistribution is required within 90 days.")
	} else {
		b.WriteString("Maintain current storage levels.")
	}
	return b.String(), true
}

func statusBadge(s forecast.PeriodStatus) string {
	if s == forecast.Safe {
		return "🟢 SAFE"
	}
	return "🔴 SHORTAGE"
}

// dropPercent extracts the first "<n>%" from the query
func dropPercent(upper string) int {
	m := percentPattern.FindStringSubmatch(upper)
	if m == nil {
		return forecast.DefaultDropPct
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil {
		// Too many digits to fit an int
		return 100
	}
	return pct
}

func (e *Engine) scenario(req *request) (string, bool) {
	totals := req.snap.Totals()
	s := forecast.StressTest(totals.Supply, totals.Demand, dropPercent(req.upper))

	var b strings.Builder
	fmt.Fprintf(&b, "📉 SCENARIO STRESS TEST: %d%% RESOURCE DROP\n\n", s.DropPct)
	b.WriteString("Simulating the effect of lost rainfall on biomass generation...\n\n")
	fmt.Fprintf(&b, "• Current Supply: **%s**\n", format.Tons(s.CurrentSupply))
	fmt.Fprintf(&b, "• Hypothetical Supply: **%s**\n", format.Tons(s.HypotheticalSupply))
	fmt.Fprintf(&b, "• New Resource Gap: **%s**\n", format.Tons(s.Balance))
	fmt.Fprintf(&b, "• Resulting Status: **%s**\n\n", s.Status)
	b.WriteString("**GOVERNANCE INTERVENTION PLAN:**\n")
	b.WriteString("1. **Emergency Buffer:** Release 15% of strategic dry matter reserves immediately.\n")
	b.WriteString("2. **Inter-State Procurement:** Cover the extra gap with trade orders from neighbouring surplus states.\n")
	b.WriteString("3. **Cattle Camps:** Pre-identify 50 high-priority cattle camp sites in critical deficit zones.")
	return b.String(), true
}

func (e *Engine) regionReport(req *request) (string, bool) {
	name, ok := e.resolver.Resolve(req.query, req.names)
	if !ok {
		return "", false
	}
	row, ok := req.snap.Region(name)
	if !ok {
		return "", false
	}

	supply, hasSupply := req.snap.SupplyFor(row.Name)
	if hasSupply && req.has(cropWords...) && req.has(deficitWords...) {
		return cropDeficitReport(req, row, supply), true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EXPERT REPORT: %s\n\n", strings.ToUpper(row.Name))
	fmt.Fprintf(&b, "Status: **%s**\n", row.Status)
	fmt.Fprintf(&b, "Supply vs Demand: %s vs %s\n", format.Tons(row.TotalSupplyTons), format.Tons(row.TotalDemandTons))
	fmt.Fprintf(&b, "Gap Intensity: %s\n\n", format.Tons(row.BalanceTons))

	b.WriteString("**KEY DYNAMICS:**\n")
	if hasSupply {
		crop := deepDiveCrops[0]
		for _, c := range deepDiveCrops[1:] {
			if supply.Tons(c) > supply.Tons(crop) {
				crop = c
			}
		}
		fmt.Fprintf(&b, "• Primary Crop: %s (%s)\n", crop, format.Tons(supply.Tons(crop)))
	}
	if demand, ok := req.snap.DemandFor(row.Name); ok {
		cat := majorCategories[0]
		for _, c := range majorCategories[1:] {
			if demand.Tons(c) > demand.Tons(cat) {
				cat = c
			}
		}
		fmt.Fprintf(&b, "• Highest Demand: %s (%s)\n", cat, format.Tons(demand.Tons(cat)))
	}
	if mandals := req.snap.MandalsFor(row.Name); len(mandals) > 0 {
		top := mandals[0]
		for _, m := range mandals[1:] {
			if m.TotalDemandTons > top.TotalDemandTons {
				top = m
			}
		}
		fmt.Fprintf(&b, "• Mandals Covered: %d (highest need: %s, %s)\n", len(mandals), top.SubRegion, format.Tons(top.TotalDemandTons))
	}

	b.WriteString("\nRecommendation: ")
	if row.Status == domain.Surplus {
		b.WriteString("Maintain current surplus levels through storage.")
	} else {
		b.WriteString("Immediate inter-district transport is required to bridge the gap.")
	}
	return b.String(), true
}

// cropDeficitReport names the crop where the region falls furthest below
// the state average
func cropDeficitReport(req *request, row domain.RegionRecord, supply domain.CropSupplyRecord) string {
	n := float64(len(req.snap.Supply))
	avg := make(map[string]float64, len(deepDiveCrops))
	for _, s := range req.snap.Supply {
		for _, c := range deepDiveCrops {
			avg[c] += s.Tons(c) / n
		}
	}

	worst := deepDiveCrops[0]
	for _, c := range deepDiveCrops[1:] {
		if supply.Tons(c)-avg[c] < supply.Tons(worst)-avg[worst] {
			worst = c
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DISTRICT CROP INTELLIGENCE: %s\n\n", strings.ToUpper(row.Name))
	fmt.Fprintf(&b, "Deficit Source: **%s**\n", strings.ToUpper(worst))
	fmt.Fprintf(&b, "Local Production: %s vs State Avg: %s\n\n", format.Tons(supply.Tons(worst)), format.Tons(avg[worst]))
	fmt.Fprintf(&b, "Analysis: The fodder gap in %s is driven largely by weak %s biomass. "+
		"Check soil moisture and consider drought-resistant strains.", row.Name, worst)
	return b.String()
}

func (e *Engine) knowledge(req *request) (string, bool) {
	t, ok := findTopic(req.upper, knowledgeBase)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("DOMAIN EXPERT REPORT: %s\n\n%s\n", t.key, t.text), true
}

func (e *Engine) summary(req *request) (string, bool) {
	t := req.snap.Totals()
	word := "Deficit"
	if t.Balance > 0 {
		word = "Surplus"
	}

	var b strings.Builder
	b.WriteString("STATEWIDE SITUATIONAL AWARENESS\n\n")
	fmt.Fprintf(&b, "The state of %s currently has **%s** of fodder against a requirement of **%s**.\n\n",
		e.stateName, format.Tons(t.Supply), format.Tons(t.Demand))
	fmt.Fprintf(&b, "- Current Balance: %s %s\n", format.Tons(t.Balance), word)
	fmt.Fprintf(&b, "- Secure Districts: %d / %d\n\n", t.SurplusCount, t.RegionCount)
	b.WriteString("**PROMPT TIPS:**\n")
	b.WriteString("Try asking: 'Which district grows most Paddy?', 'Compare Prakasam and Eluru', or 'Who needs the second most buffalo feed?'")
	return b.String(), true
}
