package assistant

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/format"
)

// summaryRows is the number of regions included in the prompt table
const summaryRows = 5

const systemRole = "You are a senior predictive agriculture advisor for livestock fodder planning."

// BuildPrompt renders the instruction sent to generative collaborators:
// the advisor role, the strongest regions by balance, a few expert facts,
// the uploaded data excerpt and finally the question.
func BuildPrompt(snap *dataset.Snapshot, question, custom string) string {
	var ctx strings.Builder

	if snap.HasPrimary() {
		ctx.WriteString("\nSTATEWIDE SUMMARY:\n")
		writeSummaryTable(&ctx, snap.Regions)
	}

	if snap.HasSupply() && snap.HasDemand() {
		paddy := slices.MaxFunc(snap.Supply, func(a, b domain.CropSupplyRecord) int {
			return cmp.Compare(a.Tons(domain.CropPaddy), b.Tons(domain.CropPaddy))
		})
		buffalo := slices.MaxFunc(snap.Demand, func(a, b domain.AnimalDemandRecord) int {
			return cmp.Compare(a.Tons(domain.Buffalo), b.Tons(domain.Buffalo))
		})
		fmt.Fprintf(&ctx, "\nEXPERT KNOWLEDGE:\n- Paddy Leader: %s\n- Highest Buffalo Demand: %s\n", paddy.Region, buffalo.Region)
	}

	if custom = strings.TrimSpace(custom); custom != "" {
		fmt.Fprintf(&ctx, "\nNEW USER DATA:\n%s\n", custom)
	}

	var b strings.Builder
	b.WriteString("ROLE: Senior Predictive Agriculture Advisor.\n")
	b.WriteString("OBJECTIVE: Provide deep analysis on fodder, crops and livestock.\n")
	fmt.Fprintf(&b, "CONTEXT: %s\n", ctx.String())
	b.WriteString("STYLE: Professional, data-driven and predictive. Use bold headers.\n")
	fmt.Fprintf(&b, "\nUSER QUESTION: %s", question)
	return b.String()
}

// writeSummaryTable writes the top regions by balance, largest first
func writeSummaryTable(b *strings.Builder, regions []domain.RegionRecord) {
	top := slices.Clone(regions)
	slices.SortStableFunc(top, func(x, y domain.RegionRecord) int { return cmp.Compare(y.BalanceTons, x.BalanceTons) })
	top = top[:min(summaryRows, len(top))]

	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "District\tTotal_Fodder_Tons\tBalance_Tons\tStatus")
	for _, r := range top {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, format.Grouped(r.TotalSupplyTons), format.Grouped(r.BalanceTons), r.Status)
	}
	w.Flush()
}
