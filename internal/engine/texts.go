package engine

import (
	"strings"

	"github.com/fodder-analyzer/internal/analyzer"
)

const (
	header = "📊 FODDER INSIGHT\n\n"
	footer = "\n---\n*Insight generated from the regional livestock fodder database*"

	// DisconnectedMessage is returned when the gap table is unavailable and
	// no uploaded data was supplied.
	DisconnectedMessage = "I'm currently disconnected from my knowledge base. Please check if the datasets are loaded."

	// SystemErrorPrefix starts the last-resort answer when even the state
	// summary fails.
	SystemErrorPrefix = "⚠️ System Error"
)

type topic struct {
	key  string
	text string
}

// dashboardGuide is scanned in order; the first key found in the query wins
var dashboardGuide = []topic{
	{"FEATURES", "**Fodder Analyzer Capabilities:**\n\n" +
		"1. **Sufficiency Index:** One live score showing whether a region has enough fodder.\n" +
		"2. **Predictive Forecasting:** A 6-month outlook that flags shortages before they happen.\n" +
		"3. **Logistics Optimization:** Surplus hubs and deficit zones identified for fodder movement.\n" +
		"4. **Stress Test Scenarios:** What-if simulations for rainfall loss and drought.\n" +
		"5. **Chat Assistant:** Conversational answers over the regional tables for administrators."},
	{"DASHBOARD", "The dashboard has 5 views: **Overview** (statewide metrics), **Supply** (crop detail), **Demand** (livestock detail), **Risk** (heatmaps) and **Predict** (forecasts)."},
	{"FILTER", "Use the **Select District** dropdown at the top right to filter every chart and KPI to one area."},
	{"EXPORT", "Use the **Export Report** button to download a CSV of the currently filtered data."},
	{"NAVIGATE", "Use the sidebar on the left to switch between views such as Demand Dynamics or Future Predictions."},
	{"PREDICTION", "The Future Predictions view runs a 6-month projection from current consumption rates and seasonal biomass availability."},
	{"COLOR", "Green (🟢) means surplus or safe. Red (🔴) means deficit or high risk. Yellow and orange show stress levels."},
	{"PILL", "Status pills reduce a district to one of two states: SURPLUS (safe) or DEFICIT (action required)."},
	{"KPI", "The KPI cards at the top show total supply, total demand and the resulting gap for the selected region."},
	{"DOWNLOAD", "Look for the cloud icon or the Export button to download your analysis as a CSV file."},
}

// knowledgeBase is scanned in order; the first key found in the query wins
var knowledgeBase = []topic{
	{"DRY MATTER", "DEFINITION:\nDry Matter (DM) is what remains of fodder once water is removed. It is the real measure of nutrition because animals eat to meet a DM requirement of roughly 2.5% of body weight."},
	{"METHODOLOGY", "HOW WE WORK:\n" + analyzer.DefaultAssumptions.Methodology +
		"\nCrop biomass is compared against the census-based requirement of the livestock population.\n" +
		"Consumption norms: " + analyzer.DefaultAssumptions.Consumption + "\nSources: " + analyzer.DefaultAssumptions.Lineage},
	{"CROPS", "KEY CROPS:\nThe main fodder sources are Paddy (straw), Maize (stalks) and Groundnut (haulms). Sugarcane tops are used in some belts."},
	{"SOLUTION", "SUGGESTIONS FOR SHORTAGE:\n1. **Fodder Banks:** Build storage sites in surplus districts.\n2. **Silage:** Convert green fodder into silage for long-term storage.\n3. **Hydroponics:** Grow maize fodder in 7 days for emergencies."},
	{"SILAGE", "SILAGE:\nGreen fodder preserved by fermentation. It suits dairy cattle well because it keeps moisture and nutrients through the summer months."},
	{"DEFICIT", "WHAT IS A DEFICIT?\nA deficit means local crop residue production is LESS than what the livestock need to stay healthy, so feed has to be brought in."},
}

func findTopic(upper string, topics []topic) (topic, bool) {
	for _, t := range topics {
		if strings.Contains(upper, t.key) {
			return t, true
		}
	}
	return topic{}, false
}
