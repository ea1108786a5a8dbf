package engine

import (
	"regexp"

	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/resolver"
)

// request carries one question through the rule list
type request struct {
	query  string
	upper  string
	custom string
	snap   *dataset.Snapshot
	names  []string
}

func (r *request) has(words ...string) bool {
	return resolver.ContainsAny(r.upper, words...)
}

// handler renders an answer body, or declines with ok == false so the next
// rule gets a chance.
type handler func(req *request) (text string, ok bool)

type rule struct {
	name    string
	match   func(req *request) bool
	respond handler
}

// Keyword groups. Matching is substring based over the uppercased query.
var (
	shortageWords  = []string{"SHORTAGE", "LOWEST", "LEAST"}
	cropWords      = []string{"CROP", "FODDER"}
	extremeWords   = []string{"HIGHEST", "LOWEST", "MOST", "LEAST", "MAX", "MIN", "NOT SUPPLYING", "NOT FEEDING", "WORST", "BEST", "POOR"}
	lowestWords    = []string{"LOWEST", "LEAST", "BOTTOM", "SMALLEST", "MIN", "NOT", "POOR"}
	demandWords    = []string{"DEMAND", "NEED"}
	supplyWords    = []string{"SUPPLY", "FOOD", "AVAILABLE"}
	surplusWords   = []string{"SURPLUS", "BEST", "SAFE"}
	logisticsWords = []string{"DISTRIBUTE", "MOVE", "TRANSPORT", "LOGISTIC", "SEND", "SUPPLY TO"}
	gapWords       = []string{"DEFICIT", "SHORTAGE", "GAP", "AT RISK", "LIST"}
	listWords      = []string{"WHICH", "LIST", "SHOW"}
	forecastWords  = []string{"PREDICT", "FUTURE", "FORECAST", "NEXT", "OUTLOOK", "QUARTER"}
	scenarioWords  = []string{"RAIN", "DROUGHT", "SCENARIO", "CLIMATE", "REDUCE"}
	deficitWords   = []string{"DEFICIT", "SHORTAGE", "LOW", "GAP"}
)

type ordinal struct {
	word  string
	index int
}

// ordinals is scanned in order, so FIFTH is tested before FIRST
var ordinals = []ordinal{
	{"FIFTH", 4}, {"5TH", 4},
	{"FOURTH", 3}, {"4TH", 3},
	{"THIRD", 2}, {"3RD", 2},
	{"SECOND", 1}, {"2ND", 1},
	{"FIRST", 0}, {"1ST", 0},
	{"HIGHEST", 0}, {"MOST", 0}, {"MAX", 0}, {"TOP", 0}, {"LOWEST", 0}, {"LEAST", 0},
}

func rankIndex(upper string) (int, bool) {
	for _, o := range ordinals {
		if resolver.ContainsAny(upper, o.word) {
			return o.index, true
		}
	}
	return 0, false
}

var percentPattern = regexp.MustCompile(`(\d+)\s*%`)

func (e *Engine) defaultRules() []rule {
	return []rule{
		{
			name:    "crop-shortage",
			match:   func(r *request) bool { return r.has(shortageWords...) && r.has(cropWords...) },
			respond: e.cropShortage,
		},
		{
			name: "crop",
			match: func(r *request) bool {
				_, ok := resolver.ResolveCrop(r.query)
				return ok
			},
			respond: e.cropReport,
		},
		{
			name: "livestock",
			match: func(r *request) bool {
				_, ok := resolver.ResolveAnimal(r.query)
				return ok
			},
			respond: e.livestockReport,
		},
		{
			name:    "comparison",
			match:   func(*request) bool { return true },
			respond: e.comparison,
		},
		{
			name: "dashboard-guide",
			match: func(r *request) bool {
				_, ok := findTopic(r.upper, dashboardGuide)
				return ok
			},
			respond: e.dashboardHelp,
		},
		{
			name: "ranking",
			match: func(r *request) bool {
				_, ordinal := rankIndex(r.upper)
				return ordinal || r.has(extremeWords...)
			},
			respond: e.ranking,
		},
		{
			name:    "logistics",
			match:   func(r *request) bool { return r.has(logisticsWords...) },
			respond: e.logistics,
		},
		{
			name:    "deficit-list",
			match:   func(r *request) bool { return r.has(gapWords...) && r.has(listWords...) },
			respond: e.deficitList,
		},
		{
			name:    "forecast",
			match:   func(r *request) bool { return r.has(forecastWords...) },
			respond: e.forecast,
		},
		{
			name:    "scenario",
			match:   func(r *request) bool { return r.has(scenarioWords...) },
			respond: e.scenario,
		},
		{
			name:    "region",
			match:   func(*request) bool { return true },
			respond: e.regionReport,
		},
		{
			name: "knowledge",
			match: func(r *request) bool {
				_, ok := findTopic(r.upper, knowledgeBase)
				return ok
			},
			respond: e.knowledge,
		},
	}
}
