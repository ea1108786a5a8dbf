// Package forecast projects fodder stock over future periods and runs
// supply stress tests. All functions are pure; the only randomness lives in
// a Simulator built with an explicit source.
package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/fodder-analyzer/internal/domain"
)

// DefaultHorizon is the number of monthly periods projected
const DefaultHorizon = 6

// MaxHorizon caps the number of projected periods
const MaxHorizon = 60

// MaxJitter is the largest relative burn deviation a Simulator applies.
// It stays below 1 so a period never consumes a negative amount.
const MaxJitter = 0.99

// DefaultDropPct is the supply reduction used when a scenario names none
const DefaultDropPct = 20

// monthsPerYear converts annual demand into a monthly burn rate
const monthsPerYear = 12

// PeriodStatus marks whether stock remains at the end of a period
type PeriodStatus string

const (
	Safe     PeriodStatus = "SAFE"
	Shortage PeriodStatus = "SHORTAGE"
)

// Period is one projected month
type Period struct {
	Label        string       `json:"label"`
	Stock        float64      `json:"stock"`
	DisplayStock float64      `json:"displayStock"`
	Status       PeriodStatus `json:"status"`
}

// Projection is the result of Project
type Projection struct {
	Supply      float64  `json:"supply"`
	Demand      float64  `json:"demand"`
	MonthlyBurn float64  `json:"monthlyBurn"`
	Periods     []Period `json:"periods"`
}

// FinalStock returns the stock after the last period, or the starting
// supply when no period was projected.
func (p Projection) FinalStock() float64 {
	if len(p.Periods) == 0 {
		return p.Supply
	}
	return p.Periods[len(p.Periods)-1].Stock
}

// Project subtracts a monthly burn of demand/12 from supply for horizon
// periods. A non-positive horizon uses DefaultHorizon and a horizon above
// MaxHorizon is capped.
func Project(supply, demand float64, horizon int) Projection {
	return project(supply, demand, horizon, nil)
}

func project(supply, demand float64, horizon int, jitter func() float64) Projection {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	horizon = min(horizon, MaxHorizon)
	burn := demand / monthsPerYear
	p := Projection{
		Supply:      supply,
		Demand:      demand,
		MonthlyBurn: burn,
		Periods:     make([]Period, 0, horizon),
	}

	stock := supply
	for i := 1; i <= horizon; i++ {
		step := burn
		if jitter != nil {
			step *= 1 + jitter()
		}
		stock -= step
		p.Periods = append(p.Periods, Period{
			Label:        fmt.Sprintf("Month %d", i),
			Stock:        stock,
			DisplayStock: math.Max(0, stock),
			Status:       periodStatus(stock),
		})
	}
	return p
}

func periodStatus(stock float64) PeriodStatus {
	if stock > 0 {
		return Safe
	}
	return Shortage
}

// Scenario is the outcome of a supply stress test
type Scenario struct {
	DropPct            int           `json:"dropPct"`
	CurrentSupply      float64       `json:"currentSupply"`
	HypotheticalSupply float64       `json:"hypotheticalSupply"`
	Demand             float64       `json:"demand"`
	Balance            float64       `json:"balance"`
	Status             domain.Status `json:"status"`
}

// StressTest reduces supply by dropPct percent against unchanged demand.
// dropPct is clamped to 0..100.
func StressTest(supply, demand float64, dropPct int) Scenario {
	dropPct = ClampPct(dropPct)
	hypo := supply * (1 - float64(dropPct)/100)
	balance := hypo - demand
	return Scenario{
		DropPct:            dropPct,
		CurrentSupply:      supply,
		HypotheticalSupply: hypo,
		Demand:             demand,
		Balance:            balance,
		Status:             domain.StatusFor(balance),
	}
}

// ClampPct bounds a percentage to 0..100
func ClampPct(pct int) int {
	return min(max(pct, 0), 100)
}

// Simulator produces projections with optional bounded noise on the burn
// rate. It backs the dashboard trend chart; chat answers use Project.
type Simulator struct {
	jitter float64
	rng    *rand.Rand
}

// NewSimulator creates a simulator. jitter is the maximum relative deviation
// of each period's burn (0.1 means ±10%), clamped to 0..MaxJitter. A zero
// jitter or nil source makes the simulator deterministic.
func NewSimulator(jitter float64, src rand.Source) *Simulator {
	if math.IsNaN(jitter) {
		jitter = 0
	}
	s := &Simulator{jitter: min(math.Abs(jitter), MaxJitter)}
	if src != nil {
		s.rng = rand.New(src)
	}
	return s
}

// NewSeededSimulator creates a simulator backed by a PCG source
func NewSeededSimulator(jitter float64, seed uint64) *Simulator {
	return NewSimulator(jitter, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Project behaves like the package-level Project with noise applied
func (s *Simulator) Project(supply, demand float64, horizon int) Projection {
	if s == nil || s.rng == nil || s.jitter == 0 {
		return Project(supply, demand, horizon)
	}
	return project(supply, demand, horizon, func() float64 {
		return (s.rng.Float64()*2 - 1) * s.jitter
	})
}
