package dataset

import (
	"time"

	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/resolver"
)

// Snapshot is an immutable view of every table at load time. Auxiliary
// tables are nil when their file is missing or unparseable; Errors records
// why.
type Snapshot struct {
	Regions  []domain.RegionRecord
	Supply   []domain.CropSupplyRecord
	Demand   []domain.AnimalDemandRecord
	Mandals  []domain.MandalRecord
	Errors   map[string]error
	LoadedAt time.Time

	byName map[string]int
}

// NewSnapshot builds a snapshot from already loaded records. It is used by
// tests and by callers holding records in memory.
func NewSnapshot(regions []domain.RegionRecord, supply []domain.CropSupplyRecord, demand []domain.AnimalDemandRecord, mandals []domain.MandalRecord) *Snapshot {
	s := &Snapshot{
		Regions:  regions,
		Supply:   supply,
		Demand:   demand,
		Mandals:  mandals,
		Errors:   map[string]error{},
		LoadedAt: time.Now(),
	}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.byName = make(map[string]int, len(s.Regions))
	for i, r := range s.Regions {
		s.byName[resolver.Normalize(r.Name)] = i
	}
}

// HasPrimary reports whether the gap table loaded with at least one row
func (s *Snapshot) HasPrimary() bool {
	return s != nil && len(s.Regions) > 0
}

// HasSupply reports whether the crop supply table is available
func (s *Snapshot) HasSupply() bool {
	return s != nil && len(s.Supply) > 0
}

// HasDemand reports whether the animal demand table is available
func (s *Snapshot) HasDemand() bool {
	return s != nil && len(s.Demand) > 0
}

// HasMandals reports whether the mandal table is available
func (s *Snapshot) HasMandals() bool {
	return s != nil && len(s.Mandals) > 0
}

// RegionNames returns canonical names in gap table row order. This order is
// the tie-break for ambiguous name matches.
func (s *Snapshot) RegionNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		names[i] = r.Name
	}
	return names
}

// Region looks up a region record by name
func (s *Snapshot) Region(name string) (domain.RegionRecord, bool) {
	if s == nil {
		return domain.RegionRecord{}, false
	}
	i, ok := s.byName[resolver.Normalize(name)]
	if !ok {
		return domain.RegionRecord{}, false
	}
	return s.Regions[i], true
}

// SupplyFor returns the crop supply row for a region
func (s *Snapshot) SupplyFor(name string) (domain.CropSupplyRecord, bool) {
	if s == nil {
		return domain.CropSupplyRecord{}, false
	}
	key := resolver.Normalize(name)
	for _, r := range s.Supply {
		if resolver.Normalize(r.Region) == key {
			return r, true
		}
	}
	return domain.CropSupplyRecord{}, false
}

// DemandFor returns the animal demand row for a region
func (s *Snapshot) DemandFor(name string) (domain.AnimalDemandRecord, bool) {
	if s == nil {
		return domain.AnimalDemandRecord{}, false
	}
	key := resolver.Normalize(name)
	for _, r := range s.Demand {
		if resolver.Normalize(r.Region) == key {
			return r, true
		}
	}
	return domain.AnimalDemandRecord{}, false
}

// MandalsFor returns the sub-region rows of a region in file order
func (s *Snapshot) MandalsFor(name string) []domain.MandalRecord {
	if s == nil {
		return nil
	}
	key := resolver.Normalize(name)
	var out []domain.MandalRecord
	for _, m := range s.Mandals {
		if resolver.Normalize(m.ParentRegion) == key {
			out = append(out, m)
		}
	}
	return out
}

// Totals sums the gap table
func (s *Snapshot) Totals() domain.Totals {
	if s == nil {
		return domain.Totals{}
	}
	return domain.SumRegions(s.Regions)
}
