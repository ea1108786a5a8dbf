package dataset

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/logging"
)

const snapshotKey = "snapshot"

// Paths locates the four tables. An empty path disables that table.
type Paths struct {
	Gap    string
	Supply string
	Demand string
	Mandal string
}

// PathsFrom resolves table paths from the data configuration
func PathsFrom(cfg config.DataConfig) Paths {
	return Paths{
		Gap:    cfg.DataPath(cfg.GapFile),
		Supply: cfg.DataPath(cfg.SupplyFile),
		Demand: cfg.DataPath(cfg.DemandFile),
		Mandal: cfg.DataPath(cfg.MandalFile),
	}
}

func (p Paths) list() [4]string {
	return [4]string{p.Gap, p.Supply, p.Demand, p.Mandal}
}

// fileStamp identifies a version of a file on disk
type fileStamp struct {
	exists  bool
	size    int64
	modTime int64
}

type fingerprint [4]fileStamp

func stamp(paths Paths) fingerprint {
	var fp fingerprint
	for i, p := range paths.list() {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		fp[i] = fileStamp{exists: true, size: info.Size(), modTime: info.ModTime().UnixNano()}
	}
	return fp
}

type cachedSnapshot struct {
	snap *Snapshot
	fp   fingerprint
}

// Stats holds store statistics
type Stats struct {
	Hits     int64     `json:"hits"`
	Misses   int64     `json:"misses"`
	Loads    int64     `json:"loads"`
	LastLoad time.Time `json:"last_load"`
}

// Store serves snapshots of the tables. A snapshot is reused until the TTL
// expires, Invalidate is called, or any file's size or modification time
// changes.
type Store struct {
	paths Paths
	cache *cache.Cache
	log   *logging.Logger

	loadMu   sync.Mutex
	hits     atomic.Int64
	misses   atomic.Int64
	loads    atomic.Int64
	lastLoad atomic.Int64
}

// NewStore creates a store. A zero ttl keeps snapshots until a file changes.
func NewStore(paths Paths, ttl, cleanup time.Duration, log *logging.Logger) *Store {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Store{
		paths: paths,
		cache: cache.New(ttl, cleanup),
		log:   log.With("module", "dataset"),
	}
}

// Paths returns the table locations
func (s *Store) Paths() Paths {
	return s.paths
}

// Snapshot returns the current snapshot, reloading when stale. It never
// fails: missing tables are reported through Snapshot.Errors.
func (s *Store) Snapshot() *Snapshot {
	fp := stamp(s.paths)
	if snap, ok := s.cached(fp); ok {
		s.hits.Add(1)
		return snap
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Another caller may have reloaded while we waited
	if snap, ok := s.cached(fp); ok {
		s.hits.Add(1)
		return snap
	}
	s.misses.Add(1)

	snap := Load(s.paths, s.log)
	s.cache.SetDefault(snapshotKey, cachedSnapshot{snap: snap, fp: fp})
	s.loads.Add(1)
	s.lastLoad.Store(snap.LoadedAt.UnixNano())
	return snap
}

func (s *Store) cached(fp fingerprint) (*Snapshot, bool) {
	v, ok := s.cache.Get(snapshotKey)
	if !ok {
		return nil, false
	}
	entry := v.(cachedSnapshot)
	if entry.fp != fp {
		return nil, false
	}
	return entry.snap, true
}

// Invalidate drops the cached snapshot
func (s *Store) Invalidate() {
	s.cache.Flush()
	s.log.Info("dataset cache invalidated")
}

// GetStats returns store statistics
func (s *Store) GetStats() Stats {
	st := Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Loads:  s.loads.Load(),
	}
	if ns := s.lastLoad.Load(); ns != 0 {
		st.LastLoad = time.Unix(0, ns)
	}
	return st
}

// Load reads every table without caching. Failures degrade to a snapshot
// missing the affected table.
func Load(paths Paths, log *logging.Logger) *Snapshot {
	if log == nil {
		log = logging.GetDefault()
	}
	done := log.Timed("dataset load")
	defer done()

	snap := &Snapshot{Errors: make(map[string]error), LoadedAt: time.Now()}

	if paths.Gap != "" {
		regions, mismatches, err := LoadGap(paths.Gap)
		if err != nil {
			snap.Errors[TableGap] = err
			log.Warn("gap table unavailable: %v", err)
		} else {
			snap.Regions = regions
			for _, m := range mismatches {
				log.Warn("gap table %s for %s is %s, recomputed %s", m.Field, m.Region, m.Stored, m.Want)
			}
		}
	}

	if paths.Supply != "" {
		if supply, err := LoadSupply(paths.Supply); err != nil {
			snap.Errors[TableSupply] = err
			log.Debug("supply table unavailable: %v", err)
		} else {
			snap.Supply = supply
		}
	}

	if paths.Demand != "" {
		if demand, err := LoadDemand(paths.Demand); err != nil {
			snap.Errors[TableDemand] = err
			log.Debug("demand table unavailable: %v", err)
		} else {
			snap.Demand = demand
		}
	}

	if paths.Mandal != "" {
		if mandals, err := LoadMandals(paths.Mandal); err != nil {
			snap.Errors[TableMandal] = err
			log.Debug("mandal table unavailable: %v", err)
		} else {
			snap.Mandals = mandals
		}
	}

	snap.index()
	return snap
}
