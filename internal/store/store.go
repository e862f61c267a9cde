package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"flagscan/pkg/model"
)

// ErrScanAlreadyRunning reports that a scan was requested while one is
// active. The request is rejected, not queued.
var ErrScanAlreadyRunning = errors.New("scan already running")

// SortKey selects the ordering of query results.
type SortKey string

const (
	SortByScore     SortKey = "score"      // descending
	SortByPriorMove SortKey = "prior_move" // descending
	SortByDistance  SortKey = "distance"   // ascending
)

// Query filters and orders a snapshot view. Zero values mean "no filter".
type Query struct {
	Status   model.Status
	Search   string // case-insensitive substring on symbol or name
	MinScore int
	Sort     SortKey
}

// Store owns the current scan snapshot and the in-progress flag. Writers (the
// active scan) swap the snapshot atomically; readers always observe either
// the fully-old or fully-new snapshot. The latest snapshot is persisted to
// disk so results survive restarts.
type Store struct {
	mu       sync.RWMutex
	current  *model.ScanSnapshot
	scanning bool
	filepath string
}

// New creates a store persisting to dir/snapshot.json and reloads any
// previously saved snapshot.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Store{filepath: filepath.Join(dir, "snapshot.json")}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[STORE] Warning: could not load snapshot: %v", err)
	}
	if s.current != nil {
		log.Printf("[STORE] Loaded snapshot of %d records from %s", len(s.current.Records), s.filepath)
	}
	return s, nil
}

// BeginScan atomically checks and sets the in-progress flag. It fails with
// ErrScanAlreadyRunning while another scan holds the flag.
func (s *Store) BeginScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return ErrScanAlreadyRunning
	}
	s.scanning = true
	return nil
}

// CompleteScan swaps in the finished snapshot and clears the flag. The swap
// is the single atomic step at the end of a scan.
func (s *Store) CompleteScan(snap *model.ScanSnapshot) {
	s.mu.Lock()
	s.current = snap
	s.scanning = false
	s.mu.Unlock()

	if err := s.persist(snap); err != nil {
		log.Printf("[STORE] Warning: could not persist snapshot: %v", err)
	}
}

// AbortScan clears the flag leaving the prior snapshot untouched.
func (s *Store) AbortScan() {
	s.mu.Lock()
	s.scanning = false
	s.mu.Unlock()
}

// IsScanning reports whether a scan currently holds the flag.
func (s *Store) IsScanning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanning
}

// Current returns the current snapshot, or nil if no scan has completed yet.
// The returned snapshot is immutable; callers must not modify it.
func (s *Store) Current() *model.ScanSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// View returns the current snapshot together with its filtered, sorted
// records. Callers rendering snapshot metadata next to rows must use this
// rather than separate Current and Records calls, so a swap landing between
// the two reads cannot mix scans.
func (s *Store) View(q Query) (*model.ScanSnapshot, []model.ScoreRecord) {
	snap := s.Current()
	if snap == nil {
		return nil, nil
	}
	return snap, filterRecords(snap, q)
}

// Records runs a filtered, sorted view over the current snapshot.
func (s *Store) Records(q Query) []model.ScoreRecord {
	_, records := s.View(q)
	return records
}

// filterRecords filters and sorts a snapshot's records. The snapshot is
// immutable, so no lock is needed.
func filterRecords(snap *model.ScanSnapshot, q Query) []model.ScoreRecord {
	search := strings.ToLower(q.Search)
	records := make([]model.ScoreRecord, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		if rec.Score < q.MinScore {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(rec.Symbol), search) &&
			!strings.Contains(strings.ToLower(rec.Name), search) {
			continue
		}
		records = append(records, rec)
	}

	sortRecords(records, q.Sort)
	return records
}

// sortRecords orders records by the requested key, breaking ties by symbol
// ascending so identical inputs always yield identical output order.
func sortRecords(records []model.ScoreRecord, key SortKey) {
	less := func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].Symbol < records[j].Symbol
	}

	switch key {
	case SortByPriorMove:
		less = func(i, j int) bool {
			if records[i].Indicators.PriorMovePct != records[j].Indicators.PriorMovePct {
				return records[i].Indicators.PriorMovePct > records[j].Indicators.PriorMovePct
			}
			return records[i].Symbol < records[j].Symbol
		}
	case SortByDistance:
		less = func(i, j int) bool {
			di := records[i].Indicators.DistanceToBreakoutPct
			dj := records[j].Indicators.DistanceToBreakoutPct
			if di != dj {
				return di < dj
			}
			return records[i].Symbol < records[j].Symbol
		}
	}

	sort.Slice(records, less)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	var snap model.ScanSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &snap
	s.mu.Unlock()
	return nil
}

func (s *Store) persist(snap *model.ScanSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filepath, data, 0644)
}
