package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"flagscan/internal/provider"
	"flagscan/internal/scanner"
	"flagscan/internal/store"
	"flagscan/internal/symbols"
	"flagscan/internal/tracker"
)

// Scheduler runs the periodic scan and the nightly performance backfill.
type Scheduler struct {
	cron     *cron.Cron
	scanner  *scanner.Scanner
	tracker  *tracker.Tracker
	provider provider.Provider
	universe symbols.Universe
	horizons []int
}

// New creates a scheduler. tracker may be nil when signal tracking is
// disabled; the backfill job then becomes a no-op registration.
func New(sc *scanner.Scanner, tr *tracker.Tracker, p provider.Provider, universe symbols.Universe, horizons []int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		scanner:  sc,
		tracker:  tr,
		provider: p,
		universe: universe,
		horizons: horizons,
	}
}

// Register wires the scan and backfill jobs. Empty cron expressions disable
// the corresponding job.
func (s *Scheduler) Register(scanCron, backfillCron string) error {
	if scanCron != "" {
		if _, err := s.cron.AddFunc(scanCron, s.scanTask); err != nil {
			return fmt.Errorf("register scan task: %w", err)
		}
	}
	if backfillCron != "" && s.tracker != nil {
		if _, err := s.cron.AddFunc(backfillCron, s.backfillTask); err != nil {
			return fmt.Errorf("register backfill task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[SCHED] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[SCHED] scheduler stopped")
}

// RunBackfillNow executes the backfill task immediately (for manual trigger).
func (s *Scheduler) RunBackfillNow() {
	s.backfillTask()
}

func (s *Scheduler) scanTask() {
	log.Println("[SCHED] running scheduled scan")

	syms := symbols.Get(s.universe)
	if syms == nil {
		log.Printf("[SCHED] unknown universe %q, skipping scan", s.universe)
		return
	}

	_, err := s.scanner.Run(context.Background(), symbols.Stocks(syms))
	if errors.Is(err, store.ErrScanAlreadyRunning) {
		log.Println("[SCHED] scan already running, skipping")
		return
	}
	if err != nil {
		log.Printf("[SCHED] scheduled scan failed: %v", err)
	}
}

func (s *Scheduler) backfillTask() {
	log.Println("[SCHED] running performance backfill")

	written, err := s.tracker.Backfill(context.Background(), s.provider, s.horizons)
	if err != nil {
		log.Printf("[SCHED] backfill failed after %d rows: %v", written, err)
		return
	}
	log.Printf("[SCHED] backfill complete: %d measurements written", written)
}
