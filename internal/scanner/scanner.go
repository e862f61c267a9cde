package scanner

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"flagscan/internal/evaluator"
	"flagscan/internal/indicator"
	"flagscan/internal/provider"
	"flagscan/internal/store"
	"flagscan/pkg/model"
)

// ErrInvalidUniverse reports an empty or missing symbol list. The scan fails
// fast before any fetch.
var ErrInvalidUniverse = errors.New("invalid universe: no symbols to scan")

// errFiltered marks symbols dropped by the hard quality filters; they are
// omitted from the snapshot, not scored as zero.
var errFiltered = errors.New("filtered out")

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// SignalSink receives high-confidence signal events for forward tracking and
// the full day's scores for trend analysis.
type SignalSink interface {
	RecordSignal(ev model.SignalEvent) (bool, error)
	RecordScores(scanTime time.Time, records []model.ScoreRecord) (int, error)
}

// Config holds scan settings and the hard quality filters applied before
// indicator computation.
type Config struct {
	Workers      int
	Timeout      time.Duration
	LookbackDays int // calendar days of history fetched per symbol

	MinPrice        float64
	MinADRPct       float64
	MinDollarVolume float64

	SignalScore int // score at or above which a SignalEvent is recorded
	ChartBars   int // trailing bars kept for the display series
}

// DefaultConfig returns the default scan settings.
func DefaultConfig() Config {
	return Config{
		Workers:      10,
		Timeout:      10 * time.Minute,
		LookbackDays: 120,

		MinPrice:        1.0,
		MinADRPct:       5.0,
		MinDollarVolume: 3_500_000,

		SignalScore: 80,
		ChartBars:   60,
	}
}

// Scanner runs the scan lifecycle: fetch, filter, derive, score, swap the
// snapshot in, and hand new signals to the tracker.
type Scanner struct {
	provider     provider.Provider
	calc         *indicator.Calculator
	eval         *evaluator.Evaluator
	store        *store.Store
	signals      SignalSink
	cfg          Config
	progressFunc ProgressCallback
}

// New creates a scanner. signals may be nil when signal tracking is disabled.
func New(p provider.Provider, calc *indicator.Calculator, eval *evaluator.Evaluator, st *store.Store, signals SignalSink, cfg Config) *Scanner {
	return &Scanner{
		provider: p,
		calc:     calc,
		eval:     eval,
		store:    st,
		signals:  signals,
		cfg:      cfg,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// Run scans the universe and swaps the finished snapshot into the store.
// Per-symbol failures skip the symbol, never the scan; only an empty universe
// or an already-running scan fail the call. A total provider outage completes
// as an empty snapshot.
func (s *Scanner) Run(ctx context.Context, stocks []model.Stock) (*model.ScanSnapshot, error) {
	if len(stocks) == 0 {
		return nil, ErrInvalidUniverse
	}

	if err := s.store.BeginScan(); err != nil {
		return nil, err
	}

	// New bars may have printed since the last run; a scan never scores a
	// previous run's candles.
	if inv, ok := s.provider.(interface{ InvalidateAll() }); ok {
		inv.InvalidateAll()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	jobChan := make(chan model.Stock, len(stocks))
	resultChan := make(chan *model.ScoreRecord, len(stocks))

	for _, stock := range stocks {
		jobChan <- stock
	}
	close(jobChan)

	var scannedCount int64
	var skippedCount int64

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				record, err := s.evaluateSymbol(ctx, stock)
				if err != nil {
					atomic.AddInt64(&skippedCount, 1)
					if !errors.Is(err, errFiltered) && !errors.Is(err, indicator.ErrInsufficientHistory) {
						log.Printf("[SCAN] %s: skipped: %v", stock.Symbol, err)
					}
				} else {
					resultChan <- record
				}

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	records := make(map[string]model.ScoreRecord, len(stocks))
	var summary model.ScanSummary
	for record := range resultChan {
		records[record.Symbol] = *record
		switch record.Status {
		case model.StatusReady:
			summary.Ready++
		case model.StatusForming:
			summary.Forming++
		default:
			summary.Watching++
		}
	}

	if err := ctx.Err(); err != nil {
		// Interrupted scan leaves the prior snapshot untouched.
		s.store.AbortScan()
		return nil, err
	}

	snap := &model.ScanSnapshot{
		ScanID:       uuid.NewString(),
		ScanTime:     time.Now(),
		Records:      records,
		Summary:      summary,
		TotalScanned: len(stocks),
		Skipped:      int(atomic.LoadInt64(&skippedCount)),
	}
	s.store.CompleteScan(snap)

	s.recordSignals(snap)
	s.recordHistory(snap)

	log.Printf("[SCAN] completed: %d scored, %d skipped (ready=%d forming=%d watching=%d)",
		len(records), snap.Skipped, summary.Ready, summary.Forming, summary.Watching)

	return snap, nil
}

// evaluateSymbol fetches one symbol's history and scores it. Cheap hard
// filters run before the full indicator derivation.
func (s *Scanner) evaluateSymbol(ctx context.Context, stock model.Stock) (*model.ScoreRecord, error) {
	candles, err := s.provider.GetDailyCandles(ctx, stock.Symbol, s.cfg.LookbackDays)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, provider.ErrDataUnavailable
	}

	price := candles[len(candles)-1].Close
	if s.cfg.MinPrice > 0 && price < s.cfg.MinPrice {
		return nil, errFiltered
	}

	adr := indicator.ADRPercent(candles)
	if s.cfg.MinADRPct > 0 && adr < s.cfg.MinADRPct {
		return nil, errFiltered
	}

	avgVol := indicator.AverageVolume(candles, 20)
	dollarVol := avgVol * price
	if s.cfg.MinDollarVolume > 0 && dollarVol < s.cfg.MinDollarVolume {
		return nil, errFiltered
	}

	ind, err := s.calc.Calculate(candles)
	if err != nil {
		return nil, err
	}

	score, status := s.eval.Evaluate(ind)

	name := stock.Name
	if name == "" {
		name = stock.Symbol
	}

	return &model.ScoreRecord{
		Symbol:          stock.Symbol,
		Name:            name,
		Sector:          stock.Sector,
		Price:           price,
		Indicators:      *ind,
		Score:           score,
		Status:          status,
		AvgDollarVolume: dollarVol,
		Chart:           indicator.ChartSeries(candles, s.cfg.ChartBars),
	}, nil
}

// ScanSymbol evaluates a single symbol outside the scan lifecycle, for the
// per-stock API lookup. The snapshot is not touched.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string) (*model.ScoreRecord, error) {
	return s.evaluateSymbol(ctx, model.Stock{Symbol: symbol, Name: symbol})
}

// recordSignals appends a SignalEvent for every record at or above the
// signal threshold. The sink dedupes per (symbol, day), so only the first
// crossing of a day is kept.
func (s *Scanner) recordSignals(snap *model.ScanSnapshot) {
	if s.signals == nil {
		return
	}

	for _, record := range snap.Records {
		if record.Score < s.cfg.SignalScore {
			continue
		}
		inserted, err := s.signals.RecordSignal(model.SignalEvent{
			Symbol:       record.Symbol,
			TriggeredAt:  snap.ScanTime,
			TriggerPrice: record.Price,
			TriggerScore: record.Score,
			PriorMovePct: record.Indicators.PriorMovePct,
			DistancePct:  record.Indicators.DistanceToBreakoutPct,
		})
		if err != nil {
			log.Printf("[SCAN] %s: recording signal failed: %v", record.Symbol, err)
			continue
		}
		if inserted {
			log.Printf("[SCAN] %s: signal recorded (score=%d, price=$%.2f)", record.Symbol, record.Score, record.Price)
		}
	}
}

// recordHistory appends the day's scores for every scored symbol. Best
// effort: a history write failure never fails the scan.
func (s *Scanner) recordHistory(snap *model.ScanSnapshot) {
	if s.signals == nil || len(snap.Records) == 0 {
		return
	}

	records := make([]model.ScoreRecord, 0, len(snap.Records))
	for _, record := range snap.Records {
		records = append(records, record)
	}
	if _, err := s.signals.RecordScores(snap.ScanTime, records); err != nil {
		log.Printf("[SCAN] recording score history failed: %v", err)
	}
}
