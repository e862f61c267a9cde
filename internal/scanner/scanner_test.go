package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flagscan/internal/evaluator"
	"flagscan/internal/indicator"
	"flagscan/internal/provider"
	"flagscan/internal/store"
	"flagscan/pkg/model"
)

// fakeProvider serves canned candles and canned failures per symbol.
type fakeProvider struct {
	candles map[string][]model.Candle
	fail    map[string]error
}

func (p *fakeProvider) Name() string      { return "fake" }
func (p *fakeProvider) IsAvailable() bool { return true }
func (p *fakeProvider) RateLimit() int    { return 0 }

func (p *fakeProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (p *fakeProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if err, ok := p.fail[symbol]; ok {
		return nil, err
	}
	return p.candles[symbol], nil
}

// fakeSink collects recorded signal events and score-history rows.
type fakeSink struct {
	mu     sync.Mutex
	events []model.SignalEvent
	scores []model.ScoreRecord
}

func (s *fakeSink) RecordSignal(ev model.SignalEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true, nil
}

func (s *fakeSink) RecordScores(scanTime time.Time, records []model.ScoreRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, records...)
	return len(records), nil
}

func (s *fakeSink) recorded() []model.SignalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SignalEvent(nil), s.events...)
}

func (s *fakeSink) scoreRows() []model.ScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScoreRecord(nil), s.scores...)
}

func bar(i int, close float64, volume int64) model.Candle {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return model.Candle{
		Time:   start.AddDate(0, 0, i),
		Open:   close,
		High:   close * 1.03,
		Low:    close * 0.97,
		Close:  close,
		Volume: volume,
	}
}

// readyFlag builds a series that scores well into READY: a 39% advance on
// heavy volume, then a shallow pullback on 55% lighter volume recovering to
// within 3% of the prior high.
func readyFlag() []model.Candle {
	candles := make([]model.Candle, 0, 120)
	for i := 0; i < 60; i++ {
		candles = append(candles, bar(i, 100, 1_000_000))
	}
	for i := 60; i < 100; i++ {
		candles = append(candles, bar(i, 100+float64(i-59), 2_000_000))
	}
	for i := 100; i < 108; i++ {
		candles = append(candles, bar(i, 138-2*float64(i-100), 900_000))
	}
	for i := 108; i < 120; i++ {
		candles = append(candles, bar(i, 125+float64(i-108), 900_000))
	}
	return candles
}

// brokenFlag is the same advance but the consolidation collapses 30% from the
// high and stays there, so the pullback and breakout criteria contribute
// nothing.
func brokenFlag() []model.Candle {
	candles := make([]model.Candle, 0, 120)
	for i := 0; i < 60; i++ {
		candles = append(candles, bar(i, 100, 1_000_000))
	}
	for i := 60; i < 100; i++ {
		candles = append(candles, bar(i, 100+float64(i-59), 2_000_000))
	}
	for i := 100; i < 119; i++ {
		candles = append(candles, bar(i, 138-2*float64(i-100), 900_000))
	}
	candles = append(candles, bar(119, 98, 900_000))
	return candles
}

func flatSeries(close float64, volume int64) []model.Candle {
	candles := make([]model.Candle, 0, 120)
	for i := 0; i < 120; i++ {
		candles = append(candles, bar(i, close, volume))
	}
	return candles
}

func newTestScanner(t *testing.T, p *fakeProvider, sink SignalSink) (*Scanner, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	s := New(p,
		indicator.NewCalculator(indicator.DefaultConfig()),
		evaluator.NewEvaluator(evaluator.DefaultConfig()),
		st, sink, DefaultConfig())
	return s, st
}

func stocks(syms ...string) []model.Stock {
	out := make([]model.Stock, len(syms))
	for i, sym := range syms {
		out[i] = model.Stock{Symbol: sym, Name: sym}
	}
	return out
}

func TestRun_ReadyFlagScoresReady(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"FLAG": readyFlag()}}
	sink := &fakeSink{}
	s, st := newTestScanner(t, p, sink)

	snap, err := s.Run(context.Background(), stocks("FLAG"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec, ok := snap.Records["FLAG"]
	if !ok {
		t.Fatal("Expected FLAG in snapshot records")
	}
	if rec.Status != model.StatusReady {
		t.Errorf("Expected status ready, got %s (score %d)", rec.Status, rec.Score)
	}
	if rec.Score < 75 {
		t.Errorf("Expected score >= 75, got %d", rec.Score)
	}
	if rec.Price != 136 {
		t.Errorf("Expected price 136, got %f", rec.Price)
	}
	if len(rec.Chart) == 0 {
		t.Error("Expected chart series attached to the record")
	}
	if snap.Summary.Ready != 1 {
		t.Errorf("Expected 1 ready in summary, got %d", snap.Summary.Ready)
	}

	// Score crossed the signal threshold, so a signal event was handed off
	events := sink.recorded()
	if len(events) != 1 || events[0].Symbol != "FLAG" {
		t.Fatalf("Expected one FLAG signal event, got %v", events)
	}
	if events[0].TriggerScore < 80 {
		t.Errorf("Expected trigger score >= 80, got %d", events[0].TriggerScore)
	}

	if got := st.Current(); got == nil || got.ScanID != snap.ScanID {
		t.Error("Expected the snapshot swapped into the store")
	}
}

func TestRun_CollapsedPullbackIsNotReady(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"BRKN": brokenFlag()}}
	sink := &fakeSink{}
	s, _ := newTestScanner(t, p, sink)

	snap, err := s.Run(context.Background(), stocks("BRKN"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec, ok := snap.Records["BRKN"]
	if !ok {
		t.Fatal("Expected BRKN in snapshot records")
	}
	if rec.Status == model.StatusReady {
		t.Errorf("Expected collapsed pullback to lose ready status, got score %d", rec.Score)
	}
	if rec.Score >= 75 {
		t.Errorf("Expected score below 75, got %d", rec.Score)
	}

	if events := sink.recorded(); len(events) != 0 {
		t.Errorf("Expected no signal events below the threshold, got %v", events)
	}
}

func TestRun_SkipsFailedAndFilteredSymbols(t *testing.T) {
	short := make([]model.Candle, 0, 30)
	for i := 0; i < 30; i++ {
		short = append(short, bar(i, 100, 1_000_000))
	}

	tight := flatSeries(50, 1_000_000)
	for i := range tight {
		tight[i].High = tight[i].Close * 1.001
		tight[i].Low = tight[i].Close * 0.999
	}

	p := &fakeProvider{
		candles: map[string][]model.Candle{
			"FLAG":  readyFlag(),
			"SHORT": short,                        // too little history
			"THIN":  flatSeries(10, 1_000),        // fails the dollar-volume floor
			"CHEAP": flatSeries(0.50, 5_000_000),  // below the price floor
			"TIGHT": tight,                        // below the ADR floor
		},
		fail: map[string]error{"FAIL": errors.New("connection refused")},
	}
	s, _ := newTestScanner(t, p, &fakeSink{})

	snap, err := s.Run(context.Background(), stocks("FLAG", "SHORT", "THIN", "CHEAP", "TIGHT", "FAIL"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(snap.Records) != 1 {
		t.Fatalf("Expected only FLAG to survive, got %d records", len(snap.Records))
	}
	if _, ok := snap.Records["FLAG"]; !ok {
		t.Error("Expected FLAG in snapshot records")
	}
	if snap.Skipped != 5 {
		t.Errorf("Expected 5 skipped symbols, got %d", snap.Skipped)
	}
	if snap.TotalScanned != 6 {
		t.Errorf("Expected 6 total scanned, got %d", snap.TotalScanned)
	}
}

func TestRun_TotalOutageCompletesEmpty(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{
		"A": errors.New("timeout"),
		"B": errors.New("timeout"),
	}}
	s, st := newTestScanner(t, p, nil)

	snap, err := s.Run(context.Background(), stocks("A", "B"))
	if err != nil {
		t.Fatalf("Expected outage to complete as an empty snapshot, got %v", err)
	}
	if len(snap.Records) != 0 {
		t.Errorf("Expected empty records, got %d", len(snap.Records))
	}
	if snap.Skipped != 2 {
		t.Errorf("Expected 2 skipped, got %d", snap.Skipped)
	}
	if st.Current() == nil {
		t.Error("Expected empty snapshot swapped in")
	}
}

func TestRun_EmptyUniverse(t *testing.T) {
	s, st := newTestScanner(t, &fakeProvider{}, nil)

	_, err := s.Run(context.Background(), nil)
	if !errors.Is(err, ErrInvalidUniverse) {
		t.Fatalf("Expected ErrInvalidUniverse, got %v", err)
	}
	if st.IsScanning() {
		t.Error("Expected no scan in progress after rejection")
	}
}

func TestRun_RejectsConcurrentScan(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"FLAG": readyFlag()}}
	s, st := newTestScanner(t, p, nil)

	if err := st.BeginScan(); err != nil {
		t.Fatal(err)
	}

	_, err := s.Run(context.Background(), stocks("FLAG"))
	if !errors.Is(err, store.ErrScanAlreadyRunning) {
		t.Fatalf("Expected ErrScanAlreadyRunning, got %v", err)
	}
}

func TestRun_CancelledContextKeepsPriorSnapshot(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"FLAG": readyFlag()}}
	s, st := newTestScanner(t, p, nil)

	first, err := s.Run(context.Background(), stocks("FLAG"))
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Run(ctx, stocks("FLAG")); err == nil {
		t.Fatal("Expected error from cancelled context")
	}

	if got := st.Current(); got == nil || got.ScanID != first.ScanID {
		t.Error("Expected prior snapshot untouched after cancelled scan")
	}
	if st.IsScanning() {
		t.Error("Expected scanning flag cleared after cancelled scan")
	}
}

func TestScanSymbol_DoesNotTouchSnapshot(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"FLAG": readyFlag()}}
	s, st := newTestScanner(t, p, nil)

	rec, err := s.ScanSymbol(context.Background(), "FLAG")
	if err != nil {
		t.Fatalf("ScanSymbol failed: %v", err)
	}
	if rec.Symbol != "FLAG" || rec.Status != model.StatusReady {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if st.Current() != nil {
		t.Error("Expected snapshot untouched by single-symbol lookup")
	}
}

func TestRun_RescanSeesFreshBars(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{"FLAG": readyFlag()}}
	cached := provider.NewCachingProvider(p, 120)

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	s := New(cached,
		indicator.NewCalculator(indicator.DefaultConfig()),
		evaluator.NewEvaluator(evaluator.DefaultConfig()),
		st, nil, DefaultConfig())

	first, err := s.Run(context.Background(), stocks("FLAG"))
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if got := first.Records["FLAG"].Price; got != 136 {
		t.Fatalf("Expected first scan price 136, got %f", got)
	}

	// A new bar prints between scheduled runs
	p.candles["FLAG"] = append(p.candles["FLAG"], bar(120, 150, 900_000))

	second, err := s.Run(context.Background(), stocks("FLAG"))
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if got := second.Records["FLAG"].Price; got != 150 {
		t.Errorf("Expected second scan to price the new bar at 150, got %f", got)
	}
}

func TestRun_RecordsScoreHistory(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{
		"FLAG": readyFlag(),
		"BRKN": brokenFlag(),
	}}
	sink := &fakeSink{}
	s, _ := newTestScanner(t, p, sink)

	if _, err := s.Run(context.Background(), stocks("FLAG", "BRKN")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rows := sink.scoreRows()
	if len(rows) != 2 {
		t.Fatalf("Expected a score-history row per scored symbol, got %d", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		seen[r.Symbol] = true
	}
	if !seen["FLAG"] || !seen["BRKN"] {
		t.Errorf("Expected history rows for FLAG and BRKN, got %v", seen)
	}
}

func TestRun_ProgressReachesTotal(t *testing.T) {
	p := &fakeProvider{candles: map[string][]model.Candle{
		"FLAG": readyFlag(),
		"BRKN": brokenFlag(),
	}}
	s, _ := newTestScanner(t, p, nil)

	var mu sync.Mutex
	var last, total int
	s.SetProgressCallback(func(scanned, t int) {
		mu.Lock()
		if scanned > last {
			last = scanned
		}
		total = t
		mu.Unlock()
	})

	if _, err := s.Run(context.Background(), stocks("FLAG", "BRKN")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if last != 2 || total != 2 {
		t.Errorf("Expected progress to reach 2/2, got %d/%d", last, total)
	}
}
