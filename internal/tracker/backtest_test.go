package tracker

import (
	"testing"

	"flagscan/pkg/model"
)

func backtestSignal(symbol, date string, price float64, fiveDayReturn float64) model.BacktestSignal {
	return model.BacktestSignal{
		Symbol:       symbol,
		SignalDate:   date,
		SignalPrice:  price,
		Score:        85,
		PriorMovePct: 40,
		Measurements: []model.BacktestMeasurement{
			{HorizonDays: 1, ExitDate: date, ExitPrice: price, ReturnPct: 0, MaxGainPct: 1, MaxDrawdownPct: -1},
			{HorizonDays: 5, ExitDate: date, ExitPrice: price * (1 + fiveDayReturn/100), ReturnPct: fiveDayReturn, MaxGainPct: fiveDayReturn + 1, MaxDrawdownPct: -2},
		},
	}
}

func TestReplaceBacktest_StoresAndAggregates(t *testing.T) {
	tr := newTestTracker(t)

	signals := []model.BacktestSignal{
		backtestSignal("WIN", "2026-05-01", 100, 10),
		backtestSignal("LOSE", "2026-05-02", 50, -4),
	}
	if err := tr.ReplaceBacktest(signals); err != nil {
		t.Fatalf("ReplaceBacktest failed: %v", err)
	}

	stats, err := tr.BacktestStats()
	if err != nil {
		t.Fatalf("BacktestStats failed: %v", err)
	}
	if stats.TotalSignals != 2 {
		t.Fatalf("Expected 2 signals, got %d", stats.TotalSignals)
	}

	var fiveDay *HorizonStats
	for i := range stats.Horizons {
		if stats.Horizons[i].HorizonDays == 5 {
			fiveDay = &stats.Horizons[i]
		}
	}
	if fiveDay == nil {
		t.Fatal("Expected 5-day horizon stats")
	}
	if fiveDay.SampleSize != 2 {
		t.Errorf("Expected 2 samples at 5 days, got %d", fiveDay.SampleSize)
	}
	if !approxEq(fiveDay.AvgReturnPct, 3.0) {
		t.Errorf("Expected avg 5-day return 3.0, got %f", fiveDay.AvgReturnPct)
	}
	if !approxEq(fiveDay.WinRatePct, 50.0) {
		t.Errorf("Expected 50%% win rate, got %f", fiveDay.WinRatePct)
	}

	if len(stats.TopWinners) == 0 || stats.TopWinners[0].Symbol != "WIN" {
		t.Errorf("Expected WIN on top, got %v", stats.TopWinners)
	}
	if len(stats.TopLosers) == 0 || stats.TopLosers[0].Symbol != "LOSE" {
		t.Errorf("Expected LOSE at the bottom, got %v", stats.TopLosers)
	}
}

func TestReplaceBacktest_WipesPreviousRun(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.ReplaceBacktest([]model.BacktestSignal{
		backtestSignal("OLD1", "2026-04-01", 100, 5),
		backtestSignal("OLD2", "2026-04-02", 100, 7),
	}); err != nil {
		t.Fatalf("First ReplaceBacktest failed: %v", err)
	}

	if err := tr.ReplaceBacktest([]model.BacktestSignal{
		backtestSignal("NEW", "2026-05-01", 100, 2),
	}); err != nil {
		t.Fatalf("Second ReplaceBacktest failed: %v", err)
	}

	stats, err := tr.BacktestStats()
	if err != nil {
		t.Fatalf("BacktestStats failed: %v", err)
	}
	if stats.TotalSignals != 1 {
		t.Errorf("Expected the replay replaced wholesale, got %d signals", stats.TotalSignals)
	}
	if len(stats.TopWinners) != 1 || stats.TopWinners[0].Symbol != "NEW" {
		t.Errorf("Expected only NEW to survive, got %v", stats.TopWinners)
	}
}

func TestBacktestStats_Empty(t *testing.T) {
	tr := newTestTracker(t)

	stats, err := tr.BacktestStats()
	if err != nil {
		t.Fatalf("BacktestStats failed: %v", err)
	}
	if stats.TotalSignals != 0 || len(stats.Horizons) != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	// Live signal stats are unaffected by the (empty) replay tables
	live, err := tr.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if live.TotalSignals != 0 {
		t.Errorf("Expected no live signals, got %d", live.TotalSignals)
	}
}
