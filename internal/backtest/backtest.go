package backtest

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"flagscan/internal/evaluator"
	"flagscan/internal/indicator"
	"flagscan/internal/provider"
	"flagscan/pkg/model"
)

// ErrNoSymbols reports an empty symbol list. The replay fails fast before any
// fetch.
var ErrNoSymbols = errors.New("no symbols to backtest")

// ProgressCallback is called with progress updates
type ProgressCallback func(done, total int)

// Config holds the replay window and signal criteria.
type Config struct {
	LookbackBars int // trailing trading days replayed for signals
	WarmupBars   int // bars of history required before the first evaluated day
	MinScore     int // score at or above which a day counts as a signal
	DedupeBars   int // suppress repeat signals within this many bars
	Horizons     []int
	Workers      int
	Timeout      time.Duration
}

// DefaultConfig returns the default replay settings.
func DefaultConfig() Config {
	return Config{
		LookbackBars: 90,
		WarmupBars:   60,
		MinScore:     75,
		DedupeBars:   5,
		Horizons:     []int{1, 5, 20, 30},
		Workers:      5,
		Timeout:      15 * time.Minute,
	}
}

// Backtester replays the scoring pipeline over historical bars to find past
// signal days and measure what followed them. It reuses the live calculator
// and evaluator, so a replayed day scores exactly as a scan on that day would
// have.
type Backtester struct {
	provider     provider.Provider
	calc         *indicator.Calculator
	eval         *evaluator.Evaluator
	cfg          Config
	progressFunc ProgressCallback
}

// New creates a backtester.
func New(p provider.Provider, calc *indicator.Calculator, eval *evaluator.Evaluator, cfg Config) *Backtester {
	return &Backtester{
		provider: p,
		calc:     calc,
		eval:     eval,
		cfg:      cfg,
	}
}

// SetProgressCallback sets the progress callback function
func (b *Backtester) SetProgressCallback(fn ProgressCallback) {
	b.progressFunc = fn
}

// Run replays every symbol and returns all signals found, ordered by date
// then symbol. Per-symbol failures skip the symbol, matching the live scan.
func (b *Backtester) Run(ctx context.Context, stocks []model.Stock) ([]model.BacktestSignal, error) {
	if len(stocks) == 0 {
		return nil, ErrNoSymbols
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	jobChan := make(chan model.Stock, len(stocks))
	resultChan := make(chan []model.BacktestSignal, len(stocks))

	for _, stock := range stocks {
		jobChan <- stock
	}
	close(jobChan)

	var doneCount int64

	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				signals, err := b.replaySymbol(ctx, stock)
				if err != nil {
					log.Printf("[BACKTEST] %s: skipped: %v", stock.Symbol, err)
				} else if len(signals) > 0 {
					resultChan <- signals
				}

				count := atomic.AddInt64(&doneCount, 1)
				if b.progressFunc != nil {
					b.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var all []model.BacktestSignal
	for signals := range resultChan {
		all = append(all, signals...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].SignalDate != all[j].SignalDate {
			return all[i].SignalDate < all[j].SignalDate
		}
		return all[i].Symbol < all[j].Symbol
	})

	log.Printf("[BACKTEST] completed: %d signals across %d symbols", len(all), len(stocks))
	return all, nil
}

// replaySymbol walks one symbol's history, scoring each day in the replay
// window against the bars known up to that day only.
func (b *Backtester) replaySymbol(ctx context.Context, stock model.Stock) ([]model.BacktestSignal, error) {
	candles, err := b.provider.GetDailyCandles(ctx, stock.Symbol, b.cfg.LookbackBars+b.cfg.WarmupBars)
	if err != nil {
		return nil, err
	}
	if len(candles) <= b.cfg.WarmupBars {
		return nil, nil // not enough history to replay anything
	}

	first := len(candles) - b.cfg.LookbackBars
	if first < b.cfg.WarmupBars {
		first = b.cfg.WarmupBars
	}

	var signals []model.BacktestSignal
	lastSignal := -(len(candles) + 1)

	// The final bar is excluded: a signal with no forward bar at all belongs
	// to the live scan, not the replay.
	for i := first; i <= len(candles)-2; i++ {
		ind, err := b.calc.Calculate(candles[:i+1])
		if err != nil {
			continue
		}
		score, _ := b.eval.Evaluate(ind)
		if score < b.cfg.MinScore {
			continue
		}
		if i-lastSignal < b.cfg.DedupeBars {
			continue // still inside the previous signal's window
		}
		lastSignal = i

		signals = append(signals, model.BacktestSignal{
			Symbol:           stock.Symbol,
			SignalDate:       candles[i].Time.Format("2006-01-02"),
			SignalPrice:      candles[i].Close,
			Score:            score,
			PriorMovePct:     ind.PriorMovePct,
			PullbackPct:      ind.PullbackPct,
			VolumeDeclinePct: ind.VolumeDeclinePct,
			DistancePct:      ind.DistanceToBreakoutPct,
			Measurements:     measure(candles[i].Close, candles[i+1:], b.cfg.Horizons),
		})
	}

	return signals, nil
}

// measure computes the outcome at each holding period that matured inside
// the replay window, mirroring the live tracker's forward-return arithmetic.
func measure(signalPrice float64, forward []model.Candle, horizons []int) []model.BacktestMeasurement {
	var out []model.BacktestMeasurement
	for _, h := range horizons {
		if len(forward) < h {
			continue // not matured
		}

		exit := forward[h-1]
		high, low := exit.Close, exit.Close
		for _, c := range forward[:h] {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}

		out = append(out, model.BacktestMeasurement{
			HorizonDays:    h,
			ExitDate:       exit.Time.Format("2006-01-02"),
			ExitPrice:      exit.Close,
			ReturnPct:      (exit.Close - signalPrice) / signalPrice * 100,
			MaxGainPct:     (high - signalPrice) / signalPrice * 100,
			MaxDrawdownPct: (low - signalPrice) / signalPrice * 100,
		})
	}
	return out
}
