package indicator

import (
	"errors"
	"fmt"

	"flagscan/pkg/model"
)

// ErrInsufficientHistory reports that a price series is too short for the
// derived metrics. Symbols failing this are excluded from scoring entirely,
// never scored as zero.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Config holds the tunable windows for indicator derivation. The swing
// detection parameters are deliberately explicit rather than hard-coded.
type Config struct {
	MinBars            int // minimum bars required to compute anything
	SlopeWindow        int // bars between the two SMA samples used for slope
	SwingWindow        int // trailing bars scanned for the swing high/low pair
	MinSwingSeparation int // swing low must precede the swing high by this many bars
	VolumeWindow       int // trailing bars for the average-volume statistic
}

// DefaultConfig returns the default derivation windows.
func DefaultConfig() Config {
	return Config{
		MinBars:            50,
		SlopeWindow:        5,
		SwingWindow:        60,
		MinSwingSeparation: 5,
		VolumeWindow:       20,
	}
}

// Calculator derives an IndicatorSet from a daily candle series. It is a pure
// function of its input: no hidden state, safe to recompute.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the given windows.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate derives all metrics from candles ordered oldest first.
func (c *Calculator) Calculate(candles []model.Candle) (*model.IndicatorSet, error) {
	if len(candles) < c.cfg.MinBars {
		return nil, fmt.Errorf("%w: got %d bars, need %d", ErrInsufficientHistory, len(candles), c.cfg.MinBars)
	}

	last := len(candles) - 1
	lastClose := candles[last].Close

	ind := &model.IndicatorSet{
		SMA10:      SMA(candles, last, 10),
		SMA20:      SMA(candles, last, 20),
		SMA10Slope: c.slope(candles, 10),
		SMA20Slope: c.slope(candles, 20),
		ADRPct:     ADRPercent(candles),
		AvgVolume:  AverageVolume(candles, c.cfg.VolumeWindow),
	}

	// Swing detection over the trailing window: highest close, then the
	// lowest close preceding it by at least the minimum separation.
	start := len(candles) - c.cfg.SwingWindow
	if start < 0 {
		start = 0
	}

	highIdx := start
	for i := start; i <= last; i++ {
		if candles[i].Close > candles[highIdx].Close {
			highIdx = i
		}
	}
	swingHigh := candles[highIdx].Close

	lowBound := highIdx - c.cfg.MinSwingSeparation
	if lowBound < start {
		// Too close to the window edge for clean separation; fall back to
		// whatever precedes the high at all.
		lowBound = highIdx - 1
	}
	if lowBound >= start {
		lowIdx := start
		for i := start; i <= lowBound; i++ {
			if candles[i].Close < candles[lowIdx].Close {
				lowIdx = i
			}
		}
		swingLow := candles[lowIdx].Close
		if swingLow > 0 {
			ind.PriorMovePct = (swingHigh - swingLow) / swingLow * 100
		}

		// Volume contrast: the advance leg versus the consolidation.
		moveVol := avgVolume(candles, lowIdx, highIdx+1)
		consolVol := avgVolume(candles, highIdx+1, len(candles))
		if moveVol > 0 && highIdx < last {
			decline := (moveVol - consolVol) / moveVol * 100
			ind.VolumeDeclinePct = clamp(decline, 0, 100)
		}
	}

	// Consolidation window: bars strictly after the swing high.
	ind.DaysConsolidating = last - highIdx
	if highIdx < last {
		lowest := candles[highIdx+1].Close
		for i := highIdx + 2; i <= last; i++ {
			if candles[i].Close < lowest {
				lowest = candles[i].Close
			}
		}
		ind.PullbackPct = (swingHigh - lowest) / swingHigh * 100
	}

	if swingHigh > 0 {
		ind.DistanceToBreakoutPct = (swingHigh - lastClose) / swingHigh * 100
	}

	return ind, nil
}

// SMA returns the simple moving average of close ending at index i, or 0 when
// the trailing window is not yet filled.
func SMA(candles []model.Candle, i, period int) float64 {
	if i-period+1 < 0 {
		return 0
	}
	var sum float64
	for j := i - period + 1; j <= i; j++ {
		sum += candles[j].Close
	}
	return sum / float64(period)
}

// slope is the normalized rate of change of SMA(period) over the slope window.
// Small decimal, not annualized; the evaluator mostly consumes the sign.
func (c *Calculator) slope(candles []model.Candle, period int) float64 {
	last := len(candles) - 1
	cur := SMA(candles, last, period)
	prev := SMA(candles, last-c.cfg.SlopeWindow, period)
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev
}

// ADRPercent is the mean daily (high-low)/close range over the whole window,
// expressed as a percentage. Cheap enough to run as a pre-filter before full
// derivation.
func ADRPercent(candles []model.Candle) float64 {
	var sum float64
	var n int
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		sum += (c.High - c.Low) / c.Close * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageVolume averages share volume over the trailing window.
func AverageVolume(candles []model.Candle, window int) float64 {
	return avgVolume(candles, len(candles)-window, len(candles))
}

// avgVolume averages share volume over candles[from:to).
func avgVolume(candles []model.Candle, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(candles) {
		to = len(candles)
	}
	if from >= to {
		return 0
	}
	var sum int64
	for i := from; i < to; i++ {
		sum += candles[i].Volume
	}
	return float64(sum) / float64(to-from)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChartSeries trims the candle series to the last n bars and attaches the SMA
// overlay values the dashboard plots. SMA entries are nil until the trailing
// window fills.
func ChartSeries(candles []model.Candle, n int) []model.ChartPoint {
	start := len(candles) - n
	if start < 0 {
		start = 0
	}

	points := make([]model.ChartPoint, 0, len(candles)-start)
	for i := start; i < len(candles); i++ {
		p := model.ChartPoint{
			Date:   candles[i].Time.Format("2006-01-02"),
			Open:   candles[i].Open,
			High:   candles[i].High,
			Low:    candles[i].Low,
			Close:  candles[i].Close,
			Volume: candles[i].Volume,
		}
		if v := SMA(candles, i, 10); v > 0 {
			v := v
			p.SMA10 = &v
		}
		if v := SMA(candles, i, 20); v > 0 {
			v := v
			p.SMA20 = &v
		}
		points = append(points, p)
	}
	return points
}
