package model

import "time"

// Candle represents a single daily candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Stock represents basic stock information
type Stock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector,omitempty"`
}

// IndicatorSet contains the derived metrics for one symbol, computed fresh
// each scan from its price history and never mutated afterwards.
type IndicatorSet struct {
	SMA10      float64 `json:"sma10"`
	SMA20      float64 `json:"sma20"`
	SMA10Slope float64 `json:"sma10_slope"` // normalized rate of change; sign is what matters
	SMA20Slope float64 `json:"sma20_slope"`

	PriorMovePct          float64 `json:"prior_move_pct"` // swing low -> swing high gain
	PullbackPct           float64 `json:"pullback_pct"`   // swing high -> lowest consolidation close
	VolumeDeclinePct      float64 `json:"volume_decline_pct"`
	ADRPct                float64 `json:"adr_pct"`
	DistanceToBreakoutPct float64 `json:"distance_to_breakout_pct"` // negative once price exceeds the prior high

	DaysConsolidating int     `json:"days_consolidating"`
	AvgVolume         float64 `json:"avg_volume"` // 20-day average share volume
}

// Status classifies how far along the setup is.
type Status string

const (
	StatusReady    Status = "ready"
	StatusForming  Status = "forming"
	StatusWatching Status = "watching"
)

// ChartPoint is one trimmed bar of the display series attached to a record.
// SMA values are nil where the trailing window is not yet filled.
type ChartPoint struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume int64    `json:"volume"`
	SMA10  *float64 `json:"sma10"`
	SMA20  *float64 `json:"sma20"`
}

// ScoreRecord is the evaluated result for one symbol in one scan. Records are
// created at scan time and replaced wholesale by the next successful scan.
type ScoreRecord struct {
	Symbol          string       `json:"symbol"`
	Name            string       `json:"name"`
	Sector          string       `json:"sector"`
	Price           float64      `json:"price"`
	Indicators      IndicatorSet `json:"indicators"`
	Score           int          `json:"score"`
	Status          Status       `json:"status"`
	AvgDollarVolume float64      `json:"avg_dollar_volume"`
	Chart           []ChartPoint `json:"chart,omitempty"`
}

// ScanSummary holds per-status counts for a snapshot.
type ScanSummary struct {
	Ready    int `json:"ready"`
	Forming  int `json:"forming"`
	Watching int `json:"watching"`
}

// ScanSnapshot is the immutable result set of one completed scan. Exactly one
// snapshot is current at a time; a scan either replaces it fully on success or
// leaves the prior one untouched.
type ScanSnapshot struct {
	ScanID       string                 `json:"scan_id"`
	ScanTime     time.Time              `json:"scan_time"`
	Records      map[string]ScoreRecord `json:"records"`
	Summary      ScanSummary            `json:"summary"`
	TotalScanned int                    `json:"total_scanned"`
	Skipped      int                    `json:"skipped"` // fetch failures and hard-filter omissions
}

// SignalEvent marks the first time a symbol crossed the high-confidence score
// threshold in a scan. Immutable once written.
type SignalEvent struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	TriggeredAt  time.Time `json:"triggered_at"`
	TriggerPrice float64   `json:"trigger_price"`
	TriggerScore int       `json:"trigger_score"`
	PriorMovePct float64   `json:"prior_move_pct"`
	DistancePct  float64   `json:"distance_pct"`
}

// PerformanceRecord is the measured forward return of one signal at one
// horizon. Written once when the horizon matures, never recomputed.
type PerformanceRecord struct {
	SignalID       int64     `json:"signal_id"`
	HorizonDays    int       `json:"horizon_days"`
	MeasuredAt     time.Time `json:"measured_at"`
	MeasuredPrice  float64   `json:"measured_price"`
	ReturnPct      float64   `json:"return_pct"`
	MaxGainPct     float64   `json:"max_gain_pct"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
}

// ScorePoint is one day of a symbol's score history, written after each scan.
// A re-scan on the same day refreshes the row instead of duplicating it.
type ScorePoint struct {
	Date             string  `json:"date"`
	Score            int     `json:"score"`
	Price            float64 `json:"price"`
	PriorMovePct     float64 `json:"prior_move_pct"`
	PullbackPct      float64 `json:"pullback_pct"`
	VolumeDeclinePct float64 `json:"volume_decline_pct"`
	DistancePct      float64 `json:"distance_pct"`
}

// TrendingStock is a symbol whose score rose across the comparison window.
type TrendingStock struct {
	Symbol       string `json:"symbol"`
	CurrentScore int    `json:"current_score"`
	PastScore    int    `json:"past_score"`
	ScoreChange  int    `json:"score_change"`
}

// BacktestSignal is a past day on which the pattern criteria were met, found
// by replaying the scoring pipeline over historical bars.
type BacktestSignal struct {
	Symbol           string                `json:"symbol"`
	SignalDate       string                `json:"signal_date"`
	SignalPrice      float64               `json:"signal_price"`
	Score            int                   `json:"score"`
	PriorMovePct     float64               `json:"prior_move_pct"`
	PullbackPct      float64               `json:"pullback_pct"`
	VolumeDeclinePct float64               `json:"volume_decline_pct"`
	DistancePct      float64               `json:"distance_pct"`
	Measurements     []BacktestMeasurement `json:"measurements"`
}

// BacktestMeasurement is the outcome of one backtest signal at one holding
// period. Horizons that did not mature inside the replay window are omitted.
type BacktestMeasurement struct {
	HorizonDays    int     `json:"horizon_days"`
	ExitDate       string  `json:"exit_date"`
	ExitPrice      float64 `json:"exit_price"`
	ReturnPct      float64 `json:"return_pct"`
	MaxGainPct     float64 `json:"max_gain_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}
