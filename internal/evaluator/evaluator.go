package evaluator

import (
	"math"

	"flagscan/pkg/model"
)

// Config holds the criteria thresholds and point weights. It is immutable
// once passed to NewEvaluator; the weights sum to 100.
type Config struct {
	// Prior advance: full points at or above the threshold, linearly scaled
	// below it down to zero at 0%.
	MinPriorMovePct float64
	PriorMovePts    float64

	// SMA trend: each positive slope earns half of SlopePts.
	SlopePts float64

	// Pullback depth: full points at or below the soft limit, linearly scaled
	// to zero at the hard ceiling, zero beyond it.
	SoftPullbackPct float64
	MaxPullbackPct  float64
	PullbackPts     float64

	// Volume contraction: full points at or above the threshold, scaled below.
	MinVolumeDeclinePct float64
	VolumeDeclinePts    float64

	// Volatility: full points at or above the ADR threshold, scaled below.
	MinADRPct float64
	ADRPts    float64

	// Breakout proximity: full points at or below the near distance, linearly
	// scaled to zero at the far distance. Negative distance (price already
	// above the prior high) earns full points.
	NearBreakoutPct float64
	FarBreakoutPct  float64
	DistancePts     float64

	// Status boundaries: score >= ReadyScore is READY, >= FormingScore is
	// FORMING, anything below is WATCHING.
	ReadyScore   int
	FormingScore int
}

// DefaultConfig returns the standard six-criterion weighting.
func DefaultConfig() Config {
	return Config{
		MinPriorMovePct: 30.0,
		PriorMovePts:    20,

		SlopePts: 20,

		SoftPullbackPct: 20.0,
		MaxPullbackPct:  30.0,
		PullbackPts:     20,

		MinVolumeDeclinePct: 40.0,
		VolumeDeclinePts:    20,

		MinADRPct: 5.0,
		ADRPts:    10,

		NearBreakoutPct: 3.0,
		FarBreakoutPct:  10.0,
		DistancePts:     10,

		ReadyScore:   75,
		FormingScore: 50,
	}
}

// Evaluator scores an IndicatorSet against the six pattern criteria. Pure and
// deterministic: the same input always yields the same score and status.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the 0-100 score and its status classification.
func (e *Evaluator) Evaluate(ind *model.IndicatorSet) (int, model.Status) {
	score := e.Score(ind)
	return score, e.Classify(score)
}

// Score sums the six criterion contributions, rounded and clamped to [0, 100].
func (e *Evaluator) Score(ind *model.IndicatorSet) int {
	cfg := e.cfg
	var total float64

	// 1. Prior advance
	total += scaleUp(ind.PriorMovePct, cfg.MinPriorMovePct, cfg.PriorMovePts)

	// 2. SMA slopes, half the allocation each
	if ind.SMA10Slope > 0 {
		total += cfg.SlopePts / 2
	}
	if ind.SMA20Slope > 0 {
		total += cfg.SlopePts / 2
	}

	// 3. Pullback depth
	switch {
	case ind.PullbackPct <= cfg.SoftPullbackPct:
		total += cfg.PullbackPts
	case ind.PullbackPct < cfg.MaxPullbackPct:
		span := cfg.MaxPullbackPct - cfg.SoftPullbackPct
		total += cfg.PullbackPts * (cfg.MaxPullbackPct - ind.PullbackPct) / span
	}

	// 4. Volume contraction (already clamped to [0, 100] upstream)
	total += scaleUp(ind.VolumeDeclinePct, cfg.MinVolumeDeclinePct, cfg.VolumeDeclinePts)

	// 5. Volatility
	total += scaleUp(ind.ADRPct, cfg.MinADRPct, cfg.ADRPts)

	// 6. Breakout proximity
	switch {
	case ind.DistanceToBreakoutPct <= cfg.NearBreakoutPct:
		total += cfg.DistancePts
	case ind.DistanceToBreakoutPct < cfg.FarBreakoutPct:
		span := cfg.FarBreakoutPct - cfg.NearBreakoutPct
		total += cfg.DistancePts * (cfg.FarBreakoutPct - ind.DistanceToBreakoutPct) / span
	}

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Classify maps a score to its status band. Bands are closed and
// non-overlapping: 75 is READY, 74 and 50 are FORMING, 49 is WATCHING.
func (e *Evaluator) Classify(score int) model.Status {
	switch {
	case score >= e.cfg.ReadyScore:
		return model.StatusReady
	case score >= e.cfg.FormingScore:
		return model.StatusForming
	default:
		return model.StatusWatching
	}
}

// scaleUp awards full points at or above the threshold and a proportional
// share below it.
func scaleUp(value, threshold, pts float64) float64 {
	if value >= threshold {
		return pts
	}
	if value <= 0 {
		return 0
	}
	return pts * value / threshold
}
