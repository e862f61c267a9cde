package evaluator

import (
	"testing"

	"flagscan/pkg/model"
)

// textbookSetup returns an indicator set that earns every criterion's full
// allocation: 40% advance, rising SMAs, 12% pullback, 55% volume decline,
// 6% ADR, 2% from breakout.
func textbookSetup() *model.IndicatorSet {
	return &model.IndicatorSet{
		PriorMovePct:          40.0,
		SMA10Slope:            0.02,
		SMA20Slope:            0.01,
		PullbackPct:           12.0,
		VolumeDeclinePct:      55.0,
		ADRPct:                6.0,
		DistanceToBreakoutPct: 2.0,
	}
}

func TestScore_TextbookSetupIsPerfect(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	score, status := e.Evaluate(textbookSetup())
	if score != 100 {
		t.Errorf("Expected score 100, got %d", score)
	}
	if status != model.StatusReady {
		t.Errorf("Expected status ready, got %s", status)
	}
}

func TestScore_CriterionWeights(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	tests := []struct {
		name   string
		modify func(*model.IndicatorSet)
		want   int
	}{
		{"prior move at half threshold", func(i *model.IndicatorSet) { i.PriorMovePct = 15 }, 90},
		{"no prior move", func(i *model.IndicatorSet) { i.PriorMovePct = 0 }, 80},
		{"one SMA slope flat", func(i *model.IndicatorSet) { i.SMA20Slope = 0 }, 90},
		{"both SMA slopes negative", func(i *model.IndicatorSet) { i.SMA10Slope = -0.01; i.SMA20Slope = -0.02 }, 80},
		{"pullback midway between soft and hard limit", func(i *model.IndicatorSet) { i.PullbackPct = 25 }, 90},
		{"pullback at hard ceiling", func(i *model.IndicatorSet) { i.PullbackPct = 30 }, 80},
		{"pullback beyond hard ceiling", func(i *model.IndicatorSet) { i.PullbackPct = 35 }, 80},
		{"volume decline at half threshold", func(i *model.IndicatorSet) { i.VolumeDeclinePct = 20 }, 90},
		{"no volume decline", func(i *model.IndicatorSet) { i.VolumeDeclinePct = 0 }, 80},
		{"ADR at half threshold", func(i *model.IndicatorSet) { i.ADRPct = 2.5 }, 95},
		{"no daily range", func(i *model.IndicatorSet) { i.ADRPct = 0 }, 90},
		{"distance midway to far limit", func(i *model.IndicatorSet) { i.DistanceToBreakoutPct = 6.5 }, 95},
		{"distance at far limit", func(i *model.IndicatorSet) { i.DistanceToBreakoutPct = 10 }, 90},
		{"price already above prior high", func(i *model.IndicatorSet) { i.DistanceToBreakoutPct = -1.5 }, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := textbookSetup()
			tt.modify(ind)
			if got := e.Score(ind); got != tt.want {
				t.Errorf("Expected score %d, got %d", tt.want, got)
			}
		})
	}
}

func TestScore_WorstCaseIsZero(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	ind := &model.IndicatorSet{
		PriorMovePct:          0,
		SMA10Slope:            -0.05,
		SMA20Slope:            -0.05,
		PullbackPct:           45,
		VolumeDeclinePct:      0,
		ADRPct:                0,
		DistanceToBreakoutPct: 25,
	}

	score, status := e.Evaluate(ind)
	if score != 0 {
		t.Errorf("Expected score 0, got %d", score)
	}
	if status != model.StatusWatching {
		t.Errorf("Expected status watching, got %s", status)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	tests := []struct {
		score int
		want  model.Status
	}{
		{100, model.StatusReady},
		{75, model.StatusReady},
		{74, model.StatusForming},
		{50, model.StatusForming},
		{49, model.StatusWatching},
		{0, model.StatusWatching},
	}

	for _, tt := range tests {
		if got := e.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d): expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestScore_DeeperPullbackNeverScoresHigher(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	prev := 101
	for pullback := 0.0; pullback <= 50.0; pullback += 0.5 {
		ind := textbookSetup()
		ind.PullbackPct = pullback
		score := e.Score(ind)
		if score > prev {
			t.Fatalf("Score rose from %d to %d when pullback deepened to %.1f%%", prev, score, pullback)
		}
		prev = score
	}
}

func TestScore_MoreVolumeContractionNeverScoresLower(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	prev := -1
	for decline := 0.0; decline <= 100.0; decline += 2.5 {
		ind := textbookSetup()
		ind.VolumeDeclinePct = decline
		score := e.Score(ind)
		if score < prev {
			t.Fatalf("Score fell from %d to %d when volume decline grew to %.1f%%", prev, score, decline)
		}
		prev = score
	}
}

func TestScore_Deterministic(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	ind := textbookSetup()
	ind.PullbackPct = 23.7
	ind.PriorMovePct = 21.2

	first := e.Score(ind)
	for i := 0; i < 10; i++ {
		if got := e.Score(ind); got != first {
			t.Fatalf("Score changed between runs: %d then %d", first, got)
		}
	}
}
