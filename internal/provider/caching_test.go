package provider

import (
	"context"
	"testing"
	"time"

	"flagscan/pkg/model"
)

// countingProvider serves a mutable candle slice and counts fetches.
type countingProvider struct {
	candles []model.Candle
	fetches int
}

func (p *countingProvider) Name() string      { return "counting" }
func (p *countingProvider) IsAvailable() bool { return true }
func (p *countingProvider) RateLimit() int    { return 0 }

func (p *countingProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (p *countingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	p.fetches++
	return p.candles, nil
}

func dayBar(i int, close float64) model.Candle {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return model.Candle{Time: start.AddDate(0, 0, i), Open: close, High: close, Low: close, Close: close, Volume: 1_000_000}
}

func TestCachingProvider_ServesRepeatReadsFromCache(t *testing.T) {
	inner := &countingProvider{candles: []model.Candle{dayBar(0, 100), dayBar(1, 101), dayBar(2, 102)}}
	p := NewCachingProvider(inner, 120)

	for i := 0; i < 3; i++ {
		candles, err := p.GetDailyCandles(context.Background(), "TEST", 3)
		if err != nil {
			t.Fatalf("GetDailyCandles failed: %v", err)
		}
		if len(candles) != 3 || candles[2].Close != 102 {
			t.Fatalf("Unexpected candles on read %d: %v", i, candles)
		}
	}

	if inner.fetches != 1 {
		t.Errorf("Expected one upstream fetch for repeat reads, got %d", inner.fetches)
	}
}

func TestCachingProvider_InvalidateAllForcesRefetch(t *testing.T) {
	inner := &countingProvider{candles: []model.Candle{dayBar(0, 100), dayBar(1, 136)}}
	p := NewCachingProvider(inner, 120)

	candles, err := p.GetDailyCandles(context.Background(), "TEST", 2)
	if err != nil {
		t.Fatalf("GetDailyCandles failed: %v", err)
	}
	if candles[len(candles)-1].Close != 136 {
		t.Fatalf("Expected last close 136, got %f", candles[len(candles)-1].Close)
	}

	// A new bar prints upstream; the cache still holds yesterday's series
	inner.candles = append(inner.candles, dayBar(2, 150))

	p.InvalidateAll()

	candles, err = p.GetDailyCandles(context.Background(), "TEST", 3)
	if err != nil {
		t.Fatalf("GetDailyCandles failed: %v", err)
	}
	if candles[len(candles)-1].Close != 150 {
		t.Errorf("Expected refetch to see the new bar at 150, got %f", candles[len(candles)-1].Close)
	}
	if inner.fetches != 2 {
		t.Errorf("Expected a second upstream fetch after invalidation, got %d", inner.fetches)
	}
}
