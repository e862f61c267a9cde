package provider

import (
	"context"
	"sync"

	"flagscan/pkg/model"
)

// CachingProvider wraps a Provider with an in-memory cache for GetDailyCandles.
// Designed for scan runs where the tracker backfill re-reads symbols the scan
// just fetched.
type CachingProvider struct {
	inner   Provider
	cache   map[string][]model.Candle
	mu      sync.Mutex
	maxDays int
}

// NewCachingProvider creates a caching wrapper. maxDays is the window fetched
// on a cache miss regardless of the requested span, so later shorter requests
// hit the cache.
func NewCachingProvider(inner Provider, maxDays int) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		cache:   make(map[string][]model.Candle),
		maxDays: maxDays,
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	return p.inner.GetQuote(ctx, symbol)
}

func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	p.mu.Lock()
	if cached, ok := p.cache[symbol]; ok {
		p.mu.Unlock()
		if len(cached) >= days {
			return cached[len(cached)-days:], nil
		}
		return cached, nil
	}
	p.mu.Unlock()

	fetchDays := p.maxDays
	if days > fetchDays {
		fetchDays = days
	}

	candles, err := p.inner.GetDailyCandles(ctx, symbol, fetchDays)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[symbol] = candles
	p.mu.Unlock()

	if len(candles) >= days {
		return candles[len(candles)-days:], nil
	}
	return candles, nil
}

// InvalidateAll drops every cached series. The scanner calls this at the
// start of each run so a re-scan always sees bars printed since the last one;
// reads between runs (tracker backfill, per-stock lookups) still hit the
// cache the scan populated.
func (p *CachingProvider) InvalidateAll() {
	p.mu.Lock()
	p.cache = make(map[string][]model.Candle)
	p.mu.Unlock()
}
