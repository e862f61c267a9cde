package provider

import (
	"context"
	"errors"

	"flagscan/pkg/model"
)

// ErrDataUnavailable reports that a provider could not return history for a
// symbol. The scan skips the symbol and keeps going.
var ErrDataUnavailable = errors.New("data unavailable")

// Provider defines the interface for daily price data providers.
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyCandles fetches daily OHLCV data for the specified number of
	// calendar days back from today, ordered oldest first.
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)

	// GetQuote returns the latest close price for a symbol.
	GetQuote(ctx context.Context, symbol string) (float64, error)

	// IsAvailable checks if the provider is usable (has credentials if needed)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets callers match any provider failure against ErrDataUnavailable.
func (e *ProviderError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider from the available ones
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyCandles tries each provider in order until one succeeds
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	var lastErr error
	for _, p := range f.providers {
		candles, err := p.GetDailyCandles(ctx, symbol, days)
		if err == nil {
			return candles, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrDataUnavailable
	}
	return nil, lastErr
}

// GetQuote tries each provider in order
func (f *FallbackProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	for _, p := range f.providers {
		quote, err := p.GetQuote(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrDataUnavailable
	}
	return 0, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
