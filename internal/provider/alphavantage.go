package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"flagscan/internal/ratelimit"
	"flagscan/pkg/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider implements the Provider interface for Alpha Vantage.
// Free keys allow only a handful of calls per minute, so it sits behind
// Finnhub in the fallback chain.
type AlphaVantageProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, rateLimitPerMin int) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("alphavantage", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
	}
}

// Name returns the provider name
func (p *AlphaVantageProvider) Name() string {
	return "alphavantage"
}

// IsAvailable checks if the provider has an API key
func (p *AlphaVantageProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *AlphaVantageProvider) RateLimit() int {
	return p.rateLimit
}

// alphaVantageDaily represents the TIME_SERIES_DAILY response
type alphaVantageDaily struct {
	Note       string                       `json:"Note"`
	ErrorMsg   string                       `json:"Error Message"`
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
}

// GetDailyCandles fetches daily OHLCV data, oldest first
func (p *AlphaVantageProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	outputSize := "compact" // last 100 bars
	if days > 100 {
		outputSize = "full"
	}

	url := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&outputsize=%s&apikey=%s",
		alphaVantageBaseURL, symbol, outputSize, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	var data alphaVantageDaily
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	// Alpha Vantage reports throttling in-band with a 200
	if data.Note != "" {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}
	if data.ErrorMsg != "" {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.ErrorMsg), Retryable: false}
	}
	if len(data.TimeSeries) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	p.limiter.ResetBackoff()

	cutoff := time.Now().AddDate(0, 0, -days)
	candles := make([]model.Candle, 0, len(data.TimeSeries))
	for date, values := range data.TimeSeries {
		t, err := time.Parse("2006-01-02", date)
		if err != nil || t.Before(cutoff) {
			continue
		}

		c, err := parseBar(t, values)
		if err != nil {
			continue
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	return candles, nil
}

// GetQuote returns the most recent daily close
func (p *AlphaVantageProvider) GetQuote(ctx context.Context, symbol string) (float64, error) {
	candles, err := p.GetDailyCandles(ctx, symbol, 7)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no recent candles for %s", symbol), Retryable: false}
	}
	return candles[len(candles)-1].Close, nil
}

func parseBar(t time.Time, values map[string]string) (model.Candle, error) {
	open, err := strconv.ParseFloat(values["1. open"], 64)
	if err != nil {
		return model.Candle{}, err
	}
	high, err := strconv.ParseFloat(values["2. high"], 64)
	if err != nil {
		return model.Candle{}, err
	}
	low, err := strconv.ParseFloat(values["3. low"], 64)
	if err != nil {
		return model.Candle{}, err
	}
	closePrice, err := strconv.ParseFloat(values["4. close"], 64)
	if err != nil {
		return model.Candle{}, err
	}
	volume, err := strconv.ParseInt(values["5. volume"], 10, 64)
	if err != nil {
		return model.Candle{}, err
	}

	return model.Candle{
		Time:   t,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
