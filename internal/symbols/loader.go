package symbols

import (
	"context"
	"log"

	"flagscan/pkg/model"
)

// SymbolSource lists tradable symbols for an exchange. Satisfied by the
// Finnhub provider; Yahoo has no listing endpoint.
type SymbolSource interface {
	GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error)
}

// Loader resolves the full US stock list for whole-market scans.
type Loader struct {
	source SymbolSource
}

// NewLoader creates a symbol loader. source may be nil when no listing
// provider is configured.
func NewLoader(source SymbolSource) *Loader {
	return &Loader{source: source}
}

// LoadUSStocks loads every common stock on NYSE/NASDAQ, falling back to the
// momentum universe when no listing source is available or it fails.
func (l *Loader) LoadUSStocks(ctx context.Context) ([]model.Stock, error) {
	if l.source == nil {
		return Stocks(MomentumSymbols), nil
	}

	// Finnhub uses "US" for combined NYSE/NASDAQ
	all, err := l.source.GetSymbols(ctx, "US")
	if err != nil || len(all) == 0 {
		log.Printf("[SYMBOLS] full listing unavailable (%v), using momentum universe", err)
		return Stocks(MomentumSymbols), nil
	}

	// Drop units, warrants, preferred shares and other non-standard tickers
	filtered := make([]model.Stock, 0, len(all))
	for _, s := range all {
		if isValidSymbol(s.Symbol) {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// isValidSymbol checks if a symbol is a standard ticker
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 5 {
		return false
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
