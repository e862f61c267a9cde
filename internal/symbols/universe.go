package symbols

import "flagscan/pkg/model"

// Universe names a predefined symbol set.
type Universe string

const (
	UniverseMomentum Universe = "momentum" // growth and momentum names across sectors
	UniverseMegaCap  Universe = "megacap"
	UniverseTest     Universe = "test" // small set for quick runs
)

// Get returns the symbols for a universe, or nil for an unknown one.
func Get(u Universe) []string {
	switch u {
	case UniverseMomentum:
		return MomentumSymbols
	case UniverseMegaCap:
		return MegaCapSymbols
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// List returns all known universe names.
func List() []Universe {
	return []Universe{UniverseMomentum, UniverseMegaCap, UniverseTest}
}

// Stocks wraps symbols into Stock values for scanning.
func Stocks(syms []string) []model.Stock {
	stocks := make([]model.Stock, len(syms))
	for i, sym := range syms {
		stocks[i] = model.Stock{Symbol: sym, Name: sym}
	}
	return stocks
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"META", "TSLA", "AMD", "NFLX", "JPM",
}

// MegaCapSymbols covers the largest names, useful as a liquid baseline
var MegaCapSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "META", "NVDA", "TSLA", "AVGO", "ORCL",
	"BRK.B", "JPM", "V", "MA", "UNH", "LLY", "WMT", "XOM", "COST", "HD",
}

// MomentumSymbols is the default scan universe: high-beta growth and momentum
// names across sectors, where the prior-advance-then-pullback setup actually
// shows up. Liquid mega caps rarely clear the ADR% filter.
var MomentumSymbols = []string{
	// Mega cap tech
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA",

	// AI & cloud
	"PLTR", "SMCI", "ARM", "CRWD", "NET", "SNOW", "DDOG", "MDB", "PATH",
	"AI", "BBAI", "SOUN", "UPST", "AFRM", "NOW", "PANW", "ZS", "OKTA",
	"FTNT", "ESTC", "CFLT", "GTLB", "DOCN", "DT", "ASAN", "MNDY", "FROG",

	// Semiconductors
	"AMD", "AVGO", "MRVL", "QCOM", "MU", "LRCX", "KLAC", "AMAT", "ASML", "TSM",
	"INTC", "TXN", "ADI", "NXPI", "ON", "MPWR", "MCHP", "SWKS", "QRVO",
	"WOLF", "CRUS", "SITM", "RMBS", "ACLS", "AEHR", "FORM", "SYNA", "AMBA",

	// Crypto & fintech
	"COIN", "MSTR", "HOOD", "SOFI", "NU", "SQ", "PYPL", "LC", "OPEN",
	"MARA", "RIOT", "CLSK", "CIFR", "BITF", "HUT", "BTBT",

	// E-commerce & consumer
	"SHOP", "MELI", "SE", "BABA", "JD", "PDD", "CPNG", "ETSY", "W",
	"LULU", "DECK", "ONON", "BIRK", "CROX", "ELF", "ULTA", "HIMS", "CVNA",

	// Food & beverage
	"CELH", "MNST", "CMG", "CAVA", "WING", "SHAK", "BROS", "DNUT", "TXRH",

	// EV & clean energy
	"RIVN", "LCID", "NIO", "XPEV", "LI", "ENPH", "FSLR", "RUN", "SEDG",
	"NOVA", "ARRY", "PLUG", "BE", "CHPT", "STEM", "LAZR", "AEVA",
	"ALB", "LAC", "SQM", "MP",

	// Space & defense
	"RKLB", "LUNR", "ASTS", "RDW", "SPCE", "KTOS", "AVAV", "AXON",

	// Biotech & healthcare
	"MRNA", "BNTX", "CRSP", "NTLA", "BEAM", "EDIT", "RXRX", "DNA",
	"VKTX", "SMMT", "TMDX", "NTRA", "EXAS", "ALNY", "SRPT", "IONS",

	// Gaming & entertainment
	"RBLX", "U", "DKNG", "PENN", "SPOT", "RCL", "CCL", "NCLH", "ABNB",

	// Social & advertising
	"SNAP", "PINS", "RDDT", "TTD", "ROKU", "APP", "DUOL", "PTON", "ZETA",

	// Quantum & emerging tech
	"IONQ", "RGTI", "QUBT", "ARQQ", "QBTS",

	// Recent IPOs & high growth
	"GRAB", "JOBY", "ACHR", "QS", "IOT", "TOST", "CART",

	// Energy & commodities
	"FCX", "AA", "CLF", "X", "OXY", "DVN", "AR", "EQT",
}
