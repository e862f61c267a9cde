package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"flagscan/internal/backtest"
	"flagscan/internal/config"
	"flagscan/internal/evaluator"
	"flagscan/internal/indicator"
	"flagscan/internal/provider"
	"flagscan/internal/scanner"
	"flagscan/internal/scheduler"
	"flagscan/internal/store"
	"flagscan/internal/symbols"
	"flagscan/internal/tracker"
	"flagscan/internal/web"
	"flagscan/pkg/model"
)

var (
	cfgFile    string
	universe   string
	symbolList string
	workers    int
	format     string
	port       int
	noTrack    bool

	backtestLookback int
	backtestMinScore int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flagscan",
		Short: "Bull flag pattern scanner for US stocks",
		Long: `FlagScan scans US stocks for the bull flag setup: a strong prior advance
followed by an orderly low-volume pullback near the prior high.

Each stock gets a 0-100 score from six weighted criteria (prior move,
trend slopes, pullback depth, volume contraction, daily range, distance
to breakout) and a status: ready, forming, or watching.

Examples:
  flagscan scan
  flagscan scan --universe test --format json
  flagscan serve --port 8080
  flagscan backfill
  flagscan backtest --lookback 90`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan and print the results",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&universe, "universe", "", "symbol universe: momentum, megacap, test, all")
	scanCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated symbols to scan instead of a universe")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers")
	scanCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	scanCmd.Flags().BoolVar(&noTrack, "no-track", false, "skip recording signal events")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP port (default from config)")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Measure forward returns for matured signals",
		RunE:  runBackfill,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate signal performance",
		RunE:  runStats,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay past bars for historical signals and their outcomes",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringVar(&universe, "universe", "", "symbol universe: momentum, megacap, test, all")
	backtestCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated symbols to replay instead of a universe")
	backtestCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers")
	backtestCmd.Flags().IntVar(&backtestLookback, "lookback", 90, "trading days replayed for signals")
	backtestCmd.Flags().IntVar(&backtestMinScore, "min-score", 75, "score at or above which a day counts as a signal")

	rootCmd.AddCommand(scanCmd, serveCmd, backfillCmd, statsCmd, backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg     *config.Config
	prov    provider.Provider
	lister  symbols.SymbolSource // non-nil only when Finnhub is configured
	store   *store.Store
	tracker *tracker.Tracker
	scanner *scanner.Scanner
}

// createProviders builds the fallback chain: keyed providers first, Yahoo as
// the keyless anchor.
func createProviders(cfg *config.Config) ([]provider.Provider, symbols.SymbolSource) {
	var providers []provider.Provider
	var lister symbols.SymbolSource

	if cfg.Provider.FinnhubKey != "" {
		fh := provider.NewFinnhubProvider(cfg.Provider.FinnhubKey, cfg.Provider.FinnhubRateLimit)
		providers = append(providers, fh)
		lister = fh
	}
	if cfg.Provider.AlphaVantageKey != "" {
		providers = append(providers, provider.NewAlphaVantageProvider(cfg.Provider.AlphaVantageKey, cfg.Provider.AlphaVantageRateLimit))
	}
	providers = append(providers, provider.NewYahooProvider(cfg.Provider.YahooRateLimit))

	return providers, lister
}

func buildApp(withTracker bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if workers > 0 {
		cfg.Scan.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	providers, lister := createProviders(cfg)
	prov := provider.NewCachingProvider(
		provider.NewFallbackProvider(providers...),
		cfg.Scan.LookbackDays,
	)

	st, err := store.New(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}

	a := &app{cfg: cfg, prov: prov, lister: lister, store: st}

	if withTracker {
		dbPath := cfg.Tracker.DBPath
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating tracker directory: %w", err)
		}
		a.tracker, err = tracker.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening signal tracker: %w", err)
		}
	}

	var sink scanner.SignalSink
	if a.tracker != nil {
		sink = a.tracker
	}
	a.scanner = scanner.New(
		prov,
		indicator.NewCalculator(cfg.IndicatorSettings()),
		evaluator.NewEvaluator(cfg.ScoringSettings()),
		st,
		sink,
		cfg.ScanSettings(),
	)

	return a, nil
}

func (a *app) close() {
	if a.tracker != nil {
		a.tracker.Close()
	}
}

// interruptContext cancels on SIGINT/SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Stopping...")
		cancel()
	}()

	return ctx, cancel
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := buildApp(!noTrack)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	stocks, err := resolveStocks(ctx, a)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %d stocks for bull flag setups...\n\n", len(stocks))

	bar := newProgressBar("Scanning", len(stocks))
	a.scanner.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	startTime := time.Now()
	snap, err := a.scanner.Run(ctx, stocks)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	bar.Finish()
	fmt.Println()

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap)
	}
	return outputTable(a.store, snap, time.Since(startTime))
}

func newProgressBar(description string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func resolveStocks(ctx context.Context, a *app) ([]model.Stock, error) {
	if symbolList != "" {
		var syms []string
		for _, s := range strings.Split(symbolList, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				syms = append(syms, s)
			}
		}
		return symbols.Stocks(syms), nil
	}

	u := symbols.Universe(a.cfg.Scan.Universe)
	if universe != "" {
		u = symbols.Universe(universe)
	}

	// "all" sweeps the full exchange listing when a listing provider exists
	if u == "all" {
		fmt.Println("Loading US stock list...")
		return symbols.NewLoader(a.lister).LoadUSStocks(ctx)
	}

	syms := symbols.Get(u)
	if syms == nil {
		return nil, fmt.Errorf("unknown universe %q (available: %v)", u, symbols.List())
	}
	return symbols.Stocks(syms), nil
}

func outputTable(st *store.Store, snap *model.ScanSnapshot, scanTime time.Duration) error {
	if len(snap.Records) == 0 {
		fmt.Println("No stocks passed the quality filters.")
		fmt.Printf("Scanned %d stocks (%d skipped) in %s\n",
			snap.TotalScanned, snap.Skipped, scanTime.Round(time.Second))
		return nil
	}

	records := st.Records(store.Query{Sort: store.SortByScore})

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Price", "Score", "Status", "Move", "Pullback", "Vol Decl", "ADR", "To Break"}),
	)

	for _, r := range records {
		table.Append([]string{
			r.Symbol,
			fmt.Sprintf("$%.2f", r.Price),
			fmt.Sprintf("%d", r.Score),
			string(r.Status),
			fmt.Sprintf("%.1f%%", r.Indicators.PriorMovePct),
			fmt.Sprintf("%.1f%%", r.Indicators.PullbackPct),
			fmt.Sprintf("%.1f%%", r.Indicators.VolumeDeclinePct),
			fmt.Sprintf("%.1f%%", r.Indicators.ADRPct),
			fmt.Sprintf("%.1f%%", r.Indicators.DistanceToBreakoutPct),
		})
	}

	table.Render()

	fmt.Printf("\nReady: %d | Forming: %d | Watching: %d\n",
		snap.Summary.Ready, snap.Summary.Forming, snap.Summary.Watching)
	fmt.Printf("Scanned %d stocks (%d skipped) in %s\n",
		snap.TotalScanned, snap.Skipped, scanTime.Round(time.Second))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}
	u := symbols.Universe(a.cfg.Scan.Universe)

	sched := scheduler.New(a.scanner, a.tracker, a.prov, u, a.cfg.Tracker.Horizons)
	if err := sched.Register(a.cfg.Schedule.ScanCron, a.cfg.Schedule.BackfillCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := web.NewServer(a.scanner, a.store, a.tracker, u)

	// Graceful shutdown on interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	fmt.Println("Backfilling forward returns for matured signals...")
	written, err := a.tracker.Backfill(ctx, a.prov, a.cfg.Tracker.Horizons)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	fmt.Printf("Done: %d measurements written.\n", written)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.tracker.Stats()
	if err != nil {
		return fmt.Errorf("computing stats: %w", err)
	}

	if stats.TotalSignals == 0 {
		fmt.Println("No signals recorded yet.")
		return nil
	}

	fmt.Printf("Signals tracked: %d\n\n", stats.TotalSignals)
	renderStats(stats)
	return nil
}

// renderStats prints the per-horizon table and the winners/losers lists
// shared by the stats and backtest commands.
func renderStats(stats *tracker.Stats) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Horizon", "Samples", "Avg Return", "Win Rate", "Avg Max Gain", "Avg Drawdown"}),
	)
	for _, h := range stats.Horizons {
		table.Append([]string{
			fmt.Sprintf("%dd", h.HorizonDays),
			fmt.Sprintf("%d", h.SampleSize),
			fmt.Sprintf("%+.2f%%", h.AvgReturnPct),
			fmt.Sprintf("%.0f%%", h.WinRatePct),
			fmt.Sprintf("%+.2f%%", h.AvgMaxGainPct),
			fmt.Sprintf("%+.2f%%", h.AvgDrawdownPct),
		})
	}
	table.Render()

	if stats.BestHoldingPeriod > 0 {
		fmt.Printf("\nBest holding period: %d days\n", stats.BestHoldingPeriod)
	}

	if len(stats.TopWinners) > 0 {
		fmt.Println("\nTop winners (5-day return):")
		for _, m := range stats.TopWinners {
			fmt.Printf("  %-6s %s  %+.1f%%\n", m.Symbol, m.SignalDate, m.ReturnPct)
		}
	}
	if len(stats.TopLosers) > 0 {
		fmt.Println("\nTop losers (5-day return):")
		for _, m := range stats.TopLosers {
			fmt.Printf("  %-6s %s  %+.1f%%\n", m.Symbol, m.SignalDate, m.ReturnPct)
		}
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := interruptContext()
	defer cancel()

	stocks, err := resolveStocks(ctx, a)
	if err != nil {
		return err
	}

	btCfg := backtest.DefaultConfig()
	btCfg.LookbackBars = backtestLookback
	btCfg.MinScore = backtestMinScore
	btCfg.Horizons = a.cfg.Tracker.Horizons
	btCfg.Workers = a.cfg.Scan.Workers

	bt := backtest.New(
		a.prov,
		indicator.NewCalculator(a.cfg.IndicatorSettings()),
		evaluator.NewEvaluator(a.cfg.ScoringSettings()),
		btCfg,
	)

	fmt.Printf("Replaying %d trading days across %d stocks (score >= %d)...\n\n",
		btCfg.LookbackBars, len(stocks), btCfg.MinScore)

	bar := newProgressBar("Backtesting", len(stocks))
	bt.SetProgressCallback(func(done, total int) {
		bar.Set(done)
	})

	signals, err := bt.Run(ctx, stocks)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	bar.Finish()
	fmt.Println()

	if err := a.tracker.ReplaceBacktest(signals); err != nil {
		return fmt.Errorf("saving backtest: %w", err)
	}

	if len(signals) == 0 {
		fmt.Println("No historical signals found in the replay window.")
		return nil
	}
	fmt.Printf("Found %d historical signals.\n\n", len(signals))

	stats, err := a.tracker.BacktestStats()
	if err != nil {
		return fmt.Errorf("computing backtest stats: %w", err)
	}
	renderStats(stats)
	return nil
}
