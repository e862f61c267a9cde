package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flagscan/internal/evaluator"
	"flagscan/internal/indicator"
	"flagscan/internal/scanner"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Scan      ScanConfig      `yaml:"scan"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"` // snapshot and database location
}

// ProviderConfig holds data provider settings. Keyed providers are optional;
// Yahoo needs no key and always anchors the fallback chain.
type ProviderConfig struct {
	FinnhubKey       string `yaml:"finnhub_key"`
	FinnhubRateLimit int    `yaml:"finnhub_rate_limit"`

	AlphaVantageKey       string `yaml:"alphavantage_key"`
	AlphaVantageRateLimit int    `yaml:"alphavantage_rate_limit"`

	YahooRateLimit int `yaml:"yahoo_rate_limit"` // requests per minute
}

// ScanConfig holds scan lifecycle settings and hard filters
type ScanConfig struct {
	Universe        string        `yaml:"universe"`
	Workers         int           `yaml:"workers"`
	Timeout         time.Duration `yaml:"timeout"`
	LookbackDays    int           `yaml:"lookback_days"`
	MinPrice        float64       `yaml:"min_price"`
	MinADRPct       float64       `yaml:"min_adr_pct"`
	MinDollarVolume float64       `yaml:"min_dollar_volume"`
	SignalScore     int           `yaml:"signal_score"`
	ChartBars       int           `yaml:"chart_bars"`
}

// IndicatorConfig holds derivation windows
type IndicatorConfig struct {
	MinBars            int `yaml:"min_bars"`
	SlopeWindow        int `yaml:"slope_window"`
	SwingWindow        int `yaml:"swing_window"`
	MinSwingSeparation int `yaml:"min_swing_separation"`
	VolumeWindow       int `yaml:"volume_window"`
}

// ScoringConfig holds the evaluator thresholds
type ScoringConfig struct {
	MinPriorMovePct     float64 `yaml:"min_prior_move_pct"`
	SoftPullbackPct     float64 `yaml:"soft_pullback_pct"`
	MaxPullbackPct      float64 `yaml:"max_pullback_pct"`
	MinVolumeDeclinePct float64 `yaml:"min_volume_decline_pct"`
	MinADRPct           float64 `yaml:"min_adr_pct"`
	NearBreakoutPct     float64 `yaml:"near_breakout_pct"`
	FarBreakoutPct      float64 `yaml:"far_breakout_pct"`
	ReadyScore          int     `yaml:"ready_score"`
	FormingScore        int     `yaml:"forming_score"`
}

// TrackerConfig holds performance tracking settings
type TrackerConfig struct {
	DBPath   string `yaml:"db_path"`
	Horizons []int  `yaml:"horizons"` // trading days
}

// ScheduleConfig holds cron expressions for background jobs
type ScheduleConfig struct {
	ScanCron     string `yaml:"scan_cron"`     // empty disables scheduled scans
	BackfillCron string `yaml:"backfill_cron"` // empty disables scheduled backfill
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	scanDefaults := scanner.DefaultConfig()
	indDefaults := indicator.DefaultConfig()
	evalDefaults := evaluator.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:    8080,
			DataDir: ".flagscan",
		},
		Provider: ProviderConfig{
			FinnhubRateLimit:      60,
			AlphaVantageRateLimit: 5,
			YahooRateLimit:        30,
		},
		Scan: ScanConfig{
			Universe:        "momentum",
			Workers:         scanDefaults.Workers,
			Timeout:         scanDefaults.Timeout,
			LookbackDays:    scanDefaults.LookbackDays,
			MinPrice:        scanDefaults.MinPrice,
			MinADRPct:       scanDefaults.MinADRPct,
			MinDollarVolume: scanDefaults.MinDollarVolume,
			SignalScore:     scanDefaults.SignalScore,
			ChartBars:       scanDefaults.ChartBars,
		},
		Indicator: IndicatorConfig{
			MinBars:            indDefaults.MinBars,
			SlopeWindow:        indDefaults.SlopeWindow,
			SwingWindow:        indDefaults.SwingWindow,
			MinSwingSeparation: indDefaults.MinSwingSeparation,
			VolumeWindow:       indDefaults.VolumeWindow,
		},
		Scoring: ScoringConfig{
			MinPriorMovePct:     evalDefaults.MinPriorMovePct,
			SoftPullbackPct:     evalDefaults.SoftPullbackPct,
			MaxPullbackPct:      evalDefaults.MaxPullbackPct,
			MinVolumeDeclinePct: evalDefaults.MinVolumeDeclinePct,
			MinADRPct:           evalDefaults.MinADRPct,
			NearBreakoutPct:     evalDefaults.NearBreakoutPct,
			FarBreakoutPct:      evalDefaults.FarBreakoutPct,
			ReadyScore:          evalDefaults.ReadyScore,
			FormingScore:        evalDefaults.FormingScore,
		},
		Tracker: TrackerConfig{
			DBPath:   ".flagscan/signals.db",
			Horizons: []int{1, 5, 20, 30},
		},
		Schedule: ScheduleConfig{
			ScanCron:     "",
			BackfillCron: "0 30 17 * * MON-FRI", // after the close, with seconds field
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Environment wins over both defaults and the file
	if dir := os.Getenv("FLAGSCAN_DATA_DIR"); dir != "" {
		cfg.Server.DataDir = dir
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.Provider.FinnhubKey = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		cfg.Provider.AlphaVantageKey = key
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if c.Scan.LookbackDays < c.Indicator.MinBars {
		return fmt.Errorf("scan.lookback_days (%d) must cover indicator.min_bars (%d)",
			c.Scan.LookbackDays, c.Indicator.MinBars)
	}
	if c.Scoring.FormingScore >= c.Scoring.ReadyScore {
		return fmt.Errorf("scoring.forming_score must be below scoring.ready_score")
	}
	if c.Scoring.SoftPullbackPct >= c.Scoring.MaxPullbackPct {
		return fmt.Errorf("scoring.soft_pullback_pct must be below scoring.max_pullback_pct")
	}
	for _, h := range c.Tracker.Horizons {
		if h < 1 {
			return fmt.Errorf("tracker.horizons must be positive trading-day counts")
		}
	}
	return nil
}

// IndicatorConfig converts to the calculator's config type.
func (c *Config) IndicatorSettings() indicator.Config {
	return indicator.Config{
		MinBars:            c.Indicator.MinBars,
		SlopeWindow:        c.Indicator.SlopeWindow,
		SwingWindow:        c.Indicator.SwingWindow,
		MinSwingSeparation: c.Indicator.MinSwingSeparation,
		VolumeWindow:       c.Indicator.VolumeWindow,
	}
}

// ScoringSettings converts to the evaluator's config type, keeping the point
// weights at their standard allocation.
func (c *Config) ScoringSettings() evaluator.Config {
	cfg := evaluator.DefaultConfig()
	cfg.MinPriorMovePct = c.Scoring.MinPriorMovePct
	cfg.SoftPullbackPct = c.Scoring.SoftPullbackPct
	cfg.MaxPullbackPct = c.Scoring.MaxPullbackPct
	cfg.MinVolumeDeclinePct = c.Scoring.MinVolumeDeclinePct
	cfg.MinADRPct = c.Scoring.MinADRPct
	cfg.NearBreakoutPct = c.Scoring.NearBreakoutPct
	cfg.FarBreakoutPct = c.Scoring.FarBreakoutPct
	cfg.ReadyScore = c.Scoring.ReadyScore
	cfg.FormingScore = c.Scoring.FormingScore
	return cfg
}

// ScanSettings converts to the scanner's config type.
func (c *Config) ScanSettings() scanner.Config {
	return scanner.Config{
		Workers:         c.Scan.Workers,
		Timeout:         c.Scan.Timeout,
		LookbackDays:    c.Scan.LookbackDays,
		MinPrice:        c.Scan.MinPrice,
		MinADRPct:       c.Scan.MinADRPct,
		MinDollarVolume: c.Scan.MinDollarVolume,
		SignalScore:     c.Scan.SignalScore,
		ChartBars:       c.Scan.ChartBars,
	}
}
