package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"flagscan/internal/provider"
	"flagscan/pkg/model"
)

// Tracker persists the append-only signal log and forward-return
// measurements to a SQLite database.
type Tracker struct {
	db *sql.DB
	mu sync.Mutex
}

// DefaultHorizons are the forward-return horizons in trading days.
var DefaultHorizons = []int{1, 5, 20, 30}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Tracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so API reads don't block backfill writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	t := &Tracker{db: db}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return t, nil
}

func (t *Tracker) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol        TEXT NOT NULL,
			signal_date   TEXT NOT NULL,
			signal_price  REAL NOT NULL,
			score         INTEGER NOT NULL,
			prior_move_pct REAL,
			distance_pct  REAL,
			created_at    TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(symbol, signal_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals(signal_date)`,

		`CREATE TABLE IF NOT EXISTS performance (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id        INTEGER NOT NULL,
			horizon_days     INTEGER NOT NULL,
			measured_at      TEXT NOT NULL,
			measured_price   REAL NOT NULL,
			return_pct       REAL NOT NULL,
			max_gain_pct     REAL,
			max_drawdown_pct REAL,
			FOREIGN KEY (signal_id) REFERENCES signals(id),
			UNIQUE(signal_id, horizon_days)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_performance_signal ON performance(signal_id)`,

		`CREATE TABLE IF NOT EXISTS score_history (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol             TEXT NOT NULL,
			date               TEXT NOT NULL,
			score              INTEGER NOT NULL,
			price              REAL,
			prior_move_pct     REAL,
			pullback_pct       REAL,
			volume_decline_pct REAL,
			distance_pct       REAL,
			UNIQUE(symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_history_symbol ON score_history(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_score_history_date ON score_history(date)`,

		`CREATE TABLE IF NOT EXISTS backtest_signals (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol             TEXT NOT NULL,
			signal_date        TEXT NOT NULL,
			signal_price       REAL NOT NULL,
			score              INTEGER NOT NULL,
			prior_move_pct     REAL,
			pullback_pct       REAL,
			volume_decline_pct REAL,
			distance_pct       REAL,
			UNIQUE(symbol, signal_date)
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_performance (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id        INTEGER NOT NULL,
			horizon_days     INTEGER NOT NULL,
			exit_date        TEXT NOT NULL,
			exit_price       REAL NOT NULL,
			return_pct       REAL NOT NULL,
			max_gain_pct     REAL,
			max_drawdown_pct REAL,
			FOREIGN KEY (signal_id) REFERENCES backtest_signals(id),
			UNIQUE(signal_id, horizon_days)
		)`,
	}

	for _, s := range stmts {
		if _, err := t.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordSignal appends a signal event. One event per (symbol, date): a
// re-scan on the same day is a no-op. Returns true if a new row was written.
func (t *Tracker) RecordSignal(ev model.SignalEvent) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.Exec(`INSERT OR IGNORE INTO signals
		(symbol, signal_date, signal_price, score, prior_move_pct, distance_pct)
		VALUES (?,?,?,?,?,?)`,
		ev.Symbol, ev.TriggeredAt.Format("2006-01-02"), ev.TriggerPrice,
		ev.TriggerScore, ev.PriorMovePct, ev.DistancePct,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Backfill fills in forward returns for every signal whose horizon has
// matured and has no measurement yet. Idempotent: matured measurements are
// never duplicated or recomputed. Returns the number of rows written.
func (t *Tracker) Backfill(ctx context.Context, p provider.Provider, horizons []int) (int, error) {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}

	signals, err := t.pendingSignals(horizons)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, pending := range signals {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		// Enough calendar span to cover the longest missing horizon plus
		// weekends and holidays.
		span := daysSince(pending.triggered) + 7
		candles, err := p.GetDailyCandles(ctx, pending.symbol, span)
		if err != nil {
			log.Printf("[TRACKER] %s: fetch failed, skipping: %v", pending.symbol, err)
			continue
		}

		forward := barsAfter(candles, pending.triggered)

		for _, horizon := range pending.missing {
			if len(forward) < horizon {
				continue // not matured yet
			}

			measured := forward[horizon-1]
			returnPct := (measured.Close - pending.price) / pending.price * 100

			high, low := measured.Close, measured.Close
			for _, c := range forward[:horizon] {
				if c.High > high {
					high = c.High
				}
				if c.Low < low {
					low = c.Low
				}
			}
			maxGain := (high - pending.price) / pending.price * 100
			maxDrawdown := (low - pending.price) / pending.price * 100

			t.mu.Lock()
			_, err := t.db.Exec(`INSERT OR IGNORE INTO performance
				(signal_id, horizon_days, measured_at, measured_price, return_pct, max_gain_pct, max_drawdown_pct)
				VALUES (?,?,?,?,?,?,?)`,
				pending.id, horizon, measured.Time.Format("2006-01-02"),
				measured.Close, returnPct, maxGain, maxDrawdown,
			)
			t.mu.Unlock()
			if err != nil {
				return written, err
			}
			written++
		}
	}

	return written, nil
}

type pendingSignal struct {
	id        int64
	symbol    string
	triggered time.Time
	price     float64
	missing   []int
}

// pendingSignals returns signals missing at least one horizon measurement.
func (t *Tracker) pendingSignals(horizons []int) ([]pendingSignal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`SELECT id, symbol, signal_date, signal_price FROM signals ORDER BY signal_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pendingSignal
	for rows.Next() {
		var p pendingSignal
		var date string
		if err := rows.Scan(&p.id, &p.symbol, &date, &p.price); err != nil {
			return nil, err
		}
		p.triggered, err = time.Parse("2006-01-02", date)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		measured := make(map[int]bool)
		rows, err := t.db.Query(`SELECT horizon_days FROM performance WHERE signal_id = ?`, result[i].id)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var h int
			if err := rows.Scan(&h); err != nil {
				rows.Close()
				return nil, err
			}
			measured[h] = true
		}
		rows.Close()

		for _, h := range horizons {
			if !measured[h] {
				result[i].missing = append(result[i].missing, h)
			}
		}
	}

	// Keep only signals with work to do
	pending := result[:0]
	for _, p := range result {
		if len(p.missing) > 0 {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// Signals returns the most recent signal events, newest first.
func (t *Tracker) Signals(limit int) ([]model.SignalEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`SELECT id, symbol, signal_date, signal_price, score, prior_move_pct, distance_pct
		FROM signals ORDER BY signal_date DESC, symbol LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SignalEvent
	for rows.Next() {
		var ev model.SignalEvent
		var date string
		if err := rows.Scan(&ev.ID, &ev.Symbol, &date, &ev.TriggerPrice, &ev.TriggerScore, &ev.PriorMovePct, &ev.DistancePct); err != nil {
			return nil, err
		}
		ev.TriggeredAt, _ = time.Parse("2006-01-02", date)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Performance returns the measurements recorded for a signal.
func (t *Tracker) Performance(signalID int64) ([]model.PerformanceRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`SELECT signal_id, horizon_days, measured_at, measured_price, return_pct, max_gain_pct, max_drawdown_pct
		FROM performance WHERE signal_id = ? ORDER BY horizon_days`, signalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.PerformanceRecord
	for rows.Next() {
		var rec model.PerformanceRecord
		var date string
		if err := rows.Scan(&rec.SignalID, &rec.HorizonDays, &date, &rec.MeasuredPrice, &rec.ReturnPct, &rec.MaxGainPct, &rec.MaxDrawdownPct); err != nil {
			return nil, err
		}
		rec.MeasuredAt, _ = time.Parse("2006-01-02", date)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// barsAfter returns the candles strictly after the given date, oldest first.
func barsAfter(candles []model.Candle, after time.Time) []model.Candle {
	cutoff := after.Format("2006-01-02")
	for i, c := range candles {
		if c.Time.Format("2006-01-02") > cutoff {
			return candles[i:]
		}
	}
	return nil
}

func daysSince(t time.Time) int {
	d := int(time.Since(t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
