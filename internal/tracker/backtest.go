package tracker

import (
	"flagscan/pkg/model"
)

// ReplaceBacktest stores a historical replay, wiping any previous one. A
// backtest is a full re-derivation over the same window, so stale rows from
// earlier runs are never kept alongside new ones.
func (t *Tracker) ReplaceBacktest(signals []model.BacktestSignal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM backtest_performance`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM backtest_signals`); err != nil {
		return err
	}

	for _, sig := range signals {
		res, err := tx.Exec(`INSERT INTO backtest_signals
			(symbol, signal_date, signal_price, score, prior_move_pct, pullback_pct, volume_decline_pct, distance_pct)
			VALUES (?,?,?,?,?,?,?,?)`,
			sig.Symbol, sig.SignalDate, sig.SignalPrice, sig.Score,
			sig.PriorMovePct, sig.PullbackPct, sig.VolumeDeclinePct, sig.DistancePct,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, m := range sig.Measurements {
			if _, err := tx.Exec(`INSERT INTO backtest_performance
				(signal_id, horizon_days, exit_date, exit_price, return_pct, max_gain_pct, max_drawdown_pct)
				VALUES (?,?,?,?,?,?,?)`,
				id, m.HorizonDays, m.ExitDate, m.ExitPrice, m.ReturnPct, m.MaxGainPct, m.MaxDrawdownPct,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// BacktestStats aggregates the stored replay the same way Stats aggregates
// live signals.
func (t *Tracker) BacktestStats() (*Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsOver("backtest_signals", "backtest_performance")
}
