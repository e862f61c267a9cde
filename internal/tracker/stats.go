package tracker

// HorizonStats aggregates measurements at one holding period.
type HorizonStats struct {
	HorizonDays    int     `json:"horizon_days"`
	SampleSize     int     `json:"sample_size"`
	AvgReturnPct   float64 `json:"avg_return_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	AvgMaxGainPct  float64 `json:"avg_max_gain_pct"`
	AvgDrawdownPct float64 `json:"avg_drawdown_pct"`
}

// Mover is a single signal's outcome used in the winners/losers lists.
type Mover struct {
	Symbol     string  `json:"symbol"`
	SignalDate string  `json:"signal_date"`
	ReturnPct  float64 `json:"return_pct"`
}

// Stats is the aggregate view over all tracked signals. Derived on demand,
// never persisted.
type Stats struct {
	TotalSignals      int            `json:"total_signals"`
	Horizons          []HorizonStats `json:"horizons"`
	BestHoldingPeriod int            `json:"best_holding_period"` // 0 when no data
	TopWinners        []Mover        `json:"top_winners"`
	TopLosers         []Mover        `json:"top_losers"`
}

// Stats recomputes the aggregate projections over all performance records.
// Winners/losers are ranked by 5-day return, matching the dashboard view.
func (t *Tracker) Stats() (*Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsOver("signals", "performance")
}

// statsOver aggregates one signal/performance table pair. The table names are
// package constants, never caller input. Caller holds the lock.
func (t *Tracker) statsOver(signalsTable, perfTable string) (*Stats, error) {
	stats := &Stats{}

	if err := t.db.QueryRow(`SELECT COUNT(*) FROM ` + signalsTable).Scan(&stats.TotalSignals); err != nil {
		return nil, err
	}
	if stats.TotalSignals == 0 {
		return stats, nil
	}

	rows, err := t.db.Query(`SELECT horizon_days,
			COUNT(*),
			AVG(return_pct),
			AVG(CASE WHEN return_pct > 0 THEN 1.0 ELSE 0.0 END) * 100,
			AVG(max_gain_pct),
			AVG(max_drawdown_pct)
		FROM ` + perfTable + ` GROUP BY horizon_days ORDER BY horizon_days`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bestReturn := 0.0
	for rows.Next() {
		var h HorizonStats
		if err := rows.Scan(&h.HorizonDays, &h.SampleSize, &h.AvgReturnPct, &h.WinRatePct, &h.AvgMaxGainPct, &h.AvgDrawdownPct); err != nil {
			return nil, err
		}
		stats.Horizons = append(stats.Horizons, h)

		if stats.BestHoldingPeriod == 0 || h.AvgReturnPct > bestReturn {
			stats.BestHoldingPeriod = h.HorizonDays
			bestReturn = h.AvgReturnPct
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.TopWinners, err = t.movers(signalsTable, perfTable, "DESC")
	if err != nil {
		return nil, err
	}
	stats.TopLosers, err = t.movers(signalsTable, perfTable, "ASC")
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// movers lists the five best or worst 5-day outcomes. Caller holds the lock.
func (t *Tracker) movers(signalsTable, perfTable, order string) ([]Mover, error) {
	query := `SELECT s.symbol, s.signal_date, p.return_pct
		FROM ` + signalsTable + ` s JOIN ` + perfTable + ` p ON s.id = p.signal_id
		WHERE p.horizon_days = 5
		ORDER BY p.return_pct ` + order + ` LIMIT 5`

	rows, err := t.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movers []Mover
	for rows.Next() {
		var m Mover
		if err := rows.Scan(&m.Symbol, &m.SignalDate, &m.ReturnPct); err != nil {
			return nil, err
		}
		movers = append(movers, m)
	}
	return movers, rows.Err()
}
