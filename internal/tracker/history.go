package tracker

import (
	"time"

	"flagscan/pkg/model"
)

// RecordScores upserts one score-history row per scored symbol for the scan's
// date. Unlike signal events, a same-day re-scan refreshes the rows: the
// history tracks the latest view of each trading day, not the first.
func (t *Tracker) RecordScores(scanTime time.Time, records []model.ScoreRecord) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO score_history
		(symbol, date, score, price, prior_move_pct, pullback_pct, volume_decline_pct, distance_pct)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	date := scanTime.Format("2006-01-02")
	written := 0
	for _, rec := range records {
		if _, err := stmt.Exec(rec.Symbol, date, rec.Score, rec.Price,
			rec.Indicators.PriorMovePct, rec.Indicators.PullbackPct,
			rec.Indicators.VolumeDeclinePct, rec.Indicators.DistanceToBreakoutPct); err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// ScoreHistory returns up to days of a symbol's most recent score rows,
// oldest first.
func (t *Tracker) ScoreHistory(symbol string, days int) ([]model.ScorePoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`SELECT date, score, price, prior_move_pct, pullback_pct, volume_decline_pct, distance_pct
		FROM score_history WHERE symbol = ? ORDER BY date DESC LIMIT ?`, symbol, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.ScorePoint
	for rows.Next() {
		var p model.ScorePoint
		if err := rows.Scan(&p.Date, &p.Score, &p.Price, &p.PriorMovePct, &p.PullbackPct, &p.VolumeDeclinePct, &p.DistancePct); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Chronological order for charting
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// Trending lists symbols whose score rose by at least minIncrease between the
// latest history row and the row days-1 rows earlier, largest rise first.
func (t *Tracker) Trending(minIncrease, days int) ([]model.TrendingStock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`WITH recent AS (
			SELECT symbol, score,
				ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY date DESC) AS rn
			FROM score_history
		)
		SELECT a.symbol, a.score, b.score, a.score - b.score
		FROM recent a JOIN recent b ON a.symbol = b.symbol
		WHERE a.rn = 1 AND b.rn = ? AND a.score - b.score >= ?
		ORDER BY a.score - b.score DESC, a.symbol
		LIMIT 20`, days, minIncrease)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trending []model.TrendingStock
	for rows.Next() {
		var ts model.TrendingStock
		if err := rows.Scan(&ts.Symbol, &ts.CurrentScore, &ts.PastScore, &ts.ScoreChange); err != nil {
			return nil, err
		}
		trending = append(trending, ts)
	}
	return trending, rows.Err()
}
