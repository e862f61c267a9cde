package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flagscan/internal/store"
	"flagscan/internal/symbols"
	"flagscan/pkg/model"
)

// ResultsResponse is the filtered snapshot view the dashboard table renders.
type ResultsResponse struct {
	ScanID   string              `json:"scan_id"`
	ScanTime string              `json:"scan_time"`
	Summary  model.ScanSummary   `json:"summary"`
	Count    int                 `json:"count"`
	Records  []model.ScoreRecord `json:"records"`
}

// StatusResponse reports scan progress and snapshot freshness.
type StatusResponse struct {
	Scanning     bool   `json:"scanning"`
	LastScanID   string `json:"last_scan_id,omitempty"`
	LastScanTime string `json:"last_scan_time,omitempty"`
	TotalScanned int    `json:"total_scanned"`
	Skipped      int    `json:"skipped"`
}

// UniverseInfo contains universe details
type UniverseInfo struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// handleScan starts an async scan (POST) — browser polls /api/status
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed — use POST", http.StatusMethodNotAllowed)
		return
	}

	universe := s.universe
	if u := r.URL.Query().Get("universe"); u != "" {
		universe = symbols.Universe(u)
	}

	syms := symbols.Get(universe)
	if syms == nil {
		http.Error(w, "Unknown universe: "+string(universe), http.StatusBadRequest)
		return
	}

	// Reject instead of queue: the store owns the single-flight flag, but
	// checking here lets us answer 409 before spawning the goroutine.
	if s.store.IsScanning() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"status": "already_running"})
		return
	}

	log.Printf("[WEB] Scan starting (universe=%s, %d symbols)", universe, len(syms))
	go s.runScanAsync(symbols.Stocks(syms))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// handleResults returns the current snapshot filtered by the query params:
// status, search, min_score, sort.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := store.Query{
		Status: model.Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Sort:   store.SortKey(r.URL.Query().Get("sort")),
	}
	if v := r.URL.Query().Get("min_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.MinScore = n
		}
	}

	// One atomic read: metadata and rows must come from the same scan even if
	// a snapshot swap lands mid-request.
	snap, records := s.store.View(q)
	if snap == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ResultsResponse{Records: []model.ScoreRecord{}})
		return
	}

	resp := ResultsResponse{
		ScanID:   snap.ScanID,
		ScanTime: snap.ScanTime.Format(time.RFC3339),
		Summary:  snap.Summary,
		Count:    len(records),
		Records:  records,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleStock returns a single stock's evaluation. The snapshot copy is served
// when present; otherwise the symbol is evaluated live without touching the
// snapshot.
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/stock/")))
	if symbol == "" {
		http.Error(w, "Symbol required", http.StatusBadRequest)
		return
	}

	if snap := s.store.Current(); snap != nil {
		if rec, ok := snap.Records[symbol]; ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rec)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	rec, err := s.scanner.ScanSymbol(ctx, symbol)
	if err != nil {
		http.Error(w, "Failed to evaluate "+symbol+": "+err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// handleStatus reports whether a scan is running and the last snapshot's age
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{Scanning: s.store.IsScanning()}
	if snap := s.store.Current(); snap != nil {
		resp.LastScanID = snap.ScanID
		resp.LastScanTime = snap.ScanTime.Format(time.RFC3339)
		resp.TotalScanned = snap.TotalScanned
		resp.Skipped = snap.Skipped
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleUniverse returns available stock universes
func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	universes := make([]UniverseInfo, 0)
	for _, u := range symbols.List() {
		universes = append(universes, UniverseInfo{
			ID:    string(u),
			Count: len(symbols.Get(u)),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"universes": universes})
}

// handlePerformance returns aggregate forward-return stats plus the most
// recent signal events.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.tracker == nil {
		http.Error(w, "Signal tracking disabled", http.StatusNotFound)
		return
	}

	stats, err := s.tracker.Stats()
	if err != nil {
		log.Printf("[WEB] Stats error: %v", err)
		http.Error(w, "Failed to compute stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	signals, err := s.tracker.Signals(50)
	if err != nil {
		log.Printf("[WEB] Signals error: %v", err)
		http.Error(w, "Failed to load signals: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if signals == nil {
		signals = []model.SignalEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stats":          stats,
		"recent_signals": signals,
	})
}

// handleHistory returns a symbol's daily score history, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tracker == nil {
		http.Error(w, "Signal tracking disabled", http.StatusNotFound)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/history/")))
	if symbol == "" {
		http.Error(w, "Symbol required", http.StatusBadRequest)
		return
	}

	days := 60
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	points, err := s.tracker.ScoreHistory(symbol, days)
	if err != nil {
		log.Printf("[WEB] History error: %v", err)
		http.Error(w, "Failed to load history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []model.ScorePoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol":  symbol,
		"history": points,
	})
}

// handleTrending lists symbols whose score rose over the comparison window.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tracker == nil {
		http.Error(w, "Signal tracking disabled", http.StatusNotFound)
		return
	}

	minIncrease, days := 10, 5
	if v := r.URL.Query().Get("min_increase"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minIncrease = n
		}
	}
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	trending, err := s.tracker.Trending(minIncrease, days)
	if err != nil {
		log.Printf("[WEB] Trending error: %v", err)
		http.Error(w, "Failed to load trending: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if trending == nil {
		trending = []model.TrendingStock{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"trending": trending})
}

// handleBacktest returns the stored historical replay's aggregate stats.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tracker == nil {
		http.Error(w, "Signal tracking disabled", http.StatusNotFound)
		return
	}

	stats, err := s.tracker.BacktestStats()
	if err != nil {
		log.Printf("[WEB] Backtest stats error: %v", err)
		http.Error(w, "Failed to compute backtest stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleHealth is a liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
