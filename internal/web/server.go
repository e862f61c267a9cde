package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"time"

	"flagscan/internal/scanner"
	"flagscan/internal/store"
	"flagscan/internal/symbols"
	"flagscan/internal/tracker"
	"flagscan/pkg/model"
)

//go:embed static
var staticFiles embed.FS

// Server exposes the scan results and performance stats over HTTP.
type Server struct {
	scanner  *scanner.Scanner
	store    *store.Store
	tracker  *tracker.Tracker
	universe symbols.Universe
	srv      *http.Server
}

// NewServer creates a new web server. tracker may be nil when signal tracking
// is disabled.
func NewServer(sc *scanner.Scanner, st *store.Store, tr *tracker.Tracker, universe symbols.Universe) *Server {
	return &Server{
		scanner:  sc,
		store:    st,
		tracker:  tr,
		universe: universe,
	}
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/stock/", s.handleStock)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/universe", s.handleUniverse)
	mux.HandleFunc("/api/performance", s.handlePerformance)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/trending", s.handleTrending)
	mux.HandleFunc("/api/backtest", s.handleBacktest)
	mux.HandleFunc("/api/health", s.handleHealth)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static file system: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting dashboard at http://localhost:%d", port)
	log.Printf("Press Ctrl+C to stop")

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// runScanAsync runs the scan in background. The store enforces that only one
// scan runs at a time, so a second call fails fast inside Run.
func (s *Server) runScanAsync(stocks []model.Stock) {
	ctx := context.Background()
	if _, err := s.scanner.Run(ctx, stocks); err != nil {
		log.Printf("[WEB] Scan error: %v", err)
	}
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
