package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"iptv-check/work/checker"
	"iptv-check/work/database"
	"iptv-check/work/logger"
	"iptv-check/work/metrics"
	"iptv-check/work/middleware"
	"iptv-check/work/utils"
)

// StatusResponse is the live view of a run served on /status.
type StatusResponse struct {
	checker.Status
	Uptime      string `json:"uptime"`
	MemoryUsage string `json:"memoryUsage"`
	Goroutines  int    `json:"goroutines"`
}

// RunResponse is one entry of /api/history.
type RunResponse struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
	Total      int    `json:"total"`
	Skipped    int    `json:"skipped"`
	Online     int    `json:"online"`
}

type statusServer struct {
	checker *checker.Checker
	metrics *metrics.Recorder
	db      *database.DB
	started time.Time
}

// startStatusServer serves the status routes on addr in the background.
func startStatusServer(addr string, s *statusServer) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newStatusRouter(s),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("[STATUS] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[STATUS] Server failed: %v", err)
		}
	}()
	return srv
}

func newStatusRouter(s *statusServer) *mux.Router {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", corsMiddleware(middleware.Compress(s.handleStatus))).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/history", corsMiddleware(middleware.Compress(s.handleHistory))).Methods("GET", "OPTIONS")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	return router
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := StatusResponse{
		Status:      s.checker.Status(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		MemoryUsage: utils.FormatBytes(int64(m.Alloc)),
		Goroutines:  runtime.NumGoroutine(),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("[STATUS] Failed to encode status: %v", err)
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *statusServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.db == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "run history is not available"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a positive number"})
			return
		}
		limit = n
	}

	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		logger.Error("[STATUS] Failed to load history: %v", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		rr := RunResponse{
			ID:        run.ID,
			Source:    utils.ObfuscateURL(run.Source),
			Mode:      run.Mode,
			Status:    run.Status,
			StartedAt: run.StartedAt.Format(time.RFC3339),
			Total:     run.Total,
			Skipped:   run.Skipped,
			Online:    run.Online,
		}
		if !run.FinishedAt.IsZero() {
			rr.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
		out = append(out, rr)
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		logger.Error("[STATUS] Failed to encode history: %v", err)
	}
}
