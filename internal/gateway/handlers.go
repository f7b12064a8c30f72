package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// handleTopVolume handles GET /api/top-10-volume[?n=].
func (s *Server) handleTopVolume(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeError(w, r, invalidArgument("top volume", "n must be a positive integer"))
			return
		}
		n = v
	}

	coins, err := s.markets.RankTopN(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, coins)
}

// handlePrices handles GET /api/coins/prices?symbols=A,B.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		s.writeError(w, r, invalidArgument("prices", "symbols parameter is required"))
		return
	}

	quotes, err := s.markets.PricesFor(r.Context(), strings.Split(raw, ","))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quotes)
}

// handleHistory handles GET /api/coin/history?symbol=. The cached series is
// written as stored so repeated requests return identical bytes.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, r, invalidArgument("history", "symbol parameter is required"))
		return
	}

	raw, err := s.markets.HistoryJSON(r.Context(), symbol, s.markets.Today())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"history":`))
	w.Write(raw)
	w.Write([]byte("}\n"))
}

// handleCandlestick handles GET /api/coin/candlestick?symbol&start&end&interval.
func (s *Server) handleCandlestick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, rawStart, rawEnd, interval := q.Get("symbol"), q.Get("start"), q.Get("end"), q.Get("interval")
	if symbol == "" || rawStart == "" || rawEnd == "" || interval == "" {
		s.writeError(w, r, invalidArgument("candlestick", "symbol, start, end, and interval parameters are required"))
		return
	}

	start, err := parseTime(rawStart)
	if err != nil {
		s.writeError(w, r, invalidArgument("candlestick", "start: "+err.Error()))
		return
	}
	end, err := parseTime(rawEnd)
	if err != nil {
		s.writeError(w, r, invalidArgument("candlestick", "end: "+err.Error()))
		return
	}

	candles, err := s.markets.Candlesticks(r.Context(), symbol, start, end, interval)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"candlestick": candles})
}

// handleSearch handles GET /api/search-coins?query=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, r, invalidArgument("search", "query parameter is required"))
		return
	}

	results, err := s.markets.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// handleHealth handles GET /health. All checks run concurrently under one
// deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthTimeout)
	defer cancel()

	errs := make([]error, len(s.checks))
	var g errgroup.Group
	for i, check := range s.checks {
		g.Go(func() error {
			errs[i] = check.Ping(ctx)
			return nil
		})
	}
	g.Wait()

	health := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(s.checks)),
	}
	for i, check := range s.checks {
		if errs[i] == nil {
			health.Components[check.Name] = componentStatus{Status: "up"}
			continue
		}

		health.Components[check.Name] = componentStatus{Status: "down", Error: errs[i].Error()}
		switch {
		case check.Critical:
			health.Status = "unhealthy"
		case health.Status == "healthy":
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

// parseTime accepts RFC3339 timestamps, calendar dates or epoch milliseconds.
func parseTime(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errInvalidTime
	}
	return t, nil
}
