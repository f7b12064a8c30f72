package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/market-gateway/internal/market"
	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/ratelimit"
)

// Markets is the aggregation surface served over HTTP.
type Markets interface {
	RankTopN(ctx context.Context, n int) ([]model.RankedCoin, error)
	PricesFor(ctx context.Context, symbols []string) ([]model.PriceQuote, error)
	Today() market.Window
	HistoryJSON(ctx context.Context, symbol string, window market.Window) (json.RawMessage, error)
	Candlesticks(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error)
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// HealthCheck is one component reported by /health. A failing critical
// check makes the gateway unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Ping     func(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	TrustForwardedFor bool             // Identify clients by X-Forwarded-For
	General           ratelimit.Policy // Applied to every request
	Hot               ratelimit.Policy // Applied to /api routes after General
	HealthTimeout     time.Duration    // Bound on all health checks together (default: 5s)
}

// Server serves the gateway's HTTP surface.
type Server struct {
	cfg     Config
	markets Markets
	limiter *ratelimit.Limiter
	checks  []HealthCheck
	logger  *slog.Logger

	handler http.Handler
	srv     *http.Server
}

// NewServer builds the routes and middleware chain.
func NewServer(cfg Config, markets Markets, limiter *ratelimit.Limiter, checks []HealthCheck, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		markets: markets,
		limiter: limiter,
		checks:  checks,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/top-10-volume", s.admit(cfg.Hot, s.handleTopVolume))
	mux.Handle("GET /api/coins/prices", s.admit(cfg.Hot, s.handlePrices))
	mux.Handle("GET /api/coin/history", s.admit(cfg.Hot, s.handleHistory))
	mux.Handle("GET /api/coin/candlestick", s.admit(cfg.Hot, s.handleCandlestick))
	mux.Handle("GET /api/search-coins", s.admit(cfg.Hot, s.handleSearch))
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRequestLog(s.withCORS(s.admit(cfg.General, mux.ServeHTTP)))
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting http server", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
