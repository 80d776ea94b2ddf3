// Package server exposes the HTTP + WebSocket control surface for the bot:
// watchlist management, position and history queries, account settings,
// trading loop controls, and a live event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
	"github.com/lachlanbr/shortbot/internal/server/handler"
	"github.com/lachlanbr/shortbot/internal/server/middleware"
	"github.com/lachlanbr/shortbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// apiRateLimit bounds requests per client IP per window. The dashboard polls
// a handful of endpoints every few seconds; this is far above normal use.
const (
	apiRateLimit       = 120
	apiRateLimitWindow = time.Minute
)

// Handlers aggregates all HTTP handlers that the server needs to register.
// Trading may be nil (server mode has no loop to control); its routes then
// answer 409.
type Handlers struct {
	Health       *handler.HealthHandler
	Status       *handler.StatusHandler
	Watchlist    *handler.WatchlistHandler
	Position     *handler.PositionHandler
	Transactions *handler.TransactionHandler
	Account      *handler.AccountHandler
	Trading      *handler.TradingHandler
	Market       *handler.MarketHandler
}

// Server is the headless HTTP + WebSocket API server for the bot.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limiting, auth, logging, CORS) wired around
// it. The limiter may be nil, which disables API rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bot status.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Watchlist endpoints.
	mux.HandleFunc("GET /api/watchlist", handlers.Watchlist.ListWatchlist)
	mux.HandleFunc("POST /api/watchlist", handlers.Watchlist.AddSymbol)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", handlers.Watchlist.RemoveSymbol)

	// Position endpoint.
	mux.HandleFunc("GET /api/position", handlers.Position.GetPosition)

	// Trade history.
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListTransactions)

	// Account settings and performance.
	mux.HandleFunc("GET /api/account", handlers.Account.GetAccount)
	mux.HandleFunc("PUT /api/account/settings", handlers.Account.UpdateSettings)
	mux.HandleFunc("POST /api/account/reset", handlers.Account.ResetAccount)

	// Trading loop controls.
	mux.HandleFunc("POST /api/trading/start", handlers.Trading.StartTrading)
	mux.HandleFunc("POST /api/trading/stop", handlers.Trading.StopTrading)
	mux.HandleFunc("POST /api/trading/refresh", handlers.Trading.TriggerRefresh)

	// Market session and on-demand analysis.
	mux.HandleFunc("GET /api/market/status", handlers.Market.GetMarketStatus)
	mux.HandleFunc("GET /api/analyze/{symbol}", handlers.Market.AnalyzeSymbol)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, apiRateLimit, apiRateLimitWindow)(h)
	}
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
