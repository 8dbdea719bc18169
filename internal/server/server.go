// Package server exposes the aggregator endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solanafetcher/internal/aggregator"
)

const (
	apiPrefix = "/api/tools/solana/"

	// RequestIDHeader carries the id assigned to every request.
	RequestIDHeader = "X-Request-ID"

	// DefaultRequestTimeout bounds a single endpoint call.
	DefaultRequestTimeout = 2 * time.Minute
)

// Service is the set of endpoint operations the server exposes.
type Service interface {
	Portfolio(ctx context.Context, address string) (*aggregator.Portfolio, error)
	Tokens(ctx context.Context, address string) (*aggregator.WalletTokens, error)
	MintTokens(ctx context.Context, address, mint string) (*aggregator.MintTokens, error)
	TopHolders(ctx context.Context, q aggregator.TopHoldersQuery) (*aggregator.TopHolders, error)
	TokenHolders(ctx context.Context, mint string, limit, offset int) (*aggregator.TokenHolders, error)
	TokenGainers(ctx context.Context, q aggregator.GainersQuery) (*aggregator.Gainers, error)
	Transactions(ctx context.Context, address string, limit int) (*aggregator.TransactionHistory, error)
	ProfitableWallets(ctx context.Context, days, limit int) (*aggregator.ProfitableWallets, error)
	TopWallets(ctx context.Context, limit, offset int) (*aggregator.TopWallets, error)
}

// Server serves the endpoints.
type Server struct {
	svc            Service
	requestTimeout time.Duration
	logger         zerolog.Logger

	handler    http.Handler
	httpServer *http.Server
}

// New creates a Server listening on addr once started.
func New(addr string, svc Service, requestTimeout time.Duration, logger zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		svc:            svc,
		requestTimeout: requestTimeout,
		logger:         logger.With().Str("component", "server").Logger(),
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET "+apiPrefix+"portfolio",
		s.endpoint("portfolio", failure(http.StatusInternalServerError, "Failed to fetch portfolio information"), s.portfolio))
	mux.Handle("GET "+apiPrefix+"tokens",
		s.endpoint("tokens", failure(http.StatusInternalServerError, "Failed to fetch token information"), s.tokens))
	mux.Handle("GET "+apiPrefix+"top-holders",
		s.endpoint("top-holders", failure(http.StatusInternalServerError, "Failed to fetch top holders"), s.topHolders))
	mux.Handle("GET "+apiPrefix+"token-holders",
		s.endpoint("token-holders", failure(http.StatusInternalServerError, "Failed to fetch token holders information"), s.tokenHolders))
	mux.Handle("GET "+apiPrefix+"token-gainers",
		s.endpoint("token-gainers", failure(http.StatusInternalServerError, "Failed to fetch token gainers information"), s.tokenGainers))
	mux.Handle("GET "+apiPrefix+"transactions",
		s.endpoint("transactions", failure(http.StatusServiceUnavailable, "Failed to fetch transaction signatures from Solana network"), s.transactions))
	mux.Handle("GET "+apiPrefix+"profitable-wallets",
		s.endpoint("profitable-wallets", failure(http.StatusInternalServerError, "Failed to fetch profitable wallets information"), s.profitableWallets))
	mux.Handle("GET "+apiPrefix+"top-wallets",
		s.endpoint("top-wallets", failure(http.StatusInternalServerError, "Failed to fetch top wallets information"), s.topWallets))

	return mux
}

// apiError is an error with the status and message sent to the client.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func failure(status int, message string) *apiError {
	return &apiError{status: status, message: message}
}

func badRequest(message string) *apiError {
	return failure(http.StatusBadRequest, message)
}

type handlerFunc func(ctx context.Context, q url.Values) (any, error)

// endpoint wraps fn with a request id, a deadline, logging and JSON encoding.
// Errors that are not an *apiError are answered with fallback.
func (s *Server) endpoint(name string, fallback *apiError, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set(RequestIDHeader, requestID)

		logger := s.logger.With().
			Str("request_id", requestID).
			Str("endpoint", name).
			Logger()

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()

		start := time.Now()
		result, err := fn(ctx, r.URL.Query())
		if err != nil {
			var ae *apiError
			if !errors.As(err, &ae) {
				logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("request failed")
				ae = fallback
			} else {
				logger.Debug().Int("status", ae.status).Str("reason", ae.message).Msg("request rejected")
			}
			writeError(w, ae.status, ae.message)
			return
		}

		writeJSON(w, http.StatusOK, result)
		logger.Info().Dur("duration", time.Since(start)).Msg("request served")
	})
}

func (s *Server) portfolio(ctx context.Context, q url.Values) (any, error) {
	address, err := requireAddress(q, "address", "Address parameter is required", "Invalid Solana address")
	if err != nil {
		return nil, err
	}
	return s.svc.Portfolio(ctx, address)
}

// tokens lists every token of a wallet, or only its accounts of one mint
// when mint is given.
func (s *Server) tokens(ctx context.Context, q url.Values) (any, error) {
	address, err := requireAddress(q, "address", "Address parameter is required", "Invalid Solana address")
	if err != nil {
		return nil, err
	}

	mint := q.Get("mint")
	if mint == "" {
		return s.svc.Tokens(ctx, address)
	}
	if err := validateAddress(mint, "Invalid token mint address"); err != nil {
		return nil, err
	}

	result, err := s.svc.MintTokens(ctx, address, mint)
	if errors.Is(err, aggregator.ErrMintUnavailable) {
		return nil, badRequest("Invalid token mint address")
	}
	return result, err
}

func (s *Server) topHolders(ctx context.Context, q url.Values) (any, error) {
	ticker := q.Get("ticker")
	mint := q.Get("mint")
	if ticker == "" && mint == "" {
		return nil, badRequest("Either ticker or mint address is required")
	}
	if ticker == "" {
		if err := validateAddress(mint, "Invalid token mint address"); err != nil {
			return nil, err
		}
	}

	limit, err := intParam(q, "limit", aggregator.DefaultTopHoldersLimit, 1)
	if err != nil {
		return nil, err
	}

	result, err := s.svc.TopHolders(ctx, aggregator.TopHoldersQuery{Ticker: ticker, Mint: mint, Limit: limit})
	if errors.Is(err, aggregator.ErrTokenNotFound) {
		return nil, failure(http.StatusNotFound, fmt.Sprintf("No token found with ticker %s", ticker))
	}
	return result, err
}

func (s *Server) tokenHolders(ctx context.Context, q url.Values) (any, error) {
	mint, err := requireAddress(q, "mint", "Mint address parameter is required", "Invalid token mint address")
	if err != nil {
		return nil, err
	}

	limit, err := intParam(q, "limit", 100, 1)
	if err != nil {
		return nil, err
	}
	offset, err := intParam(q, "offset", 0, 0)
	if err != nil {
		return nil, err
	}

	return s.svc.TokenHolders(ctx, mint, limit, offset)
}

func (s *Server) tokenGainers(ctx context.Context, q url.Values) (any, error) {
	query := aggregator.DefaultGainersQuery()

	var err error
	if query.Hours, err = intParam(q, "hours", query.Hours, 1); err != nil {
		return nil, err
	}
	if query.Limit, err = intParam(q, "limit", query.Limit, 1); err != nil {
		return nil, err
	}
	if query.MaxAge, err = intParam(q, "maxAge", query.MaxAge, 0); err != nil {
		return nil, err
	}
	if query.MinVolume, err = floatParam(q, "minVolume", query.MinVolume); err != nil {
		return nil, err
	}
	if query.MinPriceChange, err = floatParam(q, "minPriceChange", query.MinPriceChange); err != nil {
		return nil, err
	}
	if query.MinMarketCap, err = floatParam(q, "minMarketCap", query.MinMarketCap); err != nil {
		return nil, err
	}
	query.OnlyMemecoins = q.Get("onlyMemecoins") == "true"

	return s.svc.TokenGainers(ctx, query)
}

func (s *Server) transactions(ctx context.Context, q url.Values) (any, error) {
	address, err := requireAddress(q, "address", "Address parameter is required", "Invalid Solana address format")
	if err != nil {
		return nil, err
	}

	// Out of range limits are clamped by the aggregator.
	limit, err := intParam(q, "limit", aggregator.DefaultTransactionLimit, math.MinInt)
	if err != nil {
		return nil, err
	}

	return s.svc.Transactions(ctx, address, limit)
}

func (s *Server) profitableWallets(ctx context.Context, q url.Values) (any, error) {
	days, err := intParam(q, "days", aggregator.DefaultProfitDays, 1)
	if err != nil {
		return nil, err
	}
	limit, err := intParam(q, "limit", aggregator.DefaultWalletLimit, 1)
	if err != nil {
		return nil, err
	}

	return s.svc.ProfitableWallets(ctx, days, limit)
}

func (s *Server) topWallets(ctx context.Context, q url.Values) (any, error) {
	limit, err := intParam(q, "limit", aggregator.DefaultTopWalletsLimit, 1)
	if err != nil {
		return nil, err
	}
	offset, err := intParam(q, "offset", 0, 0)
	if err != nil {
		return nil, err
	}

	return s.svc.TopWallets(ctx, limit, offset)
}

func requireAddress(q url.Values, key, missing, invalid string) (string, error) {
	v := q.Get(key)
	if v == "" {
		return "", badRequest(missing)
	}
	if err := validateAddress(v, invalid); err != nil {
		return "", err
	}
	return v, nil
}

func validateAddress(v, invalid string) error {
	if _, err := solana.PublicKeyFromBase58(v); err != nil {
		return badRequest(invalid)
	}
	return nil
}

// intParam reads an integer query parameter, falling back to def when it is
// absent. Values that do not parse or fall below lowest are rejected.
func intParam(q url.Values, key string, def, lowest int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("Invalid %s parameter", key))
	}
	if n < lowest {
		return 0, badRequest(fmt.Sprintf("%s must be at least %d", key, lowest))
	}
	return n, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("Invalid %s parameter", key))
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
