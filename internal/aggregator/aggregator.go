// Package aggregator assembles endpoint results from the node and the price
// and metadata APIs. Every endpoint follows the same shape: list identifiers
// with one call, fetch per-identifier data through the batch scheduler,
// stitch the outcomes positionally, then filter, sort and slice.
package aggregator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"solanafetcher/internal/batch"
	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
	"solanafetcher/internal/token"
)

// SOLMint is the wrapped SOL mint, used to price native SOL.
const SOLMint = "So11111111111111111111111111111111111111112"

// ErrTokenNotFound is returned when a ticker matches no listed token.
var ErrTokenNotFound = errors.New("token not found")

// Chain is the node access the aggregator needs.
type Chain interface {
	Balance(ctx context.Context, address string) (uint64, error)
	BalanceAtSlot(ctx context.Context, address string, minSlot uint64) (uint64, error)
	TokenAccounts(ctx context.Context, owner string) ([]chain.TokenAccount, error)
	Signatures(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error)
	SignatureCount(ctx context.Context, address string, minSlot uint64, limit int) (int, error)
	Transaction(ctx context.Context, signature string) (*chain.Transaction, error)
	LargestTokenAccounts(ctx context.Context, mint string) ([]chain.TokenBalance, error)
	TokenAccountOwner(ctx context.Context, tokenAccount string) (chain.TokenOwner, error)
	LargestAccounts(ctx context.Context) ([]chain.Account, error)
	MintAccounts(ctx context.Context, limit int) ([]string, error)
	Mint(ctx context.Context, mint string) (chain.MintInfo, error)
	Slot(ctx context.Context) (uint64, error)
}

// HistoricalPrices returns a price source pinned to a point in time.
type HistoricalPrices interface {
	At(unix int64) fetcher.Source[float64]
}

// Sources are the HTTP data sources used by the endpoints.
type Sources struct {
	// SpotPrice prices portfolio holdings (DexScreener).
	SpotPrice fetcher.Source[float64]
	// TokenList is the full token list, fetched once per request (Jupiter).
	TokenList fetcher.Source[[]token.Token]
	// Price is the current price used for gainers and ticker resolution (Jupiter).
	Price fetcher.Source[float64]
	// History is the historical price used for gainers (Jupiter).
	History HistoricalPrices
	// Meta is per-mint symbol and name (Solscan).
	Meta fetcher.Source[token.Meta]
	// Volume is the 24h AMM volume of a mint (Solscan).
	Volume fetcher.Source[float64]
}

// Config holds the tunables of the fetch engine and the endpoints.
type Config struct {
	ChunkSize  int
	ChunkDelay time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Limiter throttles each upstream API. Nil leaves them unlimited.
	Limiter *ratelimit.Limiter
	// Metrics receives fetch counts. Nil records to the global provider.
	Metrics *fetcher.Metrics

	// CandidateLimit bounds how many mints the gainers endpoint inspects.
	CandidateLimit int
	// AgeSampleLimit is the signature page size used to estimate a mint's age.
	AgeSampleLimit int
	// SignatureLimit bounds the per-wallet transaction count.
	SignatureLimit int
}

// DefaultConfig returns the configuration the endpoints run with by default.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      batch.DefaultChunkSize,
		ChunkDelay:     batch.DefaultChunkDelay,
		MaxRetries:     fetcher.DefaultMaxRetries,
		RetryDelay:     fetcher.DefaultRetryDelay,
		CandidateLimit: 100,
		AgeSampleLimit: 1000,
		SignatureLimit: 1000,
	}
}

// Aggregator serves the endpoint operations.
type Aggregator struct {
	cfg    Config
	chain  Chain
	src    Sources
	sched  *batch.Scheduler
	policy fetcher.Policy
	logger zerolog.Logger

	now func() time.Time
}

// New creates an Aggregator.
func New(cfg Config, c Chain, src Sources, logger zerolog.Logger) *Aggregator {
	logger = logger.With().Str("component", "aggregator").Logger()

	return &Aggregator{
		cfg:   cfg,
		chain: c,
		src:   src,
		sched: batch.New(cfg.ChunkSize, cfg.ChunkDelay, logger),
		policy: fetcher.Policy{
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Limiter:    cfg.Limiter,
			Metrics:    cfg.Metrics,
			Logger:     logger,
		},
		logger: logger,
		now:    time.Now,
	}
}

// fetchOne fetches a single identifier with the retry policy.
func fetchOne[T any](ctx context.Context, a *Aggregator, src fetcher.Source[T], id string) fetcher.Outcome[T] {
	return fetcher.Fetch(ctx, a.policy, src, id)
}

// fetchAll fetches every identifier through the batch scheduler.
func fetchAll[T any](ctx context.Context, a *Aggregator, src fetcher.Source[T], ids []string) ([]fetcher.Outcome[T], error) {
	out, err := batch.FetchAll(ctx, a.sched, a.policy, src, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return out, nil
}

// loadTokenIndex fetches the token list once and indexes it by mint.
// A failed list degrades to an empty index.
func (a *Aggregator) loadTokenIndex(ctx context.Context) token.Index {
	list := fetchOne(ctx, a, a.src.TokenList, "all")
	return token.NewIndex(list.Value)
}

// rankDesc sorts records by key, highest first. Records with equal keys keep
// their input order.
func rankDesc[T any](records []T, key func(T) float64) {
	slices.SortStableFunc(records, func(x, y T) int {
		return cmp.Compare(key(y), key(x))
	})
}

// page returns records[offset:offset+limit], clamped to the slice bounds.
// A negative limit means no limit.
func page[T any](records []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []T{}
	}
	records = records[offset:]
	if limit >= 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// formatPercent renders a percentage with two decimals, e.g. "12.34%".
func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
