package dexscreener

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"resty.dev/v3"

	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
)

// PairsResponse represents the DexScreener token pairs response
type PairsResponse struct {
	Pairs []Pair `json:"pairs"`
}

// Pair is one trading pair for a token
type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	Volume      struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// PriceSource fetches USD spot prices for token mints from DexScreener
type PriceSource struct {
	client *resty.Client
}

// NewPriceSource creates a new DexScreener price source
func NewPriceSource(baseURL string, timeout time.Duration) *PriceSource {
	return &PriceSource{
		client: fetcher.NewHTTPClient(baseURL, timeout),
	}
}

// Name implements fetcher.Source
func (s *PriceSource) Name() string { return "dexscreener.price" }

// API implements fetcher.Source
func (s *PriceSource) API() ratelimit.API { return ratelimit.APIDexScreener }

// Default implements fetcher.Source; unpriced tokens are worth 0
func (s *PriceSource) Default() float64 { return 0 }

// Fetch retrieves the USD price of mint from its most traded pair.
// A token without any pair is priced at 0 without error.
func (s *PriceSource) Fetch(ctx context.Context, mint string) (float64, error) {
	var result PairsResponse

	if err := fetcher.GetJSON(ctx, s.client, "/"+url.PathEscape(mint), nil, &result); err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", mint, err)
	}

	pair, ok := mostTraded(result.Pairs)
	if !ok {
		return 0, nil
	}

	price, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil {
		return 0, fetcher.NewValidationError(fmt.Sprintf("invalid priceUsd %q for %s", pair.PriceUSD, mint))
	}

	return price, nil
}

// mostTraded returns the pair with the highest 24h volume; the first pair wins ties.
func mostTraded(pairs []Pair) (Pair, bool) {
	if len(pairs) == 0 {
		return Pair{}, false
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Volume.H24 > best.Volume.H24 {
			best = p
		}
	}
	return best, true
}
