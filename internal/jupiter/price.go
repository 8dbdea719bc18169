package jupiter

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
)

// PriceResponse represents the Jupiter price API response
type PriceResponse struct {
	Data map[string]PriceData `json:"data"`
}

// PriceData is the quoted price for one mint
type PriceData struct {
	ID         string  `json:"id"`
	MintSymbol string  `json:"mintSymbol"`
	Price      float64 `json:"price"`
}

// HistoryResponse represents the Jupiter historical price response
type HistoryResponse struct {
	Data struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// PriceSource fetches current USD prices from Jupiter
type PriceSource struct {
	client *resty.Client
}

// NewPriceSource creates a new Jupiter price source. baseURL is the
// versioned API root, e.g. https://price.jup.ag/v4.
func NewPriceSource(baseURL string, timeout time.Duration) *PriceSource {
	return &PriceSource{
		client: fetcher.NewHTTPClient(baseURL, timeout),
	}
}

func (s *PriceSource) Name() string       { return "jupiter.price" }
func (s *PriceSource) API() ratelimit.API { return ratelimit.APIJupiter }
func (s *PriceSource) Default() float64   { return 0 }

// Fetch returns the current price of mint, or 0 when Jupiter has no quote.
func (s *PriceSource) Fetch(ctx context.Context, mint string) (float64, error) {
	var result PriceResponse

	if err := fetcher.GetJSON(ctx, s.client, "/price", map[string]string{"ids": mint}, &result); err != nil {
		return 0, fmt.Errorf("failed to fetch jupiter price for %s: %w", mint, err)
	}

	return result.Data[mint].Price, nil
}

// HistorySource fetches historical USD prices from Jupiter
type HistorySource struct {
	client *resty.Client
}

// NewHistorySource creates a new Jupiter historical price source
func NewHistorySource(baseURL string, timeout time.Duration) *HistorySource {
	return &HistorySource{
		client: fetcher.NewHTTPClient(baseURL, timeout),
	}
}

// At returns a source answering the price of a mint at the given unix time.
func (s *HistorySource) At(unix int64) fetcher.Source[float64] {
	ts := fmt.Sprintf("%d", unix)

	return fetcher.NewSource("jupiter.history", ratelimit.APIJupiter, 0.0,
		func(ctx context.Context, mint string) (float64, error) {
			var result HistoryResponse

			query := map[string]string{"id": mint, "timestamp": ts}
			if err := fetcher.GetJSON(ctx, s.client, "/historical", query, &result); err != nil {
				return 0, fmt.Errorf("failed to fetch historical price for %s: %w", mint, err)
			}

			return result.Data.Price, nil
		})
}
