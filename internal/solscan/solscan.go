package solscan

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
	"solanafetcher/internal/token"
)

// MetaResponse represents the Solscan token meta response
type MetaResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	Icon     string `json:"icon"`
}

// MarketResponse represents the Solscan AMM market response
type MarketResponse struct {
	Volume24h float64 `json:"volume24h"`
}

// Client holds the HTTP client shared by the Solscan sources
type Client struct {
	client *resty.Client
}

// NewClient creates a new Solscan client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client: fetcher.NewHTTPClient(baseURL, timeout),
	}
}

// MetaSource returns a source for token symbol and name by mint.
func (c *Client) MetaSource() fetcher.Source[token.Meta] {
	return fetcher.NewSource("solscan.meta", ratelimit.APISolscan, token.UnknownMeta, c.tokenMeta)
}

// VolumeSource returns a source for the 24h AMM volume of a mint in USD.
func (c *Client) VolumeSource() fetcher.Source[float64] {
	return fetcher.NewSource("solscan.volume", ratelimit.APISolscan, 0.0, c.volume24h)
}

func (c *Client) tokenMeta(ctx context.Context, mint string) (token.Meta, error) {
	var result MetaResponse

	if err := fetcher.GetJSON(ctx, c.client, "/token/meta", map[string]string{"mint": mint}, &result); err != nil {
		return token.UnknownMeta, fmt.Errorf("failed to fetch token meta for %s: %w", mint, err)
	}

	return token.Meta{Symbol: result.Symbol, Name: result.Name}.OrUnknown(), nil
}

func (c *Client) volume24h(ctx context.Context, mint string) (float64, error) {
	var result MarketResponse

	if err := fetcher.GetJSON(ctx, c.client, "/amm/market", map[string]string{"mint": mint}, &result); err != nil {
		return 0, fmt.Errorf("failed to fetch market volume for %s: %w", mint, err)
	}

	return result.Volume24h, nil
}
