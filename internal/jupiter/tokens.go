package jupiter

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
	"solanafetcher/internal/token"
)

// TokenListSource fetches the full Jupiter token list.
// The list is not keyed: callers fetch it once with any identifier
// and index it locally.
type TokenListSource struct {
	client *resty.Client
}

// NewTokenListSource creates a token list source reading from listURL
func NewTokenListSource(listURL string, timeout time.Duration) *TokenListSource {
	return &TokenListSource{
		client: fetcher.NewHTTPClient(listURL, timeout),
	}
}

func (s *TokenListSource) Name() string           { return "jupiter.tokens" }
func (s *TokenListSource) API() ratelimit.API     { return ratelimit.APIJupiter }
func (s *TokenListSource) Default() []token.Token { return []token.Token{} }

// Fetch downloads the token list. The identifier is ignored.
func (s *TokenListSource) Fetch(ctx context.Context, _ string) ([]token.Token, error) {
	var tokens []token.Token

	if err := fetcher.GetJSON(ctx, s.client, "", nil, &tokens); err != nil {
		return nil, fmt.Errorf("failed to fetch token list: %w", err)
	}

	if tokens == nil {
		return nil, fetcher.NewValidationError("token list response is empty")
	}

	return tokens, nil
}
