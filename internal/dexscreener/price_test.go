package dexscreener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solanafetcher/internal/fetcher"
)

const bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestPriceSource_Fetch_MostTradedPair(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bonkMint {
			t.Errorf("path = %q, want /%s", r.URL.Path, bonkMint)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"schemaVersion": "1.0.0",
			"pairs": [
				{"chainId": "solana", "dexId": "raydium", "priceUsd": "0.000020", "volume": {"h24": 1000}},
				{"chainId": "solana", "dexId": "orca", "priceUsd": "0.000025", "volume": {"h24": 90000}},
				{"chainId": "solana", "dexId": "meteora", "priceUsd": "0.000030", "volume": {"h24": 500}}
			]
		}`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	src := NewPriceSource(server.URL, time.Second)

	price, err := src.Fetch(context.Background(), bonkMint)
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if price != 0.000025 {
		t.Errorf("Fetch() = %v, want 0.000025", price)
	}
}

func TestPriceSource_Fetch_NoPairs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"schemaVersion": "1.0.0", "pairs": null}`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	price, err := NewPriceSource(server.URL, time.Second).Fetch(context.Background(), bonkMint)
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if price != 0 {
		t.Errorf("Fetch() = %v, want 0", price)
	}
}

func TestPriceSource_Fetch_InvalidPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs": [{"priceUsd": "n/a", "volume": {"h24": 1}}]}`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := NewPriceSource(server.URL, time.Second).Fetch(context.Background(), bonkMint)

	var fe *fetcher.FetchError
	if !errors.As(err, &fe) || fe.Type != fetcher.ErrorTypeValidation {
		t.Errorf("Fetch() error = %v, want validation error", err)
	}
}

func TestPriceSource_Fetch_RateLimited(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := NewPriceSource(server.URL, time.Second).Fetch(context.Background(), bonkMint)

	var fe *fetcher.FetchError
	if !errors.As(err, &fe) || fe.Type != fetcher.ErrorTypeRateLimit {
		t.Errorf("Fetch() error = %v, want rate limit error", err)
	}
}

func TestPriceSource_Describe(t *testing.T) {
	src := NewPriceSource("http://localhost", time.Second)

	if src.Name() != "dexscreener.price" {
		t.Errorf("Name() = %q", src.Name())
	}
	if src.Default() != 0 {
		t.Errorf("Default() = %v, want 0", src.Default())
	}
	var _ fetcher.Source[float64] = src
}
