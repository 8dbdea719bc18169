package aggregator

import (
	"context"
	"fmt"
	"time"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
	"solanafetcher/internal/token"
)

// GainersQuery holds the token gainers filters.
type GainersQuery struct {
	Hours          int
	Limit          int
	OnlyMemecoins  bool
	MaxAge         int
	MinVolume      float64
	MinPriceChange float64
	MinMarketCap   float64
}

// DefaultGainersQuery returns the filters used when a request sets none.
func DefaultGainersQuery() GainersQuery {
	return GainersQuery{
		Hours:          24,
		Limit:          10,
		OnlyMemecoins:  false,
		MaxAge:         30,
		MinVolume:      1000,
		MinPriceChange: 10,
		MinMarketCap:   10000,
	}
}

// GainerFilters echoes the filters applied to a gainers response.
type GainerFilters struct {
	OnlyMemecoins  bool    `json:"onlyMemecoins"`
	MaxAge         int     `json:"maxAge"`
	MinVolume      float64 `json:"minVolume"`
	MinPriceChange float64 `json:"minPriceChange"`
	MinMarketCap   float64 `json:"minMarketCap"`
}

// Gainers is the token gainers response.
type Gainers struct {
	Period  string        `json:"period"`
	Filters GainerFilters `json:"filters"`
	Tokens  []Gainer      `json:"tokens"`
}

// Gainer is one token with its price movement over the period.
type Gainer struct {
	Mint          string  `json:"mint"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	PriceChange   float64 `json:"priceChange"`
	CurrentPrice  float64 `json:"currentPrice"`
	PreviousPrice float64 `json:"previousPrice"`
	Volume        float64 `json:"volume"`
	MarketCap     float64 `json:"marketCap"`
	IsMemecoin    bool    `json:"isMemecoin"`
	Age           int     `json:"age"`
}

type gainerCandidate struct {
	mint string
	meta token.Meta
	meme bool
	age  int
}

// TokenGainers ranks recently created tokens by price change over the last
// q.Hours hours. Candidates are filtered by memecoin flag and age before any
// price is fetched; price, volume and market cap filters apply afterwards,
// then the result is sorted by price change and cut to q.Limit.
func (a *Aggregator) TokenGainers(ctx context.Context, q GainersQuery) (*Gainers, error) {
	now := a.now()

	mints, err := a.chain.MintAccounts(ctx, a.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list token mints: %w", err)
	}

	metas, err := fetchAll(ctx, a, a.src.Meta, mints)
	if err != nil {
		return nil, err
	}
	ages, err := fetchAll(ctx, a, a.ageSource(now), mints)
	if err != nil {
		return nil, err
	}

	candidates, err := stitch.Zip2(mints, metas, ages,
		func(_ int, mint string, meta fetcher.Outcome[token.Meta], age fetcher.Outcome[int]) gainerCandidate {
			return gainerCandidate{
				mint: mint,
				meta: meta.Value,
				meme: token.IsMemecoin(meta.Value),
				age:  age.Value,
			}
		})
	if err != nil {
		return nil, err
	}

	selected := make([]gainerCandidate, 0, len(candidates))
	for _, c := range candidates {
		if (!q.OnlyMemecoins || c.meme) && c.age <= q.MaxAge {
			selected = append(selected, c)
		}
	}

	ids := make([]string, len(selected))
	for i, c := range selected {
		ids[i] = c.mint
	}

	start := now.Add(-time.Duration(q.Hours) * time.Hour).Unix()

	current, err := fetchAll(ctx, a, a.src.Price, ids)
	if err != nil {
		return nil, err
	}
	previous, err := fetchAll(ctx, a, a.src.History.At(start), ids)
	if err != nil {
		return nil, err
	}
	volumes, err := fetchAll(ctx, a, a.src.Volume, ids)
	if err != nil {
		return nil, err
	}
	supplies, err := fetchAll(ctx, a, a.mintSource(), ids)
	if err != nil {
		return nil, err
	}

	gainers, err := stitch.Zip4(ids, current, previous, volumes, supplies,
		func(i int, mint string, cur, prev, vol fetcher.Outcome[float64], supply fetcher.Outcome[chain.MintInfo]) Gainer {
			c := selected[i]
			return Gainer{
				Mint:          mint,
				Symbol:        c.meta.Symbol,
				Name:          c.meta.Name,
				PriceChange:   priceChange(cur.Value, prev.Value),
				CurrentPrice:  cur.Value,
				PreviousPrice: prev.Value,
				Volume:        vol.Value,
				MarketCap:     cur.Value * supply.Value.Supply,
				IsMemecoin:    c.meme,
				Age:           c.age,
			}
		})
	if err != nil {
		return nil, err
	}

	filtered := make([]Gainer, 0, len(gainers))
	for _, g := range gainers {
		if g.Volume >= q.MinVolume && g.PriceChange >= q.MinPriceChange && g.MarketCap >= q.MinMarketCap {
			filtered = append(filtered, g)
		}
	}

	rankDesc(filtered, func(g Gainer) float64 { return g.PriceChange })

	a.logger.Debug().
		Int("mints", len(mints)).
		Int("candidates", len(selected)).
		Int("matched", len(filtered)).
		Msg("token gainers assembled")

	return &Gainers{
		Period: fmt.Sprintf("%d hours", q.Hours),
		Filters: GainerFilters{
			OnlyMemecoins:  q.OnlyMemecoins,
			MaxAge:         q.MaxAge,
			MinVolume:      q.MinVolume,
			MinPriceChange: q.MinPriceChange,
			MinMarketCap:   q.MinMarketCap,
		},
		Tokens: page(filtered, 0, q.Limit),
	}, nil
}

// priceChange is the percentage change from prev to cur. A token without a
// previous price has no measurable change and reports 0.
func priceChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
