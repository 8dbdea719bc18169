package aggregator

import (
	"context"
	"fmt"
	"strconv"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
	"solanafetcher/internal/token"
)

// DefaultTopHoldersLimit is the number of holders listed when no limit is given.
const DefaultTopHoldersLimit = 10

// TopHoldersQuery selects the token by ticker or by mint. Ticker wins when
// both are set.
type TopHoldersQuery struct {
	Ticker string
	Mint   string
	Limit  int
}

// TopHolders lists the largest holders of a token.
type TopHolders struct {
	Mint        string   `json:"mint"`
	Holders     []Holder `json:"holders"`
	TotalSupply string   `json:"totalSupply"`
}

// Holder is one wallet in a top holders list.
type Holder struct {
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	Percentage string `json:"percentage"`
}

// TokenHolders lists the largest token accounts of a mint with their owners.
type TokenHolders struct {
	Mint    string        `json:"mint"`
	Total   int           `json:"total"`
	Holders []TokenHolder `json:"holders"`
}

// TokenHolder is one token account of a mint.
type TokenHolder struct {
	Address  string  `json:"address"`
	Amount   float64 `json:"amount"`
	UIAmount float64 `json:"uiAmount"`
	Owner    string  `json:"owner"`
}

// TopHolders returns the largest holders of a token. Percentages are shares
// of the listed holders' combined balance.
func (a *Aggregator) TopHolders(ctx context.Context, q TopHoldersQuery) (*TopHolders, error) {
	mint := q.Mint
	if q.Ticker != "" {
		resolved, err := a.resolveTicker(ctx, q.Ticker)
		if err != nil {
			return nil, err
		}
		mint = resolved
	}
	if mint == "" {
		return nil, fmt.Errorf("%w: no ticker or mint given", ErrTokenNotFound)
	}

	balances, err := a.chain.LargestTokenAccounts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch largest token accounts: %w", err)
	}
	balances = page(balances, 0, q.Limit)

	accounts := make([]string, len(balances))
	for i, b := range balances {
		accounts[i] = b.Address
	}

	owners, err := fetchAll(ctx, a, a.ownerSource(), accounts)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, b := range balances {
		total += b.UIAmount
	}

	holders, err := stitch.Zip1(accounts, owners, func(i int, _ string, owner fetcher.Outcome[chain.TokenOwner]) Holder {
		amount := balances[i].UIAmount
		share := 0.0
		if total > 0 {
			share = amount / total * 100
		}

		return Holder{
			Address:    owner.Value.Owner,
			Amount:     strconv.FormatFloat(amount, 'f', -1, 64),
			Percentage: formatPercent(share),
		}
	})
	if err != nil {
		return nil, err
	}

	return &TopHolders{
		Mint:        mint,
		Holders:     holders,
		TotalSupply: strconv.FormatFloat(total, 'f', -1, 64),
	}, nil
}

// resolveTicker picks, among the listed tokens with the given symbol, the one
// with the highest market cap. The first listed token wins ties.
func (a *Aggregator) resolveTicker(ctx context.Context, ticker string) (string, error) {
	list := fetchOne(ctx, a, a.src.TokenList, "all")

	matches := token.FindBySymbol(list.Value, ticker)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no token with ticker %s", ErrTokenNotFound, ticker)
	}
	if len(matches) == 1 {
		return matches[0].Address, nil
	}

	addresses := make([]string, len(matches))
	for i, t := range matches {
		addresses[i] = t.Address
	}

	prices, err := fetchAll(ctx, a, a.src.Price, addresses)
	if err != nil {
		return "", err
	}
	supplies, err := fetchAll(ctx, a, a.mintSource(), addresses)
	if err != nil {
		return "", err
	}

	caps, err := stitch.Zip2(addresses, prices, supplies,
		func(_ int, _ string, price fetcher.Outcome[float64], supply fetcher.Outcome[chain.MintInfo]) float64 {
			return price.Value * supply.Value.Supply
		})
	if err != nil {
		return "", err
	}

	best := 0
	for i := range caps {
		if caps[i] > caps[best] {
			best = i
		}
	}

	a.logger.Debug().
		Str("ticker", ticker).
		Int("candidates", len(matches)).
		Str("mint", addresses[best]).
		Float64("market_cap", caps[best]).
		Msg("ticker resolved")

	return addresses[best], nil
}

// TokenHolders returns the largest token accounts of mint with their owners,
// sorted by amount, then sliced by offset and limit.
func (a *Aggregator) TokenHolders(ctx context.Context, mint string, limit, offset int) (*TokenHolders, error) {
	balances, err := a.chain.LargestTokenAccounts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch largest token accounts: %w", err)
	}

	accounts := make([]string, len(balances))
	for i, b := range balances {
		accounts[i] = b.Address
	}

	owners, err := fetchAll(ctx, a, a.ownerSource(), accounts)
	if err != nil {
		return nil, err
	}

	holders, err := stitch.Zip1(accounts, owners, func(i int, address string, owner fetcher.Outcome[chain.TokenOwner]) TokenHolder {
		raw, err := chain.ScaleAmount(balances[i].Amount, 0)
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("mint", mint).
				Str("account", address).
				Msg("unreadable raw amount, ranking account last")
			raw = 0
		}
		return TokenHolder{
			Address:  address,
			Amount:   raw,
			UIAmount: balances[i].UIAmount,
			Owner:    owner.Value.Owner,
		}
	})
	if err != nil {
		return nil, err
	}

	rankDesc(holders, func(h TokenHolder) float64 { return h.Amount })

	return &TokenHolders{
		Mint:    mint,
		Total:   len(balances),
		Holders: page(holders, offset, limit),
	}, nil
}
