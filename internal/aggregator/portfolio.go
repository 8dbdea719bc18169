package aggregator

import (
	"context"
	"fmt"
	"strconv"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
)

// Portfolio is the valued holdings of one wallet.
type Portfolio struct {
	Address       string     `json:"address"`
	SolBalance    SolBalance `json:"solBalance"`
	TokenHoldings []Holding  `json:"tokenHoldings"`
	NFTHoldings   int        `json:"nftHoldings"`
	TotalValueUSD float64    `json:"totalValueUSD"`
}

// SolBalance is the native SOL part of a portfolio.
type SolBalance struct {
	Amount   float64 `json:"amount"`
	ValueUSD float64 `json:"valueUSD"`
}

// Holding is one token account of a portfolio.
type Holding struct {
	ContractAddress string  `json:"contractAddress"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Amount          string  `json:"amount"`
	Decimals        uint8   `json:"decimals"`
	PriceUSD        float64 `json:"priceUSD"`
	ValueUSD        float64 `json:"valueUSD"`
}

// Portfolio values the SOL balance and every SPL token account of address.
// Unpriced tokens are valued at 0 and unlisted tokens are reported as unknown.
func (a *Aggregator) Portfolio(ctx context.Context, address string) (*Portfolio, error) {
	lamports, err := a.chain.Balance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SOL balance: %w", err)
	}

	solPrice := fetchOne(ctx, a, a.src.SpotPrice, SOLMint)

	accounts, err := a.chain.TokenAccounts(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts: %w", err)
	}

	mints := make([]string, len(accounts))
	for i, acc := range accounts {
		mints[i] = acc.Mint
	}

	index := a.loadTokenIndex(ctx)

	prices, err := fetchAll(ctx, a, a.src.SpotPrice, mints)
	if err != nil {
		return nil, err
	}

	holdings, err := stitch.Zip1(mints, prices, func(i int, mint string, price fetcher.Outcome[float64]) Holding {
		acc := accounts[i]
		meta := index.MetaOf(mint)

		return Holding{
			ContractAddress: mint,
			Symbol:          meta.Symbol,
			Name:            meta.Name,
			Amount:          strconv.FormatFloat(acc.UIAmount, 'f', -1, 64),
			Decimals:        acc.Decimals,
			PriceUSD:        price.Value,
			ValueUSD:        acc.UIAmount * price.Value,
		}
	})
	if err != nil {
		return nil, err
	}

	sol := chain.LamportsToSOL(lamports)
	p := &Portfolio{
		Address: address,
		SolBalance: SolBalance{
			Amount:   sol,
			ValueUSD: sol * solPrice.Value,
		},
		TokenHoldings: holdings,
		NFTHoldings:   countNFTs(accounts),
	}

	p.TotalValueUSD = p.SolBalance.ValueUSD
	for _, h := range holdings {
		p.TotalValueUSD += h.ValueUSD
	}

	a.logger.Debug().
		Str("address", address).
		Int("tokens", len(holdings)).
		Int("unpriced", fetcher.CountFailed(prices)).
		Bool("sol_priced", solPrice.OK()).
		Msg("portfolio assembled")

	return p, nil
}

// countNFTs counts accounts holding exactly one unit of a zero-decimal mint.
func countNFTs(accounts []chain.TokenAccount) int {
	n := 0
	for _, acc := range accounts {
		if acc.Decimals == 0 && acc.Amount == "1" {
			n++
		}
	}
	return n
}
