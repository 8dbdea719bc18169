package aggregator

import (
	"context"
	"fmt"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
)

// DefaultTopWalletsLimit is the page size used when no limit is given.
const DefaultTopWalletsLimit = 100

// TopWallets is a page of the largest wallets by SOL balance.
type TopWallets struct {
	Total    int         `json:"total"`
	Accounts []TopWallet `json:"accounts"`
}

// TopWallet is one wallet with its balance in SOL and its recent
// transaction count, capped at the configured signature limit.
type TopWallet struct {
	Address          string  `json:"address"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
}

// TopWallets ranks the largest accounts by balance and returns the page at
// offset. Transaction counts are fetched only for the wallets on the page.
func (a *Aggregator) TopWallets(ctx context.Context, limit, offset int) (*TopWallets, error) {
	largest, err := a.chain.LargestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch largest accounts: %w", err)
	}

	ranked := make([]chain.Account, len(largest))
	copy(ranked, largest)
	rankDesc(ranked, func(acc chain.Account) float64 { return float64(acc.Lamports) })
	ranked = page(ranked, offset, limit)

	addresses := make([]string, len(ranked))
	for i, acc := range ranked {
		addresses[i] = acc.Address
	}

	counts, err := fetchAll(ctx, a, a.signatureCountSource(0), addresses)
	if err != nil {
		return nil, err
	}

	wallets, err := stitch.Zip1(addresses, counts, func(i int, address string, count fetcher.Outcome[int]) TopWallet {
		return TopWallet{
			Address:          address,
			Balance:          chain.LamportsToSOL(ranked[i].Lamports),
			TransactionCount: count.Value,
		}
	})
	if err != nil {
		return nil, err
	}

	return &TopWallets{
		Total:    len(largest),
		Accounts: wallets,
	}, nil
}
