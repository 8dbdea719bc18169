package aggregator

import (
	"context"
	"fmt"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
)

const (
	// SlotsPerDay approximates how many slots the network produces per day.
	SlotsPerDay = 432000

	DefaultProfitDays  = 7
	DefaultWalletLimit = 100
)

// ProfitableWallets ranks the largest wallets by SOL balance change.
type ProfitableWallets struct {
	Period  string         `json:"period"`
	Wallets []WalletProfit `json:"wallets"`
}

// WalletProfit is the balance change of one wallet over the period.
type WalletProfit struct {
	Address      string  `json:"address"`
	Profit       float64 `json:"profit"`
	Transactions int     `json:"transactions"`
	StartBalance float64 `json:"startBalance"`
	EndBalance   float64 `json:"endBalance"`
}

// ProfitableWallets compares the balance of the largest wallets days ago
// with their current balance and ranks them by profit in SOL.
func (a *Aggregator) ProfitableWallets(ctx context.Context, days, limit int) (*ProfitableWallets, error) {
	slot, err := a.chain.Slot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current slot: %w", err)
	}

	startSlot := uint64(0)
	if span := uint64(max(days, 0)) * SlotsPerDay; span < slot {
		startSlot = slot - span
	}

	largest, err := a.chain.LargestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch largest accounts: %w", err)
	}
	largest = page(largest, 0, limit)

	addresses := make([]string, len(largest))
	for i, acc := range largest {
		addresses[i] = acc.Address
	}

	starts, err := fetchAll(ctx, a, a.balanceAtSlotSource(startSlot), addresses)
	if err != nil {
		return nil, err
	}
	ends, err := fetchAll(ctx, a, a.balanceSource(), addresses)
	if err != nil {
		return nil, err
	}
	counts, err := fetchAll(ctx, a, a.signatureCountSource(startSlot), addresses)
	if err != nil {
		return nil, err
	}

	wallets, err := stitch.Zip3(addresses, starts, ends, counts,
		func(_ int, address string, start, end fetcher.Outcome[uint64], count fetcher.Outcome[int]) WalletProfit {
			return WalletProfit{
				Address:      address,
				Profit:       chain.LamportDeltaToSOL(start.Value, end.Value),
				Transactions: count.Value,
				StartBalance: chain.LamportsToSOL(start.Value),
				EndBalance:   chain.LamportsToSOL(end.Value),
			}
		})
	if err != nil {
		return nil, err
	}

	rankDesc(wallets, func(w WalletProfit) float64 { return w.Profit })

	a.logger.Debug().
		Int("wallets", len(wallets)).
		Uint64("start_slot", startSlot).
		Msg("profitable wallets assembled")

	return &ProfitableWallets{
		Period:  fmt.Sprintf("%d days", days),
		Wallets: wallets,
	}, nil
}
