package aggregator

import (
	"context"
	"math"
	"time"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
)

// unknownOwner is reported for token accounts whose owner could not be read.
const unknownOwner = "Unknown"

// unknownAge makes mints of unknown age fail any age filter.
const unknownAge = math.MaxInt32

func (a *Aggregator) ownerSource() fetcher.Source[chain.TokenOwner] {
	return fetcher.NewSource("rpc.owner", ratelimit.APIRPC, chain.TokenOwner{Owner: unknownOwner}, a.chain.TokenAccountOwner)
}

func (a *Aggregator) mintSource() fetcher.Source[chain.MintInfo] {
	return fetcher.NewSource("rpc.mint", ratelimit.APIRPC, chain.MintInfo{}, a.chain.Mint)
}

func (a *Aggregator) transactionSource() fetcher.Source[*chain.Transaction] {
	return fetcher.NewSource[*chain.Transaction]("rpc.transaction", ratelimit.APIRPC, nil, a.chain.Transaction)
}

func (a *Aggregator) balanceSource() fetcher.Source[uint64] {
	return fetcher.NewSource("rpc.balance", ratelimit.APIRPC, uint64(0), a.chain.Balance)
}

func (a *Aggregator) balanceAtSlotSource(minSlot uint64) fetcher.Source[uint64] {
	return fetcher.NewSource("rpc.balance_at_slot", ratelimit.APIRPC, uint64(0),
		func(ctx context.Context, address string) (uint64, error) {
			return a.chain.BalanceAtSlot(ctx, address, minSlot)
		})
}

func (a *Aggregator) signatureCountSource(minSlot uint64) fetcher.Source[int] {
	return fetcher.NewSource("rpc.signature_count", ratelimit.APIRPC, 0,
		func(ctx context.Context, address string) (int, error) {
			return a.chain.SignatureCount(ctx, address, minSlot, a.cfg.SignatureLimit)
		})
}

// ageSource estimates the age of a mint in whole days from the oldest block
// time in its most recent signature page. A mint without any dated
// signature is reported as 0 days old.
func (a *Aggregator) ageSource(now time.Time) fetcher.Source[int] {
	return fetcher.NewSource("rpc.mint_age", ratelimit.APIRPC, unknownAge,
		func(ctx context.Context, mint string) (int, error) {
			sigs, err := a.chain.Signatures(ctx, mint, a.cfg.AgeSampleLimit)
			if err != nil {
				return unknownAge, err
			}

			oldest := int64(0)
			for _, s := range sigs {
				if s.BlockTime != nil && (oldest == 0 || *s.BlockTime < oldest) {
					oldest = *s.BlockTime
				}
			}
			if oldest == 0 {
				return 0, nil
			}

			days := int(now.Sub(time.Unix(oldest, 0)) / (24 * time.Hour))
			return max(days, 0), nil
		})
}
