package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
)

// ErrMintUnavailable is returned when the supply of a requested mint cannot
// be read, which usually means the address is not a token mint.
var ErrMintUnavailable = errors.New("mint unavailable")

// mintLookupFailed marks token rows whose mint could not be read.
const mintLookupFailed = "Failed to fetch mint information"

// WalletTokens lists the SPL token accounts of a wallet with their mints.
type WalletTokens struct {
	Address     string        `json:"address"`
	Tokens      []WalletToken `json:"tokens"`
	TotalTokens int           `json:"totalTokens"`
}

// WalletToken is one token account of a wallet. When the mint lookup
// degraded, Supply is empty, Decimals comes from the account and Error is set.
type WalletToken struct {
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
	Supply   string `json:"supply,omitempty"`
	Amount   string `json:"amount"`
	IsNFT    bool   `json:"isNFT"`
	Error    string `json:"error,omitempty"`
}

// MintTokens is a wallet's holdings of a single mint.
type MintTokens struct {
	Mint          string             `json:"mint"`
	Decimals      uint8              `json:"decimals"`
	Supply        string             `json:"supply"`
	TokenAccounts []MintTokenAccount `json:"tokenAccounts"`
}

// MintTokenAccount is one token account holding the mint.
type MintTokenAccount struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// Tokens lists every token account of address together with the decimals and
// raw supply of its mint. Mints are read through the batch scheduler; a mint
// that keeps failing yields a row carrying an error instead of failing the
// whole listing.
func (a *Aggregator) Tokens(ctx context.Context, address string) (*WalletTokens, error) {
	accounts, err := a.chain.TokenAccounts(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts: %w", err)
	}

	mints := make([]string, len(accounts))
	for i, acc := range accounts {
		mints[i] = acc.Mint
	}

	infos, err := fetchAll(ctx, a, a.mintSource(), mints)
	if err != nil {
		return nil, err
	}

	tokens, err := stitch.Zip1(mints, infos, func(i int, mint string, info fetcher.Outcome[chain.MintInfo]) WalletToken {
		acc := accounts[i]
		t := WalletToken{
			Mint:     mint,
			Decimals: acc.Decimals,
			Amount:   acc.Amount,
			IsNFT:    acc.Decimals == 0 && acc.Amount == "1",
		}
		if !info.OK() {
			t.Error = mintLookupFailed
			return t
		}

		t.Decimals = info.Value.Decimals
		t.Supply = info.Value.Amount
		t.IsNFT = info.Value.Decimals == 0 && acc.Amount == "1"
		return t
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("address", address).
		Int("tokens", len(tokens)).
		Int("degraded", fetcher.CountFailed(infos)).
		Msg("wallet tokens assembled")

	return &WalletTokens{
		Address:     address,
		Tokens:      tokens,
		TotalTokens: len(accounts),
	}, nil
}

// MintTokens returns the supply of mint and the token accounts of address
// holding it. It fails with ErrMintUnavailable when the mint cannot be read.
func (a *Aggregator) MintTokens(ctx context.Context, address, mint string) (*MintTokens, error) {
	info := fetchOne(ctx, a, a.mintSource(), mint)
	if !info.OK() {
		return nil, fmt.Errorf("%w: %s: %w", ErrMintUnavailable, mint, info.Err)
	}

	accounts, err := a.chain.TokenAccounts(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts: %w", err)
	}

	held := make([]MintTokenAccount, 0)
	for _, acc := range accounts {
		if acc.Mint != mint {
			continue
		}
		held = append(held, MintTokenAccount{
			Address:  acc.Address,
			Amount:   acc.Amount,
			Decimals: acc.Decimals,
		})
	}

	supply := info.Value.Amount
	if supply == "" {
		supply = strconv.FormatFloat(info.Value.Supply, 'f', -1, 64)
	}

	return &MintTokens{
		Mint:          mint,
		Decimals:      info.Value.Decimals,
		Supply:        supply,
		TokenAccounts: held,
	}, nil
}
