package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/goccy/go-json"

	"solanafetcher/internal/fetcher"
)

// mintAccountSize is the byte length of an SPL token mint account.
const mintAccountSize = 82

// TokenAccount is an SPL token account held by a wallet.
type TokenAccount struct {
	Address  string
	Mint     string
	Amount   string
	Decimals uint8
	UIAmount float64
}

// SignatureInfo is one entry of an address's signature history.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *int64
	Failed    bool
}

// Instruction is a top-level instruction of a transaction.
type Instruction struct {
	ProgramID string `json:"programId"`
	Data      string `json:"data"`
}

// Transaction holds the details of a confirmed transaction.
type Transaction struct {
	Fee          uint64
	PreBalances  []uint64
	PostBalances []uint64
	Instructions []Instruction
}

// TokenBalance is one of the largest token accounts of a mint.
type TokenBalance struct {
	Address  string
	Amount   string
	Decimals uint8
	UIAmount float64
}

// TokenOwner is the wallet owning a token account.
type TokenOwner struct {
	Owner    string
	Decimals uint8
}

// Account is a wallet with its lamport balance.
type Account struct {
	Address  string
	Lamports uint64
}

// MintInfo is the supply of a token mint.
type MintInfo struct {
	Amount   string
	Decimals uint8
	Supply   float64
}

// parsedTokenAccount is the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount         string   `json:"amount"`
				Decimals       uint8    `json:"decimals"`
				UIAmount       *float64 `json:"uiAmount"`
				UIAmountString string   `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
	Program string `json:"program"`
}

// Client reads chain state from a Solana JSON-RPC node at confirmed commitment.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// New creates a client for the node at endpoint.
func New(endpoint string) *Client {
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
	}
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Balance returns the lamport balance of address.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %s: %w", address, err)
	}

	out, err := c.rpc.GetBalance(ctx, pk, c.commitment)
	if err != nil {
		return 0, callError(err, "getBalance %s", address)
	}
	return out.Value, nil
}

// BalanceAtSlot returns the lamport balance of address as seen by a node
// that has reached at least minSlot.
func (c *Client) BalanceAtSlot(ctx context.Context, address string, minSlot uint64) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %s: %w", address, err)
	}

	var out *rpc.GetBalanceResult
	params := []interface{}{pk, rpc.M{
		"commitment":     c.commitment,
		"minContextSlot": minSlot,
	}}
	if err := c.rpc.RPCCallForInto(ctx, &out, "getBalance", params); err != nil {
		return 0, callError(err, "getBalance %s at slot %d", address, minSlot)
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

// TokenAccounts lists the SPL token accounts owned by owner.
func (c *Client) TokenAccounts(ctx context.Context, owner string) ([]TokenAccount, error) {
	pk, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner %s: %w", owner, err)
	}

	out, err := c.rpc.GetTokenAccountsByOwner(ctx, pk,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Commitment: c.commitment, Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, callError(err, "getTokenAccountsByOwner %s", owner)
	}

	accounts := make([]TokenAccount, 0, len(out.Value))
	for _, acc := range out.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}

		parsed, err := decodeTokenAccount(acc.Account.Data.GetRawJSON())
		if err != nil {
			return nil, fmt.Errorf("token account %s: %w", acc.Pubkey, err)
		}

		amount := parsed.Parsed.Info.TokenAmount
		ui := 0.0
		if amount.UIAmount != nil {
			ui = *amount.UIAmount
		} else if ui, err = ScaleAmount(amount.Amount, amount.Decimals); err != nil {
			return nil, fmt.Errorf("token account %s: %w", acc.Pubkey, err)
		}

		accounts = append(accounts, TokenAccount{
			Address:  acc.Pubkey.String(),
			Mint:     parsed.Parsed.Info.Mint,
			Amount:   amount.Amount,
			Decimals: amount.Decimals,
			UIAmount: ui,
		})
	}

	return accounts, nil
}

// Signatures returns up to limit of the most recent signatures for address,
// newest first.
func (c *Client) Signatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	return c.signatures(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	})
}

// SignatureCount returns how many signatures, up to limit, the node reports
// for address once it has reached minSlot.
func (c *Client) SignatureCount(ctx context.Context, address string, minSlot uint64, limit int) (int, error) {
	sigs, err := c.signatures(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:          &limit,
		Commitment:     c.commitment,
		MinContextSlot: &minSlot,
	})
	if err != nil {
		return 0, err
	}
	return len(sigs), nil
}

func (c *Client) signatures(ctx context.Context, address string, opts *rpc.GetSignaturesForAddressOpts) ([]SignatureInfo, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %s: %w", address, err)
	}

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pk, opts)
	if err != nil {
		return nil, callError(err, "getSignaturesForAddress %s", address)
	}

	sigs := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		info := SignatureInfo{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			bt := int64(*s.BlockTime)
			info.BlockTime = &bt
		}
		sigs = append(sigs, info)
	}

	return sigs, nil
}

// Transaction returns the details of the transaction with the given
// signature, or nil when the node does not have it.
func (c *Client) Transaction(ctx context.Context, signature string) (*Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %s: %w", signature, err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, callError(err, "getTransaction %s", signature)
	}

	tx := &Transaction{}
	if out.Meta != nil {
		tx.Fee = out.Meta.Fee
		tx.PreBalances = out.Meta.PreBalances
		tx.PostBalances = out.Meta.PostBalances
	}

	if out.Transaction == nil {
		return tx, nil
	}

	decoded, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", signature, err)
	}
	if decoded == nil {
		return tx, nil
	}

	keys := decoded.Message.AccountKeys
	tx.Instructions = make([]Instruction, 0, len(decoded.Message.Instructions))
	for _, ix := range decoded.Message.Instructions {
		programID := ""
		if int(ix.ProgramIDIndex) < len(keys) {
			programID = keys[ix.ProgramIDIndex].String()
		}
		tx.Instructions = append(tx.Instructions, Instruction{
			ProgramID: programID,
			Data:      base64.StdEncoding.EncodeToString(ix.Data),
		})
	}

	return tx, nil
}

// LargestTokenAccounts returns the largest token accounts of mint,
// largest first. Nodes return at most 20.
func (c *Client) LargestTokenAccounts(ctx context.Context, mint string) ([]TokenBalance, error) {
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %s: %w", mint, err)
	}

	out, err := c.rpc.GetTokenLargestAccounts(ctx, pk, c.commitment)
	if err != nil {
		return nil, callError(err, "getTokenLargestAccounts %s", mint)
	}

	balances := make([]TokenBalance, 0, len(out.Value))
	for _, v := range out.Value {
		if v == nil {
			continue
		}
		ui, err := ScaleAmount(v.Amount, v.Decimals)
		if err != nil {
			return nil, fmt.Errorf("token account %s: %w", v.Address, err)
		}
		balances = append(balances, TokenBalance{
			Address:  v.Address.String(),
			Amount:   v.Amount,
			Decimals: v.Decimals,
			UIAmount: ui,
		})
	}

	return balances, nil
}

// TokenAccountOwner returns the wallet that owns the given token account.
func (c *Client) TokenAccountOwner(ctx context.Context, tokenAccount string) (TokenOwner, error) {
	pk, err := solana.PublicKeyFromBase58(tokenAccount)
	if err != nil {
		return TokenOwner{}, fmt.Errorf("invalid token account %s: %w", tokenAccount, err)
	}

	out, err := c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingJSONParsed,
		Commitment: c.commitment,
	})
	if err != nil {
		return TokenOwner{}, callError(err, "getAccountInfo %s", tokenAccount)
	}
	if out.Value.Data == nil {
		return TokenOwner{}, fmt.Errorf("token account %s has no data", tokenAccount)
	}

	parsed, err := decodeTokenAccount(out.Value.Data.GetRawJSON())
	if err != nil {
		return TokenOwner{}, fmt.Errorf("token account %s: %w", tokenAccount, err)
	}
	if parsed.Parsed.Info.Owner == "" {
		return TokenOwner{}, fmt.Errorf("token account %s has no owner", tokenAccount)
	}

	return TokenOwner{
		Owner:    parsed.Parsed.Info.Owner,
		Decimals: parsed.Parsed.Info.TokenAmount.Decimals,
	}, nil
}

// LargestAccounts returns the largest circulating accounts by lamport balance.
func (c *Client) LargestAccounts(ctx context.Context) ([]Account, error) {
	out, err := c.rpc.GetLargestAccounts(ctx, c.commitment, rpc.LargestAccountsFilterCirculating)
	if err != nil {
		return nil, callError(err, "getLargestAccounts")
	}

	accounts := make([]Account, len(out.Value))
	for i, v := range out.Value {
		accounts[i] = Account{Address: v.Address.String(), Lamports: v.Lamports}
	}
	return accounts, nil
}

// MintAccounts returns up to limit token mint addresses owned by the SPL
// token program. Account data is not transferred.
func (c *Client) MintAccounts(ctx context.Context, limit int) ([]string, error) {
	zero := uint64(0)
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		DataSlice:  &rpc.DataSlice{Offset: &zero, Length: &zero},
		Filters:    []rpc.RPCFilter{{DataSize: mintAccountSize}},
	})
	if err != nil {
		return nil, callError(err, "getProgramAccounts")
	}

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}

	mints := make([]string, 0, len(out))
	for _, acc := range out {
		if acc == nil {
			continue
		}
		mints = append(mints, acc.Pubkey.String())
	}
	return mints, nil
}

// Mint returns the total supply of a token mint.
func (c *Client) Mint(ctx context.Context, mint string) (MintInfo, error) {
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return MintInfo{}, fmt.Errorf("invalid mint %s: %w", mint, err)
	}

	out, err := c.rpc.GetTokenSupply(ctx, pk, c.commitment)
	if err != nil {
		return MintInfo{}, callError(err, "getTokenSupply %s", mint)
	}
	if out == nil || out.Value == nil {
		return MintInfo{}, fmt.Errorf("getTokenSupply %s: %w", mint, fetcher.NewValidationError("empty supply"))
	}

	supply, err := ScaleAmount(out.Value.Amount, out.Value.Decimals)
	if err != nil {
		return MintInfo{}, fmt.Errorf("mint %s: %w", mint, err)
	}

	return MintInfo{
		Amount:   out.Value.Amount,
		Decimals: out.Value.Decimals,
		Supply:   supply,
	}, nil
}

// Slot returns the current confirmed slot.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, callError(err, "getSlot")
	}
	return slot, nil
}

// callError labels a failed node call and classifies the failure.
func callError(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), fetcher.ClassifyRPCError(err))
}

func decodeTokenAccount(raw []byte) (parsedTokenAccount, error) {
	var parsed parsedTokenAccount
	if len(raw) == 0 {
		return parsed, errors.New("account data is not jsonParsed")
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, fmt.Errorf("decode parsed account: %w", err)
	}
	return parsed, nil
}
