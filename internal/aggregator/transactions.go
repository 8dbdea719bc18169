package aggregator

import (
	"context"
	"fmt"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/stitch"
)

const (
	// DefaultTransactionLimit is the number of transactions listed when no limit is given.
	DefaultTransactionLimit = 1
	// MaxTransactionLimit caps the number of transactions listed per request.
	MaxTransactionLimit = 100
)

// Transaction statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusUnknown = "unknown"
	StatusError   = "error"
)

// TransactionHistory is the recent transaction history of an address.
type TransactionHistory struct {
	Address      string              `json:"address"`
	Transactions []TransactionRecord `json:"transactions"`
	Total        int                 `json:"total"`
	Message      string              `json:"message"`
}

// TransactionRecord is one transaction of an address.
type TransactionRecord struct {
	Signature    string              `json:"signature"`
	Slot         uint64              `json:"slot"`
	BlockTime    *int64              `json:"blockTime"`
	Status       string              `json:"status"`
	Fee          *uint64             `json:"fee,omitempty"`
	PreBalances  []uint64            `json:"preBalances,omitempty"`
	PostBalances []uint64            `json:"postBalances,omitempty"`
	Instructions []chain.Instruction `json:"instructions,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Transactions returns the latest limit transactions of address, newest
// first. limit is clamped to [1, MaxTransactionLimit].
func (a *Aggregator) Transactions(ctx context.Context, address string, limit int) (*TransactionHistory, error) {
	limit = min(max(limit, 1), MaxTransactionLimit)

	sigs, err := a.chain.Signatures(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction signatures: %w", err)
	}

	if len(sigs) == 0 {
		return &TransactionHistory{
			Address:      address,
			Transactions: []TransactionRecord{},
			Total:        0,
			Message:      "No transactions found for this address",
		}, nil
	}

	ids := make([]string, len(sigs))
	for i, s := range sigs {
		ids[i] = s.Signature
	}

	txs, err := fetchAll(ctx, a, a.transactionSource(), ids)
	if err != nil {
		return nil, err
	}

	records, err := stitch.Zip1(ids, txs, func(i int, signature string, tx fetcher.Outcome[*chain.Transaction]) TransactionRecord {
		return transactionRecord(sigs[i], tx)
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Showing %d transactions", len(records))
	if limit == 1 {
		message = "Showing latest transaction"
	}

	return &TransactionHistory{
		Address:      address,
		Transactions: records,
		Total:        len(sigs),
		Message:      message,
	}, nil
}

func transactionRecord(sig chain.SignatureInfo, tx fetcher.Outcome[*chain.Transaction]) TransactionRecord {
	rec := TransactionRecord{
		Signature: sig.Signature,
		Slot:      sig.Slot,
		BlockTime: sig.BlockTime,
	}

	switch {
	case !tx.OK():
		rec.Status = StatusError
		rec.Error = "Failed to fetch transaction details"
	case tx.Value == nil:
		rec.Status = StatusUnknown
		rec.Error = "Transaction details not available"
	default:
		rec.Status = StatusSuccess
		if sig.Failed {
			rec.Status = StatusFailed
		}
		fee := tx.Value.Fee
		rec.Fee = &fee
		rec.PreBalances = tx.Value.PreBalances
		rec.PostBalances = tx.Value.PostBalances
		rec.Instructions = tx.Value.Instructions
	}

	return rec
}
