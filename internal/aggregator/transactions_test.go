package aggregator

import (
	"context"
	"fmt"
	"testing"

	"solanafetcher/internal/chain"
)

func TestTransactions_Statuses(t *testing.T) {
	bt := int64(1_700_000_000)

	c := newFakeChain()
	c.signatures["wallet"] = []chain.SignatureInfo{
		{Signature: "ok", Slot: 4, BlockTime: &bt},
		{Signature: "failed", Slot: 3, Failed: true},
		{Signature: "missing", Slot: 2},
		{Signature: "broken", Slot: 1},
	}
	c.transactions["ok"] = &chain.Transaction{
		Fee:          5000,
		PreBalances:  []uint64{10},
		PostBalances: []uint64{5},
		Instructions: []chain.Instruction{{ProgramID: "11111111111111111111111111111111", Data: "AQ=="}},
	}
	c.transactions["failed"] = &chain.Transaction{Fee: 5000}
	c.transactions["missing"] = nil
	// "broken" has no entry: every attempt fails.

	got, err := newTestAggregator(t, c, newTestSources()).Transactions(context.Background(), "wallet", 10)
	if err != nil {
		t.Fatalf("Transactions() returned unexpected error: %v", err)
	}

	wantStatus := []string{StatusSuccess, StatusFailed, StatusUnknown, StatusError}
	if len(got.Transactions) != len(wantStatus) {
		t.Fatalf("len(Transactions) = %d, want %d", len(got.Transactions), len(wantStatus))
	}
	for i, status := range wantStatus {
		if got.Transactions[i].Status != status {
			t.Errorf("Transactions[%d].Status = %s, want %s", i, got.Transactions[i].Status, status)
		}
	}

	ok := got.Transactions[0]
	if ok.Fee == nil || *ok.Fee != 5000 || len(ok.Instructions) != 1 || ok.BlockTime == nil {
		t.Errorf("Transactions[0] = %+v", ok)
	}
	if got.Transactions[2].Error != "Transaction details not available" {
		t.Errorf("Transactions[2].Error = %q", got.Transactions[2].Error)
	}
	if got.Transactions[3].Error != "Failed to fetch transaction details" {
		t.Errorf("Transactions[3].Error = %q", got.Transactions[3].Error)
	}
	if c.Calls("Transaction") != 1+1+1+3 {
		t.Errorf("Transaction called %d times, want 6", c.Calls("Transaction"))
	}

	if got.Total != 4 || got.Message != "Showing 4 transactions" {
		t.Errorf("Total = %d, Message = %q", got.Total, got.Message)
	}
}

func TestTransactions_Messages(t *testing.T) {
	c := newFakeChain()
	for i := 0; i < 150; i++ {
		sig := fmt.Sprintf("sig-%03d", i)
		c.signatures["busy"] = append(c.signatures["busy"], chain.SignatureInfo{Signature: sig})
		c.transactions[sig] = &chain.Transaction{}
	}
	c.signatures["quiet"] = []chain.SignatureInfo{}

	tests := []struct {
		name        string
		address     string
		limit       int
		wantCount   int
		wantMessage string
	}{
		{"latest", "busy", 1, 1, "Showing latest transaction"},
		{"zero treated as one", "busy", 0, 1, "Showing latest transaction"},
		{"several", "busy", 3, 3, "Showing 3 transactions"},
		{"capped", "busy", 500, MaxTransactionLimit, "Showing 100 transactions"},
		{"none", "quiet", 5, 0, "No transactions found for this address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(t, c, newTestSources())

			got, err := a.Transactions(context.Background(), tt.address, tt.limit)
			if err != nil {
				t.Fatalf("Transactions() returned unexpected error: %v", err)
			}
			if len(got.Transactions) != tt.wantCount {
				t.Errorf("len(Transactions) = %d, want %d", len(got.Transactions), tt.wantCount)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestTransactions_PreservesSignatureOrder(t *testing.T) {
	c := newFakeChain()
	for i := 0; i < 12; i++ {
		sig := fmt.Sprintf("sig-%02d", i)
		c.signatures["wallet"] = append(c.signatures["wallet"], chain.SignatureInfo{Signature: sig, Slot: uint64(100 - i)})
		c.transactions[sig] = &chain.Transaction{Fee: uint64(i)}
	}

	got, err := newTestAggregator(t, c, newTestSources()).Transactions(context.Background(), "wallet", 12)
	if err != nil {
		t.Fatalf("Transactions() returned unexpected error: %v", err)
	}

	for i, rec := range got.Transactions {
		if rec.Signature != fmt.Sprintf("sig-%02d", i) || *rec.Fee != uint64(i) {
			t.Errorf("Transactions[%d] = %s fee %d, want sig-%02d fee %d", i, rec.Signature, *rec.Fee, i, i)
		}
	}
}
