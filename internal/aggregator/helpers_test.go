package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solanafetcher/internal/chain"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
	"solanafetcher/internal/testutil"
	"solanafetcher/internal/token"
)

var errUpstream = errors.New("upstream unavailable")

// fakeChain answers node calls from in-memory maps. Missing entries fail.
type fakeChain struct {
	mu sync.Mutex

	slot          uint64
	balances      map[string]uint64
	startBalances map[string]uint64
	sigCounts     map[string]int
	tokenAccounts map[string][]chain.TokenAccount
	signatures    map[string][]chain.SignatureInfo
	transactions  map[string]*chain.Transaction
	largestTokens map[string][]chain.TokenBalance
	owners        map[string]chain.TokenOwner
	largest       []chain.Account
	mintAccounts  []string
	mints         map[string]chain.MintInfo

	calls map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:      map[string]uint64{},
		startBalances: map[string]uint64{},
		sigCounts:     map[string]int{},
		tokenAccounts: map[string][]chain.TokenAccount{},
		signatures:    map[string][]chain.SignatureInfo{},
		transactions:  map[string]*chain.Transaction{},
		largestTokens: map[string][]chain.TokenBalance{},
		owners:        map[string]chain.TokenOwner{},
		mints:         map[string]chain.MintInfo{},
		calls:         map[string]int{},
	}
}

func (f *fakeChain) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeChain) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func lookup[T any](f *fakeChain, method string, m map[string]T, key string) (T, error) {
	f.record(method)
	v, ok := m[key]
	if !ok {
		var zero T
		return zero, errUpstream
	}
	return v, nil
}

func (f *fakeChain) Balance(ctx context.Context, address string) (uint64, error) {
	return lookup(f, "Balance", f.balances, address)
}

func (f *fakeChain) BalanceAtSlot(ctx context.Context, address string, minSlot uint64) (uint64, error) {
	return lookup(f, "BalanceAtSlot", f.startBalances, address)
}

func (f *fakeChain) TokenAccounts(ctx context.Context, owner string) ([]chain.TokenAccount, error) {
	return lookup(f, "TokenAccounts", f.tokenAccounts, owner)
}

func (f *fakeChain) Signatures(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	sigs, err := lookup(f, "Signatures", f.signatures, address)
	if err == nil && len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, err
}

func (f *fakeChain) SignatureCount(ctx context.Context, address string, minSlot uint64, limit int) (int, error) {
	return lookup(f, "SignatureCount", f.sigCounts, address)
}

func (f *fakeChain) Transaction(ctx context.Context, signature string) (*chain.Transaction, error) {
	return lookup(f, "Transaction", f.transactions, signature)
}

func (f *fakeChain) LargestTokenAccounts(ctx context.Context, mint string) ([]chain.TokenBalance, error) {
	return lookup(f, "LargestTokenAccounts", f.largestTokens, mint)
}

func (f *fakeChain) TokenAccountOwner(ctx context.Context, tokenAccount string) (chain.TokenOwner, error) {
	return lookup(f, "TokenAccountOwner", f.owners, tokenAccount)
}

func (f *fakeChain) LargestAccounts(ctx context.Context) ([]chain.Account, error) {
	f.record("LargestAccounts")
	if f.largest == nil {
		return nil, errUpstream
	}
	return f.largest, nil
}

func (f *fakeChain) MintAccounts(ctx context.Context, limit int) ([]string, error) {
	f.record("MintAccounts")
	if f.mintAccounts == nil {
		return nil, errUpstream
	}
	if len(f.mintAccounts) > limit {
		return f.mintAccounts[:limit], nil
	}
	return f.mintAccounts, nil
}

func (f *fakeChain) Mint(ctx context.Context, mint string) (chain.MintInfo, error) {
	return lookup(f, "Mint", f.mints, mint)
}

func (f *fakeChain) Slot(ctx context.Context) (uint64, error) {
	f.record("Slot")
	if f.slot == 0 {
		return 0, errUpstream
	}
	return f.slot, nil
}

// fakeHistory serves historical prices from a map and records the
// requested timestamp.
type fakeHistory struct {
	prices map[string]float64
	mu     sync.Mutex
	at     []int64
}

func (h *fakeHistory) At(unix int64) fetcher.Source[float64] {
	h.mu.Lock()
	h.at = append(h.at, unix)
	h.mu.Unlock()
	return testutil.NewMockSource("test.history", 0.0, h.prices, errUpstream)
}

type testSources struct {
	spot    *testutil.MockSource[float64]
	list    *testutil.MockSource[[]token.Token]
	price   *testutil.MockSource[float64]
	history *fakeHistory
	meta    *testutil.MockSource[token.Meta]
	volume  *testutil.MockSource[float64]
}

func newTestSources() *testSources {
	return &testSources{
		spot:    testutil.NewMockSource("test.spot", 0.0, map[string]float64{}, errUpstream),
		list:    testutil.NewMockSource("test.tokens", []token.Token{}, map[string][]token.Token{}, errUpstream),
		price:   testutil.NewMockSource("test.price", 0.0, map[string]float64{}, errUpstream),
		history: &fakeHistory{prices: map[string]float64{}},
		meta:    testutil.NewMockSource("test.meta", token.UnknownMeta, map[string]token.Meta{}, errUpstream),
		volume:  testutil.NewMockSource("test.volume", 0.0, map[string]float64{}, errUpstream),
	}
}

func (s *testSources) Sources() Sources {
	return Sources{
		SpotPrice: s.spot,
		TokenList: s.list,
		Price:     s.price,
		History:   s.history,
		Meta:      s.meta,
		Volume:    s.volume,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkDelay = time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.Limiter = ratelimit.Unlimited()
	return cfg
}

func newTestAggregator(t *testing.T, c *fakeChain, src *testSources) *Aggregator {
	t.Helper()
	return New(testConfig(), c, src.Sources(), zerolog.Nop())
}

// setValues replaces the values a mock source answers with.
func setValues[T any](m *testutil.MockSource[T], values map[string]T) {
	m.FetchFunc = func(ctx context.Context, id string) (T, error) {
		if v, ok := values[id]; ok {
			return v, nil
		}
		var zero T
		return zero, errUpstream
	}
}
