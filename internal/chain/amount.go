package chain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ScaleAmount converts a raw integer token amount into UI units.
// raw is the decimal string the node returns, e.g. "1500000" with 6 decimals
// is 1.5.
func ScaleAmount(raw string, decimals uint8) (float64, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", raw, err)
	}

	return d.Shift(-int32(decimals)).InexactFloat64(), nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return decimal.NewFromUint64(lamports).Shift(-9).InexactFloat64()
}

// LamportDeltaToSOL converts the difference end - start, in lamports, to SOL.
func LamportDeltaToSOL(start, end uint64) float64 {
	return decimal.NewFromUint64(end).Sub(decimal.NewFromUint64(start)).Shift(-9).InexactFloat64()
}
