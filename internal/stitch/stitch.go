// Package stitch merges per-identifier fetch outcomes from several sources
// back into one record per identifier. Merging is strictly positional: the
// i-th outcome of every source belongs to the i-th identifier.
package stitch

import (
	"errors"
	"fmt"

	"solanafetcher/internal/fetcher"
)

// ErrLengthMismatch is matched by every *LengthError.
var ErrLengthMismatch = errors.New("outcome length does not match identifiers")

// LengthError reports a source whose outcome slice does not line up with the
// identifiers. It always indicates a programming error in the caller.
type LengthError struct {
	Source      int
	Identifiers int
	Outcomes    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("stitch: source %d has %d outcomes for %d identifiers", e.Source, e.Outcomes, e.Identifiers)
}

func (e *LengthError) Is(target error) bool {
	return target == ErrLengthMismatch
}

func check(ids int, lengths ...int) error {
	for i, n := range lengths {
		if n != ids {
			return &LengthError{Source: i, Identifiers: ids, Outcomes: n}
		}
	}
	return nil
}

// Zip1 builds one record per identifier from a single source.
func Zip1[A, R any](ids []string, a []fetcher.Outcome[A], build func(i int, id string, a fetcher.Outcome[A]) R) ([]R, error) {
	if err := check(len(ids), len(a)); err != nil {
		return nil, err
	}

	out := make([]R, len(ids))
	for i, id := range ids {
		out[i] = build(i, id, a[i])
	}
	return out, nil
}

// Zip2 builds one record per identifier from two sources.
func Zip2[A, B, R any](ids []string, a []fetcher.Outcome[A], b []fetcher.Outcome[B], build func(i int, id string, a fetcher.Outcome[A], b fetcher.Outcome[B]) R) ([]R, error) {
	if err := check(len(ids), len(a), len(b)); err != nil {
		return nil, err
	}

	out := make([]R, len(ids))
	for i, id := range ids {
		out[i] = build(i, id, a[i], b[i])
	}
	return out, nil
}

// Zip3 builds one record per identifier from three sources.
func Zip3[A, B, C, R any](ids []string, a []fetcher.Outcome[A], b []fetcher.Outcome[B], c []fetcher.Outcome[C], build func(i int, id string, a fetcher.Outcome[A], b fetcher.Outcome[B], c fetcher.Outcome[C]) R) ([]R, error) {
	if err := check(len(ids), len(a), len(b), len(c)); err != nil {
		return nil, err
	}

	out := make([]R, len(ids))
	for i, id := range ids {
		out[i] = build(i, id, a[i], b[i], c[i])
	}
	return out, nil
}

// Zip4 builds one record per identifier from four sources.
func Zip4[A, B, C, D, R any](ids []string, a []fetcher.Outcome[A], b []fetcher.Outcome[B], c []fetcher.Outcome[C], d []fetcher.Outcome[D], build func(i int, id string, a fetcher.Outcome[A], b fetcher.Outcome[B], c fetcher.Outcome[C], d fetcher.Outcome[D]) R) ([]R, error) {
	if err := check(len(ids), len(a), len(b), len(c), len(d)); err != nil {
		return nil, err
	}

	out := make([]R, len(ids))
	for i, id := range ids {
		out[i] = build(i, id, a[i], b[i], c[i], d[i])
	}
	return out, nil
}
