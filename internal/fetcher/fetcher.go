package fetcher

import (
	"context"

	"solanafetcher/internal/ratelimit"
)

// Source is the interface every upstream data source implements.
// A source knows how to retrieve one value for one identifier (an address,
// a mint, a signature) and what neutral value to use when it cannot.
type Source[T any] interface {
	// Name identifies the source in logs and metrics, e.g. "dexscreener.price".
	Name() string

	// API is the rate-limit bucket the source draws from.
	API() ratelimit.API

	// Fetch performs a single downstream call for id.
	Fetch(ctx context.Context, id string) (T, error)

	// Default is the value reported when every attempt failed.
	Default() T
}

// FetchFunc performs a single downstream call for one identifier.
type FetchFunc[T any] func(ctx context.Context, id string) (T, error)

type funcSource[T any] struct {
	name string
	api  ratelimit.API
	def  T
	fn   FetchFunc[T]
}

// NewSource adapts a plain function into a Source.
func NewSource[T any](name string, api ratelimit.API, def T, fn FetchFunc[T]) Source[T] {
	return &funcSource[T]{name: name, api: api, def: def, fn: fn}
}

func (s *funcSource[T]) Name() string       { return s.name }
func (s *funcSource[T]) API() ratelimit.API { return s.api }
func (s *funcSource[T]) Default() T         { return s.def }

func (s *funcSource[T]) Fetch(ctx context.Context, id string) (T, error) {
	return s.fn(ctx, id)
}
