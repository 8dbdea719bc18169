package token

import "strings"

// Meta is the human-readable identity of a token mint.
type Meta struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// UnknownMeta is reported for mints no metadata source knows about.
var UnknownMeta = Meta{Symbol: "Unknown", Name: "Unknown Token"}

// OrUnknown fills empty fields with the unknown defaults.
func (m Meta) OrUnknown() Meta {
	if m.Symbol == "" {
		m.Symbol = UnknownMeta.Symbol
	}
	if m.Name == "" {
		m.Name = UnknownMeta.Name
	}
	return m
}

// Token is one entry of a token list.
type Token struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals uint8   `json:"decimals"`
	Supply   float64 `json:"supply,omitempty"`
}

// Meta returns the token's metadata with unknown defaults applied.
func (t Token) Meta() Meta {
	return Meta{Symbol: t.Symbol, Name: t.Name}.OrUnknown()
}

// Index is a token list keyed by mint address.
type Index map[string]Token

// NewIndex indexes tokens by address. The first entry wins on duplicates.
func NewIndex(tokens []Token) Index {
	idx := make(Index, len(tokens))
	for _, t := range tokens {
		if _, exists := idx[t.Address]; !exists {
			idx[t.Address] = t
		}
	}
	return idx
}

// Lookup returns the token for a mint, if listed.
func (idx Index) Lookup(mint string) (Token, bool) {
	t, ok := idx[mint]
	return t, ok
}

// FindBySymbol returns every listed token whose symbol matches,
// case-insensitively, in list order.
func FindBySymbol(tokens []Token, symbol string) []Token {
	var matches []Token
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			matches = append(matches, t)
		}
	}
	return matches
}

// IsMemecoin reports whether the metadata advertises itself as a meme token.
func IsMemecoin(m Meta) bool {
	return strings.Contains(strings.ToLower(m.Name), "meme") ||
		strings.Contains(strings.ToLower(m.Symbol), "meme")
}

// MetaOf returns the metadata of a listed mint, or UnknownMeta.
func (idx Index) MetaOf(mint string) Meta {
	if t, ok := idx[mint]; ok {
		return t.Meta()
	}
	return UnknownMeta
}
