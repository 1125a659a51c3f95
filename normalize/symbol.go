package normalize

import (
	"fmt"
	"strings"
)

// SymbolTable is a startup-time bijection between an exchange's native
// symbol spellings (in any casing/punctuation the exchange uses, e.g.
// "btcusdt", "BTCUSDT", "BTC-USDT") and this collector's single canonical
// symbol form, resolving spec §9's Open Question: the canonical form is
// fixed at config load and the table's bijectivity is validated then, not
// discovered at runtime.
type SymbolTable struct {
	toCanonical map[string]string // normalized native key -> canonical
	fromCanonical map[string]string // canonical -> native (for REST/WS framing)
}

// NewSymbolTable builds a table from a canonical->native mapping loaded
// from config. It normalizes native lookups by upper-casing and stripping
// '-'/'_'/'/' so "btcusdt", "BTCUSDT" and "BTC-USDT" all resolve to the
// same canonical symbol, per spec §8's symbol-casing boundary behavior.
func NewSymbolTable(canonicalToNative map[string]string) (*SymbolTable, error) {
	t := &SymbolTable{
		toCanonical:   make(map[string]string, len(canonicalToNative)),
		fromCanonical: make(map[string]string, len(canonicalToNative)),
	}
	for canonical, native := range canonicalToNative {
		key := normalizeNativeKey(native)
		if existing, ok := t.toCanonical[key]; ok && existing != canonical {
			return nil, fmt.Errorf("%w: native symbol %q maps to both %q and %q", ErrNonBijectiveTable, native, existing, canonical)
		}
		t.toCanonical[key] = canonical
		if existing, ok := t.fromCanonical[canonical]; ok && existing != native {
			return nil, fmt.Errorf("%w: canonical symbol %q maps to both %q and %q", ErrNonBijectiveTable, canonical, existing, native)
		}
		t.fromCanonical[canonical] = native
	}
	return t, nil
}

func normalizeNativeKey(native string) string {
	s := strings.ToUpper(native)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// Canonicalize maps a native symbol spelling to the canonical form. It
// returns ErrUnknownSymbol (never invents a mapping) when native is not in
// the table, per spec §4.3.
func (t *SymbolTable) Canonicalize(native string) (string, error) {
	canonical, ok := t.toCanonical[normalizeNativeKey(native)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, native)
	}
	return canonical, nil
}

// Native returns the exchange's native spelling for a canonical symbol,
// used by the WireAdapter when framing subscriptions/REST requests.
func (t *SymbolTable) Native(canonical string) (string, bool) {
	native, ok := t.fromCanonical[canonical]
	return native, ok
}
