package normalize

import "errors"

// Error vocabulary for the normalization layer (spec §4.3, §7's "Mapping"
// and "Decode" error kinds).
var (
	ErrUnknownSymbol     = errors.New("normalize: unknown symbol")
	ErrNonBijectiveTable = errors.New("normalize: symbol table is not a bijection")
	ErrDecodeField       = errors.New("normalize: malformed field")
	ErrWrongMarketType   = errors.New("normalize: record not applicable to market type")
)
