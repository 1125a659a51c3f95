// Package key defines comparable lookup keys used across the collector,
// in the shape buffer.go's key.PairAsset is used by the teacher.
package key

import "github.com/marketprism/ingestion-fabric/exchanges/asset"

// Instrument is the comparable identity of a tradeable (exchange, market
// type, symbol) triple. It is immutable once constructed and safe to use
// directly as a map key.
type Instrument struct {
	Exchange   string
	MarketType asset.Item
	Symbol     string
}

// String renders the key in "exchange/market_type/symbol" form, matching
// the bus key scheme in spec §6.
func (k Instrument) String() string {
	return k.Exchange + "/" + k.MarketType.String() + "/" + k.Symbol
}
