// Package normalize implements the stateless translation from
// rawevent.* (per-exchange wire shapes) to record.* (canonical records),
// spec §4.3. Each Normalizer method is a pure function of its input plus
// the startup-loaded SymbolTable/asset mapping; none of them perform I/O.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
	"github.com/marketprism/ingestion-fabric/rawevent"
	"github.com/marketprism/ingestion-fabric/record"
)

const scale = 8

// Normalizer converts one exchange's raw events into canonical records.
// Every method is pure: same input always produces the same output
// (spec §8's "Normalize(decode(raw)) == Normalize(decode(raw))" law).
type Normalizer struct {
	exchange rawevent.Exchange
	symbols  *SymbolTable
}

// New constructs a Normalizer bound to one exchange's symbol table, loaded
// once at startup from config.
func New(exchange rawevent.Exchange, symbols *SymbolTable) *Normalizer {
	return &Normalizer{exchange: exchange, symbols: symbols}
}

// ResolveKey derives the canonical key.Instrument for a raw event's native
// market type and symbol, using the same symbol table Trade/Ticker/Depth
// resolve against. Callers that need to locate the book or record owning an
// inbound raw event (the Supervisor's dispatch routing) use this directly.
func (n *Normalizer) ResolveKey(marketType, native string) (key.Instrument, error) {
	return n.key(marketType, native)
}

func (n *Normalizer) key(marketType string, native string) (key.Instrument, error) {
	mt, err := asset.New(marketType)
	if err != nil {
		return key.Instrument{}, err
	}
	symbol, err := n.symbols.Canonicalize(native)
	if err != nil {
		return key.Instrument{}, err
	}
	return key.Instrument{Exchange: string(n.exchange), MarketType: mt, Symbol: symbol}, nil
}

// msToUTC converts a millisecond epoch timestamp to UTC, falling back to
// ingestTime with TimeSourceIngest when ms is zero (spec §4.3: "If the
// exchange omits an event time, use ingest time and set time_source=ingest").
func msToUTC(ms int64, ingestTime time.Time) (time.Time, record.TimeSource) {
	if ms <= 0 {
		return ingestTime, record.TimeSourceIngest
	}
	return time.UnixMilli(ms).UTC(), record.TimeSourceExchange
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: field %s: %w", ErrDecodeField, field, err)
	}
	return d, nil
}

// quoteQuantity computes price*quantity rounded half-even to 8 fractional
// digits, spec §4.3/§8's invariant 3.
func quoteQuantity(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).RoundBank(scale)
}
