package normalize

import (
	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// Depth converts a raw incremental/snapshot depth frame into the
// orderbook package's Update shape, which the OrderBookManager consumes
// directly (spec §4.1/§4.3). Unlike Trade/Ticker this does not need the
// symbol table to resolve a canonical key — the Manager already owns one
// pair per instance — so it takes the pair's key.Instrument as given by
// the caller rather than deriving it here.
func (n *Normalizer) Depth(raw rawevent.Depth, pair key.Instrument) (orderbook.Update, error) {
	bids, err := levels(raw.Bids)
	if err != nil {
		return orderbook.Update{}, err
	}
	asks, err := levels(raw.Asks)
	if err != nil {
		return orderbook.Update{}, err
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)

	u := orderbook.Update{
		Pair:           pair,
		FirstUpdateID:  raw.FirstUpdateID,
		LastUpdateID:   raw.LastUpdateID,
		PrevSequenceID: raw.PrevSequenceID,
		Bids:           bids,
		Asks:           asks,
		EventTime:      eventTime,
		IngestTime:     raw.IngestTime,
		AllowEmpty:     raw.IsSnapshot,
	}
	if raw.Checksum != nil {
		u.HasChecksum = true
		u.Checksum = uint32(*raw.Checksum)
	}
	return u, nil
}

func levels(raw [][2]string) ([]orderbook.PriceLevel, error) {
	out := make([]orderbook.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := parseDecimal("price", lvl[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal("quantity", lvl[1])
		if err != nil {
			return nil, err
		}
		out = append(out, orderbook.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
