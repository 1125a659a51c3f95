package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/rawevent"
	"github.com/marketprism/ingestion-fabric/record"
)

// Trade converts a raw trade print to the canonical record, applying the
// per-exchange side/maker mapping from spec §4.3: Binance's isBuyerMaker
// flag maps straight across (isBuyerMaker=true => side=sell, reproducing
// spec §8 Scenario D); OKX/Deribit instead carry the taker's own side.
func (n *Normalizer) Trade(raw rawevent.Trade) (record.Trade, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.Trade{}, err
	}
	price, err := parseDecimal("price", raw.Price)
	if err != nil {
		return record.Trade{}, err
	}
	qty, err := parseDecimal("quantity", raw.Quantity)
	if err != nil {
		return record.Trade{}, err
	}

	var side record.Side
	var isBuyerMaker bool
	switch n.exchange {
	case rawevent.Binance:
		isBuyerMaker = raw.BuyerIsMaker != nil && *raw.BuyerIsMaker
		if isBuyerMaker {
			side = record.SideSell
		} else {
			side = record.SideBuy
		}
	default:
		// OKX/Deribit: raw.TakerSide carries the aggressor side directly;
		// the buyer was the maker exactly when the taker sold.
		if raw.TakerSide == string(record.SideSell) {
			side = record.SideSell
			isBuyerMaker = true
		} else {
			side = record.SideBuy
			isBuyerMaker = false
		}
	}

	tradeTime, source := msToUTC(raw.TradeTimeMS, raw.IngestTime)
	quoteQty := quoteQuantity(price, qty)
	if raw.QuoteQty != "" {
		if q, err := parseDecimal("quote_quantity", raw.QuoteQty); err == nil {
			quoteQty = q
		}
	}

	return record.Trade{
		Key:           k,
		TradeID:       raw.TradeID,
		Price:         price,
		Quantity:      qty,
		QuoteQuantity: quoteQty,
		Side:          side,
		IsBuyerMaker:  isBuyerMaker,
		TradeTime:     tradeTime,
		IngestTime:    raw.IngestTime,
		TimeSource:    source,
	}, nil
}

// Ticker converts a raw 24h ticker push to the canonical record.
func (n *Normalizer) Ticker(raw rawevent.Ticker) (record.Ticker, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.Ticker{}, err
	}
	type fieldSpec struct {
		name string
		src  string
		dst  *decimal.Decimal
	}
	var out record.Ticker
	for _, f := range []fieldSpec{
		{"last_price", raw.LastPrice, &out.LastPrice},
		{"volume_24h", raw.Volume24h, &out.Volume24h},
		{"quote_volume_24h", raw.QuoteVolume24h, &out.QuoteVolume24h},
		{"price_change_24h", raw.PriceChange24h, &out.PriceChange24h},
		{"price_change_pct_24h", raw.PriceChangePct24h, &out.PriceChangePct24h},
		{"high_24h", raw.High24h, &out.High24h},
		{"low_24h", raw.Low24h, &out.Low24h},
	} {
		d, err := parseDecimal(f.name, f.src)
		if err != nil {
			return record.Ticker{}, err
		}
		*f.dst = d
	}
	out.Key = k
	out.EventTime, out.TimeSource = msToUTC(raw.EventTimeMS, raw.IngestTime)
	out.IngestTime = raw.IngestTime
	return out, nil
}
