package normalize

import (
	"fmt"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
	"github.com/marketprism/ingestion-fabric/rawevent"
	"github.com/marketprism/ingestion-fabric/record"
)

// FundingRate converts a raw funding-rate/mark-price push to the canonical
// record. Only valid for linear/inverse market types per spec §3.
func (n *Normalizer) FundingRate(raw rawevent.Funding) (record.FundingRate, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.FundingRate{}, err
	}
	if !k.MarketType.IsDerivative() {
		return record.FundingRate{}, fmt.Errorf("%w: %s", ErrWrongMarketType, k.MarketType)
	}
	rate, err := parseDecimal("funding_rate", raw.FundingRate)
	if err != nil {
		return record.FundingRate{}, err
	}
	mark, err := parseDecimal("mark_price", raw.MarkPrice)
	if err != nil {
		return record.FundingRate{}, err
	}
	index, err := parseDecimal("index_price", raw.IndexPrice)
	if err != nil {
		return record.FundingRate{}, err
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)
	nextFunding, _ := msToUTC(raw.NextFundingTime, raw.IngestTime)
	return record.FundingRate{
		Key:             k,
		FundingRate:     rate,
		NextFundingTime: nextFunding,
		MarkPrice:       mark,
		IndexPrice:      index,
		EventTime:       eventTime,
		IngestTime:      raw.IngestTime,
	}, nil
}

// OpenInterest converts a raw polled open-interest reading to the
// canonical record.
func (n *Normalizer) OpenInterest(raw rawevent.OpenInterest) (record.OpenInterest, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.OpenInterest{}, err
	}
	oi, err := parseDecimal("open_interest", raw.OpenInterest)
	if err != nil {
		return record.OpenInterest{}, err
	}
	oiValue, err := parseDecimal("open_interest_value", raw.OpenInterestValue)
	if err != nil {
		return record.OpenInterest{}, err
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)
	return record.OpenInterest{
		Key:               k,
		OpenInterest:      oi,
		OpenInterestValue: oiValue,
		EventTime:         eventTime,
		IngestTime:        raw.IngestTime,
	}, nil
}

// Liquidation converts a raw forced-liquidation print to the canonical
// record.
func (n *Normalizer) Liquidation(raw rawevent.Liquidation) (record.Liquidation, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.Liquidation{}, err
	}
	price, err := parseDecimal("price", raw.Price)
	if err != nil {
		return record.Liquidation{}, err
	}
	qty, err := parseDecimal("quantity", raw.Quantity)
	if err != nil {
		return record.Liquidation{}, err
	}
	side := record.SideBuy
	if raw.Side == string(record.SideSell) {
		side = record.SideSell
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)
	return record.Liquidation{
		Key:        k,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		EventTime:  eventTime,
		IngestTime: raw.IngestTime,
	}, nil
}

// LSR converts a raw polled long/short-ratio sample to the canonical
// record.
func (n *Normalizer) LSR(raw rawevent.LSR) (record.LSRSample, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		return record.LSRSample{}, err
	}
	long, err := parseDecimal("long_ratio", raw.LongRatio)
	if err != nil {
		return record.LSRSample{}, err
	}
	short, err := parseDecimal("short_ratio", raw.ShortRatio)
	if err != nil {
		return record.LSRSample{}, err
	}
	variant := record.LSRAllAccounts
	if raw.Variant == string(record.LSRTopPositions) {
		variant = record.LSRTopPositions
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)
	return record.LSRSample{
		Key:        k,
		Period:     raw.Period,
		LongRatio:  long,
		ShortRatio: short,
		Variant:    variant,
		EventTime:  eventTime,
		IngestTime: raw.IngestTime,
	}, nil
}

// Vol converts a raw polled volatility-index sample to the canonical
// record. Volatility indices are keyed by option underlying, not by a
// fully resolvable symbol-table entry, so an empty native symbol is
// tolerated by falling back to asset.Option with the raw symbol verbatim.
func (n *Normalizer) Vol(raw rawevent.Vol) (record.VolatilityIndex, error) {
	k, err := n.key(raw.MarketType, raw.NativeSymbol)
	if err != nil {
		k = key.Instrument{Exchange: string(n.exchange), MarketType: asset.Option, Symbol: raw.NativeSymbol}
	}
	index, err := parseDecimal("index_value", raw.IndexValue)
	if err != nil {
		return record.VolatilityIndex{}, err
	}
	eventTime, _ := msToUTC(raw.EventTimeMS, raw.IngestTime)
	return record.VolatilityIndex{
		Key:        k,
		IndexValue: index,
		EventTime:  eventTime,
		IngestTime: raw.IngestTime,
	}, nil
}
