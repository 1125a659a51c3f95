// Package record defines the canonical, exchange-neutral records the
// Normalizer layer produces (spec §3, §4.3). Every decimal field is a
// shopspring/decimal value. Only the quote quantity is rounded (half-even,
// to 8 fractional digits); the other decimal fields keep the digits the
// exchange sent and are not rounded or padded to 8 fractional digits. Every
// timestamp is UTC with millisecond resolution.
package record

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/common/key"
)

// TimeSource flags whether an event's timestamp came from the exchange or
// was substituted with ingest time because the exchange omitted one
// (spec §4.3: "Timestamp normalization").
type TimeSource uint8

// Supported time sources.
const (
	TimeSourceExchange TimeSource = iota
	TimeSourceIngest
)

// Side is a closed-set, lower-case trade/liquidation side (spec §3).
type Side string

// Supported sides.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// LSRVariant distinguishes the two long/short-ratio population variants
// spec §3's LSRSample documents.
type LSRVariant string

// Supported LSR variants.
const (
	LSRAllAccounts  LSRVariant = "all_accounts"
	LSRTopPositions LSRVariant = "top_positions"
)

// Trade is the canonical per-trade record (spec §3 NormalizedTrade).
type Trade struct {
	Key            key.Instrument
	TradeID        string
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	QuoteQuantity  decimal.Decimal
	Side           Side
	IsBuyerMaker   bool
	FirstTradeID   *string
	TradeTime      time.Time
	IngestTime     time.Time
	TimeSource     TimeSource
}

// Ticker is the canonical 24h ticker record (spec §3 NormalizedTicker).
type Ticker struct {
	Key                key.Instrument
	LastPrice          decimal.Decimal
	Volume24h          decimal.Decimal
	QuoteVolume24h     decimal.Decimal
	PriceChange24h     decimal.Decimal
	PriceChangePct24h  decimal.Decimal
	High24h            decimal.Decimal
	Low24h             decimal.Decimal
	EventTime          time.Time
	IngestTime         time.Time
	TimeSource         TimeSource
}

// FundingRate is the canonical funding-rate record (spec §3
// NormalizedFundingRate), only emitted for linear/inverse market types.
type FundingRate struct {
	Key             key.Instrument
	FundingRate     decimal.Decimal // signed
	NextFundingTime time.Time
	MarkPrice       decimal.Decimal
	IndexPrice      decimal.Decimal
	EventTime       time.Time
	IngestTime      time.Time
}

// OpenInterest is the canonical open-interest record (spec §3
// NormalizedOpenInterest), polled.
type OpenInterest struct {
	Key               key.Instrument
	OpenInterest      decimal.Decimal
	OpenInterestValue decimal.Decimal
	EventTime         time.Time
	IngestTime        time.Time
}

// Liquidation is the canonical forced-liquidation record (spec §3
// NormalizedLiquidation).
type Liquidation struct {
	Key        key.Instrument
	Side       Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	EventTime  time.Time
	IngestTime time.Time
}

// LSRSample is the canonical long/short-ratio sample (spec §3 LSRSample),
// polled.
type LSRSample struct {
	Key        key.Instrument
	Period     string
	LongRatio  decimal.Decimal
	ShortRatio decimal.Decimal
	Variant    LSRVariant
	EventTime  time.Time
	IngestTime time.Time
}

// VolatilityIndex is the canonical option-underlying volatility index
// sample (spec §3 VolatilityIndex), polled.
type VolatilityIndex struct {
	Key        key.Instrument
	IndexValue decimal.Decimal
	EventTime  time.Time
	IngestTime time.Time
}
