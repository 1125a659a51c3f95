// Package rawevent defines the tagged-sum-type family of raw, still
// exchange-native events a WireAdapter decodes off the wire (spec §4.2
// "events()"). This is the Go-native replacement for the source's dynamic
// dict-of-whatever frames (spec §9): one concrete struct per event kind,
// carrying the exchange's own field names/units, with normalize.Normalizer
// doing the pure translation into record.* canonical types.
package rawevent

import "time"

// Exchange identifies which WireAdapter produced an event, a closed set
// matching the three supported ExchangeStrategy implementations.
type Exchange string

// Supported exchanges.
const (
	Binance Exchange = "binance"
	OKX     Exchange = "okx"
	Deribit Exchange = "deribit"
)

// Envelope carries metadata common to every raw event: which exchange and
// market type it came from, the raw native symbol (not yet canonicalized),
// and the time the WireAdapter received the frame.
type Envelope struct {
	Exchange   Exchange
	MarketType string // native market type token, mapped through asset.New at normalize time
	NativeSymbol string
	IngestTime time.Time
}

// Trade is a raw, undecoded-beyond-JSON trade print.
type Trade struct {
	Envelope
	TradeID      string
	Price        string
	Quantity     string
	QuoteQty     string // empty if the exchange does not supply it directly
	BuyerIsMaker *bool  // Binance isBuyerMaker
	TakerSide    string // OKX "side/buy|sell", Deribit "direction"
	TradeTimeMS  int64  // 0 if exchange omitted it
}

// Ticker is a raw 24h ticker push.
type Ticker struct {
	Envelope
	LastPrice         string
	Volume24h         string
	QuoteVolume24h    string
	PriceChange24h    string
	PriceChangePct24h string
	High24h           string
	Low24h            string
	EventTimeMS       int64
}

// Depth is a raw incremental order-book update frame, carrying whichever
// update-id fields the source exchange uses (Binance U/u, OKX prevSeqId/
// seqId, Deribit prev_change_id/change_id) plus an optional checksum.
type Depth struct {
	Envelope
	IsSnapshot     bool
	FirstUpdateID  int64
	LastUpdateID   int64
	PrevSequenceID int64
	Bids           [][2]string // [price, quantity]
	Asks           [][2]string
	Checksum       *int64
	EventTimeMS    int64
}

// Funding is a raw funding-rate/mark-price push or poll result.
type Funding struct {
	Envelope
	FundingRate     string
	NextFundingTime int64
	MarkPrice       string
	IndexPrice      string
	EventTimeMS     int64
}

// OpenInterest is a raw polled open-interest reading.
type OpenInterest struct {
	Envelope
	OpenInterest      string
	OpenInterestValue string
	EventTimeMS       int64
}

// Liquidation is a raw forced-liquidation print.
type Liquidation struct {
	Envelope
	Side        string
	Price       string
	Quantity    string
	EventTimeMS int64
}

// LSR is a raw polled long/short-ratio sample.
type LSR struct {
	Envelope
	Period     string
	LongRatio  string
	ShortRatio string
	Variant    string
	EventTimeMS int64
}

// Vol is a raw polled volatility-index sample.
type Vol struct {
	Envelope
	IndexValue  string
	EventTimeMS int64
}
