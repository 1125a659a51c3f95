// Package orderbook implements the canonical local limit-order-book
// replica: a concurrency-safe Depth keyed by (exchange, symbol), plus the
// Snapshot/Delta/Update wire-adjacent types the rest of the collector
// exchanges between the WireAdapter, normalizer and Publisher layers.
//
// This is modelled on the teacher's exchange/websocket/buffer.Orderbook and
// exchanges/orderbook.Depth/Base/Update API shape (buffer.go calls
// book.ob.Retrieve/Invalidate/Publish/LoadSnapshot/UpdateBidAskByPrice/
// VerifyOrderbook/IsRESTSnapshot throughout) — those types are not present
// as source in the retrieval pack, so Depth here is built fresh to satisfy
// that exact call contract, generalized from price-level maps to the
// decimal.Decimal fixed-precision fields spec §3 requires.
package orderbook

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/common/key"
)

// Action describes how an incremental update-by-ID should be applied.
// Only used by strategies that key updates by ID rather than by price
// (none of Binance/OKX/Deribit do in this collector; kept for parity with
// the teacher's UpdateBidAskByID/DeleteBidAskByID/InsertBidAskByID family,
// exercised here by price-based Amend/Delete semantics instead).
type Action uint8

// Supported level actions.
const (
	Amend Action = iota
	Delete
)

// PriceLevel is one side of an orderbook: a price and a quantity. A
// quantity of zero means "remove this level" per spec §3.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// IsRemoval reports whether this level instructs deletion of its price.
func (l PriceLevel) IsRemoval() bool { return l.Quantity.Sign() <= 0 }

// Update is one incremental depth message translated into exchange-neutral
// terms, ready for Depth.Apply. FirstUpdateID/LastUpdateID carry Binance's
// U/u, OKX's (none)/seqId, or Deribit's (none)/change_id depending on the
// exchange that produced it; OKX's prevSeqId and Deribit's prev_change_id
// go in PrevSequenceID — see exchanges/orderbook/manager.
type Update struct {
	Pair           key.Instrument
	FirstUpdateID  int64
	LastUpdateID   int64
	PrevSequenceID int64 // OKX prevSeqId / Deribit prev_change_id, when applicable
	Bids           []PriceLevel
	Asks           []PriceLevel
	Checksum       uint32
	HasChecksum    bool
	EventTime      time.Time
	IngestTime     time.Time
	AllowEmpty     bool
}

// Snapshot is the full top-N book emitted on init or after a resync
// (spec §3 OrderBookSnapshot).
type Snapshot struct {
	Pair         key.Instrument
	LastUpdateID int64
	Bids         []PriceLevel
	Asks         []PriceLevel
	SnapshotTime time.Time
	IngestTime   time.Time
}

// Delta is the canonical incremental update emitted for every accepted
// depth event (spec §3 OrderBookDelta).
type Delta struct {
	Pair          key.Instrument
	FirstUpdateID int64
	LastUpdateID  int64
	BidsChanged   []PriceLevel
	AsksChanged   []PriceLevel
	EventTime     time.Time
	IngestTime    time.Time
}

// BestBidAsk summarises the top of book; Book.BestBidAsk computes it on
// demand from a retrieved Book.
type BestBidAsk struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	Mid     decimal.Decimal
	Spread  decimal.Decimal
	Valid   bool
}

// Errors raised out of Depth, matching spec §4.1's failure-mode vocabulary.
var (
	ErrOrderbookInvalid  = errors.New("orderbook invalid, awaiting resync")
	ErrCrossedBook       = errors.New("orderbook crossed: best bid >= best ask")
	ErrEmptySnapshot     = errors.New("orderbook snapshot has no bids or asks")
	ErrDepthNotFound     = errors.New("orderbook depth not found")
	ErrNegativeQuantity  = errors.New("orderbook level has negative quantity")
)
