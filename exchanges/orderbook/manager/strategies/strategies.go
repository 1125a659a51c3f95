// Package strategies implements the three concrete manager.Strategy
// exchanges this collector supports, each enforcing the per-exchange
// sequencing and checksum rules spec §4.1 documents. This is the
// trait/interface replacement for the source's runtime-polymorphic
// per-exchange adapters (spec §9).
package strategies

import (
	"fmt"

	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager"
)

// Binance implements spec §4.1's Binance spot/linear/inverse rules: the
// first applied event must straddle the snapshot's lastUpdateId
// (U <= L+1 <= u), and every later event must have U == prev.u + 1.
type Binance struct{}

// Name identifies the strategy for logs and metrics.
func (Binance) Name() string { return "binance" }

// FirstEventQualifies reports whether u straddles the snapshot boundary,
// i.e. U <= L+1 <= u.
func (Binance) FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool {
	return u.FirstUpdateID <= snapshotLastUpdateID+1 && u.LastUpdateID >= snapshotLastUpdateID+1
}

// ValidateContinuity requires the incoming event's first id to directly
// follow the book's current last update id.
func (Binance) ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error {
	if u.FirstUpdateID != lastUpdateID+1 {
		return fmt.Errorf("binance: expected U=%d, got U=%d (u=%d)", lastUpdateID+1, u.FirstUpdateID, u.LastUpdateID)
	}
	return nil
}

// ChecksumDepth reports that Binance depth streams carry no checksum.
func (Binance) ChecksumDepth() int { return 0 }

// OKX implements spec §4.1's OKX books-channel rule: each update frame
// carries prevSeqId which must equal the book's current last_update_id,
// and optionally a checksum over the top 25 levels per side.
type OKX struct {
	// Depth is the number of top levels per side the exchange checksums
	// (25 per spec §4.1); 0 disables checksum verification while still
	// enforcing prevSeqId continuity, per spec §9's Open Question.
	Depth int
}

// NewOKX returns the OKX strategy with the documented default checksum depth.
func NewOKX() OKX { return OKX{Depth: 25} }

// Name identifies the strategy for logs and metrics.
func (OKX) Name() string { return "okx" }

// FirstEventQualifies accepts the first buffered event whose PrevSequenceID
// matches the freshly loaded snapshot's last update id; OKX's books channel
// always emits a full snapshot frame on (re)subscribe, so any update framed
// against it is eligible once its prevSeqId lines up.
func (OKX) FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool {
	return u.PrevSequenceID == snapshotLastUpdateID
}

// ValidateContinuity requires prevSeqId to equal the book's current last
// update id.
func (OKX) ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error {
	if u.PrevSequenceID != lastUpdateID {
		return fmt.Errorf("okx: expected prevSeqId=%d, got %d", lastUpdateID, u.PrevSequenceID)
	}
	return nil
}

// ChecksumDepth reports the configured checksum depth (0 disables it, but
// prevSeqId continuity is still enforced in ValidateContinuity).
func (s OKX) ChecksumDepth() int { return s.Depth }

// Deribit implements spec §4.1's Deribit book-channel rule: each "change"
// frame carries prev_change_id which must equal the book's current
// last_update_id. A "snapshot" frame does not replace the book: the manager
// has no separate handling for it and checks it like a change frame, and
// the book is replaced only by the REST snapshot its resync path loads.
type Deribit struct{}

// Name identifies the strategy for logs and metrics.
func (Deribit) Name() string { return "deribit" }

// FirstEventQualifies accepts the first buffered change event whose
// prev_change_id matches the freshly loaded snapshot's change_id.
func (Deribit) FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool {
	return u.PrevSequenceID == snapshotLastUpdateID
}

// ValidateContinuity requires prev_change_id to equal the book's current
// change_id.
func (Deribit) ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error {
	if u.PrevSequenceID != lastUpdateID {
		return fmt.Errorf("deribit: expected prev_change_id=%d, got %d", lastUpdateID, u.PrevSequenceID)
	}
	return nil
}

// ChecksumDepth reports that Deribit book channels carry no checksum.
func (Deribit) ChecksumDepth() int { return 0 }

var (
	_ manager.Strategy = Binance{}
	_ manager.Strategy = OKX{}
	_ manager.Strategy = Deribit{}
)
