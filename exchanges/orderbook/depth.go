package orderbook

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
)

// Book is a point-in-time, fully materialised view of a local orderbook,
// the entity described in spec §3: best_bid < best_ask, no zero-quantity
// levels retained, depth truncated to max_depth_levels.
type Book struct {
	Pair         key.Instrument
	LastUpdateID int64
	Bids         []PriceLevel // sorted descending by price
	Asks         []PriceLevel // sorted ascending by price
	SnapshotTime time.Time
}

// BestBidAsk derives the top-of-book summary fields spec §4.1 requires on
// every snapshot emission.
func (b Book) BestBidAsk() BestBidAsk {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return BestBidAsk{}
	}
	bid, ask := b.Bids[0].Price, b.Asks[0].Price
	return BestBidAsk{
		BestBid: bid,
		BestAsk: ask,
		Mid:     bid.Add(ask).Div(decimal.NewFromInt(2)),
		Spread:  ask.Sub(bid),
		Valid:   true,
	}
}

// Verify checks the invariants spec §3/§8 require of any observable Book.
func (b Book) Verify(maxDepth int) error {
	for _, l := range b.Bids {
		if l.Quantity.Sign() < 0 {
			return fmt.Errorf("%w: bid %s", ErrNegativeQuantity, l.Price)
		}
	}
	for _, l := range b.Asks {
		if l.Quantity.Sign() < 0 {
			return fmt.Errorf("%w: ask %s", ErrNegativeQuantity, l.Price)
		}
	}
	if maxDepth > 0 {
		if len(b.Bids) > maxDepth || len(b.Asks) > maxDepth {
			return fmt.Errorf("orderbook exceeds max depth %d: bids=%d asks=%d", maxDepth, len(b.Bids), len(b.Asks))
		}
	}
	if len(b.Bids) > 0 && len(b.Asks) > 0 && b.Bids[0].Price.Cmp(b.Asks[0].Price) >= 0 {
		return fmt.Errorf("%w: bid=%s ask=%s", ErrCrossedBook, b.Bids[0].Price, b.Asks[0].Price)
	}
	return nil
}

// Depth is the concurrency-safe, exclusively-owned local book for one
// (exchange, symbol). Exactly one OrderBookManager task mutates a given
// Depth; every other access goes through its locked accessor methods,
// mirroring the teacher's exchanges/orderbook.Depth usage throughout
// exchange/websocket/buffer/buffer.go.
type Depth struct {
	mtx sync.RWMutex

	exchangeName string
	pair         key.Instrument
	asset        asset.Item
	maxDepth     int

	bids []PriceLevel
	asks []PriceLevel

	lastUpdateID int64
	lastUpdated  time.Time
	lastPushed   time.Time

	// restSourced is true immediately after LoadSnapshot and flips false once
	// an incremental Update has been applied — mirrors the teacher's
	// IsRESTSnapshot/illiquidity-timer signal in buffer.go.
	restSourced bool

	verify   bool
	invalid  error
	depthCnt int64 // monotonically increasing publish counter, for health/lag metrics
}

// DeployDepth constructs a new, empty Depth for a (exchange, pair) pair,
// mirroring orderbook.DeployDepth's call shape in buffer.go's LoadSnapshot.
func DeployDepth(exchangeName string, pair key.Instrument, a asset.Item) *Depth {
	return &Depth{exchangeName: exchangeName, pair: pair, asset: a}
}

// AssignOptions configures depth-level options from a loaded snapshot's
// metadata (max depth, verification toggle).
func (d *Depth) AssignOptions(maxDepth int, verify bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.maxDepth = maxDepth
	d.verify = verify
}

// GetName returns the owning exchange's name.
func (d *Depth) GetName() string { return d.exchangeName }

// LoadSnapshot replaces the local book wholesale — called on Init and on
// every Resync after a fresh REST (or channel) snapshot arrives.
func (d *Depth) LoadSnapshot(bids, asks []PriceLevel, lastUpdateID int64, snapshotTime time.Time) error {
	if len(bids) == 0 && len(asks) == 0 {
		return ErrEmptySnapshot
	}
	bids = append([]PriceLevel(nil), bids...)
	asks = append([]PriceLevel(nil), asks...)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.bids = truncate(bids, d.maxDepth)
	d.asks = truncate(asks, d.maxDepth)
	d.lastUpdateID = lastUpdateID
	d.lastUpdated = snapshotTime
	d.restSourced = true
	d.invalid = nil
	return nil
}

// Apply merges one incremental Update's changed levels into the book.
// Gap/sequence validation is the calling ExchangeStrategy's job; Apply only
// performs the level mutation, truncation and invariant check spec §4.1's
// "Apply semantics (common)" describes.
func (d *Depth) Apply(u *Update) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.invalid != nil {
		return fmt.Errorf("%w: %w", ErrOrderbookInvalid, d.invalid)
	}

	d.bids = applySide(d.bids, u.Bids, true)
	d.asks = applySide(d.asks, u.Asks, false)
	d.bids = truncate(d.bids, d.maxDepth)
	d.asks = truncate(d.asks, d.maxDepth)
	d.lastUpdateID = u.LastUpdateID
	d.lastUpdated = u.EventTime
	d.restSourced = false

	if d.verify {
		if err := d.bookLocked().Verify(d.maxDepth); err != nil {
			d.invalid = err
			return err
		}
	}
	return nil
}

// applySide inserts/updates/deletes levels in a price-sorted slice. desc
// selects bid ordering (descending) vs ask ordering (ascending).
func applySide(side []PriceLevel, changes []PriceLevel, desc bool) []PriceLevel {
	less := func(a, b decimal.Decimal) bool {
		if desc {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	}
	for _, chg := range changes {
		idx := sort.Search(len(side), func(i int) bool { return !less(side[i].Price, chg.Price) })
		found := idx < len(side) && side[idx].Price.Equal(chg.Price)
		switch {
		case chg.IsRemoval():
			if found {
				side = append(side[:idx], side[idx+1:]...)
			}
		case found:
			side[idx].Quantity = chg.Quantity
		default:
			side = append(side, PriceLevel{})
			copy(side[idx+1:], side[idx:])
			side[idx] = chg
		}
	}
	return side
}

func truncate(side []PriceLevel, maxDepth int) []PriceLevel {
	if maxDepth > 0 && len(side) > maxDepth {
		return side[:maxDepth]
	}
	return side
}

// Retrieve returns an immutable snapshot copy of the current book.
func (d *Depth) Retrieve() (Book, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if d.invalid != nil {
		return Book{}, fmt.Errorf("%w: %w", ErrOrderbookInvalid, d.invalid)
	}
	return d.bookLocked(), nil
}

func (d *Depth) bookLocked() Book {
	return Book{
		Pair:         d.pair,
		LastUpdateID: d.lastUpdateID,
		Bids:         append([]PriceLevel(nil), d.bids...),
		Asks:         append([]PriceLevel(nil), d.asks...),
		SnapshotTime: d.lastUpdated,
	}
}

// LastUpdateID returns the last applied update id under lock.
func (d *Depth) LastUpdateID() (int64, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if d.invalid != nil {
		return 0, fmt.Errorf("%w: %w", ErrOrderbookInvalid, d.invalid)
	}
	return d.lastUpdateID, nil
}

// IsRESTSnapshot reports whether the book's current state came from the
// last-loaded snapshot with no incremental updates merged since — the
// teacher's illiquidity signal in buffer.go's Update method.
func (d *Depth) IsRESTSnapshot() (bool, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if d.invalid != nil {
		return false, fmt.Errorf("%w: %w", ErrOrderbookInvalid, d.invalid)
	}
	return d.restSourced, nil
}

// VerifyOrderbook reports whether per-update invariant verification is enabled.
func (d *Depth) VerifyOrderbook() bool {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.verify
}

// Invalidate marks the book unusable until the next LoadSnapshot, recording
// the error that forced the resync (gap, checksum mismatch, backpressure...).
func (d *Depth) Invalidate(reason error) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.invalid = reason
	return reason
}

// Publish marks the book as having been handed off to a consumer, bumping
// the internal publish counter used for lag/health metrics.
func (d *Depth) Publish() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.lastPushed = time.Now().UTC()
	d.depthCnt++
}

// LastPushed returns the last time Publish was called.
func (d *Depth) LastPushed() time.Time {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.lastPushed
}
