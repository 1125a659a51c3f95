package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
)

// binanceLikeStrategy exercises the two-sided first-event window and strict
// U==prev.u+1 continuity spec §4.1 describes for Binance.
type binanceLikeStrategy struct{}

func (binanceLikeStrategy) Name() string { return "binance-like" }

func (binanceLikeStrategy) FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool {
	return u.FirstUpdateID <= snapshotLastUpdateID+1 && u.LastUpdateID >= snapshotLastUpdateID+1
}

func (binanceLikeStrategy) ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error {
	if u.FirstUpdateID != lastUpdateID+1 {
		return errors.New("non-contiguous update id")
	}
	return nil
}

func (binanceLikeStrategy) ChecksumDepth() int { return 0 }

type fakeFetcher struct {
	snap orderbook.Snapshot
	err  error
	n    int
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context, _ key.Instrument) (orderbook.Snapshot, error) {
	f.n++
	if f.err != nil {
		return orderbook.Snapshot{}, f.err
	}
	return f.snap, nil
}

func testPair() key.Instrument {
	return key.Instrument{Exchange: "binance", MarketType: asset.Spot, Symbol: "BTC-USDT"}
}

func lvl(price, qty string) orderbook.PriceLevel {
	return orderbook.PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func newTestManager(t *testing.T, fetcher SnapshotFetcher) (*Manager, chan any) {
	t.Helper()
	pair := testPair()
	depth := orderbook.DeployDepth("binance", pair, asset.Spot)
	ch := make(chan any, 16)
	cfg := DefaultConfig()
	cfg.BufferCapacity = 4
	cfg.RESTFetchTimeout = time.Second
	m := New("binance", pair, binanceLikeStrategy{}, depth, fetcher, ch, cfg)
	m.backoff = &Backoff{Base: time.Millisecond, Factor: 1, Cap: time.Millisecond}
	return m, ch
}

func TestManagerInitBuffersUntilResync(t *testing.T) {
	fetcher := &fakeFetcher{snap: orderbook.Snapshot{
		Pair:         testPair(),
		LastUpdateID: 100,
		Bids:         []orderbook.PriceLevel{lvl("10.0", "1")},
		Asks:         []orderbook.PriceLevel{lvl("10.1", "1")},
		SnapshotTime: time.Now().UTC(),
	}}
	m, ch := newTestManager(t, fetcher)
	require.Equal(t, Init, m.State())

	ctx := context.Background()
	require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: 99, LastUpdateID: 101}))
	require.Equal(t, Init, m.State())

	require.NoError(t, m.enterResync(ctx, errors.New("initial sync")))
	require.Equal(t, Synced, m.State())
	require.Equal(t, 1, fetcher.n)

	select {
	case v := <-ch:
		_, ok := v.(orderbook.Snapshot)
		require.True(t, ok)
	default:
		t.Fatal("expected a snapshot on the data handler")
	}
}

func TestManagerStartDrivesInitToSynced(t *testing.T) {
	fetcher := &fakeFetcher{snap: orderbook.Snapshot{
		Pair:         testPair(),
		LastUpdateID: 105,
		Bids:         []orderbook.PriceLevel{lvl("10.0", "1")},
		Asks:         []orderbook.PriceLevel{lvl("10.1", "1")},
		SnapshotTime: time.Now().UTC(),
	}}
	m, ch := newTestManager(t, fetcher)
	ctx := context.Background()

	require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: 104, LastUpdateID: 105}))
	require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: 106, LastUpdateID: 110}))
	require.Equal(t, Init, m.State())

	require.NoError(t, m.Start(ctx))
	require.Equal(t, Synced, m.State())
	require.Equal(t, 1, fetcher.n)

	select {
	case v := <-ch:
		snap, ok := v.(orderbook.Snapshot)
		require.True(t, ok)
		require.Equal(t, int64(110), snap.LastUpdateID)
	default:
		t.Fatal("expected a snapshot on the data handler")
	}

	// Start is a no-op once the manager has left Init.
	require.NoError(t, m.Start(ctx))
	require.Equal(t, 1, fetcher.n)
}

func TestManagerGapDetectionForcesResync(t *testing.T) {
	fetcher := &fakeFetcher{snap: orderbook.Snapshot{
		Pair:         testPair(),
		LastUpdateID: 100,
		Bids:         []orderbook.PriceLevel{lvl("10.0", "1")},
		Asks:         []orderbook.PriceLevel{lvl("10.1", "1")},
		SnapshotTime: time.Now().UTC(),
	}}
	m, _ := newTestManager(t, fetcher)
	ctx := context.Background()
	require.NoError(t, m.enterResync(ctx, errors.New("initial sync")))
	require.Equal(t, Synced, m.State())

	// A non-contiguous update (skips 101) must force Resyncing, then a
	// second fetch restores Synced.
	require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: 105, LastUpdateID: 106}))
	require.Equal(t, Synced, m.State())
	require.Equal(t, 2, fetcher.n)
}

func TestManagerBufferOverflowForcesResync(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("network unreachable")}
	m, _ := newTestManager(t, fetcher)
	ctx := context.Background()

	for i := 0; i < m.cfg.BufferCapacity; i++ {
		require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: int64(i), LastUpdateID: int64(i)}))
	}
	require.Equal(t, Init, m.State())

	// One more event arrives with the buffer already full: overflow, and
	// since the fetcher always errors the manager stays Resyncing, not Failed
	// (the attempt budget is 5, this is the first failure).
	require.NoError(t, m.HandleEvent(ctx, &orderbook.Update{FirstUpdateID: 999, LastUpdateID: 999}))
	require.Equal(t, Resyncing, m.State())
	require.Len(t, m.buffer, 0)
}

func TestManagerExhaustedAttemptBudgetFails(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("persistent outage")}
	m, _ := newTestManager(t, fetcher)
	m.attempts = &AttemptWindow{MaxAttempts: 2, Window: time.Minute}
	ctx := context.Background()

	require.NoError(t, m.enterResync(ctx, errors.New("trigger")))
	require.Equal(t, Resyncing, m.State())
	require.ErrorIs(t, m.enterResync(ctx, errors.New("retry")), ErrProtocolError)
	require.Equal(t, Failed, m.State())

	err := m.HandleEvent(ctx, &orderbook.Update{})
	require.ErrorIs(t, err, ErrManagerFailed)
}
