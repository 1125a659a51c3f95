package engine

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
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager"
	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

type noopStrategy struct{}

func (noopStrategy) Name() string { return "noop" }
func (noopStrategy) FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool {
	return u.FirstUpdateID <= snapshotLastUpdateID+1
}
func (noopStrategy) ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error {
	if u.FirstUpdateID != lastUpdateID+1 {
		return errors.New("gap")
	}
	return nil
}
func (noopStrategy) ChecksumDepth() int { return 0 }

type staticFetcher struct{ snap orderbook.Snapshot }

func (f staticFetcher) FetchSnapshot(context.Context, key.Instrument) (orderbook.Snapshot, error) {
	return f.snap, nil
}

func testPair() key.Instrument {
	return key.Instrument{Exchange: "binance", MarketType: asset.Spot, Symbol: "BTC/USDT"}
}

func TestShardKeyForIsStablePerBookAcrossEventTypes(t *testing.T) {
	s, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	tradeKey := shardKeyFor(rawevent.Binance, rawevent.Trade{Envelope: rawevent.Envelope{NativeSymbol: "BTCUSDT"}})
	depthKey := shardKeyFor(rawevent.Binance, rawevent.Depth{Envelope: rawevent.Envelope{NativeSymbol: "BTCUSDT"}})
	require.Equal(t, tradeKey, depthKey)
	require.Equal(t, s.shardIndex(tradeKey), s.shardIndex(depthKey))
}

func TestSupervisorAppliesDepthEventToRegisteredBook(t *testing.T) {
	pair := testPair()
	depth := orderbook.DeployDepth("binance", pair, asset.Spot)
	dataCh := make(chan any, 8)
	cfg := manager.DefaultConfig()
	cfg.BufferCapacity = 4
	fetcher := staticFetcher{snap: orderbook.Snapshot{
		Pair:         pair,
		LastUpdateID: 100,
		Bids:         []orderbook.PriceLevel{{Price: decimal.RequireFromString("30000"), Quantity: decimal.RequireFromString("1")}},
		Asks:         []orderbook.PriceLevel{{Price: decimal.RequireFromString("30001"), Quantity: decimal.RequireFromString("1")}},
		SnapshotTime: time.Now().UTC(),
	}}
	m := manager.New("binance", pair, noopStrategy{}, depth, fetcher, dataCh, cfg)
	require.NoError(t, m.NotifyDisconnected(context.Background()))
	require.Equal(t, manager.Synced, m.State())

	tbl, err := normalize.NewSymbolTable(map[string]string{"BTC/USDT": "BTCUSDT"})
	require.NoError(t, err)
	n := normalize.New(rawevent.Binance, tbl)

	s, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	s.RegisterNormalizer(rawevent.Binance, n)
	s.RegisterBook(pair, m, dataCh)

	s.applyDepth(context.Background(), rawevent.Depth{
		Envelope:      rawevent.Envelope{Exchange: rawevent.Binance, MarketType: "spot", NativeSymbol: "BTCUSDT", IngestTime: time.Now().UTC()},
		FirstUpdateID: 101,
		LastUpdateID:  101,
	})
	require.Equal(t, manager.Synced, m.State())

	books, _, _ := s.Health()
	require.Len(t, books, 1)
	require.False(t, books[0].LastEventTime.IsZero())
}

func TestHealthRegistryTracksDropsAndEmits(t *testing.T) {
	h := NewHealthRegistry()
	pair := testPair()
	h.registerBook(pair)
	h.recordEvent(pair)
	h.recordEmit(pair)
	h.recordDrop(rawevent.Binance, "decode_error")
	h.recordDrop(rawevent.Binance, "decode_error")

	books, _, drops := h.Snapshot(nil)
	require.Len(t, books, 1)
	require.False(t, books[0].LastEventTime.IsZero())
	require.False(t, books[0].LastEmitTime.IsZero())
	require.Equal(t, 2, drops["binance/decode_error"])
}
