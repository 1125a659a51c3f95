package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

func TestDepthConvertsLevelsAndChecksum(t *testing.T) {
	n := New(rawevent.Binance, testSymbols(t))
	pair := key.Instrument{Exchange: "binance", MarketType: asset.Spot, Symbol: "BTC/USDT"}
	checksum := int64(123456)
	raw := rawevent.Depth{
		Envelope:      rawevent.Envelope{Exchange: rawevent.Binance, MarketType: "spot", NativeSymbol: "BTCUSDT", IngestTime: time.Now().UTC()},
		FirstUpdateID: 100,
		LastUpdateID:  110,
		Bids:          [][2]string{{"30000.0", "1.5"}},
		Asks:          [][2]string{{"30001.0", "2.0"}},
		Checksum:      &checksum,
	}
	u, err := n.Depth(raw, pair)
	require.NoError(t, err)
	require.Equal(t, int64(100), u.FirstUpdateID)
	require.Equal(t, int64(110), u.LastUpdateID)
	require.Len(t, u.Bids, 1)
	require.True(t, u.HasChecksum)
	require.Equal(t, uint32(123456), u.Checksum)
}

func TestDepthSnapshotFrameAllowsEmpty(t *testing.T) {
	n := New(rawevent.OKX, testSymbols(t))
	pair := key.Instrument{Exchange: "okx", MarketType: asset.Spot, Symbol: "BTC/USDT"}
	raw := rawevent.Depth{IsSnapshot: true}
	u, err := n.Depth(raw, pair)
	require.NoError(t, err)
	require.True(t, u.AllowEmpty)
}
