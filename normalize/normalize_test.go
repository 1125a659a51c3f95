package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/rawevent"
	"github.com/marketprism/ingestion-fabric/record"
)

func testSymbols(t *testing.T) *SymbolTable {
	t.Helper()
	tbl, err := NewSymbolTable(map[string]string{"BTC/USDT": "BTCUSDT"})
	require.NoError(t, err)
	return tbl
}

// TestBinanceTradeScenarioD reproduces spec §8 Scenario D. TradeTimeMS is
// 1732540800123, the epoch-millisecond value of 2024-11-25T13:20:00.123Z.
func TestBinanceTradeScenarioD(t *testing.T) {
	n := New(rawevent.Binance, testSymbols(t))
	maker := true
	raw := rawevent.Trade{
		Envelope: rawevent.Envelope{
			Exchange:     rawevent.Binance,
			MarketType:   "spot",
			NativeSymbol: "BTCUSDT",
			IngestTime:   time.Now().UTC(),
		},
		TradeID:      "987654321",
		Price:        "30000.10000000",
		Quantity:     "0.12500000",
		BuyerIsMaker: &maker,
		TradeTimeMS:  1732540800123,
	}
	out, err := n.Trade(raw)
	require.NoError(t, err)
	require.Equal(t, "binance", out.Key.Exchange)
	require.Equal(t, "BTC/USDT", out.Key.Symbol)
	require.True(t, out.Price.Equal(decimal.RequireFromString("30000.1")))
	require.True(t, out.Quantity.Equal(decimal.RequireFromString("0.125")))
	require.True(t, out.QuoteQuantity.Equal(decimal.RequireFromString("3750.0125")))
	require.Equal(t, record.SideSell, out.Side)
	require.True(t, out.IsBuyerMaker)
	require.Equal(t, time.Date(2024, 11, 25, 13, 20, 0, 123_000_000, time.UTC), out.TradeTime)
}

func TestTradeUnknownSymbolDropped(t *testing.T) {
	n := New(rawevent.Binance, testSymbols(t))
	raw := rawevent.Trade{
		Envelope: rawevent.Envelope{MarketType: "spot", NativeSymbol: "DOGEUSDT", IngestTime: time.Now().UTC()},
		Price:    "1", Quantity: "1",
	}
	_, err := n.Trade(raw)
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestSymbolCasingBoundary(t *testing.T) {
	tbl := testSymbols(t)
	for _, native := range []string{"btcusdt", "BTCUSDT", "BTC-USDT", "btc-usdt"} {
		canonical, err := tbl.Canonicalize(native)
		require.NoError(t, err, native)
		require.Equal(t, "BTC/USDT", canonical)
	}
	_, err := tbl.Canonicalize("ETHUSDT")
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestSymbolTableRejectsNonBijective(t *testing.T) {
	_, err := NewSymbolTable(map[string]string{
		"BTC/USDT": "BTCUSDT",
		"BTC-USD":  "BTCUSDT",
	})
	require.ErrorIs(t, err, ErrNonBijectiveTable)
}

func TestOKXTakerSideMapping(t *testing.T) {
	n := New(rawevent.OKX, testSymbols(t))
	raw := rawevent.Trade{
		Envelope:  rawevent.Envelope{MarketType: "spot", NativeSymbol: "BTC-USDT", IngestTime: time.Now().UTC()},
		Price:     "100", Quantity: "1",
		TakerSide: "buy",
	}
	out, err := n.Trade(raw)
	require.NoError(t, err)
	require.Equal(t, record.SideBuy, out.Side)
	require.False(t, out.IsBuyerMaker)
}

func TestFundingRateRejectsSpot(t *testing.T) {
	n := New(rawevent.Binance, testSymbols(t))
	_, err := n.FundingRate(rawevent.Funding{
		Envelope:    rawevent.Envelope{MarketType: "spot", NativeSymbol: "BTCUSDT"},
		FundingRate: "0.0001", MarkPrice: "1", IndexPrice: "1",
	})
	require.ErrorIs(t, err, ErrWrongMarketType)
}
