package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/rawevent"
)

func collect(t *testing.T, d Decoder, raw []byte) []any {
	t.Helper()
	var events []any
	err := d.HandleFrame(raw, func(v any) { events = append(events, v) })
	require.NoError(t, err)
	return events
}

func TestBinanceDecoderTrade(t *testing.T) {
	d := BinanceDecoder{MarketType: "spot"}
	raw := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","t":987654321,"p":"30000.10000000","q":"0.12500000","T":1732518000123,"m":true}}`)
	events := collect(t, d, raw)
	require.Len(t, events, 1)
	tr, ok := events[0].(rawevent.Trade)
	require.True(t, ok)
	require.Equal(t, "BTCUSDT", tr.NativeSymbol)
	require.Equal(t, "987654321", tr.TradeID)
	require.NotNil(t, tr.BuyerIsMaker)
	require.True(t, *tr.BuyerIsMaker)
}

func TestBinanceDecoderDepth(t *testing.T) {
	d := BinanceDecoder{MarketType: "spot"}
	raw := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","s":"BTCUSDT","U":100,"u":110,"b":[["30000.0","1.5"]],"a":[["30001.0","2.0"]],"E":1732518000000}}`)
	events := collect(t, d, raw)
	require.Len(t, events, 1)
	dep, ok := events[0].(rawevent.Depth)
	require.True(t, ok)
	require.Equal(t, int64(100), dep.FirstUpdateID)
	require.Equal(t, int64(110), dep.LastUpdateID)
}

func TestOKXDecoderBookSnapshot(t *testing.T) {
	d := OKXDecoder{MarketType: "spot"}
	raw := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[{"bids":[["30000","1"]],"asks":[["30001","1"]],"seqId":1000,"prevSeqId":-1,"ts":"1732518000000"}]}`)
	events := collect(t, d, raw)
	require.Len(t, events, 1)
	dep, ok := events[0].(rawevent.Depth)
	require.True(t, ok)
	require.True(t, dep.IsSnapshot)
	require.Equal(t, int64(1000), dep.LastUpdateID)
}

func TestOKXPongBypassedAsNoop(t *testing.T) {
	d := OKXDecoder{}
	require.NoError(t, d.HandleFrame([]byte("pong"), func(any) { t.Fatal("unexpected emit") }))
}

func TestDeribitDecoderChange(t *testing.T) {
	d := DeribitDecoder{MarketType: "option"}
	raw := []byte(`{"method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms","data":{"type":"change","change_id":5003,"prev_change_id":5002,"bids":[["new","30000","1"]],"asks":[],"timestamp":1732518000000,"instrument_name":"BTC-PERPETUAL"}}}`)
	events := collect(t, d, raw)
	require.Len(t, events, 1)
	dep, ok := events[0].(rawevent.Depth)
	require.True(t, ok)
	require.Equal(t, int64(5003), dep.LastUpdateID)
	require.Equal(t, int64(5002), dep.PrevSequenceID)
}

func TestBackoffDelayCapsAndJitters(t *testing.T) {
	d := backoffDelay(time.Second, 30*time.Second, 10)
	require.LessOrEqual(t, d, 36*time.Second)
}
