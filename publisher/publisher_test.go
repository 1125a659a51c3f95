package publisher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
)

func testKey() key.Instrument {
	return key.Instrument{Exchange: "binance", MarketType: asset.Spot, Symbol: "BTC/USDT"}
}

func TestSubjectDerivation(t *testing.T) {
	subj := Subject("market", testKey(), RecordTrade)
	require.Equal(t, "market.binance.spot.BTC/USDT.trade", subj)
}

func TestSubjectDerivationVariesByRecordType(t *testing.T) {
	k := testKey()
	require.NotEqual(t, Subject("market", k, RecordTrade), Subject("market", k, RecordBookDelta))
}

func TestCodecForDefaultsToJSON(t *testing.T) {
	require.Equal(t, "json", CodecFor("").Name())
	require.Equal(t, "json", CodecFor("bogus").Name())
	require.Equal(t, "msgpack", CodecFor("msgpack").Name())
}

func TestJSONCodecRoundTripsDecimalAsString(t *testing.T) {
	payload, err := JSONCodec{}.Marshal(map[string]string{"price": "30000.10000000"})
	require.NoError(t, err)
	require.Contains(t, string(payload), `"30000.10000000"`)
}

func TestPublisherRejectsEmptyConnPool(t *testing.T) {
	_, err := New(DefaultConfig(), JSONCodec{})
	require.Error(t, err)
}
