package strategies

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
)

// TestBinanceScenarioA reproduces spec §8 Scenario A: snapshot lastUpdateId=105,
// buffered E1{U=100,u=110}, E2{U=111,u=115}, then a gapped E3{U=117,u=120}.
func TestBinanceScenarioA(t *testing.T) {
	s := Binance{}
	e1 := &orderbook.Update{FirstUpdateID: 100, LastUpdateID: 110}
	e2 := &orderbook.Update{FirstUpdateID: 111, LastUpdateID: 115}
	e3 := &orderbook.Update{FirstUpdateID: 117, LastUpdateID: 120}

	require.True(t, s.FirstEventQualifies(e1, 105))
	require.False(t, s.FirstEventQualifies(e2, 105))
	require.NoError(t, s.ValidateContinuity(e2, e1.LastUpdateID))
	require.Error(t, s.ValidateContinuity(e3, e2.LastUpdateID))
}

func TestOKXPrevSeqContinuity(t *testing.T) {
	s := NewOKX()
	require.Equal(t, 25, s.ChecksumDepth())

	good := &orderbook.Update{PrevSequenceID: 5000}
	require.NoError(t, s.ValidateContinuity(good, 5000))

	bad := &orderbook.Update{PrevSequenceID: 5002}
	require.Error(t, s.ValidateContinuity(bad, 5000))
}

// TestDeribitSequenceBreak reproduces spec §8 Scenario C.
func TestDeribitSequenceBreak(t *testing.T) {
	s := Deribit{}
	change := &orderbook.Update{PrevSequenceID: 5002, LastUpdateID: 5003}
	require.Error(t, s.ValidateContinuity(change, 5000))
}
