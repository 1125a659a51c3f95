package manager

import "errors"

// Failure-mode vocabulary from spec §4.1's "Failure modes and signaling".
// All but ErrProtocolError force a transition to Resyncing; ErrProtocolError
// escalates straight to Failed.
var (
	ErrGapDetected          = errors.New("orderbook gap detected")
	ErrSnapshotStale        = errors.New("orderbook snapshot stale")
	ErrChecksumMismatch     = errors.New("orderbook checksum mismatch")
	ErrBufferOverflow       = errors.New("orderbook buffer overflow")
	ErrProtocolError        = errors.New("orderbook protocol error")
	ErrUpstreamDisconnected = errors.New("orderbook upstream disconnected")
	ErrManagerFailed        = errors.New("orderbook manager is in failed state")
	ErrInitialSync          = errors.New("orderbook initial sync")
)
