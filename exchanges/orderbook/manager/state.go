// Package manager implements the per-(exchange,symbol) OrderBookManager
// state machine described in spec §4.1: it merges a REST snapshot with a
// buffered incremental depth stream into a correct local Depth, detecting
// and repairing gaps per an exchange-specific Strategy, and emits
// orderbook.Snapshot/orderbook.Delta records.
//
// Grounded on exchange/websocket/buffer/buffer.go's Update/LoadSnapshot/
// processBufferUpdate shape (buffer-then-drain, checksum-then-invalidate,
// Publish-then-dataHandler-send) generalized with an explicit state machine
// and exchange-pluggable gap/sequence rules, the Go-native reading of the
// "pluggable exchange adapters" note in spec §9.
package manager

import "fmt"

// State is a BookState's lifecycle position, spec §4.1.
type State uint8

// Lifecycle states.
const (
	Init State = iota
	Synced
	Resyncing
	Failed
)

// String renders the state for logs/health.
func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Synced:
		return "synced"
	case Resyncing:
		return "resyncing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}
