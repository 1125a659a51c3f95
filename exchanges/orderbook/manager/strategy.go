package manager

import "github.com/marketprism/ingestion-fabric/exchanges/orderbook"

// Strategy encodes one exchange's order-book synchronization rules: how to
// recognise the first post-snapshot event worth applying, how to validate
// continuity of every subsequent event, and whether (and how deep) a
// checksum should be verified. Binance, OKX and Deribit each get one
// concrete implementation (spec §4.1's per-exchange sync rules); this is
// the trait/interface replacement for runtime-polymorphic adapters that
// spec §9's design notes call for.
type Strategy interface {
	// Name identifies the strategy for logs and metrics.
	Name() string

	// FirstEventQualifies reports whether u is the first buffered event
	// that should be merged on top of a snapshot whose last update id is
	// snapshotLastUpdateID.
	FirstEventQualifies(u *orderbook.Update, snapshotLastUpdateID int64) bool

	// ValidateContinuity checks u follows directly from a book currently at
	// lastUpdateID. A non-nil error means the manager must enter
	// Resyncing.
	ValidateContinuity(u *orderbook.Update, lastUpdateID int64) error

	// ChecksumDepth returns how many top levels per side the strategy
	// checksums, or 0 if the exchange does not supply one (Binance).
	ChecksumDepth() int
}
