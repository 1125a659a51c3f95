package engine

import (
	"context"

	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/log"
	"github.com/marketprism/ingestion-fabric/publisher"
)

// forwardBookData drains one book's Manager data channel, publishing each
// orderbook.Snapshot as a book_snapshot record and each orderbook.Delta as
// a book_delta record (spec §4.5's record_type set).
func (s *Supervisor) forwardBookData(ctx context.Context, b *book) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-b.data:
			if !ok {
				return
			}
			switch rec := v.(type) {
			case orderbook.Snapshot:
				s.publish(ctx, b.pair, publisher.RecordBookSnapshot, rec)
			case orderbook.Delta:
				s.publish(ctx, b.pair, publisher.RecordBookDelta, rec)
			default:
				log.Warnf(log.Supervisor, "%s: unexpected book data value %T", b.pair, rec)
			}
			s.health.recordEmit(b.pair)
		}
	}
}
