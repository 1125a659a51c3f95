package engine

import (
	"context"
	"errors"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/log"
	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/publisher"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// bookAndNormalizer resolves the canonical key, owning book and
// normalizer for one raw event's (exchange, market type, native symbol).
func (s *Supervisor) bookAndNormalizer(ex rawevent.Exchange, marketType, native string) (key.Instrument, *book, *normalize.Normalizer, bool) {
	s.mu.RLock()
	n, ok := s.normalizers[ex]
	s.mu.RUnlock()
	if !ok {
		log.Warnf(log.Supervisor, "%s: no normalizer registered, dropping event", ex)
		return key.Instrument{}, nil, nil, false
	}
	k, err := n.ResolveKey(marketType, native)
	if err != nil {
		s.health.recordDrop(ex, "unresolvable_symbol")
		return key.Instrument{}, nil, nil, false
	}
	s.mu.RLock()
	b, ok := s.books[k]
	s.mu.RUnlock()
	if !ok {
		// Not every native symbol a WireAdapter decodes necessarily has a
		// registered book (e.g. funding/LSR/vol feeds have no OrderBookManager).
		return k, nil, n, true
	}
	return k, b, n, true
}

func (s *Supervisor) applyDepth(ctx context.Context, raw rawevent.Depth) {
	k, b, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok || b == nil {
		return
	}
	u, err := n.Depth(raw, k)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	if err := b.manager.HandleEvent(ctx, &u); err != nil {
		log.Warnf(log.Supervisor, "%s %s: handle depth event: %v", raw.Exchange, k, err)
	}
	s.health.recordEvent(k)
}

func (s *Supervisor) applyTrade(ctx context.Context, raw rawevent.Trade) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.Trade(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordTrade, rec)
}

func (s *Supervisor) applyTicker(ctx context.Context, raw rawevent.Ticker) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.Ticker(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordTicker, rec)
}

func (s *Supervisor) applyFunding(ctx context.Context, raw rawevent.Funding) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.FundingRate(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordFunding, rec)
}

func (s *Supervisor) applyOpenInterest(ctx context.Context, raw rawevent.OpenInterest) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.OpenInterest(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordOpenInterest, rec)
}

func (s *Supervisor) applyLiquidation(ctx context.Context, raw rawevent.Liquidation) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.Liquidation(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordLiquidation, rec)
}

func (s *Supervisor) applyLSR(ctx context.Context, raw rawevent.LSR) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.LSR(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordLSR, rec)
}

func (s *Supervisor) applyVol(ctx context.Context, raw rawevent.Vol) {
	k, _, n, ok := s.bookAndNormalizer(raw.Exchange, raw.MarketType, raw.NativeSymbol)
	if !ok {
		return
	}
	rec, err := n.Vol(raw)
	if err != nil {
		s.health.recordDrop(raw.Exchange, "decode_error")
		return
	}
	s.publish(ctx, k, publisher.RecordVolatility, rec)
}

func (s *Supervisor) publish(ctx context.Context, k key.Instrument, rt publisher.RecordType, rec any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, k, rt, rec); err != nil {
		log.Warnf(log.Supervisor, "publish %s %s failed: %v", k, rt, err)
		if errors.Is(err, publisher.ErrBusBackpressure) {
			s.notifyBackpressure(ctx, k)
		}
	}
}

func (s *Supervisor) notifyBackpressure(ctx context.Context, k key.Instrument) {
	s.mu.RLock()
	b, ok := s.books[k]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := b.manager.NotifyBackpressure(ctx); err != nil {
		log.Warnf(log.Supervisor, "%s: notify backpressure failed: %v", k, err)
	}
}
