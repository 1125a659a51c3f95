package engine

import (
	"context"
	"strconv"

	"github.com/marketprism/ingestion-fabric/log"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// dispatchLoop drains one adapter's decoded-event channel and routes each
// value to the worker shard owning its (exchange, symbol) pair, preserving
// per-book ordering (spec §4.5's ordering contract) since rendezvous
// hashing always maps a given pair to the same shard.
func (s *Supervisor) dispatchLoop(ctx context.Context, h *adapterHandle) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			s.route(ctx, h.exchange, ev)
		}
	}
}

// route resolves the shard for ev's pair (when it carries one) and
// non-blockingly enqueues it, counting drops toward health (spec §4.6
// "drop counters by reason").
func (s *Supervisor) route(ctx context.Context, ex rawevent.Exchange, ev any) {
	idx := s.shardIndex(shardKeyFor(ex, ev))
	select {
	case s.shard[idx] <- ev:
	case <-ctx.Done():
	default:
		s.health.recordDrop(ex, "shard_queue_full")
		log.Warnf(log.Supervisor, "%s: shard %d queue full, dropping event", ex, idx)
	}
}

func (s *Supervisor) shardIndex(routingKey string) int {
	name := s.ring.Lookup(routingKey)
	for i := range s.shard {
		if name == "shard-"+strconv.Itoa(i) {
			return i
		}
	}
	return 0
}

func shardKeyFor(ex rawevent.Exchange, ev any) string {
	nativeSymbol := func(env rawevent.Envelope) string { return env.NativeSymbol }
	switch v := ev.(type) {
	case rawevent.Trade:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.Ticker:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.Depth:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.Funding:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.OpenInterest:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.Liquidation:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.LSR:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	case rawevent.Vol:
		return string(ex) + "/" + nativeSymbol(v.Envelope)
	default:
		return string(ex) // adapter-level errors: any shard is fine
	}
}

// workerLoop applies every event landing on shard idx sequentially,
// guaranteeing a given book never has HandleEvent called concurrently from
// two different goroutines.
func (s *Supervisor) workerLoop(ctx context.Context, idx int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.shard[idx]:
			if !ok {
				return
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *Supervisor) apply(ctx context.Context, ev any) {
	switch v := ev.(type) {
	case rawevent.Depth:
		s.applyDepth(ctx, v)
	case rawevent.Trade:
		s.applyTrade(ctx, v)
	case rawevent.Ticker:
		s.applyTicker(ctx, v)
	case rawevent.Funding:
		s.applyFunding(ctx, v)
	case rawevent.OpenInterest:
		s.applyOpenInterest(ctx, v)
	case rawevent.Liquidation:
		s.applyLiquidation(ctx, v)
	case rawevent.LSR:
		s.applyLSR(ctx, v)
	case rawevent.Vol:
		s.applyVol(ctx, v)
	default:
		// Adapter error values (AuthError, MalformedFrame, ...) are
		// observed for health only.
		s.health.recordAdapterError(ev)
	}
}
