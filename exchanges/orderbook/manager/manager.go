package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/log"
)

// SnapshotFetcher retrieves a fresh top-of-book snapshot for pair, either
// over REST (Binance) or by requesting one on the existing stream (OKX,
// Deribit). Implementations are expected to have already applied their own
// rate limiting; Manager treats the call as a single bounded I/O operation.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, pair key.Instrument) (orderbook.Snapshot, error)
}

// Config carries the tunables spec §4.1 exposes per OrderBookManager
// instance.
type Config struct {
	MaxDepth         int
	VerifyInvariants bool
	BufferCapacity   int           // default 10000, spec §4.1
	RESTFetchTimeout time.Duration // default 5s, spec §5
	BackpressureMax  int           // consecutive publish timeouts before forced resync, spec Scenario E (default 5)
}

// DefaultConfig returns spec §4.1's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:         400,
		VerifyInvariants: true,
		BufferCapacity:   10000,
		RESTFetchTimeout: 5 * time.Second,
		BackpressureMax:  5,
	}
}

// Manager is one (exchange, symbol) OrderBookManager: the Init → Synced ↔
// Resyncing → Failed state machine from spec §4.1, driven by a single
// owning goroutine per the "single logical task, single-writer" model —
// HandleEvent and NotifyBackpressure must never be called concurrently for
// the same Manager. State() is safe to read from any goroutine (health
// reporting) via the atomic below.
//
// Grounded on exchange/websocket/buffer/buffer.go's Update/processBufferUpdate
// buffer-then-drain shape, restructured around the Strategy interface and an
// explicit state machine instead of buffer.go's flat bool toggles.
type Manager struct {
	name string
	pair key.Instrument

	strategy    Strategy
	depth       *orderbook.Depth
	fetcher     SnapshotFetcher
	dataHandler chan<- any

	cfg      Config
	backoff  *Backoff
	attempts *AttemptWindow
	breaker  *gobreaker.CircuitBreaker[orderbook.Snapshot]

	state atomic.Int32 // manager.State

	// buffer, backpressureStreak: only ever touched by the owning goroutine.
	buffer             []orderbook.Update
	backpressureStreak int
}

// New constructs a Manager in Init state. depth must already be deployed
// (orderbook.DeployDepth) for pair; dataHandler receives orderbook.Snapshot
// and orderbook.Delta values as the manager accepts them.
func New(name string, pair key.Instrument, strategy Strategy, depth *orderbook.Depth, fetcher SnapshotFetcher, dataHandler chan<- any, cfg Config) *Manager {
	depth.AssignOptions(cfg.MaxDepth, cfg.VerifyInvariants)
	m := &Manager{
		name:        name,
		pair:        pair,
		strategy:    strategy,
		depth:       depth,
		fetcher:     fetcher,
		dataHandler: dataHandler,
		cfg:         cfg,
		backoff:     DefaultBackoff(),
		attempts:    DefaultAttemptWindow(),
		buffer:      make([]orderbook.Update, 0, cfg.BufferCapacity),
	}
	m.state.Store(int32(Init))
	breakerSettings := gobreaker.Settings{
		Name:        name + "/" + pair.String() + "/resync",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
	}
	m.breaker = gobreaker.NewCircuitBreaker[orderbook.Snapshot](breakerSettings)
	return m
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Pair returns the (exchange, market type, symbol) this manager owns.
func (m *Manager) Pair() key.Instrument { return m.pair }

// SetAttemptWindow overrides the resync attempt budget DefaultAttemptWindow
// installed at construction, for callers wiring config-driven
// orderbook.resync.max_attempts/window_seconds (spec §6).
func (m *Manager) SetAttemptWindow(w *AttemptWindow) { m.attempts = w }

// HandleEvent processes one incremental depth event from the stream. It is
// the sole entry point that advances Init/Resyncing buffering and Synced
// application.
func (m *Manager) HandleEvent(ctx context.Context, u *orderbook.Update) error {
	switch m.State() {
	case Failed:
		return ErrManagerFailed
	case Init, Resyncing:
		return m.bufferEvent(ctx, u)
	default: // Synced
		return m.applySynced(ctx, u)
	}
}

// NotifyBackpressure is called by the publisher-facing wrapper when a
// publish attempt for this pair's records times out. After cfg.BackpressureMax
// consecutive timeouts it forces a fresh Resync (spec Scenario E:
// "bounded channel between manager and publisher fills ... the manager
// enters Resyncing" — our reading treats repeated publish stalls as the
// forcing signal, since the channel itself is owned by the publisher, not
// the manager).
func (m *Manager) NotifyBackpressure(ctx context.Context) error {
	m.backpressureStreak++
	if m.backpressureStreak < m.cfg.BackpressureMax {
		return nil
	}
	m.backpressureStreak = 0
	log.Warnf(log.OrderbookMgr, "%s %s: publisher backpressure threshold reached, forcing resync", m.name, m.pair)
	return m.enterResync(ctx, orderbook.ErrOrderbookInvalid)
}

// NotifyDisconnected forces Resyncing after the underlying stream connection
// drops and is re-established, since any events missed during the outage
// leave the book stale.
func (m *Manager) NotifyDisconnected(ctx context.Context) error {
	return m.enterResync(ctx, ErrUpstreamDisconnected)
}

// Start kicks the initial REST snapshot fetch that carries a freshly
// constructed Manager from Init to Synced (spec §4.1: "Init → Synced after a
// REST snapshot is applied"). The caller is expected to invoke it once per
// book after that book's adapter has completed its first subscribe, so any
// events buffered during the dial are drained against the snapshot exactly
// like a post-disconnect resync. A no-op once the manager has left Init.
func (m *Manager) Start(ctx context.Context) error {
	if m.State() != Init {
		return nil
	}
	return m.enterResync(ctx, ErrInitialSync)
}

func (m *Manager) bufferEvent(ctx context.Context, u *orderbook.Update) error {
	if len(m.buffer) >= m.cfg.BufferCapacity {
		log.Warnf(log.OrderbookMgr, "%s %s: buffer overflow at capacity %d, forcing resync", m.name, m.pair, m.cfg.BufferCapacity)
		m.buffer = m.buffer[:0]
		return m.enterResync(ctx, ErrBufferOverflow)
	}
	m.buffer = append(m.buffer, *u)
	return nil
}

func (m *Manager) applySynced(ctx context.Context, u *orderbook.Update) error {
	lastID, err := m.depth.LastUpdateID()
	if err != nil {
		return m.enterResync(ctx, fmt.Errorf("%w: %w", ErrProtocolError, err))
	}
	if err := m.strategy.ValidateContinuity(u, lastID); err != nil {
		return m.enterResync(ctx, fmt.Errorf("%w: %w", ErrGapDetected, err))
	}
	if err := m.depth.Apply(u); err != nil {
		return m.enterResync(ctx, fmt.Errorf("%w: %w", ErrProtocolError, err))
	}

	if depth := m.strategy.ChecksumDepth(); depth > 0 && u.HasChecksum {
		book, err := m.depth.Retrieve()
		if err != nil {
			return m.enterResync(ctx, fmt.Errorf("%w: %w", ErrProtocolError, err))
		}
		if orderbook.CRC32(book, depth) != u.Checksum {
			return m.enterResync(ctx, fmt.Errorf("%w: exchange=%s pair=%s", ErrChecksumMismatch, m.name, m.pair))
		}
	}

	m.depth.Publish()
	m.emit(orderbook.Delta{
		Pair:          m.pair,
		FirstUpdateID: u.FirstUpdateID,
		LastUpdateID:  u.LastUpdateID,
		BidsChanged:   u.Bids,
		AsksChanged:   u.Asks,
		EventTime:     u.EventTime,
		IngestTime:    u.IngestTime,
	})
	m.attempts.RecordSuccess()
	m.backoff.Reset()
	return nil
}

// enterResync transitions to Resyncing and performs the snapshot-fetch,
// buffer-drain cycle spec §4.1 describes, escalating to Failed once the
// attempt budget (DefaultAttemptWindow) is exhausted.
func (m *Manager) enterResync(ctx context.Context, reason error) error {
	if m.State() != Resyncing {
		m.state.Store(int32(Resyncing))
		log.Warnf(log.OrderbookMgr, "%s %s: entering resync: %v", m.name, m.pair, reason)
	}

	delay := m.backoff.Next()
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.RESTFetchTimeout)
	snap, err := m.breaker.Execute(func() (orderbook.Snapshot, error) {
		return m.fetcher.FetchSnapshot(fetchCtx, m.pair)
	})
	cancel()
	if err != nil {
		return m.handleResyncFailure(ctx, fmt.Errorf("snapshot fetch: %w", err))
	}

	if err := m.depth.LoadSnapshot(snap.Bids, snap.Asks, snap.LastUpdateID, snap.SnapshotTime); err != nil {
		return m.handleResyncFailure(ctx, fmt.Errorf("load snapshot: %w", err))
	}

	if err := m.drainBuffer(snap.LastUpdateID); err != nil {
		// The buffer itself contained a gap relative to the new snapshot;
		// stay in Resyncing. HandleEvent only buffers while Resyncing, so no
		// new fetch happens until a buffer overflow, a disconnect or
		// backpressure starts another resync cycle.
		log.Warnf(log.OrderbookMgr, "%s %s: resync drain incomplete: %v", m.name, m.pair, err)
		return nil
	}

	book, err := m.depth.Retrieve()
	if err != nil {
		return m.handleResyncFailure(ctx, fmt.Errorf("post-drain retrieve: %w", err))
	}

	m.backoff.Reset()
	m.attempts.RecordSuccess()
	m.backpressureStreak = 0
	m.state.Store(int32(Synced))
	m.depth.Publish()
	m.emit(orderbook.Snapshot{
		Pair:         book.Pair,
		LastUpdateID: book.LastUpdateID,
		Bids:         book.Bids,
		Asks:         book.Asks,
		SnapshotTime: book.SnapshotTime,
		IngestTime:   snap.IngestTime,
	})
	log.Infof(log.OrderbookMgr, "%s %s: resync complete at update_id=%d", m.name, m.pair, book.LastUpdateID)
	return nil
}

func (m *Manager) handleResyncFailure(ctx context.Context, err error) error {
	if m.attempts.RecordFailure(time.Now().UTC()) {
		m.state.Store(int32(Failed))
		m.depth.Invalidate(err)
		log.Errorf(log.OrderbookMgr, "%s %s: resync attempt budget exhausted, manager failed: %v", m.name, m.pair, err)
		return fmt.Errorf("%w: %w", ErrProtocolError, err)
	}
	log.Warnf(log.OrderbookMgr, "%s %s: resync attempt failed, will retry: %v", m.name, m.pair, err)
	return nil
}

// drainBuffer replays buffered events on top of a freshly loaded snapshot,
// discarding everything up to the strategy's first-qualifying event and
// applying the rest in order.
func (m *Manager) drainBuffer(snapshotLastUpdateID int64) error {
	buf := m.buffer
	m.buffer = m.buffer[:0]

	started := false
	for i := range buf {
		u := &buf[i]
		if !started {
			if !m.strategy.FirstEventQualifies(u, snapshotLastUpdateID) {
				continue
			}
			started = true
		} else {
			lastID, err := m.depth.LastUpdateID()
			if err != nil {
				return err
			}
			if err := m.strategy.ValidateContinuity(u, lastID); err != nil {
				return fmt.Errorf("%w: %w", ErrGapDetected, err)
			}
		}
		if err := m.depth.Apply(u); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolError, err)
		}
	}
	return nil
}

func (m *Manager) emit(v any) {
	if m.dataHandler == nil {
		return
	}
	m.dataHandler <- v
}
