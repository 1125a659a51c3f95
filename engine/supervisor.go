// Package engine implements the Supervisor/Collector module (spec §4.6):
// it owns every exchange's WireAdapter and OrderBookManager, routes
// decoded events to the book that owns them, runs the scheduled REST
// polling jobs, reports per-book/per-adapter health, and drives graceful
// shutdown.
//
// Grounded on the teacher's engine-level wiring pattern (one long-lived
// object owning websocket connections plus per-pair managers) but
// restructured around an explicit fixed-size worker pool sharded by
// rendezvous hashing instead of one goroutine per pair, so adding or
// removing a symbol does not reshuffle every other symbol's assignment.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
	"github.com/gofrs/uuid"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager"
	"github.com/marketprism/ingestion-fabric/exchanges/stream"
	"github.com/marketprism/ingestion-fabric/log"
	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/publisher"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// Config carries the Supervisor-level tunables spec §4.6/§5 expose.
type Config struct {
	Workers      int           // fixed worker pool size, default 8
	ShardQueue   int           // per-worker event queue depth, default 1024
	DrainTimeout time.Duration // default 10s, spec §5 "drain up to drain_timeout"
}

// DefaultConfig returns spec-documented defaults.
func DefaultConfig() Config {
	return Config{Workers: 8, ShardQueue: 1024, DrainTimeout: 10 * time.Second}
}

// book pairs a Manager with the channel it emits orderbook.Snapshot/Delta
// values on, so the Supervisor can forward them to the Publisher.
type book struct {
	pair    key.Instrument
	manager *manager.Manager
	data    <-chan any
}

// adapterHandle tracks one running WireAdapter plus the channel it
// publishes decoded events onto.
type adapterHandle struct {
	exchange rawevent.Exchange
	adapter  *stream.Adapter
	events   chan any
}

// Supervisor is the Go-native Collector: it wires adapters, managers, the
// normalizer per exchange and the Publisher together, and owns the
// fixed-size worker pool that applies events to books in parallel while
// preserving per-book ordering.
type Supervisor struct {
	RunID uuid.UUID

	cfg   Config
	ring  *rendezvous.Rendezvous
	shard []chan any

	mu          sync.RWMutex
	books       map[key.Instrument]*book
	normalizers map[rawevent.Exchange]*normalize.Normalizer
	adapters    []*adapterHandle
	jobs        []*pollJob

	pub    *publisher.Publisher
	health *HealthRegistry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Supervisor. pub may be nil in tests that do not exercise
// publish.
func New(cfg Config, pub *publisher.Publisher) (*Supervisor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ShardQueue <= 0 {
		cfg.ShardQueue = 1024
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	runID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("engine: generate run id: %w", err)
	}

	shardNames := make([]string, cfg.Workers)
	shard := make([]chan any, cfg.Workers)
	for i := range shard {
		shardNames[i] = fmt.Sprintf("shard-%d", i)
		shard[i] = make(chan any, cfg.ShardQueue)
	}

	return &Supervisor{
		RunID:       runID,
		cfg:         cfg,
		ring:        rendezvous.New(shardNames, xxhash.Sum64String),
		shard:       shard,
		books:       make(map[key.Instrument]*book),
		normalizers: make(map[rawevent.Exchange]*normalize.Normalizer),
		pub:         pub,
		health:      NewHealthRegistry(),
	}, nil
}

// RegisterNormalizer binds one exchange's pure translation layer.
func (s *Supervisor) RegisterNormalizer(ex rawevent.Exchange, n *normalize.Normalizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalizers[ex] = n
}

// RegisterBook adds a (pair, Manager) the Supervisor should route events to
// and report health for. data is the channel m.New was constructed with as
// its dataHandler; the Supervisor forwards every orderbook.Snapshot/Delta
// it carries to the Publisher.
func (s *Supervisor) RegisterBook(pair key.Instrument, m *manager.Manager, data <-chan any) {
	s.mu.Lock()
	s.books[pair] = &book{pair: pair, manager: m, data: data}
	s.mu.Unlock()
	s.health.registerBook(pair)
}

// RegisterAdapter wires one exchange's WireAdapter, creating the channel it
// publishes onto and the reconnect callback that forces every one of this
// exchange's books into Resyncing (spec §4.2: "notify OrderBookManagers to
// enter Resyncing" on reconnect).
func (s *Supervisor) RegisterAdapter(ex rawevent.Exchange, exchangeName, url string, decoder stream.Decoder, cfg stream.Config) {
	events := make(chan any, s.cfg.ShardQueue)
	onReconnect := func() { s.forceResyncAll(ex) }
	a := stream.New(exchangeName, url, decoder, events, onReconnect, cfg)
	handle := &adapterHandle{exchange: ex, adapter: a, events: events}
	s.mu.Lock()
	s.adapters = append(s.adapters, handle)
	s.mu.Unlock()
	s.health.registerAdapter(exchangeName)
}

// RegisterJob adds a scheduled REST polling job (funding/open interest/
// liquidation poll/LSR/volatility, spec §6 schedules).
func (s *Supervisor) RegisterJob(j *pollJob) {
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
}

// Run connects every adapter, kicks each registered book's initial REST
// snapshot fetch, starts the worker pool and scheduled jobs, and blocks
// until ctx is cancelled, at which point it drains in-flight work for up to
// cfg.DrainTimeout before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.RLock()
	adapters := append([]*adapterHandle(nil), s.adapters...)
	jobs := append([]*pollJob(nil), s.jobs...)
	s.mu.RUnlock()

	for _, h := range adapters {
		if err := h.adapter.Connect(runCtx); err != nil {
			cancel()
			return fmt.Errorf("engine: connect %s: %w", h.exchange, err)
		}
		s.wg.Add(1)
		go s.dispatchLoop(runCtx, h)
	}

	for i := range s.shard {
		s.wg.Add(1)
		go s.workerLoop(runCtx, i)
	}

	s.mu.RLock()
	books := make([]*book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	s.mu.RUnlock()
	for _, b := range books {
		if b.data == nil {
			continue
		}
		s.wg.Add(1)
		go s.forwardBookData(runCtx, b)
	}
	for _, b := range books {
		go func(b *book) {
			if err := b.manager.Start(runCtx); err != nil {
				log.Warnf(log.Supervisor, "initial sync for %s failed: %v", b.pair, err)
			}
		}(b)
	}

	for _, j := range jobs {
		s.wg.Add(1)
		go s.runJob(runCtx, j)
	}

	log.Infof(log.Supervisor, "run %s started: %d adapters, %d books, %d workers", s.RunID, len(adapters), len(s.books), s.cfg.Workers)
	<-runCtx.Done()
	return s.shutdown()
}

// Health returns a point-in-time snapshot of every book's and adapter's
// health plus global drop counters (spec §4.6).
func (s *Supervisor) Health() ([]BookHealth, []AdapterHealth, map[string]int) {
	s.mu.RLock()
	managers := make(map[key.Instrument]*manager.Manager, len(s.books))
	for pair, b := range s.books {
		managers[pair] = b.manager
	}
	s.mu.RUnlock()
	return s.health.Snapshot(managers)
}

// Stop cancels the run context, triggering the same drain-then-stop path
// Run's context cancellation would.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) shutdown() error {
	log.Infof(log.Supervisor, "run %s: shutting down, draining up to %s", s.RunID, s.cfg.DrainTimeout)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.DrainTimeout):
		log.Warnf(log.Supervisor, "run %s: drain timeout exceeded, aborting remaining work", s.RunID)
	}
	s.mu.RLock()
	adapters := s.adapters
	s.mu.RUnlock()
	for _, h := range adapters {
		_ = h.adapter.Close()
	}
	if s.pub != nil {
		_ = s.pub.Close()
	}
	return nil
}

func (s *Supervisor) forceResyncAll(ex rawevent.Exchange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for pair, b := range s.books {
		if pair.Exchange != string(ex) {
			continue
		}
		go func(b *book) {
			if err := b.manager.NotifyDisconnected(context.Background()); err != nil {
				log.Warnf(log.Supervisor, "forced resync for %s failed: %v", b.pair, err)
			}
		}(b)
	}
}
