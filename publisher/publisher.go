// Package publisher implements the Publisher module (spec §4.5): subject
// and key derivation from an InstrumentKey and record type, handing the
// encoded payload off to a JetStream-class bus with per-subject ordering
// preserved end to end.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nats-io/nats.go"

	"github.com/marketprism/ingestion-fabric/common/key"
	logpkg "github.com/marketprism/ingestion-fabric/log"
)

// RecordType is the closed set of canonical record kinds a subject can carry.
type RecordType string

// Supported record types.
const (
	RecordTrade        RecordType = "trade"
	RecordTicker       RecordType = "ticker"
	RecordBookSnapshot RecordType = "book_snapshot"
	RecordBookDelta    RecordType = "book_delta"
	RecordFunding      RecordType = "funding"
	RecordOpenInterest RecordType = "oi"
	RecordLiquidation  RecordType = "liquidation"
	RecordLSR          RecordType = "lsr"
	RecordVolatility   RecordType = "vol"
)

// ErrBusBackpressure is returned when the outstanding-publish window for a
// subject family is exhausted before publish_timeout elapses.
var ErrBusBackpressure = errors.New("publisher: bus backpressure")

// Subject derives "market.{exchange}.{market_type}.{symbol}.{record_type}".
func Subject(prefix string, k key.Instrument, rt RecordType) string {
	return fmt.Sprintf("%s.%s.%s.%s.%s", prefix, k.Exchange, k.MarketType.String(), k.Symbol, rt)
}

// Codec encodes a canonical record payload for bus transport. Both
// implementations are self-describing and serialize decimals as strings.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
}

// Config controls Publisher construction.
type Config struct {
	SubjectPrefix  string
	PublishTimeout time.Duration // default 5s, spec §6 bus.publish_timeout
	MaxInFlight    int           // default 512 per subject family, spec §4.6
	Conns          []*nats.Conn  // small pool, sharded by subject hash
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{SubjectPrefix: "market", PublishTimeout: 5 * time.Second, MaxInFlight: 512}
}

// Publisher hands canonical records to the bus, applying subject/key
// derivation and bounded per-subject-family backpressure.
type Publisher struct {
	cfg   Config
	codec Codec

	inflight []chan struct{} // one bounded semaphore per connection shard
}

// New constructs a Publisher over an already-connected pool of NATS
// connections and a payload codec.
func New(cfg Config, codec Codec) (*Publisher, error) {
	if len(cfg.Conns) == 0 {
		return nil, errors.New("publisher: at least one bus connection required")
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 512
	}
	p := &Publisher{cfg: cfg, codec: codec, inflight: make([]chan struct{}, len(cfg.Conns))}
	for i := range p.inflight {
		p.inflight[i] = make(chan struct{}, cfg.MaxInFlight)
	}
	return p, nil
}

// shardFor picks a connection by hashing the subject, so all publishes for
// a given (key, record_type) traverse the same connection and preserve
// order, while spreading load across the pool (spec §4.5, DOMAIN STACK).
func (p *Publisher) shardFor(subject string) int {
	h := xxhash.Sum64String(subject)
	return int(h % uint64(len(p.cfg.Conns)))
}

// Publish encodes v and publishes it on the subject derived from k and rt.
// It blocks until either a slot in the subject family's in-flight window
// opens up, ctx is done, or publish_timeout elapses — whichever is first —
// returning ErrBusBackpressure if the window never opens in time.
func (p *Publisher) Publish(ctx context.Context, k key.Instrument, rt RecordType, v any) error {
	subject := Subject(p.cfg.SubjectPrefix, k, rt)
	shard := p.shardFor(subject)
	sem := p.inflight[shard]

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: subject %s", ErrBusBackpressure, subject)
	}
	defer func() { <-sem }()

	payload, err := p.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("publisher: encode %s: %w", subject, err)
	}
	conn := p.cfg.Conns[shard]
	if err := conn.Publish(subject, payload); err != nil {
		logpkg.Errorf(logpkg.PublisherSys, "publish %s failed: %v", subject, err)
		return fmt.Errorf("publisher: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains nothing (at-least-once bus, no durable state here) and
// flushes every underlying connection so callers get a clean shutdown.
func (p *Publisher) Close() error {
	var firstErr error
	for _, c := range p.cfg.Conns {
		if err := c.FlushTimeout(2 * time.Second); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
