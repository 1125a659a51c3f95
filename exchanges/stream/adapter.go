package stream

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/marketprism/ingestion-fabric/log"
)

// Decoder is the exchange-specific half of a WireAdapter: it knows how to
// frame subscriptions, how to answer the exchange's heartbeat scheme, and
// how to turn one raw inbound frame into zero or more rawevent.* values
// (spec §4.2/§4.3's "typed raw events"). Binance, OKX and Deribit each get
// one concrete Decoder.
type Decoder interface {
	// Subscriptions returns the wire messages to send immediately after
	// Dial (and again after every reconnect).
	Subscriptions() []any

	// HandleFrame decodes one raw inbound frame, invoking emit once per
	// decoded rawevent.* value. A non-nil error is a DecodeError (spec
	// §4.3); the frame is dropped and the caller continues reading.
	HandleFrame(raw []byte, emit func(any)) error

	// Heartbeat returns this exchange's outbound ping cadence and payload
	// builder, or a zero Heartbeat if the exchange only requires answering
	// the server's own pings (handled inside HandleFrame).
	Heartbeat() Heartbeat
}

// Heartbeat describes an adapter-initiated keepalive (spec §4.2: "OKX: send
// ping every 20s; Deribit: send public/test").
type Heartbeat struct {
	Interval time.Duration
	Build    func() (messageType int, payload []byte)
}

// Errors raised to the Supervisor (spec §4.2's "Errors raised to
// Supervisor").
type (
	// AuthError indicates a rejected authenticated subscription.
	AuthError struct{ Err error }
	// SubscribeRejected indicates the exchange rejected a subscription frame.
	SubscribeRejected struct{ Err error }
	// ServerError indicates an exchange-reported server-side error.
	ServerError struct{ Err error }
	// RateLimited indicates the exchange rejected a request for exceeding
	// its own rate limits (distinct from our own ratelimit.Limiter).
	RateLimited struct{ Err error }
	// MalformedFrame indicates a frame that failed to decode at all.
	MalformedFrame struct{ Err error }
	// UpstreamDisconnected indicates the read loop observed a dropped
	// connection (server close, idle timeout, network error).
	UpstreamDisconnected struct{ Err error }
)

func (e AuthError) Error() string             { return fmt.Sprintf("auth error: %v", e.Err) }
func (e SubscribeRejected) Error() string      { return fmt.Sprintf("subscribe rejected: %v", e.Err) }
func (e ServerError) Error() string           { return fmt.Sprintf("server error: %v", e.Err) }
func (e RateLimited) Error() string           { return fmt.Sprintf("rate limited: %v", e.Err) }
func (e MalformedFrame) Error() string        { return fmt.Sprintf("malformed frame: %v", e.Err) }
func (e UpstreamDisconnected) Error() string  { return fmt.Sprintf("upstream disconnected: %v", e.Err) }

// Config carries the tunables spec §4.2/§5 expose per adapter instance.
type Config struct {
	ReadIdleTimeout time.Duration // default 90s, spec §4.2
	BackoffBase     time.Duration // default 1s
	BackoffCap      time.Duration // default 60s
	ProxyURL        string
}

// DefaultConfig returns spec §4.2's documented defaults.
func DefaultConfig() Config {
	return Config{ReadIdleTimeout: 90 * time.Second, BackoffBase: time.Second, BackoffCap: 60 * time.Second}
}

// Adapter is the Go-native WireAdapter: it owns one Connection, runs the
// reconnect/backoff/heartbeat loop, and feeds decoded events onto a shared
// output channel. Generalizes the teacher's per-exchange WsConnect/
// wsReadData goroutine pair (exchanges/hyperliquid/websocket.go) into a
// single reusable scaffold parameterized by Decoder.
type Adapter struct {
	exchangeName string
	url          string
	decoder      Decoder
	cfg          Config
	out          chan<- any

	// onReconnect is invoked after every successful reconnect+resubscribe,
	// giving the Supervisor the chance to tell affected OrderBookManagers
	// to enter Resyncing (spec §4.2: "notify OrderBookManagers to enter
	// Resyncing").
	onReconnect func()

	conn *Connection
}

// New constructs an Adapter. out receives every rawevent.* value the
// decoder produces, plus AuthError/SubscribeRejected/ServerError/
// RateLimited/MalformedFrame/UpstreamDisconnected values on error.
func New(exchangeName, url string, decoder Decoder, out chan<- any, onReconnect func(), cfg Config) *Adapter {
	return &Adapter{exchangeName: exchangeName, url: url, decoder: decoder, cfg: cfg, out: out, onReconnect: onReconnect}
}

// Connect dials the connection, issues subscriptions, and starts the
// background read/heartbeat/reconnect loop. It returns once the initial
// dial succeeds; subsequent reconnects happen transparently.
func (a *Adapter) Connect(ctx context.Context) error {
	a.conn = NewConnection(a.exchangeName, a.url)
	a.conn.ProxyURL = a.cfg.ProxyURL
	if err := a.dialAndSubscribe(ctx); err != nil {
		return err
	}
	go a.run(ctx)
	return nil
}

func (a *Adapter) dialAndSubscribe(ctx context.Context) error {
	if err := a.conn.Dial(ctx, http.Header{}); err != nil {
		return fmt.Errorf("%s: dial: %w", a.exchangeName, err)
	}
	for _, sub := range a.decoder.Subscriptions() {
		if err := a.conn.SendJSONMessage(sub); err != nil {
			return fmt.Errorf("%s: subscribe: %w", a.exchangeName, err)
		}
	}
	return nil
}

// run drives the read loop, idle-timeout watchdog and reconnect/backoff
// cycle until ctx is cancelled (Supervisor shutdown, spec §5).
func (a *Adapter) run(ctx context.Context) {
	var backoffAttempt int
	if hb := a.decoder.Heartbeat(); hb.Interval > 0 {
		go a.heartbeatLoop(ctx, hb)
	}

	for {
		if ctx.Err() != nil {
			_ = a.conn.Shutdown()
			return
		}
		if err := a.readUntilError(ctx); err != nil {
			a.emit(UpstreamDisconnected{Err: err})
			log.Warnf(log.WebsocketMgr, "%s: connection lost: %v", a.exchangeName, err)
		}
		_ = a.conn.Shutdown()
		if ctx.Err() != nil {
			return
		}

		delay := backoffDelay(a.cfg.BackoffBase, a.cfg.BackoffCap, backoffAttempt)
		backoffAttempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		if err := a.dialAndSubscribe(ctx); err != nil {
			log.Errorf(log.WebsocketMgr, "%s: reconnect failed: %v", a.exchangeName, err)
			continue
		}
		backoffAttempt = 0
		log.Infof(log.WebsocketMgr, "%s: reconnected, resubscribed", a.exchangeName)
		if a.onReconnect != nil {
			a.onReconnect()
		}
	}
}

// readUntilError reads frames until a read error or read-idle-timeout,
// dispatching every decoded event to a.out.
func (a *Adapter) readUntilError(ctx context.Context) error {
	type frame struct {
		resp Response
		err  error
	}
	frames := make(chan frame, 1)
	go func() {
		for {
			resp, err := a.conn.ReadMessage()
			frames <- frame{resp, err}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(a.cfg.ReadIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			return fmt.Errorf("no message received within %s", a.cfg.ReadIdleTimeout)
		case f := <-frames:
			if f.err != nil {
				return f.err
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(a.cfg.ReadIdleTimeout)
			if err := a.decoder.HandleFrame(f.resp.Raw, a.emit); err != nil {
				a.emit(MalformedFrame{Err: err})
			}
		}
	}
}

func (a *Adapter) heartbeatLoop(ctx context.Context, hb Heartbeat) {
	ticker := time.NewTicker(hb.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.conn.IsConnected() {
				continue
			}
			mType, payload := hb.Build()
			if err := a.conn.SendRawMessage(mType, payload); err != nil {
				log.Warnf(log.WebsocketMgr, "%s: heartbeat send failed: %v", a.exchangeName, err)
			}
		}
	}
}

func (a *Adapter) emit(v any) {
	select {
	case a.out <- v:
	default:
		// The output channel is shared by every event type. When it is full
		// the event being sent (the newest) is dropped and a warning is
		// logged, whatever its type; older events are not evicted, no drop
		// counter is kept, and a dropped depth event does not start a resync.
		log.Warnf(log.WebsocketMgr, "%s: output channel full, dropping event", a.exchangeName)
	}
}

// Close idempotently releases the adapter's connection.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Shutdown()
}

func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if capF := float64(cap); d > capF {
		d = capF
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2) // nolint:gosec // timing jitter only
	return time.Duration(d * jitter)
}
