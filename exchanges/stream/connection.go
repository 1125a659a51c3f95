// Package stream implements the WireAdapter layer (spec §4.2): one
// Connection per exchange WebSocket, subscription framing, heartbeat/pong,
// and exponential-backoff reconnect, plus the Adapter scaffold that owns a
// connection's read loop and re-issues subscriptions after a reconnect.
//
// Connection is grounded directly on the teacher's
// exchanges/stream.WebsocketConnection (same Dial/SendJSONMessage/
// SendRawMessage/ReadMessage/Shutdown call shape), generalized from a
// single shared connection per exchange wrapper to one Connection per
// configured exchange entry, owned by that entry's Adapter.
package stream

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/sony/gobreaker/v2"

	"github.com/marketprism/ingestion-fabric/log"
)

// Response is one decoded inbound frame, already unwrapped from gzip/flate
// if the exchange used binary compressed frames.
type Response struct {
	Raw  []byte
	Type int
}

// Connection wraps one gorilla/websocket connection with the teacher's
// connected-flag/traffic-signal/write-mutex discipline so concurrent writer
// (heartbeat) and reader goroutines never race on the underlying socket.
type Connection struct {
	Verbose      bool
	ExchangeName string
	URL          string
	ProxyURL     string

	writeControl sync.Mutex
	connected    atomic.Bool

	conn    *gws.Conn
	Traffic chan struct{}

	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewConnection constructs a Connection for one exchange endpoint. The
// circuit breaker trips the reconnect path open after 3 consecutive dial
// failures, independent of the Adapter's own backoff counter, so a
// genuinely dead endpoint surfaces faster than pure exponential backoff
// alone would (same role gobreaker plays for manager.Manager's resync
// fetcher).
func NewConnection(exchangeName, rawURL string) *Connection {
	c := &Connection{ExchangeName: exchangeName, URL: rawURL, Traffic: make(chan struct{}, 1)}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        exchangeName + "/ws-dial",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 3 },
	})
	return c
}

// Dial establishes the WebSocket connection, applying ProxyURL if set
// (spec §6's HTTP_PROXY/HTTPS_PROXY/ALL_PROXY handling).
func (c *Connection) Dial(ctx context.Context, headers http.Header) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		dialer := gws.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
		if c.ProxyURL != "" {
			proxy, perr := url.Parse(c.ProxyURL)
			if perr != nil {
				return struct{}{}, perr
			}
			dialer.Proxy = http.ProxyURL(proxy)
		}
		conn, resp, derr := dialer.DialContext(ctx, c.URL, headers)
		if derr != nil {
			if resp != nil {
				return struct{}{}, fmt.Errorf("%s %v %v: %w", c.URL, resp.Status, resp.StatusCode, derr)
			}
			return struct{}{}, fmt.Errorf("%s: %w", c.URL, derr)
		}
		c.conn = conn
		c.connected.Store(true)
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	if c.Verbose {
		log.Infof(log.WebsocketMgr, "%s websocket connected to %s", c.ExchangeName, c.URL)
	}
	select {
	case c.Traffic <- struct{}{}:
	default:
	}
	return nil
}

// IsConnected reports whether Dial succeeded and Shutdown/disconnect has
// not since occurred.
func (c *Connection) IsConnected() bool { return c.connected.Load() }

// SendJSONMessage writes a JSON-encoded message, serializing access to the
// underlying socket (gorilla/websocket forbids concurrent writers).
func (c *Connection) SendJSONMessage(v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("%s: cannot send message, websocket disconnected", c.ExchangeName)
	}
	c.writeControl.Lock()
	defer c.writeControl.Unlock()
	return c.conn.WriteJSON(v)
}

// SendRawMessage writes a raw frame (used for exchange-specific ping
// payloads such as OKX's "ping" text frame or Deribit's public/test call).
func (c *Connection) SendRawMessage(messageType int, message []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("%s: cannot send message, websocket disconnected", c.ExchangeName)
	}
	c.writeControl.Lock()
	defer c.writeControl.Unlock()
	return c.conn.WriteMessage(messageType, message)
}

// ReadMessage blocks for the next inbound frame, transparently inflating
// gzip/flate-compressed binary frames (OKX/Deribit both use compressed
// binary frames under load).
func (c *Connection) ReadMessage() (Response, error) {
	mType, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.connected.Store(false)
		return Response{}, err
	}
	select {
	case c.Traffic <- struct{}{}:
	default:
	}
	if mType != gws.BinaryMessage {
		return Response{Raw: raw, Type: mType}, nil
	}
	inflated, err := inflate(raw)
	if err != nil {
		return Response{}, err
	}
	return Response{Raw: inflated, Type: mType}, nil
}

func inflate(resp []byte) ([]byte, error) {
	if len(resp) >= 2 && resp[0] == 0x1f && resp[1] == 0x8b {
		r, err := gzip.NewReader(bytes.NewReader(resp))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	r := flate.NewReader(bytes.NewReader(resp))
	defer r.Close()
	return io.ReadAll(r)
}

// Shutdown idempotently closes the underlying socket (spec §4.2: "close()
// — idempotent scoped release of sockets, timers, buffers").
func (c *Connection) Shutdown() error {
	if c == nil || c.conn == nil || !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	return c.conn.Close()
}
