package engine

import (
	"sync"
	"time"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// BookHealth is the per-book health record spec §4.6 requires:
// {state, last_event_time, last_emit_time, resync_count_1m}.
type BookHealth struct {
	Pair           key.Instrument
	State          manager.State
	LastEventTime  time.Time
	LastEmitTime   time.Time
	ResyncCount1m  int
}

// AdapterHealth is the per-adapter health record spec §4.6 requires:
// {connected, last_message_age, reconnects_total}.
type AdapterHealth struct {
	ExchangeName    string
	Connected       bool
	LastMessageTime time.Time
	ReconnectsTotal int
}

// HealthRegistry aggregates the minimal metrics/health contract (spec
// §4.6): per-book state and timestamps, per-adapter connectivity, and
// global drop counters by reason.
type HealthRegistry struct {
	mu       sync.RWMutex
	books    map[key.Instrument]*BookHealth
	adapters map[string]*AdapterHealth
	drops    map[string]int // "exchange/reason" -> count
}

// NewHealthRegistry constructs an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		books:    make(map[key.Instrument]*BookHealth),
		adapters: make(map[string]*AdapterHealth),
		drops:    make(map[string]int),
	}
}

func (h *HealthRegistry) registerBook(pair key.Instrument) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.books[pair] = &BookHealth{Pair: pair}
}

func (h *HealthRegistry) registerAdapter(exchangeName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adapters[exchangeName] = &AdapterHealth{ExchangeName: exchangeName}
}

func (h *HealthRegistry) recordEvent(pair key.Instrument) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.books[pair]; ok {
		b.LastEventTime = time.Now().UTC()
	}
}

func (h *HealthRegistry) recordEmit(pair key.Instrument) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.books[pair]; ok {
		b.LastEmitTime = time.Now().UTC()
	}
}

func (h *HealthRegistry) recordDrop(ex rawevent.Exchange, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drops[string(ex)+"/"+reason]++
}

func (h *HealthRegistry) recordAdapterError(ev any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drops["adapter_error"]++
	_ = ev
}

// Snapshot returns a point-in-time copy of every book's and adapter's
// health plus drop counters, safe to serve over the metrics endpoint.
func (h *HealthRegistry) Snapshot(books map[key.Instrument]*manager.Manager) ([]BookHealth, []AdapterHealth, map[string]int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	bookList := make([]BookHealth, 0, len(h.books))
	for pair, b := range h.books {
		cur := *b
		if m, ok := books[pair]; ok {
			cur.State = m.State()
		}
		bookList = append(bookList, cur)
	}
	adapterList := make([]AdapterHealth, 0, len(h.adapters))
	for _, a := range h.adapters {
		adapterList = append(adapterList, *a)
	}
	drops := make(map[string]int, len(h.drops))
	for k, v := range h.drops {
		drops[k] = v
	}
	return bookList, adapterList, drops
}
