package stream

import (
	"fmt"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/marketprism/ingestion-fabric/encoding/json"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// DeribitDecoder implements Decoder for Deribit's `book.<instrument>.<interval>`
// and `trades.<instrument>.<interval>` channels (spec §6). Deribit's
// documented liveness contract is a public/test JSON-RPC call on a
// configurable cadence (spec §4.2); this sends one every 30s.
type DeribitDecoder struct {
	MarketType string
	Channels   []string
}

// Subscriptions frames Deribit's JSON-RPC `public/subscribe` call.
func (d DeribitDecoder) Subscriptions() []any {
	if len(d.Channels) == 0 {
		return nil
	}
	return []any{map[string]any{
		"jsonrpc": "2.0",
		"id":      time.Now().UnixNano(),
		"method":  "public/subscribe",
		"params":  map[string]any{"channels": d.Channels},
	}}
}

// Heartbeat sends a JSON-RPC public/test call every 30s, per spec §4.2.
func (DeribitDecoder) Heartbeat() Heartbeat {
	payload, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": "public/test", "params": map[string]any{}})
	return Heartbeat{
		Interval: 30 * time.Second,
		Build:    func() (int, []byte) { return gws.TextMessage, payload },
	}
}

// HandleFrame decodes one Deribit JSON-RPC notification:
// {"method":"subscription","params":{"channel":"...","data":{...}}}.
func (d DeribitDecoder) HandleFrame(raw []byte, emit func(any)) error {
	var envelope struct {
		Method string `json:"method"`
		Params struct {
			Channel string          `json:"channel"`
			Data    json.RawMessage `json:"data"`
		} `json:"params"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("deribit: decode envelope: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("deribit server error: %s", envelope.Error.Message)
	}
	if envelope.Method != "subscription" {
		return nil
	}
	now := time.Now().UTC()
	switch {
	case startsWith(envelope.Params.Channel, "book."):
		return d.handleBook(envelope.Params.Channel, envelope.Params.Data, now, emit)
	case startsWith(envelope.Params.Channel, "trades."):
		return d.handleTrades(envelope.Params.Channel, envelope.Params.Data, now, emit)
	case startsWith(envelope.Params.Channel, "ticker."):
		return d.handleTicker(envelope.Params.Channel, envelope.Params.Data, now, emit)
	default:
		return nil
	}
}

func (d DeribitDecoder) handleBook(channel string, data json.RawMessage, now time.Time, emit func(any)) error {
	var v struct {
		Type         string      `json:"type"` // "snapshot" | "change"
		ChangeID     int64       `json:"change_id"`
		PrevChangeID int64       `json:"prev_change_id"`
		Bids         [][3]any    `json:"bids"` // [action, price, amount]
		Asks         [][3]any    `json:"asks"`
		Timestamp    int64       `json:"timestamp"`
		InstrumentName string    `json:"instrument_name"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("deribit: decode book: %w", err)
	}
	toLevels := func(raw [][3]any) [][2]string {
		out := make([][2]string, 0, len(raw))
		for _, lvl := range raw {
			if len(lvl) != 3 {
				continue
			}
			action, _ := lvl[0].(string)
			price := fmt.Sprintf("%v", lvl[1])
			amount := fmt.Sprintf("%v", lvl[2])
			if action == "delete" {
				amount = "0"
			}
			out = append(out, [2]string{price, amount})
		}
		return out
	}
	emit(rawevent.Depth{
		Envelope:       rawevent.Envelope{Exchange: rawevent.Deribit, MarketType: d.MarketType, NativeSymbol: instrumentOr(v.InstrumentName, channel), IngestTime: now},
		IsSnapshot:     v.Type == "snapshot",
		LastUpdateID:   v.ChangeID,
		PrevSequenceID: v.PrevChangeID,
		Bids:           toLevels(v.Bids),
		Asks:           toLevels(v.Asks),
		EventTimeMS:    v.Timestamp,
	})
	return nil
}

func (d DeribitDecoder) handleTrades(channel string, data json.RawMessage, now time.Time, emit func(any)) error {
	var trades []struct {
		TradeID      string `json:"trade_id"`
		Price        float64 `json:"price"`
		Amount       float64 `json:"amount"`
		Direction    string  `json:"direction"`
		Timestamp    int64   `json:"timestamp"`
		InstrumentName string `json:"instrument_name"`
	}
	if err := json.Unmarshal(data, &trades); err != nil {
		return fmt.Errorf("deribit: decode trades: %w", err)
	}
	for _, t := range trades {
		emit(rawevent.Trade{
			Envelope:    rawevent.Envelope{Exchange: rawevent.Deribit, MarketType: d.MarketType, NativeSymbol: instrumentOr(t.InstrumentName, channel), IngestTime: now},
			TradeID:     t.TradeID,
			Price:       fmt.Sprintf("%v", t.Price),
			Quantity:    fmt.Sprintf("%v", t.Amount),
			TakerSide:   t.Direction,
			TradeTimeMS: t.Timestamp,
		})
	}
	return nil
}

func (d DeribitDecoder) handleTicker(channel string, data json.RawMessage, now time.Time, emit func(any)) error {
	var v struct {
		LastPrice      float64 `json:"last_price"`
		Stats          struct {
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Volume float64 `json:"volume"`
		} `json:"stats"`
		Timestamp      int64  `json:"timestamp"`
		InstrumentName string `json:"instrument_name"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("deribit: decode ticker: %w", err)
	}
	emit(rawevent.Ticker{
		Envelope:    rawevent.Envelope{Exchange: rawevent.Deribit, MarketType: d.MarketType, NativeSymbol: instrumentOr(v.InstrumentName, channel), IngestTime: now},
		LastPrice:   fmt.Sprintf("%v", v.LastPrice),
		High24h:     fmt.Sprintf("%v", v.Stats.High),
		Low24h:      fmt.Sprintf("%v", v.Stats.Low),
		Volume24h:   fmt.Sprintf("%v", v.Stats.Volume),
		EventTimeMS: v.Timestamp,
	})
	return nil
}

func instrumentOr(name, channel string) string {
	if name != "" {
		return name
	}
	return channel
}

func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
