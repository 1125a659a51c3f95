package stream

import (
	"fmt"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/marketprism/ingestion-fabric/encoding/json"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// OKXDecoder implements Decoder for OKX's `books`, `trades` and `tickers`
// channels (spec §6). OKX requires a client-initiated "ping" text frame
// every 20s (spec §4.2), answered with a bare "pong" text frame, which
// HandleFrame recognises and returns from before any JSON decoding, so it
// emits nothing and reports no error.
type OKXDecoder struct {
	MarketType string
	Args       []map[string]string // one per subscribed (channel, instId)
}

// Subscriptions frames one OKX subscribe request covering every configured
// (channel, instId) pair.
func (d OKXDecoder) Subscriptions() []any {
	if len(d.Args) == 0 {
		return nil
	}
	return []any{map[string]any{"op": "subscribe", "args": d.Args}}
}

// Heartbeat sends a literal "ping" text frame every 20s, per spec §4.2.
func (OKXDecoder) Heartbeat() Heartbeat {
	return Heartbeat{
		Interval: 20 * time.Second,
		Build:    func() (int, []byte) { return gws.TextMessage, []byte("ping") },
	}
}

// HandleFrame decodes one OKX channel push: {"arg":{"channel":...,"instId":...},"action":"snapshot"|"update","data":[...]}.
func (d OKXDecoder) HandleFrame(raw []byte, emit func(any)) error {
	if string(raw) == "pong" {
		return nil
	}
	var envelope struct {
		Arg struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"arg"`
		Action string            `json:"action"`
		Data   []json.RawMessage `json:"data"`
		Event  string            `json:"event"`
		Msg    string            `json:"msg"`
		Code   string            `json:"code"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("okx: decode envelope: %w", err)
	}
	if envelope.Event == "error" {
		return fmt.Errorf("okx server error %s: %s", envelope.Code, envelope.Msg)
	}
	now := time.Now().UTC()
	switch envelope.Arg.Channel {
	case "books", "books5", "books-l2-tbt":
		return d.handleBooks(envelope.Action, envelope.Arg.InstID, envelope.Data, now, emit)
	case "trades":
		return d.handleTrades(envelope.Arg.InstID, envelope.Data, now, emit)
	case "tickers":
		return d.handleTickers(envelope.Arg.InstID, envelope.Data, now, emit)
	default:
		return nil
	}
}

func (d OKXDecoder) handleBooks(action, instID string, data []json.RawMessage, now time.Time, emit func(any)) error {
	for _, raw := range data {
		var v struct {
			Bids      [][2]string `json:"bids"` // OKX sends [price, qty, liquidated_orders, order_count]
			Asks      [][2]string `json:"asks"`
			Checksum  *int64      `json:"checksum"`
			SeqID     int64       `json:"seqId"`
			PrevSeqID int64       `json:"prevSeqId"`
			TS        string      `json:"ts"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("okx: decode book: %w", err)
		}
		var eventTimeMS int64
		if v.TS != "" {
			if t, perr := parseInt(v.TS); perr == nil {
				eventTimeMS = t
			}
		}
		emit(rawevent.Depth{
			Envelope:       rawevent.Envelope{Exchange: rawevent.OKX, MarketType: d.MarketType, NativeSymbol: instID, IngestTime: now},
			IsSnapshot:     action == "snapshot",
			LastUpdateID:   v.SeqID,
			PrevSequenceID: v.PrevSeqID,
			Bids:           v.Bids,
			Asks:           v.Asks,
			Checksum:       v.Checksum,
			EventTimeMS:    eventTimeMS,
		})
	}
	return nil
}

func (d OKXDecoder) handleTrades(instID string, data []json.RawMessage, now time.Time, emit func(any)) error {
	for _, raw := range data {
		var v struct {
			TradeID string `json:"tradeId"`
			Price   string `json:"px"`
			Size    string `json:"sz"`
			Side    string `json:"side"`
			TS      string `json:"ts"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("okx: decode trade: %w", err)
		}
		var tradeTimeMS int64
		if v.TS != "" {
			if t, perr := parseInt(v.TS); perr == nil {
				tradeTimeMS = t
			}
		}
		emit(rawevent.Trade{
			Envelope:    rawevent.Envelope{Exchange: rawevent.OKX, MarketType: d.MarketType, NativeSymbol: instID, IngestTime: now},
			TradeID:     v.TradeID,
			Price:       v.Price,
			Quantity:    v.Size,
			TakerSide:   v.Side,
			TradeTimeMS: tradeTimeMS,
		})
	}
	return nil
}

func (d OKXDecoder) handleTickers(instID string, data []json.RawMessage, now time.Time, emit func(any)) error {
	for _, raw := range data {
		var v struct {
			Last    string `json:"last"`
			Open24h string `json:"open24h"`
			High24h string `json:"high24h"`
			Low24h  string `json:"low24h"`
			Vol24h  string `json:"vol24h"`
			VolCcy  string `json:"volCcy24h"`
			TS      string `json:"ts"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("okx: decode ticker: %w", err)
		}
		var eventTimeMS int64
		if v.TS != "" {
			if t, perr := parseInt(v.TS); perr == nil {
				eventTimeMS = t
			}
		}
		emit(rawevent.Ticker{
			Envelope:       rawevent.Envelope{Exchange: rawevent.OKX, MarketType: d.MarketType, NativeSymbol: instID, IngestTime: now},
			LastPrice:      v.Last,
			High24h:        v.High24h,
			Low24h:         v.Low24h,
			Volume24h:      v.Vol24h,
			QuoteVolume24h: v.VolCcy,
			EventTimeMS:    eventTimeMS,
		})
	}
	return nil
}

func parseInt(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
