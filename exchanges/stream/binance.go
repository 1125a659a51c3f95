package stream

import (
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/marketprism/ingestion-fabric/encoding/json"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// BinanceDecoder implements Decoder for Binance spot/linear/inverse
// combined WS streams (spec §6: "<symbol>@trade", "<symbol>@depth@100ms",
// "<symbol>@bookTicker"). Binance only answers server-initiated pings
// (spec §4.2: "respond to server ping within 60s"), which gorilla's
// default ping handler already does at the TCP/control-frame level, so
// Heartbeat returns a zero value.
type BinanceDecoder struct {
	MarketType string // "spot", "linear", "inverse" — stamped onto every emitted Envelope
	Streams    []string
}

// Subscriptions frames a combined-stream SUBSCRIBE request for every
// configured stream name.
func (d BinanceDecoder) Subscriptions() []any {
	if len(d.Streams) == 0 {
		return nil
	}
	return []any{map[string]any{
		"method": "SUBSCRIBE",
		"params": d.Streams,
		"id":     time.Now().UnixNano(),
	}}
}

// Heartbeat returns a zero value: Binance's liveness contract is answering
// the server's own ping frames, handled by gorilla/websocket's control
// frame machinery.
func (BinanceDecoder) Heartbeat() Heartbeat { return Heartbeat{} }

// HandleFrame decodes one combined-stream frame: {"stream":"...","data":{...}}.
func (d BinanceDecoder) HandleFrame(raw []byte, emit func(any)) error {
	streamName, err := jsonparser.GetString(raw, "stream")
	data := raw
	if err == nil {
		if v, _, _, derr := jsonparser.Get(raw, "data"); derr == nil {
			data = v
		}
	}
	eventType, _ := jsonparser.GetString(data, "e")
	now := time.Now().UTC()

	switch {
	case eventType == "trade":
		return d.handleTrade(data, streamName, now, emit)
	case eventType == "depthUpdate":
		return d.handleDepth(data, streamName, now, emit)
	case eventType == "":
		// bookTicker pushes carry no "e" field.
		if _, _, _, derr := jsonparser.Get(data, "u"); derr == nil {
			return d.handleBookTicker(data, streamName, now, emit)
		}
		return nil
	default:
		return nil
	}
}

func (d BinanceDecoder) handleTrade(data []byte, streamName string, now time.Time, emit func(any)) error {
	var v struct {
		Symbol       string `json:"s"`
		TradeID      int64  `json:"t"`
		Price        string `json:"p"`
		Quantity     string `json:"q"`
		TradeTime    int64  `json:"T"`
		BuyerIsMaker bool   `json:"m"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("binance: decode trade: %w", err)
	}
	emit(rawevent.Trade{
		Envelope:     rawevent.Envelope{Exchange: rawevent.Binance, MarketType: d.MarketType, NativeSymbol: symbolOr(v.Symbol, streamName), IngestTime: now},
		TradeID:      fmt.Sprintf("%d", v.TradeID),
		Price:        v.Price,
		Quantity:     v.Quantity,
		BuyerIsMaker: &v.BuyerIsMaker,
		TradeTimeMS:  v.TradeTime,
	})
	return nil
}

func (d BinanceDecoder) handleDepth(data []byte, streamName string, now time.Time, emit func(any)) error {
	var v struct {
		Symbol        string     `json:"s"`
		FirstUpdateID int64      `json:"U"`
		LastUpdateID  int64      `json:"u"`
		Bids          [][2]string `json:"b"`
		Asks          [][2]string `json:"a"`
		EventTime     int64      `json:"E"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("binance: decode depth: %w", err)
	}
	emit(rawevent.Depth{
		Envelope:      rawevent.Envelope{Exchange: rawevent.Binance, MarketType: d.MarketType, NativeSymbol: symbolOr(v.Symbol, streamName), IngestTime: now},
		FirstUpdateID: v.FirstUpdateID,
		LastUpdateID:  v.LastUpdateID,
		Bids:          v.Bids,
		Asks:          v.Asks,
		EventTimeMS:   v.EventTime,
	})
	return nil
}

func (d BinanceDecoder) handleBookTicker(data []byte, streamName string, now time.Time, emit func(any)) error {
	var v struct {
		Symbol   string `json:"s"`
		BidPrice string `json:"b"`
		AskPrice string `json:"a"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("binance: decode bookTicker: %w", err)
	}
	emit(rawevent.Ticker{
		Envelope:  rawevent.Envelope{Exchange: rawevent.Binance, MarketType: d.MarketType, NativeSymbol: symbolOr(v.Symbol, streamName), IngestTime: now},
		LastPrice: v.BidPrice,
	})
	return nil
}

func symbolOr(fieldValue, streamName string) string {
	if fieldValue != "" {
		return fieldValue
	}
	return streamName
}
