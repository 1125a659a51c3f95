package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/ratelimit"
)

func toLevels(raw [][2]string) ([]orderbook.PriceLevel, error) {
	out := make([]orderbook.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", lvl[0], err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", lvl[1], err)
		}
		out = append(out, orderbook.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

// BinanceSnapshotFetcher implements manager.SnapshotFetcher via
// GET /api/v3/depth (spot) or its futures equivalents (spec §6).
type BinanceSnapshotFetcher struct {
	Client     *Client
	Limiter    *ratelimit.Limiter
	Symbols    *normalize.SymbolTable
	Path       string // "/api/v3/depth", "/fapi/v1/depth", "/dapi/v1/depth"
	DepthLimit int
}

// FetchSnapshot issues the rate-limited REST depth snapshot request.
func (f BinanceSnapshotFetcher) FetchSnapshot(ctx context.Context, pair key.Instrument) (orderbook.Snapshot, error) {
	native, ok := f.Symbols.Native(pair.Symbol)
	if !ok {
		return orderbook.Snapshot{}, fmt.Errorf("binance: no native symbol for %s", pair)
	}
	var resp struct {
		LastUpdateID int64       `json:"lastUpdateId"`
		Bids         [][2]string `json:"bids"`
		Asks         [][2]string `json:"asks"`
	}
	if err := f.Client.Get(ctx, f.Limiter, f.Path, map[string]string{
		"symbol": native,
		"limit":  fmt.Sprintf("%d", f.DepthLimit),
	}, &resp); err != nil {
		return orderbook.Snapshot{}, err
	}
	bids, err := toLevels(resp.Bids)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	asks, err := toLevels(resp.Asks)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	now := time.Now().UTC()
	return orderbook.Snapshot{Pair: pair, LastUpdateID: resp.LastUpdateID, Bids: bids, Asks: asks, SnapshotTime: now, IngestTime: now}, nil
}

// OKXSnapshotFetcher implements manager.SnapshotFetcher via
// GET /api/v5/market/books (spec §6), used on checksum mismatch /
// prevSeqId break to force a fresh resync.
type OKXSnapshotFetcher struct {
	Client     *Client
	Limiter    *ratelimit.Limiter
	Symbols    *normalize.SymbolTable
	DepthLimit int
}

// FetchSnapshot issues the rate-limited REST order book request.
func (f OKXSnapshotFetcher) FetchSnapshot(ctx context.Context, pair key.Instrument) (orderbook.Snapshot, error) {
	native, ok := f.Symbols.Native(pair.Symbol)
	if !ok {
		return orderbook.Snapshot{}, fmt.Errorf("okx: no native symbol for %s", pair)
	}
	var resp struct {
		Data []struct {
			Bids [][2]string `json:"bids"`
			Asks [][2]string `json:"asks"`
			TS   string      `json:"ts"`
		} `json:"data"`
	}
	if err := f.Client.Get(ctx, f.Limiter, "/api/v5/market/books", map[string]string{
		"instId": native,
		"sz":     fmt.Sprintf("%d", f.DepthLimit),
	}, &resp); err != nil {
		return orderbook.Snapshot{}, err
	}
	if len(resp.Data) == 0 {
		return orderbook.Snapshot{}, fmt.Errorf("okx: empty book response for %s", native)
	}
	entry := resp.Data[0]
	bids, err := toLevels(entry.Bids)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	asks, err := toLevels(entry.Asks)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	now := time.Now().UTC()
	// OKX REST snapshots carry no sequence id; last_update_id is
	// re-derived from the next update frame's prevSeqId, so we seed it to
	// -1 and let the manager's FirstEventQualifies accept the first frame
	// whose prevSeqId the exchange reports against this snapshot (OKX
	// always reports -1 as prevSeqId immediately following a fresh
	// snapshot fetch via REST, per its documented books channel contract).
	return orderbook.Snapshot{Pair: pair, LastUpdateID: -1, Bids: bids, Asks: asks, SnapshotTime: now, IngestTime: now}, nil
}

// DeribitSnapshotFetcher implements manager.SnapshotFetcher via
// public/get_order_book (spec §6).
type DeribitSnapshotFetcher struct {
	Client     *Client
	Limiter    *ratelimit.Limiter
	Symbols    *normalize.SymbolTable
	DepthLimit int
}

// FetchSnapshot issues the rate-limited REST order book request.
func (f DeribitSnapshotFetcher) FetchSnapshot(ctx context.Context, pair key.Instrument) (orderbook.Snapshot, error) {
	native, ok := f.Symbols.Native(pair.Symbol)
	if !ok {
		return orderbook.Snapshot{}, fmt.Errorf("deribit: no native symbol for %s", pair)
	}
	var resp struct {
		Result struct {
			ChangeID int64       `json:"change_id"`
			Bids     [][2]any    `json:"bids"` // [price, amount]
			Asks     [][2]any    `json:"asks"`
			Timestamp int64      `json:"timestamp"`
		} `json:"result"`
	}
	if err := f.Client.Get(ctx, f.Limiter, "/api/v2/public/get_order_book", map[string]string{
		"instrument_name": native,
		"depth":           fmt.Sprintf("%d", f.DepthLimit),
	}, &resp); err != nil {
		return orderbook.Snapshot{}, err
	}
	toStrLevels := func(raw [][2]any) [][2]string {
		out := make([][2]string, 0, len(raw))
		for _, lvl := range raw {
			out = append(out, [2]string{fmt.Sprintf("%v", lvl[0]), fmt.Sprintf("%v", lvl[1])})
		}
		return out
	}
	bids, err := toLevels(toStrLevels(resp.Result.Bids))
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	asks, err := toLevels(toStrLevels(resp.Result.Asks))
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	snapTime := time.Now().UTC()
	if resp.Result.Timestamp > 0 {
		snapTime = time.UnixMilli(resp.Result.Timestamp).UTC()
	}
	return orderbook.Snapshot{Pair: pair, LastUpdateID: resp.Result.ChangeID, Bids: bids, Asks: asks, SnapshotTime: snapTime, IngestTime: time.Now().UTC()}, nil
}
