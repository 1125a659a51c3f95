package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/ratelimit"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// PollFunc is the shape engine.NewPollJob expects: fetch whatever the job
// covers for every configured symbol and emit one rawevent.* per result.
type PollFunc func(ctx context.Context, emit func(any))

// BinanceFundingPoll polls /fapi/v1/premiumIndex (linear) for every native
// symbol, emitting rawevent.Funding (spec §6's funding schedule, §4.6's
// "scheduled REST jobs").
func BinanceFundingPoll(client *Client, limiter *ratelimit.Limiter, symbols *normalize.SymbolTable, marketType string, canonicalSymbols []string) PollFunc {
	return func(ctx context.Context, emit func(any)) {
		for _, canonical := range canonicalSymbols {
			native, ok := symbols.Native(canonical)
			if !ok {
				continue
			}
			var resp struct {
				MarkPrice       string `json:"markPrice"`
				IndexPrice      string `json:"indexPrice"`
				LastFundingRate string `json:"lastFundingRate"`
				NextFundingTime int64  `json:"nextFundingTime"`
				Time            int64  `json:"time"`
			}
			if err := client.Get(ctx, limiter, "/fapi/v1/premiumIndex", map[string]string{"symbol": native}, &resp); err != nil {
				continue
			}
			emit(rawevent.Funding{
				Envelope:        rawevent.Envelope{Exchange: rawevent.Binance, MarketType: marketType, NativeSymbol: native, IngestTime: time.Now().UTC()},
				FundingRate:     resp.LastFundingRate,
				NextFundingTime: resp.NextFundingTime,
				MarkPrice:       resp.MarkPrice,
				IndexPrice:      resp.IndexPrice,
				EventTimeMS:     resp.Time,
			})
		}
	}
}

// BinanceOpenInterestPoll polls /fapi/v1/openInterest, spec §6's default
// 15-minute OI cadence.
func BinanceOpenInterestPoll(client *Client, limiter *ratelimit.Limiter, symbols *normalize.SymbolTable, marketType string, canonicalSymbols []string) PollFunc {
	return func(ctx context.Context, emit func(any)) {
		for _, canonical := range canonicalSymbols {
			native, ok := symbols.Native(canonical)
			if !ok {
				continue
			}
			var resp struct {
				OpenInterest string `json:"openInterest"`
				Time         int64  `json:"time"`
			}
			if err := client.Get(ctx, limiter, "/fapi/v1/openInterest", map[string]string{"symbol": native}, &resp); err != nil {
				continue
			}
			emit(rawevent.OpenInterest{
				Envelope:     rawevent.Envelope{Exchange: rawevent.Binance, MarketType: marketType, NativeSymbol: native, IngestTime: time.Now().UTC()},
				OpenInterest: resp.OpenInterest,
				EventTimeMS:  resp.Time,
			})
		}
	}
}

// BinanceLSRPoll polls /futures/data/globalLongShortAccountRatio, spec §6's
// LSR schedule (variant=all_accounts).
func BinanceLSRPoll(client *Client, limiter *ratelimit.Limiter, symbols *normalize.SymbolTable, marketType, period string, canonicalSymbols []string) PollFunc {
	return func(ctx context.Context, emit func(any)) {
		for _, canonical := range canonicalSymbols {
			native, ok := symbols.Native(canonical)
			if !ok {
				continue
			}
			var resp []struct {
				LongAccount  string `json:"longAccount"`
				ShortAccount string `json:"shortAccount"`
				Timestamp    int64  `json:"timestamp"`
			}
			if err := client.Get(ctx, limiter, "/futures/data/globalLongShortAccountRatio", map[string]string{
				"symbol": native, "period": period, "limit": "1",
			}, &resp); err != nil || len(resp) == 0 {
				continue
			}
			latest := resp[len(resp)-1]
			emit(rawevent.LSR{
				Envelope:    rawevent.Envelope{Exchange: rawevent.Binance, MarketType: marketType, NativeSymbol: native, IngestTime: time.Now().UTC()},
				Period:      period,
				LongRatio:   latest.LongAccount,
				ShortRatio:  latest.ShortAccount,
				Variant:     "all_accounts",
				EventTimeMS: latest.Timestamp,
			})
		}
	}
}

// DeribitVolPoll polls public/get_volatility_index_data, spec §6's 1-minute
// volatility schedule, keyed by option underlying currency.
func DeribitVolPoll(client *Client, limiter *ratelimit.Limiter, currencies []string) PollFunc {
	return func(ctx context.Context, emit func(any)) {
		now := time.Now().UTC()
		for _, currency := range currencies {
			var resp struct {
				Result struct {
					Data [][2]float64 `json:"data"` // [timestamp_ms, volatility]
				} `json:"result"`
			}
			if err := client.Get(ctx, limiter, "/api/v2/public/get_volatility_index_data", map[string]string{
				"currency":        currency,
				"start_timestamp": fmt.Sprintf("%d", now.Add(-time.Minute).UnixMilli()),
				"end_timestamp":   fmt.Sprintf("%d", now.UnixMilli()),
				"resolution":      "60",
			}, &resp); err != nil || len(resp.Result.Data) == 0 {
				continue
			}
			latest := resp.Result.Data[len(resp.Result.Data)-1]
			emit(rawevent.Vol{
				Envelope:    rawevent.Envelope{Exchange: rawevent.Deribit, MarketType: "option", NativeSymbol: currency, IngestTime: now},
				IndexValue:  fmt.Sprintf("%v", latest[1]),
				EventTimeMS: int64(latest[0]),
			})
		}
	}
}

// OKXOpenInterestPoll polls /api/v5/public/open-interest for linear/inverse
// swaps, spec §6's default 15-minute OI cadence.
func OKXOpenInterestPoll(client *Client, limiter *ratelimit.Limiter, symbols *normalize.SymbolTable, marketType, instType string, canonicalSymbols []string) PollFunc {
	return func(ctx context.Context, emit func(any)) {
		for _, canonical := range canonicalSymbols {
			native, ok := symbols.Native(canonical)
			if !ok {
				continue
			}
			var resp struct {
				Data []struct {
					OI    string `json:"oi"`
					OICcy string `json:"oiCcy"`
					TS    string `json:"ts"`
				} `json:"data"`
			}
			if err := client.Get(ctx, limiter, "/api/v5/public/open-interest", map[string]string{
				"instType": instType, "instId": native,
			}, &resp); err != nil || len(resp.Data) == 0 {
				continue
			}
			entry := resp.Data[0]
			var ts int64
			fmt.Sscanf(entry.TS, "%d", &ts)
			emit(rawevent.OpenInterest{
				Envelope:          rawevent.Envelope{Exchange: rawevent.OKX, MarketType: marketType, NativeSymbol: native, IngestTime: time.Now().UTC()},
				OpenInterest:      entry.OI,
				OpenInterestValue: entry.OICcy,
				EventTimeMS:       ts,
			})
		}
	}
}
