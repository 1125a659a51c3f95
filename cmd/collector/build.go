package main

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marketprism/ingestion-fabric/common/key"
	"github.com/marketprism/ingestion-fabric/config"
	"github.com/marketprism/ingestion-fabric/engine"
	"github.com/marketprism/ingestion-fabric/exchanges/asset"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager"
	"github.com/marketprism/ingestion-fabric/exchanges/orderbook/manager/strategies"
	"github.com/marketprism/ingestion-fabric/exchanges/rest"
	"github.com/marketprism/ingestion-fabric/exchanges/stream"
	"github.com/marketprism/ingestion-fabric/normalize"
	"github.com/marketprism/ingestion-fabric/publisher"
	"github.com/marketprism/ingestion-fabric/ratelimit"
	"github.com/marketprism/ingestion-fabric/rawevent"
)

// buildSupervisor wires every configured exchange's symbol table,
// normalizer, rate limiters, REST client, snapshot fetcher, OrderBookManager
// per symbol and WireAdapter into one Supervisor, following the component
// graph spec §4 describes end to end.
func buildSupervisor(cfg config.Config) (*engine.Supervisor, error) {
	pub, err := buildPublisher(cfg.Bus)
	if err != nil {
		return nil, err
	}

	sup, err := engine.New(engine.Config{DrainTimeout: time.Duration(cfg.DrainTimeoutSeconds) * time.Second}, pub)
	if err != nil {
		return nil, fmt.Errorf("build supervisor: %w", err)
	}

	limiters := buildRateLimiters(cfg.RateLimits)

	for _, ex := range cfg.Exchanges {
		if err := wireExchange(sup, ex, cfg.Orderbook, cfg.Schedules, limiters); err != nil {
			return nil, fmt.Errorf("wire %s: %w", ex.Name, err)
		}
	}
	return sup, nil
}

func buildPublisher(cfg config.BusConfig) (*publisher.Publisher, error) {
	if len(cfg.URLs) == 0 {
		return nil, nil // health/validate-only invocations don't need a bus
	}
	conns := make([]*nats.Conn, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		conn, err := nats.Connect(url)
		if err != nil {
			return nil, fmt.Errorf("connect bus %s: %w", url, err)
		}
		conns = append(conns, conn)
	}
	pubCfg := publisher.Config{
		SubjectPrefix:  cfg.SubjectPrefix,
		PublishTimeout: cfg.PublishTimeout,
		MaxInFlight:    cfg.MaxInFlight,
		Conns:          conns,
	}
	return publisher.New(pubCfg, publisher.CodecFor(cfg.Codec))
}

func buildRateLimiters(cfgs []config.RateLimitConfig) *ratelimit.Registry {
	reg := ratelimit.NewRegistry()
	for _, rl := range cfgs {
		reg.Register(rl.Exchange, ratelimit.EndpointClass(rl.EndpointClass), rl.Capacity, rl.RefillPerSecond)
	}
	return reg
}

func wireExchange(sup *engine.Supervisor, ex config.ExchangeConfig, obCfg config.OrderbookConfig, schedules config.SchedulesConfig, limiters *ratelimit.Registry) error {
	marketType, err := asset.New(ex.MarketType)
	if err != nil {
		return err
	}
	symbols, err := normalize.NewSymbolTable(ex.SymbolMap)
	if err != nil {
		return err
	}
	exchange := rawevent.Exchange(ex.Name)
	normalizer := normalize.New(exchange, symbols)
	sup.RegisterNormalizer(exchange, normalizer)

	restClient := rest.New(ex.Name, ex.RESTURL, 5*time.Second)
	snapshotLimiter := limiters.Get(ex.Name, ratelimit.Snapshot)

	managerCfg := manager.DefaultConfig()
	managerCfg.MaxDepth = obCfg.MaxDepthLevels

	wantsOrderbook := hasDataType(ex.DataTypes, "orderbook")
	decoder, err := buildDecoder(ex, marketType)
	if err != nil {
		return err
	}

	for _, symbol := range ex.Symbols {
		pair := key.Instrument{Exchange: ex.Name, MarketType: marketType, Symbol: symbol}
		if !wantsOrderbook {
			continue
		}
		fetcher, err := buildSnapshotFetcher(ex.Name, restClient, snapshotLimiter, symbols)
		if err != nil {
			return err
		}
		strategy, err := buildStrategy(ex.Name)
		if err != nil {
			return err
		}
		depth := orderbook.DeployDepth(ex.Name, pair, marketType)
		dataCh := make(chan any, managerCfg.BufferCapacity)
		m := manager.New(ex.Name, pair, strategy, depth, fetcher, dataCh, managerCfg)
		if obCfg.Resync.MaxAttempts > 0 && obCfg.Resync.WindowSeconds > 0 {
			m.SetAttemptWindow(&manager.AttemptWindow{
				MaxAttempts: obCfg.Resync.MaxAttempts,
				Window:      time.Duration(obCfg.Resync.WindowSeconds) * time.Second,
			})
		}
		sup.RegisterBook(pair, m, dataCh)
	}

	sup.RegisterAdapter(exchange, ex.Name, ex.WSURL, decoder, stream.DefaultConfig())
	registerPollJobs(sup, ex, marketType, schedules, restClient, limiters)
	return nil
}

// registerPollJobs wires the scheduled REST jobs spec §4.6/§6 describe
// (funding, open interest, LSR, volatility) for the exchanges and market
// types that have a poller implemented, gated by each exchange's declared
// data_types and market_type.
func registerPollJobs(sup *engine.Supervisor, ex config.ExchangeConfig, marketType asset.Item, schedules config.SchedulesConfig, restClient *rest.Client, limiters *ratelimit.Registry) {
	switch ex.Name {
	case "binance":
		if marketType.IsDerivative() {
			if hasDataType(ex.DataTypes, "funding") && schedules.Funding > 0 {
				limiter := limiters.Get(ex.Name, ratelimit.Funding)
				poll := rest.BinanceFundingPoll(restClient, limiter, mustSymbolTable(ex), marketType.String(), ex.Symbols)
				sup.RegisterJob(engine.NewPollJob("binance-funding", ex.Name, schedules.Funding, poll))
			}
			if hasDataType(ex.DataTypes, "oi") && schedules.OpenInterest > 0 {
				limiter := limiters.Get(ex.Name, ratelimit.OpenInterest)
				poll := rest.BinanceOpenInterestPoll(restClient, limiter, mustSymbolTable(ex), marketType.String(), ex.Symbols)
				sup.RegisterJob(engine.NewPollJob("binance-oi", ex.Name, schedules.OpenInterest, poll))
			}
			if hasDataType(ex.DataTypes, "lsr") && schedules.LSR > 0 {
				limiter := limiters.Get(ex.Name, ratelimit.LSR)
				poll := rest.BinanceLSRPoll(restClient, limiter, mustSymbolTable(ex), marketType.String(), "5m", ex.Symbols)
				sup.RegisterJob(engine.NewPollJob("binance-lsr", ex.Name, schedules.LSR, poll))
			}
		}
	case "okx":
		if marketType.IsDerivative() && hasDataType(ex.DataTypes, "oi") && schedules.OpenInterest > 0 {
			limiter := limiters.Get(ex.Name, ratelimit.OpenInterest)
			instType := "SWAP"
			if marketType == asset.Inverse {
				instType = "FUTURES"
			}
			poll := rest.OKXOpenInterestPoll(restClient, limiter, mustSymbolTable(ex), marketType.String(), instType, ex.Symbols)
			sup.RegisterJob(engine.NewPollJob("okx-oi", ex.Name, schedules.OpenInterest, poll))
		}
	case "deribit":
		if marketType == asset.Option && hasDataType(ex.DataTypes, "vol") && schedules.Volatility > 0 {
			limiter := limiters.Get(ex.Name, ratelimit.Volatility)
			currencies := underlyingCurrencies(ex.Symbols)
			poll := rest.DeribitVolPoll(restClient, limiter, currencies)
			sup.RegisterJob(engine.NewPollJob("deribit-vol", ex.Name, schedules.Volatility, poll))
		}
	}
}

// mustSymbolTable rebuilds the symbol table for a poller; wireExchange
// already validated its bijectivity, so an error here cannot occur.
func mustSymbolTable(ex config.ExchangeConfig) *normalize.SymbolTable {
	t, _ := normalize.NewSymbolTable(ex.SymbolMap)
	return t
}

// underlyingCurrencies extracts the option underlying currency from each
// configured canonical symbol (e.g. "BTC/USDC-29NOV24-70000-C" -> "BTC"),
// deduplicated, for Deribit's per-currency volatility-index poll.
func underlyingCurrencies(symbols []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range symbols {
		cur := s
		for i, r := range s {
			if r == '/' || r == '-' {
				cur = s[:i]
				break
			}
		}
		if cur == "" || seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
	}
	return out
}

func hasDataType(dataTypes []string, want string) bool {
	for _, dt := range dataTypes {
		if dt == want {
			return true
		}
	}
	return false
}

func buildStrategy(exchangeName string) (manager.Strategy, error) {
	switch exchangeName {
	case "binance":
		return strategies.Binance{}, nil
	case "okx":
		return strategies.NewOKX(), nil
	case "deribit":
		return strategies.Deribit{}, nil
	default:
		return nil, fmt.Errorf("no orderbook strategy registered for exchange %q", exchangeName)
	}
}

func buildSnapshotFetcher(exchangeName string, client *rest.Client, limiter *ratelimit.Limiter, symbols *normalize.SymbolTable) (manager.SnapshotFetcher, error) {
	switch exchangeName {
	case "binance":
		return rest.BinanceSnapshotFetcher{Client: client, Limiter: limiter, Symbols: symbols, Path: "/api/v3/depth", DepthLimit: 1000}, nil
	case "okx":
		return rest.OKXSnapshotFetcher{Client: client, Limiter: limiter, Symbols: symbols, DepthLimit: 400}, nil
	case "deribit":
		return rest.DeribitSnapshotFetcher{Client: client, Limiter: limiter, Symbols: symbols, DepthLimit: 400}, nil
	default:
		return nil, fmt.Errorf("no snapshot fetcher registered for exchange %q", exchangeName)
	}
}

func buildDecoder(ex config.ExchangeConfig, marketType asset.Item) (stream.Decoder, error) {
	switch ex.Name {
	case "binance":
		streams := make([]string, 0, len(ex.Symbols)*2)
		for _, symbol := range ex.Symbols {
			native, ok := ex.SymbolMap[symbol]
			if !ok {
				continue
			}
			lower := lowerASCII(native)
			streams = append(streams, lower+"@depth@100ms", lower+"@trade", lower+"@bookTicker")
		}
		return stream.BinanceDecoder{MarketType: marketType.String(), Streams: streams}, nil
	case "okx":
		args := make([]map[string]string, 0, len(ex.Symbols)*3)
		for _, symbol := range ex.Symbols {
			native, ok := ex.SymbolMap[symbol]
			if !ok {
				continue
			}
			for _, channel := range []string{"books", "trades", "tickers"} {
				args = append(args, map[string]string{"channel": channel, "instId": native})
			}
		}
		return stream.OKXDecoder{MarketType: marketType.String(), Args: args}, nil
	case "deribit":
		channels := make([]string, 0, len(ex.Symbols)*2)
		for _, symbol := range ex.Symbols {
			native, ok := ex.SymbolMap[symbol]
			if !ok {
				continue
			}
			channels = append(channels, "book."+native+".100ms", "trades."+native+".100ms", "ticker."+native+".100ms")
		}
		return stream.DeribitDecoder{MarketType: marketType.String(), Channels: channels}, nil
	default:
		return nil, fmt.Errorf("no decoder registered for exchange %q", ex.Name)
	}
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
