package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Exchanges: []ExchangeConfig{{
			Name:       "binance",
			MarketType: "spot",
			Symbols:    []string{"BTC/USDT"},
			DataTypes:  []string{"trade", "orderbook"},
			SymbolMap:  map[string]string{"BTC/USDT": "BTCUSDT"},
		}},
		Orderbook: OrderbookConfig{
			MaxDepthLevels: 400,
			Resync:         ResyncConfig{MaxAttempts: 5, WindowSeconds: 60},
		},
		RateLimits: []RateLimitConfig{{Exchange: "binance", EndpointClass: "snapshot", Capacity: 10, RefillPerSecond: 5}},
		Bus:        BusConfig{SubjectPrefix: "market", MaxInFlight: 512},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsEmptyExchangeList(t *testing.T) {
	cfg := validConfig()
	cfg.Exchanges = nil
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNonBijectiveSymbolMap(t *testing.T) {
	cfg := validConfig()
	cfg.Exchanges[0].SymbolMap = map[string]string{"BTC/USDT": "BTCUSDT", "ETH/USDT": "BTCUSDT"}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsUnsupportedDataType(t *testing.T) {
	cfg := validConfig()
	cfg.Exchanges[0].DataTypes = []string{"nonsense"}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveDepth(t *testing.T) {
	cfg := validConfig()
	cfg.Orderbook.MaxDepthLevels = 0
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimits[0].Capacity = 0
	require.Error(t, Validate(cfg))
}
