// Package config loads and validates the collector's configuration (spec
// §6): a YAML file read with github.com/spf13/viper, overridable by
// MARKETPRISM_CONFIG and MARKETPRISM_-prefixed environment variables, then
// validated with github.com/kat-co/vala so a bad config fails fast with
// exit code 2 rather than misbehaving at runtime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ExchangeConfig is one exchanges[*] entry (spec §6).
type ExchangeConfig struct {
	Name       string            `mapstructure:"name"`
	WSURL      string            `mapstructure:"ws_url"`
	RESTURL    string            `mapstructure:"rest_url"`
	MarketType string            `mapstructure:"market_type"`
	Symbols    []string          `mapstructure:"symbols"`    // canonical symbols
	DataTypes  []string          `mapstructure:"data_types"` // subset of {trade, orderbook, ticker, funding, oi, liquidation, lsr, vol}
	SymbolMap  map[string]string `mapstructure:"symbol_map"` // canonical -> native, must be a bijection
}

// ResyncConfig carries orderbook.resync.* (spec §6).
type ResyncConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// OrderbookConfig carries orderbook.* (spec §6).
type OrderbookConfig struct {
	MaxDepthLevels int          `mapstructure:"max_depth_levels"`
	Resync         ResyncConfig `mapstructure:"resync"`
}

// RateLimitConfig is one rate_limits[*] entry (spec §6): capacity + refill
// per (exchange, endpoint_class).
type RateLimitConfig struct {
	Exchange        string  `mapstructure:"exchange"`
	EndpointClass   string  `mapstructure:"endpoint_class"`
	Capacity        int     `mapstructure:"capacity"`
	RefillPerSecond float64 `mapstructure:"refill_per_second"`
}

// BusConfig carries bus.* (spec §6).
type BusConfig struct {
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	Codec          string        `mapstructure:"codec"` // "json" | "msgpack"
	URLs           []string      `mapstructure:"urls"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
}

// SchedulesConfig carries the polled-feed cadences (spec §6).
type SchedulesConfig struct {
	Funding      time.Duration `mapstructure:"funding"`
	OpenInterest time.Duration `mapstructure:"open_interest"`
	LSR          time.Duration `mapstructure:"lsr"`
	Volatility   time.Duration `mapstructure:"volatility"`
}

// Config is the fully-typed, validated collector configuration.
type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	Exchanges   []ExchangeConfig  `mapstructure:"exchanges"`
	Orderbook   OrderbookConfig   `mapstructure:"orderbook"`
	RateLimits  []RateLimitConfig `mapstructure:"rate_limits"`
	Bus         BusConfig         `mapstructure:"bus"`
	Schedules   SchedulesConfig   `mapstructure:"schedules"`
	DrainTimeoutSeconds int       `mapstructure:"drain_timeout_seconds"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("orderbook.max_depth_levels", 400)
	v.SetDefault("orderbook.resync.max_attempts", 5)
	v.SetDefault("orderbook.resync.window_seconds", 120)
	v.SetDefault("bus.subject_prefix", "market")
	v.SetDefault("bus.codec", "json")
	v.SetDefault("bus.publish_timeout", 5*time.Second)
	v.SetDefault("bus.max_in_flight", 512)
	v.SetDefault("schedules.open_interest", 15*time.Minute)
	v.SetDefault("schedules.lsr", 5*time.Minute)
	v.SetDefault("schedules.volatility", time.Minute)
	v.SetDefault("drain_timeout_seconds", 10)
}

// Load reads the YAML config at path (or MARKETPRISM_CONFIG/the viper
// search path if path is empty), applies MARKETPRISM_ environment overrides,
// and returns the typed, defaulted Config. It does not validate; call
// Validate separately so callers can distinguish "unreadable" from
// "invalid" for the CLI's exit codes (spec §6: exit 2 on invalid config).
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("MARKETPRISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := v.GetString("CONFIG"); path == "" && override != "" {
		path = override
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marketprism")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/marketprism")
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}
