package config

import (
	"fmt"

	"github.com/kat-co/vala"

	"github.com/marketprism/ingestion-fabric/normalize"
)

// Validate checks the structural and semantic constraints spec §6/§9
// requires before the collector is allowed to start: at least one exchange;
// positive max_depth_levels, resync max_attempts/window_seconds and
// bus.max_in_flight; a non-empty bus.subject_prefix; per exchange a name,
// symbols and a symbol_map that is a bijection (spec §9's Open Question
// resolution), and only known data_types; positive rate limits. Buffer
// capacities and schedules are not checked.
// The CLI maps a non-nil return to exit code 2.
func Validate(cfg Config) error {
	err := vala.BeginValidation().Validate(
		vala.Not(len(cfg.Exchanges) == 0, "exchanges: at least one exchange must be configured"),
		vala.GreaterThan(float64(cfg.Orderbook.MaxDepthLevels), 0, "orderbook.max_depth_levels"),
		vala.GreaterThan(float64(cfg.Orderbook.Resync.MaxAttempts), 0, "orderbook.resync.max_attempts"),
		vala.GreaterThan(float64(cfg.Orderbook.Resync.WindowSeconds), 0, "orderbook.resync.window_seconds"),
		vala.StringNotEmpty(cfg.Bus.SubjectPrefix, "bus.subject_prefix"),
		vala.GreaterThan(float64(cfg.Bus.MaxInFlight), 0, "bus.max_in_flight"),
	).Check()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for _, ex := range cfg.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("config: exchanges[*].name must not be empty")
		}
		if len(ex.Symbols) == 0 {
			return fmt.Errorf("config: exchange %s: symbols must not be empty", ex.Name)
		}
		if len(ex.SymbolMap) == 0 {
			return fmt.Errorf("config: exchange %s: symbol_map must not be empty", ex.Name)
		}
		if _, err := normalize.NewSymbolTable(ex.SymbolMap); err != nil {
			return fmt.Errorf("config: exchange %s: symbol_map: %w", ex.Name, err)
		}
		for _, dt := range ex.DataTypes {
			if !validDataType(dt) {
				return fmt.Errorf("config: exchange %s: unsupported data_type %q", ex.Name, dt)
			}
		}
	}

	for _, rl := range cfg.RateLimits {
		if rl.Capacity <= 0 || rl.RefillPerSecond <= 0 {
			return fmt.Errorf("config: rate_limits[%s/%s]: capacity and refill_per_second must be positive", rl.Exchange, rl.EndpointClass)
		}
	}

	return nil
}

func validDataType(dt string) bool {
	switch dt {
	case "trade", "orderbook", "ticker", "funding", "oi", "liquidation", "lsr", "vol":
		return true
	default:
		return false
	}
}
