// Package asset defines the market-type enumeration shared by every
// exchange adapter, orderbook and normalizer in the collector.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned for an unrecognised market type string.
var ErrNotSupported = errors.New("unsupported market type")

// Item is a closed-set, lower-case market type as required by spec §3.
type Item uint8

// Supported market types.
const (
	Empty Item = iota
	Spot
	Linear
	Inverse
	Option
)

const (
	spot    = "spot"
	linear  = "linear"
	inverse = "inverse"
	option  = "option"
)

var supported = Items{Spot, Linear, Inverse, Option}

// Items is a list of market types.
type Items []Item

// Supported returns every market type the collector recognises.
func Supported() Items { return supported }

// String renders the canonical lower-case form.
func (a Item) String() string {
	switch a {
	case Spot:
		return spot
	case Linear:
		return linear
	case Inverse:
		return inverse
	case Option:
		return option
	default:
		return ""
	}
}

// IsValid reports whether a is one of the supported market types.
func (a Item) IsValid() bool {
	switch a {
	case Spot, Linear, Inverse, Option:
		return true
	default:
		return false
	}
}

// IsDerivative reports whether funding/open-interest feeds apply (spec §3:
// NormalizedFundingRate is only emitted for linear/inverse).
func (a Item) IsDerivative() bool { return a == Linear || a == Inverse }

// New parses a market type string, case-insensitively.
func New(input string) (Item, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case spot:
		return Spot, nil
	case linear:
		return Linear, nil
	case inverse:
		return Inverse, nil
	case option:
		return Option, nil
	default:
		return Empty, fmt.Errorf("%w %q, only supports %v", ErrNotSupported, input, supported)
	}
}

// UnmarshalJSON conforms Item to json.Unmarshaler.
func (a *Item) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	item, err := New(s)
	if err != nil {
		return err
	}
	*a = item
	return nil
}

// MarshalJSON conforms Item to json.Marshaler.
func (a Item) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }
