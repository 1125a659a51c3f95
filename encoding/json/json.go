// Package json is a drop-in subset of encoding/json backed by sonic for the
// hot path (raw exchange frame decode), mirroring the teacher's own
// gocryptotrader/encoding/json wrapper.
package json

import "github.com/bytedance/sonic"

var api = sonic.ConfigStd

// Marshal encodes v using sonic's standard-compatible configuration.
func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

// Unmarshal decodes data into v using sonic's standard-compatible configuration.
func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

// RawMessage mirrors encoding/json.RawMessage for partial decode steps,
// deferring a sub-document's decode until its shape is known.
type RawMessage []byte

// MarshalJSON returns m as the JSON encoding of m.
func (m RawMessage) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return m, nil
}

// UnmarshalJSON stores a copy of data into *m.
func (m *RawMessage) UnmarshalJSON(data []byte) error {
	if m == nil {
		return nil
	}
	*m = append((*m)[0:0], data...)
	return nil
}
