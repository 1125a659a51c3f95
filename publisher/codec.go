package publisher

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/marketprism/ingestion-fabric/encoding/json"
)

// JSONCodec marshals with the collector's sonic-backed json wrapper.
// Decimal fields marshal as strings via shopspring/decimal's own
// MarshalJSON, satisfying the wire contract's precision requirement.
type JSONCodec struct{}

// Name reports the codec identifier used in config (bus.codec: json).
func (JSONCodec) Name() string { return "json" }

// Marshal encodes v as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// MsgpackCodec marshals with msgpack, a more compact self-describing
// alternative (bus.codec: msgpack). shopspring/decimal values round-trip
// as their string form via msgpack's encoding.TextMarshaler support.
type MsgpackCodec struct{}

// Name reports the codec identifier used in config (bus.codec: msgpack).
func (MsgpackCodec) Name() string { return "msgpack" }

// Marshal encodes v as msgpack.
func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// CodecFor resolves a configured codec name to its implementation.
func CodecFor(name string) Codec {
	switch name {
	case "msgpack":
		return MsgpackCodec{}
	default:
		return JSONCodec{}
	}
}
