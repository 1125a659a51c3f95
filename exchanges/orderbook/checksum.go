package orderbook

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// CRC32 computes a CRC32-IEEE checksum over the top depth levels per side,
// generalizing the teacher's Kraken validateCRC32
// (exchanges/kraken/kraken_websocket.go) to a configurable level count. The
// input string is every bid level's price then quantity, followed by every
// ask level's price then quantity, each trimmed by writeTrimmed and
// concatenated without separators; it does not use colon-separated
// "price:quantity" pairs or interleave bid and ask levels.
func CRC32(b Book, depth int) uint32 {
	var sb strings.Builder
	for i := 0; i < depth && i < len(b.Bids); i++ {
		writeTrimmed(&sb, b.Bids[i].Price.String())
		writeTrimmed(&sb, b.Bids[i].Quantity.String())
	}
	for i := 0; i < depth && i < len(b.Asks); i++ {
		writeTrimmed(&sb, b.Asks[i].Price.String())
		writeTrimmed(&sb, b.Asks[i].Quantity.String())
	}
	return crc32.ChecksumIEEE([]byte(sb.String()))
}

// writeTrimmed removes the decimal point and leading zeros, mirroring the
// teacher's trim() helper, so the checksum input matches what the exchange
// computed over its own un-padded decimal strings.
func writeTrimmed(sb *strings.Builder, s string) {
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	sb.WriteString(s)
}

// ParseChecksumField converts a decimal checksum string (as seen over the
// wire) into the uint32 form CRC32 returns, for direct comparison.
func ParseChecksumField(s string) (uint32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
