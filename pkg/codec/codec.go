// Package codec maps between ASCII-hex framed payload bytes and the typed
// Plugwise message family, including the unit conversions (pulses to
// watts/kWh, raw timestamp to calendar time, log index to flash address)
// that give the raw wire values meaning.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/plugwise/stick/pkg/protoerr"
)

// SocketId is the 64-bit network identifier of a Circle, rendered on the
// wire as 16 uppercase hex characters, most-significant nibble first.
type SocketId uint64

// String renders the SocketId the way it appears on the wire.
func (s SocketId) String() string {
	return fmt.Sprintf("%016X", uint64(s))
}

// ParseSocketID parses a 16-character hex SocketId as used on the CLI.
func ParseSocketID(s string) (SocketId, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid socket id %q: %w", s, err)
	}
	return SocketId(v), nil
}

// cursor consumes a payload of ASCII-hex fixed-width fields left to right.
// Each read advances by exactly 2*sizeof(T) hex characters for numeric
// fields, or by the raw byte count for strings.
type cursor struct {
	buf []byte
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int { return len(c.buf) }

func (c *cursor) take(n int) ([]byte, error) {
	if n > len(c.buf) {
		return nil, protoerr.New(protoerr.Codec, "payload shorter than expected field width")
	}
	v := c.buf[:n]
	c.buf = c.buf[n:]
	return v, nil
}

func (c *cursor) decodeUint(hexChars int, bits int) (uint64, error) {
	field, err := c.take(hexChars)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(field), 16, bits)
	if err != nil {
		return 0, protoerr.Wrap(protoerr.Codec, fmt.Sprintf("non-hex digit in %d-bit field", bits), err)
	}
	return v, nil
}

func (c *cursor) u8() (uint8, error) {
	v, err := c.decodeUint(2, 8)
	return uint8(v), err
}

func (c *cursor) u16() (uint16, error) {
	v, err := c.decodeUint(4, 16)
	return uint16(v), err
}

func (c *cursor) u32() (uint32, error) {
	v, err := c.decodeUint(8, 32)
	return uint32(v), err
}

func (c *cursor) u64() (uint64, error) {
	return c.decodeUint(16, 64)
}

// f32 decodes a u32 and reinterprets it bit-for-bit as an IEEE-754 single.
func (c *cursor) f32() (float32, error) {
	bits, err := c.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// str consumes size raw bytes as UTF-8 text (not hex-encoded).
func (c *cursor) str(size int) (string, error) {
	field, err := c.take(size)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(field) {
		return "", protoerr.New(protoerr.Codec, "invalid UTF-8 in string field")
	}
	return string(field), nil
}

// datetime consumes one four-byte field (8 hex characters) and splits it
// into (year u8, month u8, minutes-since-first-of-month u16).
func (c *cursor) datetime() (DateTime, error) {
	raw, err := c.take(8)
	if err != nil {
		return DateTime{}, err
	}
	var bytes [4]byte
	for i := 0; i < 4; i++ {
		b, err := strconv.ParseUint(string(raw[i*2:i*2+2]), 16, 8)
		if err != nil {
			return DateTime{}, protoerr.Wrap(protoerr.Codec, "non-hex digit in datetime field", err)
		}
		bytes[i] = byte(b)
	}
	return DateTime{
		Year:    bytes[0],
		Month:   bytes[1],
		Minutes: binary.BigEndian.Uint16(bytes[2:4]),
	}, nil
}

func (c *cursor) checkFullyConsumed() error {
	if c.remaining() != 0 {
		return protoerr.New(protoerr.Codec, "unconsumed bytes remain after decode")
	}
	return nil
}

// --- encode-side helpers, mirroring the cursor's field widths ---

func encodeU8(v uint8) string  { return fmt.Sprintf("%02X", v) }
func encodeU16(v uint16) string { return fmt.Sprintf("%04X", v) }
func encodeU32(v uint32) string { return fmt.Sprintf("%08X", v) }
func encodeU64(v uint64) string { return fmt.Sprintf("%016X", v) }

func encodeSocketID(id SocketId) string { return id.String() }

func encodeDateTime(dt DateTime) string {
	return fmt.Sprintf("%02X%02X%04X", dt.Year, dt.Month, dt.Minutes)
}
