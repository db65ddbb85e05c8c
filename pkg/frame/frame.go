// Package frame implements the ASCII-hex, CRC-protected framing that sits
// directly on top of the serial byte stream: header/footer delimiting,
// CRC-16/XMODEM computation and validation.
package frame

import (
	"bytes"
	"strconv"

	crc "github.com/pasztorpisti/go-crc"

	"github.com/plugwise/stick/pkg/protoerr"
)

var (
	header = []byte{0x05, 0x05, 0x03, 0x03}
	footer = []byte{0x0D, 0x0A}
)

const (
	// EOM is the read boundary byte: every frame (and every noise line)
	// ends with it.
	EOM = 0x0A
	// crcFieldSize is the width in ASCII-hex characters of the trailing
	// CRC field.
	crcFieldSize = 4
)

// Encode renders a complete outbound frame: header, payload, 4-char
// uppercase-hex CRC-16/XMODEM, footer.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(header)+len(payload)+crcFieldSize+len(footer))
	out = append(out, header...)
	out = append(out, payload...)
	out = append(out, CRCField(payload)...)
	out = append(out, footer...)
	return out
}

// CRCField renders the CRC-16/XMODEM of payload the way the wire expects
// it: exactly 4 uppercase hex characters. Exported so callers that need to
// show exactly what crossed the wire (tracing) can reconstruct it without
// duplicating the checksum logic.
func CRCField(payload []byte) []byte {
	sum := crc.XMODEM.Calc(payload)
	s := strconv.FormatUint(uint64(sum), 16)
	for len(s) < crcFieldSize {
		s = "0" + s
	}
	out := []byte(s)
	for i, b := range out {
		if b >= 'a' && b <= 'z' {
			out[i] = b - ('a' - 'A')
		}
	}
	return out
}

// Decode locates a frame inside a chunk that was read up to and including
// an EOM byte, validates its CRC and returns the payload. If the chunk
// carries no header it is non-protocol noise: Decode returns (nil, true,
// nil) and the caller should discard it (optionally tracing it).
func Decode(chunk []byte) (payload []byte, noise bool, err error) {
	payload, _, noise, err = DecodeWithCRC(chunk)
	return payload, noise, err
}

// DecodeWithCRC is Decode plus the raw CRC field bytes as they appeared on
// the wire, for callers (tracing) that need to show exactly what was
// received rather than just the payload.
func DecodeWithCRC(chunk []byte) (payload, crcField []byte, noise bool, err error) {
	headerPos := bytes.Index(chunk, header)
	if headerPos < 0 {
		return nil, nil, true, nil
	}

	footerPos := lastIndex(chunk, footer, headerPos)
	if footerPos < 0 {
		return nil, nil, false, protoerr.New(protoerr.Framing, "unable to locate footer in received message")
	}

	payloadStart := headerPos + len(header)
	crcStart := footerPos - crcFieldSize
	if crcStart < payloadStart {
		return nil, nil, false, protoerr.New(protoerr.Framing, "truncated payload")
	}

	payload = chunk[payloadStart:crcStart]
	crcField = chunk[crcStart:footerPos]

	wantCRC := parseLenientHex(crcField)
	gotCRC := crc.XMODEM.Calc(payload)
	if wantCRC != gotCRC {
		return nil, nil, false, protoerr.Newf(protoerr.CRC, "crc mismatch: frame says %04X, computed %04X", wantCRC, gotCRC)
	}

	return payload, crcField, false, nil
}

// lastIndex finds the last occurrence of sep in buf at or after from.
func lastIndex(buf, sep []byte, from int) int {
	best := -1
	for i := from; i+len(sep) <= len(buf); i++ {
		if bytes.Equal(buf[i:i+len(sep)], sep) {
			best = i
		}
	}
	return best
}

// parseLenientHex parses a 4-character hex field, treating any non-hex
// character as zero — a historical tolerance of the wire protocol, kept
// for compatibility.
func parseLenientHex(field []byte) uint16 {
	var v uint16
	for _, b := range field {
		v <<= 4
		v |= uint16(hexNibble(b))
	}
	return v
}

func hexNibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return 0
	}
}
