package frame

import (
	"bufio"
	"io"

	"github.com/plugwise/stick/pkg/protoerr"
)

// Snoop is the frame layer's tracing capability: a sink for outbound and
// inbound raw payload+CRC bytes, and for non-protocol noise lines. crc is
// exactly the 4-character field that crossed the wire, so a raw trace
// shows the real CRC rather than one recomputed from payload — the two
// can legitimately differ under the lenient non-hex-as-zero CRC parsing a
// decoded payload has already survived. A nil Snoop is never passed
// around; NopSnoop satisfies the interface with no-ops.
type Snoop interface {
	TraceTX(payload, crc []byte)
	TraceRX(payload, crc []byte)
	TraceNoise(line []byte)
}

// NopSnoop discards everything.
type NopSnoop struct{}

func (NopSnoop) TraceTX(payload, crc []byte) {}
func (NopSnoop) TraceRX(payload, crc []byte) {}
func (NopSnoop) TraceNoise(line []byte)      {}

// Transceiver sends and receives frames over a byte-stream, one logical
// send or receive at a time. Reads go through a 1024-byte buffered reader,
// so bytes that arrive after one EOM byte are kept for the next Receive.
type Transceiver struct {
	w     io.Writer
	r     *bufio.Reader
	snoop Snoop
}

// NewTransceiver wraps a byte-stream transport for frame-level I/O.
func NewTransceiver(rw io.ReadWriter) *Transceiver {
	return &Transceiver{
		w:     rw,
		r:     bufio.NewReaderSize(rw, 1024),
		snoop: NopSnoop{},
	}
}

// SetSnoop installs a tracing sink; pass NopSnoop{} to disable tracing.
func (t *Transceiver) SetSnoop(s Snoop) {
	if s == nil {
		s = NopSnoop{}
	}
	t.snoop = s
}

// Send writes a single frame for the given payload. A single logical send
// is one Write call with the fully-assembled frame, so it cannot be
// interleaved with a concurrent send on the same transport.
func (t *Transceiver) Send(payload []byte) error {
	crcField := CRCField(payload)
	frame := Encode(payload)
	if _, err := t.w.Write(frame); err != nil {
		return protoerr.Wrap(protoerr.Transport, "frame write failed", err)
	}
	t.snoop.TraceTX(payload, crcField)
	return nil
}

// Receive reads chunks up to and including the next EOM byte until it
// finds a valid frame, discarding (and tracing) any non-protocol noise
// along the way. It blocks on the underlying transport's read deadline;
// a timeout surfaces as a protoerr.Transport error.
func (t *Transceiver) Receive() ([]byte, error) {
	for {
		chunk, err := t.r.ReadBytes(EOM)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Transport, "frame read failed", err)
		}

		payload, crcField, noise, err := DecodeWithCRC(chunk)
		if err != nil {
			return nil, err
		}
		if noise {
			t.snoop.TraceNoise(chunk)
			continue
		}

		t.snoop.TraceRX(payload, crcField)
		return payload, nil
	}
}
