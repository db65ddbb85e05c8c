// Package engine implements the command engine: it turns a pkg/codec
// Request into a framed send, awaits the matching response, and retries on
// transport timeout. It is the only package that knows about retry policy
// and ACK/SocketId matching; pkg/device builds the user-facing façade on
// top of it.
package engine

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/frame"
	"github.com/plugwise/stick/pkg/protoerr"
	"github.com/plugwise/stick/pkg/transport"
)

const (
	defaultRetries     = 3
	defaultReadTimeout = 1 * time.Second
)

// Engine drives one Plugwise stick over a single transport. It is not safe
// for concurrent use: commands are request/response and must be issued one
// at a time, serialized against the single serial endpoint.
type Engine struct {
	tc          *frame.Transceiver
	port        transport.Port
	retries     int
	readTimeout time.Duration
	snoop       Snoop
}

// New wraps a transport for command-level use.
func New(port transport.Port) *Engine {
	return &Engine{
		tc:          frame.NewTransceiver(port),
		port:        port,
		retries:     defaultRetries,
		readTimeout: defaultReadTimeout,
		snoop:       NewNoopSnoop(),
	}
}

// SetRetries overrides the number of resends attempted after a read
// timeout before a command fails. The default is 3.
func (e *Engine) SetRetries(n int) {
	e.retries = n
}

// SetReadTimeout overrides the per-attempt read deadline. The default is
// 1 second, the recommended minimum for this serial line.
func (e *Engine) SetReadTimeout(d time.Duration) {
	e.readTimeout = d
}

// SetSnoop installs a tracing sink; nil is treated as NewNoopSnoop().
func (e *Engine) SetSnoop(s Snoop) {
	if s == nil {
		s = NewNoopSnoop()
	}
	e.snoop = s
	e.tc.SetSnoop(s)
}

// Initialize asks the stick to report its online state and identity.
func (e *Engine) Initialize() (codec.ResInitialize, error) {
	msg, err := e.sendAndAwait(codec.ReqInitialize{}, codec.IDResInitialize)
	if err != nil {
		return codec.ResInitialize{}, err
	}
	return asBody[codec.ResInitialize](msg)
}

// Info asks a Circle for its relay state, clock date and firmware info.
func (e *Engine) Info(socket codec.SocketId) (codec.ResInfo, error) {
	msg, err := e.sendAndAwait(codec.ReqInfo{Socket: socket}, codec.IDResInfo)
	if err != nil {
		return codec.ResInfo{}, err
	}
	return asBody[codec.ResInfo](msg)
}

// Switch toggles a Circle's relay and waits for the matching ack.
func (e *Engine) Switch(socket codec.SocketId, on bool) error {
	return e.sendAndAwaitAck(codec.ReqSwitch{Socket: socket, On: on}, socket)
}

// Calibration asks a Circle for its power-measurement calibration
// constants.
func (e *Engine) Calibration(socket codec.SocketId) (codec.ResCalibration, error) {
	msg, err := e.sendAndAwait(codec.ReqCalibration{Socket: socket}, codec.IDResCalibration)
	if err != nil {
		return codec.ResCalibration{}, err
	}
	return asBody[codec.ResCalibration](msg)
}

// PowerBuffer asks for the four-entry log block starting at logIndex.
func (e *Engine) PowerBuffer(socket codec.SocketId, logIndex uint32) (codec.ResPowerBuffer, error) {
	msg, err := e.sendAndAwait(codec.ReqPowerBuffer{Socket: socket, LogIndex: logIndex}, codec.IDResPowerBuffer)
	if err != nil {
		return codec.ResPowerBuffer{}, err
	}
	return asBody[codec.ResPowerBuffer](msg)
}

// PowerUse asks for instantaneous power use.
func (e *Engine) PowerUse(socket codec.SocketId) (codec.ResPowerUse, error) {
	msg, err := e.sendAndAwait(codec.ReqPowerUse{Socket: socket}, codec.IDResPowerUse)
	if err != nil {
		return codec.ResPowerUse{}, err
	}
	return asBody[codec.ResPowerUse](msg)
}

// ClockInfo asks a Circle for its real-time clock.
func (e *Engine) ClockInfo(socket codec.SocketId) (codec.ResClockInfo, error) {
	msg, err := e.sendAndAwait(codec.ReqClockInfo{Socket: socket}, codec.IDResClockInfo)
	if err != nil {
		return codec.ResClockInfo{}, err
	}
	return asBody[codec.ResClockInfo](msg)
}

// ClockSet sets a Circle's real-time clock and waits for the matching ack.
func (e *Engine) ClockSet(req codec.ReqClockSet) error {
	return e.sendAndAwaitAck(req, req.Socket)
}

// asBody type-asserts a decoded message's body. A mismatch here means
// pkg/codec routed the wrong decoder for the identifier it returned, which
// is an internal consistency failure rather than something a caller did.
func asBody[T any](msg codec.Decoded) (T, error) {
	body, ok := msg.Body.(T)
	if !ok {
		var zero T
		return zero, protoerr.Newf(protoerr.UnexpectedResponse, "decoded body has type %T, want %T", msg.Body, zero)
	}
	return body, nil
}

// sendAndAwait sends req and waits for a message carrying expected, retrying
// the full send on a transport read timeout. Any other error — a codec
// error, a framing error, a non-timeout transport error — surfaces
// immediately without retrying.
func (e *Engine) sendAndAwait(req codec.Request, expected codec.MessageID) (codec.Decoded, error) {
	var lastErr error
	attempts := e.retries + 1
	for i := 0; i < attempts; i++ {
		e.snoop.TraceDecodedTX(req)
		if err := e.tc.Send(req.Encode()); err != nil {
			if !isTimeout(err) {
				return codec.Decoded{}, err
			}
			lastErr = err
			continue
		}

		if err := e.port.SetReadDeadline(time.Now().Add(e.readTimeout)); err != nil {
			return codec.Decoded{}, protoerr.Wrap(protoerr.Transport, "failed to set read deadline", err)
		}
		msg, err := e.awaitMatchingID(expected)
		if err == nil {
			return msg, nil
		}
		if !isTimeout(err) {
			return codec.Decoded{}, err
		}
		lastErr = err
	}
	return codec.Decoded{}, lastErr
}

// sendAndAwaitAck is sendAndAwait's counterpart for commands acknowledged
// by an Ack carrying the addressed Circle's SocketId rather than by a
// typed response.
func (e *Engine) sendAndAwaitAck(req codec.Request, socket codec.SocketId) error {
	var lastErr error
	attempts := e.retries + 1
	for i := 0; i < attempts; i++ {
		e.snoop.TraceDecodedTX(req)
		if err := e.tc.Send(req.Encode()); err != nil {
			if !isTimeout(err) {
				return err
			}
			lastErr = err
			continue
		}

		if err := e.port.SetReadDeadline(time.Now().Add(e.readTimeout)); err != nil {
			return protoerr.Wrap(protoerr.Transport, "failed to set read deadline", err)
		}
		_, err := e.awaitAck(socket)
		if err == nil {
			return nil
		}
		if !isTimeout(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// awaitMatchingID reads and decodes messages until one carries the
// expected identifier, discarding (and tracing) everything else. It
// returns whatever error terminates the underlying read, including
// timeouts.
func (e *Engine) awaitMatchingID(expected codec.MessageID) (codec.Decoded, error) {
	for {
		payload, err := e.tc.Receive()
		if err != nil {
			return codec.Decoded{}, err
		}

		msg, err := codec.Decode(payload)
		if err != nil {
			return codec.Decoded{}, err
		}
		e.snoop.TraceDecodedRX(msg)

		if msg.ID != expected {
			continue
		}
		return msg, nil
	}
}

// awaitAck reads acks until one carries a SocketId matching socket.
func (e *Engine) awaitAck(socket codec.SocketId) (codec.Ack, error) {
	for {
		msg, err := e.awaitMatchingID(codec.IDAck)
		if err != nil {
			return codec.Ack{}, err
		}
		ack, err := asBody[codec.Ack](msg)
		if err != nil {
			return codec.Ack{}, err
		}
		if ack.SocketID == nil || *ack.SocketID != socket {
			continue
		}
		return ack, nil
	}
}

// isTimeout reports whether err is a protoerr.Transport error wrapping a
// read-deadline expiry, the only case that triggers a resend rather than
// surfacing immediately.
func isTimeout(err error) bool {
	var perr *protoerr.Error
	if !errors.As(err, &perr) || perr.Kind != protoerr.Transport {
		return false
	}
	var netErr net.Error
	if errors.As(perr.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(perr.Err, os.ErrDeadlineExceeded)
}
