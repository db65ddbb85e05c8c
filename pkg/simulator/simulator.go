// Package simulator provides an in-memory pkg/transport.Port that answers
// the Plugwise wire protocol with fixed canned responses, for testing
// higher layers without real hardware.
package simulator

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/frame"
	"github.com/plugwise/stick/pkg/protoerr"
)

// Simulator is a test oracle: it holds one relay-state bit per SocketId
// (unknown ids read as off) and replies to every recognized request with a
// fixed literal response body, CRC'd and framed the same way pkg/frame
// does for the real wire.
type Simulator struct {
	mu      sync.Mutex
	relay   map[codec.SocketId]bool
	pending bytes.Buffer
}

// New returns a Simulator with an empty relay-state map.
func New() *Simulator {
	return &Simulator{relay: make(map[codec.SocketId]bool)}
}

// IsOn reports the simulator's recorded relay state for socket, defaulting
// to false for sockets never switched.
func (s *Simulator) IsOn(socket codec.SocketId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relay[socket]
}

// Write reassembles the inbound frame, dispatches on its 4-char
// identifier and enqueues the matching canned response. Unrecognized
// identifiers fail the write with a protocol error.
func (s *Simulator) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, noise, err := frame.Decode(append([]byte{}, b...))
	if err != nil {
		return 0, err
	}
	if noise || len(payload) < 4 {
		return len(b), nil
	}

	command := string(payload[:4])
	rest := payload[4:]

	var mac codec.SocketId
	if command != "000A" {
		if len(rest) < 16 {
			return 0, protoerr.New(protoerr.Codec, "truncated socket id in simulated request")
		}
		parsed, err := codec.ParseSocketID(string(rest[:16]))
		if err != nil {
			return 0, protoerr.Wrap(protoerr.Codec, "invalid socket id in simulated request", err)
		}
		mac = parsed
		rest = rest[16:]
	}

	if command == "0017" {
		if len(rest) < 2 {
			return 0, protoerr.New(protoerr.Codec, "truncated switch flag in simulated request")
		}
		s.relay[mac] = string(rest[:2]) != "00"
	}

	var body string
	switch command {
	case "000A":
		body = "0011" + "0000" + "000000000000000001010000000000000000000000"
	case "0016", "0017":
		body = "0000" + "0000" + "0000" + mac.String()
	case "0023":
		state := 0
		if s.relay[mac] {
			state = 1
		}
		body = "0024" + "0000" + mac.String() + fmt.Sprintf("0F0489B800048398%02X856539070140234E0844C202", state)
	case "0026":
		body = "0027" + "0000" + mac.String() + "00000000000000000000000000000000"
	case "0048":
		body = "0049" + "0000" + mac.String() + "0D094D1C0000007B0D094D58000000760D094D94000000710D094DD00000003100044000"
	case "0012":
		body = "0013" + "0000" + mac.String() + "0000000000000000000000000000"
	case "003E":
		body = "003F" + "0000" + mac.String() + "0B243A0601457A"
	default:
		return 0, protoerr.Newf(protoerr.UnexpectedResponse, "simulator does not recognize command %q", command)
	}

	s.pending.Write(frame.Encode([]byte(body)))
	return len(b), nil
}

// Read drains buffered response bytes, matching io.Reader semantics for
// the frame transceiver's bufio.Reader.
func (s *Simulator) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Read(b)
}

// Close is a no-op; the simulator holds no real resource.
func (s *Simulator) Close() error { return nil }

// SetReadDeadline is a no-op: reads never block, responses are always
// already buffered by the time Read is called.
func (s *Simulator) SetReadDeadline(time.Time) error { return nil }
