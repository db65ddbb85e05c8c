// Package transport provides the byte-stream abstraction the frame layer
// runs over, plus a real serial-line implementation. Serial enumeration and
// line-discipline configuration live here, kept separate from pkg/frame and
// pkg/engine.
package transport

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal bidirectional byte channel the frame layer needs: a
// blocking reader and writer plus a read deadline. Both the real serial
// adapter below and pkg/simulator's in-memory transport satisfy it.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(time.Time) error
}

// serialPort adapts go.bug.st/serial's Port to this package's Port
// interface.
type serialPort struct {
	port serial.Port
}

// OpenSerial opens a real serial line at 8 data bits, no parity, one stop
// bit, no flow control — the line discipline the stick expects.
func OpenSerial(device string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	return &serialPort{port: p}, nil
}

// ListPorts enumerates the serial devices available on the host, for the
// CLI's list-ports subcommand.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Read adapts go.bug.st/serial's timeout convention to the one pkg/frame
// and pkg/engine expect.
func (s *serialPort) Read(p []byte) (int, error) {
	return translateDeadline(s.port.Read(p))
}

// translateDeadline turns an elapsed-SetReadTimeout read, which
// go.bug.st/serial reports as (0, nil) rather than an error, into
// (0, os.ErrDeadlineExceeded). Left untranslated, that (0, nil) would make
// bufio.Reader.ReadBytes (in the frame transceiver) treat the timeout as an
// empty read and retry internally instead of returning control, and would
// make a real timeout invisible to the engine's retry classifier. A
// blocking read (no deadline set) never returns zero bytes with a nil
// error, so the translation is unconditional.
func translateDeadline(n int, err error) (int, error) {
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (s *serialPort) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialPort) Close() error                { return s.port.Close() }

// SetReadDeadline adapts the fixed point-in-time deadline the frame layer
// wants to go.bug.st/serial's fixed-duration SetReadTimeout.
func (s *serialPort) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return s.port.SetReadTimeout(d)
}
