package engine

import (
	"log"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/frame"
)

// Snoop is the command engine's tracing capability: it extends the frame
// layer's raw/noise tracing with typed, decoded-message tracing. Four
// selectable levels are provided as distinct constructors rather than one
// enum carrying a writer, to keep each mode's call site obvious.
type Snoop interface {
	frame.Snoop
	TraceDecodedTX(req codec.Request)
	TraceDecodedRX(msg codec.Decoded)
}

type snoop struct {
	logger  *log.Logger
	decoded bool
	raw     bool
	noise   bool
}

// NewNoopSnoop disables all tracing ("off").
func NewNoopSnoop() Snoop {
	return &snoop{}
}

// NewDecodedSnoop logs typed messages in both directions ("decoded").
func NewDecodedSnoop(logger *log.Logger) Snoop {
	return &snoop{logger: logger, decoded: true}
}

// NewRawSnoop logs payload+CRC for real protocol traffic only ("raw").
func NewRawSnoop(logger *log.Logger) Snoop {
	return &snoop{logger: logger, raw: true}
}

// NewAllSnoop logs raw protocol traffic plus non-protocol noise lines the
// stick may emit before initialization ("all").
func NewAllSnoop(logger *log.Logger) Snoop {
	return &snoop{logger: logger, raw: true, noise: true}
}

func (s *snoop) TraceTX(payload, crc []byte) {
	if s.raw {
		s.logger.Printf("> %s%s", payload, crc)
	}
}

func (s *snoop) TraceRX(payload, crc []byte) {
	if s.raw {
		s.logger.Printf("< %s%s", payload, crc)
	}
}

func (s *snoop) TraceNoise(line []byte) {
	if s.noise {
		s.logger.Printf("~ %q", line)
	}
}

func (s *snoop) TraceDecodedTX(req codec.Request) {
	if s.decoded {
		s.logger.Printf("> %s %+v", req.MessageID(), req)
	}
}

func (s *snoop) TraceDecodedRX(msg codec.Decoded) {
	if s.decoded {
		s.logger.Printf("< %s %+v", msg.ID, msg.Body)
	}
}
