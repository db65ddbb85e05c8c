// Package device provides the user-facing façade over pkg/engine: a Stick
// handle for the USB coordinator and Circle handles for individual
// smart-socket endpoints, with calibration cached at handle-creation time.
package device

import (
	"time"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/engine"
	"github.com/plugwise/stick/pkg/protoerr"
	"github.com/plugwise/stick/pkg/transport"
)

// Observer receives fire-and-forget notifications of Circle events. It
// exists so an optional sink (pkg/telemetry's Redis publisher, or a test
// spy) can watch the façade's operations without the core depending on
// anything beyond the standard library. A nil Observer is never passed
// around internally; NopObserver satisfies the interface with no-ops.
type Observer interface {
	RelaySwitched(socket codec.SocketId, on bool)
	WattsRead(socket codec.SocketId, watts float64)
	ClockRead(socket codec.SocketId, t time.Time)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) RelaySwitched(codec.SocketId, bool)    {}
func (NopObserver) WattsRead(codec.SocketId, float64)     {}
func (NopObserver) ClockRead(codec.SocketId, time.Time)   {}

// Stick is a connected USB coordinator. It owns the command engine
// exclusively; every Circle handle created from it shares that ownership
// through a plain pointer back to the Stick, never a separate connection.
type Stick struct {
	engine   *engine.Engine
	info     codec.ResInitialize
	observer Observer
}

// Connect opens the command engine on port and runs Initialize, failing
// with a protoerr.NotOnline error if the stick reports itself offline.
func Connect(port transport.Port) (*Stick, error) {
	e := engine.New(port)
	info, err := e.Initialize()
	if err != nil {
		return nil, err
	}
	if !info.IsOnline {
		return nil, protoerr.New(protoerr.NotOnline, "stick initialized but reported offline")
	}
	return &Stick{engine: e, info: info, observer: NopObserver{}}, nil
}

// SetObserver installs a fire-and-forget event sink; nil is treated as
// NopObserver{}.
func (s *Stick) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	s.observer = o
}

// SetSnoop installs a tracing sink on the underlying command engine.
func (s *Stick) SetSnoop(snoop engine.Snoop) { s.engine.SetSnoop(snoop) }

// SetRetries overrides the command engine's resend-on-timeout count.
func (s *Stick) SetRetries(n int) { s.engine.SetRetries(n) }

// SetReadTimeout overrides the command engine's per-attempt read deadline.
func (s *Stick) SetReadTimeout(d time.Duration) { s.engine.SetReadTimeout(d) }

// NetworkID is the ZigBee network identifier the stick reported on connect.
func (s *Stick) NetworkID() uint64 { return s.info.NetworkID }

// ShortID is the stick's own short network address.
func (s *Stick) ShortID() uint16 { return s.info.ShortID }

// Circle creates a handle for the Circle with the given SocketId, running
// Calibration and caching the result for the handle's lifetime.
func (s *Stick) Circle(socket codec.SocketId) (*Circle, error) {
	constants, err := s.engine.Calibration(socket)
	if err != nil {
		return nil, err
	}
	return &Circle{stick: s, socket: socket, constants: constants}, nil
}

// Circle is a handle to one smart-socket endpoint, addressed by its
// 64-bit SocketId. Its calibration constants are fixed at creation; call
// RefreshCalibration after a stick power-cycle if they may have changed.
type Circle struct {
	stick     *Stick
	socket    codec.SocketId
	constants codec.CalibrationConstants
}

// SocketID returns the handle's address.
func (c *Circle) SocketID() codec.SocketId { return c.socket }

// RefreshCalibration re-reads and replaces the cached calibration
// constants, for long-lived handles spanning a stick power-cycle.
func (c *Circle) RefreshCalibration() error {
	constants, err := c.stick.engine.Calibration(c.socket)
	if err != nil {
		return err
	}
	c.constants = constants
	return nil
}

// SwitchOn closes the relay.
func (c *Circle) SwitchOn() error { return c.switchTo(true) }

// SwitchOff opens the relay.
func (c *Circle) SwitchOff() error { return c.switchTo(false) }

func (c *Circle) switchTo(on bool) error {
	if err := c.stick.engine.Switch(c.socket, on); err != nil {
		return err
	}
	c.stick.observer.RelaySwitched(c.socket, on)
	return nil
}

// IsSwitchedOn reports the relay's current state.
func (c *Circle) IsSwitchedOn() (bool, error) {
	info, err := c.stick.engine.Info(c.socket)
	if err != nil {
		return false, err
	}
	return info.RelayOn, nil
}

// ActualWatts reports instantaneous power draw from the 8-second pulse
// window the stick reports for a live reading.
func (c *Circle) ActualWatts() (float64, error) {
	pu, err := c.stick.engine.PowerUse(c.socket)
	if err != nil {
		return 0, err
	}
	watts := pu.Pulses8s.Watts(c.constants)
	c.stick.observer.WattsRead(c.socket, watts)
	return watts, nil
}

// Clock reads the Circle's calendar date (from Info) and time-of-day
// (from ClockInfo) and assembles a single calendar time.
func (c *Circle) Clock() (time.Time, error) {
	info, err := c.stick.engine.Info(c.socket)
	if err != nil {
		return time.Time{}, err
	}
	date, err := info.DateTime.Time()
	if err != nil {
		return time.Time{}, err
	}
	ci, err := c.stick.engine.ClockInfo(c.socket)
	if err != nil {
		return time.Time{}, err
	}
	assembled := time.Date(date.Year(), date.Month(), date.Day(),
		int(ci.Hour), int(ci.Minute), int(ci.Second), 0, time.UTC)
	c.stick.observer.ClockRead(c.socket, assembled)
	return assembled, nil
}

// SetClock sets the Circle's real-time clock to t (interpreted as UTC) and
// its day-of-week, waiting for the matching ack.
func (c *Circle) SetClock(t time.Time) error {
	if err := c.stick.engine.ClockSet(codec.NewReqClockSetFromTime(c.socket, t)); err != nil {
		return err
	}
	c.stick.observer.ClockRead(c.socket, t.UTC())
	return nil
}

// PowerBuffer reads hourly (timestamp, kWh) samples starting at the
// windowed LogIndex through the Circle's current last log index,
// inclusive. If maxEntries is nil the window starts at index 0; otherwise
// it starts at max(0, lastLogIndex - maxEntries/4), since every request
// returns a four-entry block. Entries whose DateTime decodes out of range
// are dropped silently. The returned map is keyed by UTC timestamp;
// Go maps have no inherent order, so callers that need chronological
// order should sort the keys themselves.
func (c *Circle) PowerBuffer(maxEntries *int) (map[time.Time]float64, error) {
	info, err := c.stick.engine.Info(c.socket)
	if err != nil {
		return nil, err
	}
	lastLogIndex := info.LastLogIndex

	var start uint32
	if maxEntries != nil {
		window := uint32(*maxEntries) / 4
		if lastLogIndex > window {
			start = lastLogIndex - window
		}
	}

	result := make(map[time.Time]float64)
	for idx := start; idx <= lastLogIndex; idx++ {
		buf, err := c.stick.engine.PowerBuffer(c.socket, idx)
		if err != nil {
			return nil, err
		}
		for _, entry := range buf.Entries {
			ts, err := entry.DateTime.Time()
			if err != nil {
				continue
			}
			result[ts] = entry.Pulses.KWh(c.constants)
		}
	}
	return result, nil
}
