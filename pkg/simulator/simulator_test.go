package simulator

import (
	"testing"
	"time"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/device"
	"github.com/plugwise/stick/pkg/engine"
)

const testSocket = codec.SocketId(0x0123456789ABCDEF)

func TestInitializeAgainstSimulator(t *testing.T) {
	sim := New()
	e := engine.New(sim)

	res, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !res.IsOnline {
		t.Fatalf("expected is_online == true")
	}
}

func TestSwitchObserve(t *testing.T) {
	sim := New()
	e := engine.New(sim)

	info, err := e.Info(testSocket)
	if err != nil {
		t.Fatalf("Info (fresh): %v", err)
	}
	if info.RelayOn {
		t.Fatalf("expected a fresh SocketId to read relay off")
	}

	if err := e.Switch(testSocket, true); err != nil {
		t.Fatalf("Switch(on): %v", err)
	}
	info, err = e.Info(testSocket)
	if err != nil {
		t.Fatalf("Info (after on): %v", err)
	}
	if !info.RelayOn {
		t.Fatalf("expected relay on after Switch(true)")
	}

	if err := e.Switch(testSocket, false); err != nil {
		t.Fatalf("Switch(off): %v", err)
	}
	info, err = e.Info(testSocket)
	if err != nil {
		t.Fatalf("Info (after off): %v", err)
	}
	if info.RelayOn {
		t.Fatalf("expected relay off after Switch(false)")
	}
}

func TestCalibrationAllZero(t *testing.T) {
	sim := New()
	e := engine.New(sim)

	c, err := e.Calibration(testSocket)
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	if c.GainA != 0 || c.GainB != 0 || c.OffsetTotal != 0 || c.OffsetNoise != 0 {
		t.Fatalf("expected all-zero calibration constants, got %+v", c)
	}
}

func TestPowerBufferLiteral(t *testing.T) {
	sim := New()
	e := engine.New(sim)

	buf, err := e.PowerBuffer(testSocket, 0)
	if err != nil {
		t.Fatalf("PowerBuffer: %v", err)
	}

	var prev time.Time
	for i, entry := range buf.Entries {
		ts, err := entry.DateTime.Time()
		if err != nil {
			t.Fatalf("entry %d: invalid datetime: %v", i, err)
		}
		if i > 0 && !ts.After(prev) {
			t.Fatalf("expected strictly increasing timestamps, entry %d (%v) not after entry %d (%v)", i, ts, i-1, prev)
		}
		prev = ts
	}
}

func TestClockInfoLiteral(t *testing.T) {
	sim := New()
	e := engine.New(sim)

	ci, err := e.ClockInfo(testSocket)
	if err != nil {
		t.Fatalf("ClockInfo: %v", err)
	}
	if ci.Hour != 11 || ci.Minute != 36 || ci.Second != 58 || ci.DayOfWeek != 6 {
		t.Fatalf("got %+v, want hour=11 minute=36 second=58 day_of_week=6", ci)
	}
}

// TestNoiseWriteIsNotAnError exercises that writing a line carrying no
// recognizable header is treated as noise, not an error.
func TestNoiseWriteIsNotAnError(t *testing.T) {
	sim := New()
	if _, err := sim.Write([]byte("bogus, not even a frame\n")); err != nil {
		t.Fatalf("noise must not error: %v", err)
	}
}

// TestDeviceFacadeAgainstSimulator exercises the full device façade
// end-to-end over the simulator, not just the engine.
func TestDeviceFacadeAgainstSimulator(t *testing.T) {
	sim := New()
	stick, err := device.Connect(sim)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	circle, err := stick.Circle(testSocket)
	if err != nil {
		t.Fatalf("Circle: %v", err)
	}

	if err := circle.SwitchOn(); err != nil {
		t.Fatalf("SwitchOn: %v", err)
	}
	on, err := circle.IsSwitchedOn()
	if err != nil {
		t.Fatalf("IsSwitchedOn: %v", err)
	}
	if !on {
		t.Fatalf("expected relay on after SwitchOn via the simulator")
	}

	buf, err := circle.PowerBuffer(nil)
	if err != nil {
		t.Fatalf("PowerBuffer: %v", err)
	}
	if len(buf) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(buf))
	}
}
