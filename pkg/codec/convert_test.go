package codec

import (
	"testing"
	"time"
)

func TestLogIndexAddressBijection(t *testing.T) {
	for _, idx := range []uint32{0, 1, 10, 1000} {
		addr := LogIndexToAddress(idx)
		if got := AddressToLogIndex(addr); got != idx {
			t.Fatalf("index %d -> addr %d -> index %d, want round trip", idx, addr, got)
		}
	}
	if got := LogIndexToAddress(0); got != 278528 {
		t.Fatalf("LogIndexToAddress(0) = %d, want 278528", got)
	}
}

func TestPulsesZeroAndSaturatedCountYieldZero(t *testing.T) {
	c := CalibrationConstants{GainA: 1, GainB: 1, OffsetTotal: 1, OffsetNoise: 1}
	for _, count := range []uint32{0, 0xFFFF} {
		p := NewPulses(count, 8)
		if w := p.Watts(c); w != 0 {
			t.Fatalf("count=%d: got %f watts, want 0", count, w)
		}
	}
}

func TestPulsesIdentityCalibrationMatchesClosedForm(t *testing.T) {
	// With GainA=1, GainB=0, OffsetTotal=0, OffsetNoise=0 the correction
	// collapses to pps_corrected unmodified, so Watts should equal
	// (count/timespan) / pulsesPerKW * 1000.
	c := CalibrationConstants{GainA: 1, GainB: 0, OffsetTotal: 0, OffsetNoise: 0}
	p := NewPulses(800, 8)
	pps := 800.0 / 8.0
	want := (pps / pulsesPerKW) * 1000
	if got := p.Watts(c); (got-want) > 1e-9 || (want-got) > 1e-9 {
		t.Fatalf("got %f watts, want %f", got, want)
	}
}

func TestPulsesKWhUsesTimespan(t *testing.T) {
	c := CalibrationConstants{GainA: 1}
	p := NewPulses(3600, 3600)
	kw := p.KW(c)
	want := kw * (3600.0 / 3600.0)
	if got := p.KWh(c); got != want {
		t.Fatalf("got %f kWh, want %f", got, want)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, time.March, 15, 13, 45, 0, 0, time.UTC)
	dt := NewDateTime(in)
	out, err := dt.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("got %v, want %v", out, in)
	}
}

func TestDateTimeOutOfRangeIsInvalid(t *testing.T) {
	dt := DateTime{Year: 26, Month: 13, Minutes: 0}
	if dt.Valid() {
		t.Fatalf("expected month 13 to be invalid")
	}
	if _, err := dt.Time(); err == nil {
		t.Fatalf("expected an error for an out-of-range month")
	}
}

func TestDecodeHz(t *testing.T) {
	cases := map[uint8]int{133: 50, 197: 60, 0: 0, 42: 0}
	for code, want := range cases {
		if got := DecodeHz(code); got != want {
			t.Fatalf("DecodeHz(%d) = %d, want %d", code, got, want)
		}
	}
}

func TestDayOfWeekSundayMapsToSeven(t *testing.T) {
	sunday := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC) // a Sunday
	if got := DayOfWeek(sunday); got != 7 {
		t.Fatalf("got %d, want 7 for Sunday", got)
	}
	monday := sunday.AddDate(0, 0, 1)
	if got := DayOfWeek(monday); got != 1 {
		t.Fatalf("got %d, want 1 for Monday", got)
	}
	saturday := sunday.AddDate(0, 0, -1)
	if got := DayOfWeek(saturday); got != 6 {
		t.Fatalf("got %d, want 6 for Saturday", got)
	}
}
