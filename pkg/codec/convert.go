package codec

import (
	"time"

	"github.com/plugwise/stick/pkg/protoerr"
)

// pulsesPerKW is the closed-form constant relating corrected pulses/second
// to kilowatts.
const pulsesPerKW = 468.9385193

// logAddrOffset and bytesPerLogSlot define the bijection between the
// user-facing hourly LogIndex and the flash byte LogAddress a Circle
// reports on the wire.
const (
	logAddrOffset  uint32 = 278528
	bytesPerLogSlot uint32 = 32
)

// LogIndexToAddress converts a user-facing hourly slot index to the flash
// byte address the wire protocol uses.
func LogIndexToAddress(index uint32) uint32 {
	return index*bytesPerLogSlot + logAddrOffset
}

// AddressToLogIndex converts a flash byte address to the user-facing
// hourly slot index.
func AddressToLogIndex(addr uint32) uint32 {
	return (addr - logAddrOffset) / bytesPerLogSlot
}

// CalibrationConstants are the per-Circle IEEE-754 single-precision
// coefficients used to turn raw pulses into watts/kWh. They are cached at
// handle-creation time and replaced only when the handle explicitly
// refreshes its calibration.
type CalibrationConstants struct {
	GainA       float32
	GainB       float32
	OffsetTotal float32
	OffsetNoise float32
}

// Pulses is the raw (pulses, timespan) pair a Circle reports; it is never
// user-facing on its own and must be run through CalibrationConstants
// before exposure.
type Pulses struct {
	Count    uint32
	Timespan time.Duration
}

// NewPulses builds a Pulses value from a raw pulse count and a timespan in
// seconds, as decoded directly off the wire.
func NewPulses(count uint32, timespanSeconds uint32) Pulses {
	return Pulses{Count: count, Timespan: time.Duration(timespanSeconds) * time.Second}
}

func (p Pulses) timespanSeconds() float64 {
	return p.Timespan.Seconds()
}

// perSecondCompensated computes pps_corrected = (p/Δt) + offNoise (unless p
// is 0 or 0xFFFF, in which case the result is 0), then applies a quadratic
// gain/offset correction.
func (p Pulses) perSecondCompensated(c CalibrationConstants) float64 {
	if p.Count == 0 || p.Count == 0xFFFF {
		return 0
	}
	ppsCorrected := (float64(p.Count) / p.timespanSeconds()) + float64(c.OffsetNoise)
	return ppsCorrected*ppsCorrected*float64(c.GainB) + ppsCorrected*float64(c.GainA) + float64(c.OffsetTotal)
}

// KW converts the pulses to kilowatts using the given calibration.
func (p Pulses) KW(c CalibrationConstants) float64 {
	return p.perSecondCompensated(c) / pulsesPerKW
}

// Watts converts the pulses to watts using the given calibration.
func (p Pulses) Watts(c CalibrationConstants) float64 {
	return p.KW(c) * 1000
}

// KWh converts the pulses to kilowatt-hours using the given calibration.
func (p Pulses) KWh(c CalibrationConstants) float64 {
	return p.KW(c) * (p.timespanSeconds() / 3600)
}

// DateTime is the four-byte on-wire timestamp: (year-2000, month,
// minutes-since-first-of-month).
type DateTime struct {
	Year    uint8
	Month   uint8
	Minutes uint16
}

// NewDateTime builds a wire DateTime from a UTC calendar time.
func NewDateTime(t time.Time) DateTime {
	u := t.UTC()
	minutes := uint16((u.Day()-1)*24*60 + u.Hour()*60 + u.Minute())
	return DateTime{
		Year:    uint8(u.Year() - 2000),
		Month:   uint8(u.Month()),
		Minutes: minutes,
	}
}

// Time converts the wire DateTime to a calendar time, or returns a
// protoerr.InvalidTimestamp error if month/day-of-month are out of range.
func (dt DateTime) Time() (time.Time, error) {
	minute := int(dt.Minutes % 60)
	hour := int((dt.Minutes / 60) % 24)
	day := 1 + int(dt.Minutes/(24*60))

	if dt.Month == 0 || dt.Month > 12 || day > 31 {
		return time.Time{}, protoerr.New(protoerr.InvalidTimestamp, "datetime out of range")
	}

	year := 2000 + int(dt.Year)
	return time.Date(year, time.Month(dt.Month), day, hour, minute, 0, 0, time.UTC), nil
}

// Valid reports whether the DateTime decodes to an in-range calendar value.
func (dt DateTime) Valid() bool {
	_, err := dt.Time()
	return err == nil
}

// DecodeHz maps the raw hz-code byte the firmware reports to an actual mains
// frequency: 133->50, 197->60, anything else->0.
func DecodeHz(code uint8) int {
	switch code {
	case 133:
		return 50
	case 197:
		return 60
	default:
		return 0
	}
}

// DayOfWeek maps a standard time.Weekday (Sunday=0) onto the wire's
// Monday..Saturday=1..6, Sunday=7 encoding used by ClockSet.
func DayOfWeek(t time.Time) uint8 {
	w := t.Weekday()
	if w == time.Sunday {
		return 7
	}
	return uint8(w)
}
