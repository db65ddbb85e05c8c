package codec

import (
	"fmt"
	"time"

	"github.com/plugwise/stick/pkg/protoerr"
)

// MessageID is the enumerated wire identifier of a Plugwise message.
type MessageID uint16

const (
	IDAck            MessageID = 0x0000
	IDReqInitialize  MessageID = 0x000A
	IDResInitialize  MessageID = 0x0011
	IDReqInfo        MessageID = 0x0023
	IDResInfo        MessageID = 0x0024
	IDReqSwitch      MessageID = 0x0017
	IDReqCalibration MessageID = 0x0026
	IDResCalibration MessageID = 0x0027
	IDReqPowerBuffer MessageID = 0x0048
	IDResPowerBuffer MessageID = 0x0049
	IDReqPowerUse    MessageID = 0x0012
	IDResPowerUse    MessageID = 0x0013
	IDReqClockInfo   MessageID = 0x003E
	IDResClockInfo   MessageID = 0x003F
	IDReqClockSet    MessageID = 0x0016
)

func (id MessageID) String() string {
	return fmt.Sprintf("0x%04X", uint16(id))
}

// Request is implemented by every host->stick message this driver emits.
type Request interface {
	MessageID() MessageID
	Encode() []byte
}

// --- Requests ---

// ReqInitialize asks the stick to report its online state and identity.
type ReqInitialize struct{}

func (ReqInitialize) MessageID() MessageID { return IDReqInitialize }
func (ReqInitialize) Encode() []byte {
	return []byte(fmt.Sprintf("%04X", uint16(IDReqInitialize)))
}

// ReqInfo asks a Circle for its relay state, clock date and firmware info.
type ReqInfo struct{ Socket SocketId }

func (ReqInfo) MessageID() MessageID { return IDReqInfo }
func (r ReqInfo) Encode() []byte {
	return []byte(fmt.Sprintf("%04X%s", uint16(IDReqInfo), encodeSocketID(r.Socket)))
}

// ReqSwitch toggles a Circle's relay.
type ReqSwitch struct {
	Socket SocketId
	On     bool
}

func (ReqSwitch) MessageID() MessageID { return IDReqSwitch }
func (r ReqSwitch) Encode() []byte {
	on := uint8(0)
	if r.On {
		on = 1
	}
	return []byte(fmt.Sprintf("%04X%s%s", uint16(IDReqSwitch), encodeSocketID(r.Socket), encodeU8(on)))
}

// ReqCalibration asks a Circle for its power-measurement calibration
// constants.
type ReqCalibration struct{ Socket SocketId }

func (ReqCalibration) MessageID() MessageID { return IDReqCalibration }
func (r ReqCalibration) Encode() []byte {
	return []byte(fmt.Sprintf("%04X%s", uint16(IDReqCalibration), encodeSocketID(r.Socket)))
}

// ReqPowerBuffer asks for the block of four hourly (timestamp, pulses)
// entries starting at LogIndex.
type ReqPowerBuffer struct {
	Socket   SocketId
	LogIndex uint32
}

func (ReqPowerBuffer) MessageID() MessageID { return IDReqPowerBuffer }
func (r ReqPowerBuffer) Encode() []byte {
	addr := LogIndexToAddress(r.LogIndex)
	return []byte(fmt.Sprintf("%04X%s%s", uint16(IDReqPowerBuffer), encodeSocketID(r.Socket), encodeU32(addr)))
}

// ReqPowerUse asks for instantaneous power use.
type ReqPowerUse struct{ Socket SocketId }

func (ReqPowerUse) MessageID() MessageID { return IDReqPowerUse }
func (r ReqPowerUse) Encode() []byte {
	return []byte(fmt.Sprintf("%04X%s", uint16(IDReqPowerUse), encodeSocketID(r.Socket)))
}

// ReqClockInfo asks a Circle for its real-time clock.
type ReqClockInfo struct{ Socket SocketId }

func (ReqClockInfo) MessageID() MessageID { return IDReqClockInfo }
func (r ReqClockInfo) Encode() []byte {
	return []byte(fmt.Sprintf("%04X%s", uint16(IDReqClockInfo), encodeSocketID(r.Socket)))
}

// ReqClockSet sets a Circle's real-time clock, and optionally its last log
// address (nil means "leave unchanged", encoded as 0xFFFFFFFF).
type ReqClockSet struct {
	Socket     SocketId
	DateTime   DateTime
	LogIndex   *uint32
	Hour       uint8
	Minute     uint8
	Second     uint8
	DayOfWeek  uint8
}

func (ReqClockSet) MessageID() MessageID { return IDReqClockSet }
func (r ReqClockSet) Encode() []byte {
	logaddr := uint32(0xFFFFFFFF)
	if r.LogIndex != nil {
		logaddr = LogIndexToAddress(*r.LogIndex)
	}
	body := fmt.Sprintf("%04X%s%s%s%s%s%s%s",
		uint16(IDReqClockSet), encodeSocketID(r.Socket),
		encodeDateTime(r.DateTime), encodeU32(logaddr),
		encodeU8(r.Hour), encodeU8(r.Minute), encodeU8(r.Second), encodeU8(r.DayOfWeek))
	return []byte(body)
}

// NewReqClockSetFromTime builds a ReqClockSet from a UTC calendar time,
// leaving the last log address unchanged.
func NewReqClockSetFromTime(socket SocketId, t time.Time) ReqClockSet {
	u := t.UTC()
	return ReqClockSet{
		Socket:    socket,
		DateTime:  NewDateTime(u),
		LogIndex:  nil,
		Hour:      uint8(u.Hour()),
		Minute:    uint8(u.Minute()),
		Second:    uint8(u.Second()),
		DayOfWeek: DayOfWeek(u),
	}
}

// --- Responses ---

// ResInitialize is the stick's answer to ReqInitialize.
type ResInitialize struct {
	Unknown1  uint8
	IsOnline  bool
	NetworkID uint64
	ShortID   uint16
	Unknown2  uint8
}

// ResInfo is a Circle's answer to ReqInfo.
type ResInfo struct {
	DateTime        DateTime
	LastLogIndex    uint32
	RelayOn         bool
	Hz              int
	HardwareVersion string
	FirmwareEpoch   uint32
	Unknown         uint8
}

// FirmwareVersion interprets FirmwareEpoch as a unix timestamp.
func (r ResInfo) FirmwareVersion() time.Time {
	return time.Unix(int64(int32(r.FirmwareEpoch)), 0).UTC()
}

// ResCalibration is a Circle's power-measurement calibration constants.
type ResCalibration = CalibrationConstants

// PowerBufferEntry is one (timestamp, pulses) hourly sample.
type PowerBufferEntry struct {
	DateTime DateTime
	Pulses   Pulses
}

// ResPowerBuffer is a block of four hourly samples plus the Circle's
// current last log index.
type ResPowerBuffer struct {
	Entries      [4]PowerBufferEntry
	LastLogIndex uint32
}

// ResPowerUse is instantaneous power-use information.
type ResPowerUse struct {
	Pulses1s    Pulses
	Pulses8s    Pulses
	PulsesHour  Pulses
	Unknown1    uint16
	Unknown2    uint16
	Unknown3    uint16
}

// ResClockInfo is a Circle's real-time clock.
type ResClockInfo struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	DayOfWeek  uint8
	Unknown1   uint8
	Unknown2   uint16
}

// Ack is the universal acknowledgement message; SocketID is present iff
// the stick echoed one back (Switch/ClockSet acks do; generic status acks
// may not).
type Ack struct {
	Status   uint16
	SocketID *SocketId
}

// Decoded is a fully decoded inbound message: Body holds the decoded
// message body, whose concrete type is selected by ID.
type Decoded struct {
	ID       MessageID
	Counter  uint16
	SocketID SocketId // valid when ID != IDAck
	Body     interface{}
}

// Decode parses a full payload (identifier, counter, optional SocketId,
// message body) into a Decoded value. Unknown identifiers and malformed
// fields surface as a *protoerr.Error with Kind Codec.
func Decode(payload []byte) (Decoded, error) {
	c := newCursor(payload)

	rawID, err := c.u16()
	if err != nil {
		return Decoded{}, err
	}
	id := MessageID(rawID)

	counter, err := c.u16()
	if err != nil {
		return Decoded{}, err
	}

	var socket SocketId
	if id != IDAck {
		mac, err := c.u64()
		if err != nil {
			return Decoded{}, err
		}
		socket = SocketId(mac)
	}

	var body interface{}
	switch id {
	case IDAck:
		body, err = decodeAck(c)
	case IDResInitialize:
		body, err = decodeResInitialize(c)
	case IDResInfo:
		body, err = decodeResInfo(c)
	case IDResCalibration:
		body, err = decodeResCalibration(c)
	case IDResPowerBuffer:
		body, err = decodeResPowerBuffer(c)
	case IDResPowerUse:
		body, err = decodeResPowerUse(c)
	case IDResClockInfo:
		body, err = decodeResClockInfo(c)
	default:
		return Decoded{}, protoerr.Newf(protoerr.Codec, "unknown message identifier %s", id)
	}
	if err != nil {
		return Decoded{}, err
	}

	return Decoded{ID: id, Counter: counter, SocketID: socket, Body: body}, nil
}

func decodeAck(c *cursor) (Ack, error) {
	status, err := c.u16()
	if err != nil {
		return Ack{}, err
	}
	var socket *SocketId
	if c.remaining() > 0 {
		mac, err := c.u64()
		if err != nil {
			return Ack{}, err
		}
		s := SocketId(mac)
		socket = &s
	}
	if err := c.checkFullyConsumed(); err != nil {
		return Ack{}, err
	}
	return Ack{Status: status, SocketID: socket}, nil
}

func decodeResInitialize(c *cursor) (ResInitialize, error) {
	unknown1, err := c.u8()
	if err != nil {
		return ResInitialize{}, err
	}
	online, err := c.u8()
	if err != nil {
		return ResInitialize{}, err
	}
	network, err := c.u64()
	if err != nil {
		return ResInitialize{}, err
	}
	short, err := c.u16()
	if err != nil {
		return ResInitialize{}, err
	}
	unknown2, err := c.u8()
	if err != nil {
		return ResInitialize{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResInitialize{}, err
	}
	return ResInitialize{
		Unknown1:  unknown1,
		IsOnline:  online != 0,
		NetworkID: network,
		ShortID:   short,
		Unknown2:  unknown2,
	}, nil
}

func decodeResInfo(c *cursor) (ResInfo, error) {
	dt, err := c.datetime()
	if err != nil {
		return ResInfo{}, err
	}
	lastAddr, err := c.u32()
	if err != nil {
		return ResInfo{}, err
	}
	relay, err := c.u8()
	if err != nil {
		return ResInfo{}, err
	}
	hzCode, err := c.u8()
	if err != nil {
		return ResInfo{}, err
	}
	hw, err := c.str(12)
	if err != nil {
		return ResInfo{}, err
	}
	fw, err := c.u32()
	if err != nil {
		return ResInfo{}, err
	}
	unknown, err := c.u8()
	if err != nil {
		return ResInfo{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResInfo{}, err
	}
	return ResInfo{
		DateTime:        dt,
		LastLogIndex:    AddressToLogIndex(lastAddr),
		RelayOn:         relay != 0,
		Hz:              DecodeHz(hzCode),
		HardwareVersion: hw,
		FirmwareEpoch:   fw,
		Unknown:         unknown,
	}, nil
}

func decodeResCalibration(c *cursor) (ResCalibration, error) {
	gainA, err := c.f32()
	if err != nil {
		return ResCalibration{}, err
	}
	gainB, err := c.f32()
	if err != nil {
		return ResCalibration{}, err
	}
	offTotal, err := c.f32()
	if err != nil {
		return ResCalibration{}, err
	}
	offNoise, err := c.f32()
	if err != nil {
		return ResCalibration{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResCalibration{}, err
	}
	return ResCalibration{GainA: gainA, GainB: gainB, OffsetTotal: offTotal, OffsetNoise: offNoise}, nil
}

func decodeResPowerBuffer(c *cursor) (ResPowerBuffer, error) {
	var entries [4]PowerBufferEntry
	for i := 0; i < 4; i++ {
		dt, err := c.datetime()
		if err != nil {
			return ResPowerBuffer{}, err
		}
		pulses, err := c.u32()
		if err != nil {
			return ResPowerBuffer{}, err
		}
		entries[i] = PowerBufferEntry{DateTime: dt, Pulses: NewPulses(pulses, 3600)}
	}
	addr, err := c.u32()
	if err != nil {
		return ResPowerBuffer{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResPowerBuffer{}, err
	}
	return ResPowerBuffer{Entries: entries, LastLogIndex: AddressToLogIndex(addr)}, nil
}

func decodeResPowerUse(c *cursor) (ResPowerUse, error) {
	p1s, err := c.u16()
	if err != nil {
		return ResPowerUse{}, err
	}
	p8s, err := c.u16()
	if err != nil {
		return ResPowerUse{}, err
	}
	pHour, err := c.u32()
	if err != nil {
		return ResPowerUse{}, err
	}
	u1, err := c.u16()
	if err != nil {
		return ResPowerUse{}, err
	}
	u2, err := c.u16()
	if err != nil {
		return ResPowerUse{}, err
	}
	u3, err := c.u16()
	if err != nil {
		return ResPowerUse{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResPowerUse{}, err
	}
	return ResPowerUse{
		Pulses1s:   NewPulses(uint32(p1s), 1),
		Pulses8s:   NewPulses(uint32(p8s), 8),
		PulsesHour: NewPulses(pHour, 3600),
		Unknown1:   u1,
		Unknown2:   u2,
		Unknown3:   u3,
	}, nil
}

func decodeResClockInfo(c *cursor) (ResClockInfo, error) {
	hour, err := c.u8()
	if err != nil {
		return ResClockInfo{}, err
	}
	minute, err := c.u8()
	if err != nil {
		return ResClockInfo{}, err
	}
	second, err := c.u8()
	if err != nil {
		return ResClockInfo{}, err
	}
	dow, err := c.u8()
	if err != nil {
		return ResClockInfo{}, err
	}
	unknown1, err := c.u8()
	if err != nil {
		return ResClockInfo{}, err
	}
	unknown2, err := c.u16()
	if err != nil {
		return ResClockInfo{}, err
	}
	if err := c.checkFullyConsumed(); err != nil {
		return ResClockInfo{}, err
	}
	return ResClockInfo{
		Hour:      hour,
		Minute:    minute,
		Second:    second,
		DayOfWeek: dow,
		Unknown1:  unknown1,
		Unknown2:  unknown2,
	}, nil
}
