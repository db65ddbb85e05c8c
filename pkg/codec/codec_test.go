package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/plugwise/stick/pkg/protoerr"
)

const testSocket = SocketId(0x0123456789ABCDEF)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", s, err)
	}
	return tm
}

func TestSocketIDRoundTrip(t *testing.T) {
	s := testSocket
	got, err := ParseSocketID(s.String())
	if err != nil {
		t.Fatalf("ParseSocketID: %v", err)
	}
	if got != s {
		t.Fatalf("got %s, want %s", got, s)
	}
}

func TestParseSocketIDRejectsNonHex(t *testing.T) {
	if _, err := ParseSocketID("not-hex"); err == nil {
		t.Fatalf("expected an error for a non-hex socket id")
	}
}

func TestDecodeResInitialize(t *testing.T) {
	payload := []byte("001100000123456789ABCDEF00011020304050607080900000")
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.ID != IDResInitialize {
		t.Fatalf("got id %s, want %s", msg.ID, IDResInitialize)
	}
	if msg.SocketID != testSocket {
		t.Fatalf("got socket %s, want %s", msg.SocketID, testSocket)
	}
	body, ok := msg.Body.(ResInitialize)
	if !ok {
		t.Fatalf("body has type %T, want ResInitialize", msg.Body)
	}
	if !body.IsOnline {
		t.Fatalf("expected IsOnline")
	}
	if body.NetworkID != 0x1020304050607080 {
		t.Fatalf("got network id %X", body.NetworkID)
	}
	if body.ShortID != 0x9000 {
		t.Fatalf("got short id %X", body.ShortID)
	}
}

func TestDecodeResCalibration(t *testing.T) {
	payload := []byte("002700000123456789ABCDEF3FC00000000000000000000000000000")
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := msg.Body.(ResCalibration)
	if !ok {
		t.Fatalf("body has type %T, want ResCalibration", msg.Body)
	}
	if body.GainA != 1.5 {
		t.Fatalf("got gainA %f, want 1.5", body.GainA)
	}
	if body.GainB != 0 || body.OffsetTotal != 0 || body.OffsetNoise != 0 {
		t.Fatalf("expected remaining constants to be zero, got %+v", body)
	}
}

func TestDecodeAckWithAndWithoutSocket(t *testing.T) {
	withSocket := []byte("0000000000000123456789ABCDEF")
	msg, err := Decode(withSocket)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ack, ok := msg.Body.(Ack)
	if !ok {
		t.Fatalf("body has type %T, want Ack", msg.Body)
	}
	if ack.SocketID == nil || *ack.SocketID != testSocket {
		t.Fatalf("got socket %v, want %s", ack.SocketID, testSocket)
	}

	withoutSocket := []byte("000000000000")
	msg, err = Decode(withoutSocket)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ack, ok = msg.Body.(Ack)
	if !ok {
		t.Fatalf("body has type %T, want Ack", msg.Body)
	}
	if ack.SocketID != nil {
		t.Fatalf("expected a nil SocketID, got %v", *ack.SocketID)
	}
}

func TestDecodeUnknownIdentifierIsCodecError(t *testing.T) {
	payload := []byte("FFFF00000123456789ABCDEF")
	_, err := Decode(payload)
	if err == nil {
		t.Fatalf("expected an error for an unknown identifier")
	}
	var perr *protoerr.Error
	if !errors.As(err, &perr) || perr.Kind != protoerr.Codec {
		t.Fatalf("expected Codec kind, got %v", err)
	}
}

func TestDecodeTruncatedPayloadIsCodecError(t *testing.T) {
	payload := []byte("0011000001234567")
	_, err := Decode(payload)
	if err == nil {
		t.Fatalf("expected an error for a truncated payload")
	}
	var perr *protoerr.Error
	if !errors.As(err, &perr) || perr.Kind != protoerr.Codec {
		t.Fatalf("expected Codec kind, got %v", err)
	}
}

func TestDecodeUnconsumedTrailingBytesIsCodecError(t *testing.T) {
	// A well-formed Ack-with-socket body with extra trailing junk after the
	// socket id, which checkFullyConsumed should reject.
	payload := []byte("000000000000" + "0123456789ABCDEF" + "FF")
	_, err := Decode(payload)
	if err == nil {
		t.Fatalf("expected an error for unconsumed trailing bytes")
	}
	var perr *protoerr.Error
	if !errors.As(err, &perr) || perr.Kind != protoerr.Codec {
		t.Fatalf("expected Codec kind, got %v", err)
	}
}

func TestReqSwitchEncode(t *testing.T) {
	req := ReqSwitch{Socket: testSocket, On: true}
	got := string(req.Encode())
	want := "0017" + testSocket.String() + "01"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReqPowerBufferEncodesLogAddress(t *testing.T) {
	req := ReqPowerBuffer{Socket: testSocket, LogIndex: 3}
	got := string(req.Encode())
	wantAddr := LogIndexToAddress(3)
	want := "0048" + testSocket.String() + encodeU32(wantAddr)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReqClockSetFromTimeUsesUnchangedLogAddress(t *testing.T) {
	req := NewReqClockSetFromTime(testSocket, mustParse(t, "2026-07-31T12:34:56Z"))
	got := string(req.Encode())
	if len(got) != 4+16+8+8+2+2+2+2 {
		t.Fatalf("unexpected encoded length %d", len(got))
	}
	// The log address field always encodes 0xFFFFFFFF when LogIndex is nil.
	wantLogAddr := "FFFFFFFF"
	gotLogAddr := got[4+16+8 : 4+16+8+8]
	if gotLogAddr != wantLogAddr {
		t.Fatalf("got log address %q, want %q", gotLogAddr, wantLogAddr)
	}
}
