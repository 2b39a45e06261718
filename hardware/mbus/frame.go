package mbus

import (
	"fmt"
	"time"

	"github.com/juju/errors"

	"github.com/temoto/mbus-hat/helpers"
)

// Link layer markers, EN 13757-2.
const (
	ByteAck        byte = 0xe5
	ByteShortStart byte = 0x10
	ByteLongStart  byte = 0x68
	ByteStop       byte = 0x16
)

// Control field values used by master.
const (
	CSndNke  byte = 0x40 // link reset, "ping"
	CReqUD2  byte = 0x5b // request class 2 user data, FCB=0
	CFCB     byte = 0x20 // frame count bit
	CRspUD   byte = 0x08 // slave response with user data
	CSndUD   byte = 0x53
	CRspMask byte = 0x4f // mask ACD/DFC bits of slave response
)

// Every slave acknowledges SND_NKE sent to this address.
const AddressBroadcastAck byte = 254

const (
	ShortFrameLength = 5
	LongHeaderLength = 4
	// L is one byte, so C+A+CI+data is at most 255 bytes.
	LongMaxDataLength  = 252
	LongFrameMaxLength = LongHeaderLength + 255 + 2
)

type FrameKind uint8

const (
	FrameInvalid FrameKind = iota
	FrameAck
	FrameShort
	FrameControl
	FrameLong
)

func (k FrameKind) String() string {
	switch k {
	case FrameAck:
		return "ack"
	case FrameShort:
		return "short"
	case FrameControl:
		return "control"
	case FrameLong:
		return "long"
	}
	return fmt.Sprintf("invalid(%d)", uint8(k))
}

// Frame is validated link layer frame.
// Ack has only Raw. Short has C, A. Control and Long have C, A, CI, Length; Long also Data.
type Frame struct {
	Kind     FrameKind
	C        byte
	A        byte
	CI       byte
	Data     []byte
	Length   byte
	Checksum byte
	Raw      []byte
}

func (self *Frame) String() string {
	return fmt.Sprintf("%s(c=%02x a=%d ci=%02x len=%d) %s", self.Kind, self.C, self.A, self.CI, len(self.Data), helpers.FormatHex(self.Raw))
}

// Which byte check failed.
type Check string

const (
	CheckStart    Check = "start"
	CheckLength   Check = "length"
	CheckStop     Check = "stop"
	CheckChecksum Check = "checksum"
)

type ErrFrameMalformed struct {
	Kind     FrameKind
	Check    Check
	Offset   int
	Expected int
	Actual   int
	Raw      []byte
}

func (self ErrFrameMalformed) Error() string {
	return fmt.Sprintf("mbus frame malformed kind=%s check=%s offset=%d expected=%02x actual=%02x raw=%s",
		self.Kind, self.Check, self.Offset, self.Expected, self.Actual, helpers.FormatHex(self.Raw))
}

type ErrFrameTimeout struct {
	Kind     FrameKind
	Wait     time.Duration
	Received []byte
}

func (self ErrFrameTimeout) Error() string {
	return fmt.Sprintf("mbus frame timeout kind=%s timeout=%v received=(%d) %s",
		self.Kind, self.Wait, len(self.Received), helpers.FormatHex(self.Received))
}

func IsFrameMalformed(err error) bool {
	_, ok := errors.Cause(err).(ErrFrameMalformed)
	return ok
}

func IsFrameTimeout(err error) bool {
	_, ok := errors.Cause(err).(ErrFrameTimeout)
	return ok
}

func checksum(bs []byte) byte {
	var chk byte
	for _, b := range bs {
		chk += b
	}
	return chk
}

func EncodeShort(c, a byte) []byte {
	return []byte{ByteShortStart, c, a, c + a, ByteStop}
}

// EncodeLong panics on data longer than LongMaxDataLength, that is code error.
func EncodeLong(c, a, ci byte, data []byte) []byte {
	if len(data) > LongMaxDataLength {
		panic(fmt.Sprintf("code error mbus.EncodeLong data length=%d max=%d", len(data), LongMaxDataLength))
	}
	l := byte(3 + len(data))
	b := make([]byte, 0, LongHeaderLength+int(l)+2)
	b = append(b, ByteLongStart, l, l, ByteLongStart, c, a, ci)
	b = append(b, data...)
	b = append(b, checksum(b[LongHeaderLength:]), ByteStop)
	return b
}

// SND_NKE resets slave link layer. Slave answers with single ack byte.
func EncodePing(address byte) []byte { return EncodeShort(CSndNke, address) }

// REQ_UD2 asks slave for class 2 data. Slave answers with long frame.
func EncodeRequest(address byte, fcb bool) []byte {
	c := CReqUD2
	if fcb {
		c |= CFCB
	}
	return EncodeShort(c, address)
}

// expectLength returns total frame length known from prefix b or 0 if more bytes needed.
// Only start marker and length redundancy are checked here.
func expectLength(b []byte, kind FrameKind) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	switch kind {
	case FrameAck:
		if b[0] != ByteAck {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckStart, Expected: int(ByteAck), Actual: int(b[0]), Raw: b}
		}
		return 1, nil

	case FrameShort:
		if b[0] != ByteShortStart {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckStart, Expected: int(ByteShortStart), Actual: int(b[0]), Raw: b}
		}
		return ShortFrameLength, nil

	case FrameControl, FrameLong:
		if b[0] != ByteLongStart {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckStart, Expected: int(ByteLongStart), Actual: int(b[0]), Raw: b}
		}
		if len(b) < LongHeaderLength {
			return 0, nil
		}
		if b[1] != b[2] {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckLength, Offset: 2, Expected: int(b[1]), Actual: int(b[2]), Raw: b}
		}
		if b[3] != ByteLongStart {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckStart, Offset: 3, Expected: int(ByteLongStart), Actual: int(b[3]), Raw: b}
		}
		l := int(b[1])
		if l < 3 || (kind == FrameControl && l != 3) {
			return 0, ErrFrameMalformed{Kind: kind, Check: CheckLength, Offset: 1, Expected: 3, Actual: l, Raw: b}
		}
		return LongHeaderLength + l + 2, nil
	}
	panic(fmt.Sprintf("code error mbus expectLength kind=%s", kind))
}

// ParseFrame validates complete frame bytes of given kind.
// Check order: start marker, length redundancy, span length, stop byte, checksum.
func ParseFrame(b []byte, kind FrameKind) (Frame, error) {
	total, err := expectLength(b, kind)
	if err != nil {
		return Frame{}, err
	}
	if total == 0 || len(b) != total {
		return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckLength, Expected: total, Actual: len(b), Raw: b}
	}
	f := Frame{Kind: kind, Raw: b}
	switch kind {
	case FrameAck:
		return f, nil

	case FrameShort:
		if b[4] != ByteStop {
			return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckStop, Offset: 4, Expected: int(ByteStop), Actual: int(b[4]), Raw: b}
		}
		f.C, f.A, f.Checksum = b[1], b[2], b[3]
		if chk := checksum(b[1:3]); chk != f.Checksum {
			return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckChecksum, Offset: 3, Expected: int(chk), Actual: int(f.Checksum), Raw: b}
		}
		return f, nil

	case FrameControl, FrameLong:
		end := total - 1
		if b[end] != ByteStop {
			return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckStop, Offset: end, Expected: int(ByteStop), Actual: int(b[end]), Raw: b}
		}
		f.Length = b[1]
		body := b[LongHeaderLength : total-2]
		f.Checksum = b[total-2]
		if chk := checksum(body); chk != f.Checksum {
			return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckChecksum, Offset: total - 2, Expected: int(chk), Actual: int(f.Checksum), Raw: b}
		}
		f.C, f.A, f.CI = body[0], body[1], body[2]
		f.Data = body[3:]
		return f, nil
	}
	panic("unreachable")
}
