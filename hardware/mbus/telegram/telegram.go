// Package telegram decodes M-Bus variable data structure (EN 13757-3)
// from validated long frame into typed records.
package telegram

import (
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/mbus"
)

// Control information field values.
const (
	CIResponseLong  byte = 0x72 // variable data, 12 byte header
	CIResponseNone  byte = 0x78 // variable data, no header
	CIResponseShort byte = 0x7a // variable data, 4 byte header
	CIAppError      byte = 0x70 // slave reports application error, first byte is error code
)

const (
	longHeaderLength  = 12
	shortHeaderLength = 4
	maxDIFE           = 10
	maxVIFE           = 10
)

type Telegram struct {
	C  byte `json:"c" yaml:"c"`
	A  byte `json:"a" yaml:"a"`
	CI byte `json:"ci" yaml:"ci"`

	// Identification is 8 decimal digits, may contain hex letters from broken meters.
	Identification string `json:"id,omitempty" yaml:"id,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Version        byte   `json:"version" yaml:"version"`
	Medium         Medium `json:"medium" yaml:"medium"`
	AccessNumber   byte   `json:"access_number" yaml:"access_number"`
	Status         byte   `json:"status" yaml:"status"`
	Signature      uint16 `json:"signature" yaml:"signature"`

	Records              []Record `json:"records" yaml:"records"`
	ManufacturerData     []byte   `json:"manufacturer_data,omitempty" yaml:"manufacturer_data,omitempty"`
	MoreRecordsFollow    bool     `json:"more_records_follow,omitempty" yaml:"more_records_follow,omitempty"`
	HasIdentificationHdr bool     `json:"-" yaml:"-"`
}

func (self *Telegram) String() string {
	return fmt.Sprintf("telegram id=%s manufacturer=%s medium=%s version=%d access=%d status=%02x records=%d",
		self.Identification, self.Manufacturer, self.Medium, self.Version, self.AccessNumber, self.Status, len(self.Records))
}

type ErrTruncated struct {
	What   string
	Offset int
	Need   int
	Have   int
}

func (self ErrTruncated) Error() string {
	return fmt.Sprintf("telegram truncated %s offset=%d need=%d have=%d", self.What, self.Offset, self.Need, self.Have)
}

type ErrUnsupported struct {
	What  string
	Value byte
}

func (self ErrUnsupported) Error() string {
	return fmt.Sprintf("telegram unsupported %s=%02x", self.What, self.Value)
}

func IsTruncated(err error) bool {
	_, ok := errors.Cause(err).(ErrTruncated)
	return ok
}

func IsUnsupported(err error) bool {
	_, ok := errors.Cause(err).(ErrUnsupported)
	return ok
}

// Decode interprets long frame sent by slave in response to REQ_UD2.
func Decode(f *mbus.Frame) (*Telegram, error) {
	if f.Kind != mbus.FrameLong {
		return nil, ErrUnsupported{What: "frame kind", Value: byte(f.Kind)}
	}
	t, err := DecodePayload(f.CI, f.Data)
	if t != nil {
		t.C, t.A = f.C, f.A
	}
	return t, errors.Trace(err)
}

// DecodePayload parses header selected by ci, then data records until payload is exhausted.
func DecodePayload(ci byte, data []byte) (*Telegram, error) {
	t := &Telegram{CI: ci}
	var pos int
	switch ci {
	case CIResponseLong:
		if len(data) < longHeaderLength {
			return nil, ErrTruncated{What: "header", Need: longHeaderLength, Have: len(data)}
		}
		t.HasIdentificationHdr = true
		t.Identification = DecodeIdentification(data[0:4])
		t.Manufacturer = DecodeManufacturer(binary.LittleEndian.Uint16(data[4:6]))
		t.Version = data[6]
		t.Medium = Medium(data[7])
		t.AccessNumber = data[8]
		t.Status = data[9]
		t.Signature = binary.LittleEndian.Uint16(data[10:12])
		pos = longHeaderLength

	case CIResponseShort:
		if len(data) < shortHeaderLength {
			return nil, ErrTruncated{What: "header", Need: shortHeaderLength, Have: len(data)}
		}
		t.AccessNumber = data[0]
		t.Status = data[1]
		t.Signature = binary.LittleEndian.Uint16(data[2:4])
		pos = shortHeaderLength

	case CIResponseNone:

	case CIAppError:
		var code byte
		if len(data) > 0 {
			code = data[0]
		}
		return nil, ErrUnsupported{What: "application error", Value: code}

	default:
		return nil, ErrUnsupported{What: "ci", Value: ci}
	}

	d := decoder{b: data, pos: pos}
	records, err := d.records()
	if err != nil {
		return nil, errors.Trace(err)
	}
	t.Records = records
	t.ManufacturerData = d.mfr
	t.MoreRecordsFollow = d.more
	linkTimestamps(t.Records)
	return t, nil
}

// DecodeIdentification formats 4 byte little endian packed BCD as 8 digits.
func DecodeIdentification(b []byte) string {
	s := make([]byte, 0, len(b)*2)
	const digits = "0123456789abcdef"
	for i := len(b) - 1; i >= 0; i-- {
		s = append(s, digits[b[i]>>4], digits[b[i]&0xf])
	}
	return string(s)
}

// DecodeManufacturer unpacks 3 letters of 5 bits each, EN 62056-21 flag.
func DecodeManufacturer(m uint16) string {
	if m == 0 {
		return ""
	}
	return string([]byte{
		byte((m>>10)&0x1f) + 64,
		byte((m>>5)&0x1f) + 64,
		byte(m&0x1f) + 64,
	})
}

func EncodeManufacturer(s string) uint16 {
	if len(s) != 3 {
		return 0
	}
	return uint16(s[0]-64)<<10 | uint16(s[1]-64)<<5 | uint16(s[2]-64)
}

type Medium byte

var mediumNames = map[Medium]string{
	0x00: "Other",
	0x01: "Oil",
	0x02: "Electricity",
	0x03: "Gas",
	0x04: "Heat (outlet)",
	0x05: "Steam",
	0x06: "Warm water",
	0x07: "Water",
	0x08: "Heat cost allocator",
	0x09: "Compressed air",
	0x0a: "Cooling load (outlet)",
	0x0b: "Cooling load (inlet)",
	0x0c: "Heat (inlet)",
	0x0d: "Heat / cooling load",
	0x0e: "Bus / system component",
	0x0f: "Unknown medium",
	0x15: "Hot water",
	0x16: "Cold water",
	0x17: "Dual register water",
	0x18: "Pressure",
	0x19: "A/D converter",
}

func (m Medium) String() string {
	if s, ok := mediumNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Reserved(%02x)", byte(m))
}

func (m Medium) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
