package telegram

import (
	"encoding/binary"
	"math"
	"time"
)

// Special DIF values.
const (
	difManufacturer     byte = 0x0f
	difManufacturerMore byte = 0x1f
	difIdleFiller       byte = 0x2f
)

// Location is applied to meter wall clock, which carries no zone.
var Location = time.UTC

type decoder struct {
	b    []byte
	pos  int
	mfr  []byte
	more bool
}

func (self *decoder) next(what string) (byte, error) {
	if self.pos >= len(self.b) {
		return 0, ErrTruncated{What: what, Offset: self.pos, Need: 1}
	}
	c := self.b[self.pos]
	self.pos++
	return c, nil
}

func (self *decoder) take(what string, n int) ([]byte, error) {
	have := len(self.b) - self.pos
	if n > have {
		return nil, ErrTruncated{What: what, Offset: self.pos, Need: n, Have: have}
	}
	b := make([]byte, n)
	copy(b, self.b[self.pos:self.pos+n])
	self.pos += n
	return b, nil
}

func (self *decoder) records() ([]Record, error) {
	rs := make([]Record, 0, 8)
	for self.pos < len(self.b) {
		dif := self.b[self.pos]
		switch dif {
		case difIdleFiller:
			self.pos++
			continue
		case difManufacturer, difManufacturerMore:
			self.pos++
			self.mfr = append([]byte(nil), self.b[self.pos:]...)
			self.more = dif == difManufacturerMore
			self.pos = len(self.b)
			return rs, nil
		}
		if DataField(dif&0x0f) == FieldSpecial {
			return nil, ErrUnsupported{What: "dif", Value: dif}
		}
		r, err := self.record()
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}

func (self *decoder) record() (Record, error) {
	r := Record{}
	dif, err := self.next("dif")
	if err != nil {
		return r, err
	}
	r.DIF = dif
	r.Field = DataField(dif & 0x0f)
	r.Function = Function((dif >> 4) & 0x03)
	r.Storage = uint64((dif >> 6) & 0x01)
	for i, ext := 0, dif&0x80 != 0; ext; i++ {
		if i >= maxDIFE {
			return r, ErrUnsupported{What: "dife count", Value: byte(i)}
		}
		e, err := self.next("dife")
		if err != nil {
			return r, err
		}
		r.DIFE = append(r.DIFE, e)
		r.Storage |= uint64(e&0x0f) << uint(1+4*i)
		r.Tariff |= uint32((e>>4)&0x03) << uint(2*i)
		r.Subunit |= uint16((e>>6)&0x01) << uint(i)
		ext = e&0x80 != 0
	}

	info, err := self.vib(&r)
	if err != nil {
		return r, err
	}

	n := r.Field.Length()
	var lvar byte
	if r.Field == FieldVariable {
		if lvar, err = self.next("lvar"); err != nil {
			return r, err
		}
		var ok bool
		if n, ok = lvarLength(lvar); !ok {
			return r, ErrUnsupported{What: "lvar", Value: lvar}
		}
	}
	if r.Raw, err = self.take("data", n); err != nil {
		return r, err
	}

	r.Quantity = info.quantity
	r.Exponent = info.exp
	switch info.kind {
	case vifUnknown:
		r.Quantity = QuantityUnknown
		r.Exponent = 0
	case vifDate, vifDateTime:
		r.timePoint = true
		r.Timestamp = decodeTime(r.Field, r.Raw)
	default:
		decodeValue(&r, info, lvar)
	}
	return r, nil
}

func (self *decoder) vib(r *Record) (vifInfo, error) {
	vif, err := self.next("vif")
	if err != nil {
		return vifInfo{}, err
	}
	r.VIF = vif
	ext := vif&0x80 != 0
	var info vifInfo
	switch vif & 0x7f {
	case 0x7b, 0x7d:
		if !ext {
			return unknownVIF, nil
		}
		e, err := self.next("vife")
		if err != nil {
			return info, err
		}
		r.VIFE = append(r.VIFE, e)
		ext = e&0x80 != 0
		if vif == 0xfb {
			info = extFB(e & 0x7f)
		} else {
			info = extFD(e & 0x7f)
		}

	case 0x7c:
		// plain text unit follows VIF, characters in reverse order
		l, err := self.next("vif text")
		if err != nil {
			return info, err
		}
		text, err := self.take("vif text", int(l))
		if err != nil {
			return info, err
		}
		info = vifInfo{quantity: "Custom", unit: reverseString(text)}
		if info.unit == "" {
			info.unit = unitNone
		}

	case 0x7e, 0x7f:
		info = unknownVIF

	default:
		info = primaryVIF(vif & 0x7f)
	}

	for ext {
		if len(r.VIFE) >= maxVIFE {
			return info, ErrUnsupported{What: "vife count", Value: byte(len(r.VIFE))}
		}
		e, err := self.next("vife")
		if err != nil {
			return info, err
		}
		r.VIFE = append(r.VIFE, e)
		ext = e&0x80 != 0
		info = applyVIFE(info, e)
	}
	return info, nil
}

// lvarLength returns data length for LVAR byte, ok=false for reserved values.
func lvarLength(l byte) (int, bool) {
	switch {
	case l <= 0xbf:
		return int(l), true
	case l <= 0xcf:
		// (l-C0h)*2 BCD digits
		return int(l - 0xc0), true
	case l <= 0xdf:
		return int(l - 0xd0), true
	case l <= 0xef:
		return int(l - 0xe0), true
	case l <= 0xf4:
		return 4 * int(l-0xec), true
	case l == 0xf5:
		return 48, true
	case l == 0xf6:
		return 64, true
	}
	return 0, false
}

func decodeValue(r *Record, info vifInfo, lvar byte) {
	var raw int64
	var ok bool
	switch {
	case r.Field == FieldNone || r.Field == FieldSelection:
		return

	case r.Field == FieldReal32:
		f := math.Float32frombits(binary.LittleEndian.Uint32(r.Raw))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return
		}
		setValue(r, info.unit, scaleFloat(float64(f), info.exp))
		return

	case r.Field.IsBCD():
		raw, ok = decodeBCD(r.Raw)

	case r.Field == FieldVariable:
		switch {
		case lvar <= 0xbf:
			r.Text = reverseString(r.Raw)
			return
		case lvar >= 0xc0 && lvar <= 0xcf:
			raw, ok = decodeBCD(r.Raw)
		case lvar >= 0xd0 && lvar <= 0xdf:
			raw, ok = decodeBCD(r.Raw)
			raw = -raw
		case lvar >= 0xe0 && lvar <= 0xe8:
			raw, ok = decodeInt(r.Raw), true
		}

	default:
		raw, ok = decodeInt(r.Raw), true
	}
	if ok {
		setValue(r, info.unit, scale(raw, info.exp))
	}
}

func setValue(r *Record, unit string, v float64) {
	r.Value = &v
	r.Unit = unit
}

// scale multiplies by 10^exp, dividing for negative exp so 12500e-3 is exactly 12.5.
func scale(raw int64, exp int) float64 {
	if exp >= 0 {
		return float64(raw) * math.Pow10(exp)
	}
	return float64(raw) / math.Pow10(-exp)
}

func scaleFloat(f float64, exp int) float64 {
	if exp >= 0 {
		return f * math.Pow10(exp)
	}
	return f / math.Pow10(-exp)
}

// decodeInt reads little endian two's complement integer up to 8 bytes.
func decodeInt(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	if bits := uint(len(b) * 8); bits < 64 && u&(1<<(bits-1)) != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u)
}

// decodeBCD reads little endian packed BCD. High nibble 0xF of last byte is minus sign.
// ok=false on non decimal digits.
func decodeBCD(b []byte) (int64, bool) {
	var v int64
	negative := false
	for i := len(b) - 1; i >= 0; i-- {
		hi, lo := b[i]>>4, b[i]&0x0f
		if i == len(b)-1 && hi == 0x0f {
			negative = true
			hi = 0
		}
		if hi > 9 || lo > 9 {
			return 0, false
		}
		v = v*100 + int64(hi)*10 + int64(lo)
	}
	if negative {
		v = -v
	}
	return v, true
}

// decodeTime handles type G (date), F (date+time) and I (date+time with seconds).
// Invalid flag or impossible date gives nil.
func decodeTime(field DataField, b []byte) *time.Time {
	var sec, minute, hour, day, month, year int
	var dayByte, monthByte byte
	switch field {
	case FieldInt16:
		dayByte, monthByte = b[0], b[1]
	case FieldInt32:
		if b[0]&0x80 != 0 {
			return nil
		}
		minute, hour = int(b[0]&0x3f), int(b[1]&0x1f)
		dayByte, monthByte = b[2], b[3]
	case FieldInt48:
		if b[1]&0x80 != 0 {
			return nil
		}
		sec, minute, hour = int(b[0]&0x3f), int(b[1]&0x3f), int(b[2]&0x1f)
		dayByte, monthByte = b[3], b[4]
	default:
		return nil
	}
	day = int(dayByte & 0x1f)
	month = int(monthByte & 0x0f)
	year = int((dayByte&0xe0)>>5) | int((monthByte&0xf0)>>1)
	if day < 1 || month < 1 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return nil
	}
	if year < 81 {
		year += 2000
	} else {
		year += 1900
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, Location)
	return &t
}

func reverseString(b []byte) string {
	s := make([]byte, len(b))
	for i, c := range b {
		s[len(b)-1-i] = c
	}
	return string(s)
}
