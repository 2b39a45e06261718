package telegram

import (
	"fmt"
	"time"
)

type Function uint8

const (
	FunctionInstantaneous Function = iota
	FunctionMaximum
	FunctionMinimum
	FunctionErrorState
)

func (f Function) String() string {
	switch f {
	case FunctionInstantaneous:
		return "instantaneous"
	case FunctionMaximum:
		return "maximum"
	case FunctionMinimum:
		return "minimum"
	case FunctionErrorState:
		return "error_state"
	}
	return fmt.Sprintf("function(%d)", uint8(f))
}

func (f Function) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// DataField is low nibble of DIF.
type DataField uint8

const (
	FieldNone      DataField = 0x0
	FieldInt8      DataField = 0x1
	FieldInt16     DataField = 0x2
	FieldInt24     DataField = 0x3
	FieldInt32     DataField = 0x4
	FieldReal32    DataField = 0x5
	FieldInt48     DataField = 0x6
	FieldInt64     DataField = 0x7
	FieldSelection DataField = 0x8
	FieldBCD2      DataField = 0x9
	FieldBCD4      DataField = 0xa
	FieldBCD6      DataField = 0xb
	FieldBCD8      DataField = 0xc
	FieldVariable  DataField = 0xd
	FieldBCD12     DataField = 0xe
	FieldSpecial   DataField = 0xf
)

var fieldLength = [16]int{0, 1, 2, 3, 4, 4, 6, 8, 0, 1, 2, 3, 4, -1, 6, 0}

// Length in bytes, -1 for variable.
func (d DataField) Length() int { return fieldLength[d&0xf] }

func (d DataField) IsBCD() bool {
	return (d >= FieldBCD2 && d <= FieldBCD8) || d == FieldBCD12
}

func (d DataField) String() string {
	switch {
	case d == FieldNone:
		return "none"
	case d == FieldReal32:
		return "real32"
	case d == FieldSelection:
		return "selection"
	case d == FieldVariable:
		return "variable"
	case d == FieldSpecial:
		return "special"
	case d.IsBCD():
		return fmt.Sprintf("bcd%d", d.Length()*2)
	}
	return fmt.Sprintf("int%d", d.Length()*8)
}

func (d DataField) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

const QuantityUnknown = "unknown"

// Record is one decoded data record (DIB+VIB+data).
// Value and Unit are both set or both empty.
// Time point records carry Timestamp without Value.
type Record struct {
	DIF      byte      `json:"dif" yaml:"dif"`
	DIFE     []byte    `json:"dife,omitempty" yaml:"dife,omitempty"`
	VIF      byte      `json:"vif" yaml:"vif"`
	VIFE     []byte    `json:"vife,omitempty" yaml:"vife,omitempty"`
	Field    DataField `json:"field" yaml:"field"`
	Function Function  `json:"function" yaml:"function"`
	Storage  uint64    `json:"storage" yaml:"storage"`
	Tariff   uint32    `json:"tariff" yaml:"tariff"`
	Subunit  uint16    `json:"subunit" yaml:"subunit"`

	Quantity  string     `json:"quantity" yaml:"quantity"`
	Unit      string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Exponent  int        `json:"exponent" yaml:"exponent"`
	Value     *float64   `json:"value,omitempty" yaml:"value,omitempty"`
	Text      string     `json:"text,omitempty" yaml:"text,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Raw       []byte     `json:"raw,omitempty" yaml:"raw,omitempty"`

	timePoint bool
}

func (self *Record) Known() bool { return self.Quantity != QuantityUnknown }

// TimePoint reports record which value is date or date-time.
func (self *Record) TimePoint() bool { return self.timePoint }

func (self *Record) String() string {
	switch {
	case self.Value != nil:
		return fmt.Sprintf("%s_%s=%v %s storage=%d tariff=%d subunit=%d",
			self.Quantity, self.Function, *self.Value, self.Unit, self.Storage, self.Tariff, self.Subunit)
	case self.Timestamp != nil && self.timePoint:
		return fmt.Sprintf("%s_%s=%s storage=%d", self.Quantity, self.Function, self.Timestamp.Format(time.RFC3339), self.Storage)
	case self.Text != "":
		return fmt.Sprintf("%s_%s=%q", self.Quantity, self.Function, self.Text)
	}
	return fmt.Sprintf("%s_%s raw=%x", self.Quantity, self.Function, self.Raw)
}

type linkKey struct {
	storage uint64
	tariff  uint32
	subunit uint16
}

// linkTimestamps copies time point of matching storage/tariff/subunit into numeric records.
func linkTimestamps(rs []Record) {
	points := make(map[linkKey]time.Time)
	for i := range rs {
		r := &rs[i]
		if r.timePoint && r.Timestamp != nil {
			k := linkKey{r.Storage, r.Tariff, r.Subunit}
			if _, ok := points[k]; !ok {
				points[k] = *r.Timestamp
			}
		}
	}
	if len(points) == 0 {
		return
	}
	for i := range rs {
		r := &rs[i]
		if r.Value == nil || r.Timestamp != nil {
			continue
		}
		if ts, ok := points[linkKey{r.Storage, r.Tariff, r.Subunit}]; ok {
			ts := ts
			r.Timestamp = &ts
		}
	}
}
