// Package reading projects decoded telegram into output shape published to sink.
package reading

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
)

const KeyUnknown = "unknown"

type Measurement struct {
	Key       string     `json:"key" yaml:"key"`
	Type      string     `json:"type" yaml:"type"`
	Value     *float64   `json:"value,omitempty" yaml:"value,omitempty"`
	Text      string     `json:"text,omitempty" yaml:"text,omitempty"`
	Unit      string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Storage   uint64     `json:"storage,omitempty" yaml:"storage,omitempty"`
	Tariff    uint32     `json:"tariff,omitempty" yaml:"tariff,omitempty"`
	Subunit   uint16     `json:"subunit,omitempty" yaml:"subunit,omitempty"`
	// Raw is hex data of records with unknown meaning.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

type Reading struct {
	MeterID      string        `json:"meter_id,omitempty" yaml:"meter_id,omitempty"`
	Manufacturer string        `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Medium       string        `json:"medium,omitempty" yaml:"medium,omitempty"`
	Measurements []Measurement `json:"measurements" yaml:"measurements"`
}

// Key is "{quantity}_{function}", or "unknown" for records of unknown quantity.
func Key(r *telegram.Record) string {
	if !r.Known() {
		return KeyUnknown
	}
	return r.Quantity + "_" + r.Function.String()
}

// Project never fails, every record produces one measurement in telegram order.
func Project(t *telegram.Telegram) Reading {
	rd := Reading{
		MeterID:      t.Identification,
		Manufacturer: t.Manufacturer,
		Measurements: make([]Measurement, 0, len(t.Records)),
	}
	if t.HasIdentificationHdr {
		rd.Medium = t.Medium.String()
	}
	for i := range t.Records {
		r := &t.Records[i]
		m := Measurement{
			Key:       Key(r),
			Type:      r.Quantity,
			Text:      r.Text,
			Timestamp: r.Timestamp,
			Storage:   r.Storage,
			Tariff:    r.Tariff,
			Subunit:   r.Subunit,
		}
		if r.Value != nil {
			v := *r.Value
			m.Value = &v
			m.Unit = r.Unit
		}
		if !r.Known() {
			m.Raw = hex.EncodeToString(r.Raw)
		}
		rd.Measurements = append(rd.Measurements, m)
	}
	return rd
}

// RoutingKey is meter id when known, else derived from configured slave address.
func (self *Reading) RoutingKey(address byte) string {
	if self.MeterID != "" {
		return self.MeterID
	}
	return fmt.Sprintf("slave_%d", address)
}

func (self *Reading) JSON() ([]byte, error) { return json.Marshal(self) }
