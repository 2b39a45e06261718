package power

import (
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/log2"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Periph is line resolved by name (GPIO26) with periph.io host drivers, for boards without gpiochip.
type Periph struct {
	Log *log2.Log
	pin gpio.PinOut
}

func OpenPeriph(name string, log *log2.Log) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.NotFoundf("power pin=%s", name)
	}
	return NewPeriph(pin, log)
}

func NewPeriph(pin gpio.PinOut, log *log2.Log) (*Periph, error) {
	self := &Periph{Log: log, pin: pin}
	if err := self.Set(false); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *Periph) Set(high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	if err := self.pin.Out(l); err != nil {
		return errors.Annotatef(err, "power pin=%s set=%s", self.pin.Name(), levelString(high))
	}
	self.Log.Debugf("power pin=%s %s", self.pin.Name(), levelString(high))
	return nil
}

func (self *Periph) Close() error { return self.Set(false) }
