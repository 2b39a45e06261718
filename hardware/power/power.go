// Package power drives M-Bus transceiver enable line of the HAT.
// Line is Low after open, session raises it for one exchange.
package power

import (
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/log2"
)

const (
	DefaultDriver     = "cdev"
	DefaultChip       = "/dev/gpiochip0"
	DefaultLine       = 26
	DefaultPeriphName = "GPIO26"

	consumerLabel = "mbus-hat"
)

// Liner is single output line.
type Liner interface {
	Set(high bool) error
	Close() error
}

type Config struct {
	Driver  string `hcl:"driver"` // cdev|periph
	PinChip string `hcl:"pin_chip"`
	Pin     string `hcl:"pin"`
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "", "cdev":
		if c.Pin != "" {
			if _, err := strconv.ParseUint(c.Pin, 10, 32); err != nil {
				return errors.NotValidf("power.pin=%s for cdev driver, must be line number", c.Pin)
			}
		}
	case "periph":
	default:
		return errors.NotSupportedf("power.driver=%s", c.Driver)
	}
	return nil
}

// Open selects driver by config. Returned line is already driven Low.
func Open(c *Config, log *log2.Log) (Liner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Driver {
	case "periph":
		name := c.Pin
		if name == "" {
			name = DefaultPeriphName
		}
		return OpenPeriph(name, log)
	}
	chip := c.PinChip
	if chip == "" {
		chip = DefaultChip
	}
	line := uint64(DefaultLine)
	if c.Pin != "" {
		line, _ = strconv.ParseUint(c.Pin, 10, 32)
	}
	return OpenCdev(chip, uint32(line), log)
}

func levelString(high bool) string {
	if high {
		return "high"
	}
	return "low"
}
