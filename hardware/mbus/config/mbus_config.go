// Separate package for hardware/mbus related config structure.
// Workaround to import cycles.
package mbus_config

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/helpers"
)

const (
	DefaultAddress     = 1
	DefaultUartDevice  = "/dev/ttyAMA0"
	DefaultUartDriver  = "file"
	MaxAddress         = 250
	DefaultSettle      = 100 * time.Millisecond
	DefaultAckTimeout  = 1 * time.Second
	DefaultDataTimeout = 2 * time.Second
)

type Config struct { //nolint:maligned
	Address       int    `hcl:"address"`
	Baud          int    `hcl:"baud"`
	FCB           bool   `hcl:"fcb"`
	LogDebug      bool   `hcl:"log_debug"`
	UartDevice    string `hcl:"uart_device"`
	UartDriver    string `hcl:"uart_driver"` // file|serial
	SettleMs      int    `hcl:"settle_ms"`
	AckTimeoutMs  int    `hcl:"ack_timeout_ms"`
	DataTimeoutMs int    `hcl:"data_timeout_ms"`
}

func (c *Config) Settle() time.Duration {
	return helpers.IntMillisecondDefault(c.SettleMs, DefaultSettle)
}
func (c *Config) AckTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.AckTimeoutMs, DefaultAckTimeout)
}
func (c *Config) DataTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.DataTimeoutMs, DefaultDataTimeout)
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Address < 0 || c.Address > MaxAddress {
		errs = append(errs, errors.NotValidf("mbus.address=%d, expected 1..%d", c.Address, MaxAddress))
	}
	if c.Baud < 0 {
		errs = append(errs, errors.NotValidf("mbus.baud=%d", c.Baud))
	}
	for _, d := range []struct {
		name string
		v    int
	}{{"settle_ms", c.SettleMs}, {"ack_timeout_ms", c.AckTimeoutMs}, {"data_timeout_ms", c.DataTimeoutMs}} {
		if d.v < 0 {
			errs = append(errs, errors.NotValidf("mbus.%s=%d, expected >= 0", d.name, d.v))
		}
	}
	switch c.UartDriver {
	case "", "file", "serial":
	default:
		errs = append(errs, errors.NotSupportedf("mbus.uart_driver=%s, valid: file, serial", c.UartDriver))
	}
	return helpers.FoldErrors(errs)
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Address == 0 {
		c.Address = DefaultAddress
	}
	if c.UartDevice == "" {
		c.UartDevice = DefaultUartDevice
	}
	if c.UartDriver == "" {
		c.UartDriver = DefaultUartDriver
	}
}
