package state

import (
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/temoto/mbus-hat/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, DefaultLoopInterval, c.LoopInterval())
			assert.False(t, c.Sink.Enable)
			assert.NoError(t, c.Validate())
		}, ""},

		{"mbus", `hardware { mbus { uart_device = "/dev/ttyS0" address = 5 fcb = true } }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "/dev/ttyS0", c.Hardware.Mbus.UartDevice)
				assert.Equal(t, 5, c.Hardware.Mbus.Address)
				assert.True(t, c.Hardware.Mbus.FCB)
			}, ""},

		{"hat-power", `hardware {
	hat { skip = true }
	power { driver = "periph" pin = "GPIO17" }
}`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Hardware.Hat.Skip)
				assert.Equal(t, "periph", c.Hardware.Power.Driver)
				assert.Equal(t, "GPIO17", c.Hardware.Power.Pin)
			}, ""},

		{"sink", `sink {
	enable = true
	driver = "gomqtt"
	mqtt_broker = "tcp://mosquitto:1883"
	topic_prefix = "home/meter/"
	qos = 0
	retain = false
}`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Sink.Enable)
				assert.Equal(t, "home/meter/", c.Sink.TopicPrefix)
				if assert.NotNil(t, c.Sink.QOS) {
					assert.Equal(t, 0, *c.Sink.QOS)
				}
				if assert.NotNil(t, c.Sink.Retain) {
					assert.False(t, *c.Sink.Retain)
				}
			}, ""},

		{"loop", `loop { interval_sec = 60 backoff_min_sec = 5 backoff_max_sec = 30 }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, time.Minute, c.LoopInterval())
				b := c.Backoff()
				assert.Equal(t, 5*time.Second, b.Min)
				assert.Equal(t, 30*time.Second, b.Max)
			}, ""},

		{"log", `log { debug = true file = "/var/log/mbus.log" }`,
			func(t testing.TB, c *Config) {
				fc := c.LogFile()
				assert.Equal(t, "/var/log/mbus.log", fc.Path)
				assert.Equal(t, DefaultLogMaxSizeMB, fc.MaxSizeMB)
			}, ""},

		{"include-optional", `
include "address-7" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 7, c.Hardware.Mbus.Address)
			}, ""},

		{"include-overwrites", `
hardware { mbus { address = 1 } }
include "address-7" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 7, c.Hardware.Mbus.Address)
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"address-7":    "hardware { mbus { address = 7 } }",
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				if err == nil || !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	fs := NewMockFullReader(map[string]string{"bad": `
hardware {
	mbus { address = 251 uart_driver = "iodin" }
	power { driver = "sysfs" }
}
sink { enable = true }
loop { interval_sec = -1 }
`})
	cfg := MustReadConfig(log, fs, "bad")
	err := cfg.Validate()
	if assert.Error(t, err) {
		s := err.Error()
		assert.Contains(t, s, "mbus.address=251")
		assert.Contains(t, s, "mbus.uart_driver=iodin")
		assert.Contains(t, s, "power.driver=sysfs")
		assert.Contains(t, s, "sink.mqtt_broker=empty")
		assert.Contains(t, s, "loop.interval_sec=-1")
	}
}

func TestFunctionalBundled(t *testing.T) {
	t.Logf("this test needs OS open|read|stat access to file `../../mbus-hat.hcl`")
	log := log2.NewTest(t, log2.LDebug)
	cfg := MustReadConfig(log, NewOsFullReader(), "../../mbus-hat.hcl")
	assert.NoError(t, cfg.Validate())
}
