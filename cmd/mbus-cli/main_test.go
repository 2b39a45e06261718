package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/hardware/mbus"
	"github.com/temoto/mbus-hat/hardware/power"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/state"
	"github.com/temoto/mbus-hat/log2"
)

func TestResponseKind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, mbus.FrameAck, responseKind(mbus.EncodePing(1)))
	assert.Equal(t, mbus.FrameLong, responseKind(mbus.EncodeRequest(1, false)))
	assert.Equal(t, mbus.FrameLong, responseKind(mbus.EncodeRequest(1, true)))
	assert.Equal(t, mbus.FrameLong, responseKind(helpers.MustHex("680303685301bb0f16")))
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	c := &console{address: 1}
	steps, loopn, err := c.parseLine("power=on s100 ping req @105b015c16 power=off loop=3")
	require.NoError(t, err)
	assert.Equal(t, uint(3), loopn)
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	assert.Equal(t, []string{"power=on", "s100", "ping", "req", "@105b015c16", "power=off"}, names)

	_, _, err = c.parseLine("loop=1 loop=2")
	assert.Error(t, err)
	_, _, err = c.parseLine("sX")
	assert.Error(t, err)
	_, _, err = c.parseLine("@zz")
	assert.Error(t, err)
	_, _, err = c.parseLine("reset")
	assert.Contains(t, err.Error(), "invalid command")
}

func TestConsoleExec(t *testing.T) {
	t.Parallel()
	tlog := log2.NewTest(t, log2.LDebug)
	ctx, g := state.NewContext(tlog)
	config := new(state.Config)
	config.Hardware.Hat.Skip = true
	require.NoError(t, g.Init(ctx, config))
	response := mbus.EncodeLong(mbus.CRspUD, 1, 0x72, helpers.MustHex("78563412 4304 01 07 55 00 0000 0413d4300000"))
	uart := mbus.NewMockUart(mbus.MockSlave(1, response))
	bus, err := mbus.NewBus(uart, "", 0, tlog)
	require.NoError(t, err)
	line := power.NewMock()
	g.Hardware.Bus = bus
	g.Hardware.Power = line

	c := &console{g: g, address: 1, timeout: g.Config.Hardware.Mbus.DataTimeout()}
	c.newExecutor(ctx)("power=on ping req power=off")
	assert.Equal(t, []string{"high", "low"}, line.Levels())
	assert.Equal(t, []string{"1040014116", "105b015c16"}, uart.Writes())
}
