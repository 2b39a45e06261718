package state

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/hat"
	"github.com/temoto/mbus-hat/hardware/mbus"
	"github.com/temoto/mbus-hat/hardware/power"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/session"
	"github.com/temoto/mbus-hat/log2"
)

type hardware struct {
	// HatRead, Bus, Power may be set before first use, tests inject mocks this way.
	HatRead hat.ReadFunc
	Hat     hat.Info
	Bus     mbus.Buser
	Power   power.Liner

	mu       sync.Mutex
	hatDone  bool
	hatErr   error
	sessionp *session.Session
}

// CheckHat verifies HAT presence once per process.
// Every hardware accessor calls it first, so GPIO and serial stay untouched without HAT.
func (g *Global) CheckHat() (hat.Info, error) {
	g.Hardware.mu.Lock()
	defer g.Hardware.mu.Unlock()
	return g.checkHat()
}

func (g *Global) checkHat() (hat.Info, error) {
	h := &g.Hardware
	if !h.hatDone {
		h.Hat, h.hatErr = hat.Check(&g.Config.Hardware.Hat, h.HatRead, g.Log)
		h.hatDone = true
	}
	return h.Hat, h.hatErr
}

func (g *Global) Bus() (mbus.Buser, error) {
	g.Hardware.mu.Lock()
	defer g.Hardware.mu.Unlock()
	return g.bus()
}

func (g *Global) bus() (mbus.Buser, error) {
	h := &g.Hardware
	if h.Bus != nil {
		return h.Bus, nil
	}
	if _, err := g.checkHat(); err != nil {
		return nil, err
	}
	c := &g.Config.Hardware.Mbus
	var u mbus.Uarter
	switch c.UartDriver {
	case "", "file":
		u = mbus.NewFileUart()
	case "serial":
		u = mbus.NewSerialUart()
	default:
		return nil, errors.NotSupportedf("config: mbus.uart_driver=%s", c.UartDriver)
	}
	busLog := g.Log.Clone(log2.LInfo)
	if c.LogDebug {
		busLog.SetLevel(log2.LDebug)
	}
	bus, err := mbus.NewBus(u, c.UartDevice, c.Baud, busLog)
	if err != nil {
		return nil, errors.Annotatef(err, "config: mbus.uart_driver=%s", c.UartDriver)
	}
	h.Bus = bus
	return bus, nil
}

func (g *Global) Power() (power.Liner, error) {
	g.Hardware.mu.Lock()
	defer g.Hardware.mu.Unlock()
	return g.power()
}

func (g *Global) power() (power.Liner, error) {
	h := &g.Hardware
	if h.Power != nil {
		return h.Power, nil
	}
	if _, err := g.checkHat(); err != nil {
		return nil, err
	}
	line, err := power.Open(&g.Config.Hardware.Power, g.Log)
	if err != nil {
		return nil, errors.Annotate(err, "power open")
	}
	h.Power = line
	return line, nil
}

// Session is built once from hardware and config, then reused by every cycle.
func (g *Global) Session() (*session.Session, error) {
	g.Hardware.mu.Lock()
	defer g.Hardware.mu.Unlock()
	h := &g.Hardware
	if h.sessionp != nil {
		return h.sessionp, nil
	}
	if _, err := g.checkHat(); err != nil {
		return nil, err
	}
	// power line first, it must be Low before serial port is touched
	line, err := g.power()
	if err != nil {
		return nil, err
	}
	bus, err := g.bus()
	if err != nil {
		return nil, err
	}
	h.sessionp = session.New(bus, line, session.ConfigFrom(&g.Config.Hardware.Mbus), g.Log)
	return h.sessionp, nil
}

func (h *hardware) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	errs := make([]error, 0, 2)
	if h.Bus != nil {
		errs = append(errs, h.Bus.Close())
		h.Bus = nil
	}
	if h.Power != nil {
		errs = append(errs, h.Power.Close())
		h.Power = nil
	}
	h.sessionp = nil
	return helpers.FoldErrors(errs)
}
