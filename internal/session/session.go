// Package session runs one master read cycle: power up, ping, request, receive, decode, power down.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/mbus"
	mbus_config "github.com/temoto/mbus-hat/hardware/mbus/config"
	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
	"github.com/temoto/mbus-hat/hardware/power"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/reading"
	"github.com/temoto/mbus-hat/log2"
)

type Config struct {
	Address     byte
	FCB         bool
	Settle      time.Duration
	AckTimeout  time.Duration
	DataTimeout time.Duration
}

func ConfigFrom(c *mbus_config.Config) Config {
	return Config{
		Address:     byte(c.Address),
		FCB:         c.FCB,
		Settle:      c.Settle(),
		AckTimeout:  c.AckTimeout(),
		DataTimeout: c.DataTimeout(),
	}
}

type Result struct {
	Address  byte
	Frame    mbus.Frame
	Telegram *telegram.Telegram
	Reading  reading.Reading
	Started  time.Time
	Duration time.Duration
}

func (self *Result) RoutingKey() string { return self.Reading.RoutingKey(self.Address) }

// Failure is returned by Run on any unsuccessful cycle. Bus is powered down by then.
type Failure struct {
	Cause   Cause
	State   State // where it failed
	Address byte
	Timeout time.Duration
	Err     error
}

func (self *Failure) Error() string {
	s := fmt.Sprintf("session failed cause=%s state=%s address=%d", self.Cause, self.State, self.Address)
	if self.Timeout != 0 {
		s += fmt.Sprintf(" timeout=%v", self.Timeout)
	}
	if self.Err != nil {
		s += ": " + self.Err.Error()
	}
	return s
}

func AsFailure(err error) (*Failure, bool) {
	f, ok := errors.Cause(err).(*Failure)
	return f, ok
}

type Observer func(from, to State)

// Session exclusively owns bus and power line while Run is in progress.
type Session struct {
	Log      *log2.Log
	Config   Config
	Bus      mbus.Buser
	Power    power.Liner
	Sleep    helpers.SleepFunc
	Observer Observer

	mu    sync.Mutex
	state State
	now   func() time.Time
}

func New(bus mbus.Buser, line power.Liner, c Config, log *log2.Log) *Session {
	return &Session{
		Log:    log,
		Config: c,
		Bus:    bus,
		Power:  line,
		Sleep:  time.Sleep,
		now:    time.Now,
	}
}

func (self *Session) transition(to State) {
	from := self.state
	self.state = to
	self.Log.Debugf("session address=%d %s -> %s", self.Config.Address, from, to)
	if self.Observer != nil {
		self.Observer(from, to)
	}
}

func (self *Session) fail(cause Cause, timeout time.Duration, err error) *Failure {
	return &Failure{Cause: cause, State: self.state, Address: self.Config.Address, Timeout: timeout, Err: err}
}

// Run performs exactly one cycle. Concurrent calls are serialized.
// Context is checked between states; a frame wait in progress is not interrupted.
func (self *Session) Run(ctx context.Context) (result *Result, err error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.now == nil {
		self.now = time.Now
	}
	if self.Sleep == nil {
		self.Sleep = time.Sleep
	}
	started := self.now()

	defer func() {
		r := recover()
		if r != nil || err != nil {
			self.transition(StateFailed)
		}
		self.transition(StatePoweringDown)
		if perr := self.Power.Set(false); perr != nil {
			perr = errors.Annotate(perr, "power down")
			self.Log.Error(perr)
			if r == nil && err == nil {
				result, err = nil, self.fail(CauseUnexpected, 0, perr)
			}
		}
		self.transition(StateIdle)
		if r != nil {
			panic(r)
		}
		if err != nil {
			self.Log.Errorf("%v", err)
		}
	}()

	check := func() error {
		if e := ctx.Err(); e != nil {
			return self.fail(CauseUnexpected, 0, errors.Annotate(e, "context"))
		}
		return nil
	}
	if err = check(); err != nil {
		return nil, err
	}

	self.transition(StatePoweringUp)
	if e := self.Power.Set(true); e != nil {
		return nil, self.fail(CauseUnexpected, 0, errors.Annotate(e, "power up"))
	}
	self.Sleep(self.Config.Settle)
	if err = check(); err != nil {
		return nil, err
	}

	if e := self.Bus.Send(mbus.EncodePing(self.Config.Address)); e != nil {
		return nil, self.fail(CauseUnexpected, 0, errors.Annotate(e, "send ping"))
	}
	self.transition(StateAwaitingAck)
	if _, e := self.Bus.Recv(mbus.FrameAck, self.Config.AckTimeout); e != nil {
		return nil, self.fail(CauseNoAckFromSlave, self.Config.AckTimeout, e)
	}
	if err = check(); err != nil {
		return nil, err
	}

	if e := self.Bus.Send(mbus.EncodeRequest(self.Config.Address, self.Config.FCB)); e != nil {
		return nil, self.fail(CauseUnexpected, 0, errors.Annotate(e, "send request"))
	}
	self.transition(StateRequestSent)
	self.transition(StateAwaitingData)
	f, e := self.Bus.Recv(mbus.FrameLong, self.Config.DataTimeout)
	switch {
	case e == nil:
	case mbus.IsFrameTimeout(e):
		return nil, self.fail(CauseNoDataFromSlave, self.Config.DataTimeout, e)
	case mbus.IsFrameMalformed(e):
		return nil, self.fail(CauseFrameMalformed, 0, e)
	default:
		return nil, self.fail(CauseUnexpected, 0, e)
	}
	if f.C&mbus.CRspMask != mbus.CRspUD {
		return nil, self.fail(CauseTelegramUnsupported, 0, errors.NotSupportedf("response c=%02x", f.C))
	}
	if f.A != self.Config.Address {
		self.Log.Infof("session response address=%d requested=%d", f.A, self.Config.Address)
	}

	t, e := telegram.Decode(&f)
	switch {
	case e == nil:
	case telegram.IsTruncated(e):
		return nil, self.fail(CauseTelegramTruncated, 0, e)
	default:
		return nil, self.fail(CauseTelegramUnsupported, 0, e)
	}

	self.transition(StateSuccess)
	result = &Result{
		Address:  self.Config.Address,
		Frame:    f,
		Telegram: t,
		Reading:  reading.Project(t),
		Started:  started,
		Duration: self.now().Sub(started),
	}
	self.Log.Infof("session address=%d success %s", self.Config.Address, t.String())
	return result, nil
}

// State is Idle outside of Run.
func (self *Session) State() State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}
