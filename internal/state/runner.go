package state

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/hat"
	"github.com/temoto/mbus-hat/internal/session"
)

// ReadOnce runs one session cycle and hands reading to sink.
// Without HAT returns Failure{HardwareAbsent} before any GPIO or serial access.
// Sink error is returned together with successful result.
func (g *Global) ReadOnce(ctx context.Context) (*session.Result, error) {
	defer g.store()
	s, err := g.Session()
	if err != nil {
		if hat.IsHardwareAbsent(err) {
			err = &session.Failure{
				Cause:   session.CauseHardwareAbsent,
				State:   session.StateIdle,
				Address: byte(g.Config.Hardware.Mbus.Address),
				Err:     err,
			}
			g.Metrics.Observe(nil, err)
			g.Stat.Failure(session.CauseHardwareAbsent.String())
		}
		return nil, err
	}

	r, err := s.Run(ctx)
	g.Metrics.Observe(r, err)
	if err != nil {
		cause := session.CauseUnexpected
		if f, ok := session.AsFailure(err); ok {
			cause = f.Cause
		}
		g.Stat.Failure(cause.String())
		return nil, err
	}
	g.Stat.Success()
	return r, g.deliver(ctx, r)
}

func IsHardwareAbsent(err error) bool {
	if f, ok := session.AsFailure(err); ok {
		return f.Cause == session.CauseHardwareAbsent
	}
	return hat.IsHardwareAbsent(err)
}

func (g *Global) deliver(ctx context.Context, r *session.Result) error {
	sk, err := g.GetSink()
	if err != nil {
		return errors.Annotate(err, "sink open")
	}
	if sk == nil {
		return nil
	}
	payload, err := r.Reading.JSON()
	if err != nil {
		return errors.Annotate(err, "reading json")
	}
	err = sk.Deliver(ctx, sk.Topic(r.RoutingKey()), payload)
	g.Stat.Delivered(err == nil)
	g.Metrics.ObserveDelivery(err)
	return err
}

func (g *Global) store() {
	if err := g.Persist.Store(); err != nil {
		g.Error(err)
	}
	if err := g.Metrics.WriteTextfile(g.Config.Metrics.Textfile); err != nil {
		g.Error(err)
	}
}

// Loop runs read cycles back to back with configured interval until ctx is done or Alive stopped.
// After failed session next attempt comes sooner, with exponential backoff limited by interval.
// Returns on HardwareAbsent, other errors are logged.
func (g *Global) Loop(ctx context.Context, onResult func(*session.Result)) error {
	if !g.Alive.Add(1) {
		return nil
	}
	defer g.Alive.Done()

	interval := g.Config.LoopInterval()
	backoff := g.Config.Backoff()
	stopCh := g.Alive.StopChan()
	for g.Alive.IsRunning() {
		r, err := g.ReadOnce(ctx)
		if err != nil {
			if IsHardwareAbsent(err) {
				return err
			}
			g.Error(err)
		}
		if r != nil && onResult != nil {
			onResult(r)
		}

		delay := backoff.DelayAfter(r != nil)
		if r != nil || delay > interval {
			delay = interval
		}
		g.Log.Debugf("loop next cycle in %v", delay)
		select {
		case <-time.After(delay):
		case <-stopCh:
			return nil
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
	}
	return nil
}
