// Read meter once or periodically and publish readings.
package read

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/subcmd"
	"github.com/temoto/mbus-hat/internal/session"
	"github.com/temoto/mbus-hat/internal/state"
)

var Mod = subcmd.Mod{Name: "read", Main: Main, Usage: "one read cycle, publish to sink"}
var LoopMod = subcmd.Mod{Name: "loop", Main: LoopMain, Usage: "read cycles every loop.interval_sec until SIGINT/SIGTERM"}

func Main(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer func() { g.Error(g.Close()) }()

	r, err := g.ReadOnce(ctx)
	if r != nil {
		g.Log.Infof("read address=%d key=%s measurements=%d duration=%v",
			r.Address, r.RoutingKey(), len(r.Reading.Measurements), r.Duration)
	}
	return err
}

func LoopMain(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer func() { g.Error(g.Close()) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			g.Log.Infof("loop stop signal=%v", s)
			subcmd.SdNotify(daemon.SdNotifyStopping)
			g.Alive.Stop()
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := g.CheckHat(); err != nil {
		return errors.Annotate(err, "loop")
	}
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("loop interval=%v", g.Config.LoopInterval())

	err := g.Loop(ctx, func(r *session.Result) {
		subcmd.SdNotify(daemon.SdNotifyWatchdog)
	})
	g.Alive.Stop()
	g.Alive.Wait()
	if errors.Cause(err) == context.Canceled {
		err = nil
	}
	return err
}
