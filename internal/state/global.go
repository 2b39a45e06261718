// Package state wires configuration, hardware and sink into one process-wide Global.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/metrics"
	"github.com/temoto/mbus-hat/internal/persist"
	"github.com/temoto/mbus-hat/internal/sink"
	"github.com/temoto/mbus-hat/log2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Metrics      *metrics.Metrics
	Persist      *persist.Persist
	Stat         persist.Stat
	// nil when sink is disabled
	Sink *sink.Sink

	initSinkOnce sync.Once
	sinkErr      error

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	g := &Global{
		Alive:   alive.NewAlive(),
		Log:     log,
		Metrics: metrics.New(),
	}
	ctx := context.WithValue(context.Background(), ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// Init validates config and loads persisted stats. Hardware and sink are opened lazily.
// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Config.Hardware.Mbus.Normalize()
	if err := g.Config.Validate(); err != nil {
		return errors.Annotate(err, "config")
	}
	if g.Config.Log.Debug {
		g.Log.SetLevel(log2.LDebug)
	}

	g.Persist = persist.New("stat", &g.Stat, g.Config.Persist.Root, g.Log)
	if err := g.Persist.Load(); err != nil {
		g.Error(err)
	}
	if g.Config.Sink.Enable && g.Config.Sink.SpoolPath == "" && g.Config.Persist.Root != "" {
		g.Config.Sink.SpoolPath = filepath.Join(g.Config.Persist.Root, "spool")
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

// GetSink opens configured sink once. Returns nil,nil when sink is disabled.
func (g *Global) GetSink() (*sink.Sink, error) {
	g.initSinkOnce.Do(func() {
		if g.Sink != nil || !g.Config.Sink.Enable {
			return
		}
		sinkLog := g.Log.Clone(log2.LInfo)
		if g.Config.Sink.LogDebug {
			sinkLog.SetLevel(log2.LDebug)
		}
		g.Sink, g.sinkErr = sink.Open(&g.Config.Sink, sinkLog)
	})
	return g.Sink, g.sinkErr
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Errorf(errors.ErrorStack(err))
	}
}

// Close releases hardware and sink, stores stats.
func (g *Global) Close() error {
	errs := []error{g.Hardware.close()}
	if g.Sink != nil {
		errs = append(errs, g.Sink.Close())
	}
	if g.Persist != nil {
		errs = append(errs, g.Persist.Store())
	}
	return helpers.FoldErrors(errs)
}
