// Print full decoded telegram, from the meter or from hex frame.
package dump

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/subcmd"
	"github.com/temoto/mbus-hat/hardware/mbus"
	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/reading"
	"github.com/temoto/mbus-hat/internal/state"
)

var Mod = subcmd.Mod{Name: "dump", Main: Main, Usage: "[-format=json|yaml] one read cycle, print telegram, sink is not used"}
var DecodeMod = subcmd.Mod{Name: "decode", Main: DecodeMain, SkipConfig: true,
	Usage: "[-format=json|yaml] HEX... decode long frame offline"}

type Output struct {
	Frame      string             `json:"frame" yaml:"frame"`
	RoutingKey string             `json:"routing_key" yaml:"routing_key"`
	Telegram   *telegram.Telegram `json:"telegram" yaml:"telegram"`
	Reading    reading.Reading    `json:"reading" yaml:"reading"`
}

func parseFormat(name string, args []string) (string, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	format := fs.String("format", "json", "json|yaml")
	if err := fs.Parse(args); err != nil {
		return "", nil, errors.Trace(err)
	}
	return *format, fs.Args(), nil
}

func Main(ctx context.Context, config *state.Config, args []string) error {
	format, _, err := parseFormat("dump", args)
	if err != nil {
		return err
	}
	config.Sink.Enable = false
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer func() { g.Error(g.Close()) }()

	r, err := g.ReadOnce(ctx)
	if err != nil {
		return err
	}
	return subcmd.Print(os.Stdout, format, Output{
		Frame:      helpers.FormatHex(r.Frame.Raw),
		RoutingKey: r.RoutingKey(),
		Telegram:   r.Telegram,
		Reading:    r.Reading,
	})
}

func DecodeMain(ctx context.Context, _ *state.Config, args []string) error {
	format, rest, err := parseFormat("decode", args)
	if err != nil {
		return err
	}
	out, err := Decode(strings.Join(rest, ""))
	if err != nil {
		return err
	}
	return subcmd.Print(os.Stdout, format, out)
}

// Decode parses long frame from hex, spaces allowed.
func Decode(hex string) (*Output, error) {
	b, err := helpers.ParseHex(hex)
	if err != nil {
		return nil, errors.Annotate(err, "decode hex")
	}
	f, err := mbus.ParseFrame(b, mbus.FrameLong)
	if err != nil {
		return nil, errors.Annotate(err, "decode frame")
	}
	t, err := telegram.Decode(&f)
	if err != nil {
		return nil, errors.Annotate(err, "decode telegram")
	}
	r := reading.Project(t)
	return &Output{
		Frame:      helpers.FormatHex(f.Raw),
		RoutingKey: r.RoutingKey(f.A),
		Telegram:   t,
		Reading:    r,
	}, nil
}
