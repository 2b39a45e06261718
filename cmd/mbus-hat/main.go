package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/dump"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/read"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/subcmd"
	"github.com/temoto/mbus-hat/internal/state"
	"github.com/temoto/mbus-hat/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

const (
	exitError          = 1
	exitHardwareAbsent = 2
)

var modules = []subcmd.Mod{
	read.Mod,
	read.LoopMod,
	dump.Mod,
	dump.DecodeMod,
	{Name: "version", SkipConfig: true, Usage: "print build version", Main: versionMain},
}

func main() {
	os.Exit(run())
}

func run() int {
	flagset := flag.NewFlagSet("mbus-hat", flag.ExitOnError)
	configPath := flagset.String("config", "mbus-hat.hcl", "config file, includes are relative to it")
	address := flagset.Int("address", 0, "override hardware.mbus.address")
	device := flagset.String("device", "", "override hardware.mbus.uart_device")
	flagset.Usage = func() {
		out := flagset.Output()
		fmt.Fprintf(out, "Usage: %s [option] command [args]\n\nOptions:\n", os.Args[0])
		flagset.PrintDefaults()
		fmt.Fprintf(out, "\nCommands:\n")
		for _, m := range modules {
			fmt.Fprintf(out, "  %-8s %s\n", m.Name, m.Usage)
		}
	}
	_ = flagset.Parse(os.Args[1:])

	log := log2.NewStderr(log2.LInfo)
	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamp
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}

	mod, err := subcmd.Parse(flagset.Arg(0), modules)
	if err != nil {
		log.Error(err)
		flagset.Usage()
		return exitError
	}

	config := new(state.Config)
	if !mod.SkipConfig {
		config = state.MustReadConfig(log, state.NewOsFullReader(), *configPath)
		if config.Log.File != "" || config.Log.Debug {
			level := log2.LInfo
			if config.Log.Debug {
				level = log2.LDebug
			}
			flog, closer := log2.NewFile(config.LogFile(), level)
			defer closer.Close()
			flog.SetFlags(log.Flags())
			log = flog
		}
	}
	if *address != 0 {
		config.Hardware.Mbus.Address = *address
	}
	if *device != "" {
		config.Hardware.Mbus.UartDevice = *device
	}

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion
	log.Debugf("mbus-hat version=%s command=%s", BuildVersion, mod.Name)

	err = mod.Main(ctx, config, flagset.Args()[1:])
	switch {
	case err == nil:
		return 0
	case state.IsHardwareAbsent(err):
		log.Errorf("%s: %v", mod.Name, err)
		return exitHardwareAbsent
	default:
		log.Errorf("%s: %s", mod.Name, errors.ErrorStack(err))
		return exitError
	}
}

func versionMain(ctx context.Context, _ *state.Config, _ []string) error {
	fmt.Println(state.GetGlobal(ctx).BuildVersion)
	return nil
}
