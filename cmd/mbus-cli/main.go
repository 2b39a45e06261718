package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/mbus"
	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/helpers/cli"
	"github.com/temoto/mbus-hat/internal/reading"
	"github.com/temoto/mbus-hat/internal/state"
	"github.com/temoto/mbus-hat/log2"
)

const usage = `syntax: commands separated by whitespace
(main)
- power=on   raise transceiver enable line
- power=off  lower transceiver enable line
- ping       SND_NKE to slave, expect ack
- req        REQ_UD2 to slave, show decoded telegram
- read       full session: power, ping, request, decode, power down
- sN         pause N milliseconds
- @XX...     transmit frame from hex XX..., show response

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- loop=N   repeat N times all commands on this line
`

var log = log2.NewStderr(log2.LDebug)

type step struct {
	name string
	f    func(context.Context) error
}

type console struct {
	g       *state.Global
	address byte
	fcb     bool
	timeout time.Duration
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := cmdline.String("config", "", "optional config file, flags below override it")
	device := cmdline.String("device", "", "serial device, default /dev/ttyAMA0")
	driver := cmdline.String("io", "", "uart driver file|serial")
	address := cmdline.Int("address", 0, "slave address 1..250")
	skipHat := cmdline.Bool("skip-hat", false, "do not check HAT presence")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	config := new(state.Config)
	if *configPath != "" {
		config = state.MustReadConfig(log, state.NewOsFullReader(), *configPath)
	}
	config.Sink.Enable = false
	config.Hardware.Hat.Skip = config.Hardware.Hat.Skip || *skipHat
	config.Hardware.Mbus.LogDebug = true
	if *device != "" {
		config.Hardware.Mbus.UartDevice = *device
	}
	if *driver != "" {
		config.Hardware.Mbus.UartDriver = *driver
	}
	if *address != 0 {
		config.Hardware.Mbus.Address = *address
	}

	ctx, g := state.NewContext(log)
	g.MustInit(ctx, config)
	if _, err := g.Session(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	c := &console{
		g:       g,
		address: byte(g.Config.Hardware.Mbus.Address),
		fcb:     g.Config.Hardware.Mbus.FCB,
		timeout: g.Config.Hardware.Mbus.DataTimeout(),
	}
	closeHardware := func() {
		if err := g.Close(); err != nil {
			log.Error(err)
		}
	}
	defer closeHardware()

	if err := cli.MainLoop("mbus-cli", c.newExecutor(ctx), cli.FilterSuggest(suggests), closeHardware); err != nil {
		log.Error(err)
	}
}

var suggests = []prompt.Suggest{
	{Text: "power=on", Description: "raise enable line"},
	{Text: "power=off", Description: "lower enable line"},
	{Text: "ping", Description: "SND_NKE, expect ack"},
	{Text: "req", Description: "REQ_UD2, show telegram"},
	{Text: "read", Description: "full session"},
	{Text: "sN", Description: "pause for N ms"},
	{Text: "loop=N", Description: "repeat line N times"},
	{Text: "@XX", Description: "transmit frame, show response"},
	{Text: "log=yes", Description: "debug logging"},
	{Text: "log=no", Description: "quiet logging"},
}

func (self *console) newExecutor(ctx context.Context) cli.Executor {
	return func(line string) {
		steps, loopn, err := self.parseLine(line)
		if err != nil {
			log.Errorf(errors.ErrorStack(err))
			return
		}
		if loopn == 0 {
			loopn = 1
		}
		for i := uint(0); i < loopn; i++ {
			for _, s := range steps {
				if err = s.f(ctx); err != nil {
					log.Errorf("%s: %s", s.name, errors.ErrorStack(err))
					return
				}
			}
		}
	}
}

func (self *console) parseLine(line string) ([]step, uint, error) {
	words := strings.Fields(line)
	loopn := uint(0)
	steps := make([]step, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return []step{{"help", func(context.Context) error { log.Info(usage); return nil }}}, 0, nil
		case strings.HasPrefix(word, "loop="):
			if loopn != 0 {
				return nil, 0, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, 0, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
		default:
			s, err := self.parseCommand(word)
			if err != nil {
				return nil, 0, err
			}
			steps = append(steps, s)
		}
	}
	return steps, loopn, nil
}

func (self *console) parseCommand(word string) (step, error) {
	switch {
	case word == "log=yes":
		return step{word, func(context.Context) error { log.SetLevel(log2.LDebug); return nil }}, nil
	case word == "log=no":
		return step{word, func(context.Context) error { log.SetLevel(log2.LError); return nil }}, nil
	case word == "power=on":
		return step{word, func(context.Context) error { return self.power(true) }}, nil
	case word == "power=off":
		return step{word, func(context.Context) error { return self.power(false) }}, nil
	case word == "ping":
		return step{word, func(context.Context) error { return self.tx(mbus.EncodePing(self.address)) }}, nil
	case word == "req":
		return step{word, func(context.Context) error { return self.tx(mbus.EncodeRequest(self.address, self.fcb)) }}, nil
	case word == "read":
		return step{word, self.read}, nil
	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return step{}, errors.Annotatef(err, "word=%s", word)
		}
		d := time.Duration(i) * time.Millisecond
		return step{word, func(context.Context) error { time.Sleep(d); return nil }}, nil
	case word[0] == '@':
		b, err := helpers.ParseHex(word[1:])
		if err != nil {
			return step{}, errors.Annotatef(err, "word=%s", word)
		}
		return step{word, func(context.Context) error { return self.tx(b) }}, nil
	}
	return step{}, errors.Errorf("error: invalid command: '%s'", word)
}

func (self *console) power(high bool) error {
	line, err := self.g.Power()
	if err != nil {
		return err
	}
	return line.Set(high)
}

// tx sends request and waits for response kind expected by protocol.
func (self *console) tx(request []byte) error {
	bus, err := self.g.Bus()
	if err != nil {
		return err
	}
	kind := responseKind(request)
	log.Infof("> %s", helpers.FormatHex(request))
	if err = bus.Send(request); err != nil {
		return err
	}
	f, err := bus.Recv(kind, self.timeout)
	if err != nil {
		return err
	}
	log.Infof("< %s", f.String())
	if kind == mbus.FrameLong {
		t, err := telegram.Decode(&f)
		if err != nil {
			return err
		}
		r := reading.Project(t)
		b, err := r.JSON()
		if err != nil {
			return errors.Trace(err)
		}
		log.Infof("%s\n%s", t.String(), b)
	}
	return nil
}

func (self *console) read(ctx context.Context) error {
	r, err := self.g.ReadOnce(ctx)
	if err != nil {
		return err
	}
	b, err := r.Reading.JSON()
	if err != nil {
		return errors.Trace(err)
	}
	log.Infof("key=%s %s", r.RoutingKey(), b)
	return nil
}

// SND_NKE is answered with ack, everything else with long frame.
func responseKind(request []byte) mbus.FrameKind {
	if f, err := mbus.ParseFrame(request, mbus.FrameShort); err == nil && f.C&^mbus.CFCB == mbus.CSndNke {
		return mbus.FrameAck
	}
	return mbus.FrameLong
}
