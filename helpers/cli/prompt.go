// Package cli runs line oriented console: go-prompt on terminal, plain lines from pipe.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

// MainLoop returns on EOF of piped input. Interactive prompt exits process on Ctrl-D or signal,
// onExit runs first to release hardware.
func MainLoop(tag string, exec Executor, complete Completer, onExit func()) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		for range signalCh {
			if onExit != nil {
				onExit()
			}
			os.Exit(1)
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return ReadLines(os.Stdin, exec)
}

// ReadLines calls exec for each trimmed line.
func ReadLines(r io.Reader, exec Executor) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		exec(strings.TrimSpace(scanner.Text()))
	}
	return errors.Trace(scanner.Err())
}

// FilterSuggest is fuzzy match of word before cursor.
func FilterSuggest(suggests []prompt.Suggest) Completer {
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}
