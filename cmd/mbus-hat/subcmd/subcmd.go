// Support sub-commands in mbus-hat application.
package subcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/internal/state"
	"gopkg.in/yaml.v3"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(ctx context.Context, config *state.Config, args []string) error
	// config file is not read, Main gets zero Config
	SkipConfig bool
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// Print writes v as indented json or yaml.
func Print(w io.Writer, format string, v interface{}) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Trace(enc.Encode(v))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(enc.Close())
	}
	return errors.NotSupportedf("format=%s, valid: json, yaml", format)
}
