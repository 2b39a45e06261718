package state

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/hardware/hat"
	mbus_config "github.com/temoto/mbus-hat/hardware/mbus/config"
	"github.com/temoto/mbus-hat/hardware/power"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/internal/metrics"
	"github.com/temoto/mbus-hat/internal/persist"
	"github.com/temoto/mbus-hat/internal/sink"
	"github.com/temoto/mbus-hat/log2"
)

const (
	DefaultLoopInterval  = 15 * time.Minute
	DefaultBackoffMin    = 10 * time.Second
	DefaultBackoffMax    = 10 * time.Minute
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	defaultBackoffFactor = 2
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Hardware struct {
		Hat   hat.Config         `hcl:"hat"`
		Mbus  mbus_config.Config `hcl:"mbus"`
		Power power.Config       `hcl:"power"`
	} `hcl:"hardware"`

	Log struct {
		Debug      bool   `hcl:"debug"`
		File       string `hcl:"file"`
		MaxSizeMB  int    `hcl:"max_size_mb"`
		MaxBackups int    `hcl:"max_backups"`
	} `hcl:"log"`

	Loop struct {
		IntervalSec   int `hcl:"interval_sec"`
		BackoffMinSec int `hcl:"backoff_min_sec"`
		BackoffMaxSec int `hcl:"backoff_max_sec"`
	} `hcl:"loop"`

	Metrics metrics.Config `hcl:"metrics"`
	Persist persist.Config `hcl:"persist"`
	Sink    sink.Config    `hcl:"sink"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) LoopInterval() time.Duration {
	return helpers.IntSecondDefault(c.Loop.IntervalSec, DefaultLoopInterval)
}

func (c *Config) Backoff() helpers.Backoff {
	return helpers.Backoff{
		Min: helpers.IntSecondDefault(c.Loop.BackoffMinSec, DefaultBackoffMin),
		Max: helpers.IntSecondDefault(c.Loop.BackoffMaxSec, DefaultBackoffMax),
		K:   defaultBackoffFactor,
		Res: time.Second,
	}
}

func (c *Config) LogFile() log2.FileConfig {
	fc := log2.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		Compress:   true,
	}
	if fc.MaxSizeMB == 0 {
		fc.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if fc.MaxBackups == 0 {
		fc.MaxBackups = DefaultLogMaxBackups
	}
	return fc
}

// Validate checks all subsystems, errors are folded into one.
func (c *Config) Validate() error {
	errs := []error{
		c.Hardware.Mbus.Validate(),
		c.Hardware.Power.Validate(),
		c.Sink.Validate(),
	}
	if c.Loop.IntervalSec < 0 {
		errs = append(errs, errors.NotValidf("loop.interval_sec=%d", c.Loop.IntervalSec))
	}
	if c.Loop.BackoffMinSec < 0 || c.Loop.BackoffMaxSec < 0 {
		errs = append(errs, errors.NotValidf("loop.backoff_min_sec=%d backoff_max_sec=%d", c.Loop.BackoffMinSec, c.Loop.BackoffMaxSec))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
