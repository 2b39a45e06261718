package power

import (
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/log2"
)

// Cdev is line requested through /dev/gpiochipN character device.
type Cdev struct {
	Log   *log2.Log
	chip  gpio.Chiper // only for resource cleanup
	lines gpio.Lineser
	set   gpio.LineSetFunc
	line  uint32
}

func OpenCdev(chipPath string, line uint32, log *log2.Log) (*Cdev, error) {
	chip, err := gpio.Open(chipPath, consumerLabel)
	if err != nil {
		return nil, errors.Annotatef(err, "power open chip=%s", chipPath)
	}
	self, err := NewCdev(chip, line, log)
	if err != nil {
		_ = chip.Close()
		return nil, errors.Annotatef(err, "power chip=%s", chipPath)
	}
	return self, nil
}

// NewCdev requests output line on opened chip and drives it Low.
func NewCdev(chip gpio.Chiper, line uint32, log *log2.Log) (*Cdev, error) {
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, consumerLabel, line)
	if err != nil {
		return nil, errors.Annotatef(err, "OpenLines line=%d", line)
	}
	self := &Cdev{
		Log:   log,
		chip:  chip,
		lines: lines,
		set:   lines.SetFunc(line),
		line:  line,
	}
	if err = self.Set(false); err != nil {
		_ = lines.Close()
		return nil, err
	}
	return self, nil
}

func (self *Cdev) Set(high bool) error {
	var v byte
	if high {
		v = 1
	}
	self.set(v)
	if err := self.lines.Flush(); err != nil {
		return errors.Annotatef(err, "power line=%d set=%s", self.line, levelString(high))
	}
	self.Log.Debugf("power line=%d %s", self.line, levelString(high))
	return nil
}

// Close drives line Low then releases it.
func (self *Cdev) Close() error {
	errs := []error{self.Set(false), self.lines.Close()}
	if self.chip != nil {
		errs = append(errs, self.chip.Close())
	}
	return helpers.FoldErrors(errs)
}
