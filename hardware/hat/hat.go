// Package hat checks Raspberry Pi HAT EEPROM descriptor exported by device tree.
package hat

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/log2"
)

const (
	DefaultProductPath   = "/proc/device-tree/hat/product"
	DefaultVersionPath   = "/proc/device-tree/hat/product_ver"
	DefaultProductPrefix = "M-Bus Master"
)

type Config struct {
	Skip          bool   `hcl:"skip"` // bench setup with transceiver wired directly
	ProductPath   string `hcl:"product_path"`
	VersionPath   string `hcl:"version_path"`
	ProductPrefix string `hcl:"product_prefix"`
}

type ErrHardwareAbsent struct {
	Path    string
	Product string
	Expect  string
	Err     error
}

func (self ErrHardwareAbsent) Error() string {
	if self.Err != nil {
		return fmt.Sprintf("hardware absent path=%s err=%v", self.Path, self.Err)
	}
	return fmt.Sprintf("hardware absent path=%s product='%s' expected prefix='%s'", self.Path, self.Product, self.Expect)
}

func IsHardwareAbsent(err error) bool {
	_, ok := errors.Cause(err).(ErrHardwareAbsent)
	return ok
}

type Info struct {
	Product string
	Version string
}

// ReadFunc returns file content; tests substitute map lookup.
type ReadFunc func(path string) ([]byte, error)

// Check verifies HAT presence. Must run before any GPIO or serial access.
// Missing version file is not an error.
func Check(c *Config, read ReadFunc, log *log2.Log) (Info, error) {
	info := Info{}
	if c.Skip {
		log.Infof("hat presence check skipped by config")
		return info, nil
	}
	if read == nil {
		read = ioutil.ReadFile
	}
	productPath := stringDefault(c.ProductPath, DefaultProductPath)
	prefix := stringDefault(c.ProductPrefix, DefaultProductPrefix)

	b, err := read(productPath)
	if err != nil {
		return info, ErrHardwareAbsent{Path: productPath, Expect: prefix, Err: err}
	}
	info.Product = trimNul(b)
	if !strings.HasPrefix(info.Product, prefix) {
		return info, ErrHardwareAbsent{Path: productPath, Product: info.Product, Expect: prefix}
	}

	versionPath := stringDefault(c.VersionPath, DefaultVersionPath)
	if b, err = read(versionPath); err == nil {
		info.Version = trimNul(b)
	} else if !os.IsNotExist(err) {
		log.Errorf("hat version path=%s err=%v", versionPath, err)
	}
	log.Infof("hat product='%s' version='%s'", info.Product, info.Version)
	return info, nil
}

// device tree strings are NUL terminated
func trimNul(b []byte) string {
	return string(bytes.TrimSpace(bytes.Replace(b, []byte{0}, nil, -1)))
}

func stringDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
