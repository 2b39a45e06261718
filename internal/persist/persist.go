// Package persist keeps small state blobs across process restarts in crash safe files.
package persist

import (
	"encoding"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/temoto/mbus-hat/log2"
)

type Config struct {
	Root string `hcl:"root"`
}

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Binds Stater{Marshal,Unmarshal} to persistent storage.
// Empty root disables storage, Load and Store become no-op.
type Persist struct {
	sync.Mutex
	log     *log2.Log
	tag     string
	target  Stater
	storage storage
}

func New(tag string, target Stater, root string, log *log2.Log) *Persist {
	if target == nil {
		panic("code error persist target nil")
	}
	p := &Persist{log: log, tag: tag, target: target}
	if root == "" {
		p.log.Debugf("persist %s disabled", tag)
		return p
	}
	p.storage = extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return p
}

func (self *Persist) Enabled() bool { return self.storage != nil }

func (self *Persist) Load() error {
	if self.storage == nil {
		return nil
	}
	self.Lock()
	defer self.Unlock()
	tbegin := time.Now()
	b, err := self.storage.Read()
	self.log.Debugf("persist %s read duration=%v", self.tag, time.Since(tbegin))
	if b != nil {
		if err != nil {
			self.log.Errorf("persist %s ignore non-critical storage err=%v", self.tag, err)
		}
		err = self.target.UnmarshalBinary(b)
	}
	return errors.Annotatef(err, "persist %s load", self.tag)
}

func (self *Persist) Store() error {
	if self.storage == nil {
		return nil
	}
	self.Lock()
	defer self.Unlock()
	b, err := self.target.MarshalBinary()
	if err == nil {
		tbegin := time.Now()
		_, err = self.storage.Write(b)
		self.log.Debugf("persist %s write duration=%v", self.tag, time.Since(tbegin))
	}
	return errors.Annotatef(err, "persist %s store", self.tag)
}
