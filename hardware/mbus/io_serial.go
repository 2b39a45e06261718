package mbus

import (
	"io"

	"github.com/grid-x/serial"
	"github.com/juju/errors"
)

// serialUart uses portable serial library, works where termios2 is not available.
type serialUart struct {
	config serial.Config
	port   io.ReadWriteCloser
}

func NewSerialUart() *serialUart { return &serialUart{} }

func (self *serialUart) Open(path string, baud int) error {
	if self.port != nil {
		self.port.Close()
		self.port = nil
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	self.config = serial.Config{
		Address:  path,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "E",
		Timeout:  DefaultPollInterval,
	}
	port, err := serial.Open(&self.config)
	if err != nil {
		return errors.Annotatef(err, "serial open path=%s baud=%d", path, baud)
	}
	self.port = port
	return nil
}

func (self *serialUart) Close() error {
	if self.port == nil {
		return nil
	}
	err := self.port.Close()
	self.port = nil
	return errors.Trace(err)
}

// Drain whatever is buffered, poll timeout means input is empty.
func (self *serialUart) ResetRead() error {
	var buf [64]byte
	for i := 0; i < 1024; i++ {
		n, err := self.Read(buf[:])
		if isTimeout(err) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return errors.Errorf("serial ResetRead input does not stop")
}

func (self *serialUart) Read(p []byte) (int, error) {
	n, err := self.port.Read(p)
	if err == serial.ErrTimeout {
		return n, errPollTimeout
	}
	return n, err
}

func (self *serialUart) Write(p []byte) (int, error) { return self.port.Write(p) }
