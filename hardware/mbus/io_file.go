//go:build linux

package mbus

import (
	"os"
	"time"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// fileUart drives tty with termios2, arbitrary baud via BOTHER.
type fileUart struct {
	f    *os.File
	fd   int
	poll time.Duration
}

func NewFileUart() *fileUart { return &fileUart{poll: DefaultPollInterval} }

func (self *fileUart) Open(path string, baud int) (err error) {
	if self.f != nil {
		self.f.Close()
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	self.f, err = os.OpenFile(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0600)
	if err != nil {
		return errors.Annotatef(err, "uart open path=%s", path)
	}
	self.fd = int(self.f.Fd())
	if err = ioResetTermios(self.fd, baud); err != nil {
		self.f.Close()
		self.f = nil
		return errors.Annotatef(err, "uart termios path=%s baud=%d", path, baud)
	}
	return nil
}

func (self *fileUart) Close() error {
	if self.f == nil {
		return nil
	}
	err := self.f.Close()
	self.f = nil
	return errors.Trace(err)
}

func (self *fileUart) ResetRead() error {
	return errors.Trace(unix.IoctlSetInt(self.fd, unix.TCFLSH, unix.TCIFLUSH))
}

func (self *fileUart) Read(p []byte) (int, error) {
	if err := ioWaitRead(self.fd, self.poll); err != nil {
		return 0, err
	}
	n, err := unix.Read(self.fd, p)
	if err == unix.EAGAIN {
		return 0, errPollTimeout
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (self *fileUart) Write(p []byte) (int, error) {
	n, err := self.f.Write(p)
	if err != nil {
		return n, errors.Trace(err)
	}
	// wait until bytes left the line, slave answer timing counts from here
	return n, errors.Trace(unix.IoctlSetInt(self.fd, unix.TCSBRK, 1))
}

// 8E1, raw mode, no flow control, non-blocking reads gated by poll().
func ioResetTermios(fd int, baud int) error {
	t2 := unix.Termios{
		Iflag:  unix.INPCK,
		Cflag:  unix.CLOCAL | unix.CREAD | unix.CS8 | unix.PARENB | unix.BOTHER,
		Ispeed: uint32(baud),
		Ospeed: uint32(baud),
	}
	t2.Cc[unix.VMIN] = 0
	t2.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, &t2); err != nil {
		return err
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
}

func ioWaitRead(fd int, wait time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(wait/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Annotate(err, "uart poll")
		}
		if n == 0 {
			return errPollTimeout
		}
		return nil
	}
}
