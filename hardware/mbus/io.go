package mbus

import (
	"time"
)

const (
	DefaultBaud = 2400
	// Read wait slice, frame reader loops over it until overall deadline.
	DefaultPollInterval = 20 * time.Millisecond
)

type ErrTimeoutT string

type Timeouter interface {
	Timeout() bool
}

func (e ErrTimeoutT) Error() string { return string(e) }
func (ErrTimeoutT) Timeout() bool   { return true }

const errPollTimeout = ErrTimeoutT("uart read poll timeout")

func isTimeout(err error) bool {
	if t, ok := err.(Timeouter); ok {
		return t.Timeout()
	}
	return false
}

// Uarter is serial line driver, always 8 data bits, even parity, 1 stop bit.
// Read blocks at most driver poll interval and returns Timeouter error when nothing arrived.
type Uarter interface {
	Open(path string, baud int) error
	Close() error
	// ResetRead discards any pending input.
	ResetRead() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}
