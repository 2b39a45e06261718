package mbus

import (
	"io"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/log2"
)

type Buser interface {
	// Send discards pending input then writes b completely.
	Send(b []byte) error
	// Recv accumulates bytes until complete valid frame of kind or timeout since call.
	Recv(kind FrameKind, timeout time.Duration) (Frame, error)
	Close() error
}

type Bus struct {
	Log *log2.Log

	io      Uarter
	lk      sync.Mutex
	recvBuf []byte
	now     func() time.Time
}

var _ Buser = &Bus{}

func NewBus(u Uarter, path string, baud int, log *log2.Log) (*Bus, error) {
	self := &Bus{
		Log:     log,
		io:      u,
		recvBuf: make([]byte, 0, LongFrameMaxLength),
		now:     time.Now,
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	err := self.io.Open(path, baud)
	return self, errors.Annotatef(err, "mbus open path=%s", path)
}

func (self *Bus) Close() error { return errors.Trace(self.io.Close()) }

func (self *Bus) Send(b []byte) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.io.ResetRead(); err != nil {
		return errors.Annotate(err, "mbus reset read")
	}
	self.Log.Debugf("mbus.Send > (%02d) %s", len(b), helpers.FormatHex(b))
	err := helpers.WriteAll(writerFunc(self.io.Write), b)
	return errors.Annotate(err, "mbus send")
}

func (self *Bus) Recv(kind FrameKind, timeout time.Duration) (Frame, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	tbegin := self.now()
	f, err := self.readFrame(kind, tbegin.Add(timeout), timeout)
	self.Log.Debugf("mbus.Recv kind=%s < (%02d) %s duration=%v err=%v",
		kind, len(self.recvBuf), helpers.FormatHex(self.recvBuf), self.now().Sub(tbegin), err)
	// partial frame is never resumed
	self.recvBuf = self.recvBuf[:0]
	return f, err
}

// Tx sends request and waits for response frame of kind.
func (self *Bus) Tx(request []byte, kind FrameKind, timeout time.Duration) (Frame, error) {
	if err := self.Send(request); err != nil {
		return Frame{}, errors.Trace(err)
	}
	f, err := self.Recv(kind, timeout)
	return f, errors.Trace(err)
}

// Caller must hold self.lk.
func (self *Bus) readFrame(kind FrameKind, deadline time.Time, timeout time.Duration) (Frame, error) {
	var chunk [64]byte
	self.recvBuf = self.recvBuf[:0]
	for {
		total, err := expectLength(self.recvBuf, kind)
		if err != nil {
			return Frame{}, errors.Trace(err)
		}
		if total != 0 && len(self.recvBuf) >= total {
			// anything after complete frame belongs to nobody, single slave answers once
			b := append([]byte(nil), self.recvBuf[:total]...)
			f, err := ParseFrame(b, kind)
			return f, errors.Trace(err)
		}

		if !self.now().Before(deadline) {
			if total != 0 && (kind == FrameLong || kind == FrameControl) {
				// header length fields were valid, slave sent less than declared
				return Frame{}, ErrFrameMalformed{Kind: kind, Check: CheckLength, Offset: len(self.recvBuf),
					Expected: total, Actual: len(self.recvBuf), Raw: append([]byte(nil), self.recvBuf...)}
			}
			return Frame{}, ErrFrameTimeout{Kind: kind, Wait: timeout, Received: append([]byte(nil), self.recvBuf...)}
		}
		want := len(chunk)
		if total != 0 && total-len(self.recvBuf) < want {
			want = total - len(self.recvBuf)
		}
		n, err := self.io.Read(chunk[:want])
		if n > 0 {
			self.recvBuf = append(self.recvBuf, chunk[:n]...)
		}
		switch {
		case err == nil:
		case isTimeout(err):
		case err == io.EOF:
			// stream ended, what we have is all there is
			if len(self.recvBuf) == 0 {
				return Frame{}, ErrFrameTimeout{Kind: kind, Wait: timeout}
			}
			b := append([]byte(nil), self.recvBuf...)
			_, perr := ParseFrame(b, kind)
			return Frame{}, errors.Trace(perr)
		default:
			return Frame{}, errors.Annotate(err, "mbus read")
		}
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
