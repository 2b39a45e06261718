package mbus

// Public API to easy create M-Bus stubs to test your code.
import (
	"strings"
	"sync"
	"time"

	"github.com/temoto/mbus-hat/helpers"
)

type MockRead struct {
	B     []byte
	Delay time.Duration
	Err   error
}

// MockReadsHex splits each chunk into separate read, emulating partial arrivals.
func MockReadsHex(chunks ...string) []MockRead {
	rs := make([]MockRead, 0, len(chunks))
	for _, c := range chunks {
		rs = append(rs, MockRead{B: helpers.MustHex(c)})
	}
	return rs
}

// Mock Uarter for tests.
// Reply is called on every Write and its result is appended to read queue.
type MockUart struct {
	Reply func(written []byte) []MockRead

	mu     sync.Mutex
	writes [][]byte
	reads  []MockRead
	opened string
	resets int
}

func NewMockUart(reply func(written []byte) []MockRead) *MockUart {
	return &MockUart{Reply: reply}
}

func (self *MockUart) Open(path string, baud int) error {
	self.mu.Lock()
	self.opened = path
	self.mu.Unlock()
	return nil
}

func (self *MockUart) Close() error { return nil }

func (self *MockUart) ResetRead() error {
	self.mu.Lock()
	self.reads = nil
	self.resets++
	self.mu.Unlock()
	return nil
}

func (self *MockUart) Push(rs ...MockRead) {
	self.mu.Lock()
	self.reads = append(self.reads, rs...)
	self.mu.Unlock()
}

func (self *MockUart) Read(p []byte) (int, error) {
	self.mu.Lock()
	if len(self.reads) == 0 {
		self.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, errPollTimeout
	}
	r := self.reads[0]
	self.reads = self.reads[1:]
	self.mu.Unlock()

	time.Sleep(r.Delay)
	if r.Err != nil {
		return 0, r.Err
	}
	n := copy(p, r.B)
	if n < len(r.B) {
		self.mu.Lock()
		self.reads = append([]MockRead{{B: r.B[n:]}}, self.reads...)
		self.mu.Unlock()
	}
	return n, nil
}

func (self *MockUart) Write(p []byte) (int, error) {
	self.mu.Lock()
	self.writes = append(self.writes, append([]byte(nil), p...))
	reply := self.Reply
	self.mu.Unlock()
	if reply != nil {
		self.Push(reply(p)...)
	}
	return len(p), nil
}

// Writes returns each Write call payload as hex.
func (self *MockUart) Writes() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	ss := make([]string, len(self.writes))
	for i, w := range self.writes {
		ss[i] = strings.Replace(helpers.FormatHex(w), " ", "", -1)
	}
	return ss
}

func (self *MockUart) Resets() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.resets
}

// MockSlave answers ping with ack and REQ_UD2 with given long frame, like one meter on the bus.
func MockSlave(address byte, response []byte) func([]byte) []MockRead {
	return func(w []byte) []MockRead {
		f, err := ParseFrame(w, FrameShort)
		if err != nil || f.A != address {
			return nil
		}
		switch f.C &^ CFCB {
		case CSndNke:
			return []MockRead{{B: []byte{ByteAck}}}
		case CReqUD2:
			// split to emulate slow line
			half := len(response) / 2
			return []MockRead{{B: response[:half]}, {B: response[half:], Delay: time.Millisecond}}
		}
		return nil
	}
}
