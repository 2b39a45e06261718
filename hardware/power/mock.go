package power

import "sync"

// Mock records every Set for tests.
type Mock struct {
	// SetErr, when not nil, is returned by Set(true). Level is still recorded.
	SetErr error

	mu     sync.Mutex
	levels []bool
	closed bool
}

var _ Liner = &Mock{}

func NewMock() *Mock { return &Mock{} }

func (self *Mock) Set(high bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.levels = append(self.levels, high)
	if high {
		return self.SetErr
	}
	return nil
}

func (self *Mock) Close() error {
	self.mu.Lock()
	self.closed = true
	self.mu.Unlock()
	return nil
}

// Levels returns history as "low"/"high" strings.
func (self *Mock) Levels() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	ss := make([]string, len(self.levels))
	for i, l := range self.levels {
		ss[i] = levelString(l)
	}
	return ss
}

func (self *Mock) High() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.levels) > 0 && self.levels[len(self.levels)-1]
}

func (self *Mock) Closed() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.closed
}
