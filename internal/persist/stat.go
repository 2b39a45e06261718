package persist

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/juju/errors"
)

// Stat counts session outcomes across runs.
type Stat struct {
	mu        sync.Mutex
	runs      uint64
	successes uint64
	failures  map[string]uint64
	published uint64
	spooled   uint64
	// wall clock unix nano, meaningful across process restarts
	lastSuccess int64
	lastFailure int64
}

var _ Stater = &Stat{}

type StatSnapshot struct {
	Runs        uint64            `json:"runs"`
	Successes   uint64            `json:"successes"`
	Failures    map[string]uint64 `json:"failures,omitempty"`
	Published   uint64            `json:"published"`
	Spooled     uint64            `json:"spooled"`
	LastSuccess int64             `json:"last_success,omitempty"` // unix nano
	LastFailure int64             `json:"last_failure,omitempty"`
}

func (self *Stat) Success() {
	self.mu.Lock()
	self.runs++
	self.successes++
	self.lastSuccess = time.Now().UnixNano()
	self.mu.Unlock()
}

func (self *Stat) Failure(cause string) {
	self.mu.Lock()
	self.runs++
	if self.failures == nil {
		self.failures = make(map[string]uint64)
	}
	self.failures[cause]++
	self.lastFailure = time.Now().UnixNano()
	self.mu.Unlock()
}

// Delivered accounts sink result of one reading.
func (self *Stat) Delivered(ok bool) {
	self.mu.Lock()
	if ok {
		self.published++
	} else {
		self.spooled++
	}
	self.mu.Unlock()
}

func (self *Stat) Snapshot() StatSnapshot {
	self.mu.Lock()
	defer self.mu.Unlock()
	s := StatSnapshot{
		Runs:        self.runs,
		Successes:   self.successes,
		Published:   self.published,
		Spooled:     self.spooled,
		LastSuccess: self.lastSuccess,
		LastFailure: self.lastFailure,
	}
	if len(self.failures) != 0 {
		s.Failures = make(map[string]uint64, len(self.failures))
		for k, v := range self.failures {
			s.Failures[k] = v
		}
	}
	return s
}

func (self *Stat) MarshalBinary() ([]byte, error) {
	b, err := json.Marshal(self.Snapshot())
	return b, errors.Trace(err)
}

func (self *Stat) UnmarshalBinary(b []byte) error {
	var s StatSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Annotate(err, "stat decode")
	}
	self.mu.Lock()
	self.runs = s.Runs
	self.successes = s.Successes
	self.failures = s.Failures
	self.published = s.Published
	self.spooled = s.Spooled
	self.lastSuccess = s.LastSuccess
	self.lastFailure = s.LastFailure
	self.mu.Unlock()
	return nil
}
