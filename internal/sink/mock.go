package sink

import (
	"context"
	"sync"
)

type MockMessage struct {
	Topic   string
	Payload string
}

// MockPublisher records published messages. Err, when set, fails every Publish.
type MockPublisher struct {
	mu       sync.Mutex
	Err      error
	messages []MockMessage
	closed   bool
}

var _ Publisher = &MockPublisher{}

func (self *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.Err != nil {
		return self.Err
	}
	self.messages = append(self.messages, MockMessage{Topic: topic, Payload: string(payload)})
	return nil
}

func (self *MockPublisher) SetErr(err error) {
	self.mu.Lock()
	self.Err = err
	self.mu.Unlock()
}

func (self *MockPublisher) Messages() []MockMessage {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]MockMessage(nil), self.messages...)
}

func (self *MockPublisher) Close() error {
	self.mu.Lock()
	self.closed = true
	self.mu.Unlock()
	return nil
}
