package sink

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/temoto/spq"
)

// denote value type in persistent queue bytes form
const (
	spoolMarker  byte = 0
	spoolMessage byte = 1
)

// Spool is persistent FIFO of undelivered messages.
type Spool struct {
	q *spq.Queue
}

// OpenSpool path=spq.OnlyForTesting keeps queue in memory.
func OpenSpool(path string) (*Spool, error) {
	q, err := spq.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Spool{q: q}, nil
}

func (self *Spool) Close() error { return self.q.Close() }

func (self *Spool) Push(topic string, payload []byte) error {
	return errors.Trace(self.q.Push(encodeMessage(topic, payload)))
}

// Drain calls send for each message queued before the call, in order.
// Sent messages are deleted. On send error remaining messages keep their order and error is returned.
// Queue Peek blocks when empty, so unique marker bounds the walk.
func (self *Spool) Drain(send func(topic string, payload []byte) error) (int, error) {
	id := uuid.New()
	marker := append([]byte{spoolMarker}, id[:]...)
	if err := self.q.Push(marker); err != nil {
		return 0, errors.Annotate(err, "spool push marker")
	}
	sent := 0
	var sendErr error
	for {
		box, err := self.q.Peek()
		if err != nil {
			return sent, errors.Annotate(err, "spool peek")
		}
		b := box.Bytes()
		if len(b) > 0 && b[0] == spoolMarker {
			if err = self.q.Delete(box); err != nil {
				return sent, errors.Annotate(err, "spool delete marker")
			}
			if bytes.Equal(b, marker) {
				return sent, sendErr
			}
			continue // stale marker of interrupted drain
		}
		if sendErr != nil {
			// rotate to tail behind our marker, preserves order
			if err = self.q.DeletePush(box); err != nil {
				return sent, errors.Annotate(err, "spool rotate")
			}
			continue
		}
		topic, payload, err := decodeMessage(b)
		if err != nil {
			// drop undecodable entry
			_ = self.q.Delete(box)
			continue
		}
		if sendErr = send(topic, payload); sendErr != nil {
			if err = self.q.DeletePush(box); err != nil {
				return sent, errors.Annotate(err, "spool rotate")
			}
			continue
		}
		if err = self.q.Delete(box); err != nil {
			return sent, errors.Annotate(err, "spool delete")
		}
		sent++
	}
}

func encodeMessage(topic string, payload []byte) []byte {
	b := make([]byte, 3, 3+len(topic)+len(payload))
	b[0] = spoolMessage
	binary.BigEndian.PutUint16(b[1:3], uint16(len(topic)))
	b = append(b, topic...)
	return append(b, payload...)
}

func decodeMessage(b []byte) (string, []byte, error) {
	if len(b) < 3 || b[0] != spoolMessage {
		return "", nil, errors.NotValidf("spool message=%x", b)
	}
	tlen := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b) < 3+tlen {
		return "", nil, errors.NotValidf("spool message topic length=%d", tlen)
	}
	return string(b[3 : 3+tlen]), b[3+tlen:], nil
}
