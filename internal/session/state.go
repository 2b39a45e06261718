package session

import "fmt"

type State uint8

const (
	StateIdle State = iota
	StatePoweringUp
	StateAwaitingAck
	StateRequestSent
	StateAwaitingData
	StateSuccess
	StateFailed
	StatePoweringDown
)

var stateNames = [...]string{
	StateIdle:         "Idle",
	StatePoweringUp:   "PoweringUp",
	StateAwaitingAck:  "AwaitingAck",
	StateRequestSent:  "RequestSent",
	StateAwaitingData: "AwaitingData",
	StateSuccess:      "Success",
	StateFailed:       "Failed",
	StatePoweringDown: "PoweringDown",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Cause classifies session failure.
type Cause uint8

const (
	CauseUnexpected Cause = iota
	CauseHardwareAbsent
	CauseNoAckFromSlave
	CauseNoDataFromSlave
	CauseFrameMalformed
	CauseTelegramTruncated
	CauseTelegramUnsupported
)

var causeNames = [...]string{
	CauseUnexpected:          "Unexpected",
	CauseHardwareAbsent:      "HardwareAbsent",
	CauseNoAckFromSlave:      "NoAckFromSlave",
	CauseNoDataFromSlave:     "NoDataFromSlave",
	CauseFrameMalformed:      "FrameMalformed",
	CauseTelegramTruncated:   "TelegramTruncated",
	CauseTelegramUnsupported: "TelegramUnsupported",
}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return fmt.Sprintf("Cause(%d)", uint8(c))
}

func (c Cause) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
