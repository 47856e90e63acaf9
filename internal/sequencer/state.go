package sequencer

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned by Transition for an event the current
// state does not accept.
var ErrInvalidTransition = errors.New("invalid bootstrap transition")

// State is the sequencer's lifecycle position.
type State uint8

const (
	StateIdle State = iota
	StateProbing
	StateReady
	StateRunning
	StateFailed
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateRunning || s == StateFailed || s == StateFaulted
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for c := StateIdle; c <= StateFaulted; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown bootstrap state %q", string(b))
}

// Event drives a Transition.
type Event uint8

const (
	EventInitialize Event = iota
	EventSupported
	EventUnsupported
	EventStart
	EventFault
)

func (e Event) String() string {
	switch e {
	case EventInitialize:
		return "initialize"
	case EventSupported:
		return "supported"
	case EventUnsupported:
		return "unsupported"
	case EventStart:
		return "start"
	case EventFault:
		return "fault"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Transition returns the state that follows s on e. It performs no side
// effects; the Sequencer applies them.
func Transition(s State, e Event) (State, error) {
	switch {
	case s == StateIdle && e == EventInitialize:
		return StateProbing, nil
	case s == StateProbing && e == EventSupported:
		return StateReady, nil
	case s == StateProbing && e == EventUnsupported:
		return StateFailed, nil
	case s == StateProbing && e == EventFault:
		return StateFaulted, nil
	case s == StateReady && e == EventStart:
		return StateRunning, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}
