package dictation

import (
	"errors"
	"fmt"
	"sync"
)

// State is the capture lifecycle state of a dictation session.
type State int

const (
	// StateIdle - no dictation in progress.
	StateIdle State = iota
	// StateRequestingPermission - waiting for the audio device.
	StateRequestingPermission
	// StateRecording - capturing audio, live captions may be running.
	StateRecording
	// StateReconnecting - capturing audio while the live stream is re-established.
	StateReconnecting
	// StateStopping - releasing the live stream and the audio device.
	StateStopping
	// StateProcessing - device released, producing structured results.
	StateProcessing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequestingPermission:
		return "REQUESTING_PERMISSION"
	case StateRecording:
		return "RECORDING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateStopping:
		return "STOPPING"
	case StateProcessing:
		return "PROCESSING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Capturing reports whether the audio device is held in this state.
func (s State) Capturing() bool {
	return s == StateRecording || s == StateReconnecting
}

// ErrInvalidTransition is returned for a transition the state machine forbids.
var ErrInvalidTransition = errors.New("invalid dictation state transition")

// transitions lists the allowed targets of each state.
var transitions = map[State][]State{
	StateIdle:                 {StateRequestingPermission},
	StateRequestingPermission: {StateRecording, StateIdle},
	StateRecording:            {StateReconnecting, StateStopping},
	StateReconnecting:         {StateRecording, StateStopping},
	StateStopping:             {StateProcessing},
	StateProcessing:           {StateIdle},
}

// Lifecycle manages the capture state machine for one session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → REQUESTING_PERMISSION → RECORDING → STOPPING → PROCESSING → IDLE
//	                                  ↑   ↓
//	                              RECONNECTING
//
// Fail returns to IDLE from any state.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Transition moves to the given state if the current state allows it.
func (l *Lifecycle) Transition(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range transitions[l.state] {
		if allowed == to {
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, l.state, to)
}

// Fail returns to IDLE from any state and reports the state it left.
// Used for permission and device failures and for abandoned sessions.
func (l *Lifecycle) Fail() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.state
	l.state = StateIdle
	return prev
}
