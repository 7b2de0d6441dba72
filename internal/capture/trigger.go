package capture

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid capture state transition")

type State int

const (
	StateIdle State = iota
	StateAligning
	StateCapturing
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAligning:
		return "aligning"
	case StateCapturing:
		return "capturing"
	case StateCooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger is the capture state machine. The state itself is the only
// in-flight guard: Fire flips to Capturing before any request leaves.
type Trigger struct {
	state State
}

func (t *Trigger) State() State {
	return t.state
}

func (t *Trigger) Start() error {
	return t.move(StateIdle, StateAligning)
}

// Fire reports whether a capture should be requested now.
func (t *Trigger) Fire(aligned bool) bool {
	if !aligned || t.state != StateAligning {
		return false
	}
	t.state = StateCapturing
	return true
}

func (t *Trigger) BeginCooldown() error {
	return t.move(StateCapturing, StateCooldown)
}

func (t *Trigger) CooldownElapsed() error {
	return t.move(StateCooldown, StateAligning)
}

func (t *Trigger) Stop() {
	t.state = StateIdle
}

func (t *Trigger) move(from, to State) error {
	if t.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, t.state)
	}
	t.state = to
	return nil
}
