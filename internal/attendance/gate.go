package attendance

import (
	"fmt"
	"time"
)

// Decision is the gate outcome for one accepted identity.
type Decision string

// Decision values, in the order the rules are evaluated.
const (
	DecisionAccept              Decision = "accept"
	DecisionRejectOutsideWindow Decision = "outside_window"
	DecisionRejectDebounced     Decision = "debounced"
)

// State is the per-identity gate state, derived from the roster at call time.
// The zero value is NeverAttended.
type State struct {
	Attended bool
	LastTime time.Time
	Count    int
}

// Gate applies the window and debounce rules. It holds configuration only.
type Gate struct {
	debounce time.Duration
}

// NewGate creates a gate with the given debounce interval.
// Zero selects DefaultDebounce; negative intervals are rejected.
func NewGate(debounce time.Duration) (*Gate, error) {
	if debounce < 0 {
		return nil, fmt.Errorf("%w: debounce interval %s is negative", ErrInvalidConfiguration, debounce)
	}
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	return &Gate{debounce: debounce}, nil
}

// Debounce returns the configured debounce interval.
func (g *Gate) Debounce() time.Duration {
	return g.debounce
}

// Decide evaluates the rules for state at now.
func (g *Gate) Decide(state State, now time.Time, window TimeWindow) Decision {
	return Decide(state, now, window, g.debounce)
}

// Decide is the gate transition function:
//  1. outside [window.Start, window.End] -> RejectOutsideWindow
//  2. attended and now-last < debounce   -> RejectDebounced
//  3. otherwise                          -> Accept
func Decide(state State, now time.Time, window TimeWindow, debounce time.Duration) Decision {
	if !window.Contains(now) {
		return DecisionRejectOutsideWindow
	}
	if state.Attended && WithinDebounce(state.LastTime, now, debounce) {
		return DecisionRejectDebounced
	}
	return DecisionAccept
}

// WithinDebounce reports whether now falls inside the debounce interval after last.
// A last time in the future counts as inside.
func WithinDebounce(last, now time.Time, debounce time.Duration) bool {
	return now.Sub(last) < debounce
}
