// Package attendance holds the attendance domain model and the gate that
// decides whether a recognized identity counts as a new attendance event.
package attendance

import (
	"time"
)

// TimestampLayout is the persisted timestamp format. It sorts lexically.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultDebounce is the minimum time between two accepted events for the same identity.
const DefaultDebounce = 10 * time.Minute

// Identity is an enrolled person and their attendance counters.
type Identity struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Class           string     `json:"class"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	TotalAttendance int        `json:"total_attendance"`
	LastAttendance  *time.Time `json:"last_attendance,omitempty"`
}

// Clone returns a deep copy so callers never share the LastAttendance pointer.
func (i Identity) Clone() Identity {
	if i.LastAttendance != nil {
		t := *i.LastAttendance
		i.LastAttendance = &t
	}
	return i
}

// State derives the gate state from the identity's counters.
func (i Identity) State() State {
	if i.LastAttendance == nil {
		return State{}
	}
	return State{Attended: true, LastTime: *i.LastAttendance, Count: i.TotalAttendance}
}

// Status is the outcome recorded in the ledger.
type Status string

// Status values. Only StatusPresent is produced today.
const (
	StatusPresent Status = "Present"
)

// AttendanceEvent is one immutable ledger record.
type AttendanceEvent struct {
	EventID    string    `json:"event_id"`
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"` // snapshot at write time
	Timestamp  time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
}

// MatchResult is the per-detection output of the match evaluator.
type MatchResult struct {
	CandidateID string    `json:"candidate_id,omitempty"`
	Distance    float64   `json:"distance"`
	Accepted    bool      `json:"accepted"`
	BBox        []float64 `json:"bbox,omitempty"` // [x1, y1, x2, y2] in sample pixels
}

// FormatTimestamp renders t in the persisted layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a persisted timestamp in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, s, loc)
}
