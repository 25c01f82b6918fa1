package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time of day %q must be HH:MM or HH:MM:SS", ErrInvalidConfiguration, s)
	}

	limits := []int{23, 59, 59}
	var fields [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: time of day %q must use two digit fields", ErrInvalidConfiguration, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("%w: time of day %q is out of range", ErrInvalidConfiguration, s)
		}
		fields[i] = n
	}

	d := time.Duration(fields[0])*time.Hour + time.Duration(fields[1])*time.Minute + time.Duration(fields[2])*time.Second
	return TimeOfDay(d), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	return TimeOfDay(d + time.Duration(t.Nanosecond()))
}

// String formats as HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	if sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// TimeWindow is the daily interval during which attendance may be recorded.
// Both bounds are inclusive and the window never wraps past midnight.
type TimeWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewTimeWindow builds a validated window.
func NewTimeWindow(start, end TimeOfDay) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// ParseTimeWindow parses two "HH:MM" strings into a validated window.
func ParseTimeWindow(start, end string) (TimeWindow, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeWindow{}, err
	}
	return NewTimeWindow(s, e)
}

// Validate rejects windows that would wrap or fall outside one day.
func (w TimeWindow) Validate() error {
	if w.Start < 0 || w.End >= TimeOfDay(24*time.Hour) {
		return fmt.Errorf("%w: window %s-%s is outside one day", ErrInvalidConfiguration, w.Start, w.End)
	}
	if w.Start > w.End {
		return fmt.Errorf("%w: window start %s is after end %s", ErrInvalidConfiguration, w.Start, w.End)
	}
	return nil
}

// Contains reports whether t's time of day is within [Start, End].
func (w TimeWindow) Contains(t time.Time) bool {
	tod := Of(t)
	return tod >= w.Start && tod <= w.End
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// MarshalText encodes the window as "HH:MM-HH:MM".
func (w TimeWindow) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
