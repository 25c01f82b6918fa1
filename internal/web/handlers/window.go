package handlers

import (
	"sync"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// WindowController holds the attendance window applied at runtime. The live
// poller implements it; WindowState is used when no live loop runs.
type WindowController interface {
	Window() attendance.TimeWindow
	SetWindow(w attendance.TimeWindow) error
}

// WindowState is a mutex-guarded window.
type WindowState struct {
	mu     sync.RWMutex
	window attendance.TimeWindow
}

// NewWindowState creates a window state with an initial window.
func NewWindowState(w attendance.TimeWindow) *WindowState {
	return &WindowState{window: w}
}

func (s *WindowState) Window() attendance.TimeWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

func (s *WindowState) SetWindow(w attendance.TimeWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	return nil
}

// windowFromQuery overrides either bound of def with the start_time and
// end_time query parameters.
func windowFromQuery(start, end string, def attendance.TimeWindow) (attendance.TimeWindow, error) {
	w := def
	if start != "" {
		t, err := attendance.ParseTimeOfDay(start)
		if err != nil {
			return w, err
		}
		w.Start = t
	}
	if end != "" {
		t, err := attendance.ParseTimeOfDay(end)
		if err != nil {
			return w, err
		}
		w.End = t
	}
	return w, w.Validate()
}
