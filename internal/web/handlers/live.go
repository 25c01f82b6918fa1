package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
)

// LiveHandler exposes the runtime attendance window and the decision stream.
type LiveHandler struct {
	window WindowController
	events *pipeline.Broadcaster
}

// NewLiveHandler creates a new live handler. events may be nil.
func NewLiveHandler(window WindowController, events *pipeline.Broadcaster) *LiveHandler {
	return &LiveHandler{window: window, events: events}
}

// WindowRequest is the body of PUT /live/window and of window responses.
type WindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func windowBody(w attendance.TimeWindow) WindowRequest {
	return WindowRequest{Start: w.Start.String(), End: w.End.String()}
}

// GetWindow returns the current window.
func (h *LiveHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, windowBody(h.window.Window()))
}

// SetWindow replaces the window for the live loop and for API calls that
// omit start_time and end_time.
func (h *LiveHandler) SetWindow(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	window, err := attendance.ParseTimeWindow(req.Start, req.End)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.window.SetWindow(window); err != nil {
		respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, windowBody(window))
}

// setupSSEConnection sets the event stream headers. On failure it writes an
// error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// Events streams pipeline decisions via SSE until the client disconnects.
func (h *LiveHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}

	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := h.events.AddListener()
	defer h.events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", map[string]any{
		"window": windowBody(h.window.Window()),
	})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
