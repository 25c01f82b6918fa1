package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
)

// AttendanceHandler handles recognition and attendance endpoints.
type AttendanceHandler struct {
	pipeline *pipeline.Pipeline
	window   WindowController
	maxSize  int
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(p *pipeline.Pipeline, window WindowController, maxSize int) *AttendanceHandler {
	return &AttendanceHandler{
		pipeline: p,
		window:   window,
		maxSize:  maxSize,
	}
}

// PredictResponse is the body of a successful predict call.
type PredictResponse struct {
	Identity   *attendance.Identity `json:"identity"`
	Confidence float64              `json:"confidence"`
	BBox       []float64            `json:"bbox,omitempty"`
}

// DecisionResponse is the body of an attendance decision.
type DecisionResponse struct {
	Identity          *attendance.Identity `json:"identity"`
	Confidence        *float64             `json:"confidence,omitempty"`
	AttendanceUpdated bool                 `json:"attendance_updated"`
	Outcome           pipeline.Outcome     `json:"outcome"`
	Reason            attendance.Decision  `json:"reason,omitempty"`
	Timestamp         string               `json:"timestamp"`
	Snapshot          string               `json:"snapshot,omitempty"`
}

func decisionResponse(res pipeline.Result) DecisionResponse {
	return DecisionResponse{
		Identity:          res.Identity,
		AttendanceUpdated: res.Accepted(),
		Outcome:           res.Outcome,
		Reason:            res.Reason,
		Timestamp:         attendance.FormatTimestamp(res.Timestamp),
		Snapshot:          res.Snapshot,
	}
}

// readSample reads the "image" multipart field. It writes the error response
// and returns false when the upload is missing or cannot be decoded.
func (h *AttendanceHandler) readSample(w http.ResponseWriter, r *http.Request) (*recognition.Sample, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return nil, false
	}

	sample, err := recognition.NewSample(data, h.maxSize)
	if err != nil {
		if errors.Is(err, recognition.ErrUnusableSample) {
			respondError(w, http.StatusBadRequest, "image could not be decoded")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "failed to process image")
		return nil, false
	}
	return sample, true
}

// Predict identifies the face in the uploaded image without recording attendance.
func (h *AttendanceHandler) Predict(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.readSample(w, r)
	if !ok {
		return
	}

	match, ident, err := h.pipeline.Match(r.Context(), sample)
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}
	if ident == nil {
		respondError(w, http.StatusNotFound, "no match found")
		return
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		Identity:   ident,
		Confidence: match.Distance,
		BBox:       match.BBox,
	})
}

// UpdateAttendance runs the attendance gate for an already identified person.
func (h *AttendanceHandler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("identity_id")
	if id == "" {
		id = q.Get("student_id")
	}
	if id == "" {
		respondError(w, http.StatusBadRequest, "identity_id is required")
		return
	}

	window, err := windowFromQuery(q.Get("start_time"), q.Get("end_time"), h.window.Window())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.pipeline.RecordIdentity(r.Context(), id, window, "api")
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, decisionResponse(res))
}

// RecognizeAndUpdate identifies the uploaded face and records attendance.
func (h *AttendanceHandler) RecognizeAndUpdate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := windowFromQuery(q.Get("start_time"), q.Get("end_time"), h.window.Window())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sample, ok := h.readSample(w, r)
	if !ok {
		return
	}

	res, err := h.pipeline.ProcessDetection(r.Context(), sample, window, "api")
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}
	if res.Outcome == pipeline.OutcomeNoMatch {
		respondError(w, http.StatusNotFound, "no match found")
		return
	}

	if res.Accepted() {
		log.Printf("Attendance recorded for %s via API", sanitizeForLog(res.Identity.ID))
	}

	body := decisionResponse(res)
	distance := res.Match.Distance
	body.Confidence = &distance
	respondJSON(w, http.StatusOK, body)
}
