package handlers

import (
	"log"
	"net/http"
)

// ModelLoader is the recognizer's model lifecycle.
type ModelLoader interface {
	Load() error
	Loaded() bool
	Stats() (enrollments, identities int)
}

// ModelHandler reports on and reloads the recognizer model.
type ModelHandler struct {
	model ModelLoader
}

// NewModelHandler creates a new model handler.
func NewModelHandler(model ModelLoader) *ModelHandler {
	return &ModelHandler{model: model}
}

type modelStatus struct {
	Loaded      bool `json:"loaded"`
	Enrollments int  `json:"enrollments"`
	Identities  int  `json:"identities"`
}

func (h *ModelHandler) status() modelStatus {
	enrollments, identities := h.model.Stats()
	return modelStatus{Loaded: h.model.Loaded(), Enrollments: enrollments, Identities: identities}
}

// Status returns whether a model is loaded and its size.
func (h *ModelHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status())
}

// Reload re-reads the model artifact. The previous model keeps serving when
// the reload fails.
func (h *ModelHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.model.Load(); err != nil {
		log.Printf("Model reload failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "failed to reload model: "+err.Error())
		return
	}
	st := h.status()
	log.Printf("Model reloaded: %d enrollments, %d identities", st.Enrollments, st.Identities)
	respondJSON(w, http.StatusOK, st)
}
