package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

// IdentitiesHandler serves the roster.
type IdentitiesHandler struct {
	roster *roster.Store
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(store *roster.Store) *IdentitiesHandler {
	return &IdentitiesHandler{roster: store}
}

// List returns the roster. The optional q parameter filters by name, class
// or ID, ignoring case and diacritics.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := h.roster.Search(r.URL.Query().Get("q"))
	respondJSON(w, http.StatusOK, map[string]any{
		"count":      len(identities),
		"identities": identities,
	})
}

// Get returns a single identity.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ident, ok := h.roster.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, ident)
}
