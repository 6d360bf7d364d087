package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// RosterHandler lists and registers identities.
type RosterHandler struct {
	store    *roster.Store
	enroller *enroll.Enroller
	log      zerolog.Logger
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(store *roster.Store, enroller *enroll.Enroller, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{store: store, enroller: enroller, log: logger}
}

// RosterEntryResponse describes one registered identity. Embeddings are not
// returned; they are only useful to the matcher.
type RosterEntryResponse struct {
	Name         string    `json:"name"`
	Dim          int       `json:"dim"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toEntryResponse(e roster.Entry) RosterEntryResponse {
	return RosterEntryResponse{Name: e.Identity, Dim: len(e.Embedding), RegisteredAt: e.RegisteredAt}
}

// List returns the roster in registration order.
func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.store.Entries()
	result := make([]RosterEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = toEntryResponse(e)
	}
	respondJSON(w, http.StatusOK, result)
}

// RegisterRequest adds a precomputed embedding.
type RegisterRequest struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
}

// Register handles POST /roster.
func (h *RosterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	entry, err := h.enroller.RegisterEmbedding(r.Context(), req.Name, req.Embedding)
	if err != nil {
		h.fail(w, req.Name, err)
		return
	}
	respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

// CaptureRequest registers the face currently in front of the camera.
type CaptureRequest struct {
	Name     string `json:"name"`
	Attempts int    `json:"attempts,omitempty"`
}

// Capture handles POST /roster/capture.
func (h *RosterHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.CaptureTimeout)
	defer cancel()

	entry, err := h.enroller.Capture(ctx, req.Name, req.Attempts)
	if err != nil {
		h.fail(w, req.Name, err)
		return
	}
	respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *RosterHandler) fail(w http.ResponseWriter, name string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("identity", sanitizeForLog(name)).Msg("registration failed")
	}
	respondError(w, status, err.Error())
}
