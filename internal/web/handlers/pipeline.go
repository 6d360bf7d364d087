package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/render"
)

// PipelineHandler reports on the running attendance loop.
type PipelineHandler struct {
	pipeline *pipeline.Pipeline
	frames   *render.Latest
}

// NewPipelineHandler creates a new pipeline handler. frames may be nil when
// annotated frames are not kept.
func NewPipelineHandler(p *pipeline.Pipeline, frames *render.Latest) *PipelineHandler {
	return &PipelineHandler{pipeline: p, frames: frames}
}

// Status returns the session counters.
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.Stats())
}

// Frame serves the most recent annotated frame as JPEG.
func (h *PipelineHandler) Frame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		respondError(w, http.StatusNotFound, "no frame available")
		return
	}
	data, at, ok := h.frames.Frame()
	if !ok {
		respondError(w, http.StatusNotFound, "no frame available")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	w.Header().Set("X-Frame-Time", at.Format(time.RFC3339Nano))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Events streams pipeline events as server-sent events.
func (h *PipelineHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.pipeline, h.pipeline.Stats())
}
