package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// AttendanceHandler exposes the ledger.
type AttendanceHandler struct {
	store  *roster.Store
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(store *roster.Store, l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{store: store, ledger: l}
}

// AttendanceResponse lists the records of one day.
type AttendanceResponse struct {
	Date    string          `json:"date"`
	Records []ledger.Record `json:"records"`
	Pending bool            `json:"pending"` // records not yet persisted
}

// List handles GET /attendance?date=YYYY-MM-DD (default today).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, h.ledger.Today())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := h.ledger.RecordsOn(date)
	if records == nil {
		records = []ledger.Record{}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Date:    date,
		Records: records,
		Pending: h.ledger.Dirty(),
	})
}

// Summary handles GET /attendance/summary?date=YYYY-MM-DD.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, h.ledger.Today())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report.Summarize(h.store, h.ledger, date))
}
