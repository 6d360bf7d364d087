package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/report"
)

func TestAttendanceHandler_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := env.ledger.RecordPresence(ctx, name, day); err != nil {
			t.Fatalf("RecordPresence: %v", err)
		}
	}
	if _, err := env.ledger.RecordPresence(ctx, "Alice", day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("RecordPresence: %v", err)
	}
	h := NewAttendanceHandler(env.store, env.ledger)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
	}{
		{"day with two records", "/api/v1/attendance?date=2024-03-05", http.StatusOK, 2},
		{"next day", "/api/v1/attendance?date=2024-03-06", http.StatusOK, 1},
		{"empty day", "/api/v1/attendance?date=2023-01-01", http.StatusOK, 0},
		{"bad date", "/api/v1/attendance?date=yesterday", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h.List, http.MethodGet, tc.target, "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp AttendanceResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Records == nil || len(resp.Records) != tc.wantCount {
				t.Errorf("expected %d records, got %v", tc.wantCount, resp.Records)
			}
		})
	}
}

func TestAttendanceHandler_ListDefaultsToToday(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.ledger.RecordPresence(context.Background(), "Alice", time.Now()); err != nil {
		t.Fatalf("RecordPresence: %v", err)
	}
	h := NewAttendanceHandler(env.store, env.ledger)

	rec := doRequest(t, h.List, http.MethodGet, "/api/v1/attendance", "")

	var resp AttendanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Date != env.ledger.Today() || len(resp.Records) != 1 {
		t.Errorf("expected today's single record, got %+v", resp)
	}
}

func TestAttendanceHandler_Summary(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"Alice", "Bob"} {
		if err := env.store.Register(name, []float32{1, 0}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	day := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	if _, err := env.ledger.RecordPresence(context.Background(), "bob", day); err != nil {
		t.Fatalf("RecordPresence: %v", err)
	}
	h := NewAttendanceHandler(env.store, env.ledger)

	rec := doRequest(t, h.Summary, http.MethodGet, "/api/v1/attendance/summary?date=2024-03-05", "")

	var s report.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(s.Present) != 1 || s.Present[0].Time != "09:00:00" {
		t.Errorf("unexpected present list %+v", s.Present)
	}
	if len(s.Absent) != 1 || s.Absent[0] != "Alice" {
		t.Errorf("expected Alice absent, got %v", s.Absent)
	}
}
