package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	rosterHandler := handlers.NewRosterHandler(s.deps.Store, s.deps.Enroller, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Store, s.deps.Ledger)
	pipelineHandler := handlers.NewPipelineHandler(s.deps.Pipeline, s.deps.Frames)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Roster
		r.Get("/roster", rosterHandler.List)
		r.Post("/roster", rosterHandler.Register)
		r.Post("/roster/capture", rosterHandler.Capture)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/summary", attendanceHandler.Summary)

		// Pipeline
		r.Get("/pipeline/status", pipelineHandler.Status)
		r.Get("/pipeline/frame.jpg", pipelineHandler.Frame)
		r.Get("/pipeline/events", pipelineHandler.Events)
	})
}
