package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// Scheduler logs the day's summary once a day.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     *roster.Store
	ledger    *ledger.Ledger
	loc       *time.Location
	log       zerolog.Logger
	onSummary func(Summary)
}

// NewScheduler prepares a daily job at "HH:MM" in loc. onSummary, when not
// nil, receives every summary after it is logged.
func NewScheduler(at string, loc *time.Location, store *roster.Store, l *ledger.Ledger,
	logger zerolog.Logger, onSummary func(Summary),
) (*Scheduler, error) {
	at = strings.TrimSpace(at)
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, fmt.Errorf("invalid report time %q (want HH:MM): %w", at, err)
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		store:     store,
		ledger:    l,
		loc:       loc,
		log:       logger,
		onSummary: onSummary,
	}
	if _, err := s.scheduler.Every(1).Day().At(at).Do(s.Run); err != nil {
		return nil, fmt.Errorf("scheduling daily report: %w", err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// NextRun returns when the summary fires next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Run builds and logs today's summary.
func (s *Scheduler) Run() {
	date := time.Now().In(s.loc).Format(ledger.DateLayout)
	summary := Summarize(s.store, s.ledger, date)

	names := make([]string, len(summary.Present))
	for i, p := range summary.Present {
		names[i] = p.Identity
	}
	s.log.Info().
		Str("date", summary.Date).
		Int("present", len(summary.Present)).
		Int("absent", len(summary.Absent)).
		Strs("present_identities", names).
		Strs("absent_identities", summary.Absent).
		Msg("daily attendance summary")

	if s.onSummary != nil {
		s.onSummary(summary)
	}
}
