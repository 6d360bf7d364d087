// Package pipeline drives the attendance loop: acquire a frame, extract faces,
// match each face against the roster and record presence for known identities.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/render"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// shutdownSyncTimeout bounds the final ledger flush after cancellation.
const shutdownSyncTimeout = 5 * time.Second

// State of the per-frame state machine.
type State int

const (
	StateIdle State = iota
	StateObserving
	StateDeciding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateObserving:
		return "observing"
	case StateDeciding:
		return "deciding"
	default:
		return "unknown"
	}
}

// Options tune the loop.
type Options struct {
	RetryInterval time.Duration // wait after an acquisition or extraction failure
	AlertAfter    int           // consecutive acquisition failures before a warning (0 disables)
	Workers       int           // observations matched concurrently (<= 1 means sequential)
	DuplicateIoU  float64       // detections overlapping at least this much are collapsed (0 uses the default)
}

// Pipeline owns one running attendance session. The roster and the ledger are
// passed in explicitly and may be shared with other callers.
type Pipeline struct {
	EventBroadcaster

	source    camera.Source
	extractor extractor.Extractor
	store     *roster.Store
	matcher   *matcher.Matcher
	ledger    *ledger.Ledger
	sink      render.Sink
	opts      Options
	log       zerolog.Logger

	sessionID string
	startedAt time.Time
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu                  sync.RWMutex
	state               State
	stats               Stats
	consecutiveFailures int
}

// Stats are counters since the session started.
type Stats struct {
	SessionID           string     `json:"session_id"`
	State               string     `json:"state"`
	StartedAt           time.Time  `json:"started_at"`
	Frames              int        `json:"frames"`
	AcquisitionFailures int        `json:"acquisition_failures"`
	ExtractionFailures  int        `json:"extraction_failures"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Observations        int        `json:"observations"`
	Unknown             int        `json:"unknown"`
	Recorded            int        `json:"recorded"`
	LedgerErrors        int        `json:"ledger_errors"`
	LastFrameAt         *time.Time `json:"last_frame_at,omitempty"`
}

// Decision is what happened to one observation.
type Decision struct {
	Observation extractor.Observation
	Result      matcher.Result
	Outcome     ledger.Outcome // zero when nothing was recorded
	Err         error
}

// FrameResult summarizes one processed frame.
type FrameResult struct {
	CapturedAt time.Time
	Decisions  []Decision
}

// Labels returns the annotation label of every decision, in order.
func (f *FrameResult) Labels() []string {
	labels := make([]string, len(f.Decisions))
	for i, d := range f.Decisions {
		labels[i] = d.Result.Label()
	}
	return labels
}

// New wires a pipeline. sink may be nil.
func New(source camera.Source, ext extractor.Extractor, store *roster.Store, m *matcher.Matcher,
	l *ledger.Ledger, sink render.Sink, opts Options, logger zerolog.Logger,
) *Pipeline {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = constants.DefaultRetryInterval
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DuplicateIoU <= 0 {
		opts.DuplicateIoU = extractor.DuplicateIoU
	}

	sessionID := uuid.NewString()
	return &Pipeline{
		source:    source,
		extractor: ext,
		store:     store,
		matcher:   m,
		ledger:    l,
		sink:      sink,
		opts:      opts,
		log:       logger.With().Str("session", sessionID).Logger(),
		sessionID: sessionID,
		startedAt: time.Now(),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// SessionID identifies this run.
func (p *Pipeline) SessionID() string {
	return p.sessionID
}

// State returns the current state machine position.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Stats returns a snapshot of the session counters.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stats
	s.SessionID = p.sessionID
	s.State = p.state.String()
	s.StartedAt = p.startedAt
	s.ConsecutiveFailures = p.consecutiveFailures
	if s.LastFrameAt != nil {
		t := *s.LastFrameAt
		s.LastFrameAt = &t
	}
	return s
}

// Run processes frames until ctx is cancelled. Acquisition failures are
// retried forever after RetryInterval; nothing but cancellation stops the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info().Dur("retry_interval", p.opts.RetryInterval).Int("workers", p.opts.Workers).Msg("attendance pipeline started")

	defer func() {
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownSyncTimeout)
		defer cancel()
		if err := p.ledger.Sync(syncCtx); err != nil {
			p.log.Error().Err(err).Msg("final attendance flush failed")
		}
		p.log.Info().Msg("attendance pipeline stopped")
	}()

	for ctx.Err() == nil {
		_, err := p.Step(ctx)

		if syncErr := p.ledger.Sync(ctx); syncErr != nil && ctx.Err() == nil {
			p.log.Warn().Err(syncErr).Msg("pending attendance records not yet persisted")
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := p.sleep(ctx, p.opts.RetryInterval); err != nil {
			break
		}
	}
	return nil
}

// Step processes exactly one frame. Acquisition failures come back as
// *camera.AcquisitionError; extraction failures skip the frame.
func (p *Pipeline) Step(ctx context.Context) (*FrameResult, error) {
	p.setState(StateIdle)

	frame, err := p.source.Acquire(ctx)
	if err != nil {
		p.acquisitionFailed(err)
		return nil, err
	}
	p.acquisitionSucceeded()

	p.setState(StateObserving)
	observations, err := p.extractor.Extract(ctx, frame)
	if err != nil {
		p.mu.Lock()
		p.stats.ExtractionFailures++
		p.mu.Unlock()
		p.setState(StateIdle)
		p.log.Warn().Err(err).Msg("face extraction failed, skipping frame")
		return nil, fmt.Errorf("extracting faces: %w", err)
	}
	observations = extractor.CollapseDuplicates(observations, p.opts.DuplicateIoU)

	p.setState(StateDeciding)
	result := &FrameResult{
		CapturedAt: frame.CapturedAt,
		Decisions:  p.decideAll(ctx, observations),
	}
	p.setState(StateIdle)

	p.finishFrame(frame, result)
	return result, nil
}

func (p *Pipeline) decideAll(ctx context.Context, observations []extractor.Observation) []Decision {
	decisions := make([]Decision, len(observations))
	if p.opts.Workers <= 1 || len(observations) < 2 {
		for i, o := range observations {
			decisions[i] = p.decide(ctx, o)
		}
		return decisions
	}

	sem := make(chan struct{}, p.opts.Workers)
	var wg sync.WaitGroup
	for i, o := range observations {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			decisions[i] = p.decide(ctx, o)
		}()
	}
	wg.Wait()
	return decisions
}

// decide runs the matcher and, for a known identity, the ledger.
func (p *Pipeline) decide(ctx context.Context, o extractor.Observation) Decision {
	d := Decision{Observation: o}

	res, err := p.matcher.Match(p.store, o.Embedding)
	d.Result = res
	if err != nil {
		d.Err = err
		p.log.Error().Err(err).Msg("observation rejected by matcher")
		return d
	}

	if !res.Known {
		p.SendEvent(Event{Type: EventUnknown, Message: "unrecognized face", Time: p.now()})
		return d
	}

	outcome, err := p.ledger.RecordPresence(ctx, res.Identity, p.now())
	d.Outcome = outcome
	if err != nil {
		d.Err = err
		var writeErr *ledger.LedgerWriteError
		if errors.As(err, &writeErr) {
			p.log.Error().Err(err).Str("identity", res.Identity).Msg("attendance kept in memory, flush pending")
		} else {
			p.log.Error().Err(err).Str("identity", res.Identity).Msg("recording attendance failed")
		}
	}

	if outcome == ledger.RecordedNow {
		p.SendEvent(Event{
			Type:    EventPresence,
			Message: fmt.Sprintf("Marked attendance for %s", res.Identity),
			Data:    PresenceData{Identity: res.Identity, Outcome: outcome.String(), Distance: res.Distance},
			Time:    p.now(),
		})
	}
	return d
}

func (p *Pipeline) finishFrame(frame *camera.Frame, result *FrameResult) {
	at := frame.CapturedAt
	p.mu.Lock()
	p.stats.Frames++
	p.stats.LastFrameAt = &at
	for _, d := range result.Decisions {
		p.stats.Observations++
		if !d.Result.Known {
			p.stats.Unknown++
		}
		if d.Outcome == ledger.RecordedNow {
			p.stats.Recorded++
		}
		var writeErr *ledger.LedgerWriteError
		if errors.As(d.Err, &writeErr) {
			p.stats.LedgerErrors++
		}
	}
	p.mu.Unlock()

	if p.sink != nil && frame.Image != nil {
		annotations := make([]render.Annotation, len(result.Decisions))
		for i, d := range result.Decisions {
			annotations[i] = render.Annotation{
				Rect:  d.Observation.Box.Rect(),
				Label: d.Result.Label(),
				Known: d.Result.Known,
			}
		}
		if err := p.sink.Publish(render.Annotate(frame.Image, annotations), at); err != nil {
			p.log.Warn().Err(err).Msg("publishing annotated frame failed")
		}
	}

	data := FrameData{Faces: len(result.Decisions), Labels: result.Labels()}
	if frame.Image != nil {
		data.Boxes = make([]extractor.Box, len(result.Decisions))
		for i, d := range result.Decisions {
			data.Boxes[i] = d.Observation.Box.Relative(frame.Width(), frame.Height())
		}
	}
	p.SendEvent(Event{
		Type: EventFrame,
		Data: data,
		Time: at,
	})
}

func (p *Pipeline) acquisitionFailed(err error) {
	p.mu.Lock()
	p.consecutiveFailures++
	p.stats.AcquisitionFailures++
	streak := p.consecutiveFailures
	p.mu.Unlock()

	p.log.Debug().Err(err).Int("consecutive", streak).Msg("frame unavailable")
	if p.opts.AlertAfter > 0 && streak == p.opts.AlertAfter {
		p.log.Warn().Err(err).Int("consecutive", streak).
			Msg("camera unavailable; check that the camera app is running and reachable on this network")
	}

	p.SendEvent(Event{
		Type:    EventAcquisitionFailed,
		Message: err.Error(),
		Data:    map[string]int{"consecutive": streak},
		Time:    p.now(),
	})
}

func (p *Pipeline) acquisitionSucceeded() {
	p.mu.Lock()
	streak := p.consecutiveFailures
	p.consecutiveFailures = 0
	p.mu.Unlock()

	if p.opts.AlertAfter > 0 && streak >= p.opts.AlertAfter {
		p.log.Info().Int("failures", streak).Msg("camera recovered")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
