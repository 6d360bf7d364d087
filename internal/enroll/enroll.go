// Package enroll registers new identities: it captures a face, adds it to the
// in-memory roster and persists it.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// ErrNoFace means no face was found in any inspected frame.
var ErrNoFace = errors.New("no face detected")

// Enroller performs operator registrations. repo may be nil, in which case
// entries live only in memory.
type Enroller struct {
	source        camera.Source
	extractor     extractor.Extractor
	store         *roster.Store
	repo          database.RosterRepository
	retryInterval time.Duration
	log           zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Enroller.
func New(source camera.Source, ext extractor.Extractor, store *roster.Store, repo database.RosterRepository,
	retryInterval time.Duration, logger zerolog.Logger,
) *Enroller {
	if retryInterval <= 0 {
		retryInterval = constants.DefaultRetryInterval
	}
	return &Enroller{
		source:        source,
		extractor:     ext,
		store:         store,
		repo:          repo,
		retryInterval: retryInterval,
		log:           logger,
		now:           time.Now,
		sleep:         sleepContext,
	}
}

// Capture grabs frames until one contains a face, then registers the largest
// face under label. Frames without a face count against attempts; acquisition
// failures are retried until ctx ends.
func (e *Enroller) Capture(ctx context.Context, label string, attempts int) (roster.Entry, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return roster.Entry{}, roster.ErrEmptyIdentity
	}
	if existing, ok := e.store.Get(label); ok {
		return roster.Entry{}, &roster.DuplicateIdentityError{Identity: label, Existing: existing.Identity}
	}
	if attempts <= 0 {
		attempts = constants.DefaultEnrollAttempts
	}

	var lastAcqErr error
	for tried := 0; tried < attempts; {
		frame, err := e.source.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return roster.Entry{}, errors.Join(ctx.Err(), lastAcqErr)
			}
			lastAcqErr = err
			e.log.Debug().Err(err).Msg("registration frame unavailable, retrying")
			if err := e.sleep(ctx, e.retryInterval); err != nil {
				return roster.Entry{}, errors.Join(err, lastAcqErr)
			}
			continue
		}

		obs, err := e.extractor.Extract(ctx, frame)
		if err != nil {
			return roster.Entry{}, fmt.Errorf("extracting faces: %w", err)
		}

		best := extractor.Largest(obs)
		if best < 0 {
			tried++
			e.log.Info().Int("attempt", tried).Int("attempts", attempts).Msg("no face detected, please try again")
			continue
		}
		return e.RegisterEmbedding(ctx, label, obs[best].Embedding)
	}

	return roster.Entry{}, fmt.Errorf("%w after %d frames", ErrNoFace, attempts)
}

// EnrollImage registers the largest face found in an encoded image.
func (e *Enroller) EnrollImage(ctx context.Context, label string, data []byte) (roster.Entry, error) {
	frame, err := camera.Decode(data)
	if err != nil {
		return roster.Entry{}, err
	}

	obs, err := e.extractor.Extract(ctx, frame)
	if err != nil {
		return roster.Entry{}, fmt.Errorf("extracting faces: %w", err)
	}

	best := extractor.Largest(obs)
	if best < 0 {
		return roster.Entry{}, ErrNoFace
	}
	return e.RegisterEmbedding(ctx, label, obs[best].Embedding)
}

// RegisterEmbedding validates, persists and then adds the entry to the
// in-memory roster, so a persistence failure leaves the roster unchanged.
func (e *Enroller) RegisterEmbedding(ctx context.Context, label string, embedding []float32) (roster.Entry, error) {
	label = strings.TrimSpace(label)
	if err := e.store.Check(label, embedding); err != nil {
		return roster.Entry{}, err
	}

	entry := roster.Entry{Identity: label, Embedding: embedding, RegisteredAt: e.now()}
	if e.repo != nil {
		if err := e.repo.Save(ctx, entry); err != nil {
			return roster.Entry{}, fmt.Errorf("persisting %q: %w", label, err)
		}
	}
	if err := e.store.RegisterAt(entry.Identity, entry.Embedding, entry.RegisteredAt); err != nil {
		return roster.Entry{}, err
	}

	e.log.Info().Str("identity", label).Int("dim", len(embedding)).Msg("successfully registered")
	return entry, nil
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
