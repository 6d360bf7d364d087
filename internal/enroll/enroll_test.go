package enroll

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	fails int // leading acquisition failures
	calls int
}

func (s *fakeSource) Acquire(ctx context.Context) (*camera.Frame, error) {
	s.calls++
	if s.calls <= s.fails {
		return nil, &camera.AcquisitionError{URL: "http://camera/shot.jpg", Err: errors.New("timeout")}
	}
	return &camera.Frame{Image: image.NewRGBA(image.Rect(0, 0, 10, 10)), CapturedAt: time.Now()}, nil
}

// sequenceExtractor returns results[i] on the i-th call, then the last one.
type sequenceExtractor struct {
	results [][]extractor.Observation
	calls   int
}

func (e *sequenceExtractor) Extract(ctx context.Context, frame *camera.Frame) ([]extractor.Observation, error) {
	i := min(e.calls, len(e.results)-1)
	e.calls++
	return e.results[i], nil
}

func faces(boxes ...extractor.Box) []extractor.Observation {
	out := make([]extractor.Observation, len(boxes))
	for i, b := range boxes {
		out[i] = extractor.Observation{Box: b, Embedding: []float32{float32(i + 1), 0}}
	}
	return out
}

func newEnroller(src camera.Source, ext extractor.Extractor, store *roster.Store, repo *mock.MockRosterRepository) *Enroller {
	var e *Enroller
	if repo == nil {
		e = New(src, ext, store, nil, time.Millisecond, zerolog.Nop())
	} else {
		e = New(src, ext, store, repo, time.Millisecond, zerolog.Nop())
	}
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func TestCapture_PicksLargestFace(t *testing.T) {
	store := roster.NewStore()
	repo := mock.NewMockRosterRepository()
	ext := &sequenceExtractor{results: [][]extractor.Observation{
		faces(extractor.Box{X2: 10, Y2: 10}, extractor.Box{X2: 50, Y2: 40}),
	}}

	entry, err := newEnroller(&fakeSource{}, ext, store, repo).Capture(context.Background(), " Alice ", 3)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if entry.Identity != "Alice" {
		t.Errorf("expected trimmed label, got %q", entry.Identity)
	}
	if entry.Embedding[0] != 2 {
		t.Errorf("expected the larger face's embedding, got %v", entry.Embedding)
	}
	if _, ok := store.Get("alice"); !ok {
		t.Error("entry should be in the store")
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("entry should be persisted, repo has %d", n)
	}
}

func TestCapture_RetriesNoFaceThenFails(t *testing.T) {
	ext := &sequenceExtractor{results: [][]extractor.Observation{nil}}
	src := &fakeSource{}

	_, err := newEnroller(src, ext, roster.NewStore(), nil).Capture(context.Background(), "Bob", 3)
	if !errors.Is(err, ErrNoFace) {
		t.Fatalf("expected ErrNoFace, got %v", err)
	}
	if src.calls != 3 {
		t.Errorf("expected 3 frames inspected, got %d", src.calls)
	}
}

func TestCapture_FaceOnLaterFrame(t *testing.T) {
	ext := &sequenceExtractor{results: [][]extractor.Observation{
		nil,
		nil,
		faces(extractor.Box{X2: 20, Y2: 20}),
	}}
	store := roster.NewStore()

	if _, err := newEnroller(&fakeSource{}, ext, store, nil).Capture(context.Background(), "Bob", 5); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}
}

func TestCapture_AcquisitionFailuresDoNotCount(t *testing.T) {
	ext := &sequenceExtractor{results: [][]extractor.Observation{faces(extractor.Box{X2: 20, Y2: 20})}}
	src := &fakeSource{fails: 5}

	if _, err := newEnroller(src, ext, roster.NewStore(), nil).Capture(context.Background(), "Bob", 1); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if src.calls != 6 {
		t.Errorf("expected 6 acquisition calls, got %d", src.calls)
	}
}

func TestCapture_CameraDownUntilDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{fails: 1 << 30}
	e := newEnroller(src, &sequenceExtractor{results: [][]extractor.Observation{nil}}, roster.NewStore(), nil)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if src.calls >= 3 {
			cancel()
		}
		return ctx.Err()
	}

	_, err := e.Capture(ctx, "Bob", 1)
	var acq *camera.AcquisitionError
	if !errors.As(err, &acq) {
		t.Errorf("expected the last AcquisitionError to be reported, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation in error, got %v", err)
	}
}

func TestCapture_DuplicateRejectedBeforeCapture(t *testing.T) {
	store := roster.NewStore()
	if err := store.Register("Alice", []float32{1, 0}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	src := &fakeSource{}

	_, err := newEnroller(src, &sequenceExtractor{results: [][]extractor.Observation{nil}}, store, nil).
		Capture(context.Background(), "alice", 3)
	var dup *roster.DuplicateIdentityError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIdentityError, got %v", err)
	}
	if src.calls != 0 {
		t.Errorf("no frame should be grabbed for a duplicate label, got %d", src.calls)
	}
}

func TestRegisterEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		label     string
		embedding []float32
		saveErr   error
		check     func(t *testing.T, err error)
	}{
		{
			name:      "valid",
			label:     "Carol",
			embedding: []float32{0.5, 0.5},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
		{
			name:      "wrong dimension",
			label:     "Carol",
			embedding: []float32{0.5},
			check: func(t *testing.T, err error) {
				var invalid *roster.InvalidEmbeddingError
				if !errors.As(err, &invalid) {
					t.Errorf("expected InvalidEmbeddingError, got %v", err)
				}
			},
		},
		{
			name:      "empty label",
			label:     "",
			embedding: []float32{0.5, 0.5},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, roster.ErrEmptyIdentity) {
					t.Errorf("expected ErrEmptyIdentity, got %v", err)
				}
			},
		},
		{
			name:      "persistence failure",
			label:     "Carol",
			embedding: []float32{0.5, 0.5},
			saveErr:   errors.New("read-only filesystem"),
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected persistence error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := roster.NewStore()
			if err := store.Register("Alice", []float32{1, 0}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			repo := mock.NewMockRosterRepository()
			repo.SaveError = tt.saveErr

			_, err := newEnroller(&fakeSource{}, &sequenceExtractor{results: [][]extractor.Observation{nil}}, store, repo).
				RegisterEmbedding(context.Background(), tt.label, tt.embedding)
			tt.check(t, err)

			if err != nil && store.Len() != 1 {
				t.Errorf("failed registration must leave the roster unchanged, got %d", store.Len())
			}
		})
	}
}

func TestEnrollImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	store := roster.NewStore()
	ext := &sequenceExtractor{results: [][]extractor.Observation{faces(extractor.Box{X2: 5, Y2: 5})}}
	e := newEnroller(&fakeSource{}, ext, store, nil)

	if _, err := e.EnrollImage(context.Background(), "Dave", buf.Bytes()); err != nil {
		t.Fatalf("EnrollImage: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}

	if _, err := e.EnrollImage(context.Background(), "Eve", []byte("not an image")); err == nil {
		t.Error("expected decode error")
	}

	noFace := newEnroller(&fakeSource{}, &sequenceExtractor{results: [][]extractor.Observation{nil}}, store, nil)
	if _, err := noFace.EnrollImage(context.Background(), "Eve", buf.Bytes()); !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}
