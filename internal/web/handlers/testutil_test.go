package handlers

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/render"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

type stubSource struct{}

func (stubSource) Acquire(ctx context.Context) (*camera.Frame, error) {
	return &camera.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 48)), CapturedAt: time.Now()}, nil
}

type stubExtractor struct {
	observations []extractor.Observation
}

func (e stubExtractor) Extract(ctx context.Context, frame *camera.Frame) ([]extractor.Observation, error) {
	return e.observations, nil
}

// testEnv bundles the collaborators the handlers need.
type testEnv struct {
	store    *roster.Store
	repo     *mock.MockRosterRepository
	storage  *mock.MockAttendanceStorage
	ledger   *ledger.Ledger
	pipeline *pipeline.Pipeline
	frames   *render.Latest
	enroller *enroll.Enroller
}

func newTestEnv(t *testing.T, faces ...extractor.Observation) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   roster.NewStore(),
		repo:    mock.NewMockRosterRepository(),
		storage: mock.NewMockAttendanceStorage(),
		frames:  render.NewLatest(),
	}

	l, err := ledger.Open(context.Background(), env.storage, ledger.Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	env.ledger = l

	ext := stubExtractor{observations: faces}
	m := matcher.New(matcher.MetricEuclidean, matcher.TieBreakFirst, matcher.DefaultThreshold, 0)
	env.pipeline = pipeline.New(stubSource{}, ext, env.store, m, l, env.frames, pipeline.Options{}, zerolog.Nop())
	env.enroller = enroll.New(stubSource{}, ext, env.store, env.repo, time.Millisecond, zerolog.Nop())
	return env
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}
