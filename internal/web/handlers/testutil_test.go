package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/mock"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

// testEnv wires a pipeline over in-memory repositories and a scripted recognizer.
type testEnv struct {
	pipeline *pipeline.Pipeline
	roster   *roster.Store
	repo     *mock.MockRosterRepository
	ledger   *mock.MockLedger
	window   *WindowState

	mu      sync.Mutex
	pred    recognition.Prediction
	predErr error
	now     time.Time
}

func (e *testEnv) predict(p recognition.Prediction, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pred, e.predErr = p, err
}

func (e *testEnv) setClock(hour, minute int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo: mock.NewMockRosterRepository(
			attendance.Identity{ID: "100000", Name: "Siti Aisyah", Class: "XII IPA 1"},
			attendance.Identity{ID: "100001", Name: "Budi Santoso", Class: "XI IPS 2"},
		),
		ledger: mock.NewMockLedger(),
	}
	env.setClock(9, 5)

	rec := recognition.RecognizerFunc(func(ctx context.Context, s *recognition.Sample) (recognition.Prediction, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.pred, env.predErr
	})
	evaluator, err := recognition.NewEvaluator(rec, 60, time.Second)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	gate, err := attendance.NewGate(10 * time.Minute)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	env.roster = roster.New(env.repo)
	if err := env.roster.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	window, err := attendance.ParseTimeWindow("09:00", "23:59")
	if err != nil {
		t.Fatalf("ParseTimeWindow: %v", err)
	}
	env.window = NewWindowState(window)

	env.pipeline = pipeline.New(evaluator, env.roster, env.ledger, gate, pipeline.Options{
		Clock: func() time.Time {
			env.mu.Lock()
			defer env.mu.Unlock()
			return env.now
		},
		Location: time.UTC,
		Events:   pipeline.NewBroadcaster(),
	})
	return env
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// imageRequest builds a multipart request with data in the "image" field.
func imageRequest(t *testing.T, target string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
