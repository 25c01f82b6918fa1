package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/mock"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
	"github.com/MMOSHII/Face-Attendance-System/internal/web/handlers"
)

type stubModel struct{}

func (stubModel) Load() error       { return nil }
func (stubModel) Loaded() bool      { return true }
func (stubModel) Stats() (int, int) { return 3, 1 }

func newTestServer(t *testing.T, model handlers.ModelLoader) *Server {
	t.Helper()
	rec := recognition.RecognizerFunc(func(ctx context.Context, s *recognition.Sample) (recognition.Prediction, error) {
		return recognition.Prediction{}, nil
	})
	evaluator, err := recognition.NewEvaluator(rec, 60, time.Second)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	gate, err := attendance.NewGate(0)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	store := roster.New(mock.NewMockRosterRepository(attendance.Identity{ID: "100000", Name: "Siti Aisyah"}))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := pipeline.New(evaluator, store, mock.NewMockLedger(), gate, pipeline.Options{Events: pipeline.NewBroadcaster()})

	window, _ := attendance.ParseTimeWindow("09:00", "23:59")
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"https://kiosk.example"}}}
	return NewServer(cfg, Deps{Pipeline: p, Window: handlers.NewWindowState(window), Model: model})
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, stubModel{})

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/api/v1/identities", http.StatusOK, `"count":1`},
		{http.MethodGet, "/api/v1/students", http.StatusOK, `Siti Aisyah`},
		{http.MethodGet, "/api/v1/identities/100000", http.StatusOK, `"id":"100000"`},
		{http.MethodGet, "/api/v1/identities/404", http.StatusNotFound, `identity not found`},
		{http.MethodGet, "/api/v1/live/window", http.StatusOK, `"start":"09:00"`},
		{http.MethodGet, "/api/v1/model", http.StatusOK, `"enrollments":3`},
		{http.MethodPost, "/api/v1/model/reload", http.StatusOK, `"loaded":true`},
		{http.MethodPost, "/api/v1/attendance/update?identity_id=404", http.StatusNotFound, `unknown identity`},
		{http.MethodGet, "/nope", http.StatusNotFound, `not found`},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			if !strings.Contains(recorder.Body.String(), tc.wantBody) {
				t.Errorf("expected body to contain %q, got %s", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRoutes_ModelHiddenWithoutLoader(t *testing.T) {
	s := newTestServer(t, nil)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/model/reload", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}
}

func TestRoutes_CORSFromConfig(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://kiosk.example")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://kiosk.example" {
		t.Errorf("expected configured origin to be allowed, got %q", got)
	}
}
