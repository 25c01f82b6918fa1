package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := CORS([]string{"https://kiosk.sekolah.id/", " "})(next)

	tests := []struct {
		name      string
		origin    string
		wantAllow string
	}{
		{"whitelisted", "https://kiosk.sekolah.id", "https://kiosk.sekolah.id"},
		{"localhost with port", "http://localhost:5173", "http://localhost:5173"},
		{"localhost lookalike", "http://localhost.evil.com", ""},
		{"other", "https://evil.example", ""},
		{"no origin", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Errorf("expected Allow-Origin %q, got %q", tc.wantAllow, got)
			}
			if recorder.Code != http.StatusNoContent {
				t.Errorf("expected request to reach handler, got %d", recorder.Code)
			}
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example" {
		t.Errorf("expected wildcard to allow origin, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK || called {
		t.Errorf("expected preflight to be answered by middleware, got %d (called=%v)", recorder.Code, called)
	}
}
