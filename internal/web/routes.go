package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/web/handlers"
)

// requestTimeout bounds non-streaming requests. The recognizer has its own,
// shorter timeout.
const requestTimeout = time.Minute

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Pipeline, s.deps.Window, constants.MaxImageSize)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Pipeline.Roster())
	liveHandler := handlers.NewLiveHandler(s.deps.Window, s.deps.Pipeline.Events())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Event stream, no timeout
		r.Get("/live/events", liveHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Recognition and attendance
			r.Post("/predict", attendanceHandler.Predict)
			r.Post("/attendance/update", attendanceHandler.UpdateAttendance)
			r.Post("/recognize-and-update", attendanceHandler.RecognizeAndUpdate)

			// Roster
			r.Get("/identities", identitiesHandler.List)
			r.Get("/identities/{id}", identitiesHandler.Get)
			r.Get("/students", identitiesHandler.List)

			// Live loop window
			r.Get("/live/window", liveHandler.GetWindow)
			r.Put("/live/window", liveHandler.SetWindow)

			// Model
			if s.deps.Model != nil {
				modelHandler := handlers.NewModelHandler(s.deps.Model)
				r.Get("/model", modelHandler.Status)
				r.Post("/model/reload", modelHandler.Reload)
			}
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
