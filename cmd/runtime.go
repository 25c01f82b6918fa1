package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/MMOSHII/Face-Attendance-System/internal/live"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

// appRuntime is the wired decision pipeline shared by serve, watch and recognize.
type appRuntime struct {
	cfg      *config.Config
	loc      *time.Location
	window   attendance.TimeWindow
	backend  *database.Backend
	roster   *roster.Store
	model    *recognition.IndexRecognizer
	pipeline *pipeline.Pipeline
}

// newRuntime validates cfg, opens storage, loads the roster and the
// recognizer model. A missing model is reported but not fatal: predictions
// fail with "recognizer unavailable" until one is enrolled and reloaded.
func newRuntime(ctx context.Context, cfg *config.Config) (*appRuntime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Attendance.Window()
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Using %s backend\n", backend.Name)

	store := roster.New(backend.Roster)
	if err := store.Load(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	fmt.Printf("Roster loaded: %d identities\n", store.Len())

	model := recognition.NewIndexRecognizer(recognition.NewEmbeddingClient(cfg.Recognition.EmbeddingURL),
		cfg.Recognition.ModelPath)
	if err := model.Load(); err != nil {
		fmt.Printf("Warning: recognition model not loaded: %v\n", err)
		fmt.Println("Run 'face-attendance enroll' to build it")
	} else {
		enrollments, identities := model.Stats()
		fmt.Printf("Recognition model ready: %d faces of %d identities\n", enrollments, identities)
	}

	evaluator, err := recognition.NewEvaluator(model, cfg.Recognition.MatchThreshold, cfg.Recognition.Timeout)
	if err != nil {
		backend.Close()
		return nil, err
	}
	gate, err := attendance.NewGate(cfg.Attendance.Debounce)
	if err != nil {
		backend.Close()
		return nil, err
	}

	var snapshots *recognition.SnapshotWriter
	if cfg.Storage.SnapshotDir != "" {
		snapshots, err = recognition.NewSnapshotWriter(cfg.Storage.SnapshotDir)
		if err != nil {
			fmt.Printf("Warning: face snapshots disabled: %v\n", err)
			snapshots = nil
		}
	}

	p := pipeline.New(evaluator, store, backend.Ledger, gate, pipeline.Options{
		Snapshots: snapshots,
		Events:    pipeline.NewBroadcaster(),
		Location:  loc,
	})

	return &appRuntime{
		cfg:      cfg,
		loc:      loc,
		window:   window,
		backend:  backend,
		roster:   store,
		model:    model,
		pipeline: p,
	}, nil
}

// frameSource returns the configured camera source, or nil when none is set.
// A snapshot URL takes precedence over a spool directory.
func (rt *appRuntime) frameSource() (live.FrameSource, error) {
	switch {
	case rt.cfg.Live.SnapshotURL != "":
		return live.NewURLSource(rt.cfg.Live.SnapshotURL, rt.cfg.Recognition.Timeout), nil
	case rt.cfg.Live.SpoolDir != "":
		return live.NewDirSource(rt.cfg.Live.SpoolDir)
	}
	return nil, nil
}

// newPoller builds the live loop, or returns nil when no camera is configured.
func (rt *appRuntime) newPoller() (*live.Poller, error) {
	source, err := rt.frameSource()
	if err != nil || source == nil {
		return nil, err
	}
	return live.NewPoller(source, rt.pipeline, rt.window, rt.cfg.Live.Interval, constants.MaxImageSize)
}

// Close writes a final roster snapshot and closes storage.
func (rt *appRuntime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.roster.Persist(ctx); err != nil {
		fmt.Printf("Warning: failed to persist roster: %v\n", err)
	}
	if err := rt.backend.Close(); err != nil {
		fmt.Printf("Warning: failed to close %s backend: %v\n", rt.backend.Name, err)
	}
}
