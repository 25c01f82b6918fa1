// Package live runs the camera polling loop that feeds frames into the
// decision pipeline.
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
)

// Detector is the part of the pipeline the loop drives.
type Detector interface {
	ProcessDetection(ctx context.Context, sample *recognition.Sample, window attendance.TimeWindow,
		source string) (pipeline.Result, error)
}

// Poller pulls one frame per tick and runs it through the detector.
// The attendance window can be changed while the loop runs.
type Poller struct {
	source   FrameSource
	detector Detector
	interval time.Duration
	maxSize  int

	mu     sync.RWMutex
	window attendance.TimeWindow

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller but does not start it.
func NewPoller(source FrameSource, detector Detector, window attendance.TimeWindow,
	interval time.Duration, maxSize int) (*Poller, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: poll interval %s must be positive", attendance.ErrInvalidConfiguration, interval)
	}
	return &Poller{
		source:   source,
		detector: detector,
		interval: interval,
		maxSize:  maxSize,
		window:   window,
		done:     make(chan struct{}),
	}, nil
}

// Window returns the window currently applied to frames.
func (p *Poller) Window() attendance.TimeWindow {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.window
}

// SetWindow replaces the window. Invalid windows are rejected and the old one kept.
func (p *Poller) SetWindow(w attendance.TimeWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.window = w
	p.mu.Unlock()
	log.Printf("Live window set to %s", w)
	return nil
}

// Start begins the background loop. It exits when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	log.Printf("Live loop started (source=%s, interval=%s, window=%s)", p.source.Name(), p.interval, p.Window())
}

// Stop signals the loop to exit and waits for the in-flight frame to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes at most one frame. It reports whether a frame was consumed.
func (p *Poller) Tick(ctx context.Context) bool {
	data, err := p.source.Next(ctx)
	if errors.Is(err, ErrNoFrame) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Live: frame source error: %v", err)
		}
		return false
	}

	// An undecodable frame still goes through the pipeline as "no usable face".
	sample, err := recognition.NewSample(data, p.maxSize)
	if err != nil {
		sample = nil
	}

	res, err := p.detector.ProcessDetection(ctx, sample, p.Window(), "live")
	if err != nil {
		log.Printf("Live: detection failed: %v", err)
		return true
	}

	switch res.Outcome {
	case pipeline.OutcomeAccepted:
		log.Printf("Live: attendance recorded for %s (%s), distance %.2f, total %d",
			res.Identity.ID, res.Identity.Name, res.Match.Distance, res.Identity.TotalAttendance)
	case pipeline.OutcomeRejected:
		log.Printf("Live: %s rejected (%s)", res.Identity.ID, res.Reason)
	}
	return true
}
