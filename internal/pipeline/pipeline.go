// Package pipeline composes the match evaluator, the attendance gate, the
// roster store and the ledger into one decision per detection.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

// Outcome is the terminal state of one detection.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeNoMatch  Outcome = "no_match"
	OutcomeRejected Outcome = "rejected"
)

// Result is the decision for one detection. Identity is a snapshot taken at
// decision time; for accepted results it already includes the new event.
type Result struct {
	Outcome   Outcome                `json:"outcome"`
	Reason    attendance.Decision    `json:"reason,omitempty"`
	Identity  *attendance.Identity   `json:"identity,omitempty"`
	Match     attendance.MatchResult `json:"match"`
	Timestamp time.Time              `json:"timestamp"`
	Snapshot  string                 `json:"snapshot,omitempty"`
}

// Accepted reports whether the detection produced a new attendance event.
func (r Result) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	Snapshots *recognition.SnapshotWriter // nil disables face crops
	Events    *Broadcaster                // nil disables publishing
	Clock     func() time.Time            // defaults to time.Now
	Location  *time.Location              // zone for time-of-day checks, defaults to time.Local
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	evaluator *recognition.Evaluator
	roster    *roster.Store
	ledger    database.LedgerWriter
	gate      *attendance.Gate

	snapshots *recognition.SnapshotWriter
	events    *Broadcaster
	clock     func() time.Time
	loc       *time.Location
}

// New creates a pipeline over a loaded roster store.
func New(evaluator *recognition.Evaluator, store *roster.Store, ledger database.LedgerWriter,
	gate *attendance.Gate, opts Options) *Pipeline {
	p := &Pipeline{
		evaluator: evaluator,
		roster:    store,
		ledger:    ledger,
		gate:      gate,
		snapshots: opts.Snapshots,
		events:    opts.Events,
		clock:     opts.Clock,
		loc:       opts.Location,
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	return p
}

// Events returns the broadcaster, or nil.
func (p *Pipeline) Events() *Broadcaster {
	return p.events
}

// Roster returns the roster store.
func (p *Pipeline) Roster() *roster.Store {
	return p.roster
}

// now is the decision time. Persisted timestamps have second resolution, so
// the in-memory state uses the same.
func (p *Pipeline) now() time.Time {
	return p.clock().In(p.loc).Truncate(time.Second)
}

// Match runs only the evaluator and returns the identity snapshot when accepted.
func (p *Pipeline) Match(ctx context.Context, sample *recognition.Sample) (attendance.MatchResult, *attendance.Identity, error) {
	match, err := p.evaluator.Evaluate(ctx, sample, p.roster)
	if err != nil {
		return match, nil, err
	}
	if !match.Accepted {
		return match, nil, nil
	}
	ident, ok := p.roster.Get(match.CandidateID)
	if !ok {
		match.Accepted = false
		return match, nil, nil
	}
	return match, &ident, nil
}

// ProcessDetection evaluates sample and, on a match, runs the attendance gate
// and records the event. A nil sample means the detector found no usable face.
// source names the caller ("live", "api") in published events.
func (p *Pipeline) ProcessDetection(ctx context.Context, sample *recognition.Sample, window attendance.TimeWindow,
	source string) (Result, error) {
	if err := window.Validate(); err != nil {
		return Result{}, err
	}

	match, err := p.evaluator.Evaluate(ctx, sample, p.roster)
	if err != nil {
		p.publishError(source, err)
		return Result{}, err
	}
	if !match.Accepted {
		return Result{Outcome: OutcomeNoMatch, Match: match, Timestamp: p.now()}, nil
	}

	res, err := p.record(ctx, match.CandidateID, window, match, sample)
	if err != nil {
		p.publishError(source, err)
		return res, err
	}
	p.publish(source, res)
	return res, nil
}

// RecordIdentity runs the gate for an already identified person.
func (p *Pipeline) RecordIdentity(ctx context.Context, id string, window attendance.TimeWindow, source string) (Result, error) {
	if err := window.Validate(); err != nil {
		return Result{}, err
	}
	if !p.roster.Has(id) {
		return Result{}, fmt.Errorf("%w: %s", attendance.ErrUnknownIdentity, id)
	}

	res, err := p.record(ctx, id, window, attendance.MatchResult{CandidateID: id, Accepted: true}, nil)
	if err != nil {
		p.publishError(source, err)
		return res, err
	}
	p.publish(source, res)
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, id string, window attendance.TimeWindow,
	match attendance.MatchResult, sample *recognition.Sample) (Result, error) {
	now := p.now()
	res := Result{Match: match, Timestamp: now}

	ident, ok := p.roster.Get(id)
	if !ok {
		return res, fmt.Errorf("%w: %s", attendance.ErrUnknownIdentity, id)
	}

	if decision := p.gate.Decide(ident.State(), now, window); decision != attendance.DecisionAccept {
		res.Outcome = OutcomeRejected
		res.Reason = decision
		res.Identity = &ident
		return res, nil
	}

	updated, applied, err := p.roster.RecordAttendance(ctx, id, now, p.gate.Debounce(), p.ledger)
	res.Identity = &updated
	if err != nil {
		return res, err
	}
	if !applied {
		res.Outcome = OutcomeRejected
		res.Reason = attendance.DecisionRejectDebounced
		return res, nil
	}

	// The ledger already holds the event; the identity's row must also land
	// before the caller is told the event was accepted.
	if err := p.roster.PersistIdentity(ctx, id); err != nil {
		return res, err
	}

	res.Outcome = OutcomeAccepted
	res.Snapshot = p.saveSnapshot(id, sample, match.BBox, now)
	return res, nil
}

// saveSnapshot is best effort; failures are logged and never change the decision.
func (p *Pipeline) saveSnapshot(id string, sample *recognition.Sample, bbox []float64, ts time.Time) string {
	if p.snapshots == nil || sample == nil || sample.Image == nil || len(bbox) != 4 {
		return ""
	}
	path, err := p.snapshots.Save(id, sample.Image, bbox, ts)
	if err != nil {
		log.Printf("Warning: failed to save face snapshot for %s: %v", id, err)
		return ""
	}
	return path
}

func (p *Pipeline) publish(source string, res Result) {
	if p.events == nil {
		return
	}
	p.events.SendEvent(Event{Type: "decision", Source: source, Result: &res})
}

func (p *Pipeline) publishError(source string, err error) {
	if p.events == nil {
		return
	}
	p.events.SendEvent(Event{Type: "error", Source: source, Error: err.Error()})
}
