package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// Roster is the membership check the evaluator needs.
type Roster interface {
	Has(id string) bool
}

// Evaluator thresholds recognizer output. It has no side effects.
type Evaluator struct {
	recognizer Recognizer
	threshold  float64
	timeout    time.Duration
}

// NewEvaluator creates an evaluator. A zero timeout means no deadline beyond ctx.
func NewEvaluator(recognizer Recognizer, threshold float64, timeout time.Duration) (*Evaluator, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: match threshold %v must be positive", attendance.ErrInvalidConfiguration, threshold)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: recognizer timeout %s is negative", attendance.ErrInvalidConfiguration, timeout)
	}
	return &Evaluator{recognizer: recognizer, threshold: threshold, timeout: timeout}, nil
}

// Threshold returns the distance threshold.
func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

type predictResult struct {
	pred Prediction
	err  error
}

// Evaluate runs the recognizer on sample and accepts the candidate when its
// distance is below the threshold and it is still in roster. A nil sample
// yields a non-accepted result without calling the recognizer. Recognizer
// failures and timeouts wrap attendance.ErrRecognizerUnavailable.
func (e *Evaluator) Evaluate(ctx context.Context, sample *Sample, roster Roster) (attendance.MatchResult, error) {
	if sample == nil {
		return attendance.MatchResult{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// The recognizer may ignore ctx; the buffered channel lets it finish
	// after we stop waiting. A panic here would kill the process, so it is
	// reported as a recognizer failure.
	ch := make(chan predictResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- predictResult{err: fmt.Errorf("recognizer panic: %v", r)}
			}
		}()
		pred, err := e.recognizer.Predict(ctx, sample)
		ch <- predictResult{pred: pred, err: err}
	}()

	var res predictResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		return attendance.MatchResult{}, fmt.Errorf("%w: %w", attendance.ErrRecognizerUnavailable, ctx.Err())
	}
	if res.err != nil {
		return attendance.MatchResult{}, fmt.Errorf("%w: %w", attendance.ErrRecognizerUnavailable, res.err)
	}

	pred := res.pred
	if !pred.Found() {
		return attendance.MatchResult{}, nil
	}
	return attendance.MatchResult{
		CandidateID: pred.IdentityID,
		Distance:    pred.Distance,
		Accepted:    pred.Distance < e.threshold && roster.Has(pred.IdentityID),
		BBox:        pred.BBox,
	}, nil
}
