package recognition

import (
	"context"
	"errors"
)

// ErrModelNotLoaded is returned by recognizers that have no model artifact yet.
var ErrModelNotLoaded = errors.New("recognition model not loaded")

// Prediction is the raw recognizer output for one sample. IdentityID is empty
// when no face was found or nothing is enrolled.
type Prediction struct {
	IdentityID string
	Distance   float64   // lower is more similar
	BBox       []float64 // [x1, y1, x2, y2] in sample pixels
}

// Found reports whether the recognizer produced a candidate.
func (p Prediction) Found() bool {
	return p.IdentityID != ""
}

// Recognizer maps a sample to the closest enrolled identity.
type Recognizer interface {
	Predict(ctx context.Context, sample *Sample) (Prediction, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, sample *Sample) (Prediction, error)

func (f RecognizerFunc) Predict(ctx context.Context, sample *Sample) (Prediction, error) {
	return f(ctx, sample)
}
