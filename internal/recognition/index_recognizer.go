package recognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// IndexRecognizer embeds the best face of a sample and returns the nearest
// enrolled identity from an HNSW index. Distances are cosine distances scaled
// by constants.DistanceScale.
type IndexRecognizer struct {
	faces     FaceEmbedder
	modelPath string

	mu    sync.RWMutex
	index *database.HNSWIndex
}

// NewIndexRecognizer creates a recognizer with no model loaded.
func NewIndexRecognizer(faces FaceEmbedder, modelPath string) *IndexRecognizer {
	return &IndexRecognizer{faces: faces, modelPath: modelPath}
}

// Load reads the model artifact from disk. The previous index keeps serving
// until the new one is fully loaded, so in-flight predictions never see a
// partial model.
func (r *IndexRecognizer) Load() error {
	if r.modelPath == "" {
		return fmt.Errorf("%w: no model path configured", ErrModelNotLoaded)
	}
	idx := database.NewHNSWIndex()
	if err := idx.Load(r.modelPath); err != nil {
		return err
	}
	r.SetIndex(idx)
	return nil
}

// SetIndex swaps in an already built index.
func (r *IndexRecognizer) SetIndex(idx *database.HNSWIndex) {
	r.mu.Lock()
	r.index = idx
	r.mu.Unlock()
}

// Loaded reports whether a non-empty index is in place.
func (r *IndexRecognizer) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index != nil && !r.index.IsEmpty()
}

// Stats returns the number of indexed enrollments and identities.
func (r *IndexRecognizer) Stats() (enrollments, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return 0, 0
	}
	return r.index.Count(), r.index.IdentityCount()
}

// Predict implements Recognizer.
func (r *IndexRecognizer) Predict(ctx context.Context, sample *Sample) (Prediction, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()
	if idx == nil || idx.IsEmpty() {
		return Prediction{}, ErrModelNotLoaded
	}

	resp, err := r.faces.ComputeFaceEmbeddings(ctx, sample.Data)
	if err != nil {
		return Prediction{}, fmt.Errorf("compute face embeddings: %w", err)
	}
	face, ok := resp.BestFace()
	if !ok {
		return Prediction{}, nil
	}

	if dims := idx.Dims(); dims != 0 && len(face.Embedding) != dims {
		return Prediction{}, fmt.Errorf("%w: embedding server returned %d dimensions, model has %d",
			database.ErrDimensionMismatch, len(face.Embedding), dims)
	}

	query := database.Normalize(face.Embedding)
	ids, distances, err := idx.Search(query, database.HNSWSearchK)
	if err != nil {
		return Prediction{}, fmt.Errorf("search index: %w", err)
	}

	best := -1
	for i := range ids {
		if best < 0 || distances[i] < distances[best] {
			best = i
		}
	}
	if best < 0 {
		return Prediction{}, nil
	}

	enrolled := idx.GetEnrollment(ids[best])
	if enrolled == nil {
		return Prediction{}, nil
	}
	return Prediction{
		IdentityID: enrolled.IdentityID,
		Distance:   distances[best] * constants.DistanceScale,
		BBox:       face.BBox,
	}, nil
}
