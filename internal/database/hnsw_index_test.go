package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func testEnrollments() []StoredEnrollment {
	return []StoredEnrollment{
		{ID: 1, IdentityID: "100000", Embedding: []float32{1, 0, 0, 0}},
		{ID: 2, IdentityID: "100000", Embedding: []float32{0.9, 0.1, 0, 0}},
		{ID: 3, IdentityID: "100001", Embedding: []float32{0, 1, 0, 0}},
		{ID: 4, IdentityID: "100002", Embedding: []float32{0, 0, 1, 0}},
		{ID: 5, IdentityID: "100003"}, // no embedding, skipped
	}
}

func TestHNSWIndex_SearchBeforeBuild(t *testing.T) {
	idx := NewHNSWIndex()
	if !idx.IsEmpty() {
		t.Error("expected new index to be empty")
	}
	if _, _, err := idx.Search([]float32{1, 0, 0, 0}, 1); !errors.Is(err, ErrIndexNotLoaded) {
		t.Errorf("expected ErrIndexNotLoaded, got %v", err)
	}
}

func TestHNSWIndex_BuildAndSearch(t *testing.T) {
	idx := NewHNSWIndex()
	idx.BuildFromEnrollments(testEnrollments())

	if idx.Count() != 4 {
		t.Errorf("expected 4 indexed enrollments, got %d", idx.Count())
	}
	if idx.IdentityCount() != 3 {
		t.Errorf("expected 3 identities, got %d", idx.IdentityCount())
	}

	ids, distances, err := idx.Search([]float32{0, 0.95, 0.05, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("expected nearest enrollment 3, got %v", ids)
	}
	if distances[0] > 0.01 {
		t.Errorf("expected small distance, got %f", distances[0])
	}

	e := idx.GetEnrollment(3)
	if e == nil || e.IdentityID != "100001" {
		t.Errorf("expected enrollment for identity 100001, got %+v", e)
	}
}

func TestHNSWIndex_BuildEmpty(t *testing.T) {
	idx := NewHNSWIndex()
	idx.BuildFromEnrollments(testEnrollments())
	idx.BuildFromEnrollments(nil)
	if !idx.IsEmpty() || idx.Count() != 0 {
		t.Error("expected rebuild with no enrollments to clear the index")
	}
}

func TestHNSWIndex_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hnsw")

	idx := NewHNSWIndex()
	idx.BuildFromEnrollments(testEnrollments())
	if err := idx.Save(path, HNSWIndexMetadata{IdentityCount: idx.IdentityCount(), Model: "buffalo_l"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	meta, err := LoadHNSWMetadata(path)
	if err != nil {
		t.Fatalf("LoadHNSWMetadata: %v", err)
	}
	if meta.EnrollmentCount != 4 || meta.IdentityCount != 3 || meta.Version != hnswMetadataVersion {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	loaded := NewHNSWIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 4 {
		t.Errorf("expected 4 enrollments after load, got %d", loaded.Count())
	}

	ids, _, err := loaded.Search([]float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one result, got %v", ids)
	}
	if got := loaded.GetEnrollment(ids[0]).IdentityID; got != "100000" {
		t.Errorf("expected identity 100000, got %s", got)
	}
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	enrollments := append(testEnrollments(), StoredEnrollment{ID: 6, IdentityID: "100004", Embedding: []float32{1, 0}})

	idx := NewHNSWIndex()
	skipped := idx.BuildFromEnrollments(enrollments)
	if len(skipped) != 2 {
		t.Fatalf("expected the empty and the 2-dim enrollment skipped, got %d", len(skipped))
	}
	if idx.Dims() != 4 {
		t.Errorf("expected 4 dims, got %d", idx.Dims())
	}
	if idx.GetEnrollment(6) != nil {
		t.Error("expected mismatched enrollment to stay out of the index")
	}

	if _, _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.hnsw")
	if err := idx.Save(path, HNSWIndexMetadata{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := NewHNSWIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dims() != 4 {
		t.Errorf("expected dims restored from metadata, got %d", loaded.Dims())
	}
	if _, _, err := loaded.Search(make([]float32, 8), 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch after load, got %v", err)
	}
}

func TestHNSWIndex_SaveEmptyRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hnsw")
	if err := NewHNSWIndex().Save(path, HNSWIndexMetadata{}); err == nil {
		t.Error("expected error saving an empty index")
	}
}

func TestHNSWIndex_LoadMissing(t *testing.T) {
	if err := NewHNSWIndex().Load(filepath.Join(t.TempDir(), "missing.hnsw")); err == nil {
		t.Error("expected error loading a missing index")
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"length mismatch", []float32{1, 0}, []float32{1}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("CosineDistance = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	n := Normalize([]float32{3, 4})
	if n[0] < 0.5999 || n[0] > 0.6001 || n[1] < 0.7999 || n[1] > 0.8001 {
		t.Errorf("unexpected normalized vector %v", n)
	}
	z := Normalize([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Errorf("expected zero vector unchanged, got %v", z)
	}
}
