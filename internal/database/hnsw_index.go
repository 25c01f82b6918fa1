package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// ErrIndexNotLoaded is returned by Search before any graph is built or loaded.
var ErrIndexNotLoaded = errors.New("index not initialized")

// ErrDimensionMismatch is returned by Search for a query whose length differs
// from the indexed embeddings.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	EnrollmentCount int       `json:"enrollment_count"`
	IdentityCount   int       `json:"identity_count"`
	Model           string    `json:"model,omitempty"`
	Dims            int       `json:"dims,omitempty"`
	BuildTime       time.Time `json:"build_time"`
	Version         int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph for enrolled face embedding search.
type HNSWIndex struct {
	graph        *hnsw.Graph[int64]
	savedGraph   *hnsw.SavedGraph[int64]       // set when loaded from disk
	idToEnrolled map[int64]*StoredEnrollment // Maps HNSW node ID to enrollment
	dims         int                         // 0 when unknown
	mu           sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToEnrolled: make(map[int64]*StoredEnrollment),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromEnrollments builds the index from a slice of enrollments.
// The first embedding fixes the dimension; enrollments without an embedding
// or with a different length are skipped and returned.
func (h *HNSWIndex) BuildFromEnrollments(enrollments []StoredEnrollment) (skipped []StoredEnrollment) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.savedGraph = nil
	h.dims = 0
	h.idToEnrolled = make(map[int64]*StoredEnrollment, len(enrollments))

	g := newGraph()
	for i := range enrollments {
		e := &enrollments[i]
		if len(e.Embedding) == 0 || (h.dims != 0 && len(e.Embedding) != h.dims) {
			skipped = append(skipped, *e)
			continue
		}
		h.dims = len(e.Embedding)
		g.Add(hnsw.MakeNode(e.ID, e.Embedding))
		h.idToEnrolled[e.ID] = e
	}
	if len(h.idToEnrolled) == 0 {
		h.graph = nil
		return skipped
	}
	h.graph = g
	return skipped
}

// Dims returns the embedding length of the index, or 0 when unknown.
func (h *HNSWIndex) Dims() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dims
}

// Search finds the k nearest enrollments to the query embedding.
// Returns enrollment IDs and their cosine distances, nearest first.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, ErrIndexNotLoaded
	}
	// The graph panics on a length mismatch.
	if h.dims != 0 && len(query) != h.dims {
		return nil, nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), h.dims)
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		// Nodes whose enrollment was dropped stay in the graph; filter them here.
		if _, ok := h.idToEnrolled[n.Key]; !ok {
			continue
		}
		ids = append(ids, n.Key)
		distances = append(distances, CosineDistance(query, n.Value))
	}

	return ids, distances, nil
}

// GetEnrollment returns the enrollment for a node ID, or nil.
func (h *HNSWIndex) GetEnrollment(id int64) *StoredEnrollment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToEnrolled[id]
}

// Count returns the number of indexed enrollments.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToEnrolled)
}

// IdentityCount returns the number of distinct identities in the index.
func (h *HNSWIndex) IdentityCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range h.idToEnrolled {
		seen[e.IdentityID] = struct{}{}
	}
	return len(seen)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SaveEnrollmentMetadata saves enrollment metadata to a .identities file for fast loading at startup.
// Embeddings are not duplicated there; the graph file carries them.
func SaveEnrollmentMetadata(path string, enrollments []StoredEnrollment) error {
	stripped := make([]StoredEnrollment, len(enrollments))
	for i, e := range enrollments {
		e.Embedding = nil
		stripped[i] = e
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stripped); err != nil {
		return fmt.Errorf("failed to encode enrollments: %w", err)
	}

	if err := os.WriteFile(path+".identities", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write identities file: %w", err)
	}
	return nil
}

// LoadEnrollmentMetadata loads enrollment metadata from a .identities file.
func LoadEnrollmentMetadata(path string) ([]StoredEnrollment, error) {
	data, err := os.ReadFile(path + ".identities") //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read identities file: %w", err)
	}

	var enrollments []StoredEnrollment
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&enrollments); err != nil {
		return nil, fmt.Errorf("failed to decode identities: %w", err)
	}
	return enrollments, nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Save persists the graph, the .meta file and the .identities file.
// The graph is written to a temporary file first and renamed into place so a
// concurrent Load never sees a half-written artifact.
func (h *HNSWIndex) Save(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return errors.New("no enrollments indexed, refusing to write an empty model")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	enrollments := make([]StoredEnrollment, 0, len(h.idToEnrolled))
	for _, e := range h.idToEnrolled {
		enrollments = append(enrollments, *e)
	}
	if err := SaveEnrollmentMetadata(path, enrollments); err != nil {
		return err
	}

	metadata.Version = hnswMetadataVersion
	metadata.EnrollmentCount = len(enrollments)
	metadata.Dims = h.dims
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move HNSW index into place: %w", err)
	}
	return nil
}

// Load replaces the index contents with the graph and enrollment metadata at path.
func (h *HNSWIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("HNSW index file not found: %w", err)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	enrollments, err := LoadEnrollmentMetadata(path)
	if err != nil {
		return err
	}

	// Artifacts written before dims were recorded load with dims unknown.
	var dims int
	if meta, err := LoadHNSWMetadata(path); err == nil {
		dims = meta.Dims
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.savedGraph = saved
	h.dims = dims
	h.idToEnrolled = make(map[int64]*StoredEnrollment, len(enrollments))
	for i := range enrollments {
		h.idToEnrolled[enrollments[i].ID] = &enrollments[i]
	}
	return nil
}
