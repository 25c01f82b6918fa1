package database

// EnrollmentEmbeddingDim is the fixed dimension of face embeddings (buffalo_l/ResNet100).
const EnrollmentEmbeddingDim = 512

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchK is how many neighbours a recognition query asks for.
	// Several samples of the same identity usually come back together.
	HNSWSearchK = 5
)
