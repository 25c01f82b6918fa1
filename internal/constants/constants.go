// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Recognition constants
const (
	// DefaultMatchThreshold is the maximum distance at which a prediction is
	// considered a match. Distances are reported on a 0-200 scale (cosine
	// distance multiplied by DistanceScale).
	DefaultMatchThreshold = 60.0

	// DistanceScale converts cosine distance (0..2) into recognizer distance units
	DistanceScale = 100.0

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920

	// SnapshotMargin is the number of pixels added around a face bbox when cropping snapshots
	SnapshotMargin = 200

	// SnapshotTimeLayout is the timestamp layout used in snapshot file names
	SnapshotTimeLayout = "20060102150405"
)

// Roster constants
const (
	// FirstIdentityID is assigned to the first imported identity without an ID
	FirstIdentityID = 100000
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel workers for enrollment
	DefaultConcurrency = 5
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)
