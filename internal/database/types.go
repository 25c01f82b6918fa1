package database

import (
	"time"
)

// StoredEnrollment is one enrolled face embedding belonging to a roster identity.
type StoredEnrollment struct {
	ID         int64
	IdentityID string
	SourcePath string // image the embedding was computed from
	Embedding  []float32
	DetScore   float64
	Model      string
	CreatedAt  time.Time
}
