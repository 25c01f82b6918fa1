package recognition

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"golang.org/x/image/draw"
)

// SnapshotWriter saves face crops of accepted detections as PNG files.
type SnapshotWriter struct {
	dir    string
	margin int
}

// NewSnapshotWriter creates the directory if needed.
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotWriter{dir: dir, margin: constants.SnapshotMargin}, nil
}

// CropRect expands bbox by margin on every side and clamps it to bounds.
// It returns an empty rectangle for a malformed box.
func CropRect(bounds image.Rectangle, bbox []float64, margin int) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(bbox[0])-margin, int(bbox[1])-margin,
		int(bbox[2])+margin, int(bbox[3])+margin,
	)
	return r.Intersect(bounds)
}

// Save writes the crop to <identity>-YYYYmmddHHMMSS.png and returns its path.
func (w *SnapshotWriter) Save(identityID string, img image.Image, bbox []float64, ts time.Time) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no image for snapshot of %s", identityID)
	}
	rect := CropRect(img.Bounds(), bbox, w.margin)
	if rect.Empty() {
		return "", fmt.Errorf("face box %v is outside the image", bbox)
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(crop, image.Point{}, img, rect, draw.Src, nil)

	name := fmt.Sprintf("%s-%s.png", filepath.Base(identityID), ts.Format(constants.SnapshotTimeLayout))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path) //nolint:gosec // dir is from trusted config, name is sanitized
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, crop); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}
