// Package recognition turns raw frames into identity predictions using a face
// embedding server and the enrolled HNSW index.
package recognition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnusableSample is returned when a frame cannot be decoded.
var ErrUnusableSample = errors.New("no usable sample")

// Sample is a decoded frame ready for recognition. Data is what the embedding
// server receives; Image is the same picture decoded, used for snapshot crops.
// Face boxes reported for Data are in Image coordinates.
type Sample struct {
	Data  []byte
	Image image.Image
}

// Width returns the sample width in pixels.
func (s *Sample) Width() int { return s.Image.Bounds().Dx() }

// Height returns the sample height in pixels.
func (s *Sample) Height() int { return s.Image.Bounds().Dy() }

// NewSample decodes data and scales it down to fit within maxSize. JPEG and
// PNG frames that already fit are passed through unchanged; everything else
// is re-encoded as JPEG, the embedding server only reads those two.
func NewSample(data []byte, maxSize int) (*Sample, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnusableSample)
	}
	if maxSize <= 0 {
		maxSize = constants.MaxImageSize
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableSample, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUnusableSample)
	}
	if width <= maxSize && height <= maxSize {
		if format == "jpeg" || format == "png" {
			return &Sample{Data: data, Image: img}, nil
		}
		return encodeSample(img)
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return encodeSample(resized)
}

func encodeSample(img image.Image) (*Sample, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode sample: %w", err)
	}
	return &Sample{Data: buf.Bytes(), Image: img}, nil
}
