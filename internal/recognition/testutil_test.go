package recognition

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// pngImage returns a w x h PNG filled with a gradient.
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// unitVector returns a database.EnrollmentEmbeddingDim-sized vector with a 1 at position i.
func unitVector(i int) []float32 {
	v := make([]float32, database.EnrollmentEmbeddingDim)
	v[i] = 1
	return v
}

// fakeEmbedder returns a fixed response for every call.
type fakeEmbedder struct {
	resp  *FaceResponse
	err   error
	calls int
}

func (f *fakeEmbedder) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type rosterSet map[string]bool

func (r rosterSet) Has(id string) bool { return r[id] }
