package recognition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// EnrollmentImage is one image file found for an identity.
type EnrollmentImage struct {
	IdentityID string
	Path       string
}

// ScanEnrollmentImages lists <root>/<identity_id>/*.{jpg,jpeg,png} sorted by
// identity and path. Dot directories are ignored.
func ScanEnrollmentImages(root string) ([]EnrollmentImage, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read images dir: %w", err)
	}

	var images []EnrollmentImage
	for _, dir := range entries {
		if !dir.IsDir() || strings.HasPrefix(dir.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(f.Name())) {
			case ".jpg", ".jpeg", ".png":
				images = append(images, EnrollmentImage{
					IdentityID: dir.Name(),
					Path:       filepath.Join(root, dir.Name(), f.Name()),
				})
			}
		}
	}
	sort.Slice(images, func(i, j int) bool {
		if images[i].IdentityID != images[j].IdentityID {
			return images[i].IdentityID < images[j].IdentityID
		}
		return images[i].Path < images[j].Path
	})
	return images, nil
}

// EnrollResult is the outcome for one image.
type EnrollResult struct {
	Image      EnrollmentImage
	Enrollment *database.StoredEnrollment // nil when no face was found
	Err        error
}

// Enroller computes one normalized face embedding per enrollment image.
type Enroller struct {
	faces       FaceEmbedder
	concurrency int
	maxSize     int
}

// NewEnroller creates an enroller using up to concurrency parallel requests.
func NewEnroller(faces FaceEmbedder, concurrency, maxSize int) *Enroller {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enroller{faces: faces, concurrency: concurrency, maxSize: maxSize}
}

// Embed processes all images and returns one result per image in input
// order. progress, if set, is called once per finished image from worker
// goroutines.
func (e *Enroller) Embed(ctx context.Context, images []EnrollmentImage, progress func()) []EnrollResult {
	results := make([]EnrollResult, len(images))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range e.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.embedOne(ctx, images[i])
				if progress != nil {
					progress()
				}
			}
		}()
	}

	for i := range images {
		if ctx.Err() != nil {
			results[i] = EnrollResult{Image: images[i], Err: ctx.Err()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (e *Enroller) embedOne(ctx context.Context, img EnrollmentImage) EnrollResult {
	res := EnrollResult{Image: img}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		res.Err = fmt.Errorf("read image: %w", err)
		return res
	}
	sample, err := NewSample(data, e.maxSize)
	if err != nil {
		res.Err = err
		return res
	}
	resp, err := e.faces.ComputeFaceEmbeddings(ctx, sample.Data)
	if err != nil {
		res.Err = fmt.Errorf("compute face embeddings: %w", err)
		return res
	}
	face, ok := resp.BestFace()
	if !ok {
		return res
	}

	res.Enrollment = &database.StoredEnrollment{
		IdentityID: img.IdentityID,
		SourcePath: img.Path,
		Embedding:  database.Normalize(face.Embedding),
		DetScore:   face.DetScore,
		Model:      resp.Model,
	}
	return res
}
