package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
)

// ErrNoFrame is returned by a FrameSource when no new frame is available yet.
var ErrNoFrame = errors.New("no frame available")

// FrameSource yields encoded camera frames.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
	Name() string
}

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// DirSource consumes frames dropped into a spool directory by a camera daemon.
// The oldest frame is returned first and removed once read. Dotfiles and
// files with other extensions are ignored so writers can use temp names.
type DirSource struct {
	dir string
}

// NewDirSource creates the spool directory if needed.
func NewDirSource(dir string) (*DirSource, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &DirSource{dir: dir}, nil
}

func (s *DirSource) Name() string {
	return "spool:" + s.dir
}

type spooled struct {
	path    string
	modTime time.Time
}

func (s *DirSource) Next(ctx context.Context) ([]byte, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool directory: %w", err)
	}

	var frames []spooled
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !frameExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		frames = append(frames, spooled{path: filepath.Join(s.dir, name), modTime: info.ModTime()})
	}
	if len(frames) == 0 {
		return nil, ErrNoFrame
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].modTime.Equal(frames[j].modTime) {
			return frames[i].path < frames[j].path
		}
		return frames[i].modTime.Before(frames[j].modTime)
	})

	oldest := frames[0].path
	data, err := os.ReadFile(oldest) //nolint:gosec // path is inside the configured spool dir
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", filepath.Base(oldest), err)
	}
	if err := os.Remove(oldest); err != nil {
		return nil, fmt.Errorf("removing frame %s: %w", filepath.Base(oldest), err)
	}
	return data, nil
}

// URLSource fetches a still image from an IP camera snapshot endpoint.
type URLSource struct {
	url        string
	httpClient *http.Client
}

// NewURLSource creates a source for a camera snapshot URL.
func NewURLSource(url string, timeout time.Duration) *URLSource {
	return &URLSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *URLSource) Name() string {
	return "camera"
}

func (s *URLSource) Next(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, ErrNoFrame
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	return data, nil
}
