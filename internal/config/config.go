package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Storage     StorageConfig     `yaml:"storage"`
	Live        LiveConfig        `yaml:"live"`
	Web         WebConfig         `yaml:"web"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // Backend URL: postgres://, mysql://, sqlite://, csv://
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

// Backend kinds selected by the DATABASE_URL scheme.
const (
	BackendPostgres = "postgres"
	BackendMariaDB  = "mysql"
	BackendSQLite   = "sqlite"
	BackendCSV      = "csv"
)

// Backend splits the URL into the backend kind and its target. PostgreSQL
// URLs are passed through whole; for the other schemes target is what
// follows "scheme://" (a MariaDB DSN, a file path or a directory).
func (c *DatabaseConfig) Backend() (kind, target string, err error) {
	scheme, rest, ok := strings.Cut(c.URL, "://")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("%w: database url %q must look like scheme://target",
			attendance.ErrInvalidConfiguration, c.URL)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, c.URL, nil
	case "mysql", "mariadb":
		return BackendMariaDB, rest, nil
	case "sqlite", "sqlite3", "file":
		return BackendSQLite, rest, nil
	case "csv":
		return BackendCSV, rest, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported database scheme %q", attendance.ErrInvalidConfiguration, scheme)
	}
}

type RecognitionConfig struct {
	EmbeddingURL   string        `yaml:"embedding_url"`   // Face embedding server
	ModelPath      string        `yaml:"model_path"`      // HNSW model artifact built by `enroll`
	MatchThreshold float64       `yaml:"match_threshold"` // Max distance accepted as a match
	Timeout        time.Duration `yaml:"timeout"`         // Per-prediction deadline
}

type AttendanceConfig struct {
	Start    string        `yaml:"start"` // HH:MM
	End      string        `yaml:"end"`   // HH:MM
	Debounce time.Duration `yaml:"debounce"`
	Timezone string        `yaml:"timezone"` // IANA name or "Local"
}

// Window parses the configured attendance window.
func (c *AttendanceConfig) Window() (attendance.TimeWindow, error) {
	return attendance.ParseTimeWindow(c.Start, c.End)
}

// Location resolves the configured timezone. Empty and "Local" mean the host zone.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", attendance.ErrInvalidConfiguration, c.Timezone, err)
	}
	return loc, nil
}

type StorageConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"` // Face crops of accepted detections (empty disables)
	ImagesDir   string `yaml:"images_dir"`   // Enrollment images, one folder per identity
}

type LiveConfig struct {
	Interval    time.Duration `yaml:"interval"`
	SpoolDir    string        `yaml:"spool_dir"`    // Directory a camera daemon drops frames into
	SnapshotURL string        `yaml:"snapshot_url"` // IP camera still-image URL
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("5s", "10m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma separated list, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads the embedded defaults and applies environment overrides. Invalid
// numeric overrides fall back to the default; call Validate for the rest.
func Load() *Config {
	var d Config
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", d.Database.URL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Recognition: RecognitionConfig{
			EmbeddingURL:   envString("EMBEDDING_URL", d.Recognition.EmbeddingURL),
			ModelPath:      envString("MODEL_PATH", d.Recognition.ModelPath),
			MatchThreshold: envFloat("MATCH_THRESHOLD", d.Recognition.MatchThreshold),
			Timeout:        envDuration("RECOGNIZER_TIMEOUT", d.Recognition.Timeout),
		},
		Attendance: AttendanceConfig{
			Start:    envString("ATTENDANCE_START", d.Attendance.Start),
			End:      envString("ATTENDANCE_END", d.Attendance.End),
			Debounce: envDuration("ATTENDANCE_DEBOUNCE", d.Attendance.Debounce),
			Timezone: envString("ATTENDANCE_TIMEZONE", d.Attendance.Timezone),
		},
		Storage: StorageConfig{
			SnapshotDir: envString("SNAPSHOT_DIR", d.Storage.SnapshotDir),
			ImagesDir:   envString("IMAGES_DIR", d.Storage.ImagesDir),
		},
		Live: LiveConfig{
			Interval:    envDuration("LIVE_INTERVAL", d.Live.Interval),
			SpoolDir:    envString("LIVE_SPOOL_DIR", d.Live.SpoolDir),
			SnapshotURL: envString("LIVE_SNAPSHOT_URL", d.Live.SnapshotURL),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
	}
}

// Validate checks values that cannot be repaired by falling back to a default.
// All failures wrap attendance.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is empty"))
	} else if _, _, err := c.Database.Backend(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Attendance.Window(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Attendance.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Attendance.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce %s is negative", c.Attendance.Debounce))
	}
	if c.Recognition.MatchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("match threshold %v must be positive", c.Recognition.MatchThreshold))
	}
	if c.Recognition.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("recognizer timeout %s must be positive", c.Recognition.Timeout))
	}
	if c.Live.Interval <= 0 {
		errs = append(errs, fmt.Errorf("live interval %s must be positive", c.Live.Interval))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", attendance.ErrInvalidConfiguration, errors.Join(errs...))
}
