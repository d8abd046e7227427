// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// FormatDuration renders a track duration in seconds as M:SS.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// VisibilityString maps the public flag of a playlist to a display word.
func VisibilityString(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

// DataDir returns the directory holding all persisted state (match table,
// search cache, playlist id map), creating it if necessary.
//
// Defaults to ~/.cratesync; override with the CRATESYNC_DATA_DIR environment
// variable (used heavily by tests).
func DataDir() (string, error) {
	if dir := os.Getenv("CRATESYNC_DATA_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	dir := filepath.Join(home, ".cratesync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// sanitizePath collapses a filesystem path into a flat token usable in a filename,
// so state files for different library exports never collide.
func sanitizePath(p string) string {
	out := make([]rune, 0, len(p))
	for _, r := range p {
		switch r {
		case '/', '\\', ':', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// MatchTablePath returns the CSV match table path for the given library export.
func MatchTablePath(libraryPath string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("matches_%s.csv", sanitizePath(libraryPath))), nil
}

// SearchCachePath returns the sqlite search cache path for the given library export.
func SearchCachePath(libraryPath string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("searches_%s.db", sanitizePath(libraryPath))), nil
}

// PlaylistMapPath returns the CSV playlist-name → remote-playlist-id map path.
func PlaylistMapPath(libraryPath string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("playlists_%s.csv", sanitizePath(libraryPath))), nil
}
