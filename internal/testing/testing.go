// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"cratesync/internal/matcher"
	"cratesync/internal/models"
	"cratesync/internal/services"
)

// MockLibrarySource is a test double for [services.LibrarySource].
type MockLibrarySource struct {
	Library *models.Library
	Err     error
}

func (m *MockLibrarySource) Load(ctx context.Context) (*models.Library, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Library != nil {
		return m.Library, nil
	}
	return &models.Library{Tracks: map[string]models.LocalTrack{}}, nil
}

// MockSearchService is a test double for [services.SearchService].
type MockSearchService struct {
	Results map[string][]models.RemoteCandidate // keyed by title
	Err     error
}

func (m *MockSearchService) Search(ctx context.Context, title, artist string) ([]models.RemoteCandidate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results[title], nil
}

// MockPlaylistService is a test double for [services.PlaylistService].
type MockPlaylistService struct {
	States map[string]*models.RemotePlaylistState
	Err    error
}

func (m *MockPlaylistService) Read(ctx context.Context, id string) (*models.RemotePlaylistState, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.States[id], nil
}

func (m *MockPlaylistService) Create(ctx context.Context, name string, public bool) (string, error) {
	return "mock-" + name, m.Err
}

func (m *MockPlaylistService) Apply(ctx context.Context, id string, script models.EditScript) error {
	return m.Err
}

func (m *MockPlaylistService) Delete(ctx context.Context, id string) error {
	return m.Err
}

func (m *MockPlaylistService) List(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range m.States {
		ids = append(ids, id)
	}
	return ids, m.Err
}

// MockResolver is a test double for [services.Resolver] that always answers
// with a fixed resolution.
type MockResolver struct {
	Result services.Resolution
	Err    error
	Calls  int
}

func (m *MockResolver) Resolve(ctx context.Context, track models.LocalTrack, ranked []matcher.Scored) (services.Resolution, error) {
	m.Calls++
	return m.Result, m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
