package repositories

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestPlaylistMapRoundTrip(t *testing.T) {
	m := NewPlaylistMap(filepath.Join(t.TempDir(), "playlists.csv"))

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty map, got %v", loaded)
	}

	mapping := map[string]string{
		"Peak Time":   "pl-123",
		"Warmup, Set": "pl-456", // comma in the name must survive CSV quoting
	}
	if err := m.Save(mapping); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err = m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, mapping) {
		t.Errorf("round trip mismatch: got %v, want %v", loaded, mapping)
	}
}
