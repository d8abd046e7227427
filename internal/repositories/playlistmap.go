package repositories

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// PlaylistMap persists which remote playlist this tool created for each local
// playlist name. Playlists absent from the map are never touched, so manually
// created remote playlists stay out of blast radius.
type PlaylistMap struct {
	path string
}

var playlistMapHeader = []string{"Local playlist name", "Remote playlist id"}

// NewPlaylistMap creates a map persisting to path.
func NewPlaylistMap(path string) *PlaylistMap {
	return &PlaylistMap{path: path}
}

// Load reads the name → remote-id mapping. A missing file yields an empty map.
func (m *PlaylistMap) Load() (map[string]string, error) {
	f, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist map: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist map: %w", err)
	}

	out := make(map[string]string)
	for i, row := range rows {
		if i == 0 || len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		out[row[0]] = row[1]
	}
	return out, nil
}

// Save writes the mapping with the same temp-then-rename discipline as the
// match table.
func (m *PlaylistMap) Save(mapping map[string]string) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".playlists-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(playlistMapHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.Write([]string{name, mapping[name]}); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv writer error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("failed to replace playlist map: %w", err)
	}
	return nil
}
