package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"

	"cratesync/internal/models"
	"cratesync/internal/shared"
)

var _ LibrarySource = (*RekordboxSource)(nil)

// RekordboxSource loads a library from a rekordbox collection XML export.
type RekordboxSource struct {
	path   string
	logger *log.Logger
}

// NewRekordboxSource points at an exported collection file. The file is not
// opened until [RekordboxSource.Load].
func NewRekordboxSource(path string, logger *log.Logger) *RekordboxSource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RekordboxSource{path: path, logger: logger}
}

type xmlLibrary struct {
	Collection struct {
		Tracks []xmlTrack `xml:"TRACK"`
	} `xml:"COLLECTION"`
	Playlists struct {
		Root xmlNode `xml:"NODE"`
	} `xml:"PLAYLISTS"`
}

type xmlTrack struct {
	TrackID   string `xml:"TrackID,attr"`
	Name      string `xml:"Name,attr"`
	Artist    string `xml:"Artist,attr"`
	Album     string `xml:"Album,attr"`
	TotalTime string `xml:"TotalTime,attr"`
	Location  string `xml:"Location,attr"`
}

type xmlNode struct {
	Type   string     `xml:"Type,attr"`
	Name   string     `xml:"Name,attr"`
	Nodes  []xmlNode  `xml:"NODE"`
	Tracks []xmlEntry `xml:"TRACK"`
}

type xmlEntry struct {
	Key string `xml:"Key,attr"`
}

// Load implements [LibrarySource]. Folder nodes are walked recursively;
// playlist entries referencing unknown track ids are dropped with a warning.
func (r *RekordboxSource) Load(ctx context.Context) (*models.Library, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading library export: %w", err)
	}

	var doc xmlLibrary
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing library export: %w", err)
	}

	lib := &models.Library{
		Path:   r.path,
		Tracks: make(map[string]models.LocalTrack, len(doc.Collection.Tracks)),
	}
	for _, t := range doc.Collection.Tracks {
		if t.TrackID == "" {
			r.logger.Warn("skipping collection track with no id", "title", t.Name)
			continue
		}
		duration, _ := strconv.Atoi(t.TotalTime)
		lib.Tracks[t.TrackID] = models.LocalTrack{
			ID:       t.TrackID,
			Title:    t.Name,
			Artist:   t.Artist,
			Album:    t.Album,
			Duration: duration,
			Location: t.Location,
		}
	}

	r.walk(doc.Playlists.Root, lib)
	r.logger.Debug("library loaded", "tracks", len(lib.Tracks), "playlists", len(lib.Playlists))
	return lib, nil
}

// Node Type 0 is a folder, 1 a playlist. The root folder itself is skipped.
func (r *RekordboxSource) walk(node xmlNode, lib *models.Library) {
	if node.Type == "1" {
		pl := models.LocalPlaylist{Name: node.Name}
		for _, entry := range node.Tracks {
			if _, ok := lib.Tracks[entry.Key]; !ok {
				r.logger.Warn("playlist references unknown track", "playlist", node.Name, "track_id", entry.Key)
				continue
			}
			pl.Tracks = append(pl.Tracks, entry.Key)
		}
		lib.Playlists = append(lib.Playlists, pl)
		return
	}
	for _, child := range node.Nodes {
		r.walk(child, lib)
	}
}
