// package models defines the data model for the library reconciliation engine
package models

import (
	"fmt"
	"time"
)

// MatchStatus describes how (or whether) a local track was mapped to a remote track.
type MatchStatus string

const (
	// StatusAuto means the scoring algorithm chose the remote track without human input.
	StatusAuto MatchStatus = "auto-matched"
	// StatusManual means a human supplied the remote track through the override column.
	StatusManual MatchStatus = "manual-matched"
	// StatusNotAvailable means a human confirmed the track has no remote equivalent.
	StatusNotAvailable MatchStatus = "not-available"
	// StatusPending means no acceptable match has been found yet.
	StatusPending MatchStatus = "pending"
	// StatusAmbiguous means candidates exist but none could be chosen automatically.
	StatusAmbiguous MatchStatus = "ambiguous"
)

// ValidStatus reports whether s is one of the recognized match statuses.
func ValidStatus(s MatchStatus) bool {
	switch s {
	case StatusAuto, StatusManual, StatusNotAvailable, StatusPending, StatusAmbiguous:
		return true
	}
	return false
}

// NotAvailableURI is the sentinel recorded in the remote URI column when a human
// confirms a track is missing from the streaming service.
const NotAvailableURI = "cratesync:NOT_AVAILABLE"

// LocalTrack is one track from the DJ-library export. Immutable for the
// duration of a sync run.
type LocalTrack struct {
	ID       string // stable identity from the export
	Title    string
	Artist   string
	Album    string
	Duration int // seconds
	Location string
}

func (t LocalTrack) String() string {
	album := t.Album
	if album == "" {
		album = "<no album>"
	}
	return fmt.Sprintf("[%s] %s - %s - %s", t.ID, t.Artist, t.Title, album)
}

// RemoteCandidate is a track returned by a streaming-service search. Transient:
// persisted only inside search-cache entries or as a chosen match URI.
type RemoteCandidate struct {
	URI      string
	Title    string
	Artist   string
	Album    string
	Duration int // seconds
}

// MatchRecord is the persisted mapping from one local track to (at most) one
// remote track, with provenance and the human-editable override inputs.
type MatchRecord struct {
	TrackID    string
	Artist     string // copied from the local track so the table is readable
	Title      string
	RemoteURI  string // "" when unmatched; NotAvailableURI when confirmed missing
	InputURL   string // human-editable: remote URL or NotAvailableURI sentinel
	Retry      bool   // human-editable: discard the current result and re-match
	Status     MatchStatus
	Confidence float64 // meaningful only for StatusAuto
	Note       string  // error annotation for pending tracks
	UpdatedAt  time.Time
}

// Matched reports whether the record resolves to a usable remote URI.
func (r MatchRecord) Matched() bool {
	return r.RemoteURI != "" && r.RemoteURI != NotAvailableURI
}

// LocalPlaylist is a named, ordered list of local track IDs. Duplicates allowed,
// order significant.
type LocalPlaylist struct {
	Name   string
	Tracks []string
}

// RemotePlaylistState is the observed (or snapshotted) track order of a remote
// playlist.
type RemotePlaylistState struct {
	ID   string
	Name string
	URIs []string
}

// Library is one run's view of the DJ-library export.
type Library struct {
	Path      string
	Tracks    map[string]LocalTrack
	Playlists []LocalPlaylist
}
