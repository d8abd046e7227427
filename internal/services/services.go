// package services defines the collaborator interfaces the reconciliation
// engine depends on, and their concrete implementations
//
// Rekordbox (library source), Spotify (remote search + playlists)
package services

import (
	"context"

	"cratesync/internal/matcher"
	"cratesync/internal/models"
)

// LibrarySource yields the local library for one run. The engine never parses
// the export format itself.
type LibrarySource interface {
	// Load parses the export and returns the collection plus playlists.
	Load(ctx context.Context) (*models.Library, error)
}

// SearchService is the remote lookup capability.
//
// Implementations signal transient network/rate-limit trouble with
// [shared.ErrRateLimited] or [shared.ErrRemoteUnavailable] (wrapped), and
// authentication failure with [shared.ErrAuthFailed]. The caller retries
// transient kinds and aborts on fatal ones.
type SearchService interface {
	// Search returns remote candidates for a (title, artist) query, best
	// matches first as ranked by the remote service.
	Search(ctx context.Context, title, artist string) ([]models.RemoteCandidate, error)
}

// PlaylistService reads and mutates remote playlists. Same error kinds as
// [SearchService].
type PlaylistService interface {
	// Read fetches the current track order of a remote playlist by id.
	Read(ctx context.Context, playlistID string) (*models.RemotePlaylistState, error)

	// Create makes an empty remote playlist and returns its id.
	Create(ctx context.Context, name string, public bool) (string, error)

	// Apply executes an edit script against a remote playlist.
	Apply(ctx context.Context, playlistID string, script models.EditScript) error

	// Delete removes (unfollows) a remote playlist this tool owns.
	Delete(ctx context.Context, playlistID string) error

	// List returns the ids of all playlists in the user's remote library.
	List(ctx context.Context) ([]string, error)
}

// ResolutionKind is a human's answer for one ambiguous or pending track.
type ResolutionKind int

const (
	// ResolutionSkip leaves the track pending.
	ResolutionSkip ResolutionKind = iota
	// ResolutionChoose picks a remote URI (from the list or pasted).
	ResolutionChoose
	// ResolutionNotAvailable confirms the track is missing remotely.
	ResolutionNotAvailable
	// ResolutionSkipRemaining skips this track and suppresses further prompts.
	ResolutionSkipRemaining
)

// Resolution carries the chosen kind and, for ResolutionChoose, the URI.
type Resolution struct {
	Kind ResolutionKind
	URI  string
}

// Resolver is the interactive-resolution capability. A batch run supplies
// [SkipResolver], leaving unresolved tracks pending.
type Resolver interface {
	Resolve(ctx context.Context, track models.LocalTrack, ranked []matcher.Scored) (Resolution, error)
}

// SkipResolver answers "skip" for every track; used in non-interactive runs.
type SkipResolver struct{}

func (SkipResolver) Resolve(ctx context.Context, track models.LocalTrack, ranked []matcher.Scored) (Resolution, error) {
	return Resolution{Kind: ResolutionSkip}, nil
}
