// Spotify implementation of [SearchService] and [PlaylistService], built on
// the zmb3/spotify client.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"cratesync/internal/models"
	"cratesync/internal/server"
	"cratesync/internal/shared"
)

const trackURIPrefix = "spotify:track:"

var (
	_ SearchService   = (*SpotifyService)(nil)
	_ PlaylistService = (*SpotifyService)(nil)
)

// SpotifyService talks to the Spotify Web API on behalf of one user.
type SpotifyService struct {
	client  *spotify.Client
	userID  string
	limit   int
	logger  *log.Logger
	descTag string
}

// SpotifyOpts configures construction of a [SpotifyService].
type SpotifyOpts struct {
	ResultsPerQuery int
	Logger          *log.Logger
}

// NewSpotifyService wraps an authenticated client. Use [Authenticate] to
// obtain one interactively.
func NewSpotifyService(ctx context.Context, client *spotify.Client, opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 5
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, mapRemoteErr(err)
	}

	return &SpotifyService{
		client:  client,
		userID:  user.ID,
		limit:   opts.ResultsPerQuery,
		logger:  opts.Logger,
		descTag: "Managed by cratesync",
	}, nil
}

// UserID returns the authenticated user's id.
func (s *SpotifyService) UserID() string { return s.userID }

// Authenticate runs the OAuth authorization-code flow: reuses a cached token
// when one exists, otherwise opens the browser and waits for the localhost
// callback. The obtained token is cached in the data directory.
func Authenticate(ctx context.Context, cfg shared.SpotifyConfig, logger *log.Logger) (*spotify.Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id/secret not configured", shared.ErrMissingCredentials)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
		),
	)

	if tok, err := loadToken(); err == nil {
		return spotify.New(auth.Client(ctx, tok)), nil
	}

	state := shared.GenerateID()
	authURL := auth.AuthURL(state)

	if logger != nil {
		logger.Info("opening browser for authorization", "url", authURL)
	}
	if err := shared.OpenBrowser(authURL); err != nil && logger != nil {
		logger.Warn("could not open browser, visit the URL manually", "err", err)
	}

	tok, err := server.WaitForCallback(ctx, cfg.RedirectURI, auth, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := saveToken(tok); err != nil && logger != nil {
		logger.Warn("failed to cache token", "err", err)
	}
	return spotify.New(auth.Client(ctx, tok)), nil
}

// HasCachedToken reports whether a usable token is cached on disk.
func HasCachedToken() bool {
	_, err := loadToken()
	return err == nil
}

func tokenPath() (string, error) {
	dir, err := shared.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "spotify_token.json"), nil
}

func loadToken() (*oauth2.Token, error) {
	path, err := tokenPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("%w: cached token expired", shared.ErrNotAuthenticated)
	}
	return &tok, nil
}

func saveToken(tok *oauth2.Token) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Search implements [SearchService].
func (s *SpotifyService) Search(ctx context.Context, title, artist string) ([]models.RemoteCandidate, error) {
	query := strings.TrimSpace(title + " " + artist)
	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(s.limit))
	if err != nil {
		return nil, mapRemoteErr(err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	candidates := make([]models.RemoteCandidate, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		candidates = append(candidates, candidateFromTrack(t))
	}
	return candidates, nil
}

func candidateFromTrack(t spotify.FullTrack) models.RemoteCandidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.RemoteCandidate{
		URI:      string(t.URI),
		Title:    t.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    t.Album.Name,
		Duration: int(t.Duration) / 1000,
	}
}

// Read implements [PlaylistService].
func (s *SpotifyService) Read(ctx context.Context, playlistID string) (*models.RemotePlaylistState, error) {
	pl, err := s.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, mapRemoteErr(err)
	}

	state := &models.RemotePlaylistState{ID: playlistID, Name: pl.Name}
	offset := 0
	for {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(100), spotify.Offset(offset))
		if err != nil {
			return nil, mapRemoteErr(err)
		}
		for _, item := range page.Items {
			if item.Track.Track == nil {
				continue // episode or removed track
			}
			state.URIs = append(state.URIs, string(item.Track.Track.URI))
		}
		if len(page.Items) < 100 {
			break
		}
		offset += len(page.Items)
	}
	return state, nil
}

// Create implements [PlaylistService].
func (s *SpotifyService) Create(ctx context.Context, name string, public bool) (string, error) {
	pl, err := s.client.CreatePlaylistForUser(ctx, s.userID, name, s.descTag, public, false)
	if err != nil {
		return "", mapRemoteErr(err)
	}
	s.logger.Info("created remote playlist", "name", name, "id", pl.ID)
	return string(pl.ID), nil
}

// Apply implements [PlaylistService].
//
// Pure append scripts (with or without a leading clear) execute as the minimal
// API calls. Scripts with positional removes/inserts rebuild the playlist to
// the script's target order, since the API surface used here cannot express
// positional edits; the end state is identical.
func (s *SpotifyService) Apply(ctx context.Context, playlistID string, script models.EditScript) error {
	if script.Empty() {
		return nil
	}

	ops := script.Ops
	cleared := false
	if ops[0].Kind == models.OpClear {
		cleared = true
		ops = ops[1:]
	}

	appendOnly := true
	for _, op := range ops {
		if op.Kind != models.OpAppend {
			appendOnly = false
			break
		}
	}

	if !appendOnly {
		return s.rebuild(ctx, playlistID, script.Target)
	}

	ids := make([]spotify.ID, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, trackIDFromURI(op.URI))
	}

	if cleared {
		return s.rebuildIDs(ctx, playlistID, ids)
	}
	for _, batch := range batchIDs(ids, 100) {
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return mapRemoteErr(err)
		}
	}
	return nil
}

func (s *SpotifyService) rebuild(ctx context.Context, playlistID string, target []string) error {
	ids := make([]spotify.ID, 0, len(target))
	for _, uri := range target {
		ids = append(ids, trackIDFromURI(uri))
	}
	return s.rebuildIDs(ctx, playlistID, ids)
}

func (s *SpotifyService) rebuildIDs(ctx context.Context, playlistID string, ids []spotify.ID) error {
	batches := batchIDs(ids, 100)
	if len(batches) == 0 {
		batches = [][]spotify.ID{{}}
	}
	if err := s.client.ReplacePlaylistTracks(ctx, spotify.ID(playlistID), batches[0]...); err != nil {
		return mapRemoteErr(err)
	}
	for _, batch := range batches[1:] {
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return mapRemoteErr(err)
		}
	}
	return nil
}

// Delete implements [PlaylistService]. Unfollowing an owned playlist is the
// closest thing the API has to deletion.
func (s *SpotifyService) Delete(ctx context.Context, playlistID string) error {
	if err := s.client.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return mapRemoteErr(err)
	}
	return nil
}

// List implements [PlaylistService].
func (s *SpotifyService) List(ctx context.Context) ([]string, error) {
	var ids []string
	offset := 0
	for {
		page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(50), spotify.Offset(offset))
		if err != nil {
			return nil, mapRemoteErr(err)
		}
		for _, pl := range page.Playlists {
			ids = append(ids, string(pl.ID))
		}
		if len(page.Playlists) < 50 {
			break
		}
		offset += len(page.Playlists)
	}
	return ids, nil
}

func batchIDs(ids []spotify.ID, size int) [][]spotify.ID {
	var out [][]spotify.ID
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func trackIDFromURI(uri string) spotify.ID {
	return spotify.ID(strings.TrimPrefix(uri, trackURIPrefix))
}

// ParseTrackURL converts a pasted track URL or URI into the canonical
// spotify:track: URI. Used for the match table's manual-override column.
func ParseTrackURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, trackURIPrefix) {
		if len(raw) == len(trackURIPrefix) {
			return "", fmt.Errorf("%w: empty track id", shared.ErrInvalidInput)
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: not a track URL: %q", shared.ErrInvalidInput, raw)
	}
	if !strings.HasSuffix(u.Host, "spotify.com") {
		return "", fmt.Errorf("%w: unrecognized host %q", shared.ErrInvalidInput, u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "track" || parts[1] == "" {
		return "", fmt.Errorf("%w: not a track URL: %q", shared.ErrInvalidInput, raw)
	}
	return trackURIPrefix + parts[1], nil
}

// IsTrackURI reports whether value is a canonical remote track URI (as opposed
// to empty or the not-available sentinel).
func IsTrackURI(value string) bool {
	return strings.HasPrefix(value, trackURIPrefix)
}

// mapRemoteErr folds API failures into the shared error taxonomy so callers
// can tell transient trouble from fatal auth problems.
func mapRemoteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se spotify.Error
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden:
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		case se.Status == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", shared.ErrRateLimited, err)
		case se.Status >= 500:
			return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
		}
		return err
	}
	// transport-level failure with no HTTP status
	return fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
}
