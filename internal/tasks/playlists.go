package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"cratesync/internal/models"
	"cratesync/internal/repositories"
	"cratesync/internal/services"
	"cratesync/internal/shared"
)

// CollectionName is the remote playlist holding every matched track.
const CollectionName = "Collection"

// SyncEntry records what happened (or would happen) to one playlist.
type SyncEntry struct {
	Name       string            // Local playlist name
	RemoteID   string            // Remote playlist id, empty for uncreated dry-run playlists
	Created    bool              // Remote playlist did not exist before this run
	Script     models.EditScript // Edits computed for this playlist
	RemoteOnly []string          // URIs found remotely with no local counterpart
	Applied    bool              // Edits were pushed to the remote service
	Err        error             // Apply failure, nil otherwise
}

// SyncResult collects per-playlist outcomes for one sync run.
type SyncResult struct {
	Entries []SyncEntry
}

// Applied returns how many playlists had edits pushed.
func (r *SyncResult) Applied() int {
	n := 0
	for _, e := range r.Entries {
		if e.Applied {
			n++
		}
	}
	return n
}

// PlaylistEngine pushes local playlists to the streaming service. Diff
// computation is pure; only Apply and Create mutate remote state, and neither
// runs under dry-run.
type PlaylistEngine struct {
	playlists services.PlaylistService
	pmap      *repositories.PlaylistMap
	cfg       shared.SyncConfig
	logger    *log.Logger
}

// NewPlaylistEngine creates a sync engine over a playlist service and the
// local-name to remote-id map.
func NewPlaylistEngine(playlists services.PlaylistService, pmap *repositories.PlaylistMap, cfg shared.SyncConfig, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{playlists: playlists, pmap: pmap, cfg: cfg, logger: logger}
}

// BuildTarget converts one local playlist into the ordered remote URI
// sequence of its matched tracks. Unmatched and not-available tracks are
// omitted; local order is preserved.
func BuildTarget(pl models.LocalPlaylist, records map[string]models.MatchRecord) []string {
	var target []string
	for _, id := range pl.Tracks {
		rec, ok := records[id]
		if !ok || !rec.Matched() {
			continue
		}
		target = append(target, rec.RemoteURI)
	}
	return target
}

// CollectionTarget builds the dedup union of every playlist's matched tracks
// in first-seen order. With includeLoose, matched tracks in no playlist are
// appended in track-id order.
func CollectionTarget(lib *models.Library, records map[string]models.MatchRecord, includeLoose bool) []string {
	var target []string
	seen := make(map[string]bool)

	appendTrack := func(id string) {
		rec, ok := records[id]
		if !ok || !rec.Matched() || seen[rec.RemoteURI] {
			return
		}
		seen[rec.RemoteURI] = true
		target = append(target, rec.RemoteURI)
	}

	inPlaylist := make(map[string]bool)
	for _, pl := range lib.Playlists {
		for _, id := range pl.Tracks {
			inPlaylist[id] = true
			appendTrack(id)
		}
	}

	if includeLoose {
		loose := make([]string, 0)
		for id := range lib.Tracks {
			if !inPlaylist[id] {
				loose = append(loose, id)
			}
		}
		sort.Strings(loose)
		for _, id := range loose {
			appendTrack(id)
		}
	}
	return target
}

// Diff computes the edit script taking current to target. The default script
// is minimal: the longest common subsequence stays put, everything else is
// removed (descending positions) then inserted (ascending). Overwrite mode
// clears and rebuilds verbatim. Equal sequences produce an empty script.
func Diff(name string, current, target []string, overwrite bool) models.EditScript {
	script := models.EditScript{PlaylistName: name, Target: target}
	if slicesEqual(current, target) {
		return script
	}

	if overwrite {
		if len(current) > 0 {
			script.Ops = append(script.Ops, models.EditOp{Kind: models.OpClear})
		}
		for _, uri := range target {
			script.Ops = append(script.Ops, models.EditOp{Kind: models.OpAppend, URI: uri})
		}
		return script
	}

	keepCur, keepTgt := commonSubsequence(current, target)

	for i := len(current) - 1; i >= 0; i-- {
		if !keepCur[i] {
			script.Ops = append(script.Ops, models.EditOp{Kind: models.OpRemove, URI: current[i], Pos: i})
		}
	}

	length := 0
	for _, kept := range keepCur {
		if kept {
			length++
		}
	}
	for j, uri := range target {
		if keepTgt[j] {
			continue
		}
		if j >= length {
			script.Ops = append(script.Ops, models.EditOp{Kind: models.OpAppend, URI: uri})
		} else {
			script.Ops = append(script.Ops, models.EditOp{Kind: models.OpInsert, URI: uri, Pos: j})
		}
		length++
	}
	return script
}

// commonSubsequence marks, per side, the elements belonging to one longest
// common subsequence of a and b.
func commonSubsequence(a, b []string) (keepA, keepB []bool) {
	n, m := len(a), len(b)
	keepA = make([]bool, n)
	keepB = make([]bool, m)
	if n == 0 || m == 0 {
		return keepA, keepB
	}

	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			keepA[i] = true
			keepB[j] = true
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return keepA, keepB
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type playlistPlan struct {
	name   string
	target []string
}

// remoteOnly lists the tracks on the remote playlist that have no local
// counterpart, in remote order. The sync removes them, so the report surfaces
// them first for the user to carry back into the library if wanted.
func remoteOnly(current, target []string) []string {
	want := make(map[string]bool, len(target))
	for _, uri := range target {
		want[uri] = true
	}

	var extras []string
	seen := make(map[string]bool)
	for _, uri := range current {
		if !want[uri] && !seen[uri] {
			seen[uri] = true
			extras = append(extras, uri)
		}
	}
	return extras
}

// Sync diffs and (unless dry-run) applies every local playlist, plus the
// collection playlist when enabled. A failed apply is recorded on its entry
// and the run continues; creation and read failures abort.
func (e *PlaylistEngine) Sync(ctx context.Context, lib *models.Library, records map[string]models.MatchRecord, progress chan<- ProgressUpdate) (*SyncResult, error) {
	mapping, err := e.pmap.Load()
	if err != nil {
		return nil, fmt.Errorf("loading playlist map: %w", err)
	}

	plans := make([]playlistPlan, 0, len(lib.Playlists)+1)
	for _, pl := range lib.Playlists {
		plans = append(plans, playlistPlan{name: pl.Name, target: BuildTarget(pl, records)})
	}
	if e.cfg.Collection {
		plans = append(plans, playlistPlan{
			name:   CollectionName,
			target: CollectionTarget(lib, records, e.cfg.IncludeLoose),
		})
	}

	result := &SyncResult{}
	mappingDirty := false

	for i, plan := range plans {
		sendProgress(progress, diffPlaylistUpdate(i+1, len(plans), plan.name))

		entry := SyncEntry{Name: plan.name}
		remoteID, known := mapping[plan.name]
		var current []string

		if known {
			state, err := e.playlists.Read(ctx, remoteID)
			switch {
			case errors.Is(err, shared.ErrPlaylistNotFound):
				// deleted out from under us; recreate below
				e.logger.Warn("mapped playlist missing remotely", "playlist", plan.name, "id", remoteID)
				known = false
			case err != nil:
				return result, fmt.Errorf("reading playlist %q: %w", plan.name, err)
			default:
				current = state.URIs
			}
		}

		if !known {
			if len(plan.target) == 0 {
				e.logger.Debug("skipping playlist with no matched tracks", "playlist", plan.name)
				result.Entries = append(result.Entries, entry)
				continue
			}
			entry.Created = true
			if !e.cfg.DryRun {
				sendProgress(progress, createPlaylistUpdate(i+1, len(plans), plan.name))
				remoteID, err = e.playlists.Create(ctx, plan.name, e.cfg.Public)
				if err != nil {
					return result, fmt.Errorf("creating playlist %q: %w", plan.name, err)
				}
				mapping[plan.name] = remoteID
				mappingDirty = true
			} else {
				remoteID = ""
			}
			current = nil
		}

		entry.RemoteID = remoteID
		entry.RemoteOnly = remoteOnly(current, plan.target)
		entry.Script = Diff(plan.name, current, plan.target, e.cfg.Overwrite)

		if !e.cfg.DryRun && !entry.Script.Empty() {
			sendProgress(progress, applyEditsUpdate(i+1, len(plans), plan.name, entry.Script))
			if err := e.playlists.Apply(ctx, remoteID, entry.Script); err != nil {
				e.logger.Error("apply failed", "playlist", plan.name, "err", err)
				entry.Err = err
			} else {
				entry.Applied = true
			}
		}
		result.Entries = append(result.Entries, entry)
	}

	if mappingDirty && !e.cfg.DryRun {
		if err := e.pmap.Save(mapping); err != nil {
			return result, fmt.Errorf("saving playlist map: %w", err)
		}
	}
	return result, nil
}
