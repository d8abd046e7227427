package tasks

import (
	"fmt"

	"cratesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	MergeTable Phase = iota
	SearchTracks
	ResolveTracks
	SaveTable
	DiffPlaylist
	ApplyEdits
	CreatePlaylist
)

func (p Phase) String() string {
	switch p {
	case MergeTable:
		return "merge_table"
	case SearchTracks:
		return "search_tracks"
	case ResolveTracks:
		return "resolve_tracks"
	case SaveTable:
		return "save_table"
	case DiffPlaylist:
		return "diff_playlist"
	case ApplyEdits:
		return "apply_edits"
	case CreatePlaylist:
		return "create_playlist"
	default:
		return ""
	}
}

func mergeUpdate(toMatch, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeTable,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merged match table: %d of %d tracks need matching", toMatch, total),
	}
}

func searchTrackUpdate(step, total int, track models.LocalTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, track.Artist, track.Title),
	}
}

func resolveTrackUpdate(step, total int, track models.LocalTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving: %s - %s", step, total, track.Artist, track.Title),
	}
}

func saveTableUpdate(records int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveTable,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving match table (%d records)...", records),
	}
}

func diffPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DiffPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Diffing: %s", step, total, name),
	}
}

func applyEditsUpdate(step, total int, name string, script models.EditScript) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplyEdits,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Applying %d edits to %s", step, total, len(script.Ops), name),
		Data:    script,
	}
}

func createPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating remote playlist: %s", step, total, name),
	}
}
