// Package repositories provides the persistence layer for cross-run state.
//
// Three stores live here:
//
//   - [MatchStore] : the CSV match table mapping local track IDs to remote
//     URIs. This is the one human-editable file; its column layout is a
//     compatibility contract and its save is atomic (temp file + rename).
//   - [SearchCache] : sqlite-backed memo of remote search results keyed by
//     normalized query. Entries never expire; a force-refresh run bypasses
//     reads and overwrites on write.
//   - [PlaylistMap] : CSV map from local playlist names to the remote playlist
//     IDs this tool created and owns.
//
// The MatchStore also implements the merge precedence that arbitrates between
// human input columns and machine results; see [MatchStore.Merge].
package repositories
