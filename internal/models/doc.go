// Package models defines domain entities shared by every layer of the sync engine.
//
// The package contains three categories of types:
//
// 1. Run-scoped entities, rebuilt from the library export on every invocation:
//   - [LocalTrack] : One track from the DJ-library export
//   - [LocalPlaylist] : Named, ordered list of local track IDs
//   - [Library] : The full export (collection plus playlists)
//
// 2. Transient remote data:
//   - [RemoteCandidate] : A search result, not yet confirmed as a match
//   - [RemotePlaylistState] : Observed track order of a remote playlist
//
// 3. Cross-run persisted state:
//   - [MatchRecord] : Local-track → remote-URI mapping with provenance,
//     the only entity that survives between runs
//
// [MatchRecord] carries two human-owned input fields (InputURL, Retry) next to
// the machine-owned result fields. The merge precedence that arbitrates between
// them lives in the repositories package.
package models
