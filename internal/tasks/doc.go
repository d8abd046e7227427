// Package tasks orchestrates library reconciliation and playlist syncing with
// real-time progress reporting.
//
// # Core Operations
//
//  1. [Reconciler.Run] : Reconcile the library against the match table
//     - Merges the persisted match table with the current library
//     - Searches the streaming service for new/retry tracks through the
//       search cache, bounded by a worker pool and rate limiter
//     - Auto-accepts confident matches, routes the rest to a [services.Resolver]
//     - Persists the updated table exactly once per run
//
//  2. [PlaylistEngine.Sync] : Push local playlists to the streaming service
//     - Builds the target URI sequence for each playlist from the match table
//     - Diffs against the current remote state into a minimal edit script
//     - Applies scripts (unless dry-run) and maintains the playlist id map
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data for advanced UI rendering. Updates use select with default to
// prevent blocking.
package tasks
