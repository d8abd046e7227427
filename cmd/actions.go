package main

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/urfave/cli/v3"

	"cratesync/internal/formatter"
	"cratesync/internal/models"
	"cratesync/internal/services"
	"cratesync/internal/shared"
	"cratesync/internal/tasks"
	"cratesync/internal/ui"
)

// Init writes the embedded starter configuration to disk.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.writePlainln("✓ Created %s", path)
	r.writePlainln("Fill in your Spotify credentials and library export path, then run 'cratesync auth login'.")
	return nil
}

// AuthLogin runs the OAuth flow and reports the authenticated user.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	if svc, ok := r.playlists.(*services.SpotifyService); ok {
		r.writePlainln("✓ Authenticated as %s", svc.UserID())
	} else {
		r.writePlainln("✓ Authenticated")
	}
	return nil
}

// AuthStatus reports whether a usable cached token exists, without starting
// a browser flow.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}

	if services.HasCachedToken() {
		r.writePlainln("✓ Authenticated (cached token present)")
		return nil
	}
	r.writePlainln("✗ Not authenticated. Run 'cratesync auth login'.")
	return nil
}

// applyMatchFlags folds match-relevant flags into the run configuration.
func (r *Runner) applyMatchFlags(cmd *cli.Command) {
	if cmd.IsSet("interactive") {
		r.config.Sync.Interactive = cmd.Bool("interactive")
	}
	if cmd.IsSet("force-refresh") {
		r.config.Sync.ForceRefresh = cmd.Bool("force-refresh")
	}
}

// applySyncFlags folds sync-relevant flags into the run configuration.
func (r *Runner) applySyncFlags(cmd *cli.Command) {
	r.applyMatchFlags(cmd)
	for flag, target := range map[string]*bool{
		"dry-run":       &r.config.Sync.DryRun,
		"overwrite":     &r.config.Sync.Overwrite,
		"skip-sync":     &r.config.Sync.SkipSync,
		"collection":    &r.config.Sync.Collection,
		"include-loose": &r.config.Sync.IncludeLoose,
		"public":        &r.config.Sync.Public,
	} {
		if cmd.IsSet(flag) {
			*target = cmd.Bool(flag)
		}
	}
}

// drainProgress logs progress updates until the channel closes.
func (r *Runner) drainProgress(progress <-chan tasks.ProgressUpdate) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return &wg
}

// runMatch executes the reconciliation pipeline shared by Match and Sync.
func (r *Runner) runMatch(ctx context.Context, cmd *cli.Command) (*tasks.ReconcileResult, *models.Library, string, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, "", err
	}

	path, err := r.libraryPath(cmd)
	if err != nil {
		return nil, nil, "", err
	}

	lib, err := r.librarySource(path).Load(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	r.logger.Info("library loaded", "tracks", len(lib.Tracks), "playlists", len(lib.Playlists))

	if err := r.connect(ctx); err != nil {
		return nil, nil, "", err
	}

	store, err := r.matchStore(path)
	if err != nil {
		return nil, nil, "", err
	}
	cache, err := r.searchCache(path)
	if err != nil {
		return nil, nil, "", err
	}

	resolver := r.resolver
	if resolver == nil {
		if r.config.Sync.Interactive {
			resolver = ui.NewInteractiveResolver()
		} else {
			resolver = services.SkipResolver{}
		}
	}

	reconciler := tasks.NewReconciler(r.engine(), r.search, cache, store, resolver, r.logger)

	progress := make(chan tasks.ProgressUpdate, 64)
	wg := r.drainProgress(progress)
	result, err := reconciler.Run(ctx, lib, progress)
	close(progress)
	wg.Wait()

	return result, lib, path, err
}

// writeMatchSummary prints the text summary and optionally the report file.
func (r *Runner) writeMatchSummary(cmd *cli.Command, result *tasks.ReconcileResult) error {
	text, err := formatter.MatchReportToText(result)
	if err != nil {
		return err
	}
	r.writePlainHeader("Match Results")
	r.writePlain("%s", text)

	if report := cmd.String("report"); report != "" {
		if err := formatter.WriteMatchReport(result, report); err != nil {
			return err
		}
		r.writePlainln("Report written to %s", report)
	}
	return nil
}

// Match reconciles the library against the match table.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	r.applyMatchFlags(cmd)
	defer r.close()

	result, _, _, runErr := r.runMatch(ctx, cmd)
	if result != nil {
		if err := r.writeMatchSummary(cmd, result); err != nil {
			return err
		}
	}
	return runErr
}

// Sync reconciles the library and pushes playlists to the streaming service.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	r.applySyncFlags(cmd)
	defer r.close()

	result, lib, path, runErr := r.runMatch(ctx, cmd)
	if result != nil {
		if err := r.writeMatchSummary(cmd, result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if r.config.Sync.SkipSync {
		r.writePlainln("Skipping playlist sync (--skip-sync).")
		return nil
	}

	pmap, err := r.playlistMap(path)
	if err != nil {
		return err
	}
	engine := tasks.NewPlaylistEngine(r.playlists, pmap, r.config.Sync, r.logger)

	progress := make(chan tasks.ProgressUpdate, 64)
	wg := r.drainProgress(progress)
	syncResult, err := engine.Sync(ctx, lib, result.Records, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	text, err := formatter.SyncReportToText(syncResult)
	if err != nil {
		return err
	}
	title := "Sync Results"
	if r.config.Sync.DryRun {
		title = "Sync Plan (dry run)"
	}
	r.writePlainHeader(title)
	r.writePlain("%s", text)
	return nil
}

// PlaylistsList prints the managed playlist mapping.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}

	path, err := r.libraryPath(cmd)
	if err != nil {
		return err
	}
	pmap, err := r.playlistMap(path)
	if err != nil {
		return err
	}
	mapping, err := pmap.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(mapping, true)
	}

	if len(mapping) == 0 {
		r.writePlainln("No managed playlists yet. Run 'cratesync sync' first.")
		return nil
	}
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	r.writePlainHeader("Managed Playlists")
	for _, name := range names {
		r.writePlain("%s → %s\n", name, mapping[name])
	}
	return nil
}

// PlaylistsDelete removes one managed remote playlist and its mapping entry.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}

	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	path, err := r.libraryPath(cmd)
	if err != nil {
		return err
	}
	pmap, err := r.playlistMap(path)
	if err != nil {
		return err
	}
	mapping, err := pmap.Load()
	if err != nil {
		return err
	}

	id, ok := mapping[name]
	if !ok {
		return fmt.Errorf("%w: %q is not managed", shared.ErrPlaylistNotFound, name)
	}

	if err := r.connect(ctx); err != nil {
		return err
	}
	if err := r.playlists.Delete(ctx, id); err != nil {
		return err
	}

	delete(mapping, name)
	if err := pmap.Save(mapping); err != nil {
		return err
	}
	r.writePlainln("✓ Deleted %s (%s)", name, id)
	return nil
}

// CacheStats prints the cached query count.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	defer r.close()

	path, err := r.libraryPath(cmd)
	if err != nil {
		return err
	}
	cache, err := r.searchCache(path)
	if err != nil {
		return err
	}
	count, err := cache.Len()
	if err != nil {
		return err
	}
	r.writePlainln("Cached queries: %d", count)
	return nil
}

// CacheClear drops all cached search results.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	defer r.close()

	path, err := r.libraryPath(cmd)
	if err != nil {
		return err
	}
	cache, err := r.searchCache(path)
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return err
	}
	r.writePlainln("✓ Search cache cleared")
	return nil
}
