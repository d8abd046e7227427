// package tasks implements the reconciliation and sync operations that tie
// the library, matcher, repositories, and streaming service together.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"cratesync/internal/matcher"
	"cratesync/internal/models"
	"cratesync/internal/repositories"
	"cratesync/internal/services"
	"cratesync/internal/shared"
)

// searchAttempts bounds retries for one track's remote lookup.
const searchAttempts = 3

// retryBaseDelay is the first backoff interval after a transient failure.
const retryBaseDelay = 500 * time.Millisecond

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	Records map[string]models.MatchRecord // Final state of the match table

	Auto         int // Tracks auto-matched this run or before
	Manual       int // Tracks matched by human override or candidate pick
	NotAvailable int // Tracks flagged as not on the streaming service
	Ambiguous    int // Tracks with candidates but no confident winner
	Pending      int // Tracks still unmatched

	Lookups   int // Remote searches performed this run
	CacheHits int // Lookups served from the search cache
}

// Matched returns the number of tracks with a usable remote URI.
func (r *ReconcileResult) Matched() int { return r.Auto + r.Manual }

// Reconciler drives the match table to agreement with the current library.
// Remote lookups run on a bounded worker pool behind a rate limiter;
// resolution and persistence are serial.
type Reconciler struct {
	engine   *matcher.Engine
	search   services.SearchService
	cache    *repositories.SearchCache
	store    *repositories.MatchStore
	resolver services.Resolver
	limiter  *rate.Limiter
	workers  int
	logger   *log.Logger
}

// NewReconciler wires a reconciler from its collaborators. Pool size and rate
// come from the engine's matching configuration. A nil resolver skips all
// uncertain tracks.
func NewReconciler(engine *matcher.Engine, search services.SearchService, cache *repositories.SearchCache, store *repositories.MatchStore, resolver services.Resolver, logger *log.Logger) *Reconciler {
	if resolver == nil {
		resolver = services.SkipResolver{}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	cfg := engine.Config()
	return &Reconciler{
		engine:   engine,
		search:   search,
		cache:    cache,
		store:    store,
		resolver: resolver,
		limiter:  rate.NewLimiter(rate.Limit(cfg.SearchesPerSecond), 1),
		workers:  cfg.SearchConcurrency,
		logger:   logger,
	}
}

// lookupResult carries one track's search outcome out of the worker pool.
type lookupResult struct {
	decision matcher.Decision
	cached   bool
	searched bool
	err      error
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run reconciles the library against the persisted match table: merge, search
// new/retry tracks, resolve uncertain ones, then save the table exactly once.
//
// Auth failures abort the run; everything decided before the failure is still
// persisted, while tracks the abort cut off keep their prior record (retry
// flag and override input intact) so the next run resumes where this one
// stopped. Transient search failures exhaust their retries and leave the
// track pending with a note; unresolved tracks are requeued by the merge on
// the next run.
func (r *Reconciler) Run(ctx context.Context, lib *models.Library, progress chan<- ProgressUpdate) (*ReconcileResult, error) {
	existing, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading match table: %w", err)
	}

	plan := r.store.Merge(existing, lib, time.Now().UTC())
	sendProgress(progress, mergeUpdate(len(plan.ToMatch), len(lib.Tracks)))

	lookups, fatal := r.searchAll(ctx, lib, plan.ToMatch, progress)

	result := &ReconcileResult{}
	now := time.Now().UTC()
	skipRemaining := false
	resolveStep := 0

	for _, id := range plan.ToMatch {
		track := lib.Tracks[id]
		lr, ok := lookups[id]

		rec := models.MatchRecord{
			TrackID:   id,
			Artist:    track.Artist,
			Title:     track.Title,
			Status:    models.StatusPending,
			UpdatedAt: now,
		}

		switch {
		case !ok:
			// run aborted before this track was searched: the prior record
			// carries forward untouched, retry flag and override input
			// included, so the next run picks up exactly where this one
			// left off
			if prior, had := existing[id]; had {
				prior.Artist = track.Artist
				prior.Title = track.Title
				plan.Records[id] = prior
			}
			continue

		case lr.err != nil:
			if prior, had := existing[id]; had {
				rec = prior
				rec.Artist = track.Artist
				rec.Title = track.Title
			}
			rec.Note = fmt.Sprintf("search failed: %v", lr.err)

		case lr.decision.Outcome == matcher.OutcomeAuto:
			best := lr.decision.Best()
			rec.Status = models.StatusAuto
			rec.RemoteURI = best.Candidate.URI
			rec.Confidence = best.Score

		case len(lr.decision.Ranked) > 0 && !skipRemaining && fatal == nil:
			resolveStep++
			sendProgress(progress, resolveTrackUpdate(resolveStep, len(plan.ToMatch), track))

			resolution, resErr := r.resolver.Resolve(ctx, track, lr.decision.Ranked)
			if resErr != nil {
				return r.finish(plan.Records, result, progress, fmt.Errorf("resolving %s: %w", track, resErr))
			}
			switch resolution.Kind {
			case services.ResolutionChoose:
				rec.Status = models.StatusManual
				rec.RemoteURI = resolution.URI
			case services.ResolutionNotAvailable:
				rec.Status = models.StatusNotAvailable
				rec.RemoteURI = models.NotAvailableURI
			case services.ResolutionSkipRemaining:
				skipRemaining = true
				fallthrough
			default:
				if lr.decision.Outcome == matcher.OutcomeAmbiguous {
					rec.Status = models.StatusAmbiguous
				}
			}

		case lr.decision.Outcome == matcher.OutcomeAmbiguous:
			rec.Status = models.StatusAmbiguous
		}

		if lr.cached {
			result.CacheHits++
		}
		if lr.searched {
			result.Lookups++
		}
		plan.Records[id] = rec
	}

	return r.finish(plan.Records, result, progress, fatal)
}

// finish persists the table once, tallies statuses, and surfaces runErr after
// the save so partial progress survives an aborted run.
func (r *Reconciler) finish(records map[string]models.MatchRecord, result *ReconcileResult, progress chan<- ProgressUpdate, runErr error) (*ReconcileResult, error) {
	sendProgress(progress, saveTableUpdate(len(records)))
	if err := r.store.Save(records); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("saving match table after run error (%v): %w", runErr, err)
		}
		return nil, fmt.Errorf("saving match table: %w", err)
	}

	result.Records = records
	for _, rec := range records {
		switch rec.Status {
		case models.StatusAuto:
			result.Auto++
		case models.StatusManual:
			result.Manual++
		case models.StatusNotAvailable:
			result.NotAvailable++
		case models.StatusAmbiguous:
			result.Ambiguous++
		default:
			result.Pending++
		}
	}

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// searchAll looks up every queued track, fanning out over the worker pool.
// Tracks sharing a normalized query are grouped so each query hits the remote
// service at most once per run. Returns the per-track results and the first
// fatal error, if any; a fatal error cancels outstanding work.
func (r *Reconciler) searchAll(ctx context.Context, lib *models.Library, ids []string, progress chan<- ProgressUpdate) (map[string]lookupResult, error) {
	results := make(map[string]lookupResult, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	byKey := make(map[string][]string)
	var keys []string
	for _, id := range ids {
		track := lib.Tracks[id]
		key := matcher.QueryKey(track.Title, track.Artist)
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], id)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
		step  int
	)
	jobs := make(chan string)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				if ctx.Err() != nil {
					continue
				}
				group := byKey[key]
				candidates, hit, err := r.lookupQuery(ctx, key, lib.Tracks[group[0]])

				mu.Lock()
				for i, id := range group {
					track := lib.Tracks[id]
					step++
					sendProgress(progress, searchTrackUpdate(step, len(ids), track))

					lr := lookupResult{cached: hit || i > 0, searched: !hit && i == 0}
					if err != nil {
						lr.err = err
						lr.cached = false
					} else {
						lr.decision = r.engine.Decide(track, candidates)
					}
					results[id] = lr
				}
				if err != nil && isFatal(err) && fatal == nil {
					fatal = err
					cancel()
				}
				mu.Unlock()
			}
		}()
	}

	for _, key := range keys {
		select {
		case jobs <- key:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if fatal == nil && ctx.Err() != nil {
		fatal = ctx.Err()
	}
	return results, fatal
}

// lookupQuery serves one normalized query from the cache or the remote
// service, populating the cache on a miss.
func (r *Reconciler) lookupQuery(ctx context.Context, key string, track models.LocalTrack) ([]models.RemoteCandidate, bool, error) {
	candidates, hit, err := r.cache.Lookup(key)
	if err != nil {
		r.logger.Warn("cache lookup failed", "query", key, "err", err)
	}
	if hit {
		return candidates, true, nil
	}

	candidates, err = r.searchWithRetry(ctx, track)
	if err != nil {
		return nil, false, err
	}
	if storeErr := r.cache.Store(key, candidates); storeErr != nil {
		r.logger.Warn("cache store failed", "query", key, "err", storeErr)
	}
	return candidates, false, nil
}

// searchWithRetry performs the remote search with bounded backoff on
// transient failures. Fatal errors return immediately.
func (r *Reconciler) searchWithRetry(ctx context.Context, track models.LocalTrack) ([]models.RemoteCandidate, error) {
	var lastErr error
	delay := retryBaseDelay

	for attempt := range searchAttempts {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candidates, err := r.search.Search(ctx, track.Title, track.Artist)
		if err == nil {
			return candidates, nil
		}
		if isFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		r.logger.Warn("search failed, retrying", "track", track.ID, "attempt", attempt+1, "err", err)
	}
	return nil, lastErr
}

// isFatal reports whether an error should abort the whole run rather than
// leave one track pending.
func isFatal(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrNotAuthenticated)
}
