package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cratesync/internal/matcher"
	"cratesync/internal/models"
	"cratesync/internal/repositories"
	"cratesync/internal/services"
	"cratesync/internal/shared"
)

// fakeSearch serves canned candidates keyed by track title and counts calls.
type fakeSearch struct {
	mu        sync.Mutex
	results   map[string][]models.RemoteCandidate
	err       error
	callCount map[string]int
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		results:   make(map[string][]models.RemoteCandidate),
		callCount: make(map[string]int),
	}
}

func (f *fakeSearch) Search(ctx context.Context, title, artist string) ([]models.RemoteCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount[title]++
	if f.err != nil {
		return nil, f.err
	}
	return f.results[title], nil
}

func (f *fakeSearch) calls(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[title]
}

func (f *fakeSearch) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.callCount {
		n += c
	}
	return n
}

// scriptedResolver returns queued resolutions in order and counts calls.
type scriptedResolver struct {
	queue []services.Resolution
	calls int
}

func (r *scriptedResolver) Resolve(ctx context.Context, track models.LocalTrack, ranked []matcher.Scored) (services.Resolution, error) {
	r.calls++
	if len(r.queue) == 0 {
		return services.Resolution{Kind: services.ResolutionSkip}, nil
	}
	res := r.queue[0]
	r.queue = r.queue[1:]
	return res, nil
}

func fakeParse(raw string) (string, error) {
	if !strings.HasPrefix(raw, "https://remote.example.com/track/") {
		return "", errors.New("not a track url")
	}
	return "remote:track:" + strings.TrimPrefix(raw, "https://remote.example.com/track/"), nil
}

func testMatchingConfig() shared.MatchingConfig {
	cfg := shared.DefaultConfig().Matching
	cfg.SearchesPerSecond = 1000 // keep tests fast
	return cfg
}

func testReconciler(t *testing.T, search services.SearchService, resolver services.Resolver) (*Reconciler, *repositories.MatchStore) {
	t.Helper()
	store := repositories.NewMatchStore(filepath.Join(t.TempDir(), "matches.csv"), fakeParse, nil)

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	cache, err := repositories.NewSearchCache(db, false)
	if err != nil {
		t.Fatal(err)
	}

	engine := matcher.New(testMatchingConfig())
	return NewReconciler(engine, search, cache, store, resolver, nil), store
}

func libraryOf(tracks ...models.LocalTrack) *models.Library {
	lib := &models.Library{Tracks: make(map[string]models.LocalTrack)}
	for _, tr := range tracks {
		lib.Tracks[tr.ID] = tr
	}
	return lib
}

func exactCandidate(track models.LocalTrack, uri string) models.RemoteCandidate {
	return models.RemoteCandidate{
		URI:      uri,
		Title:    track.Title,
		Artist:   track.Artist,
		Album:    track.Album,
		Duration: track.Duration,
	}
}

func TestRunAutoMatchesConfidentCandidates(t *testing.T) {
	trackA := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	trackB := models.LocalTrack{ID: "2", Title: "Opus", Artist: "Eric Prydz", Duration: 540}

	search := newFakeSearch()
	search.results["Strobe"] = []models.RemoteCandidate{exactCandidate(trackA, "remote:track:aaa")}
	search.results["Opus"] = []models.RemoteCandidate{exactCandidate(trackB, "remote:track:bbb")}

	rec, store := testReconciler(t, search, nil)
	result, err := rec.Run(context.Background(), libraryOf(trackA, trackB), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Auto != 2 {
		t.Errorf("Auto = %d, want 2", result.Auto)
	}
	if result.Records["1"].RemoteURI != "remote:track:aaa" {
		t.Errorf("track 1 URI = %q", result.Records["1"].RemoteURI)
	}
	if result.Records["1"].Status != models.StatusAuto {
		t.Errorf("track 1 status = %q", result.Records["1"].Status)
	}
	if result.Records["1"].Confidence < 0.9 {
		t.Errorf("track 1 confidence = %f", result.Records["1"].Confidence)
	}

	// the table was persisted
	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load after Run: %v", err)
	}
	if saved["2"].RemoteURI != "remote:track:bbb" {
		t.Errorf("persisted track 2 URI = %q", saved["2"].RemoteURI)
	}
}

func TestRunIdempotent(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = []models.RemoteCandidate{exactCandidate(track, "remote:track:aaa")}

	rec, _ := testReconciler(t, search, nil)
	lib := libraryOf(track)

	first, err := rec.Run(context.Background(), lib, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := rec.Run(context.Background(), lib, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if search.totalCalls() != 1 {
		t.Errorf("search called %d times across two runs, want 1", search.totalCalls())
	}
	if second.Lookups != 0 {
		t.Errorf("second run performed %d lookups, want 0", second.Lookups)
	}
	if first.Records["1"].RemoteURI != second.Records["1"].RemoteURI {
		t.Error("second run changed the match")
	}
}

func TestRunOneLookupPerQuery(t *testing.T) {
	// two library entries for the same recording share one search
	trackA := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	trackB := models.LocalTrack{ID: "2", Title: "Strobe", Artist: "deadmau5", Duration: 634}

	search := newFakeSearch()
	search.results["Strobe"] = []models.RemoteCandidate{exactCandidate(trackA, "remote:track:aaa")}

	rec, _ := testReconciler(t, search, nil)
	result, err := rec.Run(context.Background(), libraryOf(trackA, trackB), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := search.calls("Strobe"); got != 1 {
		t.Errorf("search called %d times for one query, want 1", got)
	}
	if result.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", result.CacheHits)
	}
	if result.Records["1"].RemoteURI != result.Records["2"].RemoteURI {
		t.Error("duplicate tracks matched differently")
	}
}

func TestRunTransientFailureLeavesPending(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5"}
	search := newFakeSearch()
	search.err = shared.ErrRemoteUnavailable

	rec, _ := testReconciler(t, search, nil)
	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if err != nil {
		t.Fatalf("transient failures should not abort the run: %v", err)
	}

	got := result.Records["1"]
	if got.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if !strings.HasPrefix(got.Note, "search failed") {
		t.Errorf("note = %q", got.Note)
	}
	if want := searchAttempts; search.calls("Strobe") != want {
		t.Errorf("search called %d times, want %d attempts", search.calls("Strobe"), want)
	}
}

func TestRunAuthFailureAborts(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5"}
	search := newFakeSearch()
	search.err = shared.ErrAuthFailed

	rec, store := testReconciler(t, search, nil)
	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if !errors.Is(err, shared.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if result == nil {
		t.Fatal("partial result should still be returned")
	}
	if search.calls("Strobe") != 1 {
		t.Errorf("auth failure retried: %d calls", search.calls("Strobe"))
	}

	// partial progress persisted despite the abort
	if _, err := store.Load(); err != nil {
		t.Errorf("table not saved after abort: %v", err)
	}
}

// A run cut short by an auth failure must not freeze its tracks: once
// credentials work again the next run searches and matches them.
func TestRunAbortedRunRecoversNextRun(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = []models.RemoteCandidate{exactCandidate(track, "remote:track:aaa")}
	search.err = shared.ErrAuthFailed

	rec, store := testReconciler(t, search, nil)
	lib := libraryOf(track)

	if _, err := rec.Run(context.Background(), lib, nil); !errors.Is(err, shared.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}

	search.err = nil
	second, err := rec.Run(context.Background(), lib, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := second.Records["1"]; got.Status != models.StatusAuto || got.RemoteURI != "remote:track:aaa" {
		t.Errorf("track not rematched after recovery: %+v", got)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved["1"].Status != models.StatusAuto {
		t.Errorf("persisted status = %q, want auto-matched", saved["1"].Status)
	}
}

// An abort must not consume the retry flag or override input before the
// re-match actually happens.
func TestRunAbortPreservesRetryFlag(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = []models.RemoteCandidate{exactCandidate(track, "remote:track:new")}
	search.err = shared.ErrAuthFailed

	rec, store := testReconciler(t, search, nil)
	prior := map[string]models.MatchRecord{
		"1": {TrackID: "1", Artist: "deadmau5", Title: "Strobe", RemoteURI: "remote:track:old", Status: models.StatusAuto, Confidence: 0.95, Retry: true},
	}
	if err := store.Save(prior); err != nil {
		t.Fatal(err)
	}
	lib := libraryOf(track)

	if _, err := rec.Run(context.Background(), lib, nil); !errors.Is(err, shared.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !saved["1"].Retry {
		t.Errorf("retry flag consumed by aborted run: %+v", saved["1"])
	}
	if saved["1"].RemoteURI != "remote:track:old" {
		t.Errorf("prior match lost: %+v", saved["1"])
	}

	search.err = nil
	if _, err := rec.Run(context.Background(), lib, nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	saved, err = store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := saved["1"]; got.Retry || got.RemoteURI != "remote:track:new" {
		t.Errorf("retry not honored after recovery: %+v", got)
	}
}

// Cancelling before any search leaves the table exactly as loaded; brand-new
// tracks stay absent so the next run treats them as fresh.
func TestRunCancelledRunLeavesTableUntouched(t *testing.T) {
	known := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	fresh := models.LocalTrack{ID: "2", Title: "Opus", Artist: "Eric Prydz", Duration: 540}
	search := newFakeSearch()

	rec, store := testReconciler(t, search, nil)
	prior := map[string]models.MatchRecord{
		"1": {TrackID: "1", Artist: "deadmau5", Title: "Strobe", RemoteURI: "remote:track:old", Status: models.StatusAuto, Confidence: 0.95, Retry: true},
	}
	if err := store.Save(prior); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rec.Run(ctx, libraryOf(known, fresh), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if search.totalCalls() != 0 {
		t.Errorf("cancelled run searched %d times", search.totalCalls())
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := saved["1"]; !got.Retry || got.RemoteURI != "remote:track:old" {
		t.Errorf("prior record disturbed by cancelled run: %+v", got)
	}
	if _, ok := saved["2"]; ok {
		t.Errorf("unsearched new track persisted: %+v", saved["2"])
	}
}

func ambiguousCandidates(track models.LocalTrack) []models.RemoteCandidate {
	return []models.RemoteCandidate{
		exactCandidate(track, "remote:track:aaa"),
		exactCandidate(track, "remote:track:bbb"),
	}
}

func TestRunResolverChoice(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = ambiguousCandidates(track)

	resolver := &scriptedResolver{queue: []services.Resolution{
		{Kind: services.ResolutionChoose, URI: "remote:track:bbb"},
	}}
	rec, _ := testReconciler(t, search, resolver)

	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := result.Records["1"]
	if got.Status != models.StatusManual {
		t.Errorf("status = %q, want manual", got.Status)
	}
	if got.RemoteURI != "remote:track:bbb" {
		t.Errorf("URI = %q", got.RemoteURI)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}
}

func TestRunResolverNotAvailable(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = ambiguousCandidates(track)

	resolver := &scriptedResolver{queue: []services.Resolution{
		{Kind: services.ResolutionNotAvailable},
	}}
	rec, _ := testReconciler(t, search, resolver)

	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := result.Records["1"]
	if got.Status != models.StatusNotAvailable {
		t.Errorf("status = %q, want not-available", got.Status)
	}
	if got.RemoteURI != models.NotAvailableURI {
		t.Errorf("URI = %q, want sentinel", got.RemoteURI)
	}
}

func TestRunSkipRemainingStopsPrompting(t *testing.T) {
	trackA := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	trackB := models.LocalTrack{ID: "2", Title: "Opus", Artist: "Eric Prydz", Duration: 540}

	search := newFakeSearch()
	search.results["Strobe"] = ambiguousCandidates(trackA)
	search.results["Opus"] = ambiguousCandidates(trackB)

	resolver := &scriptedResolver{queue: []services.Resolution{
		{Kind: services.ResolutionSkipRemaining},
	}}
	rec, _ := testReconciler(t, search, resolver)

	result, err := rec.Run(context.Background(), libraryOf(trackA, trackB), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}
	if result.Ambiguous != 2 {
		t.Errorf("Ambiguous = %d, want 2", result.Ambiguous)
	}
}

func TestRunSkipLeavesAmbiguous(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Strobe", Artist: "deadmau5", Duration: 634}
	search := newFakeSearch()
	search.results["Strobe"] = ambiguousCandidates(track)

	rec, _ := testReconciler(t, search, services.SkipResolver{})
	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Records["1"].Status != models.StatusAmbiguous {
		t.Errorf("status = %q, want ambiguous", result.Records["1"].Status)
	}
}

func TestRunNoCandidatesStaysPending(t *testing.T) {
	track := models.LocalTrack{ID: "1", Title: "Obscurity", Artist: "Nobody"}
	search := newFakeSearch()

	rec, _ := testReconciler(t, search, nil)
	result, err := rec.Run(context.Background(), libraryOf(track), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Records["1"].Status != models.StatusPending {
		t.Errorf("status = %q, want pending", result.Records["1"].Status)
	}
	if result.Pending != 1 {
		t.Errorf("Pending = %d, want 1", result.Pending)
	}
}
