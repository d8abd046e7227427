// package matcher scores remote search candidates against local tracks and
// decides auto-match vs ambiguous vs pending.
//
// Scoring is pure, synchronous computation: no I/O, no suspension. Weights and
// thresholds come from [shared.MatchingConfig] rather than constants buried in
// the logic.
package matcher

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"cratesync/internal/models"
	"cratesync/internal/shared"
)

// Outcome is the decision for one local track given its ranked candidates.
type Outcome int

const (
	// OutcomePending covers both "no candidates" and "nothing above the
	// minimum-consider threshold".
	OutcomePending Outcome = iota
	// OutcomeAuto means the top candidate cleared the auto-accept threshold
	// with sufficient separation and a plausible duration.
	OutcomeAuto
	// OutcomeAmbiguous means candidates exist but a human has to pick.
	OutcomeAmbiguous
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuto:
		return "auto"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "pending"
	}
}

// Scored pairs a candidate with its confidence and the duration gate result.
type Scored struct {
	Candidate  models.RemoteCandidate
	Score      float64
	DurationOK bool
}

// Decision is the full result of ranking one track's candidates.
type Decision struct {
	Outcome Outcome
	Ranked  []Scored // best first, deterministic order
}

// Best returns the top-ranked candidate, or nil when there were none.
func (d Decision) Best() *Scored {
	if len(d.Ranked) == 0 {
		return nil
	}
	return &d.Ranked[0]
}

// Engine scores candidates using configured weights and thresholds.
type Engine struct {
	cfg shared.MatchingConfig
	sim *metrics.JaroWinkler
}

// New creates an Engine. Zero-valued config fields fall back to the embedded
// defaults so a partially filled config file still behaves sanely.
func New(cfg shared.MatchingConfig) *Engine {
	def := shared.DefaultConfig().Matching
	if cfg.TitleWeight+cfg.ArtistWeight+cfg.DurationWeight == 0 {
		cfg.TitleWeight = def.TitleWeight
		cfg.ArtistWeight = def.ArtistWeight
		cfg.DurationWeight = def.DurationWeight
	}
	if cfg.AutoAccept == 0 {
		cfg.AutoAccept = def.AutoAccept
	}
	if cfg.MinConsider == 0 {
		cfg.MinConsider = def.MinConsider
	}
	if cfg.MinSeparation == 0 {
		cfg.MinSeparation = def.MinSeparation
	}
	if cfg.DurationTolerance == 0 {
		cfg.DurationTolerance = def.DurationTolerance
	}
	if cfg.DurationFalloff == 0 {
		cfg.DurationFalloff = def.DurationFalloff
	}
	if cfg.DurationPenalty == 0 {
		cfg.DurationPenalty = def.DurationPenalty
	}
	if cfg.ResultsPerQuery == 0 {
		cfg.ResultsPerQuery = def.ResultsPerQuery
	}
	if cfg.SearchConcurrency == 0 {
		cfg.SearchConcurrency = def.SearchConcurrency
	}
	if cfg.SearchesPerSecond == 0 {
		cfg.SearchesPerSecond = def.SearchesPerSecond
	}
	return &Engine{cfg: cfg, sim: metrics.NewJaroWinkler()}
}

// Config returns the effective configuration after defaulting.
func (e *Engine) Config() shared.MatchingConfig { return e.cfg }

// Score computes the confidence in [0,1] that candidate is the same recording
// as local. The combined score is a weighted sum of title similarity, artist
// similarity, and a duration-closeness term.
func (e *Engine) Score(local models.LocalTrack, candidate models.RemoteCandidate) Scored {
	title := e.titleSimilarity(local.Title, candidate.Title)
	artist := e.artistSimilarity(local.Artist, candidate.Artist)
	duration, ok := e.durationCloseness(local.Duration, candidate.Duration)

	total := e.cfg.TitleWeight + e.cfg.ArtistWeight + e.cfg.DurationWeight
	score := (title*e.cfg.TitleWeight + artist*e.cfg.ArtistWeight + duration*e.cfg.DurationWeight) / total

	return Scored{Candidate: candidate, Score: score, DurationOK: ok}
}

// titleSimilarity is the best pairwise similarity across the normalized
// variants of both titles (raw, featuring-stripped, suffix-stripped).
func (e *Engine) titleSimilarity(local, remote string) float64 {
	best := 0.0
	for _, lv := range TitleVariants(local) {
		for _, rv := range TitleVariants(remote) {
			if s := strutil.Similarity(lv, rv, e.sim); s > best {
				best = s
			}
		}
	}
	return best
}

// artistSimilarity is the best pairwise similarity across the split artist
// lists, so "A feat. B" matches a candidate credited to "B".
func (e *Engine) artistSimilarity(local, remote string) float64 {
	best := 0.0
	for _, la := range SplitArtists(local) {
		for _, ra := range SplitArtists(remote) {
			if s := strutil.Similarity(la, ra, e.sim); s > best {
				best = s
			}
		}
	}
	return best
}

// durationCloseness maps the duration difference to [0,1]. Within tolerance the
// term is 1; beyond it the term falls off sharply and the candidate is flagged
// so the decision step can never auto-accept it. Unknown durations (zero) are
// treated as neutral since nothing can be concluded from them.
func (e *Engine) durationCloseness(local, remote int) (float64, bool) {
	if local == 0 || remote == 0 {
		return 1, true
	}
	diff := local - remote
	if diff < 0 {
		diff = -diff
	}
	if diff <= e.cfg.DurationTolerance {
		return 1, true
	}
	excess := float64(diff - e.cfg.DurationTolerance)
	term := 1 - excess/e.cfg.DurationFalloff
	if term < 0 {
		term = 0
	}
	// wrong edit or remix; strongest signal of a bad match
	return term * e.cfg.DurationPenalty, false
}

// Rank scores and orders candidates best-first. Candidates are deduplicated by
// URI. The order is deterministic: equal scores prefer the candidate whose
// album matches the local track, then the lexically smaller URI.
func (e *Engine) Rank(local models.LocalTrack, candidates []models.RemoteCandidate) []Scored {
	seen := map[string]bool{}
	ranked := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if c.URI == "" || seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		ranked = append(ranked, e.Score(local, c))
	}

	localAlbum := Normalize(local.Album)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aAlbum := localAlbum != "" && Normalize(a.Candidate.Album) == localAlbum
		bAlbum := localAlbum != "" && Normalize(b.Candidate.Album) == localAlbum
		if aAlbum != bAlbum {
			return aAlbum
		}
		return strings.Compare(a.Candidate.URI, b.Candidate.URI) < 0
	})
	return ranked
}

// Decide ranks the candidates and applies the decision policy:
//
//   - no candidates → pending
//   - top score ≥ auto-accept, margin over the runner-up ≥ minimum separation,
//     and duration within tolerance → auto
//   - top score ≥ minimum-consider but short of auto criteria → ambiguous
//   - otherwise → pending
func (e *Engine) Decide(local models.LocalTrack, candidates []models.RemoteCandidate) Decision {
	ranked := e.Rank(local, candidates)
	if len(ranked) == 0 {
		return Decision{Outcome: OutcomePending}
	}

	best := ranked[0]
	if best.Score < e.cfg.MinConsider {
		return Decision{Outcome: OutcomePending, Ranked: ranked}
	}

	separated := true
	if len(ranked) > 1 && best.Score-ranked[1].Score < e.cfg.MinSeparation {
		separated = false
	}

	if best.Score >= e.cfg.AutoAccept && best.DurationOK && separated {
		return Decision{Outcome: OutcomeAuto, Ranked: ranked}
	}
	return Decision{Outcome: OutcomeAmbiguous, Ranked: ranked}
}
