package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library     LibraryConfig     `toml:"library"`
	Credentials CredentialsConfig `toml:"credentials"`
	Matching    MatchingConfig    `toml:"matching"`
	Sync        SyncConfig        `toml:"sync"`
}

// LibraryConfig locates the DJ-library export.
type LibraryConfig struct {
	ExportPath string `toml:"export_path"`
}

// CredentialsConfig contains streaming-service credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// MatchingConfig holds the scoring weights and thresholds for the matching
// engine. Every knob lives here rather than in the scoring logic.
type MatchingConfig struct {
	TitleWeight       float64 `toml:"title_weight"`        // default 0.45
	ArtistWeight      float64 `toml:"artist_weight"`       // default 0.35
	DurationWeight    float64 `toml:"duration_weight"`     // default 0.20
	AutoAccept        float64 `toml:"auto_accept"`         // score >= this auto-matches
	MinConsider       float64 `toml:"min_consider"`        // below this the track stays pending
	MinSeparation     float64 `toml:"min_separation"`      // required margin over the runner-up
	DurationTolerance int     `toml:"duration_tolerance"`  // seconds; beyond it a candidate can never auto-match
	DurationFalloff   float64 `toml:"duration_falloff"`    // seconds past tolerance at which the duration term reaches zero
	DurationPenalty   float64 `toml:"duration_penalty"`    // factor applied to the duration term outside tolerance
	ResultsPerQuery   int     `toml:"results_per_query"`   // candidates requested per search
	SearchConcurrency int     `toml:"search_concurrency"`  // worker pool size for lookups
	SearchesPerSecond float64 `toml:"searches_per_second"` // rate limit for remote searches
}

// SyncConfig holds the run-level toggles for a sync invocation.
//
// Validated once at run start and passed by value into each component.
type SyncConfig struct {
	DryRun       bool `toml:"dry_run"`       // compute everything, mutate nothing
	Overwrite    bool `toml:"overwrite"`     // clear and rebuild remote playlists verbatim
	IncludeLoose bool `toml:"include_loose"` // collection playlist also gets tracks in no playlist
	SkipSync     bool `toml:"skip_sync"`     // match only, no playlist writes
	ForceRefresh bool `toml:"force_refresh"` // treat every search-cache lookup as a miss
	Interactive  bool `toml:"interactive"`   // prompt for ambiguous/pending tracks
	Public       bool `toml:"public"`        // created playlists are public
	Collection   bool `toml:"collection"`    // maintain the aggregate collection playlist
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the matching knobs for configurations the engine cannot run with.
func (c *Config) Validate() error {
	m := c.Matching
	if m.AutoAccept < m.MinConsider {
		return fmt.Errorf("%w: auto_accept (%v) below min_consider (%v)", ErrInvalidConfig, m.AutoAccept, m.MinConsider)
	}
	if m.AutoAccept > 1 || m.MinConsider < 0 {
		return fmt.Errorf("%w: thresholds must stay within [0,1]", ErrInvalidConfig)
	}
	if m.TitleWeight < 0 || m.ArtistWeight < 0 || m.DurationWeight < 0 {
		return fmt.Errorf("%w: negative scoring weight", ErrInvalidConfig)
	}
	if m.TitleWeight+m.ArtistWeight+m.DurationWeight == 0 {
		return fmt.Errorf("%w: all scoring weights are zero", ErrInvalidConfig)
	}
	if m.DurationTolerance < 0 {
		return fmt.Errorf("%w: negative duration tolerance", ErrInvalidConfig)
	}
	if m.DurationFalloff < 0 {
		return fmt.Errorf("%w: negative duration falloff", ErrInvalidConfig)
	}
	if m.DurationPenalty < 0 || m.DurationPenalty > 1 {
		return fmt.Errorf("%w: duration penalty must stay within [0,1]", ErrInvalidConfig)
	}
	if c.Sync.Overwrite && c.Sync.SkipSync {
		return fmt.Errorf("%w: overwrite has no effect with skip_sync", ErrInvalidFlag)
	}
	return nil
}
