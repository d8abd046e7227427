package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"cratesync/internal/matcher"
	"cratesync/internal/repositories"
	"cratesync/internal/services"
	"cratesync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil are constructed from the configuration on first use,
// so tests can inject doubles for any of them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	source    services.LibrarySource
	search    services.SearchService
	playlists services.PlaylistService
	resolver  services.Resolver

	db *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer

	Source    services.LibrarySource
	Search    services.SearchService
	Playlists services.PlaylistService
	Resolver  services.Resolver
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		source:     opts.Source,
		search:     opts.Search,
		playlists:  opts.Playlists,
		resolver:   opts.Resolver,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, authCommand, matchCommand, syncCommand, playlistsCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig re-reads the config file named by the --config flag, falling
// back to the current configuration when the file does not exist.
func (r *Runner) reloadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = path
	return nil
}

// libraryPath resolves the export path from the flag or the configuration.
func (r *Runner) libraryPath(cmd *cli.Command) (string, error) {
	if path := cmd.String("library"); path != "" {
		return path, nil
	}
	if r.config.Library.ExportPath != "" {
		return r.config.Library.ExportPath, nil
	}
	return "", fmt.Errorf("%w: no library export path (flag --library or library.export_path)", shared.ErrMissingArgument)
}

// librarySource returns the injected source or a rekordbox reader for path.
func (r *Runner) librarySource(path string) services.LibrarySource {
	if r.source != nil {
		return r.source
	}
	return services.NewRekordboxSource(path, r.logger)
}

// connect authenticates against the streaming service once and caches the
// resulting client for both search and playlist operations.
func (r *Runner) connect(ctx context.Context) error {
	if r.search != nil && r.playlists != nil {
		return nil
	}

	client, err := services.Authenticate(ctx, r.config.Credentials.Spotify, r.logger)
	if err != nil {
		return err
	}
	svc, err := services.NewSpotifyService(ctx, client, services.SpotifyOpts{
		ResultsPerQuery: r.config.Matching.ResultsPerQuery,
		Logger:          r.logger,
	})
	if err != nil {
		return err
	}

	if r.search == nil {
		r.search = svc
	}
	if r.playlists == nil {
		r.playlists = svc
	}
	return nil
}

// matchStore opens the CSV match table tied to the library export.
func (r *Runner) matchStore(libraryPath string) (*repositories.MatchStore, error) {
	path, err := shared.MatchTablePath(libraryPath)
	if err != nil {
		return nil, err
	}
	return repositories.NewMatchStore(path, services.ParseTrackURL, r.logger), nil
}

// searchCache opens the sqlite search cache tied to the library export.
func (r *Runner) searchCache(libraryPath string) (*repositories.SearchCache, error) {
	path, err := shared.SearchCachePath(libraryPath)
	if err != nil {
		return nil, err
	}
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	r.db = db
	return repositories.NewSearchCache(db, r.config.Sync.ForceRefresh)
}

// playlistMap opens the local-name → remote-id map tied to the library export.
func (r *Runner) playlistMap(libraryPath string) (*repositories.PlaylistMap, error) {
	path, err := shared.PlaylistMapPath(libraryPath)
	if err != nil {
		return nil, err
	}
	return repositories.NewPlaylistMap(path), nil
}

// close releases the cache database if one was opened.
func (r *Runner) close() {
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

// engine builds the matching engine from the validated configuration.
func (r *Runner) engine() *matcher.Engine {
	return matcher.New(r.config.Matching)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
