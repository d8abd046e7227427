package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"cratesync/internal/models"
	"cratesync/internal/repositories"
	"cratesync/internal/services"
	"cratesync/internal/shared"
	tu "cratesync/internal/testing"
)

func testLibrary() *models.Library {
	return &models.Library{
		Path: "/tmp/library.xml",
		Tracks: map[string]models.LocalTrack{
			"1": {ID: "1", Title: "Strobe", Artist: "deadmau5", Album: "For Lack of a Better Name", Duration: 225},
			"2": {ID: "2", Title: "Ghost Voices", Artist: "Virtual Self", Duration: 260},
		},
		Playlists: []models.LocalPlaylist{
			{Name: "Peak Time", Tracks: []string{"1", "2"}},
		},
	}
}

func testSearch() *tu.MockSearchService {
	return &tu.MockSearchService{
		Results: map[string][]models.RemoteCandidate{
			"Strobe": {
				{URI: "spotify:track:aaa", Title: "Strobe", Artist: "deadmau5", Album: "For Lack of a Better Name", Duration: 225},
			},
			"Ghost Voices": {
				{URI: "spotify:track:bbb", Title: "Ghost Voices", Artist: "Virtual Self", Duration: 260},
			},
		},
	}
}

// testRunner builds a runner wired entirely with doubles and an isolated
// data directory.
func testRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	t.Setenv("CRATESYNC_DATA_DIR", t.TempDir())

	config := shared.DefaultConfig()
	config.Library.ExportPath = "/tmp/library.xml"
	output := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Logger:    shared.NewLogger(&bytes.Buffer{}),
		Output:    output,
		Source:    &tu.MockLibrarySource{Library: testLibrary()},
		Search:    testSearch(),
		Playlists: &tu.MockPlaylistService{States: map[string]*models.RemotePlaylistState{}},
	})
	return runner, output
}

func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "cratesync", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"cratesync"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			source := &tu.MockLibrarySource{}
			search := &tu.MockSearchService{}
			playlists := &tu.MockPlaylistService{}
			resolver := &tu.MockResolver{}

			runner := NewRunner(RunnerOpts{
				Config:    config,
				Logger:    logger,
				Output:    output,
				Source:    source,
				Search:    search,
				Playlists: playlists,
				Resolver:  resolver,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.source != source {
				t.Error("expected source to be set")
			}
			if runner.search != search {
				t.Error("expected search to be set")
			}
			if runner.playlists != playlists {
				t.Error("expected playlists to be set")
			}
			if runner.resolver != resolver {
				t.Error("expected resolver to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("libraryPath", func(t *testing.T) {
		t.Run("errors without flag or config", func(t *testing.T) {
			runner, _ := testRunner(t)
			runner.config.Library.ExportPath = ""

			err := runApp(t, runner, "match")
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})
}

func TestRunnerInit(t *testing.T) {
	runner, output := testRunner(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := runApp(t, runner, "init", "--config", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
	if !strings.Contains(output.String(), "Created") {
		t.Errorf("expected creation message, got %q", output.String())
	}

	t.Run("refuses to overwrite", func(t *testing.T) {
		if err := runApp(t, runner, "init", "--config", path); err == nil {
			t.Error("expected error when config already exists")
		}
	})
}

func TestRunnerMatch(t *testing.T) {
	runner, output := testRunner(t)

	if err := runApp(t, runner, "match"); err != nil {
		t.Fatalf("match failed: %v", err)
	}

	text := output.String()
	if !strings.Contains(text, "Match Results") {
		t.Errorf("expected match header, got %q", text)
	}
	if !strings.Contains(text, "Matched: 2 (2 auto, 0 manual)") {
		t.Errorf("expected two auto matches, got %q", text)
	}

	t.Run("persists the match table", func(t *testing.T) {
		path, err := shared.MatchTablePath(runner.config.Library.ExportPath)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected match table at %s: %v", path, err)
		}
	})

	t.Run("writes a report file", func(t *testing.T) {
		report := filepath.Join(t.TempDir(), "report.csv")
		if err := runApp(t, runner, "match", "--report", report); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		data, err := os.ReadFile(report)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if !strings.Contains(string(data), "spotify:track:aaa") {
			t.Errorf("expected matched URI in report, got %q", data)
		}
	})
}

func TestRunnerSync(t *testing.T) {
	t.Run("creates and applies", func(t *testing.T) {
		runner, output := testRunner(t)

		if err := runApp(t, runner, "sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		text := output.String()
		if !strings.Contains(text, "Sync Results") {
			t.Errorf("expected sync header, got %q", text)
		}
		if !strings.Contains(text, "Peak Time") {
			t.Errorf("expected playlist name in report, got %q", text)
		}

		pmapPath, err := shared.PlaylistMapPath(runner.config.Library.ExportPath)
		if err != nil {
			t.Fatal(err)
		}
		mapping, err := repositories.NewPlaylistMap(pmapPath).Load()
		if err != nil {
			t.Fatal(err)
		}
		if mapping["Peak Time"] == "" {
			t.Errorf("expected Peak Time mapping, got %v", mapping)
		}
	})

	t.Run("dry run plans without recording", func(t *testing.T) {
		runner, output := testRunner(t)

		if err := runApp(t, runner, "sync", "--dry-run"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if !strings.Contains(output.String(), "Sync Plan (dry run)") {
			t.Errorf("expected dry run header, got %q", output.String())
		}

		pmapPath, err := shared.PlaylistMapPath(runner.config.Library.ExportPath)
		if err != nil {
			t.Fatal(err)
		}
		mapping, err := repositories.NewPlaylistMap(pmapPath).Load()
		if err != nil {
			t.Fatal(err)
		}
		if len(mapping) != 0 {
			t.Errorf("expected no recorded mapping after dry run, got %v", mapping)
		}
	})

	t.Run("skip-sync stops after matching", func(t *testing.T) {
		runner, output := testRunner(t)

		if err := runApp(t, runner, "sync", "--skip-sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		text := output.String()
		if !strings.Contains(text, "Skipping playlist sync") {
			t.Errorf("expected skip message, got %q", text)
		}
		if strings.Contains(text, "Sync Results") {
			t.Errorf("did not expect sync report, got %q", text)
		}
	})
}

func TestRunnerPlaylists(t *testing.T) {
	t.Run("list empty", func(t *testing.T) {
		runner, output := testRunner(t)

		if err := runApp(t, runner, "playlists", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No managed playlists") {
			t.Errorf("expected empty message, got %q", output.String())
		}
	})

	t.Run("list json", func(t *testing.T) {
		runner, output := testRunner(t)

		if err := runApp(t, runner, "playlists", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "{}") {
			t.Errorf("expected empty JSON object, got %q", output.String())
		}
	})

	t.Run("delete removes mapping", func(t *testing.T) {
		runner, output := testRunner(t)

		pmapPath, err := shared.PlaylistMapPath(runner.config.Library.ExportPath)
		if err != nil {
			t.Fatal(err)
		}
		pmap := repositories.NewPlaylistMap(pmapPath)
		if err := pmap.Save(map[string]string{"Peak Time": "pl-1"}); err != nil {
			t.Fatal(err)
		}

		if err := runApp(t, runner, "playlists", "delete", "Peak Time"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if !strings.Contains(output.String(), "Deleted Peak Time") {
			t.Errorf("expected delete confirmation, got %q", output.String())
		}

		mapping, err := pmap.Load()
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := mapping["Peak Time"]; ok {
			t.Errorf("expected mapping entry removed, got %v", mapping)
		}
	})

	t.Run("delete unknown playlist", func(t *testing.T) {
		runner, _ := testRunner(t)

		err := runApp(t, runner, "playlists", "delete", "Nope")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestRunnerCache(t *testing.T) {
	runner, output := testRunner(t)

	if err := runApp(t, runner, "cache", "stats"); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(output.String(), "Cached queries: 0") {
		t.Errorf("expected empty cache, got %q", output.String())
	}

	t.Run("match populates then clear empties", func(t *testing.T) {
		if err := runApp(t, runner, "match"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		output.Reset()
		if err := runApp(t, runner, "cache", "stats"); err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if !strings.Contains(output.String(), "Cached queries: 2") {
			t.Errorf("expected two cached queries, got %q", output.String())
		}

		if err := runApp(t, runner, "cache", "clear"); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		output.Reset()
		if err := runApp(t, runner, "cache", "stats"); err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if !strings.Contains(output.String(), "Cached queries: 0") {
			t.Errorf("expected cleared cache, got %q", output.String())
		}
	})
}

func TestRunnerAuthStatus(t *testing.T) {
	runner, output := testRunner(t)

	if err := runApp(t, runner, "auth", "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(output.String(), "Not authenticated") {
		t.Errorf("expected unauthenticated status, got %q", output.String())
	}
}

func TestRunnerMatchResolver(t *testing.T) {
	runner, output := testRunner(t)
	runner.search = &tu.MockSearchService{
		Results: map[string][]models.RemoteCandidate{
			"Strobe": {
				{URI: "spotify:track:a1", Title: "Strobe", Artist: "deadmau5", Duration: 225},
				{URI: "spotify:track:a2", Title: "Strobe", Artist: "deadmau5", Duration: 225},
			},
		},
	}
	runner.resolver = &tu.MockResolver{
		Result: services.Resolution{Kind: services.ResolutionChoose, URI: "spotify:track:a1"},
	}

	if err := runApp(t, runner, "match"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if !strings.Contains(output.String(), "(0 auto, 1 manual)") {
		t.Errorf("expected one manual match, got %q", output.String())
	}
}
