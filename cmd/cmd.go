// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func libraryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "library",
		Aliases: []string{"l"},
		Usage:   "Path to the library export (overrides library.export_path)",
	}
}

// initCommand writes a starter configuration file.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create a starter config.toml",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Init,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage streaming-service authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check current authentication state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// matchCommand reconciles the library against the match table without
// touching remote playlists.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match library tracks against the streaming service",
		Flags: []cli.Flag{
			configFlag(),
			libraryFlag(),
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Prompt for tracks the matcher cannot decide",
			},
			&cli.BoolFlag{
				Name:  "force-refresh",
				Usage: "Ignore the search cache for this run",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write a match report (.csv, .md, .json, or plain text)",
			},
		},
		Action: r.Match,
	}
}

// syncCommand runs the full pipeline: match, then push playlists.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Match the library and push playlists to the streaming service",
		Flags: []cli.Flag{
			configFlag(),
			libraryFlag(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Compute and print edits without applying them",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Clear and rebuild remote playlists instead of minimal edits",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Prompt for tracks the matcher cannot decide",
			},
			&cli.BoolFlag{
				Name:  "force-refresh",
				Usage: "Ignore the search cache for this run",
			},
			&cli.BoolFlag{
				Name:  "skip-sync",
				Usage: "Stop after matching, do not touch playlists",
			},
			&cli.BoolFlag{
				Name:  "collection",
				Usage: "Maintain the aggregate collection playlist",
			},
			&cli.BoolFlag{
				Name:  "include-loose",
				Usage: "Collection playlist also gets tracks in no playlist",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Created playlists are public",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write a match report (.csv, .md, .json, or plain text)",
			},
		},
		Action: r.Sync,
	}
}

// playlistsCommand inspects and manages remote playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Remote playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List playlists this tool manages",
				Flags: []cli.Flag{
					configFlag(),
					libraryFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "delete",
				Usage: "Delete a managed remote playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					configFlag(),
					libraryFlag(),
				},
				Action: r.PlaylistsDelete,
			},
		},
	}
}

// cacheCommand manages the local search cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local search cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cached query count",
				Flags:  []cli.Flag{configFlag(), libraryFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Drop all cached search results",
				Flags:  []cli.Flag{configFlag(), libraryFlag()},
				Action: r.CacheClear,
			},
		},
	}
}
