// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes configuration and the local cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached access token state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Discard the cached access token",
				Action: r.AuthLogout,
			},
		},
	}
}

// loadCommand fetches the user's saved tracks and audio features into the cache.
func loadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Fetch and cache your saved tracks with audio features",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in an interactive view",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output result as JSON",
			},
		},
		Action: r.Load,
	}
}

// generateCommand selects tracks and publishes them as a playlist.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate and publish a pomodoro playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "Playlist name (reused when it already exists)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Playlist description (only used when creating)",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Starting key (C, C#, D, Eb, E, F, Gb, G, Ab, A, Bb, B, or 'all')",
				Value: "all",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Starting mode (Major, minor, or 'all')",
				Value: "all",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Key modulation strategy (+5, +6, +0, explicit)",
				Value: "+5",
			},
			&cli.BoolFlag{
				Name:  "toggle",
				Usage: "Alternate between Major and minor on every other pick",
			},
			&cli.IntFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Target playlist duration in minutes",
				Value:   25,
			},
			&cli.IntFlag{
				Name:  "min-track",
				Usage: "Minimum track length in seconds",
			},
			&cli.IntFlag{
				Name:  "max-track",
				Usage: "Maximum track length in seconds (0 for no limit)",
			},
			&cli.FloatFlag{
				Name:  "min-energy",
				Usage: "Minimum track energy (0.0 to 1.0)",
			},
			&cli.FloatFlag{
				Name:  "max-energy",
				Usage: "Maximum track energy (0 for no limit)",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Random seed for reproducible selection (0 derives one from the clock)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Base path for CSV and JSON export files",
			},
			&cli.BoolFlag{
				Name:  "export",
				Usage: "Write CSV and JSON export files",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in an interactive view",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output result as JSON",
			},
		},
		Action: r.Generate,
	}
}

// libraryCommand inspects and manages the cached library.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Inspect the cached track library",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Summarize cached tracks with a key histogram",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw library JSON",
					},
				},
				Action: r.LibraryShow,
			},
			{
				Name:   "clear",
				Usage:  "Drop the cached library and revalidation token",
				Action: r.LibraryClear,
			},
		},
	}
}

// serveCommand runs the web UI and session API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web client and session API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
		},
		Action: r.Serve,
	}
}
