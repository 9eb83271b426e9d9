package main

import (
	"context"
	"os"

	"github.com/pomokey/pomokey/internal/services"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var client services.Client
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			svc.SetTimeout(config.Fetch.RequestTimeout())
			client = svc
		} else {
			logger.Warn("failed to create Spotify client", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Client: client,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "pomokey",
		Usage:    "Generate key-aware pomodoro playlists from your Spotify library",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
