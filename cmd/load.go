package main

import (
	"context"

	"github.com/pomokey/pomokey/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Load fetches the user's saved tracks and audio features into the cache.
//
// Authorization happens before the progress view starts so the browser flow
// never fights the TUI for the terminal.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) error {
	useTUI := cmd.Bool("tui")
	useJSON := cmd.Bool("json")

	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	session, err := r.establishSession(ctx, p)
	if err != nil {
		return err
	}

	result, err := r.runOperation(ctx, "Loading library", useTUI, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error) {
		return session.LoadTracks(ctx, progress)
	})
	if err != nil {
		return err
	}

	loaded, ok := result.(*tasks.LoadResult)
	if !ok {
		return nil
	}

	if useJSON {
		return r.writeJSON(loaded, true)
	}
	if useTUI {
		return nil
	}

	if loaded.Cached {
		r.writePlainln("✓ Library unchanged (%d cached tracks)", loaded.TrackCount)
	} else {
		r.writePlainln("✓ Loaded %d tracks", loaded.TrackCount)
	}
	return nil
}
