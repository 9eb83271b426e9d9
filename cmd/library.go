package main

import (
	"context"

	"github.com/pomokey/pomokey/internal/formatter"
	"github.com/urfave/cli/v3"
)

// LibraryShow summarizes the cached library for the authenticated user.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	session, err := r.establishSession(ctx, p)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(session.Library, true)
	}

	text, err := formatter.LibraryToText(session.Library)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

// LibraryClear drops the cached library record, forcing the next load to
// refetch everything.
func (r *Runner) LibraryClear(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	session, err := r.establishSession(ctx, p)
	if err != nil {
		return err
	}

	if err := p.libraries.Clear(session.UserID); err != nil {
		return err
	}
	r.writePlain("✓ Cached library cleared for %s\n", session.DisplayName)
	return nil
}
