package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pomokey/pomokey/internal/formatter"
	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/pomokey/pomokey/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate selects tracks from the cached library and publishes them as a
// Spotify playlist.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	useTUI := cmd.Bool("tui")
	useJSON := cmd.Bool("json")

	req, err := buildGenerateRequest(cmd)
	if err != nil {
		return err
	}

	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	session, err := r.establishSession(ctx, p)
	if err != nil {
		return err
	}

	result, err := r.runOperation(ctx, "Generating playlist", useTUI, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error) {
		return session.Generate(ctx, progress, req)
	})
	if err != nil {
		return err
	}

	generated, ok := result.(*tasks.GenerateResult)
	if !ok {
		return nil
	}

	if cmd.Bool("export") || cmd.String("output") != "" {
		export, err := formatter.WriteSelectionExport(generated, cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Info("export written", "tracks", export.TracksFile, "summary", export.SummaryFile)
	}

	if useJSON {
		return r.writeJSON(generated, true)
	}
	if useTUI {
		return nil
	}

	text, err := formatter.SelectionToText(generated)
	if err != nil {
		return err
	}
	r.writePlain("\n%s", text)
	return nil
}

// buildGenerateRequest assembles a generation request from command flags.
func buildGenerateRequest(cmd *cli.Command) (tasks.GenerateRequest, error) {
	var req tasks.GenerateRequest

	key, err := parseKeyFlag(cmd.String("key"))
	if err != nil {
		return req, err
	}
	mode, err := parseModeFlag(cmd.String("mode"))
	if err != nil {
		return req, err
	}
	strategy, err := models.ParseStrategy(cmd.String("strategy"))
	if err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	maxTrackMS := int(cmd.Int("max-track")) * 1000
	if maxTrackMS <= 0 {
		maxTrackMS = 1 << 30
	}
	maxEnergy := cmd.Float("max-energy")
	if maxEnergy <= 0 {
		maxEnergy = models.EnergyUnknown
	}

	req = tasks.GenerateRequest{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		Seed:        int64(cmd.Int("seed")),
		Selection: selector.Request{
			Key:              key,
			Mode:             mode,
			Strategy:         strategy,
			ToggleMajorMinor: cmd.Bool("toggle"),
			TargetDurationMS: int(cmd.Int("duration")) * 60 * 1000,
			MinTrackMS:       int(cmd.Int("min-track")) * 1000,
			MaxTrackMS:       maxTrackMS,
			MinEnergy:        cmd.Float("min-energy"),
			MaxEnergy:        maxEnergy,
		},
	}

	if req.Selection.TargetDurationMS <= 0 {
		return req, fmt.Errorf("%w: duration must be positive", shared.ErrInvalidArgument)
	}
	return req, nil
}

func parseKeyFlag(name string) (int, error) {
	if name == "" || strings.EqualFold(name, "all") {
		return models.Any, nil
	}
	for i, k := range models.KeyNames {
		if k == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown key %q (expected one of %s)", shared.ErrInvalidArgument, name, strings.Join(models.KeyNames, ", "))
}

func parseModeFlag(name string) (int, error) {
	if name == "" || strings.EqualFold(name, "all") {
		return models.Any, nil
	}
	for i, m := range models.ModeNames {
		if strings.EqualFold(m, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q (expected Major or minor)", shared.ErrInvalidArgument, name)
}
