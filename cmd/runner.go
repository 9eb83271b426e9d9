package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/pomokey/pomokey/internal/repositories"
	"github.com/pomokey/pomokey/internal/services"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/pomokey/pomokey/internal/tasks"
	"github.com/pomokey/pomokey/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	client services.Client
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Client services.Client
	Logger *log.Logger
	Output io.Writer
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
		config: opts.Config,
		client: opts.Client,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, loadCommand, generateCommand, libraryCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
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

// pipeline bundles the per-command database handle with the repositories and
// engine built on top of it.
type pipeline struct {
	db          *sql.DB
	libraries   *repositories.LibraryRepository
	credentials *repositories.CredentialRepository
	engine      *tasks.Engine
}

func (p *pipeline) Close() error {
	return p.db.Close()
}

// openPipeline opens the configured database and wires the generation engine.
//
// Callers own the returned pipeline and must Close it.
func (r *Runner) openPipeline() (*pipeline, error) {
	if r.client == nil {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingConfig)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run 'pomokey setup' first): %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	libraries := repositories.NewLibraryRepository(db, r.logger)
	credentials := repositories.NewCredentialRepository(db)
	engine := tasks.NewEngine(r.client, libraries, credentials, r.config.Fetch, r.logger)

	return &pipeline{
		db:          db,
		libraries:   libraries,
		credentials: credentials,
		engine:      engine,
	}, nil
}

// establishSession authenticates with the cached token, falling back to the
// browser authorization flow when no usable token exists.
func (r *Runner) establishSession(ctx context.Context, p *pipeline) (*tasks.Session, error) {
	session, err := p.engine.Authenticate(ctx, nil, tasks.AuthRequest{})
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, shared.ErrMissingCredentials) && !errors.Is(err, shared.ErrTokenExpired) {
		return nil, err
	}

	oauthSrv, ok := r.client.(services.OAuthService)
	if !ok {
		return nil, err
	}

	token, err := r.doOAuth(oauthSrv, "authorization")
	if err != nil {
		return nil, err
	}

	r.client.SetToken(token)
	creds := repositories.Credentials{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}
	if err := p.credentials.Save(creds); err != nil {
		r.logger.Warn("failed to cache access token", "error", err)
	}

	return p.engine.Authenticate(ctx, nil, tasks.AuthRequest{})
}

// runOperation executes a pipeline operation under either the TUI progress
// view or plain line-by-line output.
func (r *Runner) runOperation(ctx context.Context, title string, useTUI bool, op ui.Operation) (any, error) {
	if useTUI {
		model := ui.NewModel(ctx, title, op)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return nil, fmt.Errorf("failed to run progress view: %w", err)
		}
		return model.Result()
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Message != "" {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := op(ctx, progress)
	close(progress)
	<-done
	return result, err
}
