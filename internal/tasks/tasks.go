package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pomokey/pomokey/internal/fetch"
	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/repositories"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/services"
	"github.com/pomokey/pomokey/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	savedTracksPageSize = 50
	featureBatchSize    = 100
)

// AuthRequest carries the inputs for establishing a session.
//
// Code may be empty when a cached token is expected to still be valid.
type AuthRequest struct {
	Code        string
	RedirectURI string
}

// LoadResult summarizes a completed library fetch.
type LoadResult struct {
	TrackCount int  `json:"track_count"`
	Cached     bool `json:"cached"` // library was revalidated, not refetched
}

// GenerateRequest carries the inputs for one generation run.
type GenerateRequest struct {
	Name        string
	Description string
	Seed        int64 // 0 means derive from the clock
	Selection   selector.Request
}

// GenerateResult summarizes a published playlist.
type GenerateResult struct {
	PlaylistID       string          `json:"playlist_id"`
	PlaylistName     string          `json:"playlist_name"`
	SnapshotID       string          `json:"snapshot_id"`
	Created          bool            `json:"created"` // playlist was created rather than reused
	TrackCount       int             `json:"track_count"`
	TargetDurationMS int             `json:"target_duration_ms"`
	ActualDurationMS int             `json:"actual_duration_ms"`
	Seed             int64           `json:"seed"`
	Picks            []selector.Pick `json:"picks"`
}

// Engine holds the long-lived dependencies shared by all sessions.
type Engine struct {
	client      services.Client
	libraries   *repositories.LibraryRepository
	credentials *repositories.CredentialRepository
	cfg         shared.FetchConfig
	limiter     *rate.Limiter
	logger      *log.Logger
}

// NewEngine creates an Engine with the provided client and cache stores.
func NewEngine(client services.Client, libraries *repositories.LibraryRepository, credentials *repositories.CredentialRepository, cfg shared.FetchConfig, logger *log.Logger) *Engine {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.MaxParallel)
	}
	return &Engine{
		client:      client,
		libraries:   libraries,
		credentials: credentials,
		cfg:         cfg,
		limiter:     limiter,
		logger:      logger,
	}
}

// Session is the per-run pipeline state established by [Engine.Authenticate].
type Session struct {
	engine *Engine

	UserID      string
	DisplayName string
	Library     *models.Library
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// scheduler builds a fetch scheduler routing progress text to the channel.
func (e *Engine) scheduler(progress chan<- ProgressUpdate, phase Phase) *fetch.Scheduler {
	return &fetch.Scheduler{
		MaxParallel: e.cfg.MaxParallel,
		MaxAttempts: e.cfg.MaxAttempts,
		Backoff:     e.cfg.Backoff(),
		Limiter:     e.limiter,
		Logger:      e.logger,
		Notify: func(text string) {
			e.sendProgress(progress, fetchUpdate(phase, text))
		},
	}
}

// Authenticate establishes a session for the current user.
//
// A cached unexpired token is reused without a network round trip; otherwise
// the authorization code is exchanged for a fresh token. A missing code with
// no usable cached token yields [shared.ErrMissingCredentials], signalling
// the caller to re-prompt for authorization.
func (e *Engine) Authenticate(ctx context.Context, progress chan<- ProgressUpdate, req AuthRequest) (*Session, error) {
	if e.client == nil {
		return nil, fmt.Errorf("%w: Spotify client not initialized", shared.ErrMissingConfig)
	}

	e.sendProgress(progress, authenticatingUpdate())

	creds := e.credentials.Load()
	switch {
	case req.Code != "":
		token, err := e.client.ExchangeCode(ctx, req.Code, req.RedirectURI)
		if err != nil {
			return nil, err
		}
		e.client.SetToken(token)
		if err := e.credentials.Save(repositories.Credentials{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}); err != nil && e.logger != nil {
			e.logger.Warn("failed to cache access token", "error", err)
		}
	case creds.Valid():
		e.client.SetToken(&oauth2.Token{AccessToken: creds.AccessToken, Expiry: creds.ExpiresAt})
	default:
		return nil, fmt.Errorf("%w: no cached token and no authorization code", shared.ErrMissingCredentials)
	}

	user, err := e.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	library := e.libraries.Load(user.ID)

	e.sendProgress(progress, authenticatedUpdate(user.DisplayName, len(library.Tracks)))

	return &Session{
		engine:      e,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Library:     library,
	}, nil
}

// LoadTracks fetches the user's saved tracks and their audio features,
// merges them, and persists the result as the session's library.
//
// The cached revalidation token rides along on every saved-tracks page
// request; a not-modified response keeps the cached library in full,
// including previously merged features.
func (s *Session) LoadTracks(ctx context.Context, progress chan<- ProgressUpdate) (*LoadResult, error) {
	e := s.engine

	trackRes, err := fetch.Pages(ctx, e.scheduler(progress, FetchTracks), fetch.Options{
		Label:    "tracks",
		PageSize: savedTracksPageSize,
		ETag:     s.Library.ETag,
	}, func(ctx context.Context, offset, limit int, etag string) (fetch.Page[models.Track], error) {
		return e.client.SavedTracks(ctx, offset, limit, etag)
	})
	if err != nil {
		return nil, err
	}

	if trackRes.NotModified {
		e.sendProgress(progress, cachedLibraryUpdate(len(s.Library.Tracks)))
		return &LoadResult{TrackCount: len(s.Library.Tracks), Cached: true}, nil
	}

	tracks := trackRes.Items
	if len(tracks) > 0 {
		ids := make([]string, len(tracks))
		for i, t := range tracks {
			ids[i] = t.ID
		}

		featureRes, err := fetch.Pages(ctx, e.scheduler(progress, FetchFeatures), fetch.Options{
			Label:        "features",
			PageSize:     featureBatchSize,
			InitialTotal: len(ids),
		}, func(ctx context.Context, offset, limit int, etag string) (fetch.Page[*models.AudioFeature], error) {
			end := offset + limit
			if end > len(ids) {
				end = len(ids)
			}
			page, err := e.client.AudioFeatures(ctx, ids[offset:end], etag)
			if err != nil {
				return page, err
			}
			page.Total = len(ids)
			return page, nil
		})
		if err != nil {
			return nil, err
		}

		// Feature batches arrive in issuance order, so index i of the merged
		// result describes track i.
		for i := range tracks {
			if i < len(featureRes.Items) {
				tracks[i].Apply(featureRes.Items[i])
			}
		}
	}

	s.Library = &models.Library{Tracks: tracks, ETag: trackRes.ETag}
	if err := e.libraries.Save(s.UserID, s.Library); err != nil {
		return nil, err
	}

	e.sendProgress(progress, libraryLoadedUpdate(len(tracks)))
	return &LoadResult{TrackCount: len(tracks)}, nil
}

// Generate selects tracks from the session's library and publishes them as a
// Spotify playlist, reusing an existing playlist with the same name when one
// exists.
func (s *Session) Generate(ctx context.Context, progress chan<- ProgressUpdate, req GenerateRequest) (*GenerateResult, error) {
	e := s.engine

	if len(s.Library.Tracks) == 0 {
		return nil, fmt.Errorf("%w: library is empty, load tracks first", shared.ErrInvalidArgument)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	step := 0
	selection := selector.Build(rand.New(rand.NewSource(seed)), s.Library.Tracks, req.Selection, func(text string) {
		step++
		e.sendProgress(progress, selectionUpdate(step, text))
	})

	if len(selection.URIs) == 0 {
		return nil, fmt.Errorf("no tracks matched the constraints - cannot publish an empty playlist")
	}

	e.sendProgress(progress, publishingUpdate(req.Name))

	result := &GenerateResult{
		PlaylistName:     req.Name,
		TrackCount:       len(selection.URIs),
		TargetDurationMS: req.Selection.TargetDurationMS,
		ActualDurationMS: selection.DurationMS,
		Seed:             seed,
		Picks:            selection.Picks,
	}

	playlists, err := e.client.Playlists(ctx)
	if err != nil {
		return nil, err
	}

	var target *services.SpotifyPlaylist
	for i := range playlists {
		if playlists[i].Name == req.Name {
			target = &playlists[i]
			break
		}
	}

	if target == nil {
		description := req.Description
		if description == "" {
			description = fmt.Sprintf("%s %s pomodoro mix (%s)", selector.KeyLabel(req.Selection.Key), selector.ModeLabel(req.Selection.Mode), req.Selection.Strategy)
		}
		created, err := e.client.CreatePlaylist(ctx, s.UserID, req.Name, description)
		if err != nil {
			return nil, err
		}
		target = created
		result.Created = true
	}
	result.PlaylistID = target.ID

	snapshot, err := e.client.ReplacePlaylistTracks(ctx, target.Tracks.Href, selection.URIs)
	if err != nil {
		return nil, err
	}
	result.SnapshotID = snapshot

	e.sendProgress(progress, publishedUpdate(result))
	return result, nil
}
