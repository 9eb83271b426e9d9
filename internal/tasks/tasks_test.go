package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pomokey/pomokey/internal/fetch"
	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/repositories"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/services"
	"github.com/pomokey/pomokey/internal/shared"
	"golang.org/x/oauth2"
)

// fakeClient implements services.Client against in-memory data.
type fakeClient struct {
	mu sync.Mutex

	token       *oauth2.Token
	exchangeErr error
	user        services.SpotifyUser

	tracks      []models.Track
	features    map[string]*models.AudioFeature
	trackETag   string
	notModified bool

	playlists []services.SpotifyPlaylist
	replaced  map[string][]string

	savedOffsets []int
	createdNames []string
}

func (f *fakeClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "exchanged-" + code, Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeClient) SetToken(token *oauth2.Token) {
	f.token = token
}

func (f *fakeClient) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	u := f.user
	return &u, nil
}

func (f *fakeClient) SavedTracks(ctx context.Context, offset, limit int, etag string) (fetch.Page[models.Track], error) {
	f.mu.Lock()
	f.savedOffsets = append(f.savedOffsets, offset)
	f.mu.Unlock()

	if f.notModified && etag != "" {
		return fetch.Page[models.Track]{NotModified: true}, nil
	}

	end := offset + limit
	if end > len(f.tracks) {
		end = len(f.tracks)
	}
	var items []models.Track
	if offset < len(f.tracks) {
		items = append(items, f.tracks[offset:end]...)
	}
	return fetch.Page[models.Track]{Items: items, Total: len(f.tracks), ETag: f.trackETag}, nil
}

func (f *fakeClient) AudioFeatures(ctx context.Context, ids []string, etag string) (fetch.Page[*models.AudioFeature], error) {
	items := make([]*models.AudioFeature, len(ids))
	for i, id := range ids {
		items[i] = f.features[id]
	}
	return fetch.Page[*models.AudioFeature]{Items: items}, nil
}

func (f *fakeClient) Playlists(ctx context.Context) ([]services.SpotifyPlaylist, error) {
	return f.playlists, nil
}

func (f *fakeClient) CreatePlaylist(ctx context.Context, userID, name, description string) (*services.SpotifyPlaylist, error) {
	f.createdNames = append(f.createdNames, name)
	pl := services.SpotifyPlaylist{
		ID:     "pl-" + name,
		Name:   name,
		Tracks: services.PlaylistTracks{Href: "https://api.spotify.test/playlists/pl-" + name + "/tracks"},
	}
	f.playlists = append(f.playlists, pl)
	return &pl, nil
}

func (f *fakeClient) ReplacePlaylistTracks(ctx context.Context, tracksURL string, uris []string) (string, error) {
	if f.replaced == nil {
		f.replaced = make(map[string][]string)
	}
	f.replaced[tracksURL] = uris
	return "snapshot-1", nil
}

func newTestEngine(t *testing.T, client *fakeClient) (*Engine, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	engine := NewEngine(client, repositories.NewLibraryRepository(db, nil), repositories.NewCredentialRepository(db), shared.FetchConfig{}, nil)
	return engine, db
}

func libraryTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		id := fmt.Sprintf("t%03d", i)
		tracks[i] = models.Track{
			ID:         id,
			URI:        "spotify:track:" + id,
			DurationMS: 200000,
			Key:        models.KeyUnknown,
			Mode:       models.ModeUnknown,
			Energy:     models.EnergyUnknown,
		}
	}
	return tracks
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Exchanges Code And Caches Token", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1", DisplayName: "Test User"}}
		engine, _ := newTestEngine(t, client)

		session, err := engine.Authenticate(ctx, nil, AuthRequest{Code: "abc"})
		if err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
		if session.UserID != "user1" {
			t.Errorf("expected user1, got %q", session.UserID)
		}
		if client.token == nil || client.token.AccessToken != "exchanged-abc" {
			t.Errorf("expected exchanged token to be installed, got %+v", client.token)
		}

		if creds := engine.credentials.Load(); creds.AccessToken != "exchanged-abc" {
			t.Errorf("expected token cached, got %q", creds.AccessToken)
		}
	})

	t.Run("Reuses Cached Token", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)

		if err := engine.credentials.Save(repositories.Credentials{AccessToken: "cached", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save credentials: %v", err)
		}

		if _, err := engine.Authenticate(ctx, nil, AuthRequest{}); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
		if client.token == nil || client.token.AccessToken != "cached" {
			t.Errorf("expected cached token to be installed, got %+v", client.token)
		}
	})

	t.Run("No Token And No Code", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)

		_, err := engine.Authenticate(ctx, nil, AuthRequest{})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Expired Cached Token Requires Code", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)

		if err := engine.credentials.Save(repositories.Credentials{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("failed to save credentials: %v", err)
		}

		_, err := engine.Authenticate(ctx, nil, AuthRequest{})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Loads Cached Library", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)

		if err := engine.libraries.Save("user1", &models.Library{ETag: "v1", Tracks: libraryTracks(3)}); err != nil {
			t.Fatalf("failed to save library: %v", err)
		}

		session, err := engine.Authenticate(ctx, nil, AuthRequest{Code: "abc"})
		if err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
		if len(session.Library.Tracks) != 3 || session.Library.ETag != "v1" {
			t.Errorf("expected cached library, got %+v", session.Library)
		}
	})
}

func TestLoadTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("Fetches And Merges Features", func(t *testing.T) {
		tracks := libraryTracks(120)
		client := &fakeClient{
			user:      services.SpotifyUser{ID: "user1"},
			tracks:    tracks,
			trackETag: "tag-1",
			features: map[string]*models.AudioFeature{
				"t000": {Key: 4, Mode: 1, Energy: 0.7},
				"t119": {Key: 0, Mode: 0, Energy: 0.3},
			},
		}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: &models.Library{}}

		result, err := session.LoadTracks(ctx, nil)
		if err != nil {
			t.Fatalf("failed to load tracks: %v", err)
		}
		if result.TrackCount != 120 || result.Cached {
			t.Errorf("expected 120 fresh tracks, got %+v", result)
		}

		lib := session.Library
		if lib.ETag != "tag-1" {
			t.Errorf("expected etag tag-1, got %q", lib.ETag)
		}
		if lib.Tracks[0].Key != 4 || lib.Tracks[0].Energy != 0.7 {
			t.Errorf("first track features not merged: %+v", lib.Tracks[0])
		}
		if lib.Tracks[119].Key != 0 || lib.Tracks[119].Energy != 0.3 {
			t.Errorf("last track features not merged: %+v", lib.Tracks[119])
		}
		if lib.Tracks[1].Energy != models.EnergyUnknown {
			t.Errorf("absent analysis should leave sentinels: %+v", lib.Tracks[1])
		}

		if persisted := engine.libraries.Load("user1"); len(persisted.Tracks) != 120 || persisted.ETag != "tag-1" {
			t.Errorf("library not persisted: %d tracks, etag %q", len(persisted.Tracks), persisted.ETag)
		}
	})

	t.Run("Not Modified Keeps Cached Library", func(t *testing.T) {
		client := &fakeClient{
			user:        services.SpotifyUser{ID: "user1"},
			notModified: true,
		}
		engine, _ := newTestEngine(t, client)

		cached := &models.Library{ETag: "tag-1", Tracks: libraryTracks(7)}
		cached.Tracks[0].Key = 9
		session := &Session{engine: engine, UserID: "user1", Library: cached}

		result, err := session.LoadTracks(ctx, nil)
		if err != nil {
			t.Fatalf("failed to load tracks: %v", err)
		}
		if !result.Cached || result.TrackCount != 7 {
			t.Errorf("expected cached result, got %+v", result)
		}
		if session.Library.Tracks[0].Key != 9 {
			t.Errorf("cached features lost: %+v", session.Library.Tracks[0])
		}
	})

	t.Run("Empty Library", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: &models.Library{}}

		result, err := session.LoadTracks(ctx, nil)
		if err != nil {
			t.Fatalf("failed to load tracks: %v", err)
		}
		if result.TrackCount != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	request := func() GenerateRequest {
		return GenerateRequest{
			Name: "Focus Mix",
			Seed: 42,
			Selection: selector.Request{
				Key:              models.Any,
				Mode:             models.Any,
				Strategy:         models.StrategyNone,
				TargetDurationMS: 600000,
				MaxTrackMS:       1 << 30,
				MaxEnergy:        models.EnergyUnknown,
			},
		}
	}

	library := func(n int) *models.Library {
		return &models.Library{Tracks: libraryTracks(n)}
	}

	t.Run("Creates Playlist When Absent", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(10)}

		result, err := session.Generate(ctx, nil, request())
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		if !result.Created {
			t.Error("expected playlist to be created")
		}
		if result.TrackCount != 3 || result.ActualDurationMS != 600000 {
			t.Errorf("expected 3 tracks at 600000ms, got %+v", result)
		}
		if result.SnapshotID != "snapshot-1" {
			t.Errorf("expected snapshot id, got %q", result.SnapshotID)
		}
		if len(client.createdNames) != 1 || client.createdNames[0] != "Focus Mix" {
			t.Errorf("expected one create call, got %v", client.createdNames)
		}

		uris := client.replaced["https://api.spotify.test/playlists/pl-Focus Mix/tracks"]
		if len(uris) != 3 {
			t.Errorf("expected 3 uris replaced, got %v", uris)
		}
	})

	t.Run("Reuses Existing Playlist", func(t *testing.T) {
		client := &fakeClient{
			user: services.SpotifyUser{ID: "user1"},
			playlists: []services.SpotifyPlaylist{{
				ID:     "existing",
				Name:   "Focus Mix",
				Tracks: services.PlaylistTracks{Href: "https://api.spotify.test/playlists/existing/tracks"},
			}},
		}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(10)}

		result, err := session.Generate(ctx, nil, request())
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		if result.Created || result.PlaylistID != "existing" {
			t.Errorf("expected existing playlist reuse, got %+v", result)
		}
		if len(client.createdNames) != 0 {
			t.Errorf("expected no create call, got %v", client.createdNames)
		}
		if _, ok := client.replaced["https://api.spotify.test/playlists/existing/tracks"]; !ok {
			t.Error("expected existing playlist tracks to be replaced")
		}
	})

	t.Run("Same Seed Same Playlist", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(30)}

		first, err := session.Generate(ctx, nil, request())
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		second, err := session.Generate(ctx, nil, request())
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		for i := range first.Picks {
			if first.Picks[i].URI != second.Picks[i].URI {
				t.Fatalf("pick %d differs: %q vs %q", i, first.Picks[i].URI, second.Picks[i].URI)
			}
		}
	})

	t.Run("Empty Library", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: &models.Library{}}

		if _, err := session.Generate(ctx, nil, request()); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing Name", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(10)}

		req := request()
		req.Name = ""
		if _, err := session.Generate(ctx, nil, req); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("No Matching Tracks", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(10)}

		req := request()
		req.Selection.MinEnergy = 0.5
		req.Selection.MaxEnergy = 0.9 // all library energies are the unknown sentinel
		if _, err := session.Generate(ctx, nil, req); err == nil {
			t.Error("expected error for empty selection")
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		client := &fakeClient{user: services.SpotifyUser{ID: "user1"}}
		engine, _ := newTestEngine(t, client)
		session := &Session{engine: engine, UserID: "user1", Library: library(10)}

		progress := make(chan ProgressUpdate, 64)
		if _, err := session.Generate(ctx, progress, request()); err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) == 0 {
			t.Fatal("expected progress updates")
		}
		if phases[len(phases)-1] != PublishPlaylist {
			t.Errorf("expected final publish update, got %v", phases[len(phases)-1])
		}
	})
}
