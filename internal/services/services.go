// package services implements the Spotify Web API client used by the generator
package services

import (
	"context"

	"github.com/pomokey/pomokey/internal/fetch"
	"github.com/pomokey/pomokey/internal/models"
	"golang.org/x/oauth2"
)

// Client is the surface of the Spotify Web API consumed by the pipeline.
//
// Implemented by [SpotifyService]; faked in tests.
type Client interface {
	// ExchangeCode trades an authorization code for an access token.
	// A response without an access token maps to [shared.ErrMissingCredentials].
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// SetToken installs a previously obtained access token.
	SetToken(token *oauth2.Token)

	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// SavedTracks fetches one page of the user's saved tracks, sending etag
	// as an If-None-Match conditional header when non-empty.
	SavedTracks(ctx context.Context, offset, limit int, etag string) (fetch.Page[models.Track], error)

	// AudioFeatures fetches features for up to 100 track ids. The response is
	// aligned positionally to the requested ids; absent analyses are nil.
	// Page.Total is left zero for the caller to fill with the full id count.
	AudioFeatures(ctx context.Context, ids []string, etag string) (fetch.Page[*models.AudioFeature], error)

	// Playlists retrieves all of the user's playlists, following next links.
	Playlists(ctx context.Context) ([]SpotifyPlaylist, error)

	// CreatePlaylist creates a playlist owned by the user.
	CreatePlaylist(ctx context.Context, userID, name, description string) (*SpotifyPlaylist, error)

	// ReplacePlaylistTracks overwrites the playlist's track list with the
	// ordered URIs and returns the resulting snapshot id.
	ReplacePlaylistTracks(ctx context.Context, tracksURL string, uris []string) (string, error)
}

// OAuthService is implemented by services supporting browser-based OAuth2 flows.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// PlaylistTracks is a playlist's track-collection reference.
type PlaylistTracks struct {
	Href  string `json:"href"`
	Total int    `json:"total"`
}

// SpotifyPlaylist represents a playlist as returned by the list and create endpoints.
type SpotifyPlaylist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Href   string         `json:"href"`
	Tracks PlaylistTracks `json:"tracks"`
}
