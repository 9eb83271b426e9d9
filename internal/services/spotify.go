// Spotify API implementation of [Client]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pomokey/pomokey/internal/fetch"
	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Page size caps imposed by the Web API.
	SavedTracksPageSize   = 50
	AudioFeaturesPageSize = 100

	defaultRequestTimeout = 15 * time.Second
)

// SpotifyService implements [Client] against the Spotify Web API.
// Uses [oauth2] for authentication.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-library-read",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    spotifyBaseURL,
	}, nil
}

// SetTimeout overrides the per-request timeout.
func (s *SpotifyService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.httpClient.Timeout = d
	}
}

// SetToken installs a previously obtained access token.
func (s *SpotifyService) SetToken(token *oauth2.Token) {
	s.token = token
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback server.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// ExchangeCode trades an authorization code for an access token.
//
// Exchange failures and token responses without an access token both map to
// [shared.ErrMissingCredentials] so the caller can re-prompt for authorization.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" && redirectURI != s.config.RedirectURL {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	token, err := s.config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", shared.ErrMissingCredentials, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", shared.ErrMissingCredentials)
	}

	s.token = token
	return token, nil
}

// do performs an authenticated HTTP request and returns the raw response.
// The caller owns the response body.
func (s *SpotifyService) do(ctx context.Context, method, rawURL string, headers map[string]string, body any) (*http.Response, error) {
	if s.token == nil {
		return nil, fmt.Errorf("%w: call ExchangeCode or SetToken first", shared.ErrMissingCredentials)
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// doRequest performs an authenticated request against an API endpoint and
// decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	resp, err := s.do(ctx, method, s.baseURL+endpoint, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError maps a non-success HTTP status to a sentinel error.
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, code)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, code)
	}
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "GET", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type savedTrackItem struct {
	Track struct {
		ID         string `json:"id"`
		URI        string `json:"uri"`
		DurationMS int    `json:"duration_ms"`
	} `json:"track"`
}

type savedTracksResponse struct {
	Items []savedTrackItem `json:"items"`
	Total int              `json:"total"`
}

// SavedTracks fetches one page of the user's saved tracks.
//
// When etag is non-empty it is sent as an If-None-Match header; a 304 response
// yields a NotModified page. Tracks carry feature sentinels until the
// audio-features pass merges real values in.
func (s *SpotifyService) SavedTracks(ctx context.Context, offset, limit int, etag string) (fetch.Page[models.Track], error) {
	rawURL := fmt.Sprintf("%s/me/tracks?offset=%d&limit=%d", s.baseURL, offset, limit)

	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}

	resp, err := s.do(ctx, "GET", rawURL, headers, nil)
	if err != nil {
		return fetch.Page[models.Track]{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return fetch.Page[models.Track]{NotModified: true}, nil
	}
	if err := statusError(resp.StatusCode); err != nil {
		return fetch.Page[models.Track]{}, err
	}

	var decoded savedTracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fetch.Page[models.Track]{}, fmt.Errorf("failed to decode response: %w", err)
	}

	items := make([]models.Track, len(decoded.Items))
	for i, item := range decoded.Items {
		items[i] = models.Track{
			ID:         item.Track.ID,
			URI:        item.Track.URI,
			DurationMS: item.Track.DurationMS,
			Key:        models.KeyUnknown,
			Mode:       models.ModeUnknown,
			Energy:     models.EnergyUnknown,
		}
	}

	return fetch.Page[models.Track]{
		Items: items,
		Total: decoded.Total,
		ETag:  resp.Header.Get("ETag"),
	}, nil
}

type audioFeaturesResponse struct {
	AudioFeatures []*models.AudioFeature `json:"audio_features"`
}

// AudioFeatures fetches features for up to 100 track ids.
//
// The audio_features array is aligned positionally to the requested ids; null
// elements decode to nil and stand for absent analyses.
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string, etag string) (fetch.Page[*models.AudioFeature], error) {
	if len(ids) == 0 {
		return fetch.Page[*models.AudioFeature]{}, fmt.Errorf("%w: no track ids", shared.ErrInvalidArgument)
	}
	if len(ids) > AudioFeaturesPageSize {
		return fetch.Page[*models.AudioFeature]{}, fmt.Errorf("%w: maximum %d track ids", shared.ErrInvalidArgument, AudioFeaturesPageSize)
	}

	rawURL := fmt.Sprintf("%s/audio-features?ids=%s", s.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}

	resp, err := s.do(ctx, "GET", rawURL, headers, nil)
	if err != nil {
		return fetch.Page[*models.AudioFeature]{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return fetch.Page[*models.AudioFeature]{NotModified: true}, nil
	}
	if err := statusError(resp.StatusCode); err != nil {
		return fetch.Page[*models.AudioFeature]{}, err
	}

	var decoded audioFeaturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fetch.Page[*models.AudioFeature]{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return fetch.Page[*models.AudioFeature]{
		Items: decoded.AudioFeatures,
		ETag:  resp.Header.Get("ETag"),
	}, nil
}

type paginatedPlaylists struct {
	Items []SpotifyPlaylist `json:"items"`
	Next  *string           `json:"next"`
}

// Playlists retrieves all of the current user's playlists by following next links.
func (s *SpotifyService) Playlists(ctx context.Context) ([]SpotifyPlaylist, error) {
	var all []SpotifyPlaylist

	next := s.baseURL + "/me/playlists?limit=50"
	for next != "" {
		resp, err := s.do(ctx, "GET", next, nil, nil)
		if err != nil {
			return nil, err
		}

		var page paginatedPlaylists
		if err := func() error {
			defer resp.Body.Close()
			if err := statusError(resp.StatusCode); err != nil {
				return err
			}
			return json.NewDecoder(resp.Body).Decode(&page)
		}(); err != nil {
			return nil, err
		}

		all = append(all, page.Items...)
		if page.Next == nil {
			break
		}
		next = *page.Next
	}

	return all, nil
}

// CreatePlaylist creates a playlist owned by the given user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))

	body := map[string]string{
		"name":        name,
		"description": description,
	}

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "POST", endpoint, body, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// ReplacePlaylistTracks overwrites a playlist's contents with the ordered URI list.
//
// tracksURL is the playlist's track-collection href as returned by the list and
// create endpoints.
func (s *SpotifyService) ReplacePlaylistTracks(ctx context.Context, tracksURL string, uris []string) (string, error) {
	body := map[string][]string{"uris": uris}

	resp, err := s.do(ctx, "PUT", tracksURL, nil, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return "", err
	}

	var snapshot snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return snapshot.SnapshotID, nil
}
