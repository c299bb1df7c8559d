// package spotify wraps the Spotify Web API for the bot: a typed,
// token-per-call client plus the access-token lifecycle manager.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// ExternalURLs carries the public link for a resource.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Owner represents a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// Playlist represents a Spotify playlist. SnapshotID is the opaque version
// marker that changes whenever the playlist contents change.
type Playlist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SnapshotID   string         `json:"snapshot_id"`
	Owner        Owner          `json:"owner"`
	Public       bool           `json:"public"`
	Tracks       playlistTracks `json:"tracks"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
}

// PaginatedPlaylists represents one page of the current user's playlists.
type PaginatedPlaylists struct {
	Items    []Playlist `json:"items"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
}

// User represents a Spotify user profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Track represents a Spotify track.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Artists      []Artist     `json:"artists"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// PlayHistoryItem represents one entry of the user's listening history.
type PlayHistoryItem struct {
	PlayedAt string `json:"played_at"`
	Track    Track  `json:"track"`
}

// Client is a typed wrapper over the Spotify Web API. Every call takes the
// access token to use, obtained from a just-completed
// [TokenManager.Refresh]; the client itself holds no per-user state.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit sets the client-side request rate limit in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewClient creates a Spotify API client with a default rate limit of
// 10 requests per second.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 1),
		baseURL:    spotifyBaseURL,
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an authenticated GET against the Spotify API and maps
// the outcome onto the shared taxonomy: 404 → ErrNotFound, 403 →
// ErrForbidden, 429 → ErrRateLimited, anything else unexpected →
// ErrUpstreamUnavailable.
func (c *Client) doRequest(ctx context.Context, token, endpoint string, result any) error {
	if token == "" {
		return fmt.Errorf("%w: no access token for request", shared.ErrAuthExpired)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrForbidden, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", shared.ErrRateLimited, endpoint)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrAuthExpired, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d on %s", shared.ErrUpstreamUnavailable, resp.StatusCode, endpoint)
	}

	if result != nil {
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: decode %s: %v", shared.ErrUpstreamUnavailable, endpoint, err)
		}
	}

	return nil
}

// Me retrieves the profile of the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.doRequest(ctx, token, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetPlaylist retrieves a playlist by ID, including its snapshot marker.
func (c *Client) GetPlaylist(ctx context.Context, token, playlistID string) (*Playlist, error) {
	var playlist Playlist
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := c.doRequest(ctx, token, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// UserPlaylists retrieves one page of the user's playlists.
func (c *Client) UserPlaylists(ctx context.Context, token string, limit, offset int) (*PaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response PaginatedPlaylists
	if err := c.doRequest(ctx, token, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// AllUserPlaylists retrieves every playlist of the user, paging until a
// short page is returned.
func (c *Client) AllUserPlaylists(ctx context.Context, token string) ([]Playlist, error) {
	var all []Playlist
	limit := 50
	offset := 0

	for {
		page, err := c.UserPlaylists(ctx, token, limit, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Items...)

		if len(page.Items) < limit || page.Next == nil {
			break
		}
		offset += limit
	}

	return all, nil
}

// CurrentlyPlaying retrieves the track the user is playing right now, or
// nil when nothing is playing.
func (c *Client) CurrentlyPlaying(ctx context.Context, token string) (*Track, error) {
	var response struct {
		Item *Track `json:"item"`
	}
	if err := c.doRequest(ctx, token, "/me/player/currently-playing", &response); err != nil {
		return nil, err
	}
	return response.Item, nil
}

// RecentlyPlayed retrieves the user's most recently played tracks.
func (c *Client) RecentlyPlayed(ctx context.Context, token string, limit int) ([]PlayHistoryItem, error) {
	if limit <= 0 {
		limit = 1
	}

	var response struct {
		Items []PlayHistoryItem `json:"items"`
	}
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)
	if err := c.doRequest(ctx, token, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// TopTracks retrieves the user's most listened tracks for the given time
// range ("short_term", "medium_term" or "long_term").
func (c *Client) TopTracks(ctx context.Context, token, timeRange string, limit int) ([]Track, error) {
	if timeRange == "" {
		timeRange = "short_term"
	}
	if limit <= 0 {
		limit = 10
	}

	var response struct {
		Items []Track `json:"items"`
	}
	endpoint := fmt.Sprintf("/me/top/tracks?time_range=%s&limit=%d", url.QueryEscape(timeRange), limit)
	if err := c.doRequest(ctx, token, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}
