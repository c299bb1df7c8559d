package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/store"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested during authorization. Read-only: the bot never mutates a
// user's library.
var Scopes = []string{
	"user-read-private",
	"user-read-recently-played",
	"user-top-read",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// TokenManager owns the access-token lifecycle. [TokenManager.Refresh] is
// the only path by which a caller obtains a usable access token: expiry is
// not tracked in storage, so a stored token must never be used without a
// fresh refresh.
type TokenManager struct {
	config *oauth2.Config
	store  *store.Store
	logger *log.Logger
}

// NewTokenManager creates a TokenManager for the given OAuth application
// credentials, persisting refreshed tokens through st.
func NewTokenManager(clientID, clientSecret, redirectURI string, st *store.Store, logger *log.Logger) *TokenManager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		store:  st,
		logger: logger,
	}
}

// AuthURL returns the authorization URL a user visits to grant access.
// state round-trips through the provider to correlate the callback.
func (m *TokenManager) AuthURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token pair. Used by the OAuth
// callback handler on first authorization.
func (m *TokenManager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", shared.ErrUpstreamUnavailable, err)
	}
	return token, nil
}

// Refresh reads the user's refresh token from the store, exchanges it for a
// new access token, persists it and returns it.
//
// Returns [shared.ErrAuthExpired] when the refresh token itself is rejected
// (the user must re-authorize) and [shared.ErrUpstreamUnavailable] on
// transport failure.
func (m *TokenManager) Refresh(ctx context.Context, userID int64) (string, error) {
	refreshToken, err := m.store.GetRefreshToken(ctx, userID)
	if err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", fmt.Errorf("%w: user %d", shared.ErrNoRefreshToken, userID)
	}

	source := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return "", fmt.Errorf("%w: user %d: %v", shared.ErrAuthExpired, userID, err)
		}
		return "", fmt.Errorf("%w: token refresh for %d: %v", shared.ErrUpstreamUnavailable, userID, err)
	}

	if err := m.store.StoreAccessToken(ctx, userID, token.AccessToken); err != nil {
		return "", err
	}

	return token.AccessToken, nil
}
