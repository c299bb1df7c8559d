package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
	"golang.org/x/oauth2"
)

// Greeter delivers the post-login confirmation back to the user's chat.
// Optional; satisfied by the Telegram transport.
type Greeter interface {
	SendMessage(chatID int64, text string, linkable bool) error
}

// TokenExchanger trades an authorization code for a token pair. Satisfied
// by [spotify.TokenManager].
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ProfileSource fetches the authorizing user's Spotify profile. Satisfied
// by [spotify.Client].
type ProfileSource interface {
	Me(ctx context.Context, token string) (*spotify.User, error)
}

// OAuthHandler handles OAuth2 authorization callbacks. Unlike a one-shot
// CLI flow it stays up for the bot's lifetime and serves every user: the
// state parameter, claimed from states, identifies who just authorized.
type OAuthHandler struct {
	states  *StateStore
	tokens  TokenExchanger
	profile ProfileSource
	store   *store.Store
	greeter Greeter
	logger  *log.Logger
}

// NewOAuthHandler creates the callback handler. greeter may be nil.
func NewOAuthHandler(states *StateStore, tokens TokenExchanger, profile ProfileSource, st *store.Store, greeter Greeter, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		states:  states,
		tokens:  tokens,
		profile: profile,
		store:   st,
		greeter: greeter,
		logger:  logger.With("component", "oauth"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP completes one authorization: validates state, exchanges the
// code, resolves the Spotify profile and persists the credential.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID, ok := h.states.Claim(query.Get("state"))
	if !ok {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("authorization denied",
			"user", userID,
			"error", query.Get("error"),
			"description", query.Get("error_description"),
		)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "user", userID, "err", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}
	if token.RefreshToken == "" {
		h.logger.Error("provider returned no refresh token", "user", userID)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	profile, err := h.profile.Me(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("failed to fetch profile", "user", userID, "err", err)
		http.Error(w, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	err = h.store.CreateOrUpdateUser(r.Context(), store.User{
		UserID:       userID,
		DisplayName:  profile.DisplayName,
		AccountID:    profile.ID,
		RefreshToken: token.RefreshToken,
		AccessToken:  token.AccessToken,
	})
	if err != nil {
		h.logger.Error("failed to persist user", "user", userID, "err", err)
		http.Error(w, "Failed to save authorization", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user authorized", "user", userID, "account", profile.ID)

	if h.greeter != nil {
		greeting := fmt.Sprintf("You're logged in, %s! Try /help to see what I can do.", profile.DisplayName)
		if err := h.greeter.SendMessage(userID, greeting, false); err != nil {
			h.logger.Warn("failed to greet user", "user", userID, "err", err)
		}
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to Telegram.</p>
    </div>
</body>
</html>
`
