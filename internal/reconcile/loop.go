// package reconcile implements the periodic pass that diffs remote playlist
// snapshots against stored markers and notifies users of changes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
)

// Notifier delivers outbound notices to a user's chat. Satisfied by the
// Telegram transport.
type Notifier interface {
	SendMessage(chatID int64, text string, linkable bool) error
}

// TokenSource mints a fresh access token for a user. Satisfied by
// [spotify.TokenManager].
type TokenSource interface {
	Refresh(ctx context.Context, userID int64) (string, error)
}

// CollectionSource fetches playlist state from the upstream API. Satisfied
// by [spotify.Client].
type CollectionSource interface {
	GetPlaylist(ctx context.Context, token, playlistID string) (*spotify.Playlist, error)
}

// Loop runs reconciliation passes on a fixed interval. Only one instance
// may run against a given store; a second one risks duplicate notices but
// not corruption, since every tracking update is an idempotent set.
type Loop struct {
	store       *store.Store
	tokens      TokenSource
	collections CollectionSource
	notifier    Notifier
	interval    time.Duration
	logger      *log.Logger
}

// NewLoop creates a reconciliation loop. interval defaults to 30 minutes.
func NewLoop(st *store.Store, tokens TokenSource, collections CollectionSource, notifier Notifier, interval time.Duration, logger *log.Logger) *Loop {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loop{
		store:       st,
		tokens:      tokens,
		collections: collections,
		notifier:    notifier,
		interval:    interval,
		logger:      logger.With("component", "reconcile"),
	}
}

// Run drives passes until ctx is cancelled. Cancellation stops the timer
// from scheduling further passes; an in-flight pass finishes on its own
// (storage writes are atomic per operation either way).
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("reconciliation loop started", "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("reconciliation loop stopped")
			return
		case <-ticker.C:
			l.RunPass(ctx)
		}
	}
}

// RunPass executes one reconciliation pass over all users. It fails safe:
// any unexpected panic is caught and the loop skips to the next tick.
func (l *Loop) RunPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("reconciliation pass panicked", "panic", r)
		}
	}()

	userIDs, err := l.store.ListUserIDs(ctx)
	if err != nil {
		l.logger.Error("failed to list users", "err", err)
		return
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		l.checkUser(ctx, userID)
	}

	l.logger.Info("reconciliation pass complete", "users", len(userIDs))
}

// checkUser reconciles every tracked playlist of one user. The access token
// is refreshed once per user, not once per playlist, to bound call volume.
// Failures are logged and never abort the pass for other users.
func (l *Loop) checkUser(ctx context.Context, userID int64) {
	logger := l.logger.With("user", userID)

	entries, err := l.store.ListTrackingForUser(ctx, userID)
	if err != nil {
		logger.Error("failed to list tracking", "err", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	token, err := l.tokens.Refresh(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrAuthExpired) {
			logger.Warn("refresh token rejected, user must re-authorize")
		} else {
			logger.Error("failed to refresh token", "err", err)
		}
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		l.checkPlaylist(ctx, logger, token, entry)
	}
}

// checkPlaylist reconciles one tracked playlist: removes the entry when the
// playlist no longer exists upstream, and persists the new marker and
// notifies when the snapshot drifted.
func (l *Loop) checkPlaylist(ctx context.Context, logger *log.Logger, token string, entry store.Tracking) {
	logger = logger.With("playlist", entry.PlaylistID)

	playlist, err := l.collections.GetPlaylist(ctx, token, entry.PlaylistID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		// Self-heal: the backing playlist is gone, drop the entry.
		if err := l.store.RemoveTracking(ctx, entry.UserID, entry.PlaylistID); err != nil && !errors.Is(err, shared.ErrNotTracked) {
			logger.Error("failed to remove stale tracking", "err", err)
			return
		}
		l.notify(logger, entry.UserID,
			"A playlist you were tracking no longer exists and has been removed from your tracking list.", false)
		return
	case err != nil:
		// Transient upstream trouble: skip this cycle, retry on the next.
		logger.Warn("skipping playlist this cycle", "err", err)
		return
	}

	if playlist.SnapshotID == entry.SnapshotID {
		return
	}

	if err := l.store.UpdateTrackingSnapshot(ctx, entry.UserID, entry.PlaylistID, playlist.SnapshotID); err != nil {
		logger.Error("failed to update snapshot", "err", err)
		return
	}

	l.notify(logger, entry.UserID,
		fmt.Sprintf("The playlist <a href='%s'>%s</a> has been updated! Check it out.", playlist.ExternalURLs.Spotify, playlist.Name), true)
}

func (l *Loop) notify(logger *log.Logger, chatID int64, text string, linkable bool) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.SendMessage(chatID, text, linkable); err != nil {
		logger.Error("failed to deliver notice", "err", err)
	}
}
