// package tracker enforces the tracked-playlist registry and its capacity
// invariant: a user monitors at most MaxTracked playlists at a time.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
)

// MaxTracked is the maximum number of live tracking entries per user.
const MaxTracked = 3

// Resolver resolves a playlist id against the upstream API. Satisfied by
// [spotify.Client].
type Resolver interface {
	GetPlaylist(ctx context.Context, token, playlistID string) (*spotify.Playlist, error)
}

// Registry exposes add/remove/list operations over a user's tracked
// playlists.
type Registry struct {
	store    *store.Store
	resolver Resolver
}

// NewRegistry creates a Registry backed by st, resolving playlists via r.
func NewRegistry(st *store.Store, r Resolver) *Registry {
	return &Registry{store: st, resolver: r}
}

// Add starts tracking a playlist for a user, recording its current snapshot
// marker.
//
// Returns [shared.ErrAlreadyTracked] when the pair exists,
// [shared.ErrLimitReached] when the user already tracks [MaxTracked]
// playlists, and [shared.ErrNotFound] when the playlist cannot be resolved
// upstream. The returned playlist describes what is now tracked.
//
// The remote resolution happens outside the store lock; the
// exists/count/insert sequence runs in a single scope so concurrent adds
// cannot exceed the limit.
func (r *Registry) Add(ctx context.Context, token string, userID int64, playlistID string) (*spotify.Playlist, error) {
	// Fast pre-checks so the common validation failures answer without a
	// network round trip.
	if err := r.checkCapacity(ctx, userID, playlistID); err != nil {
		return nil, err
	}

	playlist, err := r.resolver.GetPlaylist(ctx, token, playlistID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
		}
		return nil, err
	}

	err = r.store.WithConn(ctx, func(tx *sql.Tx) error {
		exists, err := store.TrackingExistsTx(ctx, tx, userID, playlist.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", shared.ErrAlreadyTracked, playlist.ID)
		}

		count, err := store.CountTrackingTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count >= MaxTracked {
			return fmt.Errorf("%w: user %d already tracks %d playlists", shared.ErrLimitReached, userID, count)
		}

		return store.InsertTrackingTx(ctx, tx, store.Tracking{
			UserID:     userID,
			PlaylistID: playlist.ID,
			SnapshotID: playlist.SnapshotID,
		})
	})
	if err != nil {
		return nil, err
	}

	return playlist, nil
}

// Remove stops tracking a playlist for a user. Returns
// [shared.ErrNotTracked] when the pair is absent.
func (r *Registry) Remove(ctx context.Context, userID int64, playlistID string) error {
	return r.store.RemoveTracking(ctx, userID, playlistID)
}

// List returns the playlist ids the user currently tracks.
func (r *Registry) List(ctx context.Context, userID int64) ([]string, error) {
	entries, err := r.store.ListTrackingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.PlaylistID)
	}
	return ids, nil
}

func (r *Registry) checkCapacity(ctx context.Context, userID int64, playlistID string) error {
	return r.store.WithConn(ctx, func(tx *sql.Tx) error {
		exists, err := store.TrackingExistsTx(ctx, tx, userID, playlistID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", shared.ErrAlreadyTracked, playlistID)
		}

		count, err := store.CountTrackingTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count >= MaxTracked {
			return fmt.Errorf("%w: user %d already tracks %d playlists", shared.ErrLimitReached, userID, count)
		}
		return nil
	})
}
