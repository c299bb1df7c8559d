package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafacovez/notify/internal/shared"
)

// Tracking is a stored tracking entry: one playlist a user monitors and the
// last snapshot marker observed for it.
type Tracking struct {
	UserID     int64
	PlaylistID string
	SnapshotID string
}

// TrackingExistsTx reports whether the (user, playlist) pair is tracked.
// For use inside a [Store.WithConn] scope.
func TrackingExistsTx(ctx context.Context, tx *sql.Tx, userID int64, playlistID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM tracking WHERE user_id = ? AND playlist_id = ?)",
		userID, playlistID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check tracking (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
	}
	return exists, nil
}

// CountTrackingTx returns the number of live tracking entries for a user.
// For use inside a [Store.WithConn] scope.
func CountTrackingTx(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracking WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count tracking for %d: %v", shared.ErrStorage, userID, err)
	}
	return count, nil
}

// InsertTrackingTx inserts a tracking entry. For use inside a
// [Store.WithConn] scope.
func InsertTrackingTx(ctx context.Context, tx *sql.Tx, entry Tracking) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO tracking (user_id, playlist_id, snapshot_id) VALUES (?, ?, ?)",
		entry.UserID, entry.PlaylistID, entry.SnapshotID)
	if err != nil {
		return fmt.Errorf("%w: insert tracking (%d, %s): %v", shared.ErrStorage, entry.UserID, entry.PlaylistID, err)
	}
	return nil
}

// AddTracking inserts a tracking entry in its own scope.
func (s *Store) AddTracking(ctx context.Context, entry Tracking) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		return InsertTrackingTx(ctx, tx, entry)
	})
}

// RemoveTracking deletes a tracking entry. Returns [shared.ErrNotTracked]
// when the pair is absent.
func (s *Store) RemoveTracking(ctx context.Context, userID int64, playlistID string) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"DELETE FROM tracking WHERE user_id = ? AND playlist_id = ?", userID, playlistID)
		if err != nil {
			return fmt.Errorf("%w: remove tracking (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: remove tracking (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: (%d, %s)", shared.ErrNotTracked, userID, playlistID)
		}
		return nil
	})
}

// RemoveAllTrackingForUser deletes every tracking entry owned by a user.
func (s *Store) RemoveAllTrackingForUser(ctx context.Context, userID int64) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tracking WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("%w: remove tracking for %d: %v", shared.ErrStorage, userID, err)
		}
		return nil
	})
}

// TrackingExists reports whether the (user, playlist) pair is tracked.
func (s *Store) TrackingExists(ctx context.Context, userID int64, playlistID string) (bool, error) {
	var exists bool
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		var err error
		exists, err = TrackingExistsTx(ctx, tx, userID, playlistID)
		return err
	})
	return exists, err
}

// CountTrackingForUser returns the number of live tracking entries for a user.
func (s *Store) CountTrackingForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		var err error
		count, err = CountTrackingTx(ctx, tx, userID)
		return err
	})
	return count, err
}

// ListTrackingForUser returns every tracking entry owned by a user.
func (s *Store) ListTrackingForUser(ctx context.Context, userID int64) ([]Tracking, error) {
	var entries []Tracking
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT user_id, playlist_id, snapshot_id FROM tracking WHERE user_id = ?", userID)
		if err != nil {
			return fmt.Errorf("%w: list tracking for %d: %v", shared.ErrStorage, userID, err)
		}
		defer rows.Close()

		for rows.Next() {
			var entry Tracking
			if err := rows.Scan(&entry.UserID, &entry.PlaylistID, &entry.SnapshotID); err != nil {
				return fmt.Errorf("%w: scan tracking: %v", shared.ErrStorage, err)
			}
			entries = append(entries, entry)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list tracking for %d: %v", shared.ErrStorage, userID, err)
		}
		return nil
	})
	return entries, err
}

// UpdateTrackingSnapshot persists a new snapshot marker for a tracked
// playlist. Setting the current marker again is a no-op, which keeps
// reconciliation writes idempotent.
func (s *Store) UpdateTrackingSnapshot(ctx context.Context, userID int64, playlistID, snapshotID string) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE tracking SET snapshot_id = ? WHERE user_id = ? AND playlist_id = ?",
			snapshotID, userID, playlistID)
		if err != nil {
			return fmt.Errorf("%w: update snapshot (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update snapshot (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: (%d, %s)", shared.ErrNotTracked, userID, playlistID)
		}
		return nil
	})
}

// GetTrackingSnapshot returns the stored snapshot marker for a tracked
// playlist. Returns [shared.ErrNotTracked] when the pair is absent.
func (s *Store) GetTrackingSnapshot(ctx context.Context, userID int64, playlistID string) (string, error) {
	var snapshot string
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT snapshot_id FROM tracking WHERE user_id = ? AND playlist_id = ?",
			userID, playlistID).Scan(&snapshot)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: (%d, %s)", shared.ErrNotTracked, userID, playlistID)
		}
		if err != nil {
			return fmt.Errorf("%w: read snapshot (%d, %s): %v", shared.ErrStorage, userID, playlistID, err)
		}
		return nil
	})
	return snapshot, err
}
