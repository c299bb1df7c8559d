package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafacovez/notify/internal/shared"
)

// User is a stored user record.
type User struct {
	UserID       int64
	DisplayName  string
	AccountID    string
	RefreshToken string
	AccessToken  string
}

// UserExistsTx reports whether a user row exists. For use inside a
// [Store.WithConn] scope.
func UserExistsTx(ctx context.Context, tx *sql.Tx, userID int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE user_id = ?)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check user %d: %v", shared.ErrStorage, userID, err)
	}
	return exists, nil
}

// UserExists reports whether the user has authorized the bot.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		var err error
		exists, err = UserExistsTx(ctx, tx, userID)
		return err
	})
	return exists, err
}

// CreateOrUpdateUser inserts or replaces a user's identity and token pair.
// Called by the OAuth callback after a successful code exchange; an existing
// row keeps its tracking entries.
func (s *Store) CreateOrUpdateUser(ctx context.Context, user User) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, display_name, account_id, refresh_token, access_token)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				display_name = excluded.display_name,
				account_id = excluded.account_id,
				refresh_token = excluded.refresh_token,
				access_token = excluded.access_token
		`, user.UserID, user.DisplayName, user.AccountID, user.RefreshToken, user.AccessToken)
		if err != nil {
			return fmt.Errorf("%w: upsert user %d: %v", shared.ErrStorage, user.UserID, err)
		}
		return nil
	})
}

// DeleteUser removes a user and, via the foreign key cascade, all of the
// user's tracking entries.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", userID)
		if err != nil {
			return fmt.Errorf("%w: delete user %d: %v", shared.ErrStorage, userID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete user %d: %v", shared.ErrStorage, userID, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
		}
		return nil
	})
}

// GetAccessToken returns the stored short-lived access token for a user.
//
// Callers must not use the value for remote calls without a just-completed
// refresh; expiry is not tracked in storage.
func (s *Store) GetAccessToken(ctx context.Context, userID int64) (string, error) {
	return s.userColumn(ctx, userID, "access_token")
}

// GetRefreshToken returns the long-lived refresh token for a user.
func (s *Store) GetRefreshToken(ctx context.Context, userID int64) (string, error) {
	return s.userColumn(ctx, userID, "refresh_token")
}

// StoreAccessToken persists a freshly minted access token.
func (s *Store) StoreAccessToken(ctx context.Context, userID int64, accessToken string) error {
	return s.WithConn(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "UPDATE users SET access_token = ? WHERE user_id = ?", accessToken, userID)
		if err != nil {
			return fmt.Errorf("%w: store access token for %d: %v", shared.ErrStorage, userID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: store access token for %d: %v", shared.ErrStorage, userID, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
		}
		return nil
	})
}

// ListUserIDs returns the ids of every known user.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT user_id FROM users ORDER BY user_id")
		if err != nil {
			return fmt.Errorf("%w: list users: %v", shared.ErrStorage, err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("%w: scan user id: %v", shared.ErrStorage, err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list users: %v", shared.ErrStorage, err)
		}
		return nil
	})
	return ids, err
}

func (s *Store) userColumn(ctx context.Context, userID int64, column string) (string, error) {
	var value sql.NullString
	err := s.WithConn(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM users WHERE user_id = ?", column)
		err := tx.QueryRowContext(ctx, query, userID).Scan(&value)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
		}
		if err != nil {
			return fmt.Errorf("%w: read %s for %d: %v", shared.ErrStorage, column, userID, err)
		}
		return nil
	})
	return value.String, err
}
