package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/rafacovez/notify/internal/shared"
)

// Store provides exclusive, transactional access to the users and tracking
// tables.
type Store struct {
	db         *sql.DB
	mu         sync.Mutex
	backupPath string
	logger     *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackupPath enables mirroring a full consistent copy of the database
// to path after every successful scope.
func WithBackupPath(path string) Option {
	return func(s *Store) { s.backupPath = path }
}

// WithLogger sets the logger used for non-fatal store events.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store over an open database connection.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: shared.NewLogger(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithConn acquires exclusive access to the backing store for the duration
// of op. The transaction commits when op returns nil and rolls back
// otherwise; the failure is surfaced to the caller either way. After a
// successful commit the database is mirrored to the backup path when one is
// configured.
func (s *Store) WithConn(ctx context.Context, op func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", shared.ErrStorage, err)
	}

	if err := op(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", shared.ErrStorage, err)
	}

	s.mirror(ctx)
	return nil
}

// mirror copies the committed database to the backup path. Failures are
// logged and do not fail the scope that triggered the copy.
func (s *Store) mirror(ctx context.Context) {
	if s.backupPath == "" {
		return
	}

	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(s.backupPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stale backup", "path", s.backupPath, "err", err)
		return
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", s.backupPath); err != nil {
		s.logger.Warn("failed to mirror database", "path", s.backupPath, "err", err)
	}
}
