package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/watchpost/watchpost/internal/crypto"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second

	pruneInterval = time.Hour
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is the SQLite-backed repository for subscriptions, targets, benchmark
// targets, check history, and the audit trail. Locators and benchmark names
// are sealed through the crypto box before they reach disk.
//
// Store is safe for concurrent use.
type Store struct {
	db        *sql.DB
	box       *crypto.Box
	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// Open opens (creating if necessary) the database at path and bootstraps the
// schema. retention controls how long check history is kept by Run.
func Open(path string, box *crypto.Box, retention time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db, box: box, retention: retention, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Counts returns the number of subscriptions and targets, for introspection.
func (s *Store) Counts(ctx context.Context) (subs, targets int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&subs); err != nil {
		return 0, 0, fmt.Errorf("store: count subscriptions: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets`).Scan(&targets); err != nil {
		return 0, 0, fmt.Errorf("store: count targets: %w", err)
	}
	return subs, targets, nil
}

// Run starts the background history retention loop. It prunes check history
// older than the configured retention once per hour. Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	if s.retention <= 0 {
		<-ctx.Done()
		return
	}

	t := time.NewTicker(pruneInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PruneHistory(ctx, s.retention)
			if err != nil {
				slog.Error("store: history prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("store: pruned check history", "rows", n)
			}
		}
	}
}
