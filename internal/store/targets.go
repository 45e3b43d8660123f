package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertTarget registers or replaces a named target for a chat, sealing the
// locator before it is stored. The interval is persisted as given; callers
// clamp it to the configured minimum first.
func (s *Store) UpsertTarget(ctx context.Context, chat int64, name, locator string, interval time.Duration) (int64, error) {
	sealed, err := s.box.Seal(locator)
	if err != nil {
		return 0, fmt.Errorf("store: seal locator: %w", err)
	}
	fp := s.box.Fingerprint(locator)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (chat_id, name, sealed_locator, fingerprint, interval_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, name) DO UPDATE SET
			sealed_locator = excluded.sealed_locator,
			fingerprint = excluded.fingerprint,
			interval_seconds = excluded.interval_seconds,
			consecutive_failures = 0,
			state = 'UP'`,
		chat, name, sealed, fp, int64(interval/time.Second), s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: upsert target: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// Updated rather than inserted; fetch the id.
		t, gerr := s.GetTarget(ctx, chat, name)
		if gerr != nil {
			return 0, fmt.Errorf("store: upsert target id: %w", gerr)
		}
		return t.ID, nil
	}
	return id, nil
}

// RemoveTarget deletes a named target and its history.
func (s *Store) RemoveTarget(ctx context.Context, chat int64, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin remove target: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM check_history WHERE target_id IN
			(SELECT id FROM targets WHERE chat_id = ? AND name = ?)`, chat, name); err != nil {
		return fmt.Errorf("store: remove target history: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM targets WHERE chat_id = ? AND name = ?`, chat, name)
	if err != nil {
		return fmt.Errorf("store: remove target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// SetTargetEnabled toggles monitoring for one named target.
func (s *Store) SetTargetEnabled(ctx context.Context, chat int64, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET enabled = ? WHERE chat_id = ? AND name = ?`,
		boolInt(enabled), chat, name)
	if err != nil {
		return fmt.Errorf("store: set target enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAllTargetsEnabled toggles monitoring for every target of a chat.
// Returns the number of targets affected.
func (s *Store) SetAllTargetsEnabled(ctx context.Context, chat int64, enabled bool) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET enabled = ? WHERE chat_id = ?`, boolInt(enabled), chat)
	if err != nil {
		return 0, fmt.Errorf("store: set all targets enabled: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetTargetByID returns one target by row id.
func (s *Store) GetTargetByID(ctx context.Context, targetID int64) (Target, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, name, fingerprint, enabled, interval_seconds,
		       last_checked_at, consecutive_failures, state
		FROM targets WHERE id = ?`, targetID)
	return scanTarget(row)
}

// SetTargetInterval changes the check interval for one named target without
// touching its locator or failure state. Callers clamp to the configured
// minimum first.
func (s *Store) SetTargetInterval(ctx context.Context, chat int64, name string, interval time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET interval_seconds = ? WHERE chat_id = ? AND name = ?`,
		int64(interval/time.Second), chat, name)
	if err != nil {
		return fmt.Errorf("store: set target interval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTarget returns one named target.
func (s *Store) GetTarget(ctx context.Context, chat int64, name string) (Target, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, name, fingerprint, enabled, interval_seconds,
		       last_checked_at, consecutive_failures, state
		FROM targets WHERE chat_id = ? AND name = ?`, chat, name)
	return scanTarget(row)
}

// ListTargets returns every target of a chat, enabled or not. Admin view.
func (s *Store) ListTargets(ctx context.Context, chat int64) ([]Target, error) {
	return s.queryTargets(ctx, `
		SELECT id, chat_id, name, fingerprint, enabled, interval_seconds,
		       last_checked_at, consecutive_failures, state
		FROM targets WHERE chat_id = ? ORDER BY name`, chat)
}

// ListEnabledTargets returns the chat's targets that are currently enabled.
// Called fresh on every scheduler tick so toggles apply on the next tick.
func (s *Store) ListEnabledTargets(ctx context.Context, chat int64) ([]Target, error) {
	return s.queryTargets(ctx, `
		SELECT id, chat_id, name, fingerprint, enabled, interval_seconds,
		       last_checked_at, consecutive_failures, state
		FROM targets WHERE chat_id = ? AND enabled = 1 ORDER BY name`, chat)
}

// ResolveLocator unseals and returns the plaintext locator for a target.
// Callers must not persist or log the result.
func (s *Store) ResolveLocator(ctx context.Context, targetID int64) (string, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT sealed_locator FROM targets WHERE id = ?`, targetID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: load sealed locator: %w", err)
	}
	plain, err := s.box.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("store: unseal locator: %w", err)
	}
	return plain, nil
}

// UpdateTargetState persists the outcome of one probe: new state, failure
// count, and check time, in a single statement.
func (s *Store) UpdateTargetState(ctx context.Context, targetID int64, state string, consecutiveFailures int, lastCheckedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE targets
		SET state = ?, consecutive_failures = ?, last_checked_at = ?
		WHERE id = ?`,
		state, consecutiveFailures, lastCheckedAt.Unix(), targetID)
	if err != nil {
		return fmt.Errorf("store: update target state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- scanning ---------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (Target, error) {
	var (
		t         Target
		enabled   int
		intervalS int64
		checkedAt int64
	)
	err := row.Scan(&t.ID, &t.Chat, &t.Name, &t.Fingerprint, &enabled,
		&intervalS, &checkedAt, &t.ConsecutiveFailures, &t.State)
	if errors.Is(err, sql.ErrNoRows) {
		return Target{}, ErrNotFound
	}
	if err != nil {
		return Target{}, fmt.Errorf("store: scan target: %w", err)
	}
	t.Enabled = enabled != 0
	t.Interval = time.Duration(intervalS) * time.Second
	if checkedAt > 0 {
		t.LastCheckedAt = time.Unix(checkedAt, 0)
	}
	return t, nil
}

func (s *Store) queryTargets(ctx context.Context, query string, args ...interface{}) ([]Target, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query targets: %w", err)
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
