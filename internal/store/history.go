package store

import (
	"context"
	"fmt"
	"time"
)

// RecordCheck appends one probe outcome to check history.
func (s *Store) RecordCheck(ctx context.Context, rec CheckRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_history (target_id, observed_at, success, latency_ms, err_class)
		VALUES (?, ?, ?, ?, ?)`,
		rec.TargetID, rec.ObservedAt.Unix(), boolInt(rec.Success), rec.LatencyMS, rec.ErrClass)
	if err != nil {
		return fmt.Errorf("store: record check: %w", err)
	}
	return nil
}

// History returns the most recent check records for a chat's named target,
// newest first, capped at limit.
func (s *Store) History(ctx context.Context, chat int64, name string, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.target_id, h.observed_at, h.success, h.latency_ms, h.err_class
		FROM check_history h
		JOIN targets t ON t.id = h.target_id
		WHERE t.chat_id = ? AND t.name = ?
		ORDER BY h.observed_at DESC, h.id DESC
		LIMIT ?`, chat, name, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var (
			rec        CheckRecord
			observedAt int64
			success    int
		)
		if err := rows.Scan(&rec.TargetID, &observedAt, &success, &rec.LatencyMS, &rec.ErrClass); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		rec.ObservedAt = time.Unix(observedAt, 0)
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneHistory deletes check records older than keep. Returns rows removed.
func (s *Store) PruneHistory(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := s.now().Add(-keep).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM check_history WHERE observed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Audit appends one entry to the audit trail. Detail must already be
// privacy-safe; callers pass fingerprints or masked ids, never plaintext.
func (s *Store) Audit(ctx context.Context, chat int64, action, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (chat_id, action, detail, created_at)
		VALUES (?, ?, ?, ?)`,
		chat, action, detail, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: audit: %w", err)
	}
	return nil
}
