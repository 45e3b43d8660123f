package store

import (
	"context"
	"fmt"
)

// UpsertBenchmarkTarget registers a benchmark watch for a chat. The series
// name is sealed at rest; the (chat, fingerprint) pair dedupes re-adds, and a
// re-add updates the network selector.
func (s *Store) UpsertBenchmarkTarget(ctx context.Context, chat int64, name, network string) error {
	if network != NetworkMainnet && network != NetworkTestnet {
		return fmt.Errorf("store: unknown network %q", network)
	}
	sealed, err := s.box.Seal(name)
	if err != nil {
		return fmt.Errorf("store: seal bench name: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bench_targets (chat_id, sealed_name, fingerprint, network, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, fingerprint) DO UPDATE SET network = excluded.network`,
		chat, sealed, s.box.Fingerprint(name), network, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: upsert bench target: %w", err)
	}
	return nil
}

// RemoveBenchmarkTarget deletes a benchmark watch by its series name.
func (s *Store) RemoveBenchmarkTarget(ctx context.Context, chat int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bench_targets WHERE chat_id = ? AND fingerprint = ?`,
		chat, s.box.Fingerprint(name))
	if err != nil {
		return fmt.Errorf("store: remove bench target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBenchmarkTargets returns a chat's benchmark watches with names unsealed
// for the poll cycle.
func (s *Store) ListBenchmarkTargets(ctx context.Context, chat int64) ([]BenchmarkTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sealed_name, network, last_sample_at, last_value
		FROM bench_targets WHERE chat_id = ? ORDER BY id`, chat)
	if err != nil {
		return nil, fmt.Errorf("store: list bench targets: %w", err)
	}
	defer rows.Close()

	var out []BenchmarkTarget
	for rows.Next() {
		var (
			bt     BenchmarkTarget
			sealed []byte
		)
		if err := rows.Scan(&bt.ID, &bt.Chat, &sealed, &bt.Network, &bt.LastSampleAt, &bt.LastValue); err != nil {
			return nil, fmt.Errorf("store: scan bench target: %w", err)
		}
		name, err := s.box.Open(sealed)
		if err != nil {
			return nil, fmt.Errorf("store: unseal bench name: %w", err)
		}
		bt.Name = name
		out = append(out, bt)
	}
	return out, rows.Err()
}

// RecordBenchmarkSample persists the last observed (timestamp, value) pair
// for a benchmark target.
func (s *Store) RecordBenchmarkSample(ctx context.Context, benchID int64, ts int64, value float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bench_targets SET last_sample_at = ?, last_value = ? WHERE id = ?`,
		ts, value, benchID)
	if err != nil {
		return fmt.Errorf("store: record bench sample: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
