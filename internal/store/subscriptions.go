package store

import (
	"context"
	"fmt"
)

// AddSubscription registers a chat as an alert recipient. Re-adding an
// existing subscription is a no-op.
func (s *Store) AddSubscription(ctx context.Context, chat int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (chat_id, alerts_enabled, created_at)
		VALUES (?, 1, ?)
		ON CONFLICT (chat_id) DO NOTHING`,
		chat, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: add subscription: %w", err)
	}
	return nil
}

// RemoveSubscription deletes a subscription. Targets and benchmark targets
// cascade.
func (s *Store) RemoveSubscription(ctx context.Context, chat int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id = ?`, chat)
	if err != nil {
		return fmt.Errorf("store: remove subscription: %w", err)
	}
	return nil
}

// SetAlertsEnabled flips a subscription's active flag. Inactive subscriptions
// keep their targets but are skipped by the scheduler and poller.
func (s *Store) SetAlertsEnabled(ctx context.Context, chat int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET alerts_enabled = ? WHERE chat_id = ?`,
		boolInt(enabled), chat)
	if err != nil {
		return fmt.Errorf("store: set alerts enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveSubscriptions returns the chat ids of all subscriptions with
// alerts enabled. Called fresh on every scheduler tick.
func (s *Store) ListActiveSubscriptions(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM subscriptions WHERE alerts_enabled = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list active subscriptions: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var chat int64
		if err := rows.Scan(&chat); err != nil {
			return nil, fmt.Errorf("store: scan subscription: %w", err)
		}
		out = append(out, chat)
	}
	return out, rows.Err()
}

// DeleteSubscriptionData removes every trace of a chat: subscription, targets,
// benchmark targets, their history, and audit entries. Used by account
// deletion.
func (s *Store) DeleteSubscriptionData(ctx context.Context, chat int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM check_history WHERE target_id IN
			(SELECT id FROM targets WHERE chat_id = ?)`, chat); err != nil {
		return fmt.Errorf("store: delete history: %w", err)
	}
	// Targets and bench targets cascade from the subscription row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id = ?`, chat); err != nil {
		return fmt.Errorf("store: delete subscription: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_log WHERE chat_id = ?`, chat); err != nil {
		return fmt.Errorf("store: delete audit: %w", err)
	}

	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
