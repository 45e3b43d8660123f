package store

import (
	"context"
	"fmt"

	"github.com/watchpost/watchpost/internal/crypto"
)

// ReencryptAll re-seals every sealed column under newBox in one transaction.
// The store must have been opened with the current (old) box. Returns the
// number of rows rewritten. Fingerprints are recomputed with the new key.
func (s *Store) ReencryptAll(ctx context.Context, newBox *crypto.Box) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin reencrypt: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	total := 0

	rows, err := tx.QueryContext(ctx, `SELECT id, sealed_locator FROM targets`)
	if err != nil {
		return 0, fmt.Errorf("store: load targets: %w", err)
	}
	type resealed struct {
		id   int64
		blob []byte
		fp   string
	}
	var targets []resealed
	for rows.Next() {
		var (
			id     int64
			sealed []byte
		)
		if err := rows.Scan(&id, &sealed); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan target %d: %w", id, err)
		}
		plain, err := s.box.Open(sealed)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: unseal target %d: %w", id, err)
		}
		blob, err := newBox.Seal(plain)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: reseal target %d: %w", id, err)
		}
		targets = append(targets, resealed{id, blob, newBox.Fingerprint(plain)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: iterate targets: %w", err)
	}

	for _, t := range targets {
		if _, err := tx.ExecContext(ctx,
			`UPDATE targets SET sealed_locator = ?, fingerprint = ? WHERE id = ?`,
			t.blob, t.fp, t.id); err != nil {
			return 0, fmt.Errorf("store: rewrite target %d: %w", t.id, err)
		}
		total++
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, sealed_name FROM bench_targets`)
	if err != nil {
		return 0, fmt.Errorf("store: load bench targets: %w", err)
	}
	var benches []resealed
	for rows.Next() {
		var (
			id     int64
			sealed []byte
		)
		if err := rows.Scan(&id, &sealed); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan bench target %d: %w", id, err)
		}
		plain, err := s.box.Open(sealed)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: unseal bench target %d: %w", id, err)
		}
		blob, err := newBox.Seal(plain)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: reseal bench target %d: %w", id, err)
		}
		benches = append(benches, resealed{id, blob, newBox.Fingerprint(plain)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: iterate bench targets: %w", err)
	}

	for _, b := range benches {
		if _, err := tx.ExecContext(ctx,
			`UPDATE bench_targets SET sealed_name = ?, fingerprint = ? WHERE id = ?`,
			b.blob, b.fp, b.id); err != nil {
			return 0, fmt.Errorf("store: rewrite bench target %d: %w", b.id, err)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit reencrypt: %w", err)
	}

	// All future seals use the new key.
	s.box = newBox
	return total, nil
}
