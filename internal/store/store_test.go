package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/crypto"
)

const testChat int64 = 900011265

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testBox(t *testing.T, seed byte) *crypto.Box {
	t.Helper()
	key := bytes.Repeat([]byte{seed}, 32)
	box, err := crypto.New(key)
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	return box
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), testBox(t, 0x42), 24*time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return baseTime }
	return s
}

func seedTarget(t *testing.T, s *Store, name, locator string) int64 {
	t.Helper()
	ctx := context.Background()
	if err := s.AddSubscription(ctx, testChat); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	id, err := s.UpsertTarget(ctx, testChat, name, locator, time.Minute)
	if err != nil {
		t.Fatalf("UpsertTarget: %v", err)
	}
	return id
}

func TestTargetRoundTrip(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	got, err := s.GetTarget(ctx, testChat, "api")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.ID != id || got.Name != "api" || !got.Enabled {
		t.Errorf("target = %+v, want enabled target 'api' with id %d", got, id)
	}
	if got.State != StateUp || got.ConsecutiveFailures != 0 {
		t.Errorf("fresh target = %s/%d, want UP/0", got.State, got.ConsecutiveFailures)
	}
	if got.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", got.Interval)
	}

	locator, err := s.ResolveLocator(ctx, id)
	if err != nil {
		t.Fatalf("ResolveLocator: %v", err)
	}
	if locator != "10.0.0.5:443" {
		t.Errorf("locator = %q, want the sealed original", locator)
	}
}

func TestUpsertTargetReplacesAndResetsState(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	// Drive the target DOWN, then re-register it with a new locator.
	if err := s.UpdateTargetState(ctx, id, StateDown, 3, baseTime); err != nil {
		t.Fatalf("UpdateTargetState: %v", err)
	}
	id2, err := s.UpsertTarget(ctx, testChat, "api", "10.0.0.9:443", 2*time.Minute)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if id2 != id {
		t.Errorf("re-upsert id = %d, want original %d", id2, id)
	}

	got, _ := s.GetTarget(ctx, testChat, "api")
	if got.State != StateUp || got.ConsecutiveFailures != 0 {
		t.Errorf("re-registered target = %s/%d, want reset to UP/0", got.State, got.ConsecutiveFailures)
	}
	if locator, _ := s.ResolveLocator(ctx, id); locator != "10.0.0.9:443" {
		t.Errorf("locator = %q, want the replacement", locator)
	}
}

func TestEnabledFilterIsLive(t *testing.T) {
	s := openStore(t)
	seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	targets, err := s.ListEnabledTargets(ctx, testChat)
	if err != nil {
		t.Fatalf("ListEnabledTargets: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("enabled targets = %d, want 1", len(targets))
	}

	if err := s.SetTargetEnabled(ctx, testChat, "api", false); err != nil {
		t.Fatalf("SetTargetEnabled: %v", err)
	}
	targets, _ = s.ListEnabledTargets(ctx, testChat)
	if len(targets) != 0 {
		t.Errorf("enabled targets after disable = %d, want 0", len(targets))
	}
	// Still visible to the admin listing.
	all, _ := s.ListTargets(ctx, testChat)
	if len(all) != 1 {
		t.Errorf("all targets = %d, want 1", len(all))
	}
}

func TestSetTargetInterval(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	if err := s.UpdateTargetState(ctx, id, StateDown, 2, baseTime); err != nil {
		t.Fatalf("UpdateTargetState: %v", err)
	}
	if err := s.SetTargetInterval(ctx, testChat, "api", 5*time.Minute); err != nil {
		t.Fatalf("SetTargetInterval: %v", err)
	}

	got, _ := s.GetTarget(ctx, testChat, "api")
	if got.Interval != 5*time.Minute {
		t.Errorf("Interval = %v, want 5m", got.Interval)
	}
	// An interval change must not reset failure tracking.
	if got.State != StateDown || got.ConsecutiveFailures != 2 {
		t.Errorf("target = %s/%d, want DOWN/2 untouched", got.State, got.ConsecutiveFailures)
	}

	if err := s.SetTargetInterval(ctx, testChat, "ghost", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Errorf("interval on missing target = %v, want ErrNotFound", err)
	}
}

func TestUpdateTargetStatePersists(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	checked := baseTime.Add(5 * time.Minute)
	if err := s.UpdateTargetState(ctx, id, StateDown, 3, checked); err != nil {
		t.Fatalf("UpdateTargetState: %v", err)
	}

	got, _ := s.GetTarget(ctx, testChat, "api")
	if got.State != StateDown || got.ConsecutiveFailures != 3 {
		t.Errorf("target = %s/%d, want DOWN/3", got.State, got.ConsecutiveFailures)
	}
	if !got.LastCheckedAt.Equal(checked) {
		t.Errorf("LastCheckedAt = %v, want %v", got.LastCheckedAt, checked)
	}

	if err := s.UpdateTargetState(ctx, 9999, StateUp, 0, checked); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing target = %v, want ErrNotFound", err)
	}
}

func TestSubscriptionActivation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.AddSubscription(ctx, testChat); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if err := s.AddSubscription(ctx, testChat); err != nil {
		t.Errorf("re-add should be a no-op, got %v", err)
	}

	active, _ := s.ListActiveSubscriptions(ctx)
	if len(active) != 1 || active[0] != testChat {
		t.Fatalf("active = %v, want [%d]", active, testChat)
	}

	if err := s.SetAlertsEnabled(ctx, testChat, false); err != nil {
		t.Fatalf("SetAlertsEnabled: %v", err)
	}
	if active, _ = s.ListActiveSubscriptions(ctx); len(active) != 0 {
		t.Errorf("active after pause = %v, want none", active)
	}
}

func TestHistoryRecordAndPrune(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := CheckRecord{
			TargetID:   id,
			ObservedAt: baseTime.Add(time.Duration(i) * time.Hour),
			Success:    i != 1,
			LatencyMS:  int64(10 + i),
		}
		if !rec.Success {
			rec.ErrClass = "timeout"
		}
		if err := s.RecordCheck(ctx, rec); err != nil {
			t.Fatalf("RecordCheck %d: %v", i, err)
		}
	}

	recs, err := s.History(ctx, testChat, "api", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("history = %d records, want 3", len(recs))
	}
	// Newest first.
	if !recs[0].ObservedAt.After(recs[2].ObservedAt) {
		t.Error("history not ordered newest first")
	}

	// Prune from 3h after base: the two oldest records fall outside 90m.
	s.now = func() time.Time { return baseTime.Add(3 * time.Hour) }
	n, err := s.PruneHistory(ctx, 90*time.Minute)
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
}

func TestBenchmarkTargets(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.AddSubscription(ctx, testChat); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertBenchmarkTarget(ctx, testChat, "alpha", NetworkMainnet); err != nil {
		t.Fatalf("UpsertBenchmarkTarget: %v", err)
	}
	// Re-adding switches the network, not duplicates.
	if err := s.UpsertBenchmarkTarget(ctx, testChat, "alpha", NetworkTestnet); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if err := s.UpsertBenchmarkTarget(ctx, testChat, "alpha", "devnet"); err == nil {
		t.Error("unknown network accepted")
	}

	watches, err := s.ListBenchmarkTargets(ctx, testChat)
	if err != nil {
		t.Fatalf("ListBenchmarkTargets: %v", err)
	}
	if len(watches) != 1 {
		t.Fatalf("watches = %d, want 1", len(watches))
	}
	if watches[0].Name != "alpha" || watches[0].Network != NetworkTestnet {
		t.Errorf("watch = %+v, want alpha on testnet", watches[0])
	}

	if err := s.RecordBenchmarkSample(ctx, watches[0].ID, 1000, 0.42); err != nil {
		t.Fatalf("RecordBenchmarkSample: %v", err)
	}
	watches, _ = s.ListBenchmarkTargets(ctx, testChat)
	if watches[0].LastSampleAt != 1000 || watches[0].LastValue != 0.42 {
		t.Errorf("sample = (%d, %v), want (1000, 0.42)", watches[0].LastSampleAt, watches[0].LastValue)
	}

	if err := s.RemoveBenchmarkTarget(ctx, testChat, "alpha"); err != nil {
		t.Fatalf("RemoveBenchmarkTarget: %v", err)
	}
	if err := s.RemoveBenchmarkTarget(ctx, testChat, "alpha"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove = %v, want ErrNotFound", err)
	}
}

func TestDeleteSubscriptionDataRemovesEverything(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()

	if err := s.UpsertBenchmarkTarget(ctx, testChat, "alpha", NetworkMainnet); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCheck(ctx, CheckRecord{TargetID: id, ObservedAt: baseTime, Success: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Audit(ctx, testChat, "addtarget", "fp:aabbcc"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSubscriptionData(ctx, testChat); err != nil {
		t.Fatalf("DeleteSubscriptionData: %v", err)
	}

	subs, targets, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if subs != 0 || targets != 0 {
		t.Errorf("counts after delete = (%d, %d), want (0, 0)", subs, targets)
	}
	if _, err := s.GetTarget(ctx, testChat, "api"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTarget after delete = %v, want ErrNotFound", err)
	}
}

func TestReencryptAll(t *testing.T) {
	s := openStore(t)
	id := seedTarget(t, s, "api", "10.0.0.5:443")
	ctx := context.Background()
	if err := s.UpsertBenchmarkTarget(ctx, testChat, "alpha", NetworkMainnet); err != nil {
		t.Fatal(err)
	}

	newBox := testBox(t, 0x99)
	n, err := s.ReencryptAll(ctx, newBox)
	if err != nil {
		t.Fatalf("ReencryptAll: %v", err)
	}
	if n != 2 {
		t.Errorf("rows rewritten = %d, want 2", n)
	}

	// The store now unseals with the new key.
	locator, err := s.ResolveLocator(ctx, id)
	if err != nil {
		t.Fatalf("ResolveLocator after rotation: %v", err)
	}
	if locator != "10.0.0.5:443" {
		t.Errorf("locator = %q, want unchanged plaintext", locator)
	}
	// And fingerprints moved to the new key.
	got, _ := s.GetTarget(ctx, testChat, "api")
	if got.Fingerprint != newBox.Fingerprint("10.0.0.5:443") {
		t.Error("fingerprint not recomputed under the new key")
	}
}
