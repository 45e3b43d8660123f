package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/privacy"
	"github.com/watchpost/watchpost/internal/store"
)

// Alert kinds, used as the metrics label and in logs.
const (
	KindDown      = "down"
	KindRecovered = "recovered"
)

// Outcome is the result of one probe as seen by the tracker.
type Outcome struct {
	Success    bool
	ObservedAt time.Time
	Latency    time.Duration
	// Class is the probe failure class, empty on success.
	Class string
}

// Enqueuer accepts one outbound message for one recipient without blocking.
// Satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(recipient int64, text string) bool
}

// TrackerRepository is the slice of the repository the tracker reads and
// writes through.
type TrackerRepository interface {
	GetTargetByID(ctx context.Context, targetID int64) (store.Target, error)
	UpdateTargetState(ctx context.Context, targetID int64, state string, consecutiveFailures int, lastCheckedAt time.Time) error
	RecordCheck(ctx context.Context, rec store.CheckRecord) error
}

// Tracker drives the per-target UP/DOWN state machine. A target transitions
// UP→DOWN when its consecutive failure count first reaches the threshold and
// DOWN→UP on the first success after that; each transition emits exactly one
// alert. The new state is persisted before the alert is enqueued, so a crash
// in between cannot double-fire on restart.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	repo      TrackerRepository
	out       Enqueuer
	threshold int
	met       *metrics.Set

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-target transition locks
}

// NewTracker creates a Tracker with the given consecutive-failure threshold.
func NewTracker(repo TrackerRepository, out Enqueuer, threshold int, met *metrics.Set) *Tracker {
	return &Tracker{
		repo:      repo,
		out:       out,
		threshold: threshold,
		met:       met,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// Observe applies one probe outcome to target: it appends the check record,
// computes and persists the next state, and enqueues an alert if the outcome
// crossed a transition. The passed target only identifies the row; the state
// it carries was read at scheduling time and another check (a manual one,
// say) may have landed since, so the authoritative state and failure count
// are re-read under the per-target lock before the transition is computed.
func (t *Tracker) Observe(ctx context.Context, target store.Target, out Outcome) {
	lock := t.lockFor(target.ID)
	lock.Lock()
	defer lock.Unlock()

	t.met.ChecksTotal.Inc()
	if !out.Success {
		t.met.CheckFailuresTotal.Inc()
	}

	if err := t.repo.RecordCheck(ctx, store.CheckRecord{
		TargetID:   target.ID,
		ObservedAt: out.ObservedAt,
		Success:    out.Success,
		LatencyMS:  out.Latency.Milliseconds(),
		ErrClass:   out.Class,
	}); err != nil {
		slog.Error("monitor: record check failed",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name, "err", err)
	}

	fresh, err := t.repo.GetTargetByID(ctx, target.ID)
	if err != nil {
		// Removed (or unreadable) mid-probe; nothing to transition.
		slog.Warn("monitor: target gone before state update",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name, "err", err)
		return
	}

	state, failures := fresh.State, fresh.ConsecutiveFailures
	if state == "" {
		state = store.StateUp
	}

	var kind string
	if out.Success {
		if state == store.StateDown {
			kind = KindRecovered
		}
		state, failures = store.StateUp, 0
	} else {
		failures++
		if failures == t.threshold && state == store.StateUp {
			kind = KindDown
			state = store.StateDown
		}
	}

	// Persist before emitting: a restart after this write sees the target
	// already DOWN (or UP) and will not fire the same transition again.
	if err := t.repo.UpdateTargetState(ctx, target.ID, state, failures, out.ObservedAt); err != nil {
		slog.Error("monitor: persist target state failed",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name, "err", err)
		return
	}

	switch kind {
	case KindDown:
		t.met.AlertsTotal.WithLabelValues(KindDown).Inc()
		slog.Warn("monitor: target down",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name,
			"failures", failures, "class", out.Class)
		t.out.Enqueue(target.Chat, downMessage(target, failures, out.Class))
	case KindRecovered:
		t.met.AlertsTotal.WithLabelValues(KindRecovered).Inc()
		slog.Info("monitor: target recovered",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name)
		t.out.Enqueue(target.Chat, recoveredMessage(target, out.Latency))
	}
}

func (t *Tracker) lockFor(targetID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[targetID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[targetID] = l
	}
	return l
}

// downMessage and recoveredMessage render the alert texts. Only the
// user-chosen display name appears, never the endpoint address.

func downMessage(target store.Target, failures int, class string) string {
	return fmt.Sprintf("🔴 <b>%s</b> is DOWN (%d consecutive failed checks, %s)",
		target.Name, failures, class)
}

func recoveredMessage(target store.Target, latency time.Duration) string {
	return fmt.Sprintf("🟢 <b>%s</b> is reachable again (%d ms)",
		target.Name, latency.Milliseconds())
}
