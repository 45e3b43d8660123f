package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/privacy"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/store"
)

// ErrCheckInFlight is returned by CheckNow when the target is already being
// probed or waiting for a concurrency slot.
var ErrCheckInFlight = errors.New("monitor: check already in flight")

// Repository is everything the scheduler reads from and writes through.
// Implemented by *store.Store.
type Repository interface {
	TrackerRepository
	ListActiveSubscriptions(ctx context.Context) ([]int64, error)
	ListEnabledTargets(ctx context.Context, chat int64) ([]store.Target, error)
	GetTarget(ctx context.Context, chat int64, name string) (store.Target, error)
	// ResolveLocator returns the plaintext endpoint address. Callers must not
	// persist or log it.
	ResolveLocator(ctx context.Context, targetID int64) (string, error)
}

// Prober performs one reachability check. Satisfied by *probe.Checker.
type Prober interface {
	Check(ctx context.Context, addr string) probe.Result
}

// Scheduler wakes on a fixed tick, re-reads the active subscriptions and
// their enabled targets from the repository, and probes every target whose
// own interval has elapsed. Probes run as goroutines bounded by a weighted
// semaphore; a tick never blocks on a full semaphore — eligible targets that
// cannot start simply stay eligible for the next tick.
type Scheduler struct {
	repo    Repository
	checker Prober
	tracker *Tracker
	met     *metrics.Set

	tick        time.Duration
	minInterval time.Duration

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	inFlight map[int64]struct{}

	now func() time.Time // injectable for tests
}

// NewScheduler wires a Scheduler from its collaborators and the monitor
// settings.
func NewScheduler(repo Repository, checker Prober, tracker *Tracker, met *metrics.Set, cfg config.MonitorConfig) *Scheduler {
	return &Scheduler{
		repo:        repo,
		checker:     checker,
		tracker:     tracker,
		met:         met,
		tick:        cfg.Tick,
		minInterval: cfg.MinInterval,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrentChecks)),
		inFlight:    make(map[int64]struct{}),
		now:         time.Now,
	}
}

// Run is the scheduling loop. It stops issuing ticks when ctx is cancelled
// and then waits for every in-flight probe to finish or hit its own timeout;
// probes are never cancelled mid-flight.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

// sweep reads the current target set fresh and starts a probe goroutine for
// every due target not already in flight.
func (s *Scheduler) sweep(ctx context.Context) {
	chats, err := s.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		slog.Error("monitor: list subscriptions failed", "err", err)
		return
	}

	now := s.now()
	for _, chat := range chats {
		targets, err := s.repo.ListEnabledTargets(ctx, chat)
		if err != nil {
			slog.Error("monitor: list targets failed",
				"chat", privacy.MaskChat(chat), "err", err)
			continue
		}
		for _, target := range targets {
			if !s.due(target, now) {
				continue
			}
			if !s.claim(target.ID) {
				continue // previous probe still running or queued
			}
			s.wg.Add(1)
			go func(target store.Target) {
				defer s.wg.Done()
				defer s.release(target.ID)
				// Detach from the shutdown signal: an in-flight probe runs to
				// completion under its own connect timeout.
				s.runProbe(ctx, context.WithoutCancel(ctx), target)
			}(target)
		}
	}
}

// due reports whether the target's own interval (clamped to the configured
// minimum) has elapsed since its last check.
func (s *Scheduler) due(target store.Target, now time.Time) bool {
	interval := target.Interval
	if interval < s.minInterval {
		interval = s.minInterval
	}
	return target.LastCheckedAt.IsZero() || now.Sub(target.LastCheckedAt) >= interval
}

// runProbe acquires a concurrency slot, resolves the locator, checks the
// endpoint, and feeds the outcome to the tracker. acquireCtx is the
// cancellable scheduling context — a probe still waiting for a slot at
// shutdown is abandoned; probeCtx survives shutdown.
func (s *Scheduler) runProbe(acquireCtx, probeCtx context.Context, target store.Target) {
	s.met.ProbesInFlight.Inc()
	defer s.met.ProbesInFlight.Dec()

	if err := s.sem.Acquire(acquireCtx, 1); err != nil {
		return // shutting down before a slot freed up
	}
	defer s.sem.Release(1)

	out := s.probeOnce(probeCtx, target)
	s.tracker.Observe(probeCtx, target, out)
}

// probeOnce resolves and checks one target. A resolution failure counts as a
// failed check; the plaintext locator never outlives this call and never
// reaches a log line.
func (s *Scheduler) probeOnce(ctx context.Context, target store.Target) Outcome {
	addr, err := s.repo.ResolveLocator(ctx, target.ID)
	if err != nil {
		slog.Error("monitor: resolve locator failed",
			"chat", privacy.MaskChat(target.Chat), "target", target.Name,
			"fingerprint", short(target.Fingerprint), "err", err)
		return Outcome{Success: false, ObservedAt: s.now(), Class: probe.ClassResolve}
	}

	res := s.checker.Check(ctx, addr)
	return Outcome{
		Success:    res.OK,
		ObservedAt: s.now(),
		Latency:    res.Latency,
		Class:      res.Class,
	}
}

// CheckNow probes one named target immediately, sharing the semaphore, the
// in-flight guard, and the tracker path with scheduled checks. It blocks
// until the probe completes and returns its outcome.
func (s *Scheduler) CheckNow(ctx context.Context, chat int64, name string) (Outcome, error) {
	target, err := s.repo.GetTarget(ctx, chat, name)
	if err != nil {
		return Outcome{}, err
	}
	if !s.claim(target.ID) {
		return Outcome{}, ErrCheckInFlight
	}
	defer s.release(target.ID)

	s.met.ProbesInFlight.Inc()
	defer s.met.ProbesInFlight.Dec()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Outcome{}, err
	}
	defer s.sem.Release(1)

	out := s.probeOnce(ctx, target)
	s.tracker.Observe(ctx, target, out)
	return out, nil
}

func (s *Scheduler) claim(targetID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[targetID]; busy {
		return false
	}
	s.inFlight[targetID] = struct{}{}
	return true
}

func (s *Scheduler) release(targetID int64) {
	s.mu.Lock()
	delete(s.inFlight, targetID)
	s.mu.Unlock()
}

// short truncates a fingerprint for logging.
func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
