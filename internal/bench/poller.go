package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/privacy"
	"github.com/watchpost/watchpost/internal/store"
)

// KindThreshold is the metrics label for benchmark threshold alerts.
const KindThreshold = "bench_threshold"

// Repository is the slice of the store the poller uses.
type Repository interface {
	ListActiveSubscriptions(ctx context.Context) ([]int64, error)
	ListBenchmarkTargets(ctx context.Context, chat int64) ([]store.BenchmarkTarget, error)
	RecordBenchmarkSample(ctx context.Context, benchID int64, ts int64, value float64) error
}

// Enqueuer accepts one outbound message for one recipient without blocking.
// Satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(recipient int64, text string) bool
}

// Poller samples every subscription's benchmark targets on a fixed interval
// and alerts when a value crosses the threshold. Alerts use episode
// semantics: a series that stays over threshold across cycles alerts once,
// on the cycle that crossed; dropping back under re-arms it. Episode state
// lives only in memory, so a restart re-arms open episodes and may re-alert
// once.
//
// Poller runs as a single goroutine; it is not safe for concurrent use.
type Poller struct {
	repo Repository
	src  Source
	out  Enqueuer
	met  *metrics.Set

	threshold float64
	interval  time.Duration

	over map[int64]bool // open episodes, keyed by benchmark target id
}

// New creates a Poller from the bench settings.
func New(repo Repository, src Source, out Enqueuer, met *metrics.Set, cfg config.BenchConfig) *Poller {
	return &Poller{
		repo:      repo,
		src:       src,
		out:       out,
		met:       met,
		threshold: cfg.ThresholdSeconds,
		interval:  cfg.Interval,
		over:      make(map[int64]bool),
	}
}

// Run polls once immediately, then on every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.cycle(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.cycle(ctx)
		}
	}
}

// cycle samples every benchmark target of every active subscription. All
// per-target failures are contained: logged, counted, and skipped.
func (p *Poller) cycle(ctx context.Context) {
	chats, err := p.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		slog.Error("bench: list subscriptions failed", "err", err)
		return
	}

	for _, chat := range chats {
		targets, err := p.repo.ListBenchmarkTargets(ctx, chat)
		if err != nil {
			slog.Error("bench: list targets failed",
				"chat", privacy.MaskChat(chat), "err", err)
			continue
		}
		for _, bt := range targets {
			p.sample(ctx, bt)
		}
	}
}

// sample fetches, normalizes, records, and evaluates one benchmark target.
func (p *Poller) sample(ctx context.Context, bt store.BenchmarkTarget) {
	raw, err := p.src.Fetch(ctx, bt.Name, bt.Network)
	if err != nil {
		slog.Warn("bench: fetch failed",
			"chat", privacy.MaskChat(bt.Chat),
			"target", privacy.ShortHash("bench", bt.Name),
			"network", bt.Network, "err", err)
		return
	}

	s, err := Normalize(bt.Name, raw)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedShape) {
			p.met.BenchParseFailures.Inc()
		}
		slog.Warn("bench: skipping target this cycle",
			"chat", privacy.MaskChat(bt.Chat),
			"target", privacy.ShortHash("bench", bt.Name),
			"network", bt.Network, "err", err)
		return
	}

	p.met.BenchSamples.Inc()
	if err := p.repo.RecordBenchmarkSample(ctx, bt.ID, s.Timestamp, s.Value); err != nil {
		slog.Error("bench: record sample failed",
			"chat", privacy.MaskChat(bt.Chat), "err", err)
	}

	p.evaluate(bt, s)
}

// evaluate applies the threshold with episode suppression.
func (p *Poller) evaluate(bt store.BenchmarkTarget, s Sample) {
	if s.Value <= p.threshold {
		if p.over[bt.ID] {
			delete(p.over, bt.ID)
			slog.Info("bench: back under threshold",
				"chat", privacy.MaskChat(bt.Chat),
				"target", privacy.ShortHash("bench", bt.Name),
				"value", s.Value)
		}
		return
	}

	if p.over[bt.ID] {
		return // episode already announced
	}
	p.over[bt.ID] = true

	p.met.AlertsTotal.WithLabelValues(KindThreshold).Inc()
	slog.Warn("bench: threshold exceeded",
		"chat", privacy.MaskChat(bt.Chat),
		"target", privacy.ShortHash("bench", bt.Name),
		"network", bt.Network,
		"value", s.Value, "threshold", p.threshold)
	p.out.Enqueue(bt.Chat, thresholdMessage(bt, s, p.threshold))
}

func thresholdMessage(bt store.BenchmarkTarget, s Sample, threshold float64) string {
	return fmt.Sprintf("⚠️ Benchmark <b>%s</b> (%s) at %.3fs, over the %.3fs threshold",
		bt.Name, bt.Network, s.Value, threshold)
}
