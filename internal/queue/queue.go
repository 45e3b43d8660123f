package queue

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/privacy"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	jitterFraction    = 0.25

	sendTimeout   = 10 * time.Second
	sweepInterval = time.Minute
)

// Stats is a snapshot of the queue counters, consumed by the admin API and
// the WebSocket status frames.
type Stats struct {
	Enqueued uint64 `json:"enqueued"`
	Sent     uint64 `json:"sent"`
	Retried  uint64 `json:"retried"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
}

// lane is the FIFO of pending messages for one recipient. At most one worker
// services a lane at a time, which is what preserves per-recipient order.
type lane struct {
	items  []string
	active bool // a worker currently owns this lane
	queued bool // the lane is waiting in the ready channel
}

// Queue is the bounded alert delivery queue. Messages enter through Enqueue
// and leave through a fixed pool of workers that apply the per-recipient rate
// limiter and retry transient failures with capped exponential backoff.
//
// Queue is safe for concurrent use.
type Queue struct {
	sink        notify.Sink
	met         *metrics.Set
	workers     int
	capacity    int
	maxAttempts int
	limiter     *Limiter

	mu    sync.Mutex
	lanes map[int64]*lane
	depth int
	// ready carries recipients whose lane has work and no owner. Capacity
	// matches the queue capacity so a send under mu can never block.
	ready chan int64

	enqueued atomic.Uint64
	sent     atomic.Uint64
	retried  atomic.Uint64
	dropped  atomic.Uint64

	sleep func(ctx context.Context, d time.Duration) bool // injectable for tests
}

// New creates a Queue delivering through sink with the given settings.
func New(sink notify.Sink, met *metrics.Set, cfg config.QueueConfig) *Queue {
	return &Queue{
		sink:        sink,
		met:         met,
		workers:     cfg.Workers,
		capacity:    cfg.Capacity,
		maxAttempts: cfg.MaxAttempts,
		limiter:     NewLimiter(cfg.PerChatRate),
		lanes:       make(map[int64]*lane),
		ready:       make(chan int64, cfg.Capacity),
		sleep:       sleepCtx,
	}
}

// Enqueue accepts one message for recipient and returns immediately. It
// reports false when the queue is at capacity; the message is dropped and
// counted, never blocked on.
func (q *Queue) Enqueue(recipient int64, text string) bool {
	q.mu.Lock()
	if q.depth >= q.capacity {
		q.mu.Unlock()
		q.dropped.Add(1)
		q.met.QueueDropped.Inc()
		slog.Warn("queue: full, dropping message",
			"recipient", privacy.MaskChat(recipient), "depth", q.capacity)
		return false
	}

	ln, ok := q.lanes[recipient]
	if !ok {
		ln = &lane{}
		q.lanes[recipient] = ln
	}
	ln.items = append(ln.items, text)
	q.depth++
	if !ln.active && !ln.queued {
		ln.queued = true
		q.ready <- recipient
	}
	q.mu.Unlock()

	q.enqueued.Add(1)
	q.met.QueueEnqueued.Inc()
	q.met.QueueDepth.Inc()
	return true
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	depth := q.depth
	q.mu.Unlock()
	return Stats{
		Enqueued: q.enqueued.Load(),
		Sent:     q.sent.Load(),
		Retried:  q.retried.Load(),
		Dropped:  q.dropped.Load(),
		Depth:    depth,
	}
}

// Run starts the worker pool and the limiter sweep loop. New dequeues stop
// when ctx is cancelled; a delivery already in progress finishes first. Run
// blocks until every worker has returned.
func (q *Queue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.worker(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				q.limiter.Sweep()
			}
		}
	}()

	wg.Wait()
}

// worker serves one ready lane at a time: pop the head item, deliver it, and
// rotate the lane to the back of the ready channel if it still has work. The
// rotation is what keeps a burst to one recipient from starving the rest.
func (q *Queue) worker(ctx context.Context) {
	for {
		var recipient int64
		select {
		case <-ctx.Done():
			return
		case recipient = <-q.ready:
		}

		q.mu.Lock()
		ln := q.lanes[recipient]
		ln.queued = false
		ln.active = true
		text := ln.items[0]
		q.mu.Unlock()

		q.deliver(ctx, recipient, text)

		q.mu.Lock()
		ln.items = ln.items[1:]
		q.depth--
		ln.active = false
		if len(ln.items) > 0 {
			ln.queued = true
			q.ready <- recipient
		} else {
			delete(q.lanes, recipient)
		}
		q.mu.Unlock()
		q.met.QueueDepth.Dec()
	}
}

// deliver sends one message, waiting out the recipient's rate-limit slot
// first and retrying transient failures until the attempt budget is spent.
func (q *Queue) deliver(ctx context.Context, recipient int64, text string) {
	if wait := q.limiter.Reserve(recipient); wait > 0 {
		if !q.sleep(ctx, wait) {
			return // shutting down; the slot is already consumed, let it go
		}
	}

	backoff := backoffInitial
	for attempt := 1; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		err := q.sink.Send(sendCtx, recipient, text)
		cancel()

		if err == nil {
			q.sent.Add(1)
			q.met.QueueSent.Inc()
			slog.Debug("queue: delivered",
				"recipient", privacy.MaskChat(recipient), "attempt", attempt)
			return
		}

		if notify.IsPermanent(err) {
			q.dropped.Add(1)
			q.met.QueueDropped.Inc()
			slog.Error("queue: permanent delivery failure, dropping",
				"recipient", privacy.MaskChat(recipient), "err", err)
			return
		}

		if attempt >= q.maxAttempts {
			q.dropped.Add(1)
			q.met.QueueDropped.Inc()
			slog.Error("queue: attempts exhausted, dropping",
				"recipient", privacy.MaskChat(recipient),
				"attempts", attempt, "err", err)
			return
		}

		q.retried.Add(1)
		q.met.QueueRetried.Inc()
		wait := jitter(backoff)
		slog.Warn("queue: transient delivery failure, will retry",
			"recipient", privacy.MaskChat(recipient),
			"attempt", attempt, "retry_in", wait, "err", err)
		if !q.sleep(ctx, wait) {
			return
		}

		backoff = time.Duration(float64(backoff) * backoffMultiplier)
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// jitter applies ±25 % noise to d.
func jitter(d time.Duration) time.Duration {
	j := time.Duration(float64(d) * jitterFraction * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	if d += j; d < 0 {
		return 0
	}
	return d
}

// sleepCtx waits d or until ctx is cancelled, reporting whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
