// Package queue implements the rate-limited alert delivery queue. Enqueue is
// non-blocking; a fixed worker pool drains per-recipient FIFO lanes, enforcing
// a minimum spacing between deliveries to the same recipient and retrying
// transient sink failures with capped exponential backoff.
package queue
