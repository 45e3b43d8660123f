// Package monitor contains the scheduling loop that probes every enabled
// target on its own interval and the state tracker that turns consecutive
// probe outcomes into UP/DOWN transitions and alert messages. Target state is
// owned by the repository and re-read fresh on every tick; the only state
// held here is the concurrency semaphore, the in-flight guard, and the
// per-target transition locks.
package monitor
