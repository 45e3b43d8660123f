package store

import "time"

// Target states as persisted in the state column.
const (
	StateUp   = "UP"
	StateDown = "DOWN"
)

// Networks a benchmark target may select.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Target is one monitored endpoint. The plaintext locator is never part of
// this struct; it is resolved on demand through ResolveLocator and discarded
// after the probe.
type Target struct {
	ID                  int64
	Chat                int64
	Name                string
	Fingerprint         string
	Enabled             bool
	Interval            time.Duration
	LastCheckedAt       time.Time // zero if never checked
	ConsecutiveFailures int
	State               string
}

// BenchmarkTarget is one benchmark watch. Name is unsealed on read because
// the poller needs it each cycle; it is a public series name, not an address.
type BenchmarkTarget struct {
	ID           int64
	Chat         int64
	Name         string
	Network      string
	LastSampleAt int64 // unix seconds, 0 if never sampled
	LastValue    float64
}

// CheckRecord is one probe outcome appended to check history.
type CheckRecord struct {
	TargetID   int64
	ObservedAt time.Time
	Success    bool
	LatencyMS  int64
	ErrClass   string
}

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	Chat      int64
	Action    string
	Detail    string
	CreatedAt time.Time
}
