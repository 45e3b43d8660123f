package api

import "github.com/watchpost/watchpost/internal/queue"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Subscriptions int    `json:"subscriptions"`
	Targets       int    `json:"targets"`
}

// StatsResponse is the payload for GET /api/v1/stats and the data field of
// the WebSocket status frames.
type StatsResponse struct {
	Queue         queue.Stats `json:"queue"`
	Subscriptions int         `json:"subscriptions"`
	Targets       int         `json:"targets"`
	GeneratedAt   string      `json:"generated_at"` // RFC3339
}

// TargetResponse is one target entry in GET /api/v1/targets.
type TargetResponse struct {
	Name                string `json:"name"`
	Fingerprint         string `json:"fingerprint"` // truncated, log-safe
	Enabled             bool   `json:"enabled"`
	IntervalSeconds     int    `json:"interval_seconds"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastCheckedAt       string `json:"last_checked_at,omitempty"` // RFC3339
}

// HistoryEntry is one check record in GET /api/v1/history.
type HistoryEntry struct {
	ObservedAt string `json:"observed_at"` // RFC3339
	Success    bool   `json:"success"`
	LatencyMS  int64  `json:"latency_ms"`
	ErrClass   string `json:"err_class,omitempty"`
}

// BenchResponse is one benchmark watch in GET /api/v1/bench.
type BenchResponse struct {
	Name         string  `json:"name"`
	Network      string  `json:"network"`
	LastSampleAt int64   `json:"last_sample_at"`
	LastValue    float64 `json:"last_value"`
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	Chat int64  `json:"chat"`
	Name string `json:"name"`
}

// CheckResponse is the outcome of a manual check.
type CheckResponse struct {
	Success   bool   `json:"success"`
	LatencyMS int64  `json:"latency_ms"`
	ErrClass  string `json:"err_class,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
