package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/queue"
	"github.com/watchpost/watchpost/internal/store"
)

// statusTimeout bounds the store reads behind a WebSocket status frame.
const statusTimeout = 5 * time.Second

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	queue   *queue.Queue
	checker *monitor.Scheduler
	mux     *http.ServeMux
}

// New creates a Handler wired to its collaborators and registers all routes.
func New(st *store.Store, q *queue.Queue, checker *monitor.Scheduler) *Handler {
	h := &Handler{store: st, queue: q, checker: checker, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/stats", h.stats)
	h.mux.HandleFunc("/api/v1/targets", h.targets)
	h.mux.HandleFunc("/api/v1/history", h.history)
	h.mux.HandleFunc("/api/v1/bench", h.bench)
	h.mux.HandleFunc("/api/v1/check", h.check)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Status builds the payload broadcast by the WebSocket hub. It shares the
// shape of GET /api/v1/stats.
func (h *Handler) Status() interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	subs, targets, err := h.store.Counts(ctx)
	if err != nil {
		subs, targets = 0, 0
	}
	return StatsResponse{
		Queue:         h.queue.Stats(),
		Subscriptions: subs,
		Targets:       targets,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — liveness plus store counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	subs, targets, err := h.store.Counts(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Subscriptions: subs,
		Targets:       targets,
	})
}

// stats returns GET /api/v1/stats — queue counters and store counts.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Status())
}

// targets returns GET /api/v1/targets?chat= — every target of one chat.
func (h *Handler) targets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}

	targets, err := h.store.ListTargets(r.Context(), chat)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	out := make([]TargetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, toTargetResponse(t))
	}
	jsonResp(w, http.StatusOK, out)
}

// history returns GET /api/v1/history?chat=&name=&limit= — recent checks.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonErr(w, http.StatusBadRequest, "name parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.store.History(r.Context(), chat, name, limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	out := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HistoryEntry{
			ObservedAt: rec.ObservedAt.UTC().Format(time.RFC3339),
			Success:    rec.Success,
			LatencyMS:  rec.LatencyMS,
			ErrClass:   rec.ErrClass,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// bench returns GET /api/v1/bench?chat= — the chat's benchmark watches.
func (h *Handler) bench(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}

	watches, err := h.store.ListBenchmarkTargets(r.Context(), chat)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	out := make([]BenchResponse, 0, len(watches))
	for _, bt := range watches {
		out = append(out, BenchResponse{
			Name:         bt.Name,
			Network:      bt.Network,
			LastSampleAt: bt.LastSampleAt,
			LastValue:    bt.LastValue,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// check handles POST /api/v1/check — a manual probe through the scheduler,
// sharing its concurrency slot and state-machine path.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Chat == 0 || req.Name == "" {
		jsonErr(w, http.StatusBadRequest, "body must be {\"chat\": id, \"name\": target}")
		return
	}

	out, err := h.checker.CheckNow(r.Context(), req.Chat, req.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonErr(w, http.StatusNotFound, "target not found")
		return
	case errors.Is(err, monitor.ErrCheckInFlight):
		jsonErr(w, http.StatusConflict, "check already in flight")
		return
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, "check failed")
		return
	}

	jsonResp(w, http.StatusOK, CheckResponse{
		Success:   out.Success,
		LatencyMS: out.Latency.Milliseconds(),
		ErrClass:  out.Class,
	})
}

// --- helpers ----------------------------------------------------------------

func chatParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	chat, err := strconv.ParseInt(r.URL.Query().Get("chat"), 10, 64)
	if err != nil || chat == 0 {
		jsonErr(w, http.StatusBadRequest, "chat parameter is required")
		return 0, false
	}
	return chat, true
}

func toTargetResponse(t store.Target) TargetResponse {
	resp := TargetResponse{
		Name:                t.Name,
		Fingerprint:         shortFingerprint(t.Fingerprint),
		Enabled:             t.Enabled,
		IntervalSeconds:     int(t.Interval.Seconds()),
		State:               t.State,
		ConsecutiveFailures: t.ConsecutiveFailures,
	}
	if !t.LastCheckedAt.IsZero() {
		resp.LastCheckedAt = t.LastCheckedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
