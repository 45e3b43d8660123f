package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// Failure classes recorded in check history and logs. Classes are fixed
// strings so an endpoint address can never leak through them.
const (
	ClassTimeout     = "timeout"
	ClassRefused     = "refused"
	ClassUnreachable = "unreachable"
	ClassResolve     = "resolve"
)

// Result is the outcome of a single reachability probe.
type Result struct {
	OK      bool
	Latency time.Duration
	// Class is empty on success, otherwise one of the Class* constants.
	Class string
}

// Checker performs one TCP connect per call, bounded by a fixed timeout.
//
// Checker is safe for concurrent use.
type Checker struct {
	timeout time.Duration
	dial    func(ctx context.Context, addr string) (net.Conn, error) // injectable for tests
	now     func() time.Time
}

// New creates a Checker with the given connect timeout.
func New(timeout time.Duration) *Checker {
	d := &net.Dialer{Timeout: timeout}
	return &Checker{
		timeout: timeout,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		},
		now: time.Now,
	}
}

// Check dials addr once and reports whether the endpoint accepted the
// connection. The probe runs under its own timeout, independent of ctx
// cancellation beyond what the dialer observes.
func (c *Checker) Check(ctx context.Context, addr string) Result {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	conn, err := c.dial(dialCtx, addr)
	latency := c.now().Sub(start)

	if err != nil {
		return Result{OK: false, Latency: latency, Class: classify(err)}
	}
	conn.Close()
	return Result{OK: true, Latency: latency}
}

// classify maps a dial error to a fixed, address-free failure class.
func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ClassRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassResolve
	}
	return ClassUnreachable
}
