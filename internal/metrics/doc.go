// Package metrics declares the Prometheus instruments exported at /metrics.
package metrics
