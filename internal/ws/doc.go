// Package ws streams periodic daemon status frames (queue counters, store
// counts) to connected WebSocket clients.
package ws
