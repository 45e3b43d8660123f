// Package probe implements the TCP reachability check. One call, one
// connect attempt, one timeout; failures are reduced to fixed classes that
// carry no endpoint information.
package probe
