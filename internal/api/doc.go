// Package api serves the admin HTTP endpoints: daemon health, queue and
// store counters, target listings, check history, and manual checks. It also
// builds the status frames the WebSocket hub broadcasts. Responses never
// include endpoint addresses; targets are identified by their display name
// and truncated fingerprint.
package api
