// Package privacy holds the log-masking helpers. Nothing that identifies a
// recipient or a monitored endpoint is logged directly; chat ids are masked
// and endpoint references are reduced to salted short hashes.
package privacy
