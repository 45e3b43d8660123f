package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

// hostPortPattern matches address-like substrings (hostname or IP followed by
// a port) so they can be scrubbed from free-form text before logging.
var hostPortPattern = regexp.MustCompile(`\b[\w.-]+\.[\w-]+:\d{1,5}\b|\b\d{1,3}(?:\.\d{1,3}){3}:\d{1,5}\b`)

// MaskChat returns a log-safe form of a chat id, keeping only the last four
// digits: 987651265 -> "****1265".
func MaskChat(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) <= 4 {
		return "****" + s
	}
	return "****" + s[len(s)-4:]
}

// ShortHash returns a compact salted reference for a sensitive value, e.g.
// ShortHash("target", "10.0.0.5:9090") -> "target:3f9ab2c4". The hash is
// one-way; it identifies the value across log lines without revealing it.
func ShortHash(prefix, value string) string {
	sum := sha256.Sum256([]byte(prefix + "|" + value))
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:])[:8])
}

// Scrub replaces address-looking substrings in s with "[redacted]".
// Used as a last line of defence on error strings that may embed an endpoint.
func Scrub(s string) string {
	return hostPortPattern.ReplaceAllString(s, "[redacted]")
}
