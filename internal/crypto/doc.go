// Package crypto provides encryption-at-rest for target locators and other
// secret values. A single master key (supplied via environment variable)
// derives separate AES-GCM and HMAC keys through PBKDF2; sealed blobs carry
// their nonce and fingerprints are stable per key.
package crypto
