package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// masterKeySize is the required length of the raw master key in bytes.
	masterKeySize = 32

	// pbkdf2Iterations is the PBKDF2 round count used for key derivation.
	pbkdf2Iterations = 480_000

	encSalt = "watchpost.enc.v1"
	macSalt = "watchpost.mac.v1"
)

var (
	// ErrInvalidKey is returned when the master key is missing or malformed.
	ErrInvalidKey = errors.New("crypto: invalid master key")

	// ErrOpen is returned when a sealed blob cannot be decrypted — wrong key,
	// truncated blob, or tampered ciphertext.
	ErrOpen = errors.New("crypto: cannot open sealed value")
)

// Box seals and opens secret values and computes log-safe fingerprints.
// Two independent keys are derived from the master key: one for AES-GCM
// encryption and one for HMAC fingerprinting, so a fingerprint never leaks
// material usable for decryption.
//
// Box is safe for concurrent use.
type Box struct {
	aead   cipher.AEAD
	macKey []byte
}

// New creates a Box from a raw 32-byte master key.
func New(masterKey []byte) (*Box, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, masterKeySize, len(masterKey))
	}

	encKey := pbkdf2.Key(masterKey, []byte(encSalt), pbkdf2Iterations, masterKeySize, sha256.New)
	macKey := pbkdf2.Key(masterKey, []byte(macSalt), pbkdf2Iterations, masterKeySize, sha256.New)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	return &Box{aead: aead, macKey: macKey}, nil
}

// FromEnv creates a Box from a base64-encoded master key stored in the named
// environment variable. The variable name (not its value) may appear in errors.
func FromEnv(envVar string) (*Box, error) {
	if envVar == "" {
		return nil, fmt.Errorf("%w: no environment variable configured", ErrInvalidKey)
	}
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set", ErrInvalidKey, envVar)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64", ErrInvalidKey, envVar)
	}
	return New(key)
}

// Seal encrypts plaintext and returns a self-contained blob with the random
// nonce prepended to the ciphertext.
func (b *Box) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a blob produced by Seal and returns the plaintext.
func (b *Box) Open(blob []byte) (string, error) {
	if len(blob) < b.aead.NonceSize() {
		return "", ErrOpen
	}
	nonce, ciphertext := blob[:b.aead.NonceSize()], blob[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(plain), nil
}

// Fingerprint returns the hex HMAC-SHA256 of plaintext under the MAC key.
// Fingerprints are deterministic per key, so they can serve as equality
// handles for sealed values and as log-safe references.
func (b *Box) Fingerprint(plaintext string) string {
	mac := hmac.New(sha256.New, b.macKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
