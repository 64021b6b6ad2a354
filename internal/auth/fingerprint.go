// internal/auth/fingerprint.go
package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter maps durable tokens to stable opaque ids so analytics can correlate
// returning players without storing the token itself.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter keys the hash with secret. Secrets longer than 64 bytes are
// first hashed down to the blake2b key size.
func NewFingerprinter(secret string) *Fingerprinter {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Fingerprinter{key: key}
}

// Fingerprint returns a 32 hex char id for token, or "" for an empty token.
func (f *Fingerprinter) Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	h, err := blake2b.New(16, f.key)
	if err != nil {
		// only reachable with an oversized key, which NewFingerprinter prevents
		return ""
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
