package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Fingerprint hashes title, content, and publication date into the document's
// identity. The URL is deliberately excluded so mirrored copies collapse to
// one record.
func Fingerprint(title, content string, published time.Time) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{'\n'})
	h.Write([]byte(content))
	h.Write([]byte{'\n'})
	h.Write([]byte(published.UTC().Format("2006-01-02")))
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintCache remembers fingerprints seen during one run so the store is
// not re-queried for documents the run already handled.
type FingerprintCache struct {
	seen sync.Map
}

// NewFingerprintCache constructs an empty cache.
func NewFingerprintCache() *FingerprintCache {
	return &FingerprintCache{}
}

// MarkIfNew stores the fingerprint if it has not been seen before and
// returns true.
func (c *FingerprintCache) MarkIfNew(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	_, loaded := c.seen.LoadOrStore(fingerprint, struct{}{})
	return !loaded
}
