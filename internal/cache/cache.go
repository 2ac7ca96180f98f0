package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
//
// Keys are content hashes of the full request payload, so a key is only ever
// written with one value. Stores may ignore a repeated write of a present key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a namespace and the parts of a request payload
func CacheKey(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "sixc:v1:" + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
