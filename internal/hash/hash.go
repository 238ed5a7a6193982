// Package hash provides the short URL digest used to disambiguate
// artifact paths when two articles share a title.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
)

// ShortURL returns the first 8 hex characters of the URL's SHA-1.
func ShortURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}
