package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// HashKey returns the hex xxhash64 of the parts joined by NUL.
func HashKey(parts ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "\x00")), 16)
}
