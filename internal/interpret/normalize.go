package interpret

import (
	"encoding/hex"
	"hash/fnv"
	"strings"
)

// Normalize trims and lower-cases raw input and derives its fingerprint,
// a stable 128-bit content hash used as the cache key. Pure function.
func Normalize(raw string) (normalized, fingerprint string) {
	normalized = strings.ToLower(strings.TrimSpace(raw))

	h := fnv.New128a()
	_, _ = h.Write([]byte(normalized))
	fingerprint = hex.EncodeToString(h.Sum(nil))
	return normalized, fingerprint
}
