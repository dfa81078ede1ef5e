package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// NormalizeQuery canonicalizes query text for cache keys: lowercase,
// trimmed, internal whitespace collapsed to single underscores.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), "_")
}
