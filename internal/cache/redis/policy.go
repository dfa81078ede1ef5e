package redis

import (
	"strings"
	"time"
)

// Policy decides whether a response may be cached and for how long.
// Pure data, no redis dependency, so the gating rules are testable alone.
type Policy struct {
	MinConfidence float64
	BaseTTL       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinConfidence: 0.6,
		BaseTTL:       30 * time.Minute,
	}
}

var categoryTTLMultipliers = map[string]float64{
	"legal":        2.0,
	"construction": 1.5,
	"zoning":       1.5,
	"general":      1.0,
	"analysis":     0.8,
	"calculation":  0.5,
}

// failureMarkers are substrings of error and fallback responses, which
// must never be served from cache.
var failureMarkers = []string{
	"não tenho informações",
	"não consegui processar",
	"não encontrei",
	"versão beta",
	"erro interno",
}

// Cacheable reports whether a response qualifies for storage: confidence
// at or above the floor and a payload that does not read like a failure.
func (p Policy) Cacheable(confidence float64, responseText string) bool {
	if confidence < p.MinConfidence {
		return false
	}
	lower := strings.ToLower(responseText)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// TTLFor computes the dynamic TTL: high-confidence answers live longer,
// and stable categories (legal, construction) longer still.
func (p Policy) TTLFor(confidence float64, category string) time.Duration {
	ttl := float64(p.BaseTTL)

	switch {
	case confidence >= 0.9:
		ttl *= 2
	case confidence >= 0.8:
		ttl *= 1.5
	}

	if m, ok := categoryTTLMultipliers[category]; ok {
		ttl *= m
	}

	return time.Duration(ttl)
}
