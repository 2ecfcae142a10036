package budget

import (
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
)

// SeedValue maps a seed string to the int64 used to seed a random source.
// Decimal seeds map to themselves so "42" and 42 agree; anything else is hashed.
func SeedValue(seed string) int64 {
	trimmed := strings.TrimSpace(seed)
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return v
	}
	h := fnv.New64a()
	h.Write([]byte(trimmed))
	return int64(h.Sum64())
}

// NewSource returns a random source seeded once from seed.
// Each run owns its source; nothing here touches the global rand state.
func NewSource(seed string) *rand.Rand {
	return rand.New(rand.NewSource(SeedValue(seed)))
}
