// Package identity produces stable unique identifiers for records that are
// referenced across the local and remote stores. Identifiers are random
// version-4 UUID strings; once assigned to a record they never change.
package identity

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// New returns a random version-4 UUID string. If the secure random source is
// unavailable it falls back to a pseudo-random v4 with the correct version
// and variant bits; collisions are negligible at this dataset size either way.
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallback()
	}
	return id.String()
}

// fallback builds a v4-shaped UUID from math/rand.
func fallback() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
