// Package hash holds the xxHash64 based digests used on the wire.
package hash

import "github.com/cespare/xxhash/v2"

// Checksum computes the xxHash64 of b.
func Checksum(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// TopicID derives a non-negative topic from a topic name by folding its
// xxHash64 into 31 bits.
func TopicID(name string) int32 {
	h := xxhash.Sum64String(name)
	return int32((h ^ h>>32) & 0x7fffffff) //nolint:gosec
}
