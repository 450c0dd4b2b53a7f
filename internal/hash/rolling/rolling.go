// Package rolling implements the 32-bit polynomial rolling hash used for
// opportunity fingerprints. The algorithm is fixed: fingerprints stored by
// earlier runs must remain comparable, so it cannot be swapped for a
// different hash without invalidating every stored dedup key.
package rolling

import (
	"strconv"
	"unicode/utf16"
)

// Hash computes h = (h<<5) - h + codeunit over the UTF-16 code units of s,
// wrapped to a signed 32-bit integer, and returns the absolute value as a
// lowercase hex string. Not cryptographic; collisions merely drop a
// legitimately-new record during dedup.
func Hash(s string) string {
	var h int32
	for _, cu := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(cu)
	}
	// abs in int64 so MinInt32 renders as 80000000 rather than overflowing.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}
