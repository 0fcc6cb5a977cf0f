package util

import (
	"strconv"
)

// MustParseUint parses s as an unsigned integer, returning 0 on failure.
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// MustParseInt parses s as an integer, returning 0 on failure.
func MustParseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
