// SPDX-License-Identifier: MIT
//
// Package bitint holds the power-of-two helpers used to size FFT workspaces.
// None of them allocate, so they are safe to call from the audio callback.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Zero and
// negative sizes yield 1.
//
//	Input  Output
//	4      4
//	5      8
//	2048   2048
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	// size-1 keeps exact powers of two from being doubled.
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ClampPowerOfTwo rounds size up to a power of two and keeps the result
// within [lo, hi]. lo and hi must themselves be powers of two.
func ClampPowerOfTwo(size, lo, hi int) int {
	p := NextPowerOfTwo(size)
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}
