/*
Package bitint provides the power-of-two helpers used to size transform plans
and analysis frames. Both functions are O(1), allocation free and safe to call
from the audio callback.

Usage:

	// Round a configured frame length up to a valid plan size
	size := bitint.NextPowerOfTwo(1000) // 1024

	// Reject plan sizes the transform cannot handle
	ok := bitint.IsPowerOfTwo(size)

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two map to themselves: Len(8-1) = 3 and 1<<3 = 8, whereas Len(8) = 4 would
double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Zero and negative
// inputs return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of two, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
