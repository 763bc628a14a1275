/*
Package bitint provides the power-of-two helpers used to size and
validate FFT frames.

All functions are allocation free and constant time so they can be
used on the analysis hot path as well as during configuration.

Usage:

	// Reject FFT sizes the radix-2 transform cannot handle
	if !bitint.IsPowerOfTwo(fftSize) { ... }

	// Number of bits reversed by the FFT's permutation pass
	stages := bitint.Log2(fftSize) // 1024 -> 10

	// Suggest a valid size to the user
	suggested := bitint.NextPowerOfTwo(1000) // 1024

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that
values which are already powers of two are returned unchanged:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// Non-positive sizes return 1.
//
// Examples:
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

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the base-2 logarithm of n when n is a power of 2, i.e. the
// width of the bit field reversed by the FFT permutation. It returns -1
// for values that are not powers of two.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
