package liburing

import "math/bits"

// RoundupPow2 returns the smallest power of two not below n.
func RoundupPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
