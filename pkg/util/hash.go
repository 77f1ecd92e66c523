package util

// HashU64 is a xorshift mix used for shard selection. Zero maps to zero.
func HashU64(val uint64) uint64 {
	val ^= val << 13
	val ^= val >> 7
	val ^= val << 17
	return val
}

// HashPair mixes two ids into one shard hash.
func HashPair(a, b uint64) uint64 {
	return HashU64(a ^ HashU64(b+0x9e3779b97f4a7c15))
}

func HashIndex64(val, mask uint64) uint64 {
	return HashU64(val) & mask
}
