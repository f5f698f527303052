package codec

// PackedUint64Bytes returns the minimum number of little-endian bytes (1..8)
// needed to represent v. v == 0 still needs one byte — there is no
// zero-length encoding on the wire.
func PackedUint64Bytes(v uint64) uint8 {
	n := uint8(1)
	for v >>= 8; v != 0; v >>= 8 {
		n++
	}
	return n
}

// WritePacked writes the low n little-endian bytes of v into dst, which
// must have at least n bytes of room.
func WritePacked(dst []byte, v uint64, n uint8) {
	for i := uint8(0); i < n; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

// ReadPacked reads n little-endian bytes from src and returns the value.
func ReadPacked(src []byte, n uint8) uint64 {
	var v uint64
	for i := uint8(0); i < n; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}
