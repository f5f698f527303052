package codec

// MakeAssociatedData builds the AEAD associated data bound to every
// non-REQUEST packet: VERSION_INFO || protocol_id(8, LE) || prefix(1).
// Binding the prefix byte means tampering with kind or sequence length is
// detected by AEAD verification, not just by header parsing.
func MakeAssociatedData(dst []byte, protocolID uint64, prefix byte) []byte {
	const versionLen = len(versionInfoBytes)
	need := versionLen + 8 + 1
	if cap(dst) < need {
		dst = make([]byte, need)
	} else {
		dst = dst[:need]
	}
	copy(dst, versionInfoBytes[:])
	WritePacked(dst[versionLen:versionLen+8], protocolID, 8)
	dst[versionLen+8] = prefix
	return dst
}
